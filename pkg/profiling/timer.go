// Package profiling records wall-clock spans and pprof profiles for scribectl
// runs. Spans are free when timing is disabled.
package profiling

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Stopper ends a span.
type Stopper interface {
	Stop()
}

type span struct {
	name     string
	start    time.Time
	duration time.Duration
	rec      *Recorder
	once     sync.Once
}

func (s *span) Stop() {
	s.once.Do(func() {
		s.duration = time.Since(s.start)
		s.rec.finish(s)
	})
}

// Recorder collects finished spans. Spans may run concurrently.
type Recorder struct {
	mu      sync.Mutex
	enabled bool
	started time.Time
	spans   []*span
}

var defaultRecorder = &Recorder{}

// Enable turns on the process-wide recorder.
func Enable() {
	defaultRecorder.Enable()
}

// Start begins a span on the process-wide recorder.
func Start(name string) Stopper {
	return defaultRecorder.Start(name)
}

// Summarize writes the process-wide spans to w.
func Summarize(w io.Writer) {
	defaultRecorder.Summarize(w)
}

func (r *Recorder) Enable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enabled {
		return
	}
	r.enabled = true
	r.started = time.Now()
}

func (r *Recorder) Start(name string) Stopper {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return noopStopper{}
	}
	return &span{name: name, start: time.Now(), rec: r}
}

func (r *Recorder) finish(s *span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, s)
}

// Summarize writes finished spans in start order with their share of the
// time since Enable. Nothing is written when disabled.
func (r *Recorder) Summarize(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}

	total := time.Since(r.started)
	spans := append([]*span(nil), r.spans...)
	sort.Slice(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })

	fmt.Fprintf(w, "\n--- Timing (%v) ---\n", total.Round(100*time.Microsecond))
	for _, s := range spans {
		offset := s.start.Sub(r.started)
		pct := 0.0
		if total > 0 {
			pct = float64(s.duration) / float64(total) * 100
		}
		fmt.Fprintf(w, "- %s +%v %v (%.1f%%)\n", s.name,
			offset.Round(100*time.Microsecond), s.duration.Round(100*time.Microsecond), pct)
	}
}

type noopStopper struct{}

func (noopStopper) Stop() {}
