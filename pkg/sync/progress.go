package sync

import (
	"context"
	stdsync "sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/scribe/logging"
	"github.com/grovetools/scribe/pkg/channel"
	"github.com/grovetools/scribe/pkg/models"
)

// ProgressTracker mirrors the latest summarization progress frame. When a
// frame carries the finished summary it is added to the summary store.
type ProgressTracker struct {
	deps      Deps
	stream    string
	summaries *SummaryStore
	log       *logrus.Entry

	mu          stdsync.Mutex
	current     models.SummarizationProgress
	seen        bool
	subscribers map[chan models.SummarizationProgress]struct{}
	unsub       channel.Unsubscribe
}

// NewProgressTracker creates an unstarted tracker. summaries may be nil.
func NewProgressTracker(d Deps, stream string, summaries *SummaryStore) *ProgressTracker {
	return &ProgressTracker{
		deps:        d,
		stream:      stream,
		summaries:   summaries,
		log:         logging.NewLogger("progress"),
		subscribers: make(map[chan models.SummarizationProgress]struct{}),
	}
}

// Start subscribes to the progress stream. There is nothing to fetch: a run
// only exists while frames arrive.
func (p *ProgressTracker) Start(ctx context.Context) error {
	unsub, err := subscribe(ctx, p.deps, p.log, p.stream, models.DecodeProgress, p.apply)
	p.unsub = unsub
	return err
}

// Current returns the latest frame and whether any frame has arrived.
func (p *ProgressTracker) Current() (models.SummarizationProgress, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.seen
}

// Percent returns the rounded completion of the latest frame.
func (p *ProgressTracker) Percent() int {
	cur, _ := p.Current()
	return cur.Percent()
}

// Subscribe returns a channel that always holds the most recent frame.
// Intermediate frames are skipped for slow readers.
func (p *ProgressTracker) Subscribe() (<-chan models.SummarizationProgress, func()) {
	ch := make(chan models.SummarizationProgress, 1)
	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	if p.seen {
		ch <- p.current
	}
	p.mu.Unlock()

	var once stdsync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if _, ok := p.subscribers[ch]; ok {
				delete(p.subscribers, ch)
				close(ch)
			}
		})
	}
}

// Stop ends the subscription and closes subscriber channels.
func (p *ProgressTracker) Stop() {
	if p.unsub != nil {
		p.unsub()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subscribers {
		delete(p.subscribers, ch)
		close(ch)
	}
}

func (p *ProgressTracker) apply(frame models.SummarizationProgress) {
	p.mu.Lock()
	p.current = frame
	p.seen = true
	for ch := range p.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- frame
	}
	p.mu.Unlock()

	if frame.Done() && p.summaries != nil {
		if p.summaries.AddSummaries(*frame.Summary) > 0 {
			p.log.WithField("id", frame.Summary.ID).Info("Summarization finished")
		}
	}
}
