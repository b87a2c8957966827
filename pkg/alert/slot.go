// Package alert holds the process-wide "last error" slot read by the error banner.
//
// A published error clears itself after a TTL (5 seconds by default). Publishing a
// newer error replaces the pending clear, so a stale timer never removes a newer error.
package alert

import (
	"sync"
	"time"

	"github.com/grovetools/scribe/errors"
)

// DefaultTTL is how long an error stays visible when no newer error arrives.
const DefaultTTL = 5 * time.Second

// Timer is the subset of *time.Timer the slot needs.
type Timer interface {
	Stop() bool
}

// Clock schedules the auto-clear callback.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures a Slot.
type Option func(*Slot)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Slot) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(s *Slot) {
		if c != nil {
			s.clock = c
		}
	}
}

// Slot is a single-value error holder with auto-clear and change notification.
type Slot struct {
	mu          sync.Mutex
	clock       Clock
	ttl         time.Duration
	current     *errors.AppError
	generation  uint64
	timer       Timer
	subscribers map[chan *errors.AppError]struct{}
}

// NewSlot creates an empty Slot.
func NewSlot(opts ...Option) *Slot {
	s := &Slot{
		clock:       realClock{},
		ttl:         DefaultTTL,
		subscribers: make(map[chan *errors.AppError]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set publishes err and (re)starts the clear timer. A nil err clears the slot.
func (s *Slot) Set(err *errors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
	s.current = err

	if err != nil {
		gen := s.generation
		s.timer = s.clock.AfterFunc(s.ttl, func() { s.expire(gen) })
	}
	s.broadcast()
}

// Clear empties the slot immediately.
func (s *Slot) Clear() {
	s.Set(nil)
}

// Current returns the visible error, or nil.
func (s *Slot) Current() *errors.AppError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe returns a channel that receives the slot value after every change.
// Only the latest value is buffered. The returned func detaches the channel and is
// safe to call more than once.
func (s *Slot) Subscribe() (<-chan *errors.AppError, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *errors.AppError, 1)
	s.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, ch)
			close(ch)
		})
	}
}

// expire runs on the clock's goroutine. A generation mismatch means a newer Set
// happened after this timer was armed.
func (s *Slot) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.current == nil {
		return
	}
	s.current = nil
	s.timer = nil
	s.generation++
	s.broadcast()
}

// broadcast must be called with s.mu held.
func (s *Slot) broadcast() {
	for ch := range s.subscribers {
		// Keep only the newest value for slow readers.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.current:
		default:
		}
	}
}
