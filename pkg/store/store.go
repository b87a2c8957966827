// Package store provides the reactive, subscribable entity store that the
// download and summary views read from.
//
// A Store owns one reconcile.Collection. Every mutation (stream event, append,
// removal) runs under a single mutex, produces a new immutable snapshot and
// hands it to subscribers. Subscribers receive through size-1 channels that
// always hold the latest snapshot, so a slow reader skips intermediate states
// instead of stalling the writer.
package store

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/scribe/logging"
	"github.com/grovetools/scribe/pkg/metrics"
	"github.com/grovetools/scribe/pkg/reconcile"
)

// Deleter removes an entity on the backend. Store.Remove calls it before
// touching local state.
type Deleter func(ctx context.Context, id string) error

// Option configures a Store.
type Option func(*options)

type options struct {
	name    string
	log     *logrus.Entry
	metrics *metrics.Metrics
	deleter Deleter
}

// WithName labels log entries and metrics. Defaults to "store".
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func WithLogger(log *logrus.Entry) Option {
	return func(o *options) { o.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithDeleter sets the backend call used by Remove. Without one, Remove only
// drops the local entity.
func WithDeleter(d Deleter) Option {
	return func(o *options) { o.deleter = d }
}

// Store is a thread-safe collection of E mutated by events of type Ev.
type Store[E reconcile.Entity, Ev any] struct {
	mu          sync.Mutex
	items       reconcile.Collection[E]
	reduce      reconcile.Reducer[E, Ev]
	subscribers map[chan reconcile.Collection[E]]struct{}
	closed      bool

	name    string
	log     *logrus.Entry
	metrics *metrics.Metrics
	deleter Deleter
}

// New creates an empty store reconciled by reduce.
func New[E reconcile.Entity, Ev any](reduce reconcile.Reducer[E, Ev], opts ...Option) *Store[E, Ev] {
	o := options{name: "store"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.NewLogger("store")
	}
	return &Store[E, Ev]{
		reduce:      reduce,
		subscribers: make(map[chan reconcile.Collection[E]]struct{}),
		name:        o.name,
		log:         o.log.WithField("store", o.name),
		metrics:     o.metrics,
		deleter:     o.deleter,
	}
}

// Name returns the store label.
func (s *Store[E, Ev]) Name() string {
	return s.name
}

// Dispatch reconciles one event. It reports whether the collection changed.
// Rejected events are logged and counted, never returned.
func (s *Store[E, Ev]) Dispatch(ev Ev) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.log.WithField("event", ev).Debug("Store closed, dropping event")
		return false
	}

	next, anomaly := s.reduce(s.items, ev)
	if anomaly != nil {
		s.report(anomaly)
	}
	if next.Version() == s.items.Version() {
		return false
	}
	s.commit(next)
	s.metrics.Applied(s.name)
	return true
}

// Append adds items whose ids are not yet present, keeping their order. It
// returns the number actually added.
func (s *Store[E, Ev]) Append(items ...E) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}

	next := s.items
	added := 0
	for _, item := range items {
		var ok bool
		next, ok = next.Add(item)
		if ok {
			added++
		}
	}
	if added > 0 {
		s.commit(next)
	}
	return added
}

// Remove deletes id on the backend first and drops it locally only when that
// succeeds. The backend call is not cancelled with ctx: once issued it runs to
// completion. If the store was closed meanwhile the local removal is skipped.
func (s *Store[E, Ev]) Remove(ctx context.Context, id string) error {
	if s.deleter != nil {
		if err := s.deleter(context.WithoutCancel(ctx), id); err != nil {
			s.log.WithError(err).WithField("id", id).Debug("Backend removal failed, keeping entity")
			return err
		}
	}
	s.RemoveLocal(id)
	return nil
}

// RemoveLocal drops id without contacting the backend.
func (s *Store[E, Ev]) RemoveLocal(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	next, removed := s.items.Remove(id)
	if removed {
		s.commit(next)
	}
	return removed
}

// RemoveWhere drops every entity matching pred and returns how many went.
func (s *Store[E, Ev]) RemoveWhere(pred func(E) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}
	before := s.items.Len()
	next, removed := s.items.RemoveWhere(pred)
	if !removed {
		return 0
	}
	s.commit(next)
	return before - next.Len()
}

// GetAll returns the entities in insertion order.
func (s *Store[E, Ev]) GetAll() []E {
	return s.Snapshot().All()
}

// GetByID returns the entity with id.
func (s *Store[E, Ev]) GetByID(id string) (E, bool) {
	return s.Snapshot().Get(id)
}

// Snapshot returns the current immutable collection.
func (s *Store[E, Ev]) Snapshot() reconcile.Collection[E] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items
}

// Subscribe returns a channel that immediately holds the current snapshot and
// afterwards always holds the most recent one. The cancel func is idempotent
// and closes the channel. After Close the channel is already closed.
func (s *Store[E, Ev]) Subscribe() (<-chan reconcile.Collection[E], func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan reconcile.Collection[E], 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- s.items
	s.subscribers[ch] = struct{}{}
	s.metrics.SubscriberAdded(s.name)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
				s.metrics.SubscriberRemoved(s.name)
			}
		})
	}
}

// Close stops the store. Later mutations are dropped and every subscriber
// channel is closed. Reads keep returning the final snapshot.
func (s *Store[E, Ev]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subscribers {
		close(ch)
		s.metrics.SubscriberRemoved(s.name)
	}
	s.subscribers = make(map[chan reconcile.Collection[E]]struct{})
}

// Closed reports whether Close was called.
func (s *Store[E, Ev]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// commit must be called with mu held.
func (s *Store[E, Ev]) commit(next reconcile.Collection[E]) {
	s.items = next
	s.metrics.SetSize(s.name, next.Len())
	for ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- next:
		default:
		}
	}
}

func (s *Store[E, Ev]) report(a *reconcile.Anomaly) {
	s.metrics.Dropped(s.name, string(a.Reason))
	entry := s.log.WithFields(logrus.Fields{
		"id":     a.ID,
		"event":  a.Event,
		"reason": a.Reason,
	})
	if a.Detail != "" {
		entry = entry.WithField("detail", a.Detail)
	}
	switch a.Reason {
	case reconcile.ReasonDuplicate:
		entry.Debug("Ignoring repeated add")
	case reconcile.ReasonReported:
		entry.Error("Backend reported a failure")
	default:
		entry.Warn("Ignoring event")
	}
}
