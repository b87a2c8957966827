package store

import (
	"github.com/grovetools/scribe/pkg/reconcile"
)

// Select derives a value from every snapshot of s and delivers it only when it
// differs from the previous delivery according to equal. The first value is
// always delivered. The returned channel follows the same latest-value
// semantics as Subscribe and is closed after cancel or Close.
func Select[E reconcile.Entity, Ev any, T any](
	s *Store[E, Ev],
	selector func(reconcile.Collection[E]) T,
	equal func(a, b T) bool,
) (<-chan T, func()) {
	snapshots, cancel := s.Subscribe()
	out := make(chan T, 1)

	go func() {
		defer close(out)
		var (
			last T
			have bool
		)
		for snap := range snapshots {
			v := selector(snap)
			if have && equal(last, v) {
				continue
			}
			last, have = v, true
			select {
			case <-out:
			default:
			}
			out <- v
		}
	}()

	return out, cancel
}

// Selected is one Watch delivery: the entity and whether it is present.
type Selected[E any] struct {
	Value    E
	Present  bool
	revision uint64
}

// Watch delivers the entity with id whenever that entity changes, appears or
// disappears. Changes to other entities do not produce deliveries.
func (s *Store[E, Ev]) Watch(id string) (<-chan Selected[E], func()) {
	return Select(s,
		func(c reconcile.Collection[E]) Selected[E] {
			v, ok := c.Get(id)
			rev, _ := c.Revision(id)
			return Selected[E]{Value: v, Present: ok, revision: rev}
		},
		func(a, b Selected[E]) bool {
			return a.Present == b.Present && a.revision == b.revision
		},
	)
}

// Count delivers the number of entities matching pred whenever it changes.
func Count[E reconcile.Entity, Ev any](s *Store[E, Ev], pred func(E) bool) (<-chan int, func()) {
	return Select(s,
		func(c reconcile.Collection[E]) int {
			n := 0
			for _, e := range c.All() {
				if pred(e) {
					n++
				}
			}
			return n
		},
		func(a, b int) bool { return a == b },
	)
}
