package sync

import (
	stdsync "sync"
)

// backlog holds stream events until the initial fetch has seeded the store,
// then applies them in arrival order.
type backlog[Ev any] struct {
	mu      stdsync.Mutex
	seeded  bool
	pending []Ev
	apply   func(Ev)
}

func newBacklog[Ev any](apply func(Ev)) *backlog[Ev] {
	return &backlog[Ev]{apply: apply}
}

func (b *backlog[Ev]) push(ev Ev) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.seeded {
		b.pending = append(b.pending, ev)
		return
	}
	b.apply(ev)
}

// release applies everything queued so far and switches to direct delivery.
// It returns the number of replayed events.
func (b *backlog[Ev]) release() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seeded {
		return 0
	}
	b.seeded = true
	n := len(b.pending)
	for _, ev := range b.pending {
		b.apply(ev)
	}
	b.pending = nil
	return n
}
