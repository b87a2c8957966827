package reconcile

// Entity is anything keyed by a stable backend-assigned id.
type Entity interface {
	EntityID() string
}

type entry[E Entity] struct {
	value E
	rev   uint64
}

// Collection is an immutable, insertion-ordered set of entities with at most one
// entity per id. Every mutating method returns a new Collection and leaves the
// receiver untouched, so a Collection can be shared freely as a snapshot.
//
// The zero value is an empty collection.
type Collection[E Entity] struct {
	entries []entry[E]
	index   map[string]int
	// version increases on every accepted change; revisions of changed entries
	// take the new version, which is what selectors compare.
	version uint64
}

// NewCollection builds a collection from items, keeping the first item per id.
func NewCollection[E Entity](items ...E) Collection[E] {
	var c Collection[E]
	for _, item := range items {
		c, _ = c.Add(item)
	}
	return c
}

// Len returns the number of entities.
func (c Collection[E]) Len() int {
	return len(c.entries)
}

// Version identifies this state; it changes whenever the content changes.
func (c Collection[E]) Version() uint64 {
	return c.version
}

// All returns the entities in insertion order. The slice is a copy.
func (c Collection[E]) All() []E {
	out := make([]E, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.value
	}
	return out
}

// Get returns the entity with id.
func (c Collection[E]) Get(id string) (E, bool) {
	i, ok := c.index[id]
	if !ok {
		var zero E
		return zero, false
	}
	return c.entries[i].value, true
}

// Contains reports whether id is present.
func (c Collection[E]) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Revision returns the version at which id last changed.
func (c Collection[E]) Revision(id string) (uint64, bool) {
	i, ok := c.index[id]
	if !ok {
		return 0, false
	}
	return c.entries[i].rev, true
}

// Add appends e unless its id is already present. The bool reports whether the
// collection changed.
func (c Collection[E]) Add(e E) (Collection[E], bool) {
	id := e.EntityID()
	if _, ok := c.index[id]; ok {
		return c, false
	}

	next := c.version + 1
	entries := make([]entry[E], len(c.entries), len(c.entries)+1)
	copy(entries, c.entries)
	entries = append(entries, entry[E]{value: e, rev: next})

	index := make(map[string]int, len(c.index)+1)
	for k, v := range c.index {
		index[k] = v
	}
	index[id] = len(entries) - 1

	return Collection[E]{entries: entries, index: index, version: next}, true
}

// Replace swaps the entity stored under id for e. The id of e must equal id.
func (c Collection[E]) Replace(id string, e E) (Collection[E], bool) {
	i, ok := c.index[id]
	if !ok || e.EntityID() != id {
		return c, false
	}

	next := c.version + 1
	entries := make([]entry[E], len(c.entries))
	copy(entries, c.entries)
	entries[i] = entry[E]{value: e, rev: next}

	// The index is unchanged and never mutated in place, so it can be shared.
	return Collection[E]{entries: entries, index: c.index, version: next}, true
}

// Remove drops the entity with id.
func (c Collection[E]) Remove(id string) (Collection[E], bool) {
	if !c.Contains(id) {
		return c, false
	}
	return c.RemoveWhere(func(e E) bool { return e.EntityID() == id })
}

// RemoveWhere drops every entity matching pred. The bool reports whether any
// entity was removed.
func (c Collection[E]) RemoveWhere(pred func(E) bool) (Collection[E], bool) {
	kept := make([]entry[E], 0, len(c.entries))
	for _, e := range c.entries {
		if !pred(e.value) {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(c.entries) {
		return c, false
	}

	index := make(map[string]int, len(kept))
	for i, e := range kept {
		index[e.value.EntityID()] = i
	}
	return Collection[E]{entries: kept, index: index, version: c.version + 1}, true
}
