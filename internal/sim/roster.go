package sim

import (
	"slices"

	"crowdsim/internal/core"
)

// roster is the active agent set. Persons live in stable slots addressed by
// a handle; growing the slot table copies pointers only, so goroutines
// blocked on a person's signals are never affected.
type roster struct {
	slots   []*core.Person
	free    []int
	handles map[*core.Person]int
	order   []*core.Person
	dirty   bool
}

func newRoster() *roster {
	return &roster{handles: make(map[*core.Person]int)}
}

func (r *roster) contains(p *core.Person) bool {
	_, ok := r.handles[p]
	return ok
}

func (r *roster) add(p *core.Person) int {
	var h int
	if n := len(r.free); n > 0 {
		h = r.free[n-1]
		r.free = r.free[:n-1]
		r.slots[h] = p
	} else {
		h = len(r.slots)
		r.slots = append(r.slots, p)
	}
	r.handles[p] = h
	r.dirty = true
	return h
}

func (r *roster) remove(p *core.Person) bool {
	h, ok := r.handles[p]
	if !ok {
		return false
	}
	delete(r.handles, p)
	r.slots[h] = nil
	r.free = append(r.free, h)
	r.dirty = true
	return true
}

func (r *roster) get(h int) *core.Person {
	if h < 0 || h >= len(r.slots) {
		return nil
	}
	return r.slots[h]
}

func (r *roster) len() int { return len(r.handles) }

// sorted returns the members ordered by ascending ID, ties broken by handle.
// The returned slice is shared until the next membership change.
func (r *roster) sorted() []*core.Person {
	if !r.dirty && r.order != nil {
		return r.order
	}
	order := make([]*core.Person, 0, len(r.handles))
	for _, p := range r.slots {
		if p != nil {
			order = append(order, p)
		}
	}
	slices.SortStableFunc(order, func(a, b *core.Person) int { return a.ID - b.ID })
	r.order = order
	r.dirty = false
	return order
}
