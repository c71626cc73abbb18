// Package pool tracks the live resources of one kind between creation
// and deletion. Insertion order is creation order, and teardown always
// drains a pool LIFO so dependent resources go away before the
// resources they were built on.
package pool

import "time"

// Handle identifies one live resource.
type Handle struct {
	ID        string
	CreatedAt time.Time
}

// Pool is the ordered collection of live handles of one resource kind.
// An id appears at most once in a live pool.
type Pool struct {
	Kind    string
	handles []Handle
}

// New returns an empty pool for the given resource kind.
func New(kind string) *Pool {
	return &Pool{Kind: kind}
}

// Push appends a freshly created handle.
func (p *Pool) Push(h Handle) {
	p.handles = append(p.handles, h)
}

// PopLast removes and returns the most recently added handle.
// ok is false when the pool is empty.
func (p *Pool) PopLast() (h Handle, ok bool) {
	if len(p.handles) == 0 {
		return Handle{}, false
	}
	h = p.handles[len(p.handles)-1]
	p.handles = p.handles[:len(p.handles)-1]
	return h, true
}

// Len returns the number of live handles.
func (p *Pool) Len() int {
	return len(p.handles)
}

// At returns the handle at insertion position i.
func (p *Pool) At(i int) Handle {
	return p.handles[i]
}

// IDs returns the ids in insertion order.
func (p *Pool) IDs() []string {
	out := make([]string, len(p.handles))
	for i, h := range p.handles {
		out[i] = h.ID
	}
	return out
}

// Handles returns a copy of the live handles in insertion order.
func (p *Pool) Handles() []Handle {
	out := make([]Handle, len(p.handles))
	copy(out, p.handles)
	return out
}
