package pool

// Remainder collects ids whose deletion failed twice. They are out of
// the orchestrator's hands but must never be dropped silently: the
// remainder is surfaced at the end of a run for out-of-band cleanup
// (see cmd/sweeper). Each id is recorded at most once per kind.
type Remainder struct {
	byKind map[string][]string
	seen   map[string]struct{}
}

// NewRemainder returns an empty remainder list.
func NewRemainder() *Remainder {
	return &Remainder{
		byKind: make(map[string][]string),
		seen:   make(map[string]struct{}),
	}
}

// Add records an id that could not be deleted.
func (r *Remainder) Add(kind, id string) {
	key := kind + "/" + id
	if _, dup := r.seen[key]; dup {
		return
	}
	r.seen[key] = struct{}{}
	r.byKind[kind] = append(r.byKind[kind], id)
}

// Of returns the leftover ids of one kind in the order they were added.
func (r *Remainder) Of(kind string) []string {
	return r.byKind[kind]
}

// Len returns the total number of leftover ids across all kinds.
func (r *Remainder) Len() int {
	return len(r.seen)
}

// All returns every leftover id keyed by kind.
func (r *Remainder) All() map[string][]string {
	out := make(map[string][]string, len(r.byKind))
	for kind, ids := range r.byKind {
		cp := make([]string, len(ids))
		copy(cp, ids)
		out[kind] = cp
	}
	return out
}
