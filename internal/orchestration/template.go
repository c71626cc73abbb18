// Package orchestration contains the generic resource lifecycle engine:
// batch creation with partial-success tracking, LIFO deletion with a
// retry and a remainder list, convergence polling in per-item and
// bulk-list variants, and the deployment saga that sequences them with
// guaranteed reverse-order unwind.
package orchestration

import (
	"time"

	"github.com/plusserver/openstack-apimonitor/internal/exec"
)

// Item carries the per-index substitution values a create template
// resolves: the running index, the round-robin availability zone, and
// one positional value per dependent pool (pairing e.g. a port with the
// server at the same index).
type Item struct {
	Index int
	Zone  int
	Deps  []string
}

// Template builds the create action for one batch item.
type Template func(item Item) exec.Action

// IDTemplate builds an action addressing one existing resource, used
// for deletes and per-item status queries.
type IDTemplate func(id string) exec.Action

// ListTemplate builds the bulk listing action of one resource kind.
type ListTemplate func() exec.Action

// Times records per-item wall clock start times, indexed by the item's
// position in its pool. The creator fills it before each create call
// and the pollers read it to compute convergence latency.
type Times struct {
	list []time.Time
}

// Set stores the start time for item i, growing the series as needed.
func (t *Times) Set(i int, v time.Time) {
	for len(t.list) <= i {
		t.list = append(t.list, time.Time{})
	}
	t.list[i] = v
}

// Append stores the next item's start time.
func (t *Times) Append(v time.Time) {
	t.list = append(t.list, v)
}

// At returns the start time of item i.
func (t *Times) At(i int) time.Time {
	return t.list[i]
}

// Len returns the number of recorded start times.
func (t *Times) Len() int {
	return len(t.list)
}
