// Package monitor assembles the lifecycle engine into the benchmark
// loop: it turns a driver's resource kind chain into a deployment saga,
// runs it repeatedly, and feeds the statistics, alarm and report
// collaborators.
package monitor

import (
	"context"

	"github.com/plusserver/openstack-apimonitor/internal/orchestration"
)

// Kind describes one resource kind of the provisioning chain: how to
// create, delete, query and list it, and what convergence means for it.
// A driver returns its kinds hand-ordered by dependency; the saga's
// stage order (and therefore teardown order) follows directly from the
// slice order.
type Kind struct {
	// Name is the pool and stat category name ("network", "server").
	Name string
	// Count is how many instances one run creates.
	Count int

	// DependsOn names earlier kinds whose pools supply positional
	// values to the create template (index i of this kind pairs with
	// index i of each dependency).
	DependsOn []string

	// IDField is the result field carrying the new resource's id. The
	// same key must address show fields and listing rows alike; a
	// driver whose control plane capitalizes listing headers has to
	// normalize them.
	IDField string
	// NameField is the listing column carrying the resource name, used
	// by the prefix sweeper.
	NameField string
	// StatusField is the result field carrying the status value.
	StatusField string

	// WaitState, when set, makes the create stage poll until every
	// instance reaches it (or AltState). An empty WaitState skips the
	// wait: creation is considered done when the create call returns.
	WaitState string
	AltState  string
	// Bulk selects the bulk-list poller for waits instead of the
	// per-item one.
	Bulk bool
	// WaitDeleted makes teardown poll until the instances disappear.
	WaitDeleted bool

	Create orchestration.Template
	Delete orchestration.IDTemplate
	Query  orchestration.IDTemplate
	List   orchestration.ListTemplate
}

// Driver binds the kind chain to a concrete control plane.
type Driver interface {
	// Kinds returns the hand-ordered provisioning chain.
	Kinds() []Kind
	// ServerAddress returns the address the SSH probe should dial for
	// a booted server, typically its floating or public IP.
	ServerAddress(ctx context.Context, serverID string) (string, error)
}
