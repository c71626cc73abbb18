package openstack

import (
	"context"
	"fmt"

	"github.com/plusserver/openstack-apimonitor/internal/config"
	"github.com/plusserver/openstack-apimonitor/internal/exec"
	"github.com/plusserver/openstack-apimonitor/internal/monitor"
	"github.com/plusserver/openstack-apimonitor/internal/orchestration"
)

// Driver implements the monitor's kind chain on top of the openstack
// CLI. Authentication comes from the usual OS_* environment, exactly as
// the operator's own client calls would.
type Driver struct {
	cfg *config.Config
	// Binary is the client executable, overridable for tests.
	Binary string
}

// New returns the CLI driver for cfg.
func New(cfg *config.Config) *Driver {
	return &Driver{cfg: cfg, Binary: "openstack"}
}

// name builds the prefixed resource name for item i of a kind. The
// sweeper matches leftovers on the same pattern.
func (d *Driver) name(kind string, i int) string {
	return fmt.Sprintf("%s-%s-%d", d.cfg.Prefix, kind, i)
}

// show builds a ProcessAction whose table output is parsed as a single
// resource.
func (d *Driver) show(args ...string) *exec.ProcessAction {
	a := exec.NewProcessAction(append([]string{d.Binary}, args...)...)
	a.Parse = func(output string) (map[string]string, []map[string]string) {
		return ParseShow(output), nil
	}
	return a
}

// listing builds a ProcessAction whose table output is parsed as rows.
func (d *Driver) listing(args ...string) *exec.ProcessAction {
	a := exec.NewProcessAction(append([]string{d.Binary}, args...)...)
	a.Parse = func(output string) (map[string]string, []map[string]string) {
		return nil, ParseList(output)
	}
	return a
}

// plain builds a ProcessAction whose output is only logged.
func (d *Driver) plain(args ...string) *exec.ProcessAction {
	return exec.NewProcessAction(append([]string{d.Binary}, args...)...)
}

// Kinds returns the provisioning chain, ordered so that teardown in
// reverse is dependency-correct: floating IPs before their ports,
// servers before their boot volumes, subnets before their networks.
func (d *Driver) Kinds() []monitor.Kind {
	cfg := d.cfg
	az := func(zone int) string {
		return cfg.AvailabilityZones[zone%len(cfg.AvailabilityZones)]
	}

	return []monitor.Kind{
		{
			Name:        "network",
			Count:       cfg.Counts.Networks,
			IDField:     "id",
			NameField:   "name",
			StatusField: "status",
			Create: func(item orchestration.Item) exec.Action {
				return d.show("network", "create", d.name("net", item.Index))
			},
			Delete: func(id string) exec.Action {
				return d.plain("network", "delete", id)
			},
			Query: func(id string) exec.Action {
				return d.show("network", "show", id)
			},
			List: func() exec.Action {
				return d.listing("network", "list")
			},
		},
		{
			Name:        "subnet",
			Count:       cfg.Counts.Subnets,
			DependsOn:   []string{"network"},
			IDField:     "id",
			NameField:   "name",
			StatusField: "status",
			Create: func(item orchestration.Item) exec.Action {
				return d.show("subnet", "create",
					"--network", item.Deps[0],
					"--subnet-range", fmt.Sprintf("10.250.%d.0/24", item.Index),
					d.name("subnet", item.Index))
			},
			Delete: func(id string) exec.Action {
				return d.plain("subnet", "delete", id)
			},
			Query: func(id string) exec.Action {
				return d.show("subnet", "show", id)
			},
			List: func() exec.Action {
				return d.listing("subnet", "list")
			},
		},
		{
			Name:      "secgroup",
			Count:     cfg.Counts.SecGroups,
			IDField:   "id",
			NameField: "name",
			Create: func(item orchestration.Item) exec.Action {
				return d.show("security", "group", "create", d.name("sg", item.Index))
			},
			Delete: func(id string) exec.Action {
				return d.plain("security", "group", "delete", id)
			},
			Query: func(id string) exec.Action {
				return d.show("security", "group", "show", id)
			},
			List: func() exec.Action {
				return d.listing("security", "group", "list")
			},
		},
		{
			// One SSH ingress rule per group. Rules have no name
			// column, so the sweeper cannot match them; they go away
			// with their group instead.
			Name:      "secrule",
			Count:     cfg.Counts.SecGroups,
			DependsOn: []string{"secgroup"},
			IDField:   "id",
			Create: func(item orchestration.Item) exec.Action {
				return d.show("security", "group", "rule", "create",
					"--ingress", "--protocol", "tcp", "--dst-port", "22",
					item.Deps[0])
			},
			Delete: func(id string) exec.Action {
				return d.plain("security", "group", "rule", "delete", id)
			},
			Query: func(id string) exec.Action {
				return d.show("security", "group", "rule", "show", id)
			},
			List: func() exec.Action {
				return d.listing("security", "group", "rule", "list")
			},
		},
		{
			Name:        "volume",
			Count:       cfg.Counts.Volumes,
			IDField:     "id",
			NameField:   "name",
			StatusField: "status",
			WaitState:   "available",
			WaitDeleted: true,
			Create: func(item orchestration.Item) exec.Action {
				return d.show("volume", "create",
					"--size", "1",
					"--availability-zone", az(item.Zone),
					d.name("vol", item.Index))
			},
			Delete: func(id string) exec.Action {
				return d.plain("volume", "delete", id)
			},
			Query: func(id string) exec.Action {
				return d.show("volume", "show", id)
			},
			List: func() exec.Action {
				return d.listing("volume", "list")
			},
		},
		{
			Name:        "server",
			Count:       cfg.Counts.Servers,
			DependsOn:   []string{"network", "volume"},
			IDField:     "id",
			NameField:   "name",
			StatusField: "status",
			WaitState:   "ACTIVE",
			Bulk:        true,
			WaitDeleted: true,
			Create: func(item orchestration.Item) exec.Action {
				return d.show("server", "create",
					"--flavor", cfg.Flavor,
					"--volume", item.Deps[1],
					"--network", item.Deps[0],
					"--availability-zone", az(item.Zone),
					d.name("vm", item.Index))
			},
			Delete: func(id string) exec.Action {
				return d.plain("server", "delete", id)
			},
			Query: func(id string) exec.Action {
				return d.show("server", "show", id)
			},
			List: func() exec.Action {
				return d.listing("server", "list")
			},
		},
		{
			Name:      "port",
			Count:     cfg.Counts.Ports,
			DependsOn: []string{"network", "subnet"},
			IDField:   "id",
			NameField: "name",
			Create: func(item orchestration.Item) exec.Action {
				return d.show("port", "create",
					"--network", item.Deps[0],
					"--fixed-ip", "subnet="+item.Deps[1],
					d.name("port", item.Index))
			},
			Delete: func(id string) exec.Action {
				return d.plain("port", "delete", id)
			},
			Query: func(id string) exec.Action {
				return d.show("port", "show", id)
			},
			List: func() exec.Action {
				return d.listing("port", "list")
			},
		},
		{
			Name:      "floatingip",
			Count:     cfg.Counts.FloatingIPs,
			DependsOn: []string{"port"},
			IDField:   "id",
			NameField: "floating ip address",
			Create: func(item orchestration.Item) exec.Action {
				return d.show("floating", "ip", "create",
					"--port", item.Deps[0],
					cfg.ExternalNetwork)
			},
			Delete: func(id string) exec.Action {
				return d.plain("floating", "ip", "delete", id)
			},
			Query: func(id string) exec.Action {
				return d.show("floating", "ip", "show", id)
			},
			List: func() exec.Action {
				return d.listing("floating", "ip", "list")
			},
		},
	}
}

// ServerAddress resolves the address the SSH probe dials. The CLI
// binding reads the server's first floating or fixed address.
func (d *Driver) ServerAddress(_ context.Context, serverID string) (string, error) {
	res := d.show("server", "show", serverID).Run()
	if res.Code != 0 {
		return "", fmt.Errorf("server show %s failed with code %d", serverID, res.Code)
	}
	for _, field := range []string{"accessIPv4", "addresses"} {
		if v := res.Fields[field]; v != "" {
			return lastAddress(v), nil
		}
	}
	return "", fmt.Errorf("server %s has no reachable address", serverID)
}

// lastAddress picks the last address out of a "net=10.250.0.3, 185.x.y.z"
// style value, which is where the floating IP lands.
func lastAddress(v string) string {
	fields := ParseAddresses(v)
	if len(fields) == 0 {
		return v
	}
	return fields[len(fields)-1]
}
