// Package hcloud implements the monitor's kind chain natively against
// the Hetzner Cloud API. Unlike the CLI binding, actions here are Go
// functions whose structured results come straight from the API
// objects.
package hcloud

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/plusserver/openstack-apimonitor/internal/config"
	"github.com/plusserver/openstack-apimonitor/internal/exec"
	"github.com/plusserver/openstack-apimonitor/internal/monitor"
	"github.com/plusserver/openstack-apimonitor/internal/orchestration"
)

// Subnets live inside one private network range; each item gets its own
// /24 out of it.
const networkRange = "10.250.0.0/16"

// Driver implements the monitor's kind chain on the Hetzner Cloud API.
type Driver struct {
	cfg    *config.Config
	client *hcloud.Client
	// zone is the network zone subnets are created in.
	zone hcloud.NetworkZone
}

// Option configures a Driver.
type Option func(*Driver)

// WithClient sets a custom hcloud client (useful for testing).
func WithClient(c *hcloud.Client) Option {
	return func(d *Driver) { d.client = c }
}

// WithNetworkZone overrides the network zone subnets are placed in.
func WithNetworkZone(z hcloud.NetworkZone) Option {
	return func(d *Driver) { d.zone = z }
}

// New returns the native API driver for cfg, authenticating with token.
func New(cfg *config.Config, token string, opts ...Option) *Driver {
	d := &Driver{
		cfg:    cfg,
		client: hcloud.NewClient(hcloud.WithToken(token)),
		zone:   hcloud.NetworkZoneEUCentral,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// name builds the prefixed resource name for item i of a kind, matching
// the pattern the sweeper looks for.
func (d *Driver) name(kind string, i int) string {
	return fmt.Sprintf("%s-%s-%d", d.cfg.Prefix, kind, i)
}

func (d *Driver) labels() map[string]string {
	return map[string]string{"apimonitor": d.cfg.Prefix}
}

// action wraps an API call as an exec.Action. The call's context is
// cancelled by the watchdog on timeout.
func action(desc string, fn func(ctx context.Context) exec.Result) exec.Action {
	return exec.NewFuncAction(desc, fn)
}

// fail renders an API error as a non-zero action result.
func fail(err error) exec.Result {
	return exec.Result{Code: exitCode(err), Output: err.Error()}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed resource id %q: %w", id, err)
	}
	return n, nil
}

// subnetID encodes a subnet as parent network id plus CIDR, since
// subnets are not first-class resources in this API.
func subnetID(networkID int64, cidr string) string {
	return fmt.Sprintf("%d/%s", networkID, cidr)
}

// splitSubnetID reverses subnetID.
func splitSubnetID(id string) (int64, *net.IPNet, error) {
	var netID int64
	var cidr string
	if _, err := fmt.Sscanf(id, "%d/%s", &netID, &cidr); err != nil {
		return 0, nil, fmt.Errorf("malformed subnet id %q: %w", id, err)
	}
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return 0, nil, fmt.Errorf("malformed subnet id %q: %w", id, err)
	}
	return netID, ipNet, nil
}

func subnetRange(index int) *net.IPNet {
	_, ipNet, _ := net.ParseCIDR(fmt.Sprintf("10.250.%d.0/24", index))
	return ipNet
}

// sshInRule admits SSH from anywhere, which is what the reachability
// probe dials through.
func sshInRule() hcloud.FirewallRule {
	_, v4, _ := net.ParseCIDR("0.0.0.0/0")
	_, v6, _ := net.ParseCIDR("::/0")
	return hcloud.FirewallRule{
		Direction: hcloud.FirewallRuleDirectionIn,
		Protocol:  hcloud.FirewallRuleProtocolTCP,
		Port:      hcloud.Ptr("22"),
		SourceIPs: []net.IPNet{*v4, *v6},
	}
}

// Kinds returns the provisioning chain. The port kind of the CLI
// binding has no counterpart here; floating IPs bind to servers
// directly.
func (d *Driver) Kinds() []monitor.Kind {
	cfg := d.cfg
	location := func(zone int) *hcloud.Location {
		return &hcloud.Location{Name: cfg.AvailabilityZones[zone%len(cfg.AvailabilityZones)]}
	}

	return []monitor.Kind{
		{
			Name:      "network",
			Count:     cfg.Counts.Networks,
			IDField:   "id",
			NameField: "name",
			Create: func(item orchestration.Item) exec.Action {
				name := d.name("net", item.Index)
				return action("hcloud network create "+name, func(ctx context.Context) exec.Result {
					_, ipRange, _ := net.ParseCIDR(networkRange)
					network, _, err := d.client.Network.Create(ctx, hcloud.NetworkCreateOpts{
						Name:    name,
						IPRange: ipRange,
						Labels:  d.labels(),
					})
					if err != nil {
						return fail(err)
					}
					return exec.Result{Fields: map[string]string{
						"id":   formatID(network.ID),
						"name": network.Name,
					}}
				})
			},
			Delete: func(id string) exec.Action {
				return action("hcloud network delete "+id, func(ctx context.Context) exec.Result {
					netID, err := parseID(id)
					if err != nil {
						return fail(err)
					}
					if _, err := d.client.Network.Delete(ctx, &hcloud.Network{ID: netID}); err != nil {
						return fail(err)
					}
					return exec.Result{}
				})
			},
			Query: func(id string) exec.Action {
				return action("hcloud network show "+id, func(ctx context.Context) exec.Result {
					network, err := d.getNetwork(ctx, id)
					if err != nil {
						return fail(err)
					}
					return exec.Result{Fields: map[string]string{
						"id":   formatID(network.ID),
						"name": network.Name,
					}}
				})
			},
			List: func() exec.Action {
				return action("hcloud network list", func(ctx context.Context) exec.Result {
					networks, err := d.client.Network.All(ctx)
					if err != nil {
						return fail(err)
					}
					rows := make([]map[string]string, 0, len(networks))
					for _, network := range networks {
						rows = append(rows, map[string]string{
							"id":   formatID(network.ID),
							"name": network.Name,
						})
					}
					return exec.Result{Table: rows}
				})
			},
		},
		{
			Name:      "subnet",
			Count:     cfg.Counts.Subnets,
			DependsOn: []string{"network"},
			IDField:   "id",
			NameField: "name",
			Create: func(item orchestration.Item) exec.Action {
				desc := fmt.Sprintf("hcloud network add-subnet %s %s", item.Deps[0], subnetRange(item.Index))
				return action(desc, func(ctx context.Context) exec.Result {
					netID, err := parseID(item.Deps[0])
					if err != nil {
						return fail(err)
					}
					ipRange := subnetRange(item.Index)
					_, _, err = d.client.Network.AddSubnet(ctx, &hcloud.Network{ID: netID}, hcloud.NetworkAddSubnetOpts{
						Subnet: hcloud.NetworkSubnet{
							Type:        hcloud.NetworkSubnetTypeCloud,
							IPRange:     ipRange,
							NetworkZone: d.zone,
						},
					})
					if err != nil {
						return fail(err)
					}
					return exec.Result{Fields: map[string]string{
						"id": subnetID(netID, ipRange.String()),
					}}
				})
			},
			Delete: func(id string) exec.Action {
				return action("hcloud network remove-subnet "+id, func(ctx context.Context) exec.Result {
					netID, ipRange, err := splitSubnetID(id)
					if err != nil {
						return fail(err)
					}
					_, _, err = d.client.Network.DeleteSubnet(ctx, &hcloud.Network{ID: netID}, hcloud.NetworkDeleteSubnetOpts{
						Subnet: hcloud.NetworkSubnet{IPRange: ipRange},
					})
					if err != nil {
						return fail(err)
					}
					return exec.Result{}
				})
			},
			Query: func(id string) exec.Action {
				return action("hcloud network show-subnet "+id, func(ctx context.Context) exec.Result {
					netID, ipRange, err := splitSubnetID(id)
					if err != nil {
						return fail(err)
					}
					network, err := d.getNetwork(ctx, formatID(netID))
					if err != nil {
						return fail(err)
					}
					for _, subnet := range network.Subnets {
						if subnet.IPRange != nil && subnet.IPRange.String() == ipRange.String() {
							return exec.Result{Fields: map[string]string{
								"id":   id,
								"name": network.Name,
							}}
						}
					}
					return exec.Result{Code: codeNotFound, Output: "subnet not present on network"}
				})
			},
			List: func() exec.Action {
				return action("hcloud network list-subnets", func(ctx context.Context) exec.Result {
					networks, err := d.client.Network.All(ctx)
					if err != nil {
						return fail(err)
					}
					var rows []map[string]string
					for _, network := range networks {
						for _, subnet := range network.Subnets {
							if subnet.IPRange == nil {
								continue
							}
							rows = append(rows, map[string]string{
								"id":   subnetID(network.ID, subnet.IPRange.String()),
								"name": network.Name,
							})
						}
					}
					return exec.Result{Table: rows}
				})
			},
		},
		{
			Name:      "secgroup",
			Count:     cfg.Counts.SecGroups,
			IDField:   "id",
			NameField: "name",
			Create: func(item orchestration.Item) exec.Action {
				name := d.name("sg", item.Index)
				return action("hcloud firewall create "+name, func(ctx context.Context) exec.Result {
					result, _, err := d.client.Firewall.Create(ctx, hcloud.FirewallCreateOpts{
						Name:   name,
						Labels: d.labels(),
						// Firewalls carry their rules inline, so the
						// SSH ingress rule is part of creation rather
						// than a kind of its own.
						Rules: []hcloud.FirewallRule{sshInRule()},
					})
					if err != nil {
						return fail(err)
					}
					return exec.Result{Fields: map[string]string{
						"id":   formatID(result.Firewall.ID),
						"name": result.Firewall.Name,
					}}
				})
			},
			Delete: func(id string) exec.Action {
				return action("hcloud firewall delete "+id, func(ctx context.Context) exec.Result {
					fwID, err := parseID(id)
					if err != nil {
						return fail(err)
					}
					if _, err := d.client.Firewall.Delete(ctx, &hcloud.Firewall{ID: fwID}); err != nil {
						return fail(err)
					}
					return exec.Result{}
				})
			},
			Query: func(id string) exec.Action {
				return action("hcloud firewall show "+id, func(ctx context.Context) exec.Result {
					fwID, err := parseID(id)
					if err != nil {
						return fail(err)
					}
					firewall, _, err := d.client.Firewall.GetByID(ctx, fwID)
					if err != nil {
						return fail(err)
					}
					if firewall == nil {
						return exec.Result{Code: codeNotFound, Output: "firewall not found"}
					}
					return exec.Result{Fields: map[string]string{
						"id":   formatID(firewall.ID),
						"name": firewall.Name,
					}}
				})
			},
			List: func() exec.Action {
				return action("hcloud firewall list", func(ctx context.Context) exec.Result {
					firewalls, err := d.client.Firewall.All(ctx)
					if err != nil {
						return fail(err)
					}
					rows := make([]map[string]string, 0, len(firewalls))
					for _, firewall := range firewalls {
						rows = append(rows, map[string]string{
							"id":   formatID(firewall.ID),
							"name": firewall.Name,
						})
					}
					return exec.Result{Table: rows}
				})
			},
		},
		{
			Name:        "volume",
			Count:       cfg.Counts.Volumes,
			IDField:     "id",
			NameField:   "name",
			StatusField: "status",
			WaitState:   string(hcloud.VolumeStatusAvailable),
			WaitDeleted: true,
			Create: func(item orchestration.Item) exec.Action {
				name := d.name("vol", item.Index)
				return action("hcloud volume create "+name, func(ctx context.Context) exec.Result {
					result, _, err := d.client.Volume.Create(ctx, hcloud.VolumeCreateOpts{
						Name:     name,
						Size:     10,
						Location: location(item.Zone),
						Labels:   d.labels(),
					})
					if err != nil {
						return fail(err)
					}
					return exec.Result{Fields: map[string]string{
						"id":     formatID(result.Volume.ID),
						"name":   result.Volume.Name,
						"status": string(result.Volume.Status),
					}}
				})
			},
			Delete: func(id string) exec.Action {
				return action("hcloud volume delete "+id, func(ctx context.Context) exec.Result {
					volID, err := parseID(id)
					if err != nil {
						return fail(err)
					}
					if _, err := d.client.Volume.Delete(ctx, &hcloud.Volume{ID: volID}); err != nil {
						return fail(err)
					}
					return exec.Result{}
				})
			},
			Query: func(id string) exec.Action {
				return action("hcloud volume show "+id, func(ctx context.Context) exec.Result {
					volID, err := parseID(id)
					if err != nil {
						return fail(err)
					}
					volume, _, err := d.client.Volume.GetByID(ctx, volID)
					if err != nil {
						return fail(err)
					}
					if volume == nil {
						return exec.Result{Code: codeNotFound, Output: "volume not found"}
					}
					return exec.Result{Fields: map[string]string{
						"id":     formatID(volume.ID),
						"name":   volume.Name,
						"status": string(volume.Status),
					}}
				})
			},
			List: func() exec.Action {
				return action("hcloud volume list", func(ctx context.Context) exec.Result {
					volumes, err := d.client.Volume.All(ctx)
					if err != nil {
						return fail(err)
					}
					rows := make([]map[string]string, 0, len(volumes))
					for _, volume := range volumes {
						rows = append(rows, map[string]string{
							"id":     formatID(volume.ID),
							"name":   volume.Name,
							"status": string(volume.Status),
						})
					}
					return exec.Result{Table: rows}
				})
			},
		},
		{
			Name:        "server",
			Count:       cfg.Counts.Servers,
			DependsOn:   []string{"network", "volume"},
			IDField:     "id",
			NameField:   "name",
			StatusField: "status",
			WaitState:   string(hcloud.ServerStatusRunning),
			Bulk:        true,
			WaitDeleted: true,
			Create: func(item orchestration.Item) exec.Action {
				name := d.name("vm", item.Index)
				return action("hcloud server create "+name, func(ctx context.Context) exec.Result {
					netID, err := parseID(item.Deps[0])
					if err != nil {
						return fail(err)
					}
					volID, err := parseID(item.Deps[1])
					if err != nil {
						return fail(err)
					}
					result, _, err := d.client.Server.Create(ctx, hcloud.ServerCreateOpts{
						Name:       name,
						ServerType: &hcloud.ServerType{Name: cfg.Flavor},
						Image:      &hcloud.Image{Name: cfg.Image},
						Location:   location(item.Zone),
						Networks:   []*hcloud.Network{{ID: netID}},
						Volumes:    []*hcloud.Volume{{ID: volID}},
						Labels:     d.labels(),
					})
					if err != nil {
						return fail(err)
					}
					return exec.Result{Fields: map[string]string{
						"id":     formatID(result.Server.ID),
						"name":   result.Server.Name,
						"status": string(result.Server.Status),
					}}
				})
			},
			Delete: func(id string) exec.Action {
				return action("hcloud server delete "+id, func(ctx context.Context) exec.Result {
					srvID, err := parseID(id)
					if err != nil {
						return fail(err)
					}
					if _, _, err := d.client.Server.DeleteWithResult(ctx, &hcloud.Server{ID: srvID}); err != nil {
						return fail(err)
					}
					return exec.Result{}
				})
			},
			Query: func(id string) exec.Action {
				return action("hcloud server show "+id, func(ctx context.Context) exec.Result {
					server, err := d.getServer(ctx, id)
					if err != nil {
						return fail(err)
					}
					return exec.Result{Fields: map[string]string{
						"id":     formatID(server.ID),
						"name":   server.Name,
						"status": string(server.Status),
					}}
				})
			},
			List: func() exec.Action {
				return action("hcloud server list", func(ctx context.Context) exec.Result {
					servers, err := d.client.Server.All(ctx)
					if err != nil {
						return fail(err)
					}
					rows := make([]map[string]string, 0, len(servers))
					for _, server := range servers {
						rows = append(rows, map[string]string{
							"id":     formatID(server.ID),
							"name":   server.Name,
							"status": string(server.Status),
						})
					}
					return exec.Result{Table: rows}
				})
			},
		},
		{
			Name:      "floatingip",
			Count:     cfg.Counts.FloatingIPs,
			DependsOn: []string{"server"},
			IDField:   "id",
			NameField: "name",
			Create: func(item orchestration.Item) exec.Action {
				name := d.name("fip", item.Index)
				return action("hcloud floating-ip create "+name, func(ctx context.Context) exec.Result {
					srvID, err := parseID(item.Deps[0])
					if err != nil {
						return fail(err)
					}
					result, _, err := d.client.FloatingIP.Create(ctx, hcloud.FloatingIPCreateOpts{
						Type:   hcloud.FloatingIPTypeIPv4,
						Name:   hcloud.Ptr(name),
						Server: &hcloud.Server{ID: srvID},
						Labels: d.labels(),
					})
					if err != nil {
						return fail(err)
					}
					fields := map[string]string{
						"id":   formatID(result.FloatingIP.ID),
						"name": result.FloatingIP.Name,
					}
					if result.FloatingIP.IP != nil {
						fields["ip"] = result.FloatingIP.IP.String()
					}
					return exec.Result{Fields: fields}
				})
			},
			Delete: func(id string) exec.Action {
				return action("hcloud floating-ip delete "+id, func(ctx context.Context) exec.Result {
					fipID, err := parseID(id)
					if err != nil {
						return fail(err)
					}
					if _, err := d.client.FloatingIP.Delete(ctx, &hcloud.FloatingIP{ID: fipID}); err != nil {
						return fail(err)
					}
					return exec.Result{}
				})
			},
			Query: func(id string) exec.Action {
				return action("hcloud floating-ip show "+id, func(ctx context.Context) exec.Result {
					fipID, err := parseID(id)
					if err != nil {
						return fail(err)
					}
					fip, _, err := d.client.FloatingIP.GetByID(ctx, fipID)
					if err != nil {
						return fail(err)
					}
					if fip == nil {
						return exec.Result{Code: codeNotFound, Output: "floating ip not found"}
					}
					fields := map[string]string{
						"id":   formatID(fip.ID),
						"name": fip.Name,
					}
					if fip.IP != nil {
						fields["ip"] = fip.IP.String()
					}
					return exec.Result{Fields: fields}
				})
			},
			List: func() exec.Action {
				return action("hcloud floating-ip list", func(ctx context.Context) exec.Result {
					fips, err := d.client.FloatingIP.All(ctx)
					if err != nil {
						return fail(err)
					}
					rows := make([]map[string]string, 0, len(fips))
					for _, fip := range fips {
						row := map[string]string{
							"id":   formatID(fip.ID),
							"name": fip.Name,
						}
						if fip.IP != nil {
							row["ip"] = fip.IP.String()
						}
						rows = append(rows, row)
					}
					return exec.Result{Table: rows}
				})
			},
		},
	}
}

func (d *Driver) getNetwork(ctx context.Context, id string) (*hcloud.Network, error) {
	netID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	network, _, err := d.client.Network.GetByID(ctx, netID)
	if err != nil {
		return nil, err
	}
	if network == nil {
		return nil, fmt.Errorf("network %s not found", id)
	}
	return network, nil
}

func (d *Driver) getServer(ctx context.Context, id string) (*hcloud.Server, error) {
	srvID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	server, _, err := d.client.Server.GetByID(ctx, srvID)
	if err != nil {
		return nil, err
	}
	if server == nil {
		return nil, fmt.Errorf("server %s not found", id)
	}
	return server, nil
}

// ServerAddress returns the address the SSH probe dials: the server's
// floating IP when one is attached, its primary public IPv4 otherwise.
func (d *Driver) ServerAddress(ctx context.Context, serverID string) (string, error) {
	server, err := d.getServer(ctx, serverID)
	if err != nil {
		return "", err
	}
	for _, fip := range server.PublicNet.FloatingIPs {
		if fip.IP != nil {
			return fip.IP.String(), nil
		}
	}
	if server.PublicNet.IPv4.IP != nil {
		return server.PublicNet.IPv4.IP.String(), nil
	}
	return "", fmt.Errorf("server %s has no public address", serverID)
}
