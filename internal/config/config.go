// Package config loads and validates the monitor configuration from
// YAML, with environment overrides for the timeout knobs.
package config

import (
	"time"

	"github.com/plusserver/openstack-apimonitor/internal/alarm"
)

// Counts sets how many resources of each kind one run provisions.
type Counts struct {
	Networks    int `yaml:"networks"`
	Subnets     int `yaml:"subnets"`
	SecGroups   int `yaml:"secGroups"`
	FloatingIPs int `yaml:"floatingIPs"`
	Volumes     int `yaml:"volumes"`
	Servers     int `yaml:"servers"`
	Ports       int `yaml:"ports"`
}

// Timeouts holds the per-operation grace periods handed to the command
// executor, plus the deleter's retry shape.
type Timeouts struct {
	Create Duration `yaml:"create"`
	Delete Duration `yaml:"delete"`
	Query  Duration `yaml:"query"`
	List   Duration `yaml:"list"`
	// RetryMargin extends Delete on the deleter's second attempt.
	RetryMargin Duration `yaml:"retryMargin"`
	// RetryBackoff is the fixed wait between the two delete attempts.
	RetryBackoff Duration `yaml:"retryBackoff"`
}

// Polling bounds the convergence pollers. The transient tolerances are
// asymmetric on purpose: mass deletion provokes spurious throttling
// errors from the control plane, so disappearance waits put up with far
// more listing failures before giving up.
type Polling struct {
	ItemRounds          int      `yaml:"itemRounds"`
	ItemInterval        Duration `yaml:"itemInterval"`
	ListRounds          int      `yaml:"listRounds"`
	ListInterval        Duration `yaml:"listInterval"`
	ListRetries         int      `yaml:"listRetries"`
	ListRetriesOnDelete int      `yaml:"listRetriesOnDelete"`
}

// Report configures the periodic summary output.
type Report struct {
	// Interval between reporting boundaries; series reset afterwards.
	Interval Duration `yaml:"interval"`
	// Digits of precision in the summary statistics.
	Digits int `yaml:"digits"`
	// MetricsAddr, when set, serves prometheus metrics on this listen
	// address.
	MetricsAddr string `yaml:"metricsAddr"`
}

// Alarm selects and configures the alarm transports.
type Alarm struct {
	SNS *alarm.SNSConfig `yaml:"sns"`
}

// Objstore configures archival of rotated execution logs.
type Objstore struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

// Probe configures the SSH reachability check against booted servers.
type Probe struct {
	Enabled bool   `yaml:"enabled"`
	User    string `yaml:"user"`
	KeyFile string `yaml:"keyFile"`
	Port    int    `yaml:"port"`
}

// Config is the full monitor configuration.
type Config struct {
	// Prefix names every resource this monitor creates; the sweeper
	// reclaims leftovers by the same prefix.
	Prefix string `yaml:"prefix"`
	// Driver selects the control plane binding: "openstack" (CLI) or
	// "hcloud" (native API).
	Driver string `yaml:"driver"`
	// AvailabilityZones are assigned to created resources round-robin.
	AvailabilityZones []string `yaml:"availabilityZones"`
	// Iterations is the number of saga runs; 0 means run until
	// interrupted.
	Iterations int `yaml:"iterations"`
	// ErrDelay is slept after each reported failure. Negative pauses
	// until acknowledged on stdin.
	ErrDelay Duration `yaml:"errDelay"`
	// ExecLog is the path of the append-only execution log.
	ExecLog string `yaml:"execLog"`
	// Flavor is the server flavor created by the openstack driver; the
	// hcloud driver maps it to a server type.
	Flavor string `yaml:"flavor"`
	// ExternalNetwork is the network floating IPs are allocated from.
	ExternalNetwork string `yaml:"externalNetwork"`
	// Image is the boot image for servers.
	Image string `yaml:"image"`

	Counts   Counts   `yaml:"counts"`
	Timeouts Timeouts `yaml:"timeouts"`
	Polling  Polling  `yaml:"polling"`
	Report   Report   `yaml:"report"`
	Alarm    Alarm    `yaml:"alarm"`
	Objstore Objstore `yaml:"objstore"`
	Probe    Probe    `yaml:"probe"`
}

// Default returns the configuration used for any field left unset.
func Default() *Config {
	return &Config{
		Prefix:            "apimon",
		Driver:            "openstack",
		AvailabilityZones: []string{"nova"},
		ErrDelay:          Duration(10 * time.Second),
		ExecLog:           "apimon-exec.log",
		Flavor:            "m1.tiny",
		ExternalNetwork:   "ext-net",
		Image:             "debian-12",
		Counts: Counts{
			Networks:    2,
			Subnets:     2,
			SecGroups:   2,
			FloatingIPs: 2,
			Volumes:     2,
			Servers:     2,
			Ports:       2,
		},
		Timeouts: Timeouts{
			Create:       Duration(5 * time.Minute),
			Delete:       Duration(2 * time.Minute),
			Query:        Duration(30 * time.Second),
			List:         Duration(1 * time.Minute),
			RetryMargin:  Duration(1 * time.Minute),
			RetryBackoff: Duration(5 * time.Second),
		},
		Polling: Polling{
			ItemRounds:          320,
			ItemInterval:        Duration(2 * time.Second),
			ListRounds:          240,
			ListInterval:        Duration(3 * time.Second),
			ListRetries:         4,
			ListRetriesOnDelete: 20,
		},
		Report: Report{
			Interval: Duration(24 * time.Hour),
			Digits:   2,
		},
		Probe: Probe{
			User: "linux",
			Port: 22,
		},
	}
}
