package config

import (
	"errors"
	"fmt"
	"strings"
)

// Drivers this build knows how to construct.
var validDrivers = map[string]bool{
	"openstack": true,
	"hcloud":    true,
}

// Validate checks the configuration for values the monitor cannot run
// with. It returns all problems at once rather than the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Prefix == "" {
		errs = append(errs, errors.New("prefix must not be empty"))
	}
	if strings.ContainsAny(c.Prefix, " /") {
		errs = append(errs, fmt.Errorf("prefix %q must not contain spaces or slashes", c.Prefix))
	}
	if !validDrivers[c.Driver] {
		errs = append(errs, fmt.Errorf("unknown driver %q", c.Driver))
	}
	if len(c.AvailabilityZones) == 0 {
		errs = append(errs, errors.New("at least one availability zone is required"))
	}

	for kind, n := range map[string]int{
		"networks":    c.Counts.Networks,
		"subnets":     c.Counts.Subnets,
		"secGroups":   c.Counts.SecGroups,
		"floatingIPs": c.Counts.FloatingIPs,
		"volumes":     c.Counts.Volumes,
		"servers":     c.Counts.Servers,
		"ports":       c.Counts.Ports,
	} {
		if n < 0 {
			errs = append(errs, fmt.Errorf("counts.%s must not be negative", kind))
		}
	}
	// Dependent kinds pair positionally (index i with index i), so a
	// dependent count can never exceed the pool it draws from.
	if c.Counts.Subnets > c.Counts.Networks {
		errs = append(errs, fmt.Errorf("counts.subnets (%d) cannot exceed counts.networks (%d)", c.Counts.Subnets, c.Counts.Networks))
	}
	if c.Counts.Servers > c.Counts.Networks || c.Counts.Servers > c.Counts.Volumes {
		errs = append(errs, fmt.Errorf("counts.servers (%d) cannot exceed counts.networks or counts.volumes", c.Counts.Servers))
	}
	if c.Counts.Ports > c.Counts.Subnets {
		errs = append(errs, fmt.Errorf("counts.ports (%d) cannot exceed counts.subnets (%d)", c.Counts.Ports, c.Counts.Subnets))
	}
	if c.Counts.FloatingIPs > c.Counts.Ports {
		errs = append(errs, fmt.Errorf("counts.floatingIPs (%d) cannot exceed counts.ports (%d)", c.Counts.FloatingIPs, c.Counts.Ports))
	}

	if c.Timeouts.Create < 0 || c.Timeouts.Delete < 0 || c.Timeouts.Query < 0 || c.Timeouts.List < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.Polling.ItemRounds <= 0 || c.Polling.ListRounds <= 0 {
		errs = append(errs, errors.New("polling round budgets must be positive"))
	}
	if c.Report.Interval <= 0 {
		errs = append(errs, errors.New("report.interval must be positive"))
	}
	if c.Alarm.SNS != nil && c.Alarm.SNS.TopicARN == "" {
		errs = append(errs, errors.New("alarm.sns.topicARN is required when SNS is configured"))
	}
	if c.Objstore.Enabled && c.Objstore.Bucket == "" {
		errs = append(errs, errors.New("objstore.bucket is required when objstore is enabled"))
	}
	if c.Probe.Enabled && c.Probe.KeyFile == "" {
		errs = append(errs, errors.New("probe.keyFile is required when the SSH probe is enabled"))
	}

	return errors.Join(errs...)
}
