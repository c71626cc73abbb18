package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"

	"github.com/plusserver/openstack-apimonitor/internal/alarm"
	"github.com/plusserver/openstack-apimonitor/internal/util/keygen"
)

// Wizard walks a first-time operator through the handful of choices a
// working config needs and writes the result as YAML. Everything else
// keeps its default and can be edited in the file later.
func Wizard(path string) error {
	cfg := Default()

	servers := strconv.Itoa(cfg.Counts.Servers)
	zones := "nova"
	snsTopic := ""
	probeKey := false

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Resource name prefix").
				Description("Every resource the monitor creates carries this prefix; the sweeper reclaims leftovers by it.").
				Value(&cfg.Prefix),
			huh.NewSelect[string]().
				Title("Control plane driver").
				Options(
					huh.NewOption("OpenStack CLI", "openstack"),
					huh.NewOption("Hetzner Cloud API", "hcloud"),
				).
				Value(&cfg.Driver),
			huh.NewInput().
				Title("Availability zones (comma separated)").
				Value(&zones),
			huh.NewInput().
				Title("Servers per run").
				Validate(validatePositiveInt).
				Value(&servers),
			huh.NewInput().
				Title("SNS topic ARN for alarms (empty to log only)").
				Value(&snsTopic),
			huh.NewConfirm().
				Title("Generate an SSH key pair and enable the server reachability probe?").
				Value(&probeKey),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("wizard aborted: %w", err)
	}

	// Scale the whole chain with the server count so the positional
	// dependency pairing holds.
	n, _ := strconv.Atoi(servers)
	cfg.Counts = Counts{
		Networks:    n,
		Subnets:     n,
		SecGroups:   n,
		Volumes:     n,
		Servers:     n,
		Ports:       n,
		FloatingIPs: n,
	}
	cfg.AvailabilityZones = splitZones(zones)
	if snsTopic != "" {
		cfg.Alarm.SNS = &alarm.SNSConfig{TopicARN: snsTopic, SubjectPrefix: cfg.Prefix}
	}
	if probeKey {
		if err := writeProbeKey(cfg, path); err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// writeProbeKey generates the probe key pair next to the config file
// and enables the probe. The public key must be injected into the boot
// image or passed to the control plane out of band.
func writeProbeKey(cfg *Config, configPath string) error {
	pair, err := keygen.GenerateRSAKeyPair(2048)
	if err != nil {
		return fmt.Errorf("failed to generate probe key: %w", err)
	}
	keyPath := strings.TrimSuffix(configPath, filepath.Ext(configPath)) + "_probe_key"
	if err := os.WriteFile(keyPath, pair.PrivateKey, 0o600); err != nil {
		return fmt.Errorf("failed to write probe key: %w", err)
	}
	if err := os.WriteFile(keyPath+".pub", pair.PublicKey, 0o644); err != nil {
		return fmt.Errorf("failed to write probe public key: %w", err)
	}
	cfg.Probe.Enabled = true
	cfg.Probe.KeyFile = keyPath
	if cfg.Probe.User == "" {
		cfg.Probe.User = "debian"
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

func splitZones(s string) []string {
	var out []string
	for _, z := range strings.Split(s, ",") {
		if z = strings.TrimSpace(z); z != "" {
			out = append(out, z)
		}
	}
	return out
}
