package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]byte("prefix: probe1\n"))
	require.NoError(t, err)

	assert.Equal(t, "probe1", cfg.Prefix)
	assert.Equal(t, "openstack", cfg.Driver)
	assert.Equal(t, 320, cfg.Polling.ItemRounds)
	assert.Equal(t, 240, cfg.Polling.ListRounds)
	assert.Equal(t, 4, cfg.Polling.ListRetries)
	assert.Equal(t, 20, cfg.Polling.ListRetriesOnDelete)
	assert.Equal(t, 24*time.Hour, cfg.Report.Interval.D())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load([]byte(`
prefix: apimon2
driver: hcloud
availabilityZones: [az1, az2, az3]
counts:
  networks: 6
  subnets: 6
  volumes: 6
  servers: 6
  ports: 6
  floatingIPs: 6
timeouts:
  create: 8m
polling:
  listRetries: 7
`))
	require.NoError(t, err)

	assert.Equal(t, "hcloud", cfg.Driver)
	assert.Len(t, cfg.AvailabilityZones, 3)
	assert.Equal(t, 6, cfg.Counts.Servers)
	assert.Equal(t, 8*time.Minute, cfg.Timeouts.Create.D())
	assert.Equal(t, 7, cfg.Polling.ListRetries)
	// Untouched sections keep defaults.
	assert.Equal(t, 2*time.Minute, cfg.Timeouts.Delete.D())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("APIMON_TIMEOUT_CREATE", "90s")
	t.Setenv("APIMON_TIMEOUT_QUERY", "not-a-duration")

	cfg, err := Load([]byte("prefix: x\n"))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.Create.D())
	// Invalid values are ignored.
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Query.D())
}

func TestValidateRejectsBadConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty prefix", func(c *Config) { c.Prefix = "" }, "prefix"},
		{"bad driver", func(c *Config) { c.Driver = "gcp" }, "unknown driver"},
		{"no zones", func(c *Config) { c.AvailabilityZones = nil }, "availability zone"},
		{"negative count", func(c *Config) { c.Counts.Volumes = -1 }, "counts.volumes"},
		{"ports exceed subnets", func(c *Config) { c.Counts.Ports = 9 }, "ports"},
		{"zero report interval", func(c *Config) { c.Report.Interval = 0 }, "report.interval"},
		{"objstore without bucket", func(c *Config) { c.Objstore.Enabled = true }, "objstore.bucket"},
		{"probe without key", func(c *Config) { c.Probe.Enabled = true }, "probe.keyFile"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Prefix = ""
	cfg.Driver = "nope"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prefix")
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestDurationYAMLForms(t *testing.T) {
	t.Parallel()
	cfg, err := Load([]byte("timeouts:\n  create: 300\n  delete: 2m30s\n"))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Timeouts.Create.D())
	assert.Equal(t, 150*time.Second, cfg.Timeouts.Delete.D())
}

func TestDurationRejectsGarbage(t *testing.T) {
	t.Parallel()
	_, err := Load([]byte("timeouts:\n  create: soon\n"))
	require.Error(t, err)
}
