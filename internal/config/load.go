package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFile reads, merges and validates the configuration from a YAML
// file. Unset fields keep their defaults; timeout knobs can still be
// overridden through the environment afterwards.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Load(data)
}

// Load parses raw YAML on top of the defaults.
func Load(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets operators tune timeouts without editing the
// config file.
//
// Environment variables:
//   - APIMON_TIMEOUT_CREATE
//   - APIMON_TIMEOUT_DELETE
//   - APIMON_TIMEOUT_QUERY
//   - APIMON_TIMEOUT_LIST
//   - APIMON_ERR_DELAY
func applyEnvOverrides(cfg *Config) {
	cfg.Timeouts.Create = parseDuration("APIMON_TIMEOUT_CREATE", cfg.Timeouts.Create)
	cfg.Timeouts.Delete = parseDuration("APIMON_TIMEOUT_DELETE", cfg.Timeouts.Delete)
	cfg.Timeouts.Query = parseDuration("APIMON_TIMEOUT_QUERY", cfg.Timeouts.Query)
	cfg.Timeouts.List = parseDuration("APIMON_TIMEOUT_LIST", cfg.Timeouts.List)
	cfg.ErrDelay = parseDuration("APIMON_ERR_DELAY", cfg.ErrDelay)
}

// parseDuration parses a duration from an environment variable. If the
// variable is unset or invalid, the current value is kept.
func parseDuration(envVar string, current Duration) Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return current
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return current
	}
	return Duration(d)
}
