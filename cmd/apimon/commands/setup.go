package commands

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/plusserver/openstack-apimonitor/internal/config"
	"github.com/plusserver/openstack-apimonitor/internal/monitor"
	hclouddriver "github.com/plusserver/openstack-apimonitor/internal/platform/hcloud"
	"github.com/plusserver/openstack-apimonitor/internal/platform/openstack"
)

// newLogger builds the process logger. Level comes from APIMON_LOG_LEVEL
// when set.
func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(os.Getenv("APIMON_LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

// loadConfig reads and validates the configuration file.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildDriver selects the control plane binding. The openstack CLI
// driver authenticates through the OS_* environment; the native hcloud
// driver needs HCLOUD_TOKEN.
func buildDriver(cfg *config.Config) (monitor.Driver, error) {
	switch cfg.Driver {
	case "openstack":
		return openstack.New(cfg), nil
	case "hcloud":
		token := os.Getenv("HCLOUD_TOKEN")
		if token == "" {
			return nil, fmt.Errorf("HCLOUD_TOKEN environment variable not set")
		}
		return hclouddriver.New(cfg, token), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}
