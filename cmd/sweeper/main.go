// Package main provides a standalone sweeper for leftover monitor
// resources.
//
// It deletes resources by name prefix, which is the recovery path after
// an abandoned teardown (two interrupts) or a crashed monitor: every
// resource the monitor creates carries the configured prefix.
//
// Usage:
//
//	# Delete everything left behind by the prefix from apimon.yaml
//	sweeper -config apimon.yaml
//
//	# Delete resources with an explicit prefix
//	sweeper -config apimon.yaml -prefix apimon-ci
//
//	# Dry run (list matches without deleting)
//	sweeper -config apimon.yaml -dry-run
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/plusserver/openstack-apimonitor/internal/config"
	"github.com/plusserver/openstack-apimonitor/internal/exec"
	"github.com/plusserver/openstack-apimonitor/internal/monitor"
	hclouddriver "github.com/plusserver/openstack-apimonitor/internal/platform/hcloud"
	"github.com/plusserver/openstack-apimonitor/internal/platform/openstack"
)

func main() {
	var (
		configPath = flag.String("config", "apimon.yaml", "Configuration file path")
		prefix     = flag.String("prefix", "", "Name prefix override")
		dryRun     = flag.Bool("dry-run", false, "List matches without deleting them")
	)
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := run(*configPath, *prefix, *dryRun, log); err != nil {
		log.Fatal(err)
	}
}

func run(configPath, prefix string, dryRun bool, log *logrus.Logger) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if prefix == "" {
		prefix = cfg.Prefix
	}

	var driver monitor.Driver
	switch cfg.Driver {
	case "openstack":
		driver = openstack.New(cfg)
	case "hcloud":
		token := os.Getenv("HCLOUD_TOKEN")
		if token == "" {
			return fmt.Errorf("HCLOUD_TOKEN environment variable not set")
		}
		driver = hclouddriver.New(cfg, token)
	default:
		return fmt.Errorf("unknown driver %q", cfg.Driver)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := &monitor.Sweeper{
		Driver:  driver,
		Runner:  exec.NewRunner(log, nil, nil, nil),
		Prefix:  prefix,
		Timeout: cfg.Timeouts.Delete.D(),
		DryRun:  dryRun,
		Log:     log,
	}
	res, err := sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"matched": res.Matched,
		"deleted": res.Deleted,
		"failed":  res.Failed,
	}).Info("sweep finished")
	if res.Failed > 0 {
		return fmt.Errorf("%d resources could not be reclaimed", res.Failed)
	}
	return nil
}
