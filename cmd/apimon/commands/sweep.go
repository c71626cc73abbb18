package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plusserver/openstack-apimonitor/internal/exec"
	"github.com/plusserver/openstack-apimonitor/internal/monitor"
)

// Sweep returns the command that reclaims leftover resources by name
// prefix: everything an abandoned or crashed run left behind.
//
// Flags:
//
//	--config, -c: Path to the configuration file (default "apimon.yaml")
//	--prefix: Override the configured name prefix
//	--dry-run: List matches without deleting them
func Sweep() *cobra.Command {
	var (
		configPath string
		prefix     string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete leftover resources matching the name prefix",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if prefix == "" {
				prefix = cfg.Prefix
			}
			driver, err := buildDriver(cfg)
			if err != nil {
				return err
			}

			log := newLogger()
			sweeper := &monitor.Sweeper{
				Driver:  driver,
				Runner:  exec.NewRunner(log, nil, nil, nil),
				Prefix:  prefix,
				Timeout: cfg.Timeouts.Delete.D(),
				DryRun:  dryRun,
				Log:     log,
			}
			res, err := sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("matched=%d deleted=%d failed=%d\n", res.Matched, res.Deleted, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d resources could not be reclaimed", res.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "apimon.yaml", "Configuration file path")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Name prefix override")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List matches without deleting them")
	return cmd
}
