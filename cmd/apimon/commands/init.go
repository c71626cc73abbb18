package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plusserver/openstack-apimonitor/internal/config"
)

// Init returns the command for interactively creating a monitor
// configuration.
//
// The wizard asks for the resource name prefix, the control plane
// driver, the availability zones and the batch size, scales the
// resource counts accordingly, and writes a validated YAML file.
func Init() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a monitor configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			if _, err := os.Stat(outputPath); err == nil {
				fmt.Printf("Warning: %s already exists and will be overwritten.\n\n", outputPath)
			}
			if err := config.Wizard(outputPath); err != nil {
				return fmt.Errorf("wizard canceled: %w", err)
			}
			fmt.Printf("\nConfiguration written to %s.\nStart the monitor with: apimon run -c %s\n", outputPath, outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "apimon.yaml", "Output file path")
	return cmd
}
