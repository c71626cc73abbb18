// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation, and wires the monitor's
// collaborators together for execution.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the apimon CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apimon",
		Short: "Continuously benchmark a cloud control plane by provisioning and tearing down resources",
	}

	cmd.AddCommand(Init())
	cmd.AddCommand(Run())
	cmd.AddCommand(Sweep())
	cmd.AddCommand(Version())

	return cmd
}
