// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated to
// handler functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the ironsmith CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ironsmith",
		Short: "Provision operating systems onto bare-metal nodes",
	}

	cmd.AddCommand(Deploy())
	cmd.AddCommand(Undeploy())
	cmd.AddCommand(Show())
	cmd.AddCommand(List())
	cmd.AddCommand(Version())

	return cmd
}
