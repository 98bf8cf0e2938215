package commands

import (
	"github.com/spf13/cobra"

	"github.com/ironsmith-io/ironsmith/cmd/ironsmith/handlers"
)

// Show returns the command for inspecting one or more instances.
func Show() *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "show <node>...",
		Short: "Show the instances on the given nodes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Show(cmd.Context(), args, region)
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "Cloud region to connect to")

	return cmd
}
