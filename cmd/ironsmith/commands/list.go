package commands

import (
	"github.com/spf13/cobra"

	"github.com/ironsmith-io/ironsmith/cmd/ironsmith/handlers"
)

// List returns the command for listing all instances.
func List() *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all provisioned instances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.List(cmd.Context(), region)
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "Cloud region to connect to")

	return cmd
}
