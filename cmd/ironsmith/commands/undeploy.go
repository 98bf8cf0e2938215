package commands

import (
	"github.com/spf13/cobra"

	"github.com/ironsmith-io/ironsmith/cmd/ironsmith/handlers"
)

// Undeploy returns the command for tearing instances down.
func Undeploy() *cobra.Command {
	var opts handlers.UndeployOptions

	cmd := &cobra.Command{
		Use:   "undeploy <node>...",
		Short: "Tear down the instances on the given nodes",
		Long: `Tear down the instances hosted on the given nodes (names or UUIDs).

Attached ports are detached, ports created during deployment are deleted,
the node is wiped back to available and the reservation is released. The
command is safe to re-run after a partial failure.

Examples:
  # Tear down one instance and wait for the node to become available
  ironsmith undeploy node-17

  # Start teardown of two instances without waiting
  ironsmith undeploy node-17 node-23 --no-wait`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Undeploy(cmd.Context(), args, opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.NoWait, "no-wait", false, "Return after submission without waiting for completion")
	flags.DurationVar(&opts.Timeout, "timeout", 0, "Override the teardown timeout, e.g. 20m")
	flags.StringVar(&opts.Region, "region", "", "Cloud region to connect to")

	return cmd
}
