package commands

import (
	"github.com/spf13/cobra"

	"github.com/ironsmith-io/ironsmith/cmd/ironsmith/handlers"
)

// Deploy returns the command for provisioning instances.
//
// Instances come either from the instances section of a configuration file
// or from the request flags; flag values override the file's defaults
// section either way.
//
// Environment variables:
//
//	OS_*: cloud credentials (required)
//	IRONSMITH_TIMEOUT_DEPLOY and friends: lifecycle timeouts
func Deploy() *cobra.Command {
	var opts handlers.DeployOptions

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy instances onto bare-metal nodes",
		Long: `Deploy one or more instances onto bare-metal nodes.

Each instance gets a node reserved, its networks attached and the image
deployed; the command waits until every instance is active unless --no-wait
is given.

Examples:
  # Deploy every instance declared in a configuration file
  ironsmith deploy -c instances.yaml

  # Deploy a single instance from flags
  ironsmith deploy --resource-class compute --image ubuntu-24.04 \
    --network provisioning-net --ssh-key-file ~/.ssh/id_ed25519.pub

  # Deploy three identical workers
  ironsmith deploy -c defaults.yaml --hostname worker --count 3`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Deploy(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file")
	flags.StringVar(&opts.ResourceClass, "resource-class", "", "Resource class the node must carry")
	flags.StringVar(&opts.Image, "image", "", "Image to deploy (name or UUID)")
	flags.StringArrayVar(&opts.Networks, "network", nil, "Network to create a port on (repeatable)")
	flags.StringArrayVar(&opts.Subnets, "subnet", nil, "Subnet to create a port on (repeatable)")
	flags.StringArrayVar(&opts.Ports, "port", nil, "Pre-created port to attach (repeatable)")
	flags.IntVar(&opts.RootSizeGB, "root-size", 0, "Root partition size in GiB (default: node disk minus 1)")
	flags.IntVar(&opts.SwapSizeMB, "swap-size", 0, "Swap partition size in MiB")
	flags.StringVar(&opts.SSHKeyFile, "ssh-key-file", "", "File with SSH public keys, one per line")
	flags.StringVar(&opts.Hostname, "hostname", "", "Hostname for the instance")
	flags.StringArrayVar(&opts.Candidates, "candidate", nil, "Restrict scheduling to this node (repeatable)")
	flags.StringToStringVar(&opts.Capabilities, "capability", nil, "Required node capability as key=value (repeatable)")
	flags.StringArrayVar(&opts.Traits, "trait", nil, "Required node trait (repeatable)")
	flags.StringVar(&opts.ConductorGroup, "conductor-group", "", "Restrict scheduling to this conductor group")
	flags.BoolVar(&opts.Netboot, "netboot", false, "Boot the final instance over the network")
	flags.IntVar(&opts.Count, "count", 1, "Number of identical instances to deploy")
	flags.BoolVar(&opts.NoWait, "no-wait", false, "Return after submission without waiting for completion")
	flags.DurationVar(&opts.Timeout, "timeout", 0, "Override the deployment timeout, e.g. 45m")

	return cmd
}
