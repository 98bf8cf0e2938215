package handlers

import (
	"context"
	"os"

	"github.com/ironsmith-io/ironsmith/internal/provisioning"
)

// Show handles the show command: it prints the instance hosted on each of
// the given nodes.
func Show(ctx context.Context, nodes []string, region string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	clients, err := newClients(ctx, region)
	if err != nil {
		return err
	}

	view := provisioning.NewView(clients.BareMetal, clients.Network, log)

	instances := make([]*provisioning.Instance, 0, len(nodes))
	for _, node := range nodes {
		instance, err := view.Show(ctx, node)
		if err != nil {
			return err
		}
		instances = append(instances, instance)
	}
	return printInstances(os.Stdout, instances...)
}
