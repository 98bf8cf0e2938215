package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/ironsmith-io/ironsmith/internal/provisioning"
)

// List handles the list command: it prints every provisioned instance.
func List(ctx context.Context, region string) error {
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
	instances, err := view.List(ctx)
	if err != nil {
		return err
	}
	if len(instances) == 0 {
		fmt.Println("no instances")
		return nil
	}
	return printInstances(os.Stdout, instances...)
}
