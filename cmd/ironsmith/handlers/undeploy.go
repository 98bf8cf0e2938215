package handlers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ironsmith-io/ironsmith/internal/config"
	"github.com/ironsmith-io/ironsmith/internal/provisioning"
	"github.com/ironsmith-io/ironsmith/internal/provisioning/teardown"
)

// UndeployOptions are the flag values of the undeploy command.
type UndeployOptions struct {
	NoWait  bool
	Timeout time.Duration
	Region  string
}

// Undeploy handles the undeploy command. Every named node is torn down;
// a failure on one node does not stop the others.
func Undeploy(ctx context.Context, nodes []string, opts UndeployOptions) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	clients, err := newClients(ctx, opts.Region)
	if err != nil {
		return err
	}

	timeouts := config.LoadTimeouts()
	if opts.Timeout > 0 {
		timeouts.Undeploy = opts.Timeout
	}
	wait := timeouts.Undeploy
	if opts.NoWait {
		wait = 0
	}

	driver := teardown.NewDriver(clients.BareMetal, clients.Network,
		provisioning.NewZapObserver(log), timeouts, log)

	failed := 0
	for _, node := range nodes {
		if err := driver.Undeploy(ctx, node, wait); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Printf("node %s released\n", node)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d teardowns failed", failed, len(nodes))
	}
	return nil
}
