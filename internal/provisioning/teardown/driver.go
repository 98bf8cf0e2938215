// Package teardown releases everything a deployment holds: bound ports,
// the provisioned node and the reservation. Every step is attempted even
// after earlier ones fail, and the whole run is idempotent.
package teardown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ironsmith-io/ironsmith/internal/config"
	"github.com/ironsmith-io/ironsmith/internal/metrics"
	"github.com/ironsmith-io/ironsmith/internal/platform/openstack"
	"github.com/ironsmith-io/ironsmith/internal/provisioning"
	"github.com/ironsmith-io/ironsmith/internal/provisioning/netbind"
	"github.com/ironsmith-io/ironsmith/internal/util/retry"
)

// Driver tears instances down.
type Driver struct {
	nodes    openstack.BareMetalService
	binder   *netbind.Binder
	observer provisioning.Observer
	timeouts *config.Timeouts
	log      *zap.Logger
}

func NewDriver(
	nodes openstack.BareMetalService,
	networks openstack.NetworkService,
	observer provisioning.Observer,
	timeouts *config.Timeouts,
	log *zap.Logger,
) *Driver {
	return &Driver{
		nodes:    nodes,
		binder:   netbind.NewBinder(nodes, networks, log),
		observer: observer,
		timeouts: timeouts,
		log:      log.Named("teardown"),
	}
}

// Undeploy tears down the instance on the node referenced by UUID or name.
// Ports are detached and orchestrator-created ones deleted, the node is
// undeployed and waited back to available (when wait is positive), port
// bookkeeping is cleared and the reservation released.
//
// Steps keep running after failures; the failures are aggregated into a
// TeardownError so a later retry can finish what this run could not.
// Running against an already clean node succeeds without side effects.
func (d *Driver) Undeploy(ctx context.Context, nodeRef string, wait time.Duration) (err error) {
	defer func() { metrics.ObserveTeardown(err) }()

	node, err := d.nodes.GetNode(ctx, nodeRef)
	if err != nil {
		return fmt.Errorf("cannot find node %s: %w", nodeRef, err)
	}
	log := d.log.With(zap.String("node", node.UUID))

	var steps []error

	// Live VIFs catch ports bound outside our bookkeeping, bookkeeping
	// catches ports whose VIF record is already gone.
	attached := node.AttachedPorts
	if vifs, err := d.nodes.ListVIFs(ctx, node.UUID); err != nil {
		log.Warn("failed to list bound ports, falling back to recorded ones", zap.Error(err))
		steps = append(steps, fmt.Errorf("failed to list bound ports of node %s: %w", node.UUID, err))
	} else {
		attached = union(attached, vifs)
	}

	steps = append(steps, d.binder.Unbind(ctx, node.UUID, node.CreatedPorts, attached)...)

	if failures := d.undeployNode(ctx, node, wait); len(failures) > 0 {
		steps = append(steps, failures...)
	} else {
		if err := d.nodes.ClearPorts(ctx, node.UUID); err != nil && !openstack.IsNotFound(err) {
			steps = append(steps, fmt.Errorf("failed to clear port records of node %s: %w", node.UUID, err))
		}
		if err := d.nodes.Release(ctx, node.UUID); err != nil && !openstack.IsNotFound(err) {
			steps = append(steps, fmt.Errorf("failed to release node %s: %w", node.UUID, err))
		}
	}

	if len(steps) > 0 {
		return &provisioning.TeardownError{NodeUUID: node.UUID, Steps: steps}
	}

	d.observer.Printf("node %s released", node.UUID)
	d.observer.Event(provisioning.Event{
		Type:     provisioning.EventPhaseCompleted,
		Phase:    "teardown",
		Resource: node.UUID,
	})
	return nil
}

// undeployNode moves the node back to available. Nodes already available
// are left alone; a node stuck mid-transition gets the target retried on
// conflict.
func (d *Driver) undeployNode(ctx context.Context, node *openstack.Node, wait time.Duration) []error {
	state, err := d.nodes.ProvisionState(ctx, node.UUID)
	if err != nil {
		return []error{fmt.Errorf("failed to read state of node %s: %w", node.UUID, err)}
	}
	if state == openstack.StateAvailable {
		return nil
	}

	err = retry.Do(ctx, func() error {
		err := d.nodes.Undeploy(ctx, node.UUID)
		if err != nil && !openstack.IsConflict(err) {
			return retry.Permanent(err)
		}
		return err
	},
		retry.Attempts(d.timeouts.RetryMaxAttempts),
		retry.Delay(d.timeouts.RetryInitialDelay),
	)
	if err != nil {
		return []error{fmt.Errorf("failed to undeploy node %s: %w", node.UUID, err)}
	}
	d.observer.Printf("undeploy started on node %s", node.UUID)

	if wait <= 0 {
		return nil
	}
	if err := d.waitAvailable(ctx, node.UUID, wait); err != nil {
		return []error{err}
	}
	return nil
}

func (d *Driver) waitAvailable(ctx context.Context, nodeUUID string, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	last := ""
	for {
		if err := ctx.Err(); err != nil {
			return d.waitErr(err, nodeUUID, last, wait)
		}

		state, err := d.nodes.ProvisionState(ctx, nodeUUID)
		if err != nil {
			return fmt.Errorf("failed to poll node %s: %w", nodeUUID, err)
		}
		last = state

		if state == openstack.StateAvailable {
			return nil
		}
		if openstack.IsFailureState(state) {
			return fmt.Errorf("undeploy of node %s failed: provision state %q", nodeUUID, state)
		}

		select {
		case <-ctx.Done():
			return d.waitErr(ctx.Err(), nodeUUID, last, wait)
		case <-time.After(d.timeouts.PollInterval):
		}
	}
}

func (d *Driver) waitErr(cause error, nodeUUID, last string, wait time.Duration) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return &provisioning.UndeployTimeoutError{NodeUUID: nodeUUID, LastState: last, Timeout: wait}
	}
	return cause
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
