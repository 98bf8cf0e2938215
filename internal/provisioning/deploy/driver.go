// Package deploy runs the deployment state machine of one instance:
// validating, reserving, binding, deploying, and the completion poll.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ironsmith-io/ironsmith/internal/config"
	"github.com/ironsmith-io/ironsmith/internal/metrics"
	"github.com/ironsmith-io/ironsmith/internal/platform/openstack"
	"github.com/ironsmith-io/ironsmith/internal/provisioning"
	"github.com/ironsmith-io/ironsmith/internal/provisioning/configdrive"
	"github.com/ironsmith-io/ironsmith/internal/provisioning/netbind"
	"github.com/ironsmith-io/ironsmith/internal/provisioning/scheduling"
)

// Driver deploys instances onto reserved nodes.
type Driver struct {
	nodes    openstack.BareMetalService
	images   openstack.ImageService
	networks openstack.NetworkService

	selector *scheduling.Selector
	binder   *netbind.Binder
	view     *provisioning.View

	observer provisioning.Observer
	timeouts *config.Timeouts
	log      *zap.Logger
}

// NewDriver wires a deployment driver over the three services.
func NewDriver(
	nodes openstack.BareMetalService,
	images openstack.ImageService,
	networks openstack.NetworkService,
	observer provisioning.Observer,
	timeouts *config.Timeouts,
	log *zap.Logger,
) *Driver {
	return &Driver{
		nodes:    nodes,
		images:   images,
		networks: networks,
		selector: scheduling.NewSelector(nodes, log),
		binder:   netbind.NewBinder(nodes, networks, log),
		view:     provisioning.NewView(nodes, networks, log),
		observer: observer,
		timeouts: timeouts,
		log:      log.Named("deploy"),
	}
}

// Deploy runs the full state machine for one request. A zero wait submits
// the deployment and returns without polling; otherwise Deploy polls until
// the node is active, a terminal failure is reported, or wait elapses.
//
// Failures while binding or deploying roll back this attempt's side effects
// (created ports, the reservation) best-effort; rollback failures are
// attached as suppressed context. A timeout performs no rollback: remote
// state stays as last observed so the caller can inspect, keep polling, or
// tear down explicitly.
func (d *Driver) Deploy(ctx context.Context, req *provisioning.InstanceRequest, wait time.Duration) (instance *provisioning.Instance, err error) {
	start := time.Now()
	defer func() { metrics.ObserveDeploy(err, time.Since(start)) }()

	// validating
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.State == provisioning.StateAbsent {
		return nil, &provisioning.ValidationError{
			Reason: "requested state absent is a teardown, not a deployment",
		}
	}

	image, err := d.images.Resolve(ctx, req.Image)
	if err != nil {
		return nil, &provisioning.ValidationError{
			Reason: fmt.Sprintf("cannot find image %s: %v", req.Image, err),
		}
	}
	if err := checkImage(req, image); err != nil {
		return nil, err
	}

	instanceUUID := uuid.NewString()
	log := d.log.With(zap.String("instance", instanceUUID))

	// reserving
	node, err := d.selector.Reserve(ctx, req, instanceUUID)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("node", node.UUID))
	d.observer.Event(provisioning.Event{
		Type:     provisioning.EventPhaseCompleted,
		Phase:    "reserving",
		Resource: node.UUID,
		Message:  fmt.Sprintf("node %s reserved", nodeLabel(node)),
	})

	if req.State == provisioning.StateReserved {
		return d.instanceFor(node, instanceUUID), nil
	}

	// binding
	binding, err := d.binder.Bind(ctx, node, req.NICs)
	if err != nil {
		return nil, provisioning.WithSuppressed(err, d.release(ctx, node.UUID))
	}

	// deploying
	if err := d.submit(ctx, req, node, image, binding, instanceUUID); err != nil {
		log.Error("deploy submission failed, rolling back", zap.Error(err))
		suppressed := d.binder.Unbind(ctx, node.UUID, binding.Created, binding.Attached)
		suppressed = append(suppressed, d.release(ctx, node.UUID)...)
		return nil, provisioning.WithSuppressed(err, suppressed)
	}
	d.observer.Printf("deployment started on node %s", nodeLabel(node))

	if wait <= 0 {
		return d.instanceFor(node, instanceUUID), nil
	}

	state, err := d.waitForState(ctx, node.UUID, openstack.StateActive, wait)
	if err != nil {
		var timeout *provisioning.DeployTimeoutError
		if errors.As(err, &timeout) {
			// No rollback on timeout: the caller decides.
			return nil, err
		}
		log.Error("deployment failed, rolling back", zap.Error(err), zap.String("state", state))
		suppressed := d.binder.Unbind(ctx, node.UUID, binding.Created, binding.Attached)
		suppressed = append(suppressed, d.release(ctx, node.UUID)...)
		return nil, provisioning.WithSuppressed(err, suppressed)
	}

	d.observer.Printf("deploy succeeded on node %s", nodeLabel(node))
	return d.view.Show(ctx, node.UUID)
}

// submit updates the node's instance information, validates it, builds the
// config drive and triggers the provision-state change.
func (d *Driver) submit(
	ctx context.Context,
	req *provisioning.InstanceRequest,
	node *openstack.Node,
	image *openstack.ImageDescriptor,
	binding *netbind.Binding,
	instanceUUID string,
) error {
	rootGB, err := rootSize(req, node, image)
	if err != nil {
		return err
	}

	bootOption := "local"
	if req.Netboot {
		bootOption = "netboot"
	}

	info := openstack.DeployInfo{
		ImageSource: image.ID,
		Kernel:      image.KernelRef,
		Ramdisk:     image.RamdiskRef,
		RootGB:      rootGB,
		SwapMB:      req.SwapSizeMB,
		BootOption:  bootOption,
		Hostname:    req.Hostname,
	}
	if err := d.nodes.SetDeployInfo(ctx, node.UUID, info); err != nil {
		return err
	}
	if err := d.nodes.RecordPorts(ctx, node.UUID, binding.Created, binding.Attached); err != nil {
		return err
	}
	if err := d.nodes.Validate(ctx, node.UUID); err != nil {
		return err
	}

	drive, err := configdrive.Build(configdrive.Options{
		InstanceUUID:  instanceUUID,
		NodeUUID:      node.UUID,
		NodeName:      node.Name,
		Hostname:      req.Hostname,
		SSHKeys:       req.SSHKeys,
		ExtraMetaData: req.ExtraMetaData,
		UserData:      req.UserData,
		Users:         req.Users,
	})
	if err != nil {
		return err
	}

	return d.nodes.Deploy(ctx, node.UUID, drive)
}

// waitForState polls the node until it reaches target, enters a terminal
// failure, or the wait elapses. The deadline is checked before every poll
// and the pauses respect ctx.
func (d *Driver) waitForState(ctx context.Context, nodeUUID, target string, wait time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	last := ""
	for {
		if err := ctx.Err(); err != nil {
			return last, d.waitErr(err, nodeUUID, last, wait)
		}

		state, err := d.nodes.ProvisionState(ctx, nodeUUID)
		if err != nil {
			return last, fmt.Errorf("failed to poll node %s: %w", nodeUUID, err)
		}
		last = state

		if state == target {
			return state, nil
		}
		if openstack.IsFailureState(state) {
			return state, fmt.Errorf("deployment of node %s failed: provision state %q", nodeUUID, state)
		}

		select {
		case <-ctx.Done():
			return last, d.waitErr(ctx.Err(), nodeUUID, last, wait)
		case <-time.After(d.timeouts.PollInterval):
		}
	}
}

func (d *Driver) waitErr(cause error, nodeUUID, last string, wait time.Duration) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return &provisioning.DeployTimeoutError{NodeUUID: nodeUUID, LastState: last, Timeout: wait}
	}
	return cause
}

// release clears the reservation best-effort, returning the failure for
// suppressed context instead of raising it.
func (d *Driver) release(ctx context.Context, nodeUUID string) []error {
	if err := d.nodes.Release(ctx, nodeUUID); err != nil {
		d.log.Warn("failed to release reservation", zap.String("node", nodeUUID), zap.Error(err))
		return []error{fmt.Errorf("failed to release node %s: %w", nodeUUID, err)}
	}
	return nil
}

// instanceFor projects an instance from a node snapshot without further
// service calls, for the non-waiting paths.
func (d *Driver) instanceFor(node *openstack.Node, instanceUUID string) *provisioning.Instance {
	hostname := node.Hostname
	if hostname == "" {
		hostname = node.Name
	}
	refreshed := *node
	refreshed.InstanceUUID = instanceUUID
	return &provisioning.Instance{
		UUID:           instanceUUID,
		NodeUUID:       node.UUID,
		NodeName:       node.Name,
		Hostname:       hostname,
		State:          provisioning.StateFromNode(&refreshed),
		ProvisionState: node.ProvisionState,
		IPAddresses:    map[string][]string{},
		CreatedAt:      node.CreatedAt,
		UpdatedAt:      node.UpdatedAt,
	}
}

// checkImage enforces the request/image compatibility rules before any
// node is listed or reserved.
func checkImage(req *provisioning.InstanceRequest, image *openstack.ImageDescriptor) error {
	if image.WholeDisk() {
		if req.SwapSizeMB > 0 {
			return &provisioning.ValidationError{
				Reason: fmt.Sprintf("swap is not supported with the whole-disk image %s", image.Name),
			}
		}
		if req.RootSizeGB > 0 {
			return &provisioning.ValidationError{
				Reason: fmt.Sprintf("a root size cannot be set with the whole-disk image %s", image.Name),
			}
		}
		return nil
	}
	if image.KernelRef == "" || image.RamdiskRef == "" {
		return &provisioning.ValidationError{
			Reason: fmt.Sprintf("partition image %s lacks kernel or ramdisk references", image.Name),
		}
	}
	return nil
}

// rootSize returns the requested root partition size, defaulting to the
// node's local disk minus headroom for partitioning and the config drive.
func rootSize(req *provisioning.InstanceRequest, node *openstack.Node, image *openstack.ImageDescriptor) (int, error) {
	if image.WholeDisk() {
		return 0, nil
	}
	if req.RootSizeGB > 0 {
		return req.RootSizeGB, nil
	}
	if node.LocalDiskGB <= 1 {
		return 0, &provisioning.ValidationError{
			Reason: fmt.Sprintf("no root size requested and node %s reports no usable local disk size", node.UUID),
		}
	}
	return node.LocalDiskGB - 1, nil
}

func nodeLabel(node *openstack.Node) string {
	if node.Name != "" {
		return fmt.Sprintf("%s (UUID %s)", node.Name, node.UUID)
	}
	return node.UUID
}
