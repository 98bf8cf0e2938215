// Package openstack provides the contracts for the three external services
// the orchestrator drives (node management, image catalog, network), plus
// real clients backed by the OpenStack SDK and a mock for tests.
package openstack

import (
	"context"
)

// BareMetalService is the node-management service (inventory, reservation,
// deployment). All mutations go through it; the orchestrator holds no
// durable state of its own.
type BareMetalService interface {
	// ListNodes returns nodes matching the filter, in service order.
	ListNodes(ctx context.Context, filter NodeFilter) ([]*Node, error)

	// GetNode resolves a node by UUID or name.
	GetNode(ctx context.Context, ref string) (*Node, error)

	// Reserve sets the instance marker on the node and moves it to a
	// managed state. It is the sole cross-process synchronization
	// primitive: exactly one of two racing calls succeeds, the other
	// fails with ErrConflict.
	Reserve(ctx context.Context, nodeUUID, instanceUUID string) (*Node, error)

	// Release clears the instance marker. Releasing an unreserved node
	// is a no-op.
	Release(ctx context.Context, nodeUUID string) error

	// AttachVIF binds a port to the next free physical interface.
	AttachVIF(ctx context.Context, nodeUUID, portID string) error

	// DetachVIF unbinds a port. Returns ErrNotFound if not attached.
	DetachVIF(ctx context.Context, nodeUUID, portID string) error

	// ListVIFs returns the port IDs currently bound to the node.
	ListVIFs(ctx context.Context, nodeUUID string) ([]string, error)

	// ListNodePorts returns the node's physical network interfaces in
	// the order the service reports them.
	ListNodePorts(ctx context.Context, nodeUUID string) ([]string, error)

	// SetDeployInfo stores the instance information used by the next
	// deployment.
	SetDeployInfo(ctx context.Context, nodeUUID string, info DeployInfo) error

	// RecordPorts persists created/attached port bookkeeping on the node.
	RecordPorts(ctx context.Context, nodeUUID string, created, attached []string) error

	// ClearPorts removes the port bookkeeping from the node.
	ClearPorts(ctx context.Context, nodeUUID string) error

	// Validate asks the service to verify the node is deployable with
	// its current instance information.
	Validate(ctx context.Context, nodeUUID string) error

	// Deploy triggers the deployment with the given config drive.
	Deploy(ctx context.Context, nodeUUID string, drive *ConfigDrive) error

	// Undeploy triggers the teardown of a deployed node.
	Undeploy(ctx context.Context, nodeUUID string) error

	// ProvisionState returns the node's current provision state.
	ProvisionState(ctx context.Context, nodeUUID string) (string, error)
}

// ImageService is the image catalog.
type ImageService interface {
	// Resolve turns an image reference (name, UUID or URL) into a
	// deployable descriptor.
	Resolve(ctx context.Context, ref string) (*ImageDescriptor, error)
}

// NetworkService is the network-provisioning service.
type NetworkService interface {
	// CreatePort creates a port on a network or subnet.
	CreatePort(ctx context.Context, opts PortCreateOpts) (*Port, error)

	// DeletePort deletes a port. Returns ErrNotFound if already gone.
	DeletePort(ctx context.Context, portID string) error

	// GetPort resolves a port by ID or name.
	GetPort(ctx context.Context, ref string) (*Port, error)

	// ListPorts returns all ports visible to the caller. Used by bulk
	// listing to avoid per-instance queries.
	ListPorts(ctx context.Context) ([]*Port, error)

	// ResolveNetwork resolves a network by ID or name.
	ResolveNetwork(ctx context.Context, ref string) (*Network, error)

	// ResolveSubnet resolves a subnet by ID or name.
	ResolveSubnet(ctx context.Context, ref string) (*Subnet, error)
}
