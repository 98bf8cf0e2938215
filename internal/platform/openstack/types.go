package openstack

import "time"

// Provision states reported by the node-management service.
const (
	StateAvailable  = "available"
	StateActive     = "active"
	StateDeploying  = "deploying"
	StateWaitCall   = "wait call-back"
	StateDeployDone = "deploy complete"
	StateDeleting   = "deleting"
	StateCleaning   = "cleaning"
	StateError      = "error"
	StateDeployFail = "deploy failed"
	StateManageable = "manageable"
)

// Extra keys used to record port bookkeeping on a node, so that a later
// teardown (possibly by another process) can find the artifacts.
const (
	ExtraCreatedPorts  = "ironsmith_created_ports"
	ExtraAttachedPorts = "ironsmith_attached_ports"
)

// Node is a bare-metal machine tracked by the node-management service.
// It is a snapshot; the service owns the state and the orchestrator never
// caches it beyond a single operation.
type Node struct {
	UUID           string
	Name           string
	ResourceClass  string
	Capabilities   map[string]string
	Traits         []string
	ConductorGroup string
	ProvisionState string

	// InstanceUUID is the reservation marker; empty when unreserved.
	InstanceUUID string

	Maintenance bool

	// LocalDiskGB is the size of the node's local disk, used for root
	// partition defaulting.
	LocalDiskGB int

	// CreatedPorts and AttachedPorts are the orchestrator's bookkeeping,
	// persisted in the node's extra data.
	CreatedPorts  []string
	AttachedPorts []string

	Hostname string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NodeFilter narrows a node listing. Zero values mean "no constraint".
type NodeFilter struct {
	ResourceClass  string
	ProvisionState string
	ConductorGroup string
	Associated     *bool
	Maintenance    *bool
}

// Port is a virtual network port.
type Port struct {
	ID        string
	Name      string
	NetworkID string
	FixedIPs  []FixedIP
}

// FixedIP is one address assignment on a port.
type FixedIP struct {
	SubnetID  string
	IPAddress string
}

// Network is a virtual network known to the network service.
type Network struct {
	ID        string
	Name      string
	SubnetIDs []string
}

// Subnet is one subnet of a network.
type Subnet struct {
	ID        string
	Name      string
	NetworkID string
}

// PortCreateOpts describes a port to create. Exactly one of NetworkID or
// SubnetID must be set; FixedIP is optional.
type PortCreateOpts struct {
	NetworkID string
	SubnetID  string
	FixedIP   string
}

// ImageDescriptor is a deployable image resolved from the image catalog.
type ImageDescriptor struct {
	ID         string
	Name       string
	Location   string
	Checksum   string
	KernelRef  string
	RamdiskRef string
	DiskFormat string
}

// WholeDisk reports whether the image carries its own partition table and
// bootloader. Partition images reference a separate kernel and ramdisk.
func (i *ImageDescriptor) WholeDisk() bool {
	return i.KernelRef == "" && i.RamdiskRef == ""
}

// DeployInfo is the instance information submitted to the node service
// before triggering a deployment.
type DeployInfo struct {
	ImageSource string
	Kernel      string
	Ramdisk     string
	RootGB      int
	SwapMB      int
	// BootOption is "local" or "netboot".
	BootOption string
	Hostname   string
}

// ConfigDrive is the first-boot payload attached to the node.
type ConfigDrive struct {
	MetaData map[string]any
	UserData string
}
