package openstack

import "context"

// MockClient is a function-field mock of all three service contracts.
// Unset fields return benign defaults so tests only wire what they assert.
type MockClient struct {
	ListNodesFunc      func(ctx context.Context, filter NodeFilter) ([]*Node, error)
	GetNodeFunc        func(ctx context.Context, ref string) (*Node, error)
	ReserveFunc        func(ctx context.Context, nodeUUID, instanceUUID string) (*Node, error)
	ReleaseFunc        func(ctx context.Context, nodeUUID string) error
	AttachVIFFunc      func(ctx context.Context, nodeUUID, portID string) error
	DetachVIFFunc      func(ctx context.Context, nodeUUID, portID string) error
	ListVIFsFunc       func(ctx context.Context, nodeUUID string) ([]string, error)
	ListNodePortsFunc  func(ctx context.Context, nodeUUID string) ([]string, error)
	SetDeployInfoFunc  func(ctx context.Context, nodeUUID string, info DeployInfo) error
	RecordPortsFunc    func(ctx context.Context, nodeUUID string, created, attached []string) error
	ClearPortsFunc     func(ctx context.Context, nodeUUID string) error
	ValidateFunc       func(ctx context.Context, nodeUUID string) error
	DeployFunc         func(ctx context.Context, nodeUUID string, drive *ConfigDrive) error
	UndeployFunc       func(ctx context.Context, nodeUUID string) error
	ProvisionStateFunc func(ctx context.Context, nodeUUID string) (string, error)

	ResolveImageFunc func(ctx context.Context, ref string) (*ImageDescriptor, error)

	CreatePortFunc     func(ctx context.Context, opts PortCreateOpts) (*Port, error)
	DeletePortFunc     func(ctx context.Context, portID string) error
	GetPortFunc        func(ctx context.Context, ref string) (*Port, error)
	ListPortsFunc      func(ctx context.Context) ([]*Port, error)
	ResolveNetworkFunc func(ctx context.Context, ref string) (*Network, error)
	ResolveSubnetFunc  func(ctx context.Context, ref string) (*Subnet, error)
}

// Interface compliance.
var (
	_ BareMetalService = (*MockClient)(nil)
	_ ImageService     = (*MockClient)(nil)
	_ NetworkService   = (*MockClient)(nil)
)

// ListNodes mocks node listing.
func (m *MockClient) ListNodes(ctx context.Context, filter NodeFilter) ([]*Node, error) {
	if m.ListNodesFunc != nil {
		return m.ListNodesFunc(ctx, filter)
	}
	return nil, nil
}

// GetNode mocks node lookup.
func (m *MockClient) GetNode(ctx context.Context, ref string) (*Node, error) {
	if m.GetNodeFunc != nil {
		return m.GetNodeFunc(ctx, ref)
	}
	return &Node{UUID: ref, ProvisionState: StateAvailable}, nil
}

// Reserve mocks the reservation compare-and-swap.
func (m *MockClient) Reserve(ctx context.Context, nodeUUID, instanceUUID string) (*Node, error) {
	if m.ReserveFunc != nil {
		return m.ReserveFunc(ctx, nodeUUID, instanceUUID)
	}
	return &Node{UUID: nodeUUID, InstanceUUID: instanceUUID, ProvisionState: StateAvailable}, nil
}

// Release mocks clearing the reservation marker.
func (m *MockClient) Release(ctx context.Context, nodeUUID string) error {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, nodeUUID)
	}
	return nil
}

// AttachVIF mocks port attachment.
func (m *MockClient) AttachVIF(ctx context.Context, nodeUUID, portID string) error {
	if m.AttachVIFFunc != nil {
		return m.AttachVIFFunc(ctx, nodeUUID, portID)
	}
	return nil
}

// DetachVIF mocks port detachment.
func (m *MockClient) DetachVIF(ctx context.Context, nodeUUID, portID string) error {
	if m.DetachVIFFunc != nil {
		return m.DetachVIFFunc(ctx, nodeUUID, portID)
	}
	return nil
}

// ListVIFs mocks listing attached ports.
func (m *MockClient) ListVIFs(ctx context.Context, nodeUUID string) ([]string, error) {
	if m.ListVIFsFunc != nil {
		return m.ListVIFsFunc(ctx, nodeUUID)
	}
	return nil, nil
}

// ListNodePorts mocks listing physical interfaces. The default reports two
// interfaces, enough for most attachment tests.
func (m *MockClient) ListNodePorts(ctx context.Context, nodeUUID string) ([]string, error) {
	if m.ListNodePortsFunc != nil {
		return m.ListNodePortsFunc(ctx, nodeUUID)
	}
	return []string{nodeUUID + "-eth0", nodeUUID + "-eth1"}, nil
}

// SetDeployInfo mocks storing instance information.
func (m *MockClient) SetDeployInfo(ctx context.Context, nodeUUID string, info DeployInfo) error {
	if m.SetDeployInfoFunc != nil {
		return m.SetDeployInfoFunc(ctx, nodeUUID, info)
	}
	return nil
}

// RecordPorts mocks port bookkeeping.
func (m *MockClient) RecordPorts(ctx context.Context, nodeUUID string, created, attached []string) error {
	if m.RecordPortsFunc != nil {
		return m.RecordPortsFunc(ctx, nodeUUID, created, attached)
	}
	return nil
}

// ClearPorts mocks clearing port bookkeeping.
func (m *MockClient) ClearPorts(ctx context.Context, nodeUUID string) error {
	if m.ClearPortsFunc != nil {
		return m.ClearPortsFunc(ctx, nodeUUID)
	}
	return nil
}

// Validate mocks deploy validation.
func (m *MockClient) Validate(ctx context.Context, nodeUUID string) error {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, nodeUUID)
	}
	return nil
}

// Deploy mocks the deploy trigger.
func (m *MockClient) Deploy(ctx context.Context, nodeUUID string, drive *ConfigDrive) error {
	if m.DeployFunc != nil {
		return m.DeployFunc(ctx, nodeUUID, drive)
	}
	return nil
}

// Undeploy mocks the undeploy trigger.
func (m *MockClient) Undeploy(ctx context.Context, nodeUUID string) error {
	if m.UndeployFunc != nil {
		return m.UndeployFunc(ctx, nodeUUID)
	}
	return nil
}

// ProvisionState mocks the state query.
func (m *MockClient) ProvisionState(ctx context.Context, nodeUUID string) (string, error) {
	if m.ProvisionStateFunc != nil {
		return m.ProvisionStateFunc(ctx, nodeUUID)
	}
	return StateAvailable, nil
}

// Resolve mocks image resolution.
func (m *MockClient) Resolve(ctx context.Context, ref string) (*ImageDescriptor, error) {
	if m.ResolveImageFunc != nil {
		return m.ResolveImageFunc(ctx, ref)
	}
	return &ImageDescriptor{ID: ref, Name: ref, DiskFormat: "qcow2"}, nil
}

// CreatePort mocks port creation.
func (m *MockClient) CreatePort(ctx context.Context, opts PortCreateOpts) (*Port, error) {
	if m.CreatePortFunc != nil {
		return m.CreatePortFunc(ctx, opts)
	}
	return &Port{ID: "mock-port", NetworkID: opts.NetworkID}, nil
}

// DeletePort mocks port deletion.
func (m *MockClient) DeletePort(ctx context.Context, portID string) error {
	if m.DeletePortFunc != nil {
		return m.DeletePortFunc(ctx, portID)
	}
	return nil
}

// GetPort mocks port lookup.
func (m *MockClient) GetPort(ctx context.Context, ref string) (*Port, error) {
	if m.GetPortFunc != nil {
		return m.GetPortFunc(ctx, ref)
	}
	return &Port{ID: ref}, nil
}

// ListPorts mocks bulk port listing.
func (m *MockClient) ListPorts(ctx context.Context) ([]*Port, error) {
	if m.ListPortsFunc != nil {
		return m.ListPortsFunc(ctx)
	}
	return nil, nil
}

// ResolveNetwork mocks network resolution.
func (m *MockClient) ResolveNetwork(ctx context.Context, ref string) (*Network, error) {
	if m.ResolveNetworkFunc != nil {
		return m.ResolveNetworkFunc(ctx, ref)
	}
	return &Network{ID: ref, Name: ref}, nil
}

// ResolveSubnet mocks subnet resolution.
func (m *MockClient) ResolveSubnet(ctx context.Context, ref string) (*Subnet, error) {
	if m.ResolveSubnetFunc != nil {
		return m.ResolveSubnetFunc(ctx, ref)
	}
	return &Subnet{ID: ref, Name: ref}, nil
}
