package deploy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ironsmith-io/ironsmith/internal/config"
	"github.com/ironsmith-io/ironsmith/internal/platform/openstack"
	"github.com/ironsmith-io/ironsmith/internal/provisioning"
)

func testTimeouts() *config.Timeouts {
	return &config.Timeouts{
		Deploy:            time.Second,
		Undeploy:          time.Second,
		PollInterval:      time.Millisecond,
		RetryMaxAttempts:  3,
		RetryInitialDelay: time.Millisecond,
	}
}

func newTestDriver(mock *openstack.MockClient) *Driver {
	return NewDriver(mock, mock, mock, provisioning.NopObserver{}, testTimeouts(), zap.NewNop())
}

func baseRequest() *provisioning.InstanceRequest {
	return &provisioning.InstanceRequest{
		ResourceClass: "compute",
		Image:         "ubuntu-24.04",
		NICs:          []provisioning.NIC{{Network: "provisioning-net"}},
	}
}

func partitionImage() *openstack.ImageDescriptor {
	return &openstack.ImageDescriptor{
		ID:         "image-1",
		Name:       "ubuntu-24.04",
		KernelRef:  "kernel-1",
		RamdiskRef: "ramdisk-1",
	}
}

// happyMock wires a pool of one available node and tracks the calls the
// state machine makes.
type happyMock struct {
	openstack.MockClient

	mu       sync.Mutex
	deployed bool
	info     *openstack.DeployInfo
	drive    *openstack.ConfigDrive
	recorded [][]string
}

func newHappyMock(node *openstack.Node) *happyMock {
	m := &happyMock{}
	m.ListNodesFunc = func(ctx context.Context, filter openstack.NodeFilter) ([]*openstack.Node, error) {
		return []*openstack.Node{node}, nil
	}
	m.GetNodeFunc = func(ctx context.Context, ref string) (*openstack.Node, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		n := *node
		if m.deployed {
			n.ProvisionState = openstack.StateActive
			n.InstanceUUID = "set"
		}
		return &n, nil
	}
	m.ResolveImageFunc = func(ctx context.Context, ref string) (*openstack.ImageDescriptor, error) {
		return partitionImage(), nil
	}
	m.SetDeployInfoFunc = func(ctx context.Context, nodeUUID string, info openstack.DeployInfo) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.info = &info
		return nil
	}
	m.RecordPortsFunc = func(ctx context.Context, nodeUUID string, created, attached []string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.recorded = [][]string{created, attached}
		return nil
	}
	m.DeployFunc = func(ctx context.Context, nodeUUID string, drive *openstack.ConfigDrive) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.deployed = true
		m.drive = drive
		return nil
	}
	m.ProvisionStateFunc = func(ctx context.Context, nodeUUID string) (string, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.deployed {
			return openstack.StateActive, nil
		}
		return openstack.StateDeploying, nil
	}
	return m
}

func TestDeployHappyPath(t *testing.T) {
	node := &openstack.Node{
		UUID:           "node-1",
		Name:           "blade",
		ResourceClass:  "compute",
		ProvisionState: openstack.StateAvailable,
		LocalDiskGB:    100,
	}
	mock := newHappyMock(node)

	driver := newTestDriver(&mock.MockClient)
	instance, err := driver.Deploy(context.Background(), baseRequest(), time.Second)

	require.NoError(t, err)
	require.NotNil(t, instance)
	assert.Equal(t, "node-1", instance.NodeUUID)
	assert.Equal(t, provisioning.InstanceActive, instance.State)

	require.NotNil(t, mock.info)
	assert.Equal(t, "image-1", mock.info.ImageSource)
	assert.Equal(t, "kernel-1", mock.info.Kernel)
	// Root size defaults to local disk minus one.
	assert.Equal(t, 99, mock.info.RootGB)
	assert.Equal(t, "local", mock.info.BootOption)

	require.NotNil(t, mock.drive)
	assert.NotEmpty(t, mock.drive.MetaData["uuid"])
	require.Len(t, mock.recorded, 2)
	assert.Len(t, mock.recorded[0], 1)
}

func TestDeployWholeDiskRejectsSwapBeforeAnyListing(t *testing.T) {
	listed := false
	mock := &openstack.MockClient{
		ResolveImageFunc: func(ctx context.Context, ref string) (*openstack.ImageDescriptor, error) {
			return &openstack.ImageDescriptor{ID: "image-1", Name: ref}, nil
		},
		ListNodesFunc: func(ctx context.Context, filter openstack.NodeFilter) ([]*openstack.Node, error) {
			listed = true
			return nil, nil
		},
	}

	req := baseRequest()
	req.SwapSizeMB = 1024

	driver := newTestDriver(mock)
	_, err := driver.Deploy(context.Background(), req, 0)

	require.Error(t, err)
	assert.True(t, provisioning.IsValidationError(err))
	assert.False(t, listed)
}

func TestDeployWholeDiskRejectsRootSize(t *testing.T) {
	mock := &openstack.MockClient{
		ResolveImageFunc: func(ctx context.Context, ref string) (*openstack.ImageDescriptor, error) {
			return &openstack.ImageDescriptor{ID: "image-1", Name: ref}, nil
		},
	}

	req := baseRequest()
	req.RootSizeGB = 50

	driver := newTestDriver(mock)
	_, err := driver.Deploy(context.Background(), req, 0)

	require.Error(t, err)
	assert.True(t, provisioning.IsValidationError(err))
}

func TestDeployPartitionImageWithoutKernelFails(t *testing.T) {
	mock := &openstack.MockClient{
		ResolveImageFunc: func(ctx context.Context, ref string) (*openstack.ImageDescriptor, error) {
			return &openstack.ImageDescriptor{ID: "image-1", Name: ref, KernelRef: "kernel-1"}, nil
		},
	}

	driver := newTestDriver(mock)
	_, err := driver.Deploy(context.Background(), baseRequest(), 0)

	require.Error(t, err)
	assert.True(t, provisioning.IsValidationError(err))
	assert.Contains(t, err.Error(), "ramdisk")
}

func TestDeployUnknownImageIsValidationError(t *testing.T) {
	mock := &openstack.MockClient{
		ResolveImageFunc: func(ctx context.Context, ref string) (*openstack.ImageDescriptor, error) {
			return nil, openstack.ErrNotFound
		},
	}

	driver := newTestDriver(mock)
	_, err := driver.Deploy(context.Background(), baseRequest(), 0)

	require.Error(t, err)
	assert.True(t, provisioning.IsValidationError(err))
}

func TestDeployAbsentStateIsRejected(t *testing.T) {
	req := baseRequest()
	req.State = provisioning.StateAbsent

	driver := newTestDriver(&openstack.MockClient{})
	_, err := driver.Deploy(context.Background(), req, 0)

	require.Error(t, err)
	assert.True(t, provisioning.IsValidationError(err))
}

func TestDeployReservedStateStopsAfterReservation(t *testing.T) {
	node := &openstack.Node{
		UUID:           "node-1",
		ResourceClass:  "compute",
		ProvisionState: openstack.StateAvailable,
		LocalDiskGB:    100,
	}
	mock := &openstack.MockClient{
		ResolveImageFunc: func(ctx context.Context, ref string) (*openstack.ImageDescriptor, error) {
			return partitionImage(), nil
		},
		ListNodesFunc: func(ctx context.Context, filter openstack.NodeFilter) ([]*openstack.Node, error) {
			return []*openstack.Node{node}, nil
		},
		DeployFunc: func(ctx context.Context, nodeUUID string, drive *openstack.ConfigDrive) error {
			t.Fatal("a reserved-state request must not deploy")
			return nil
		},
		CreatePortFunc: func(ctx context.Context, opts openstack.PortCreateOpts) (*openstack.Port, error) {
			t.Fatal("a reserved-state request must not create ports")
			return nil, nil
		},
	}

	req := baseRequest()
	req.State = provisioning.StateReserved

	driver := newTestDriver(mock)
	instance, err := driver.Deploy(context.Background(), req, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "node-1", instance.NodeUUID)
	assert.NotEmpty(t, instance.UUID)
}

func TestDeployBindFailureReleasesReservation(t *testing.T) {
	released := false
	node := &openstack.Node{
		UUID:           "node-1",
		ResourceClass:  "compute",
		ProvisionState: openstack.StateAvailable,
	}
	mock := &openstack.MockClient{
		ResolveImageFunc: func(ctx context.Context, ref string) (*openstack.ImageDescriptor, error) {
			return partitionImage(), nil
		},
		ListNodesFunc: func(ctx context.Context, filter openstack.NodeFilter) ([]*openstack.Node, error) {
			return []*openstack.Node{node}, nil
		},
		ResolveNetworkFunc: func(ctx context.Context, ref string) (*openstack.Network, error) {
			return nil, openstack.ErrNotFound
		},
		ReleaseFunc: func(ctx context.Context, nodeUUID string) error {
			released = true
			return nil
		},
	}

	driver := newTestDriver(mock)
	_, err := driver.Deploy(context.Background(), baseRequest(), 0)

	require.Error(t, err)
	assert.True(t, provisioning.IsValidationError(err))
	assert.True(t, released)
}

func TestDeploySubmissionFailureRollsBackEverything(t *testing.T) {
	var deleted []string
	var detached []string
	released := false
	node := &openstack.Node{
		UUID:           "node-1",
		ResourceClass:  "compute",
		ProvisionState: openstack.StateAvailable,
		LocalDiskGB:    100,
	}
	mock := &openstack.MockClient{
		ResolveImageFunc: func(ctx context.Context, ref string) (*openstack.ImageDescriptor, error) {
			return partitionImage(), nil
		},
		ListNodesFunc: func(ctx context.Context, filter openstack.NodeFilter) ([]*openstack.Node, error) {
			return []*openstack.Node{node}, nil
		},
		CreatePortFunc: func(ctx context.Context, opts openstack.PortCreateOpts) (*openstack.Port, error) {
			return &openstack.Port{ID: "port-1"}, nil
		},
		ValidateFunc: func(ctx context.Context, nodeUUID string) error {
			return errors.New("missing deploy kernel")
		},
		DetachVIFFunc: func(ctx context.Context, nodeUUID, portID string) error {
			detached = append(detached, portID)
			return nil
		},
		DeletePortFunc: func(ctx context.Context, portID string) error {
			deleted = append(deleted, portID)
			return nil
		},
		ReleaseFunc: func(ctx context.Context, nodeUUID string) error {
			released = true
			return nil
		},
	}

	driver := newTestDriver(mock)
	_, err := driver.Deploy(context.Background(), baseRequest(), 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing deploy kernel")
	assert.Equal(t, []string{"port-1"}, detached)
	assert.Equal(t, []string{"port-1"}, deleted)
	assert.True(t, released)
}

func TestDeployNoWaitReturnsAfterSubmission(t *testing.T) {
	node := &openstack.Node{
		UUID:           "node-1",
		ResourceClass:  "compute",
		ProvisionState: openstack.StateAvailable,
		LocalDiskGB:    100,
	}
	mock := newHappyMock(node)
	mock.ProvisionStateFunc = func(ctx context.Context, nodeUUID string) (string, error) {
		t.Fatal("no polling expected without a wait")
		return "", nil
	}

	driver := newTestDriver(&mock.MockClient)
	instance, err := driver.Deploy(context.Background(), baseRequest(), 0)

	require.NoError(t, err)
	assert.True(t, mock.deployed)
	assert.NotEmpty(t, instance.UUID)
}

func TestDeployTimeoutLeavesStateAlone(t *testing.T) {
	node := &openstack.Node{
		UUID:           "node-1",
		ResourceClass:  "compute",
		ProvisionState: openstack.StateAvailable,
		LocalDiskGB:    100,
	}
	mock := newHappyMock(node)
	mock.ProvisionStateFunc = func(ctx context.Context, nodeUUID string) (string, error) {
		return openstack.StateDeploying, nil
	}
	rolledBack := false
	mock.DeletePortFunc = func(ctx context.Context, portID string) error {
		rolledBack = true
		return nil
	}
	mock.ReleaseFunc = func(ctx context.Context, nodeUUID string) error {
		rolledBack = true
		return nil
	}

	driver := newTestDriver(&mock.MockClient)
	_, err := driver.Deploy(context.Background(), baseRequest(), 20*time.Millisecond)

	require.Error(t, err)
	assert.True(t, provisioning.IsDeployTimeout(err))
	var timeout *provisioning.DeployTimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, openstack.StateDeploying, timeout.LastState)
	assert.False(t, rolledBack)
}

func TestDeployFailureStateRollsBack(t *testing.T) {
	node := &openstack.Node{
		UUID:           "node-1",
		ResourceClass:  "compute",
		ProvisionState: openstack.StateAvailable,
		LocalDiskGB:    100,
	}
	mock := newHappyMock(node)
	mock.ProvisionStateFunc = func(ctx context.Context, nodeUUID string) (string, error) {
		return openstack.StateDeployFail, nil
	}
	released := false
	mock.ReleaseFunc = func(ctx context.Context, nodeUUID string) error {
		released = true
		return nil
	}

	driver := newTestDriver(&mock.MockClient)
	_, err := driver.Deploy(context.Background(), baseRequest(), time.Second)

	require.Error(t, err)
	assert.Contains(t, err.Error(), openstack.StateDeployFail)
	assert.True(t, released)
}

func TestDeployMissingDiskSizeWithoutRootSizeFails(t *testing.T) {
	node := &openstack.Node{
		UUID:           "node-1",
		ResourceClass:  "compute",
		ProvisionState: openstack.StateAvailable,
		// No local disk size reported.
	}
	released := false
	mock := &openstack.MockClient{
		ResolveImageFunc: func(ctx context.Context, ref string) (*openstack.ImageDescriptor, error) {
			return partitionImage(), nil
		},
		ListNodesFunc: func(ctx context.Context, filter openstack.NodeFilter) ([]*openstack.Node, error) {
			return []*openstack.Node{node}, nil
		},
		CreatePortFunc: func(ctx context.Context, opts openstack.PortCreateOpts) (*openstack.Port, error) {
			return &openstack.Port{ID: "port-1"}, nil
		},
		ReleaseFunc: func(ctx context.Context, nodeUUID string) error {
			released = true
			return nil
		},
	}

	driver := newTestDriver(mock)
	_, err := driver.Deploy(context.Background(), baseRequest(), 0)

	require.Error(t, err)
	assert.True(t, provisioning.IsValidationError(err))
	assert.True(t, released)
}

func TestDeployAllReturnsOneResultPerRequest(t *testing.T) {
	node := &openstack.Node{
		UUID:           "node-1",
		ResourceClass:  "compute",
		ProvisionState: openstack.StateAvailable,
		LocalDiskGB:    100,
	}
	mock := newHappyMock(node)

	good := baseRequest()
	bad := baseRequest()
	bad.Image = ""

	driver := newTestDriver(&mock.MockClient)
	results := driver.DeployAll(context.Background(),
		[]*provisioning.InstanceRequest{good, bad}, 0)

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.NotNil(t, results[0].Instance)
	assert.Error(t, results[1].Err)
	assert.Same(t, bad, results[1].Request)
}
