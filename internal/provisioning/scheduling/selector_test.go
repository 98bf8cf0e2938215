package scheduling

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ironsmith-io/ironsmith/internal/platform/openstack"
	"github.com/ironsmith-io/ironsmith/internal/provisioning"
)

func availableNode(uuid, class string) *openstack.Node {
	return &openstack.Node{
		UUID:           uuid,
		ResourceClass:  class,
		ProvisionState: openstack.StateAvailable,
	}
}

func TestReservePicksFirstQualifyingNode(t *testing.T) {
	var reserved []string
	mock := &openstack.MockClient{
		ListNodesFunc: func(ctx context.Context, filter openstack.NodeFilter) ([]*openstack.Node, error) {
			assert.Equal(t, "compute", filter.ResourceClass)
			return []*openstack.Node{
				availableNode("node-1", "compute"),
				availableNode("node-2", "compute"),
			}, nil
		},
		ReserveFunc: func(ctx context.Context, nodeUUID, instanceUUID string) (*openstack.Node, error) {
			reserved = append(reserved, nodeUUID)
			return &openstack.Node{UUID: nodeUUID, InstanceUUID: instanceUUID}, nil
		},
	}

	selector := NewSelector(mock, zap.NewNop())
	node, err := selector.Reserve(context.Background(), &provisioning.InstanceRequest{
		ResourceClass: "compute",
	}, "instance-1")

	require.NoError(t, err)
	assert.Equal(t, "node-1", node.UUID)
	assert.Equal(t, "instance-1", node.InstanceUUID)
	assert.Equal(t, []string{"node-1"}, reserved)
}

func TestReserveEmptyPoolNeverCallsReserve(t *testing.T) {
	mock := &openstack.MockClient{
		ListNodesFunc: func(ctx context.Context, filter openstack.NodeFilter) ([]*openstack.Node, error) {
			return nil, nil
		},
		ReserveFunc: func(ctx context.Context, nodeUUID, instanceUUID string) (*openstack.Node, error) {
			t.Fatal("Reserve must not be called with an empty pool")
			return nil, nil
		},
	}

	selector := NewSelector(mock, zap.NewNop())
	_, err := selector.Reserve(context.Background(), &provisioning.InstanceRequest{
		ResourceClass: "compute",
	}, "instance-1")

	require.Error(t, err)
	assert.True(t, provisioning.IsNoNodesAvailable(err))
}

func TestReserveMovesOnAfterConflict(t *testing.T) {
	var attempts []string
	mock := &openstack.MockClient{
		ListNodesFunc: func(ctx context.Context, filter openstack.NodeFilter) ([]*openstack.Node, error) {
			return []*openstack.Node{
				availableNode("node-1", "compute"),
				availableNode("node-2", "compute"),
			}, nil
		},
		ReserveFunc: func(ctx context.Context, nodeUUID, instanceUUID string) (*openstack.Node, error) {
			attempts = append(attempts, nodeUUID)
			if nodeUUID == "node-1" {
				return nil, openstack.ErrConflict
			}
			return &openstack.Node{UUID: nodeUUID, InstanceUUID: instanceUUID}, nil
		},
	}

	selector := NewSelector(mock, zap.NewNop())
	node, err := selector.Reserve(context.Background(), &provisioning.InstanceRequest{
		ResourceClass: "compute",
	}, "instance-1")

	require.NoError(t, err)
	assert.Equal(t, "node-2", node.UUID)
	assert.Equal(t, []string{"node-1", "node-2"}, attempts)
}

func TestReserveAllConflictsExhaustsPool(t *testing.T) {
	mock := &openstack.MockClient{
		ListNodesFunc: func(ctx context.Context, filter openstack.NodeFilter) ([]*openstack.Node, error) {
			return []*openstack.Node{
				availableNode("node-1", "compute"),
				availableNode("node-2", "compute"),
			}, nil
		},
		ReserveFunc: func(ctx context.Context, nodeUUID, instanceUUID string) (*openstack.Node, error) {
			return nil, openstack.ErrConflict
		},
	}

	selector := NewSelector(mock, zap.NewNop())
	_, err := selector.Reserve(context.Background(), &provisioning.InstanceRequest{
		ResourceClass: "compute",
	}, "instance-1")

	require.Error(t, err)
	assert.True(t, provisioning.IsNoNodesAvailable(err))
}

func TestReserveCandidatesTriedInRequestOrder(t *testing.T) {
	nodes := map[string]*openstack.Node{
		"b": availableNode("b", "compute"),
		"a": availableNode("a", "compute"),
	}
	var attempts []string
	mock := &openstack.MockClient{
		GetNodeFunc: func(ctx context.Context, ref string) (*openstack.Node, error) {
			return nodes[ref], nil
		},
		ReserveFunc: func(ctx context.Context, nodeUUID, instanceUUID string) (*openstack.Node, error) {
			attempts = append(attempts, nodeUUID)
			return nodes[nodeUUID], nil
		},
	}

	selector := NewSelector(mock, zap.NewNop())
	node, err := selector.Reserve(context.Background(), &provisioning.InstanceRequest{
		ResourceClass: "compute",
		Candidates:    []string{"b", "a"},
	}, "instance-1")

	require.NoError(t, err)
	assert.Equal(t, "b", node.UUID)
	assert.Equal(t, []string{"b"}, attempts)
}

func TestReserveUnknownCandidateIsValidationError(t *testing.T) {
	mock := &openstack.MockClient{
		GetNodeFunc: func(ctx context.Context, ref string) (*openstack.Node, error) {
			return nil, openstack.ErrNotFound
		},
	}

	selector := NewSelector(mock, zap.NewNop())
	_, err := selector.Reserve(context.Background(), &provisioning.InstanceRequest{
		ResourceClass: "compute",
		Candidates:    []string{"ghost"},
	}, "instance-1")

	require.Error(t, err)
	assert.True(t, provisioning.IsValidationError(err))
}

func TestReserveAllCandidatesActiveIsAlreadyActive(t *testing.T) {
	mock := &openstack.MockClient{
		GetNodeFunc: func(ctx context.Context, ref string) (*openstack.Node, error) {
			return &openstack.Node{
				UUID:           ref,
				ResourceClass:  "compute",
				ProvisionState: openstack.StateActive,
				InstanceUUID:   "existing",
			}, nil
		},
	}

	selector := NewSelector(mock, zap.NewNop())
	_, err := selector.Reserve(context.Background(), &provisioning.InstanceRequest{
		ResourceClass: "compute",
		Candidates:    []string{"node-1", "node-2"},
	}, "instance-1")

	require.Error(t, err)
	assert.True(t, provisioning.IsAlreadyActive(err))
}

func TestReserveFiltersCapabilitiesAndTraits(t *testing.T) {
	plain := availableNode("plain", "compute")
	gpu := availableNode("gpu", "compute")
	gpu.Capabilities = map[string]string{"gpu": "true"}
	gpu.Traits = []string{"CUSTOM_GPU"}

	mock := &openstack.MockClient{
		ListNodesFunc: func(ctx context.Context, filter openstack.NodeFilter) ([]*openstack.Node, error) {
			return []*openstack.Node{plain, gpu}, nil
		},
		ReserveFunc: func(ctx context.Context, nodeUUID, instanceUUID string) (*openstack.Node, error) {
			return &openstack.Node{UUID: nodeUUID, InstanceUUID: instanceUUID}, nil
		},
	}

	selector := NewSelector(mock, zap.NewNop())
	node, err := selector.Reserve(context.Background(), &provisioning.InstanceRequest{
		ResourceClass: "compute",
		Capabilities:  map[string]string{"gpu": "true"},
		Traits:        []string{"CUSTOM_GPU"},
	}, "instance-1")

	require.NoError(t, err)
	assert.Equal(t, "gpu", node.UUID)
}

func TestReserveSkipsMaintenanceAndReservedNodes(t *testing.T) {
	reserved := availableNode("taken", "compute")
	reserved.InstanceUUID = "someone-else"
	maintenance := availableNode("broken", "compute")
	maintenance.Maintenance = true
	free := availableNode("free", "compute")

	mock := &openstack.MockClient{
		ListNodesFunc: func(ctx context.Context, filter openstack.NodeFilter) ([]*openstack.Node, error) {
			return []*openstack.Node{reserved, maintenance, free}, nil
		},
		ReserveFunc: func(ctx context.Context, nodeUUID, instanceUUID string) (*openstack.Node, error) {
			return &openstack.Node{UUID: nodeUUID, InstanceUUID: instanceUUID}, nil
		},
	}

	selector := NewSelector(mock, zap.NewNop())
	node, err := selector.Reserve(context.Background(), &provisioning.InstanceRequest{
		ResourceClass: "compute",
	}, "instance-1")

	require.NoError(t, err)
	assert.Equal(t, "free", node.UUID)
}

func TestReserveConcurrentSingleCandidateHasOneWinner(t *testing.T) {
	var mu sync.Mutex
	owner := ""
	mock := &openstack.MockClient{
		GetNodeFunc: func(ctx context.Context, ref string) (*openstack.Node, error) {
			return availableNode(ref, "compute"), nil
		},
		ReserveFunc: func(ctx context.Context, nodeUUID, instanceUUID string) (*openstack.Node, error) {
			mu.Lock()
			defer mu.Unlock()
			if owner != "" {
				return nil, openstack.ErrConflict
			}
			owner = instanceUUID
			return &openstack.Node{UUID: nodeUUID, InstanceUUID: instanceUUID}, nil
		},
	}

	selector := NewSelector(mock, zap.NewNop())
	req := &provisioning.InstanceRequest{
		ResourceClass: "compute",
		Candidates:    []string{"contested"},
	}

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = selector.Reserve(context.Background(), req, string(rune('a'+i)))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.True(t, provisioning.IsNoNodesAvailable(err))
		}
	}
	assert.Equal(t, 1, winners)
	assert.NotEmpty(t, owner)
}
