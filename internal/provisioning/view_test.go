package provisioning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ironsmith-io/ironsmith/internal/platform/openstack"
)

func activeNode(uuid, instance string) *openstack.Node {
	return &openstack.Node{
		UUID:           uuid,
		Name:           uuid + "-name",
		ProvisionState: openstack.StateActive,
		InstanceUUID:   instance,
	}
}

func TestShowJoinsPortsAndNetworks(t *testing.T) {
	node := activeNode("node-1", "inst-1")
	mock := &openstack.MockClient{
		GetNodeFunc: func(ctx context.Context, ref string) (*openstack.Node, error) {
			return node, nil
		},
		ListVIFsFunc: func(ctx context.Context, nodeUUID string) ([]string, error) {
			return []string{"port-1", "port-2"}, nil
		},
		GetPortFunc: func(ctx context.Context, ref string) (*openstack.Port, error) {
			ips := map[string]string{"port-1": "10.0.0.5", "port-2": "10.0.0.6"}
			return &openstack.Port{
				ID:        ref,
				NetworkID: "net-1",
				FixedIPs:  []openstack.FixedIP{{IPAddress: ips[ref]}},
			}, nil
		},
		ResolveNetworkFunc: func(ctx context.Context, ref string) (*openstack.Network, error) {
			return &openstack.Network{ID: ref, Name: "provisioning-net"}, nil
		},
	}

	view := NewView(mock, mock, zap.NewNop())
	instance, err := view.Show(context.Background(), "node-1")

	require.NoError(t, err)
	assert.Equal(t, "inst-1", instance.UUID)
	assert.Equal(t, InstanceActive, instance.State)
	assert.Equal(t, map[string][]string{
		"provisioning-net": {"10.0.0.5", "10.0.0.6"},
	}, instance.IPAddresses)
	assert.Equal(t, "node-1-name", instance.Hostname)
}

func TestShowUnreservedNodeIsNotFound(t *testing.T) {
	mock := &openstack.MockClient{
		GetNodeFunc: func(ctx context.Context, ref string) (*openstack.Node, error) {
			return &openstack.Node{UUID: ref, ProvisionState: openstack.StateAvailable}, nil
		},
	}

	view := NewView(mock, mock, zap.NewNop())
	_, err := view.Show(context.Background(), "node-1")

	require.Error(t, err)
	assert.True(t, openstack.IsNotFound(err))
}

func TestShowToleratesVanishedPorts(t *testing.T) {
	node := activeNode("node-1", "inst-1")
	mock := &openstack.MockClient{
		GetNodeFunc: func(ctx context.Context, ref string) (*openstack.Node, error) {
			return node, nil
		},
		ListVIFsFunc: func(ctx context.Context, nodeUUID string) ([]string, error) {
			return []string{"gone"}, nil
		},
		GetPortFunc: func(ctx context.Context, ref string) (*openstack.Port, error) {
			return nil, openstack.ErrNotFound
		},
	}

	view := NewView(mock, mock, zap.NewNop())
	instance, err := view.Show(context.Background(), "node-1")

	require.NoError(t, err)
	assert.Empty(t, instance.IPAddresses)
}

func TestListBatchesWithoutPerInstanceQueries(t *testing.T) {
	nodeA := activeNode("node-a", "inst-a")
	nodeA.AttachedPorts = []string{"port-a"}
	nodeB := activeNode("node-b", "inst-b")
	nodeB.AttachedPorts = []string{"port-b", "port-gone"}

	listPortCalls := 0
	mock := &openstack.MockClient{
		ListNodesFunc: func(ctx context.Context, filter openstack.NodeFilter) ([]*openstack.Node, error) {
			require.NotNil(t, filter.Associated)
			assert.True(t, *filter.Associated)
			return []*openstack.Node{nodeA, nodeB}, nil
		},
		ListPortsFunc: func(ctx context.Context) ([]*openstack.Port, error) {
			listPortCalls++
			return []*openstack.Port{
				{ID: "port-a", NetworkID: "net-1", FixedIPs: []openstack.FixedIP{{IPAddress: "10.0.0.5"}}},
				{ID: "port-b", NetworkID: "net-1", FixedIPs: []openstack.FixedIP{{IPAddress: "10.0.0.6"}}},
			}, nil
		},
		GetPortFunc: func(ctx context.Context, ref string) (*openstack.Port, error) {
			t.Fatal("List must not query ports one by one")
			return nil, nil
		},
		ListVIFsFunc: func(ctx context.Context, nodeUUID string) ([]string, error) {
			t.Fatal("List must not query VIFs per node")
			return nil, nil
		},
	}

	view := NewView(mock, mock, zap.NewNop())
	instances, err := view.List(context.Background())

	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, 1, listPortCalls)
	assert.Equal(t, map[string][]string{"net-1": {"10.0.0.5"}}, instances[0].IPAddresses)
	assert.Equal(t, map[string][]string{"net-1": {"10.0.0.6"}}, instances[1].IPAddresses)
}

func TestStateFromNodeMapping(t *testing.T) {
	cases := []struct {
		name string
		node openstack.Node
		want InstanceState
	}{
		{"active", openstack.Node{ProvisionState: openstack.StateActive, InstanceUUID: "i"}, InstanceActive},
		{"active maintenance", openstack.Node{ProvisionState: openstack.StateActive, Maintenance: true}, InstanceMaintenance},
		{"deploy failed", openstack.Node{ProvisionState: openstack.StateDeployFail}, InstanceError},
		{"error", openstack.Node{ProvisionState: openstack.StateError}, InstanceError},
		{"deleting", openstack.Node{ProvisionState: openstack.StateDeleting}, InstanceDeleting},
		{"cleaning", openstack.Node{ProvisionState: openstack.StateCleaning}, InstanceDeleting},
		{"deploying", openstack.Node{ProvisionState: openstack.StateDeploying, InstanceUUID: "i"}, InstanceDeploying},
		{"claimed not started", openstack.Node{ProvisionState: openstack.StateAvailable, InstanceUUID: "i"}, InstanceDeploying},
		{"manageable", openstack.Node{ProvisionState: openstack.StateManageable, InstanceUUID: "i"}, InstanceUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StateFromNode(&tc.node))
		})
	}
}
