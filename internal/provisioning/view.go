package provisioning

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ironsmith-io/ironsmith/internal/platform/openstack"
)

// View is the read-only projection over the node and network services.
// Nothing is cached between calls; the services stay the source of truth.
type View struct {
	nodes    openstack.BareMetalService
	networks openstack.NetworkService
	log      *zap.Logger
}

// NewView creates a view over the given services.
func NewView(nodes openstack.BareMetalService, networks openstack.NetworkService, log *zap.Logger) *View {
	return &View{nodes: nodes, networks: networks, log: log.Named("view")}
}

// Show returns the instance hosted on the given node.
func (v *View) Show(ctx context.Context, nodeRef string) (*Instance, error) {
	node, err := v.nodes.GetNode(ctx, nodeRef)
	if err != nil {
		return nil, err
	}
	if node.InstanceUUID == "" {
		return nil, fmt.Errorf("node %s has no instance: %w", nodeRef, openstack.ErrNotFound)
	}

	vifs, err := v.nodes.ListVIFs(ctx, node.UUID)
	if err != nil {
		return nil, err
	}

	netNames := make(map[string]string)
	addresses := make(map[string][]string)
	for _, vif := range vifs {
		port, err := v.networks.GetPort(ctx, vif)
		if err != nil {
			if openstack.IsNotFound(err) {
				v.log.Warn("attached port no longer exists",
					zap.String("node", node.UUID), zap.String("port", vif))
				continue
			}
			return nil, err
		}
		v.collect(ctx, addresses, netNames, port)
	}

	return v.instance(node, addresses), nil
}

// List returns every instance known to the node service. The node and port
// listings are each fetched once; no per-instance queries are issued.
func (v *View) List(ctx context.Context) ([]*Instance, error) {
	associated := true
	nodes, err := v.nodes.ListNodes(ctx, openstack.NodeFilter{Associated: &associated})
	if err != nil {
		return nil, err
	}

	allPorts, err := v.networks.ListPorts(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*openstack.Port, len(allPorts))
	for _, port := range allPorts {
		byID[port.ID] = port
	}

	netNames := make(map[string]string)
	instances := make([]*Instance, 0, len(nodes))
	for _, node := range nodes {
		addresses := make(map[string][]string)
		for _, portID := range node.AttachedPorts {
			port, ok := byID[portID]
			if !ok {
				continue
			}
			v.collect(ctx, addresses, netNames, port)
		}
		instances = append(instances, v.instance(node, addresses))
	}
	return instances, nil
}

// collect groups the port's addresses under its network's name, resolving
// each network at most once per call.
func (v *View) collect(ctx context.Context, addresses map[string][]string, netNames map[string]string, port *openstack.Port) {
	name, ok := netNames[port.NetworkID]
	if !ok {
		name = port.NetworkID
		network, err := v.networks.ResolveNetwork(ctx, port.NetworkID)
		if err != nil {
			v.log.Warn("failed to resolve network", zap.String("network", port.NetworkID), zap.Error(err))
		} else if network.Name != "" {
			name = network.Name
		}
		netNames[port.NetworkID] = name
	}

	for _, ip := range port.FixedIPs {
		if ip.IPAddress != "" {
			addresses[name] = append(addresses[name], ip.IPAddress)
		}
	}
}

func (v *View) instance(node *openstack.Node, addresses map[string][]string) *Instance {
	hostname := node.Hostname
	if hostname == "" {
		hostname = node.Name
	}
	return &Instance{
		UUID:           node.InstanceUUID,
		NodeUUID:       node.UUID,
		NodeName:       node.Name,
		Hostname:       hostname,
		State:          StateFromNode(node),
		ProvisionState: node.ProvisionState,
		IPAddresses:    addresses,
		CreatedAt:      node.CreatedAt,
		UpdatedAt:      node.UpdatedAt,
	}
}
