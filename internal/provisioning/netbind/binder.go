// Package netbind resolves NIC specifications into concrete ports and binds
// them to the reserved node's physical interfaces. Any port it creates
// during a failed attempt is deleted before the error surfaces.
package netbind

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ironsmith-io/ironsmith/internal/platform/openstack"
	"github.com/ironsmith-io/ironsmith/internal/provisioning"
)

// Binder attaches requested NICs to a node.
type Binder struct {
	nodes    openstack.BareMetalService
	networks openstack.NetworkService
	log      *zap.Logger
}

// NewBinder creates a binder over the node and network services.
func NewBinder(nodes openstack.BareMetalService, networks openstack.NetworkService, log *zap.Logger) *Binder {
	return &Binder{nodes: nodes, networks: networks, log: log.Named("netbind")}
}

// Binding records the side effects of one successful Bind call. Created
// lists ports owned by the orchestrator; Attached lists every bound port,
// including caller-owned ones.
type Binding struct {
	Created  []string
	Attached []string
	Ports    []*openstack.Port
}

// Bind resolves each NIC in request order, creates ports where needed and
// attaches everything to the node. On failure the attempt is rolled back
// in full: ports attached during it are detached and ports created during
// it are deleted; rollback failures are reported as suppressed context of
// the primary error.
func (b *Binder) Bind(ctx context.Context, node *openstack.Node, nics []provisioning.NIC) (*Binding, error) {
	physical, err := b.nodes.ListNodePorts(ctx, node.UUID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect interfaces of node %s: %w", node.UUID, err)
	}
	if len(nics) > len(physical) {
		return nil, &provisioning.AttachmentError{
			NodeUUID: node.UUID,
			Reason: fmt.Sprintf("%d ports requested but the node has only %d physical interfaces",
				len(nics), len(physical)),
		}
	}

	binding := &Binding{}
	for _, nic := range nics {
		port, created, err := b.resolve(ctx, nic)
		if err != nil {
			return nil, provisioning.WithSuppressed(err, b.rollback(ctx, node, binding))
		}
		if created {
			binding.Created = append(binding.Created, port.ID)
			b.log.Info("port created",
				zap.String("port", port.ID), zap.String("node", node.UUID))
		}

		if err := b.nodes.AttachVIF(ctx, node.UUID, port.ID); err != nil {
			attachErr := &provisioning.AttachmentError{
				NodeUUID: node.UUID,
				Reason:   fmt.Sprintf("failed to attach port %s", port.ID),
				Err:      err,
			}
			suppressed := b.rollback(ctx, node, binding)
			if created {
				if derr := b.deletePort(ctx, port.ID); derr != nil {
					suppressed = append(suppressed, derr)
				}
			}
			return nil, provisioning.WithSuppressed(attachErr, suppressed)
		}
		binding.Attached = append(binding.Attached, port.ID)
		binding.Ports = append(binding.Ports, port)
		b.log.Info("port attached",
			zap.String("port", port.ID), zap.String("node", node.UUID))
	}

	return binding, nil
}

// resolve turns one NIC entry into a port, reporting whether it was created
// by this call.
func (b *Binder) resolve(ctx context.Context, nic provisioning.NIC) (*openstack.Port, bool, error) {
	kind, err := nic.Kind()
	if err != nil {
		return nil, false, err
	}

	switch kind {
	case provisioning.NICNetwork:
		network, err := b.networks.ResolveNetwork(ctx, nic.Network)
		if err != nil {
			return nil, false, &provisioning.ValidationError{
				Reason: fmt.Sprintf("cannot find network %s: %v", nic.Network, err),
			}
		}
		port, err := b.networks.CreatePort(ctx, openstack.PortCreateOpts{
			NetworkID: network.ID,
			FixedIP:   nic.FixedIP,
		})
		if err != nil {
			return nil, false, fmt.Errorf("failed to create port on network %s: %w", network.ID, err)
		}
		return port, true, nil

	case provisioning.NICSubnet:
		subnet, err := b.networks.ResolveSubnet(ctx, nic.Subnet)
		if err != nil {
			return nil, false, &provisioning.ValidationError{
				Reason: fmt.Sprintf("cannot find subnet %s: %v", nic.Subnet, err),
			}
		}
		port, err := b.networks.CreatePort(ctx, openstack.PortCreateOpts{
			SubnetID: subnet.ID,
			FixedIP:  nic.FixedIP,
		})
		if err != nil {
			return nil, false, fmt.Errorf("failed to create port on subnet %s: %w", subnet.ID, err)
		}
		return port, true, nil

	case provisioning.NICPort:
		port, err := b.networks.GetPort(ctx, nic.Port)
		if err != nil {
			return nil, false, &provisioning.ValidationError{
				Reason: fmt.Sprintf("cannot find port %s: %v", nic.Port, err),
			}
		}
		return port, false, nil
	}

	return nil, false, &provisioning.ValidationError{Reason: fmt.Sprintf("unsupported NIC kind %q", kind)}
}

// rollback undoes a partial attempt: detaches everything attached so far
// and deletes the ports this attempt created. Errors are collected, not
// raised, so the caller's primary error is preserved.
func (b *Binder) rollback(ctx context.Context, node *openstack.Node, binding *Binding) []error {
	return b.Unbind(ctx, node.UUID, binding.Created, binding.Attached)
}

// Unbind detaches the given ports from the node and deletes the created
// ones. "Already detached" and "already deleted" are success: Unbind is
// safe to run against any intermediate state. The returned errors are the
// failures of individual steps.
func (b *Binder) Unbind(ctx context.Context, nodeUUID string, created, attached []string) []error {
	var failures []error

	for _, portID := range union(attached, created) {
		if err := b.nodes.DetachVIF(ctx, nodeUUID, portID); err != nil {
			if openstack.IsNotFound(err) {
				b.log.Debug("port already detached",
					zap.String("port", portID), zap.String("node", nodeUUID))
				continue
			}
			failures = append(failures, fmt.Errorf("failed to detach port %s: %w", portID, err))
		}
	}

	for _, portID := range created {
		if err := b.deletePort(ctx, portID); err != nil {
			failures = append(failures, err)
		}
	}

	return failures
}

func (b *Binder) deletePort(ctx context.Context, portID string) error {
	if err := b.networks.DeletePort(ctx, portID); err != nil {
		if openstack.IsNotFound(err) {
			b.log.Debug("port already deleted", zap.String("port", portID))
			return nil
		}
		return fmt.Errorf("failed to delete port %s: %w", portID, err)
	}
	b.log.Info("port deleted", zap.String("port", portID))
	return nil
}

// union merges two ID lists preserving first-seen order.
func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var result []string
	for _, id := range append(append([]string{}, a...), b...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
