package scheduling

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ironsmith-io/ironsmith/internal/platform/openstack"
	"github.com/ironsmith-io/ironsmith/internal/provisioning"
)

// Selector finds and reserves one node per instance request.
type Selector struct {
	nodes openstack.BareMetalService
	log   *zap.Logger
}

// NewSelector creates a selector over the node service.
func NewSelector(nodes openstack.BareMetalService, log *zap.Logger) *Selector {
	return &Selector{nodes: nodes, log: log.Named("scheduler")}
}

// Reserve picks a node matching the request and claims it with the given
// instance marker. Selection is deterministic for identical inputs:
// explicit candidates are tried in request order, otherwise nodes are tried
// in listing order. Reservation races are resolved by moving on to the next
// qualifying node; the pool running dry is a NoNodesAvailableError.
func (s *Selector) Reserve(ctx context.Context, req *provisioning.InstanceRequest, instanceUUID string) (*openstack.Node, error) {
	pool, err := s.pool(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(req.Candidates) > 0 {
		if err := s.checkAlreadyActive(pool); err != nil {
			return nil, err
		}
	}

	qualifying, err := runFilters(filtersFor(req), pool)
	if err != nil {
		return nil, err
	}
	s.log.Debug("candidate pool filtered",
		zap.Int("pool", len(pool)), zap.Int("qualifying", len(qualifying)))

	for _, node := range qualifying {
		reserved, err := s.nodes.Reserve(ctx, node.UUID, instanceUUID)
		if err != nil {
			if openstack.IsConflict(err) {
				conflict := &provisioning.ReservationConflictError{NodeUUID: node.UUID}
				s.log.Info("lost reservation race, trying next node",
					zap.String("node", node.UUID), zap.Error(conflict))
				continue
			}
			return nil, fmt.Errorf("failed to reserve node %s: %w", node.UUID, err)
		}
		s.log.Info("node reserved",
			zap.String("node", reserved.UUID), zap.String("instance", instanceUUID))
		return reserved, nil
	}

	return nil, &provisioning.NoNodesAvailableError{
		Reason: "every qualifying node was reserved by another caller",
	}
}

// pool builds the candidate pool: the explicit candidates in request order,
// or all nodes of the requested resource class in listing order.
func (s *Selector) pool(ctx context.Context, req *provisioning.InstanceRequest) ([]*openstack.Node, error) {
	if len(req.Candidates) > 0 {
		nodes := make([]*openstack.Node, 0, len(req.Candidates))
		for _, ref := range req.Candidates {
			node, err := s.nodes.GetNode(ctx, ref)
			if err != nil {
				if openstack.IsNotFound(err) {
					return nil, &provisioning.ValidationError{
						Reason: fmt.Sprintf("candidate node %s does not exist", ref),
					}
				}
				return nil, err
			}
			nodes = append(nodes, node)
		}
		return nodes, nil
	}

	nodes, err := s.nodes.ListNodes(ctx, openstack.NodeFilter{
		ResourceClass: req.ResourceClass,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	if len(nodes) == 0 {
		return nil, &provisioning.NoNodesAvailableError{
			Reason: fmt.Sprintf("no nodes with resource class %q", req.ResourceClass),
		}
	}
	return nodes, nil
}

// checkAlreadyActive rejects a re-deploy when every explicit candidate
// already hosts an active instance. Re-submitting would not be idempotent,
// so the caller gets a dedicated error instead of a scheduling failure.
func (s *Selector) checkAlreadyActive(pool []*openstack.Node) error {
	for _, node := range pool {
		if node.ProvisionState != openstack.StateActive || node.InstanceUUID == "" {
			return nil
		}
	}
	return &provisioning.AlreadyActiveError{NodeUUID: pool[0].UUID}
}
