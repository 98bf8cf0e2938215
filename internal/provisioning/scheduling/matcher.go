// Package scheduling picks and reserves one node per instance request.
// Matching is pure predicate logic; the reservation call is the only side
// effect and the only cross-process synchronization point.
package scheduling

import (
	"fmt"
	"strings"

	"github.com/ironsmith-io/ironsmith/internal/platform/openstack"
	"github.com/ironsmith-io/ironsmith/internal/provisioning"
)

// Filter is one eligibility predicate over a node. Filters run in passes;
// a pass that eliminates the whole pool fails with a descriptive error.
type Filter interface {
	// OK reports whether the node is eligible.
	OK(node *openstack.Node) bool

	// Fail returns the error describing why the pool is empty after this
	// filter.
	Fail() error
}

// availabilityFilter keeps nodes that can be claimed at all: available
// provision state, no instance marker, not in maintenance.
type availabilityFilter struct{}

func (availabilityFilter) OK(node *openstack.Node) bool {
	return node.ProvisionState == openstack.StateAvailable &&
		node.InstanceUUID == "" &&
		!node.Maintenance
}

func (availabilityFilter) Fail() error {
	return &provisioning.NoNodesAvailableError{
		Reason: "no node is unreserved, available and out of maintenance",
	}
}

// nodeTypeFilter checks resource class and conductor group.
type nodeTypeFilter struct {
	resourceClass  string
	conductorGroup string
}

func (f nodeTypeFilter) OK(node *openstack.Node) bool {
	if f.resourceClass != "" && node.ResourceClass != f.resourceClass {
		return false
	}
	if f.conductorGroup != "" && node.ConductorGroup != f.conductorGroup {
		return false
	}
	return true
}

func (f nodeTypeFilter) Fail() error {
	reason := fmt.Sprintf("no node has resource class %q", f.resourceClass)
	if f.conductorGroup != "" {
		reason += fmt.Sprintf(" in conductor group %q", f.conductorGroup)
	}
	return &provisioning.NoNodesAvailableError{Reason: reason}
}

// capabilityFilter checks requested capabilities and traits.
type capabilityFilter struct {
	capabilities map[string]string
	traits       []string
}

func (f capabilityFilter) OK(node *openstack.Node) bool {
	for key, want := range f.capabilities {
		if got, ok := node.Capabilities[key]; !ok || got != want {
			return false
		}
	}
	for _, trait := range f.traits {
		if !hasTrait(node, trait) {
			return false
		}
	}
	return true
}

func hasTrait(node *openstack.Node, trait string) bool {
	for _, t := range node.Traits {
		if t == trait {
			return true
		}
	}
	return false
}

func (f capabilityFilter) Fail() error {
	var parts []string
	for key, value := range f.capabilities {
		parts = append(parts, key+"="+value)
	}
	parts = append(parts, f.traits...)
	return &provisioning.NoNodesAvailableError{
		Reason: "no node satisfies " + strings.Join(parts, ", "),
	}
}

// filtersFor builds the filter chain of one request.
func filtersFor(req *provisioning.InstanceRequest) []Filter {
	return []Filter{
		availabilityFilter{},
		nodeTypeFilter{
			resourceClass:  req.ResourceClass,
			conductorGroup: req.ConductorGroup,
		},
		capabilityFilter{
			capabilities: req.Capabilities,
			traits:       req.Traits,
		},
	}
}

// runFilters applies the chain pass by pass, preserving node order.
func runFilters(filters []Filter, nodes []*openstack.Node) ([]*openstack.Node, error) {
	for _, filter := range filters {
		var kept []*openstack.Node
		for _, node := range nodes {
			if filter.OK(node) {
				kept = append(kept, node)
			}
		}
		if len(kept) == 0 {
			return nil, filter.Fail()
		}
		nodes = kept
	}
	return nodes, nil
}
