package provisioning

import (
	"time"

	"github.com/ironsmith-io/ironsmith/internal/platform/openstack"
)

// InstanceState is the externally visible state of an instance.
type InstanceState string

const (
	InstanceDeploying   InstanceState = "deploying"
	InstanceActive      InstanceState = "active"
	InstanceMaintenance InstanceState = "maintenance"
	InstanceDeleting    InstanceState = "deleting"
	InstanceError       InstanceState = "error"
	InstanceUnknown     InstanceState = "unknown"
)

// deployingStates are provision states observed while a deployment is in
// flight. "available" is included because there is a window between
// claiming the node and the service starting the actual deployment.
var deployingStates = map[string]struct{}{
	openstack.StateDeploying:  {},
	openstack.StateWaitCall:   {},
	openstack.StateDeployDone: {},
	openstack.StateAvailable:  {},
}

// StateFromNode maps a node's provision state to the instance state.
func StateFromNode(node *openstack.Node) InstanceState {
	state := node.ProvisionState
	switch {
	case openstack.IsFailureState(state):
		return InstanceError
	case state == openstack.StateActive:
		if node.Maintenance {
			return InstanceMaintenance
		}
		return InstanceActive
	case state == openstack.StateDeleting || state == openstack.StateCleaning:
		return InstanceDeleting
	}
	if _, ok := deployingStates[state]; ok && node.InstanceUUID != "" {
		return InstanceDeploying
	}
	return InstanceUnknown
}

// Instance is the read-only projection of one provisioned node: node state
// joined with its attached ports and their addresses.
type Instance struct {
	// UUID is the instance marker recorded on the node.
	UUID string

	NodeUUID string
	NodeName string
	Hostname string

	State          InstanceState
	ProvisionState string

	// IPAddresses maps network names to the addresses of the attached
	// ports on that network.
	IPAddresses map[string][]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Healthy reports whether the instance is active or still progressing.
func (i *Instance) Healthy() bool {
	return i.State == InstanceActive || i.State == InstanceDeploying
}
