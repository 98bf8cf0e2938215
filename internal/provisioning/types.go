package provisioning

import (
	"fmt"
	"regexp"
	"time"

	"github.com/ironsmith-io/ironsmith/internal/provisioning/configdrive"
)

// NodeState is the requested state of an instance.
type NodeState string

const (
	// StatePresent requests a fully deployed instance.
	StatePresent NodeState = "present"
	// StateReserved requests a node reservation without deployment.
	StateReserved NodeState = "reserved"
	// StateAbsent requests teardown of an existing instance.
	StateAbsent NodeState = "absent"
)

// NIC describes one requested virtual network attachment. Exactly one of
// Network, Subnet or Port must be set. FixedIP is only valid with Network
// or Subnet; ports referenced by Port are caller-owned and never deleted.
type NIC struct {
	Network string `yaml:"network,omitempty" mapstructure:"network"`
	Subnet  string `yaml:"subnet,omitempty" mapstructure:"subnet"`
	Port    string `yaml:"port,omitempty" mapstructure:"port"`
	FixedIP string `yaml:"fixed_ip,omitempty" mapstructure:"fixed_ip"`
}

// NICKind identifies the variant of a NIC entry.
type NICKind string

const (
	NICNetwork NICKind = "network"
	NICSubnet  NICKind = "subnet"
	NICPort    NICKind = "port"
)

// Kind returns the variant of this NIC entry, or an error when the entry
// does not carry exactly one variant.
func (n NIC) Kind() (NICKind, error) {
	set := 0
	var kind NICKind
	if n.Network != "" {
		set++
		kind = NICNetwork
	}
	if n.Subnet != "" {
		set++
		kind = NICSubnet
	}
	if n.Port != "" {
		set++
		kind = NICPort
	}
	if set != 1 {
		return "", &ValidationError{Reason: fmt.Sprintf(
			"a NIC must reference exactly one of network, subnet or port, got %+v", n)}
	}
	if kind == NICPort && n.FixedIP != "" {
		return "", &ValidationError{Reason: "a fixed IP cannot be requested for a pre-created port"}
	}
	return kind, nil
}

// InstanceRequest is the caller-supplied specification of one instance.
type InstanceRequest struct {
	// ResourceClass is the scheduling class the node must carry. Mandatory.
	ResourceClass string `yaml:"resource_class" mapstructure:"resource_class"`

	// Capabilities, Traits and ConductorGroup narrow the candidate pool.
	Capabilities   map[string]string `yaml:"capabilities,omitempty" mapstructure:"capabilities"`
	Traits         []string          `yaml:"traits,omitempty" mapstructure:"traits"`
	ConductorGroup string            `yaml:"conductor_group,omitempty" mapstructure:"conductor_group"`

	// Candidates restricts scheduling to the given nodes (names or UUIDs),
	// tried in the given order.
	Candidates []string `yaml:"candidates,omitempty" mapstructure:"candidates"`

	// Image is the image reference (name, UUID or URL). Mandatory.
	Image string `yaml:"image" mapstructure:"image"`

	// NICs are attached in order.
	NICs []NIC `yaml:"nics,omitempty" mapstructure:"nics"`

	// Hostname for the instance; defaults to the node name or UUID.
	Hostname string `yaml:"hostname,omitempty" mapstructure:"hostname"`

	// RootSizeGB is the root partition size. Zero means default from the
	// node's local disk size (partition images only).
	RootSizeGB int `yaml:"root_size_gb,omitempty" mapstructure:"root_size_gb"`

	// SwapSizeMB is the swap partition size; must be zero for whole-disk
	// images.
	SwapSizeMB int `yaml:"swap_size_mb,omitempty" mapstructure:"swap_size_mb"`

	// SSHKeys are public keys delivered via the config drive.
	SSHKeys []string `yaml:"ssh_keys,omitempty" mapstructure:"ssh_keys"`

	// ExtraMetaData is merged into the config drive meta_data.
	ExtraMetaData map[string]any `yaml:"extra_meta_data,omitempty" mapstructure:"extra_meta_data"`

	// UserData is extra cloud-config content.
	UserData map[string]any `yaml:"user_data,omitempty" mapstructure:"user_data"`

	// Users are accounts to create on first boot.
	Users []configdrive.User `yaml:"users,omitempty" mapstructure:"users"`

	// Netboot selects network boot for the final instance instead of
	// booting from the local disk.
	Netboot bool `yaml:"netboot,omitempty" mapstructure:"netboot"`

	// State is the requested instance state; defaults to present.
	State NodeState `yaml:"state,omitempty" mapstructure:"state"`
}

var hostnameRE = regexp.MustCompile(
	`^[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9](\.[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9])*$`)

// IsHostnameSafe reports whether hostname is a valid RFC 1123 host name.
func IsHostnameSafe(hostname string) bool {
	return len(hostname) <= 255 && hostnameRE.MatchString(hostname)
}

// Validate checks the request before any remote call is made.
func (r *InstanceRequest) Validate() error {
	if r.ResourceClass == "" {
		return &ValidationError{Reason: "a resource class is required"}
	}
	if r.State == "" {
		r.State = StatePresent
	}
	switch r.State {
	case StatePresent, StateReserved, StateAbsent:
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown requested state %q", r.State)}
	}
	if r.State != StateAbsent && r.Image == "" {
		return &ValidationError{Reason: "an image reference is required"}
	}
	if r.RootSizeGB < 0 {
		return &ValidationError{Reason: "the root size must be positive"}
	}
	if r.SwapSizeMB < 0 {
		return &ValidationError{Reason: "the swap size must be positive"}
	}
	if r.Hostname != "" && !IsHostnameSafe(r.Hostname) {
		return &ValidationError{Reason: fmt.Sprintf("%q is not a valid hostname", r.Hostname)}
	}
	for _, nic := range r.NICs {
		if _, err := nic.Kind(); err != nil {
			return err
		}
	}
	for _, user := range r.Users {
		if user.Name == "" {
			return &ValidationError{Reason: "a user record requires a name"}
		}
		if user.PasswordHash == "" && len(user.SSHKeys) == 0 && len(r.SSHKeys) == 0 {
			return &ValidationError{Reason: fmt.Sprintf(
				"user %s has no authentication method: provide SSH keys or a password hash", user.Name)}
		}
	}
	return nil
}

// Result is the per-instance outcome of a batch deploy. Exactly one of
// Instance and Err is set.
type Result struct {
	Request  *InstanceRequest
	Instance *Instance
	Err      error
}

// ReservedNode binds a request to a node once reservation succeeded.
type ReservedNode struct {
	NodeUUID     string
	NodeName     string
	InstanceUUID string

	// ReservedAt is when the reservation call succeeded.
	ReservedAt time.Time
}
