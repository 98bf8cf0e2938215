// Package configdrive assembles the first-boot payload attached to a
// deploying node. Building is a pure transformation; no service is called.
package configdrive

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/ironsmith-io/ironsmith/internal/platform/openstack"
)

// User is an account to create on first boot via cloud-init.
type User struct {
	Name string `yaml:"name" mapstructure:"name"`

	// Admin adds the user to the wheel group.
	Admin bool `yaml:"admin,omitempty" mapstructure:"admin"`

	// Sudo grants passwordless sudo.
	Sudo bool `yaml:"sudo,omitempty" mapstructure:"sudo"`

	// PasswordHash enables password authentication when set.
	PasswordHash string `yaml:"password_hash,omitempty" mapstructure:"password_hash"`

	// SSHKeys overrides the instance-wide keys for this user.
	SSHKeys []string `yaml:"ssh_keys,omitempty" mapstructure:"ssh_keys"`
}

// Options are the inputs of one payload build.
type Options struct {
	// InstanceUUID is the generated identifier of this deployment.
	InstanceUUID string

	// NodeUUID and NodeName identify the reserved node.
	NodeUUID string
	NodeName string

	// Hostname defaults to the node name, then the node UUID.
	Hostname string

	SSHKeys []string

	// ExtraMetaData is merged into meta_data; reserved keys win.
	ExtraMetaData map[string]any

	// UserData is custom cloud-config content merged with Users.
	UserData map[string]any

	Users []User
}

// Build assembles the payload. The result is immutable by convention: it is
// built once per deployment and handed to the node service verbatim.
func Build(opts Options) (*openstack.ConfigDrive, error) {
	hostname := opts.Hostname
	if hostname == "" {
		hostname = opts.NodeName
	}
	if hostname == "" {
		hostname = opts.NodeUUID
	}

	// Some first-boot agents cannot handle a plain list here, so keys are
	// published as an index-to-key map.
	keys := make(map[string]string, len(opts.SSHKeys))
	for i, key := range opts.SSHKeys {
		keys[strconv.Itoa(i)] = key
	}

	metaData := make(map[string]any, len(opts.ExtraMetaData)+5)
	for k, v := range opts.ExtraMetaData {
		metaData[k] = v
	}
	metaData["public_keys"] = keys
	metaData["uuid"] = opts.InstanceUUID
	metaData["name"] = opts.NodeName
	metaData["hostname"] = hostname
	if _, ok := metaData["launch_index"]; !ok {
		metaData["launch_index"] = 0
	}

	userData, err := renderUserData(opts)
	if err != nil {
		return nil, err
	}

	return &openstack.ConfigDrive{
		MetaData: metaData,
		UserData: userData,
	}, nil
}

// renderUserData produces the cloud-config document, or an empty string
// when there is nothing to configure.
func renderUserData(opts Options) (string, error) {
	if len(opts.UserData) == 0 && len(opts.Users) == 0 {
		return "", nil
	}

	doc := make(map[string]any, len(opts.UserData)+1)
	for k, v := range opts.UserData {
		doc[k] = v
	}

	if len(opts.Users) > 0 {
		var users []any
		if existing, ok := doc["users"].([]any); ok {
			users = existing
		}
		for _, user := range opts.Users {
			record, err := userRecord(user, opts.SSHKeys)
			if err != nil {
				return "", err
			}
			users = append(users, record)
		}
		doc["users"] = users
	}

	body, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to render cloud-config: %w", err)
	}
	return "#cloud-config\n" + string(body), nil
}

func userRecord(user User, instanceKeys []string) (map[string]any, error) {
	keys := user.SSHKeys
	if len(keys) == 0 {
		keys = instanceKeys
	}
	if user.PasswordHash == "" && len(keys) == 0 {
		return nil, fmt.Errorf("user %s has no authentication method", user.Name)
	}

	record := map[string]any{"name": user.Name}
	if user.Admin {
		record["groups"] = []string{"wheel"}
	}
	if user.Sudo {
		record["sudo"] = "ALL=(ALL) NOPASSWD:ALL"
	}
	if user.PasswordHash != "" {
		record["passwd"] = user.PasswordHash
	}
	if len(keys) > 0 {
		record["ssh_authorized_keys"] = keys
	}
	return record, nil
}
