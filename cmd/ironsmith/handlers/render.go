package handlers

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ironsmith-io/ironsmith/internal/provisioning"
)

// instanceView is the YAML shape printed for every instance.
type instanceView struct {
	UUID           string              `yaml:"uuid"`
	Node           string              `yaml:"node"`
	NodeUUID       string              `yaml:"node_uuid"`
	Hostname       string              `yaml:"hostname,omitempty"`
	State          string              `yaml:"state"`
	ProvisionState string              `yaml:"provision_state"`
	IPAddresses    map[string][]string `yaml:"ip_addresses,omitempty"`
	CreatedAt      string              `yaml:"created_at,omitempty"`
}

func viewOf(instance *provisioning.Instance) instanceView {
	view := instanceView{
		UUID:           instance.UUID,
		Node:           instance.NodeName,
		NodeUUID:       instance.NodeUUID,
		Hostname:       instance.Hostname,
		State:          string(instance.State),
		ProvisionState: instance.ProvisionState,
		IPAddresses:    instance.IPAddresses,
	}
	if !instance.CreatedAt.IsZero() {
		view.CreatedAt = instance.CreatedAt.Format(time.RFC3339)
	}
	return view
}

func printInstances(w io.Writer, instances ...*provisioning.Instance) error {
	views := make([]instanceView, 0, len(instances))
	for _, instance := range instances {
		views = append(views, viewOf(instance))
	}
	out, err := yaml.Marshal(views)
	if err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	_, err = w.Write(out)
	return err
}
