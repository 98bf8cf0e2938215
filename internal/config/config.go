// Package config holds the orchestrator configuration: cloud connection
// settings, request defaults and timeouts. Defaults are merged into each
// instance request at construction time, never read from inside the
// orchestration logic.
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/ironsmith-io/ironsmith/internal/provisioning"
)

// Config is the application configuration.
type Config struct {
	// Cloud configures the connection to the external services.
	Cloud CloudConfig `mapstructure:"cloud" yaml:"cloud"`

	// Defaults are merged into every instance request.
	Defaults Defaults `mapstructure:"defaults" yaml:"defaults"`

	// Instances optionally declares a batch of instance requests for
	// `deploy` runs driven by a file instead of flags.
	Instances []provisioning.InstanceRequest `mapstructure:"instances" yaml:"instances"`
}

// CloudConfig selects the cloud endpoints. Credentials come from the
// standard environment variables.
type CloudConfig struct {
	Region string `mapstructure:"region" yaml:"region"`
}

// Defaults are request fields applied when the request leaves them unset.
type Defaults struct {
	ResourceClass  string             `mapstructure:"resource_class" yaml:"resource_class"`
	Image          string             `mapstructure:"image" yaml:"image"`
	NICs           []provisioning.NIC `mapstructure:"nics" yaml:"nics"`
	SSHKeys        []string           `mapstructure:"ssh_keys" yaml:"ssh_keys"`
	RootSizeGB     int                `mapstructure:"root_size_gb" yaml:"root_size_gb"`
	SwapSizeMB     int                `mapstructure:"swap_size_mb" yaml:"swap_size_mb"`
	ConductorGroup string             `mapstructure:"conductor_group" yaml:"conductor_group"`
	Capabilities   map[string]string  `mapstructure:"capabilities" yaml:"capabilities"`
	Traits         []string           `mapstructure:"traits" yaml:"traits"`
	Netboot        bool               `mapstructure:"netboot" yaml:"netboot"`
}

// ApplyTo fills unset request fields from the defaults.
func (d *Defaults) ApplyTo(req *provisioning.InstanceRequest) {
	if req.ResourceClass == "" {
		req.ResourceClass = d.ResourceClass
	}
	if req.Image == "" {
		req.Image = d.Image
	}
	if len(req.NICs) == 0 {
		req.NICs = append(req.NICs, d.NICs...)
	}
	if len(req.SSHKeys) == 0 {
		req.SSHKeys = append(req.SSHKeys, d.SSHKeys...)
	}
	if req.RootSizeGB == 0 {
		req.RootSizeGB = d.RootSizeGB
	}
	if req.SwapSizeMB == 0 {
		req.SwapSizeMB = d.SwapSizeMB
	}
	if req.ConductorGroup == "" {
		req.ConductorGroup = d.ConductorGroup
	}
	if len(req.Capabilities) == 0 && len(d.Capabilities) > 0 {
		req.Capabilities = make(map[string]string, len(d.Capabilities))
		for k, v := range d.Capabilities {
			req.Capabilities[k] = v
		}
	}
	if len(req.Traits) == 0 {
		req.Traits = append(req.Traits, d.Traits...)
	}
	if !req.Netboot {
		req.Netboot = d.Netboot
	}
}

// Load reads and decodes the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	var cfg Config
	if err := mapstructure.Decode(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}
