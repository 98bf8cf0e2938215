package handlers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ironsmith-io/ironsmith/internal/config"
	"github.com/ironsmith-io/ironsmith/internal/platform/openstack"
	"github.com/ironsmith-io/ironsmith/internal/provisioning"
	"github.com/ironsmith-io/ironsmith/internal/provisioning/deploy"
	"github.com/ironsmith-io/ironsmith/internal/provisioning/teardown"
)

// DeployOptions are the flag values of the deploy command.
type DeployOptions struct {
	ConfigPath string

	ResourceClass  string
	Image          string
	Networks       []string
	Subnets        []string
	Ports          []string
	RootSizeGB     int
	SwapSizeMB     int
	SSHKeyFile     string
	Hostname       string
	Candidates     []string
	Capabilities   map[string]string
	Traits         []string
	ConductorGroup string
	Netboot        bool
	Count          int

	NoWait  bool
	Timeout time.Duration
}

// flagRequest reports whether the flags describe an instance of their own,
// as opposed to only tweaking the file-declared ones.
func (o *DeployOptions) flagRequest() bool {
	return o.Image != "" || o.ResourceClass != "" ||
		len(o.Networks)+len(o.Subnets)+len(o.Ports) > 0 ||
		len(o.Candidates) > 0 || o.Hostname != ""
}

// Deploy handles the deploy command.
//
// It assembles the instance requests from the configuration file and the
// flags, deploys them concurrently and prints one outcome per instance.
// Requests with state absent are routed to teardown instead.
func Deploy(ctx context.Context, opts DeployOptions) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cfg := &config.Config{}
	if opts.ConfigPath != "" {
		cfg, err = config.Load(opts.ConfigPath)
		if err != nil {
			return err
		}
	}

	requests, err := buildRequests(cfg, &opts)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		return fmt.Errorf("nothing to deploy: declare instances in the config file or pass --image")
	}

	clients, err := newClients(ctx, cfg.Cloud.Region)
	if err != nil {
		return err
	}

	timeouts := config.LoadTimeouts()
	if opts.Timeout > 0 {
		timeouts.Deploy = opts.Timeout
		timeouts.Undeploy = opts.Timeout
	}
	wait := timeouts.Deploy
	if opts.NoWait {
		wait = 0
	}

	observer := provisioning.NewZapObserver(log)
	driver := deploy.NewDriver(clients.BareMetal, clients.Image, clients.Network,
		observer, timeouts, log)

	deploys, teardowns := splitByState(requests)

	results := driver.DeployAll(ctx, deploys, wait)
	results = append(results, runTeardowns(ctx, clients, observer, timeouts, log, teardowns, opts.NoWait)...)

	return report(results)
}

// buildRequests merges the file-declared instances with the flag-built one
// and applies the defaults section to each.
func buildRequests(cfg *config.Config, opts *DeployOptions) ([]*provisioning.InstanceRequest, error) {
	var requests []*provisioning.InstanceRequest
	for i := range cfg.Instances {
		requests = append(requests, &cfg.Instances[i])
	}

	if opts.flagRequest() {
		base, err := requestFromFlags(opts)
		if err != nil {
			return nil, err
		}
		requests = append(requests, replicate(base, opts.Count)...)
	} else if opts.Count > 1 {
		return nil, fmt.Errorf("--count needs a flag-described instance")
	}

	for _, req := range requests {
		cfg.Defaults.ApplyTo(req)
	}
	return requests, nil
}

// requestFromFlags builds one instance request from the deploy flags.
func requestFromFlags(opts *DeployOptions) (*provisioning.InstanceRequest, error) {
	var nics []provisioning.NIC
	for _, network := range opts.Networks {
		nics = append(nics, provisioning.NIC{Network: network})
	}
	for _, subnet := range opts.Subnets {
		nics = append(nics, provisioning.NIC{Subnet: subnet})
	}
	for _, port := range opts.Ports {
		nics = append(nics, provisioning.NIC{Port: port})
	}

	var keys []string
	if opts.SSHKeyFile != "" {
		loaded, err := readSSHKeys(opts.SSHKeyFile)
		if err != nil {
			return nil, err
		}
		keys = loaded
	}

	return &provisioning.InstanceRequest{
		ResourceClass:  opts.ResourceClass,
		Image:          opts.Image,
		NICs:           nics,
		Hostname:       opts.Hostname,
		Candidates:     opts.Candidates,
		Capabilities:   opts.Capabilities,
		Traits:         opts.Traits,
		ConductorGroup: opts.ConductorGroup,
		RootSizeGB:     opts.RootSizeGB,
		SwapSizeMB:     opts.SwapSizeMB,
		SSHKeys:        keys,
		Netboot:        opts.Netboot,
	}, nil
}

// replicate clones the request count times, suffixing the hostname so the
// copies stay distinguishable.
func replicate(base *provisioning.InstanceRequest, count int) []*provisioning.InstanceRequest {
	if count <= 1 {
		return []*provisioning.InstanceRequest{base}
	}
	requests := make([]*provisioning.InstanceRequest, 0, count)
	for i := 0; i < count; i++ {
		clone := *base
		if base.Hostname != "" {
			clone.Hostname = fmt.Sprintf("%s-%d", base.Hostname, i)
		}
		requests = append(requests, &clone)
	}
	return requests
}

func readSSHKeys(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key file: %w", err)
	}
	var keys []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no SSH keys found in %s", path)
	}
	return keys, nil
}

// splitByState separates deployable requests from the absent-state ones,
// which describe teardowns.
func splitByState(requests []*provisioning.InstanceRequest) (deploys, teardowns []*provisioning.InstanceRequest) {
	for _, req := range requests {
		if req.State == provisioning.StateAbsent {
			teardowns = append(teardowns, req)
			continue
		}
		deploys = append(deploys, req)
	}
	return deploys, teardowns
}

// runTeardowns tears down the absent-state instances, one per declared
// candidate node.
func runTeardowns(
	ctx context.Context,
	clients *openstack.Clients,
	observer provisioning.Observer,
	timeouts *config.Timeouts,
	log *zap.Logger,
	requests []*provisioning.InstanceRequest,
	noWait bool,
) []provisioning.Result {
	if len(requests) == 0 {
		return nil
	}

	driver := teardown.NewDriver(clients.BareMetal, clients.Network, observer, timeouts, log)
	wait := timeouts.Undeploy
	if noWait {
		wait = 0
	}

	var results []provisioning.Result
	for _, req := range requests {
		if len(req.Candidates) == 0 {
			results = append(results, provisioning.Result{
				Request: req,
				Err: &provisioning.ValidationError{
					Reason: "an absent-state instance needs candidates naming the nodes to tear down",
				},
			})
			continue
		}
		for _, node := range req.Candidates {
			results = append(results, provisioning.Result{
				Request: req,
				Err:     driver.Undeploy(ctx, node, wait),
			})
		}
	}
	return results
}

// report prints every outcome and fails when any instance failed.
func report(results []provisioning.Result) error {
	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "error: %v\n", result.Err)
			continue
		}
		if result.Instance != nil {
			if err := printInstances(os.Stdout, result.Instance); err != nil {
				return err
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d instances failed", failed, len(results))
	}
	return nil
}
