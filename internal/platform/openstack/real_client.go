package openstack

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
)

// baremetalMicroversion is the minimum node API microversion the
// orchestrator needs (traits, conductor groups, VIF attachments).
const baremetalMicroversion = "1.46"

// Clients bundles the real service clients behind the three contracts.
type Clients struct {
	BareMetal BareMetalService
	Image     ImageService
	Network   NetworkService
}

// ClientOpts configures the connection to the cloud.
type ClientOpts struct {
	// Region selects the service endpoints. Empty means the default
	// region of the catalog.
	Region string
}

// NewClients authenticates from the standard OS_* environment variables and
// builds clients for the node-management, image and network services.
func NewClients(ctx context.Context, opts ClientOpts) (*Clients, error) {
	ao, err := openstack.AuthOptionsFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to read auth options: %w", err)
	}
	ao.AllowReauth = true

	provider, err := openstack.AuthenticatedClient(ctx, ao)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	eo := gophercloud.EndpointOpts{Region: opts.Region}

	baremetal, err := openstack.NewBareMetalV1(provider, eo)
	if err != nil {
		return nil, fmt.Errorf("failed to create node service client: %w", err)
	}
	baremetal.Microversion = baremetalMicroversion

	image, err := openstack.NewImageV2(provider, eo)
	if err != nil {
		return nil, fmt.Errorf("failed to create image service client: %w", err)
	}

	network, err := openstack.NewNetworkV2(provider, eo)
	if err != nil {
		return nil, fmt.Errorf("failed to create network service client: %w", err)
	}

	return &Clients{
		BareMetal: &baremetalClient{client: baremetal},
		Image:     &imageClient{client: image},
		Network:   &networkClient{client: network},
	}, nil
}

// mapError translates SDK response codes into the package sentinels so the
// orchestrator can make idempotence decisions without knowing the SDK.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if gophercloud.ResponseCodeIs(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, err)
	}
	if gophercloud.ResponseCodeIs(err, http.StatusConflict) {
		return fmt.Errorf("%w: %s", ErrConflict, err)
	}
	return err
}
