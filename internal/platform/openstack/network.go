package openstack

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/networks"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/ports"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/subnets"
)

// networkClient implements NetworkService over the network API.
type networkClient struct {
	client *gophercloud.ServiceClient
}

var _ NetworkService = (*networkClient)(nil)

// CreatePort creates a port on the given network or subnet.
func (c *networkClient) CreatePort(ctx context.Context, opts PortCreateOpts) (*Port, error) {
	createOpts := ports.CreateOpts{NetworkID: opts.NetworkID}

	if opts.SubnetID != "" {
		subnet, err := c.ResolveSubnet(ctx, opts.SubnetID)
		if err != nil {
			return nil, err
		}
		createOpts.NetworkID = subnet.NetworkID
		createOpts.FixedIPs = []ports.IP{{SubnetID: subnet.ID, IPAddress: opts.FixedIP}}
	} else if opts.FixedIP != "" {
		createOpts.FixedIPs = []ports.IP{{IPAddress: opts.FixedIP}}
	}

	port, err := ports.Create(ctx, c.client, createOpts).Extract()
	if err != nil {
		return nil, fmt.Errorf("failed to create port: %w", mapError(err))
	}
	return fromAPIPort(port), nil
}

// DeletePort removes a port.
func (c *networkClient) DeletePort(ctx context.Context, portID string) error {
	if err := ports.Delete(ctx, c.client, portID).ExtractErr(); err != nil {
		return fmt.Errorf("failed to delete port %s: %w", portID, mapError(err))
	}
	return nil
}

// GetPort resolves a port by ID or name.
func (c *networkClient) GetPort(ctx context.Context, ref string) (*Port, error) {
	if _, err := uuid.Parse(ref); err == nil {
		port, err := ports.Get(ctx, c.client, ref).Extract()
		if err != nil {
			return nil, fmt.Errorf("failed to get port %s: %w", ref, mapError(err))
		}
		return fromAPIPort(port), nil
	}

	pages, err := ports.List(c.client, ports.ListOpts{Name: ref}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ports named %s: %w", ref, mapError(err))
	}
	matches, err := ports.ExtractPorts(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract ports: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("port %s: %w", ref, ErrNotFound)
	}
	if len(matches) > 1 {
		return nil, fmt.Errorf("port name %s is ambiguous: %d matches", ref, len(matches))
	}
	return fromAPIPort(&matches[0]), nil
}

// ListPorts returns all ports visible to the caller in one query.
func (c *networkClient) ListPorts(ctx context.Context) ([]*Port, error) {
	pages, err := ports.List(c.client, ports.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", mapError(err))
	}
	raw, err := ports.ExtractPorts(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract ports: %w", err)
	}

	result := make([]*Port, 0, len(raw))
	for i := range raw {
		result = append(result, fromAPIPort(&raw[i]))
	}
	return result, nil
}

// ResolveNetwork resolves a network by ID or name.
func (c *networkClient) ResolveNetwork(ctx context.Context, ref string) (*Network, error) {
	if _, err := uuid.Parse(ref); err == nil {
		network, err := networks.Get(ctx, c.client, ref).Extract()
		if err != nil {
			return nil, fmt.Errorf("failed to get network %s: %w", ref, mapError(err))
		}
		return fromAPINetwork(network), nil
	}

	pages, err := networks.List(c.client, networks.ListOpts{Name: ref}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list networks named %s: %w", ref, mapError(err))
	}
	matches, err := networks.ExtractNetworks(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract networks: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("network %s: %w", ref, ErrNotFound)
	}
	if len(matches) > 1 {
		return nil, fmt.Errorf("network name %s is ambiguous: %d matches", ref, len(matches))
	}
	return fromAPINetwork(&matches[0]), nil
}

// ResolveSubnet resolves a subnet by ID or name.
func (c *networkClient) ResolveSubnet(ctx context.Context, ref string) (*Subnet, error) {
	if _, err := uuid.Parse(ref); err == nil {
		subnet, err := subnets.Get(ctx, c.client, ref).Extract()
		if err != nil {
			return nil, fmt.Errorf("failed to get subnet %s: %w", ref, mapError(err))
		}
		return &Subnet{ID: subnet.ID, Name: subnet.Name, NetworkID: subnet.NetworkID}, nil
	}

	pages, err := subnets.List(c.client, subnets.ListOpts{Name: ref}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subnets named %s: %w", ref, mapError(err))
	}
	matches, err := subnets.ExtractSubnets(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract subnets: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("subnet %s: %w", ref, ErrNotFound)
	}
	if len(matches) > 1 {
		return nil, fmt.Errorf("subnet name %s is ambiguous: %d matches", ref, len(matches))
	}
	return &Subnet{ID: matches[0].ID, Name: matches[0].Name, NetworkID: matches[0].NetworkID}, nil
}

func fromAPIPort(raw *ports.Port) *Port {
	port := &Port{
		ID:        raw.ID,
		Name:      raw.Name,
		NetworkID: raw.NetworkID,
	}
	for _, ip := range raw.FixedIPs {
		port.FixedIPs = append(port.FixedIPs, FixedIP{
			SubnetID:  ip.SubnetID,
			IPAddress: ip.IPAddress,
		})
	}
	return port
}

func fromAPINetwork(raw *networks.Network) *Network {
	return &Network{
		ID:        raw.ID,
		Name:      raw.Name,
		SubnetIDs: raw.Subnets,
	}
}
