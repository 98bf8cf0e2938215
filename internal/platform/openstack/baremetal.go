package openstack

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/v1/nodes"
	bmports "github.com/gophercloud/gophercloud/v2/openstack/baremetal/v1/ports"
)

// baremetalClient implements BareMetalService over the node API.
type baremetalClient struct {
	client *gophercloud.ServiceClient
}

var _ BareMetalService = (*baremetalClient)(nil)

// ListNodes lists nodes filtered by resource class server-side; the
// remaining filter fields are applied locally because not every deployment
// of the service supports them as query parameters.
func (c *baremetalClient) ListNodes(ctx context.Context, filter NodeFilter) ([]*Node, error) {
	pages, err := nodes.ListDetail(c.client, nodes.ListOpts{
		ResourceClass: filter.ResourceClass,
	}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", mapError(err))
	}

	raw, err := nodes.ExtractNodes(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract nodes: %w", err)
	}

	var result []*Node
	for i := range raw {
		node := fromAPINode(&raw[i])
		if !matchesFilter(node, filter) {
			continue
		}
		result = append(result, node)
	}
	return result, nil
}

func matchesFilter(node *Node, filter NodeFilter) bool {
	if filter.ProvisionState != "" && node.ProvisionState != filter.ProvisionState {
		return false
	}
	if filter.ConductorGroup != "" && node.ConductorGroup != filter.ConductorGroup {
		return false
	}
	if filter.Associated != nil && (node.InstanceUUID != "") != *filter.Associated {
		return false
	}
	if filter.Maintenance != nil && node.Maintenance != *filter.Maintenance {
		return false
	}
	return true
}

// GetNode resolves a node by UUID or name.
func (c *baremetalClient) GetNode(ctx context.Context, ref string) (*Node, error) {
	raw, err := nodes.Get(ctx, c.client, ref).Extract()
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", ref, mapError(err))
	}
	return fromAPINode(raw), nil
}

// Reserve sets the instance marker. The service rejects the patch with a
// conflict when the marker is already set, which makes this the atomic
// claim the scheduler relies on.
func (c *baremetalClient) Reserve(ctx context.Context, nodeUUID, instanceUUID string) (*Node, error) {
	raw, err := nodes.Update(ctx, c.client, nodeUUID, nodes.UpdateOpts{
		nodes.UpdateOperation{
			Op:    nodes.AddOp,
			Path:  "/instance_uuid",
			Value: instanceUUID,
		},
	}).Extract()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve node %s: %w", nodeUUID, mapError(err))
	}
	return fromAPINode(raw), nil
}

// Release clears the instance marker; a missing marker is treated as
// already released.
func (c *baremetalClient) Release(ctx context.Context, nodeUUID string) error {
	_, err := nodes.Update(ctx, c.client, nodeUUID, nodes.UpdateOpts{
		nodes.UpdateOperation{
			Op:   nodes.RemoveOp,
			Path: "/instance_uuid",
		},
	}).Extract()
	if err != nil {
		err = mapError(err)
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to release node %s: %w", nodeUUID, err)
	}
	return nil
}

// vifURL builds the VIF sub-resource URL; the SDK does not cover the VIF
// attachment API, so the calls go through the service client directly.
func (c *baremetalClient) vifURL(nodeUUID string, parts ...string) string {
	elems := append([]string{"nodes", nodeUUID, "vifs"}, parts...)
	return c.client.ServiceURL(elems...)
}

// AttachVIF binds a port to the node's next free physical interface.
func (c *baremetalClient) AttachVIF(ctx context.Context, nodeUUID, portID string) error {
	body := map[string]any{"id": portID}
	_, err := c.client.Post(ctx, c.vifURL(nodeUUID), body, nil, &gophercloud.RequestOpts{
		OkCodes: []int{204},
	})
	if err != nil {
		return fmt.Errorf("failed to attach port %s to node %s: %w", portID, nodeUUID, mapError(err))
	}
	return nil
}

// DetachVIF unbinds a port from the node.
func (c *baremetalClient) DetachVIF(ctx context.Context, nodeUUID, portID string) error {
	_, err := c.client.Delete(ctx, c.vifURL(nodeUUID, portID), &gophercloud.RequestOpts{
		OkCodes: []int{204},
	})
	if err != nil {
		return fmt.Errorf("failed to detach port %s from node %s: %w", portID, nodeUUID, mapError(err))
	}
	return nil
}

// ListVIFs returns the ports currently bound to the node.
func (c *baremetalClient) ListVIFs(ctx context.Context, nodeUUID string) ([]string, error) {
	var response struct {
		VIFs []struct {
			ID string `json:"id"`
		} `json:"vifs"`
	}
	_, err := c.client.Get(ctx, c.vifURL(nodeUUID), &response, &gophercloud.RequestOpts{
		OkCodes: []int{200},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments of node %s: %w", nodeUUID, mapError(err))
	}

	ids := make([]string, 0, len(response.VIFs))
	for _, vif := range response.VIFs {
		ids = append(ids, vif.ID)
	}
	return ids, nil
}

// ListNodePorts returns the node's physical interfaces in service order.
func (c *baremetalClient) ListNodePorts(ctx context.Context, nodeUUID string) ([]string, error) {
	pages, err := bmports.List(c.client, bmports.ListOpts{NodeUUID: nodeUUID}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces of node %s: %w", nodeUUID, mapError(err))
	}
	raw, err := bmports.ExtractPorts(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract interfaces of node %s: %w", nodeUUID, err)
	}

	ids := make([]string, 0, len(raw))
	for _, port := range raw {
		ids = append(ids, port.UUID)
	}
	return ids, nil
}

// SetDeployInfo stores instance information for the next deployment.
func (c *baremetalClient) SetDeployInfo(ctx context.Context, nodeUUID string, info DeployInfo) error {
	ops := nodes.UpdateOpts{
		nodes.UpdateOperation{Op: nodes.AddOp, Path: "/instance_info/image_source", Value: info.ImageSource},
		nodes.UpdateOperation{Op: nodes.AddOp, Path: "/instance_info/root_gb", Value: info.RootGB},
		nodes.UpdateOperation{Op: nodes.AddOp, Path: "/instance_info/capabilities",
			Value: map[string]string{"boot_option": info.BootOption}},
	}
	if info.Kernel != "" {
		ops = append(ops, nodes.UpdateOperation{Op: nodes.AddOp, Path: "/instance_info/kernel", Value: info.Kernel})
	}
	if info.Ramdisk != "" {
		ops = append(ops, nodes.UpdateOperation{Op: nodes.AddOp, Path: "/instance_info/ramdisk", Value: info.Ramdisk})
	}
	if info.SwapMB > 0 {
		ops = append(ops, nodes.UpdateOperation{Op: nodes.AddOp, Path: "/instance_info/swap_mb", Value: info.SwapMB})
	}
	if info.Hostname != "" {
		ops = append(ops, nodes.UpdateOperation{Op: nodes.AddOp, Path: "/instance_info/ironsmith_hostname", Value: info.Hostname})
	}

	if _, err := nodes.Update(ctx, c.client, nodeUUID, ops).Extract(); err != nil {
		return fmt.Errorf("failed to set deploy info on node %s: %w", nodeUUID, mapError(err))
	}
	return nil
}

// RecordPorts persists port bookkeeping in the node's extra data.
func (c *baremetalClient) RecordPorts(ctx context.Context, nodeUUID string, created, attached []string) error {
	_, err := nodes.Update(ctx, c.client, nodeUUID, nodes.UpdateOpts{
		nodes.UpdateOperation{Op: nodes.AddOp, Path: "/extra/" + ExtraCreatedPorts, Value: created},
		nodes.UpdateOperation{Op: nodes.AddOp, Path: "/extra/" + ExtraAttachedPorts, Value: attached},
	}).Extract()
	if err != nil {
		return fmt.Errorf("failed to record ports on node %s: %w", nodeUUID, mapError(err))
	}
	return nil
}

// ClearPorts removes port bookkeeping; absent keys count as cleared.
func (c *baremetalClient) ClearPorts(ctx context.Context, nodeUUID string) error {
	_, err := nodes.Update(ctx, c.client, nodeUUID, nodes.UpdateOpts{
		nodes.UpdateOperation{Op: nodes.RemoveOp, Path: "/extra/" + ExtraCreatedPorts},
		nodes.UpdateOperation{Op: nodes.RemoveOp, Path: "/extra/" + ExtraAttachedPorts},
	}).Extract()
	if err != nil {
		err = mapError(err)
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to clear port bookkeeping on node %s: %w", nodeUUID, err)
	}
	return nil
}

// Validate asks the service whether the node can be deployed as configured.
func (c *baremetalClient) Validate(ctx context.Context, nodeUUID string) error {
	validation, err := nodes.Validate(ctx, c.client, nodeUUID).Extract()
	if err != nil {
		return fmt.Errorf("failed to validate node %s: %w", nodeUUID, mapError(err))
	}
	if !validation.Deploy.Result {
		return fmt.Errorf("node %s failed deploy validation: %s", nodeUUID, validation.Deploy.Reason)
	}
	return nil
}

// Deploy triggers the provision-state change to active with the config
// drive attached.
func (c *baremetalClient) Deploy(ctx context.Context, nodeUUID string, drive *ConfigDrive) error {
	opts := nodes.ProvisionStateOpts{Target: nodes.TargetActive}
	if drive != nil {
		opts.ConfigDrive = nodes.ConfigDrive{
			MetaData: drive.MetaData,
			UserData: drive.UserData,
		}
	}
	if err := nodes.ChangeProvisionState(ctx, c.client, nodeUUID, opts).ExtractErr(); err != nil {
		return fmt.Errorf("failed to start deployment of node %s: %w", nodeUUID, mapError(err))
	}
	return nil
}

// Undeploy triggers the provision-state change back to available.
func (c *baremetalClient) Undeploy(ctx context.Context, nodeUUID string) error {
	err := nodes.ChangeProvisionState(ctx, c.client, nodeUUID, nodes.ProvisionStateOpts{
		Target: nodes.TargetDeleted,
	}).ExtractErr()
	if err != nil {
		return fmt.Errorf("failed to start undeploy of node %s: %w", nodeUUID, mapError(err))
	}
	return nil
}

// ProvisionState queries the node's current provision state.
func (c *baremetalClient) ProvisionState(ctx context.Context, nodeUUID string) (string, error) {
	raw, err := nodes.Get(ctx, c.client, nodeUUID).Extract()
	if err != nil {
		return "", fmt.Errorf("failed to get state of node %s: %w", nodeUUID, mapError(err))
	}
	return raw.ProvisionState, nil
}

// fromAPINode converts the wire representation into the contract type.
func fromAPINode(raw *nodes.Node) *Node {
	node := &Node{
		UUID:           raw.UUID,
		Name:           raw.Name,
		ResourceClass:  raw.ResourceClass,
		Capabilities:   parseCapabilities(raw.Properties["capabilities"]),
		ConductorGroup: raw.ConductorGroup,
		ProvisionState: raw.ProvisionState,
		InstanceUUID:   raw.InstanceUUID,
		Maintenance:    raw.Maintenance,
		LocalDiskGB:    parseGB(raw.Properties["local_gb"]),
		CreatedAt:      raw.CreatedAt,
		UpdatedAt:      raw.UpdatedAt,
	}
	node.Traits = append(node.Traits, raw.Traits...)

	if hostname, ok := raw.InstanceInfo["ironsmith_hostname"].(string); ok {
		node.Hostname = hostname
	}
	node.CreatedPorts = stringList(raw.Extra[ExtraCreatedPorts])
	node.AttachedPorts = stringList(raw.Extra[ExtraAttachedPorts])
	return node
}

// parseCapabilities accepts both the map form and the legacy
// "key1:value1,key2:value2" string form of node capabilities.
func parseCapabilities(value any) map[string]string {
	caps := make(map[string]string)
	switch v := value.(type) {
	case map[string]any:
		for key, val := range v {
			caps[key] = fmt.Sprintf("%v", val)
		}
	case string:
		for _, pair := range strings.Split(v, ",") {
			if pair == "" {
				continue
			}
			parts := strings.SplitN(pair, ":", 2)
			if len(parts) == 2 {
				caps[parts[0]] = parts[1]
			}
		}
	}
	return caps
}

func parseGB(value any) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func stringList(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	var result []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}
