package openstack

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/image/v2/images"
)

// imageClient implements ImageService over the image catalog API.
type imageClient struct {
	client *gophercloud.ServiceClient
}

var _ ImageService = (*imageClient)(nil)

// Resolve looks up an image by UUID or name and converts it into a
// deployable descriptor.
func (c *imageClient) Resolve(ctx context.Context, ref string) (*ImageDescriptor, error) {
	image, err := c.find(ctx, ref)
	if err != nil {
		return nil, err
	}

	desc := &ImageDescriptor{
		ID:         image.ID,
		Name:       image.Name,
		Location:   image.File,
		Checksum:   image.Checksum,
		DiskFormat: image.DiskFormat,
	}
	if kernel, ok := image.Properties["kernel_id"].(string); ok {
		desc.KernelRef = kernel
	}
	if ramdisk, ok := image.Properties["ramdisk_id"].(string); ok {
		desc.RamdiskRef = ramdisk
	}
	return desc, nil
}

func (c *imageClient) find(ctx context.Context, ref string) (*images.Image, error) {
	if _, err := uuid.Parse(ref); err == nil {
		image, err := images.Get(ctx, c.client, ref).Extract()
		if err != nil {
			return nil, fmt.Errorf("failed to get image %s: %w", ref, mapError(err))
		}
		return image, nil
	}

	pages, err := images.List(c.client, images.ListOpts{Name: ref}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list images named %s: %w", ref, mapError(err))
	}
	matches, err := images.ExtractImages(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract images: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("image %s: %w", ref, ErrNotFound)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("image name %s is ambiguous: %d matches", ref, len(matches))
	}
}
