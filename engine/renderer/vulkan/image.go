package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/dubu/engine/core"
	"github.com/spaghettifunk/dubu/engine/renderer/metadata"
)

// textureFormat is the RGBA8 image format textures in colorSpace are
// uploaded with. sRGB images are converted to linear when sampled, linear
// ones are read back unchanged.
func textureFormat(colorSpace metadata.TextureColorSpace) (vk.Format, error) {
	switch colorSpace {
	case metadata.TEXTURE_COLOR_SPACE_SRGB:
		return vk.FormatR8g8b8a8Srgb, nil
	case metadata.TEXTURE_COLOR_SPACE_LINEAR:
		return vk.FormatR8g8b8a8Unorm, nil
	default:
		return vk.FormatUndefined, fmt.Errorf("unsupported texture color space %d", colorSpace)
	}
}

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
}

// VulkanTexture is the InternalData of textures created by the renderer.
type VulkanTexture struct {
	Image   *VulkanImage
	Sampler vk.Sampler
}

func ImageCreate(context *VulkanContext, width, height uint32, format vk.Format, usage vk.ImageUsageFlagBits, memoryFlags vk.MemoryPropertyFlagBits) (*VulkanImage, error) {
	image := &VulkanImage{
		Width:  width,
		Height: height,
	}

	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if res := vk.CreateImage(context.Device.LogicalDevice, &imageInfo, context.Allocator, &image.Handle); res != vk.Success {
		return nil, fmt.Errorf("failed to create image: %s", VulkanResultString(res, true))
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, image.Handle, &requirements)
	requirements.Deref()

	memoryIndex := context.FindMemoryIndex(requirements.MemoryTypeBits, uint32(memoryFlags))
	if memoryIndex == -1 {
		image.Destroy(context)
		return nil, fmt.Errorf("required memory type not found, image not valid")
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &image.Memory); res != vk.Success {
		image.Destroy(context)
		return nil, fmt.Errorf("failed to allocate image memory: %s", VulkanResultString(res, true))
	}
	if res := vk.BindImageMemory(context.Device.LogicalDevice, image.Handle, image.Memory, 0); res != vk.Success {
		image.Destroy(context)
		return nil, fmt.Errorf("failed to bind image memory: %s", VulkanResultString(res, true))
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &image.View); res != vk.Success {
		image.Destroy(context)
		return nil, fmt.Errorf("failed to create image view: %s", VulkanResultString(res, true))
	}

	return image, nil
}

func (i *VulkanImage) Destroy(context *VulkanContext) {
	if i.View != vk.NullImageView {
		vk.DestroyImageView(context.Device.LogicalDevice, i.View, context.Allocator)
		i.View = vk.NullImageView
	}
	if i.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, i.Memory, context.Allocator)
		i.Memory = vk.NullDeviceMemory
	}
	if i.Handle != vk.NullImage {
		vk.DestroyImage(context.Device.LogicalDevice, i.Handle, context.Allocator)
		i.Handle = vk.NullImage
	}
}

// transitionLayout records a barrier moving the image between the layouts
// a texture upload goes through.
func (i *VulkanImage) transitionLayout(cb vk.CommandBuffer, oldLayout, newLayout vk.ImageLayout) error {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               i.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlagBits
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageTopOfPipeBit
		dstStage = vk.PipelineStageTransferBit
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageTransferBit
		dstStage = vk.PipelineStageFragmentShaderBit
	default:
		return fmt.Errorf("unsupported layout transition %d -> %d", oldLayout, newLayout)
	}

	vk.CmdPipelineBarrier(cb, vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage), 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	return nil
}

func (i *VulkanImage) copyFromBuffer(cb vk.CommandBuffer, buffer *VulkanBuffer) {
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{
			Width:  i.Width,
			Height: i.Height,
			Depth:  1,
		},
	}
	vk.CmdCopyBufferToImage(cb, buffer.Handle, i.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

// TextureCreate uploads RGBA8 pixels into a sampled, device-local image
// through a staging buffer and creates its sampler.
func TextureCreate(context *VulkanContext, name string, width, height uint32, colorSpace metadata.TextureColorSpace, pixels []uint8) (*metadata.Texture, error) {
	size := uint64(width) * uint64(height) * 4
	if width == 0 || height == 0 || uint64(len(pixels)) != size {
		return nil, fmt.Errorf("texture '%s': got %d bytes for %dx%d RGBA", name, len(pixels), width, height)
	}
	format, err := textureFormat(colorSpace)
	if err != nil {
		return nil, fmt.Errorf("texture '%s': %w", name, err)
	}

	staging, err := BufferCreate(context, metadata.RENDERBUFFER_TYPE_STAGING, size)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(context)

	if err := staging.LoadData(context, 0, pixels); err != nil {
		return nil, err
	}

	image, err := ImageCreate(context, width, height, format,
		vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit,
		vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		core.LogError("texture '%s': %s", name, err)
		return nil, err
	}

	var recordErr error
	err = singleUse(context, func(cb vk.CommandBuffer) {
		if recordErr = image.transitionLayout(cb, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); recordErr != nil {
			return
		}
		image.copyFromBuffer(cb, staging)
		recordErr = image.transitionLayout(cb, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
	if err == nil {
		err = recordErr
	}
	if err != nil {
		image.Destroy(context)
		return nil, fmt.Errorf("texture '%s' upload: %w", name, err)
	}

	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1.0,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler); res != vk.Success {
		image.Destroy(context)
		err := fmt.Errorf("texture '%s': failed to create sampler: %s", name, VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	return &metadata.Texture{
		ID:           core.NewResourceID(),
		Name:         name,
		Width:        width,
		Height:       height,
		ChannelCount: 4,
		ColorSpace:   colorSpace,
		InternalData: &VulkanTexture{
			Image:   image,
			Sampler: sampler,
		},
	}, nil
}

func TextureDestroy(context *VulkanContext, texture *metadata.Texture) {
	internal, ok := texture.InternalData.(*VulkanTexture)
	if !ok || internal == nil {
		return
	}
	if internal.Sampler != vk.NullSampler {
		vk.DestroySampler(context.Device.LogicalDevice, internal.Sampler, context.Allocator)
		internal.Sampler = vk.NullSampler
	}
	internal.Image.Destroy(context)
	texture.InternalData = nil
}
