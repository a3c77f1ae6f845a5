package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/dubu/engine/core"
	"github.com/spaghettifunk/dubu/engine/platform"
	"github.com/spaghettifunk/dubu/engine/renderer"
	"github.com/spaghettifunk/dubu/engine/renderer/metadata"
)

// RendererConfig carries everything the backend needs to boot.
type RendererConfig struct {
	Framework FrameworkConfig
	Device    PhysicalDeviceRequirements
	// Number of material descriptor sets the pool can hold at once.
	MaxMaterialSets uint32
}

// VulkanRenderer owns the instance, the device and the descriptor objects
// materials are allocated from. It implements renderer.RendererBackend.
type VulkanRenderer struct {
	platform *platform.Platform
	config   RendererConfig
	context  *VulkanContext

	// Set 0 is reserved for global data and is empty for now, materials
	// bind at set 1.
	globalSetLayout   *metadata.DescriptorSetLayout
	materialSetLayout *metadata.DescriptorSetLayout
	descriptorPool    *metadata.DescriptorPool
	pipelineLayout    *metadata.PipelineLayout
}

var _ renderer.RendererBackend = (*VulkanRenderer)(nil)

func New(p *platform.Platform, config RendererConfig) *VulkanRenderer {
	return &VulkanRenderer{
		platform: p,
		config:   config,
	}
}

// Initialize creates the instance, the window surface, the device and the
// material descriptor objects. On error everything created so far is
// released.
func (vr *VulkanRenderer) Initialize() (err error) {
	defer func() {
		if err != nil {
			vr.Shutdown()
		}
	}()

	platformExtensions, err := vr.platform.GetRequiredExtensionNames()
	if err != nil {
		return err
	}

	vr.context, err = FrameworkCreate(vr.config.Framework, platformExtensions)
	if err != nil {
		return err
	}

	core.LogDebug("Creating Vulkan surface...")
	vr.context.Surface, err = vr.platform.CreateSurface(vr.context.Instance)
	if err != nil {
		core.LogError("Vulkan surface creation failed: %s", err)
		return err
	}
	core.LogDebug("Vulkan surface created.")

	if err = DeviceCreate(vr.context, vr.config.Device); err != nil {
		return err
	}

	vr.globalSetLayout, err = DescriptorSetLayoutCreate(vr.context, VulkanDescriptorSetConfig{})
	if err != nil {
		return err
	}
	materialConfig := MaterialDescriptorSetConfig()
	vr.materialSetLayout, err = DescriptorSetLayoutCreate(vr.context, materialConfig)
	if err != nil {
		return err
	}
	vr.descriptorPool, err = DescriptorPoolCreate(vr.context, materialConfig, vr.config.MaxMaterialSets)
	if err != nil {
		return err
	}
	vr.pipelineLayout, err = PipelineLayoutCreate(vr.context, []*metadata.DescriptorSetLayout{
		vr.globalSetLayout,
		vr.materialSetLayout,
	})
	if err != nil {
		return err
	}

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

// Shutdown waits for the device to go idle and destroys everything in the
// opposite order of creation. Safe on a partially initialized renderer.
func (vr *VulkanRenderer) Shutdown() {
	if vr.context == nil {
		return
	}
	if vr.context.Device != nil {
		vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

		if vr.pipelineLayout != nil {
			PipelineLayoutDestroy(vr.context, vr.pipelineLayout)
			vr.pipelineLayout = nil
		}
		if vr.descriptorPool != nil {
			DescriptorPoolDestroy(vr.context, vr.descriptorPool)
			vr.descriptorPool = nil
		}
		if vr.materialSetLayout != nil {
			DescriptorSetLayoutDestroy(vr.context, vr.materialSetLayout)
			vr.materialSetLayout = nil
		}
		if vr.globalSetLayout != nil {
			DescriptorSetLayoutDestroy(vr.context, vr.globalSetLayout)
			vr.globalSetLayout = nil
		}

		core.LogDebug("Destroying Vulkan device...")
		DeviceDestroy(vr.context)
	}
	FrameworkDestroy(vr.context)
	vr.context = nil
	core.LogInfo("Vulkan renderer shut down.")
}

func (vr *VulkanRenderer) DescriptorPool() *metadata.DescriptorPool {
	return vr.descriptorPool
}

func (vr *VulkanRenderer) MaterialSetLayout() *metadata.DescriptorSetLayout {
	return vr.materialSetLayout
}

func (vr *VulkanRenderer) PipelineLayout() *metadata.PipelineLayout {
	return vr.pipelineLayout
}

// WaitIdle blocks until the device finished all submitted work.
func (vr *VulkanRenderer) WaitIdle() {
	if vr.context == nil || vr.context.Device == nil {
		return
	}
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)
}

// DeviceName is the name of the selected physical device.
func (vr *VulkanRenderer) DeviceName() string {
	if vr.context == nil || vr.context.Device == nil {
		return ""
	}
	return vr.context.Device.Name
}

func internalBuffer(buffer *metadata.RenderBuffer) (*VulkanBuffer, error) {
	if buffer == nil {
		return nil, fmt.Errorf("nil buffer")
	}
	internal, ok := buffer.InternalData.(*VulkanBuffer)
	if !ok || internal == nil {
		return nil, fmt.Errorf("buffer %s was not created by this renderer", buffer.ID)
	}
	return internal, nil
}

func (vr *VulkanRenderer) RenderBufferCreate(renderbufferType metadata.RenderBufferType, totalSize uint64) (*metadata.RenderBuffer, error) {
	internal, err := BufferCreate(vr.context, renderbufferType, totalSize)
	if err != nil {
		return nil, err
	}
	return &metadata.RenderBuffer{
		ID:               core.NewResourceID(),
		RenderBufferType: renderbufferType,
		TotalSize:        totalSize,
		InternalData:     internal,
	}, nil
}

func (vr *VulkanRenderer) RenderBufferDestroy(buffer *metadata.RenderBuffer) {
	internal, err := internalBuffer(buffer)
	if err != nil {
		return
	}
	internal.Destroy(vr.context)
	buffer.InternalData = nil
}

func (vr *VulkanRenderer) RenderBufferLoadRange(buffer *metadata.RenderBuffer, offset uint64, data []byte) error {
	internal, err := internalBuffer(buffer)
	if err != nil {
		return err
	}
	return internal.LoadData(vr.context, offset, data)
}

func (vr *VulkanRenderer) RenderBufferRead(buffer *metadata.RenderBuffer, offset, size uint64) ([]byte, error) {
	internal, err := internalBuffer(buffer)
	if err != nil {
		return nil, err
	}
	return internal.ReadData(vr.context, offset, size)
}

func (vr *VulkanRenderer) RenderBufferCopyRange(source *metadata.RenderBuffer, sourceOffset uint64, dest *metadata.RenderBuffer, destOffset uint64, size uint64) error {
	src, err := internalBuffer(source)
	if err != nil {
		return err
	}
	dst, err := internalBuffer(dest)
	if err != nil {
		return err
	}
	return src.CopyTo(vr.context, sourceOffset, dst, destOffset, size)
}

func (vr *VulkanRenderer) TextureCreate(name string, width, height uint32, colorSpace metadata.TextureColorSpace, pixels []uint8) (*metadata.Texture, error) {
	return TextureCreate(vr.context, name, width, height, colorSpace, pixels)
}

func (vr *VulkanRenderer) TextureDestroy(texture *metadata.Texture) {
	TextureDestroy(vr.context, texture)
}

func (vr *VulkanRenderer) DescriptorSetAllocate(pool *metadata.DescriptorPool, layout *metadata.DescriptorSetLayout) (*metadata.DescriptorSet, error) {
	return DescriptorSetAllocate(vr.context, pool, layout)
}

func (vr *VulkanRenderer) DescriptorSetWriteTextures(set *metadata.DescriptorSet, firstBinding uint32, textures []*metadata.Texture) error {
	return DescriptorSetWriteTextures(vr.context, set, firstBinding, textures)
}

func (vr *VulkanRenderer) DescriptorSetFree(pool *metadata.DescriptorPool, set *metadata.DescriptorSet) {
	DescriptorSetFree(vr.context, pool, set)
}
