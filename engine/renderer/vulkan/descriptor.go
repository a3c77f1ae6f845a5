package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/dubu/engine/core"
	"github.com/spaghettifunk/dubu/engine/renderer/metadata"
)

// MaterialTextureBindings is the number of combined image samplers in a
// material descriptor set: base colour, metallic-roughness and normal.
const MaterialTextureBindings uint32 = 3

/**
 * @brief The configuration for a descriptor set layout: one combined image
 * sampler per binding, visible to the fragment stage.
 */
type VulkanDescriptorSetConfig struct {
	/** @brief The number of bindings in this set. */
	BindingCount uint32
	/** @brief The binding layouts for this set. */
	Bindings []vk.DescriptorSetLayoutBinding
}

// MaterialDescriptorSetConfig describes the set every material owns.
func MaterialDescriptorSetConfig() VulkanDescriptorSetConfig {
	bindings := make([]vk.DescriptorSetLayoutBinding, MaterialTextureBindings)
	for i := range bindings {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		}
	}
	return VulkanDescriptorSetConfig{
		BindingCount: MaterialTextureBindings,
		Bindings:     bindings,
	}
}

func DescriptorSetLayoutCreate(context *VulkanContext, config VulkanDescriptorSetConfig) (*metadata.DescriptorSetLayout, error) {
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: config.BindingCount,
		PBindings:    config.Bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &layout); res != vk.Success {
		err := fmt.Errorf("failed to create descriptor set layout: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	return &metadata.DescriptorSetLayout{
		BindingCount: config.BindingCount,
		InternalData: layout,
	}, nil
}

func DescriptorSetLayoutDestroy(context *VulkanContext, layout *metadata.DescriptorSetLayout) {
	if handle, ok := layout.InternalData.(vk.DescriptorSetLayout); ok {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, handle, context.Allocator)
	}
	layout.InternalData = nil
}

// DescriptorPoolCreate creates a pool for maxSets sets of config's shape.
// Sets may be freed individually.
func DescriptorPoolCreate(context *VulkanContext, config VulkanDescriptorSetConfig, maxSets uint32) (*metadata.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{{
		Type:            vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: config.BindingCount * maxSets,
	}}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &pool); res != vk.Success {
		err := fmt.Errorf("failed to create descriptor pool: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	return &metadata.DescriptorPool{
		MaxSets:      maxSets,
		InternalData: pool,
	}, nil
}

func DescriptorPoolDestroy(context *VulkanContext, pool *metadata.DescriptorPool) {
	if handle, ok := pool.InternalData.(vk.DescriptorPool); ok {
		vk.DestroyDescriptorPool(context.Device.LogicalDevice, handle, context.Allocator)
	}
	pool.InternalData = nil
}

// PipelineLayoutCreate creates a pipeline layout over the given set layouts,
// in set index order.
func PipelineLayoutCreate(context *VulkanContext, setLayouts []*metadata.DescriptorSetLayout) (*metadata.PipelineLayout, error) {
	handles := make([]vk.DescriptorSetLayout, len(setLayouts))
	for i, l := range setLayouts {
		handles[i] = l.InternalData.(vk.DescriptorSetLayout)
	}
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(handles)),
		PSetLayouts:    handles,
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &layout); res != vk.Success {
		err := fmt.Errorf("failed to create pipeline layout: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	return &metadata.PipelineLayout{InternalData: layout}, nil
}

func PipelineLayoutDestroy(context *VulkanContext, layout *metadata.PipelineLayout) {
	if handle, ok := layout.InternalData.(vk.PipelineLayout); ok {
		vk.DestroyPipelineLayout(context.Device.LogicalDevice, handle, context.Allocator)
	}
	layout.InternalData = nil
}

func DescriptorSetAllocate(context *VulkanContext, pool *metadata.DescriptorPool, layout *metadata.DescriptorSetLayout) (*metadata.DescriptorSet, error) {
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool.InternalData.(vk.DescriptorPool),
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout.InternalData.(vk.DescriptorSetLayout)},
	}
	sets := make([]vk.DescriptorSet, 1)
	if err := vk.Error(vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocInfo, &(sets[0]))); err != nil {
		core.LogError("Failed to allocate descriptor set: %s", err)
		return nil, fmt.Errorf("failed to allocate descriptor set: %w", err)
	}
	return &metadata.DescriptorSet{
		ID:           core.NewResourceID(),
		Layout:       layout,
		InternalData: sets[0],
	}, nil
}

// DescriptorSetWriteTextures writes textures into consecutive combined image
// sampler bindings starting at firstBinding.
func DescriptorSetWriteTextures(context *VulkanContext, set *metadata.DescriptorSet, firstBinding uint32, textures []*metadata.Texture) error {
	handle := set.InternalData.(vk.DescriptorSet)
	writes := make([]vk.WriteDescriptorSet, 0, len(textures))
	for i, tex := range textures {
		binding := firstBinding + uint32(i)
		if set.Layout != nil && binding >= set.Layout.BindingCount {
			return fmt.Errorf("binding %d outside layout of %d bindings", binding, set.Layout.BindingCount)
		}
		internal, ok := tex.InternalData.(*VulkanTexture)
		if !ok || internal == nil {
			return fmt.Errorf("texture '%s' has no image", tex.Name)
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          handle,
			DstBinding:      binding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo: []vk.DescriptorImageInfo{{
				Sampler:     internal.Sampler,
				ImageView:   internal.Image.View,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}},
		})
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	return nil
}

func DescriptorSetFree(context *VulkanContext, pool *metadata.DescriptorPool, set *metadata.DescriptorSet) {
	handle, ok := set.InternalData.(vk.DescriptorSet)
	if !ok {
		return
	}
	sets := []vk.DescriptorSet{handle}
	if err := vk.Error(vk.FreeDescriptorSets(context.Device.LogicalDevice, pool.InternalData.(vk.DescriptorPool), 1, &(sets[0]))); err != nil {
		core.LogWarn("Failed to free descriptor set %s: %s", set.ID, err)
	}
	set.InternalData = nil
}
