package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/dubu/engine/renderer/metadata"
)

func vulkanBindPoint(p metadata.PipelineBindPoint) (vk.PipelineBindPoint, error) {
	switch p {
	case metadata.PIPELINE_BIND_POINT_GRAPHICS:
		return vk.PipelineBindPointGraphics, nil
	case metadata.PIPELINE_BIND_POINT_COMPUTE:
		return vk.PipelineBindPointCompute, nil
	default:
		return 0, fmt.Errorf("unknown pipeline bind point %d", p)
	}
}

func vulkanIndexType(t metadata.IndexType) (vk.IndexType, error) {
	switch t {
	case metadata.INDEX_TYPE_UINT16:
		return vk.IndexTypeUint16, nil
	case metadata.INDEX_TYPE_UINT32:
		return vk.IndexTypeUint32, nil
	default:
		return 0, fmt.Errorf("unknown index type %d", t)
	}
}

func bufferHandle(b *metadata.RenderBuffer) (vk.Buffer, error) {
	if b == nil {
		return vk.NullBuffer, fmt.Errorf("nil buffer")
	}
	internal, ok := b.InternalData.(*VulkanBuffer)
	if !ok || internal == nil {
		return vk.NullBuffer, fmt.Errorf("buffer %s was not created by this renderer", b.ID)
	}
	return internal.Handle, nil
}

// RecordDrawCommands records cmds, in order, into a command buffer that is
// already recording inside a render pass.
func RecordDrawCommands(cb vk.CommandBuffer, cmds []metadata.DrawCommand) error {
	for i, cmd := range cmds {
		if err := recordDrawCommand(cb, cmd); err != nil {
			return fmt.Errorf("draw command %d (%T): %w", i, cmd, err)
		}
	}
	return nil
}

func recordDrawCommand(cb vk.CommandBuffer, cmd metadata.DrawCommand) error {
	switch c := cmd.(type) {
	case *metadata.BindDescriptorSets:
		bindPoint, err := vulkanBindPoint(c.BindPoint)
		if err != nil {
			return err
		}
		layout, ok := c.PipelineLayout.InternalData.(vk.PipelineLayout)
		if !ok {
			return fmt.Errorf("pipeline layout was not created by this renderer")
		}
		sets := make([]vk.DescriptorSet, len(c.DescriptorSets))
		for i, s := range c.DescriptorSets {
			if sets[i], ok = s.InternalData.(vk.DescriptorSet); !ok {
				return fmt.Errorf("descriptor set %s was not created by this renderer", s.ID)
			}
		}
		vk.CmdBindDescriptorSets(cb, bindPoint, layout, c.FirstSet, uint32(len(sets)), sets, 0, nil)

	case *metadata.BindVertexBuffers:
		if len(c.Buffers) != len(c.Offsets) {
			return fmt.Errorf("%d vertex buffers with %d offsets", len(c.Buffers), len(c.Offsets))
		}
		buffers := make([]vk.Buffer, len(c.Buffers))
		offsets := make([]vk.DeviceSize, len(c.Offsets))
		for i, b := range c.Buffers {
			handle, err := bufferHandle(b)
			if err != nil {
				return err
			}
			buffers[i] = handle
			offsets[i] = vk.DeviceSize(c.Offsets[i])
		}
		vk.CmdBindVertexBuffers(cb, c.FirstBinding, uint32(len(buffers)), buffers, offsets)

	case *metadata.BindIndexBuffer:
		indexType, err := vulkanIndexType(c.IndexType)
		if err != nil {
			return err
		}
		handle, err := bufferHandle(c.Buffer)
		if err != nil {
			return err
		}
		vk.CmdBindIndexBuffer(cb, handle, vk.DeviceSize(c.Offset), indexType)

	case *metadata.DrawIndexed:
		vk.CmdDrawIndexed(cb, c.IndexCount, c.InstanceCount, c.FirstIndex, c.VertexOffset, c.FirstInstance)

	default:
		return fmt.Errorf("unsupported draw command")
	}
	return nil
}
