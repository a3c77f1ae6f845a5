package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/dubu/engine/core"
	"github.com/spaghettifunk/dubu/engine/renderer/metadata"
)

type VulkanBuffer struct {
	Handle      vk.Buffer
	Memory      vk.DeviceMemory
	TotalSize   uint64
	Usage       vk.BufferUsageFlagBits
	MemoryFlags vk.MemoryPropertyFlagBits
	MemoryIndex int32
}

// BufferFlags returns the usage and memory properties a buffer of the given
// type is created with. Device-local buffers can be both copied into and
// read back from.
func BufferFlags(renderbufferType metadata.RenderBufferType) (vk.BufferUsageFlagBits, vk.MemoryPropertyFlagBits, error) {
	hostVisible := vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	transfer := vk.BufferUsageTransferDstBit | vk.BufferUsageTransferSrcBit

	switch renderbufferType {
	case metadata.RENDERBUFFER_TYPE_VERTEX:
		return vk.BufferUsageVertexBufferBit | transfer, vk.MemoryPropertyDeviceLocalBit, nil
	case metadata.RENDERBUFFER_TYPE_INDEX:
		return vk.BufferUsageIndexBufferBit | transfer, vk.MemoryPropertyDeviceLocalBit, nil
	case metadata.RENDERBUFFER_TYPE_STORAGE:
		return vk.BufferUsageStorageBufferBit | transfer, vk.MemoryPropertyDeviceLocalBit, nil
	case metadata.RENDERBUFFER_TYPE_UNIFORM:
		return vk.BufferUsageUniformBufferBit | vk.BufferUsageTransferDstBit, hostVisible, nil
	case metadata.RENDERBUFFER_TYPE_STAGING:
		return vk.BufferUsageTransferSrcBit, hostVisible, nil
	case metadata.RENDERBUFFER_TYPE_READ:
		return vk.BufferUsageTransferDstBit, hostVisible, nil
	default:
		return 0, 0, fmt.Errorf("unsupported buffer type %s", renderbufferType)
	}
}

func BufferCreate(context *VulkanContext, renderbufferType metadata.RenderBufferType, totalSize uint64) (*VulkanBuffer, error) {
	usage, memoryFlags, err := BufferFlags(renderbufferType)
	if err != nil {
		return nil, err
	}

	buffer := &VulkanBuffer{
		TotalSize:   totalSize,
		Usage:       usage,
		MemoryFlags: memoryFlags,
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(totalSize),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &buffer.Handle); res != vk.Success {
		err := fmt.Errorf("failed to create %s buffer: %s", renderbufferType, VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, buffer.Handle, &requirements)
	requirements.Deref()

	buffer.MemoryIndex = context.FindMemoryIndex(requirements.MemoryTypeBits, uint32(memoryFlags))
	if buffer.MemoryIndex == -1 {
		vk.DestroyBuffer(context.Device.LogicalDevice, buffer.Handle, context.Allocator)
		err := fmt.Errorf("unable to create %s buffer because the required memory type index was not found", renderbufferType)
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(buffer.MemoryIndex),
	}
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &buffer.Memory); res != vk.Success {
		vk.DestroyBuffer(context.Device.LogicalDevice, buffer.Handle, context.Allocator)
		err := fmt.Errorf("unable to allocate memory for %s buffer: %s", renderbufferType, VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, buffer.Handle, buffer.Memory, 0); res != vk.Success {
		buffer.Destroy(context)
		err := fmt.Errorf("unable to bind memory of %s buffer: %s", renderbufferType, VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	return buffer, nil
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = vk.NullBuffer
	}
	b.TotalSize = 0
}

func (b *VulkanBuffer) hostVisible() bool {
	return b.MemoryFlags&vk.MemoryPropertyHostVisibleBit != 0
}

func (b *VulkanBuffer) checkRange(offset, size uint64) error {
	if offset+size > b.TotalSize || offset+size < offset {
		return fmt.Errorf("range [%d, %d) outside buffer of %d bytes", offset, offset+size, b.TotalSize)
	}
	return nil
}

// LoadData maps the range and copies data into it.
func (b *VulkanBuffer) LoadData(context *VulkanContext, offset uint64, data []byte) error {
	if !b.hostVisible() {
		return fmt.Errorf("buffer memory is not host visible")
	}
	if err := b.checkRange(offset, uint64(len(data))); err != nil {
		return err
	}

	var pData unsafe.Pointer
	if err := vk.Error(vk.MapMemory(context.Device.LogicalDevice, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &pData)); err != nil {
		return fmt.Errorf("failed to map buffer memory: %w", err)
	}
	vk.Memcopy(pData, data)
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	return nil
}

// ReadData maps the range and returns a copy of its content.
func (b *VulkanBuffer) ReadData(context *VulkanContext, offset, size uint64) ([]byte, error) {
	if !b.hostVisible() {
		return nil, fmt.Errorf("buffer memory is not host visible")
	}
	if err := b.checkRange(offset, size); err != nil {
		return nil, err
	}

	var pData unsafe.Pointer
	if err := vk.Error(vk.MapMemory(context.Device.LogicalDevice, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &pData)); err != nil {
		return nil, fmt.Errorf("failed to map buffer memory: %w", err)
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(pData), size))
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	return out, nil
}

// CopyTo records a copy of size bytes into dest on a single use command
// buffer and waits for the graphics queue to finish it.
func (b *VulkanBuffer) CopyTo(context *VulkanContext, sourceOffset uint64, dest *VulkanBuffer, destOffset uint64, size uint64) error {
	if err := b.checkRange(sourceOffset, size); err != nil {
		return err
	}
	if err := dest.checkRange(destOffset, size); err != nil {
		return err
	}

	return singleUse(context, func(cb vk.CommandBuffer) {
		region := vk.BufferCopy{
			SrcOffset: vk.DeviceSize(sourceOffset),
			DstOffset: vk.DeviceSize(destOffset),
			Size:      vk.DeviceSize(size),
		}
		vk.CmdCopyBuffer(cb, b.Handle, dest.Handle, 1, []vk.BufferCopy{region})
	})
}
