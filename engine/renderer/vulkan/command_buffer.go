package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/dubu/engine/core"
)

type commandBufferState int

const (
	commandBufferFreed commandBufferState = iota
	commandBufferReady
	commandBufferRecording
	commandBufferEnded
	commandBufferSubmitted
)

func (s commandBufferState) String() string {
	switch s {
	case commandBufferFreed:
		return "freed"
	case commandBufferReady:
		return "ready"
	case commandBufferRecording:
		return "recording"
	case commandBufferEnded:
		return "ended"
	case commandBufferSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// next is the only state a command buffer may move to from s. Uploads are
// recorded once and submitted once, so the sequence is linear.
func (s commandBufferState) next() commandBufferState {
	switch s {
	case commandBufferReady:
		return commandBufferRecording
	case commandBufferRecording:
		return commandBufferEnded
	case commandBufferEnded:
		return commandBufferSubmitted
	default:
		return commandBufferFreed
	}
}

// uploadCommandBuffer is a primary command buffer recorded once for a
// transfer and freed as soon as the queue finished it.
type uploadCommandBuffer struct {
	handle vk.CommandBuffer
	pool   vk.CommandPool
	state  commandBufferState
}

func (cb *uploadCommandBuffer) advance(to commandBufferState) error {
	if want := cb.state.next(); to != want {
		return fmt.Errorf("command buffer is %s, cannot move to %s", cb.state, to)
	}
	cb.state = to
	return nil
}

func allocateUploadCommandBuffer(context *VulkanContext, pool vk.CommandPool) (*uploadCommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}
	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		err := fmt.Errorf("failed to allocate command buffer: %s", VulkanResultString(res, false))
		core.LogError(err.Error())
		return nil, err
	}
	return &uploadCommandBuffer{
		handle: handles[0],
		pool:   pool,
		state:  commandBufferReady,
	}, nil
}

func (cb *uploadCommandBuffer) begin() error {
	if err := cb.advance(commandBufferRecording); err != nil {
		return err
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(cb.handle, &beginInfo); res != vk.Success {
		return fmt.Errorf("failed to begin command buffer: %s", VulkanResultString(res, false))
	}
	return nil
}

// submitAndWait ends recording, submits to queue and blocks until the queue
// is idle.
func (cb *uploadCommandBuffer) submitAndWait(queue vk.Queue) error {
	if err := cb.advance(commandBufferEnded); err != nil {
		return err
	}
	if res := vk.EndCommandBuffer(cb.handle); res != vk.Success {
		return fmt.Errorf("failed to end command buffer: %s", VulkanResultString(res, false))
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.handle},
	}
	if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, nil); res != vk.Success {
		return fmt.Errorf("failed to submit command buffer: %s", VulkanResultString(res, false))
	}
	if err := cb.advance(commandBufferSubmitted); err != nil {
		return err
	}

	if res := vk.QueueWaitIdle(queue); res != vk.Success {
		return fmt.Errorf("queue failed to wait in idle mode: %s", VulkanResultString(res, false))
	}
	return nil
}

func (cb *uploadCommandBuffer) free(context *VulkanContext) {
	if cb.state == commandBufferFreed {
		return
	}
	vk.FreeCommandBuffers(context.Device.LogicalDevice, cb.pool, 1, []vk.CommandBuffer{cb.handle})
	cb.handle = nil
	cb.state = commandBufferFreed
}

// singleUse records the commands of record on a fresh command buffer,
// submits it on the graphics queue and waits for it. The command buffer is
// freed whatever the outcome.
func singleUse(context *VulkanContext, record func(cb vk.CommandBuffer)) error {
	cb, err := allocateUploadCommandBuffer(context, context.Device.GraphicsCommandPool)
	if err != nil {
		return err
	}
	defer cb.free(context)

	if err := cb.begin(); err != nil {
		core.LogError(err.Error())
		return err
	}
	record(cb.handle)
	if err := cb.submitAndWait(context.Device.GraphicsQueue); err != nil {
		core.LogError(err.Error())
		return err
	}
	return nil
}
