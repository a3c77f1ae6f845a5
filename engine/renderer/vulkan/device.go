package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/dubu/engine/core"
)

type VulkanDevice struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device
	Name           string

	QueueFamilies QueueFamilyIndices
	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Extensions []string
}

// DeviceCreate picks the best physical device for context.Surface, creates
// the logical device with one queue per distinct family and the graphics
// command pool.
func DeviceCreate(context *VulkanContext, requirements PhysicalDeviceRequirements) error {
	candidate, err := selectPhysicalDevice(context, requirements)
	if err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, 0, 2)
	for _, family := range candidate.QueueFamilies.UniqueFamilies() {
		queueCreateInfos = append(queueCreateInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(requirements.DeviceExtensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(requirements.DeviceExtensionNames),
		// Deprecated and ignored, so pass nothing.
		EnabledLayerCount:   0,
		PpEnabledLayerNames: nil,
	}

	device := &VulkanDevice{
		PhysicalDevice: candidate.Handle,
		Name:           candidate.Name,
		QueueFamilies:  candidate.QueueFamilies,
		Extensions:     requirements.DeviceExtensionNames,
	}

	if res := vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &device.LogicalDevice); res != vk.Success {
		err := fmt.Errorf("failed to create logical device: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.QueueFamilies.Graphics), 0, &device.GraphicsQueue)
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.QueueFamilies.Present), 0, &device.PresentQueue)
	core.LogInfo("Queues obtained.")

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(device.QueueFamilies.Graphics),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vk.CreateCommandPool(device.LogicalDevice, &poolCreateInfo, context.Allocator, &device.GraphicsCommandPool); res != vk.Success {
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		err := fmt.Errorf("failed to create graphics command pool: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Graphics command pool created.")

	context.Device = device
	return nil
}

func selectPhysicalDevice(context *VulkanContext, requirements PhysicalDeviceRequirements) (*PhysicalDeviceCandidate, error) {
	var physicalDeviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil)); err != nil {
		return nil, fmt.Errorf("failed to enumerate physical devices: %w", err)
	}
	if physicalDeviceCount == 0 {
		core.LogError("No devices which support Vulkan were found.")
		return nil, core.ErrNoPhysicalDevices
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices)); err != nil {
		return nil, fmt.Errorf("failed to enumerate physical devices: %w", err)
	}

	core.LogInfo("Available physical devices:")
	candidates := make([]*PhysicalDeviceCandidate, 0, physicalDeviceCount)
	for _, pd := range physicalDevices {
		candidate, err := QueryCandidate(pd, context.Surface)
		if err != nil {
			core.LogWarn("Unable to query physical device: %s", err)
			continue
		}
		core.LogInfo("\t%s", candidate)
		candidates = append(candidates, candidate)
	}

	selected, err := SelectCandidate(candidates, requirements)
	if err != nil {
		core.LogError("No physical devices were found which meet the requirements.")
		return nil, err
	}

	core.LogInfo("Selected device: '%s'.", selected.Name)
	core.LogInfo("GPU Driver version: %s", versionString(selected.DriverVersion))
	core.LogInfo("Vulkan API version: %s", versionString(selected.APIVersion))
	core.LogDebug("Graphics Family Index: %d", selected.QueueFamilies.Graphics)
	core.LogDebug("Present Family Index:  %d", selected.QueueFamilies.Present)
	return selected, nil
}

func DeviceDestroy(context *VulkanContext) {
	if context.Device == nil {
		return
	}

	// Unset queues
	context.Device.GraphicsQueue = nil
	context.Device.PresentQueue = nil

	core.LogInfo("Destroying command pools...")
	vk.DestroyCommandPool(context.Device.LogicalDevice, context.Device.GraphicsCommandPool, context.Allocator)

	core.LogInfo("Destroying logical device...")
	if context.Device.LogicalDevice != nil {
		vk.DestroyDevice(context.Device.LogicalDevice, context.Allocator)
		context.Device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	context.Device.PhysicalDevice = nil
	context.Device.QueueFamilies = NoQueueFamilies()
	context.Device = nil
}
