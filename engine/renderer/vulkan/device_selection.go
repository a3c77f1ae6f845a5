package vulkan

import (
	"errors"
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/dubu/engine/core"
)

// DiscreteGPUBonus is added to the score of discrete GPUs.
const DiscreteGPUBonus uint32 = 10000

var (
	ErrIncompleteQueueFamilies = errors.New("no graphics or present queue family")
	ErrMissingDeviceFeature    = errors.New("required device feature not supported")
	ErrMissingDeviceExtension  = errors.New("required device extension not supported")
)

type PhysicalDeviceRequirements struct {
	DeviceExtensionNames []string
	GeometryShader       bool
}

// DefaultPhysicalDeviceRequirements asks for presentation to a swapchain
// and geometry shader support.
func DefaultPhysicalDeviceRequirements() PhysicalDeviceRequirements {
	return PhysicalDeviceRequirements{
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
		GeometryShader:       true,
	}
}

// PhysicalDeviceCandidate is everything the selector needs to know about a
// physical device, read once from the driver.
type PhysicalDeviceCandidate struct {
	Handle              vk.PhysicalDevice
	Name                string
	DeviceType          vk.PhysicalDeviceType
	APIVersion          uint32
	DriverVersion       uint32
	MaxImageDimension2D uint32
	GeometryShader      bool
	Extensions          []string
	QueueFamilies       QueueFamilyIndices
}

func (c *PhysicalDeviceCandidate) String() string {
	return fmt.Sprintf("[%s] %s: apiVersion:%s", deviceTypeString(c.DeviceType), c.Name, versionString(c.APIVersion))
}

// EvaluateCandidate returns the score of c, or the reason it can not be used.
// Eligible candidates score DiscreteGPUBonus if discrete plus their maximum
// 2D image dimension.
func EvaluateCandidate(c *PhysicalDeviceCandidate, req PhysicalDeviceRequirements) (uint32, error) {
	if !c.QueueFamilies.IsComplete() {
		return 0, ErrIncompleteQueueFamilies
	}
	if req.GeometryShader && !c.GeometryShader {
		return 0, fmt.Errorf("%w: geometryShader", ErrMissingDeviceFeature)
	}
	if missing := MissingNames(req.DeviceExtensionNames, c.Extensions); len(missing) > 0 {
		return 0, fmt.Errorf("%w: %s", ErrMissingDeviceExtension, strings.Join(missing, ", "))
	}

	var score uint32
	if c.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
		score += DiscreteGPUBonus
	}
	score += c.MaxImageDimension2D
	return score, nil
}

// SelectCandidate returns the eligible candidate with the highest score.
// On a tie the one enumerated first wins.
func SelectCandidate(candidates []*PhysicalDeviceCandidate, req PhysicalDeviceRequirements) (*PhysicalDeviceCandidate, error) {
	if len(candidates) == 0 {
		return nil, core.ErrNoPhysicalDevices
	}

	var best *PhysicalDeviceCandidate
	var bestScore uint32
	for _, c := range candidates {
		score, err := EvaluateCandidate(c, req)
		if err != nil {
			core.LogInfo("Skipping device '%s': %s", c.Name, err)
			continue
		}
		core.LogDebug("Device '%s' scored %d.", c.Name, score)
		if best == nil || score > bestScore {
			best = c
			bestScore = score
		}
	}

	if best == nil {
		return nil, core.ErrNoSuitableDevice
	}
	return best, nil
}

// QueryCandidate reads the properties, features, extensions and queue
// families of device.
func QueryCandidate(device vk.PhysicalDevice, surface vk.Surface) (*PhysicalDeviceCandidate, error) {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(device, &properties)
	properties.Deref()
	properties.Limits.Deref()

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(device, &features)
	features.Deref()

	var extensionCount uint32
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(device, "", &extensionCount, nil)); err != nil {
		return nil, fmt.Errorf("failed to enumerate device extensions: %w", err)
	}
	available := make([]vk.ExtensionProperties, extensionCount)
	if extensionCount > 0 {
		if err := vk.Error(vk.EnumerateDeviceExtensionProperties(device, "", &extensionCount, available)); err != nil {
			return nil, fmt.Errorf("failed to enumerate device extensions: %w", err)
		}
	}

	families, err := QueryQueueFamilies(device, surface)
	if err != nil {
		return nil, err
	}

	return &PhysicalDeviceCandidate{
		Handle:              device,
		Name:                vk.ToString(properties.DeviceName[:]),
		DeviceType:          properties.DeviceType,
		APIVersion:          properties.ApiVersion,
		DriverVersion:       properties.DriverVersion,
		MaxImageDimension2D: properties.Limits.MaxImageDimension2D,
		GeometryShader:      features.GeometryShader == vk.True,
		Extensions:          extensionNames(available),
		QueueFamilies:       families,
	}, nil
}

func deviceTypeString(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "IntegratedGpu"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "DiscreteGpu"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "VirtualGpu"
	case vk.PhysicalDeviceTypeCpu:
		return "Cpu"
	default:
		return "Other"
	}
}
