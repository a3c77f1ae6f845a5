package vulkan

import (
	"fmt"
	"sort"

	vk "github.com/goki/vulkan"
)

// QueueFamilyIndices holds the family serving graphics and the one serving
// presentation. A value of -1 means no family was found.
type QueueFamilyIndices struct {
	Graphics int32
	Present  int32
}

func NoQueueFamilies() QueueFamilyIndices {
	return QueueFamilyIndices{Graphics: -1, Present: -1}
}

// IsComplete reports whether both a graphics and a present family exist.
func (q QueueFamilyIndices) IsComplete() bool {
	return q.Graphics >= 0 && q.Present >= 0
}

// UniqueFamilies returns the distinct family indices in ascending order.
// A device with one family doing both gets a single entry.
func (q QueueFamilyIndices) UniqueFamilies() []uint32 {
	set := map[uint32]struct{}{}
	if q.Graphics >= 0 {
		set[uint32(q.Graphics)] = struct{}{}
	}
	if q.Present >= 0 {
		set[uint32(q.Present)] = struct{}{}
	}
	families := make([]uint32, 0, len(set))
	for f := range set {
		families = append(families, f)
	}
	sort.Slice(families, func(i, j int) bool { return families[i] < families[j] })
	return families
}

// ResolveQueueFamilies picks the first family with graphics support and the
// first family for which supportsPresent is true. Families with no queues
// are ignored.
func ResolveQueueFamilies(families []vk.QueueFamilyProperties, supportsPresent func(index uint32) (bool, error)) (QueueFamilyIndices, error) {
	indices := NoQueueFamilies()

	for i := range families {
		family := families[i]
		if family.QueueCount == 0 {
			continue
		}

		if indices.Graphics < 0 && vk.QueueFlagBits(family.QueueFlags)&vk.QueueGraphicsBit != 0 {
			indices.Graphics = int32(i)
		}

		if indices.Present < 0 {
			ok, err := supportsPresent(uint32(i))
			if err != nil {
				return indices, fmt.Errorf("queue family %d: %w", i, err)
			}
			if ok {
				indices.Present = int32(i)
			}
		}

		if indices.IsComplete() {
			break
		}
	}
	return indices, nil
}

// QueryQueueFamilies asks the driver for the queue families of device and
// resolves them against surface.
func QueryQueueFamilies(device vk.PhysicalDevice, surface vk.Surface) (QueueFamilyIndices, error) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, families)
	for i := range families {
		families[i].Deref()
	}

	return ResolveQueueFamilies(families, func(index uint32) (bool, error) {
		var supported vk.Bool32 = vk.False
		if err := vk.Error(vk.GetPhysicalDeviceSurfaceSupport(device, index, surface, &supported)); err != nil {
			return false, err
		}
		return supported == vk.True, nil
	})
}
