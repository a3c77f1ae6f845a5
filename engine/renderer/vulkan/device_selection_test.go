package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/dubu/engine/core"
)

func candidate(name string, deviceType vk.PhysicalDeviceType, maxDim uint32) *PhysicalDeviceCandidate {
	return &PhysicalDeviceCandidate{
		Name:                name,
		DeviceType:          deviceType,
		MaxImageDimension2D: maxDim,
		GeometryShader:      true,
		Extensions:          []string{vk.KhrSwapchainExtensionName, "VK_KHR_maintenance1"},
		QueueFamilies:       QueueFamilyIndices{Graphics: 0, Present: 0},
	}
}

func TestEvaluateCandidate(t *testing.T) {
	req := DefaultPhysicalDeviceRequirements()

	tests := []struct {
		name    string
		mutate  func(*PhysicalDeviceCandidate)
		want    uint32
		wantErr error
	}{
		{
			name: "discrete",
			want: DiscreteGPUBonus + 16384,
		},
		{
			name:   "integrated",
			mutate: func(c *PhysicalDeviceCandidate) { c.DeviceType = vk.PhysicalDeviceTypeIntegratedGpu },
			want:   16384,
		},
		{
			name:    "no present family",
			mutate:  func(c *PhysicalDeviceCandidate) { c.QueueFamilies.Present = -1 },
			wantErr: ErrIncompleteQueueFamilies,
		},
		{
			name:    "no graphics family",
			mutate:  func(c *PhysicalDeviceCandidate) { c.QueueFamilies.Graphics = -1 },
			wantErr: ErrIncompleteQueueFamilies,
		},
		{
			name:    "no geometry shader",
			mutate:  func(c *PhysicalDeviceCandidate) { c.GeometryShader = false },
			wantErr: ErrMissingDeviceFeature,
		},
		{
			name:    "no swapchain",
			mutate:  func(c *PhysicalDeviceCandidate) { c.Extensions = []string{"VK_KHR_maintenance1"} },
			wantErr: ErrMissingDeviceExtension,
		},
		{
			name:   "eligible with zero dimension",
			mutate: func(c *PhysicalDeviceCandidate) { c.DeviceType = vk.PhysicalDeviceTypeCpu; c.MaxImageDimension2D = 0 },
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidate(tt.name, vk.PhysicalDeviceTypeDiscreteGpu, 16384)
			if tt.mutate != nil {
				tt.mutate(c)
			}
			got, err := EvaluateCandidate(c, req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("EvaluateCandidate: %v", err)
			}
			if got != tt.want {
				t.Errorf("score = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEvaluateCandidateRequirementsFromConfig(t *testing.T) {
	c := candidate("gpu", vk.PhysicalDeviceTypeIntegratedGpu, 8192)
	c.GeometryShader = false

	req := PhysicalDeviceRequirements{DeviceExtensionNames: []string{"VK_KHR_maintenance1"}}
	if _, err := EvaluateCandidate(c, req); err != nil {
		t.Errorf("geometry shader not required, got %v", err)
	}

	req.DeviceExtensionNames = append(req.DeviceExtensionNames, "VK_KHR_ray_query")
	_, err := EvaluateCandidate(c, req)
	if !errors.Is(err, ErrMissingDeviceExtension) {
		t.Fatalf("err = %v, want ErrMissingDeviceExtension", err)
	}
	if want := "required device extension not supported: VK_KHR_ray_query"; err.Error() != want {
		t.Errorf("err = %q, want %q", err, want)
	}
}

func TestSelectCandidate(t *testing.T) {
	req := DefaultPhysicalDeviceRequirements()

	missingExt := candidate("superior but no swapchain", vk.PhysicalDeviceTypeDiscreteGpu, 32768)
	missingExt.Extensions = nil
	noPresent := candidate("headless", vk.PhysicalDeviceTypeDiscreteGpu, 32768)
	noPresent.QueueFamilies = QueueFamilyIndices{Graphics: 0, Present: -1}

	tests := []struct {
		name       string
		candidates []*PhysicalDeviceCandidate
		want       string
		wantErr    error
	}{
		{
			name:    "no devices",
			wantErr: core.ErrNoPhysicalDevices,
		},
		{
			name:       "no suitable device",
			candidates: []*PhysicalDeviceCandidate{missingExt, noPresent},
			wantErr:    core.ErrNoSuitableDevice,
		},
		{
			name: "discrete beats integrated",
			candidates: []*PhysicalDeviceCandidate{
				candidate("integrated", vk.PhysicalDeviceTypeIntegratedGpu, 16384),
				candidate("discrete", vk.PhysicalDeviceTypeDiscreteGpu, 8192),
			},
			want: "discrete",
		},
		{
			name: "integrated beats discrete when the bonus does not offset",
			candidates: []*PhysicalDeviceCandidate{
				candidate("discrete", vk.PhysicalDeviceTypeDiscreteGpu, 1024),
				candidate("integrated", vk.PhysicalDeviceTypeIntegratedGpu, 16384),
			},
			want: "integrated",
		},
		{
			name: "larger images between integrated devices",
			candidates: []*PhysicalDeviceCandidate{
				candidate("small", vk.PhysicalDeviceTypeIntegratedGpu, 4096),
				candidate("large", vk.PhysicalDeviceTypeIntegratedGpu, 8192),
			},
			want: "large",
		},
		{
			name: "ineligible devices never win",
			candidates: []*PhysicalDeviceCandidate{
				missingExt,
				noPresent,
				candidate("modest", vk.PhysicalDeviceTypeIntegratedGpu, 4096),
			},
			want: "modest",
		},
		{
			name: "tie goes to the first enumerated",
			candidates: []*PhysicalDeviceCandidate{
				candidate("first", vk.PhysicalDeviceTypeDiscreteGpu, 16384),
				candidate("second", vk.PhysicalDeviceTypeDiscreteGpu, 16384),
			},
			want: "first",
		},
		{
			name: "zero score is still selectable",
			candidates: []*PhysicalDeviceCandidate{
				missingExt,
				candidate("software", vk.PhysicalDeviceTypeCpu, 0),
			},
			want: "software",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectCandidate(tt.candidates, req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectCandidate: %v", err)
			}
			if got.Name != tt.want {
				t.Errorf("selected %q, want %q", got.Name, tt.want)
			}
		})
	}
}

func TestMissingNames(t *testing.T) {
	tests := []struct {
		required  []string
		available []string
		want      int
	}{
		{nil, nil, 0},
		{[]string{"a"}, []string{"a", "b"}, 0},
		{[]string{"a", "c"}, []string{"a", "b"}, 1},
		{[]string{"a", "b"}, nil, 2},
	}
	for _, tt := range tests {
		if got := MissingNames(tt.required, tt.available); len(got) != tt.want {
			t.Errorf("MissingNames(%v, %v) = %v, want %d missing", tt.required, tt.available, got, tt.want)
		}
	}
}
