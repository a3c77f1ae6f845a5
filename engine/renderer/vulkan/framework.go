package vulkan

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/dubu/engine/core"
)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

var (
	ErrMissingInstanceExtension = errors.New("required instance extension not available")
	ErrMissingLayer             = errors.New("required instance layer not available")
)

/**
 * @brief Everything needed to create the driver instance.
 */
type FrameworkConfig struct {
	ApplicationName    string
	ApplicationVersion uint32
	EngineName         string
	EngineVersion      uint32
	/** @brief Instance creation fails if any of these is not available. */
	RequiredExtensions []string
	/** @brief Enabled when available, skipped otherwise. */
	OptionalExtensions []string
	RequiredLayers     []string
	OptionalLayers     []string
	/** @brief Requests the validation layer and installs the debug report callback. */
	Debug bool
}

// ResolveNames returns required followed by the optional names found in
// available, without duplicates. Missing required names are returned as
// missing, missing optional ones as skipped.
func ResolveNames(required, optional, available []string) (enabled, missing, skipped []string) {
	missing = MissingNames(required, available)

	seen := make(map[string]struct{}, len(required)+len(optional))
	for _, name := range required {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		enabled = append(enabled, name)
	}

	absent := MissingNames(optional, available)
	absentSet := make(map[string]struct{}, len(absent))
	for _, name := range absent {
		absentSet[name] = struct{}{}
	}
	for _, name := range optional {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := absentSet[name]; ok {
			skipped = append(skipped, name)
			continue
		}
		enabled = append(enabled, name)
	}
	return enabled, missing, skipped
}

// FrameworkCreate loads the driver through glfw and creates the instance.
// platformExtensions are the instance extensions the window system needs,
// they are treated as required.
func FrameworkCreate(cfg FrameworkConfig, platformExtensions []string) (*VulkanContext, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return nil, err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return nil, err
	}

	context := &VulkanContext{
		// TODO: custom allocator.
		Allocator: nil,
	}

	requiredExtensions := append(append([]string{}, platformExtensions...), cfg.RequiredExtensions...)
	optionalExtensions := append([]string{}, cfg.OptionalExtensions...)
	optionalLayers := append([]string{}, cfg.OptionalLayers...)
	if cfg.Debug {
		optionalExtensions = append(optionalExtensions, vk.ExtDebugReportExtensionName)
		optionalLayers = append(optionalLayers, validationLayerName)
	}

	availableExtensions, err := instanceExtensions()
	if err != nil {
		return nil, err
	}
	extensions, missing, skipped := ResolveNames(requiredExtensions, optionalExtensions, availableExtensions)
	if len(missing) > 0 {
		err := fmt.Errorf("%w: %s", ErrMissingInstanceExtension, strings.Join(missing, ", "))
		core.LogError(err.Error())
		return nil, err
	}
	for _, name := range skipped {
		core.LogWarn("Optional instance extension '%s' is not available, skipping.", name)
	}

	availableLayers, err := instanceLayers()
	if err != nil {
		return nil, err
	}
	layers, missing, skipped := ResolveNames(cfg.RequiredLayers, optionalLayers, availableLayers)
	if len(missing) > 0 {
		err := fmt.Errorf("%w: %s", ErrMissingLayer, strings.Join(missing, ", "))
		core.LogError(err.Error())
		return nil, err
	}
	for _, name := range skipped {
		core.LogWarn("Optional layer '%s' is not available, skipping.", name)
	}

	core.LogInfo("Enabled instance extensions: %s", strings.Join(extensions, ", "))
	if len(layers) > 0 {
		core.LogInfo("Enabled layers: %s", strings.Join(layers, ", "))
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: cfg.ApplicationVersion,
		PApplicationName:   VulkanSafeString(cfg.ApplicationName),
		EngineVersion:      cfg.EngineVersion,
		PEngineName:        VulkanSafeString(cfg.EngineName),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     VulkanSafeStrings(layers),
	}

	if res := vk.CreateInstance(&createInfo, context.Allocator, &context.Instance); res != vk.Success {
		err := fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	if err := vk.InitInstance(context.Instance); err != nil {
		core.LogError(err.Error())
		vk.DestroyInstance(context.Instance, context.Allocator)
		return nil, err
	}
	context.EnabledExtensions = extensions
	context.EnabledLayers = layers

	core.LogInfo("Vulkan Instance created.")

	if cfg.Debug && contains(extensions, vk.ExtDebugReportExtensionName) {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}

		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(context.Instance, &debugCreateInfo, context.Allocator, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			vk.DestroyInstance(context.Instance, context.Allocator)
			return nil, err
		}
		context.debugCallback = dbg
		context.debugEnabled = true
		core.LogDebug("Vulkan debugger created.")
	}

	return context, nil
}

// FrameworkDestroy releases the surface, the debug callback and the
// instance, in the reverse order they were created.
func FrameworkDestroy(context *VulkanContext) {
	if context.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(context.Instance, context.Surface, context.Allocator)
		context.Surface = vk.NullSurface
	}

	if context.debugEnabled {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(context.Instance, context.debugCallback, context.Allocator)
		context.debugEnabled = false
	}

	if context.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(context.Instance, context.Allocator)
		context.Instance = nil
	}
}

func instanceExtensions() ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateInstanceExtensionProperties("", &count, nil)); err != nil {
		return nil, fmt.Errorf("failed to enumerate instance extensions: %w", err)
	}
	props := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if err := vk.Error(vk.EnumerateInstanceExtensionProperties("", &count, props)); err != nil {
			return nil, fmt.Errorf("failed to enumerate instance extensions: %w", err)
		}
	}
	return extensionNames(props), nil
}

func instanceLayers() ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return nil, fmt.Errorf("failed to enumerate instance layers: %w", err)
	}
	props := make([]vk.LayerProperties, count)
	if count > 0 {
		if err := vk.Error(vk.EnumerateInstanceLayerProperties(&count, props)); err != nil {
			return nil, fmt.Errorf("failed to enumerate instance layers: %w", err)
		}
	}
	return layerNames(props), nil
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
