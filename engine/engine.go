package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/dubu/engine/assets"
	"github.com/spaghettifunk/dubu/engine/assets/loaders"
	"github.com/spaghettifunk/dubu/engine/config"
	"github.com/spaghettifunk/dubu/engine/core"
	"github.com/spaghettifunk/dubu/engine/platform"
	"github.com/spaghettifunk/dubu/engine/renderer/metadata"
	"github.com/spaghettifunk/dubu/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything it created
	EngineStageShutdown
)

func (s Stage) String() string {
	switch s {
	case EngineStageUninitialized:
		return "uninitialized"
	case EngineStageInitializing:
		return "initializing"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting down"
	case EngineStageShutdown:
		return "shut down"
	default:
		return "unknown"
	}
}

// frames are paced to this interval, the engine has nothing to present
// faster than that
const targetFrameTime = time.Second / 60

type Engine struct {
	currentStage Stage
	config       *config.Config
	isRunning    atomic.Bool

	platform *platform.Platform
	renderer *vulkan.VulkanRenderer
	host     *modelHost
	watcher  *assets.Watcher
}

func New(cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       cfg,
		platform:     platform.New(),
	}, nil
}

// rendererConfig translates the engine configuration into what the Vulkan
// backend boots with.
func rendererConfig(cfg *config.Config) (vulkan.RendererConfig, error) {
	appVersion, err := config.ParseVersion(cfg.Application.Version)
	if err != nil {
		return vulkan.RendererConfig{}, err
	}
	engineVersion, err := config.ParseVersion(cfg.Application.EngineVersion)
	if err != nil {
		return vulkan.RendererConfig{}, err
	}

	return vulkan.RendererConfig{
		Framework: vulkan.FrameworkConfig{
			ApplicationName:    cfg.Application.Name,
			ApplicationVersion: makeVersion(appVersion),
			EngineName:         cfg.Application.EngineName,
			EngineVersion:      makeVersion(engineVersion),
			RequiredExtensions: cfg.Instance.RequiredExtensions,
			OptionalExtensions: cfg.Instance.OptionalExtensions,
			RequiredLayers:     cfg.Instance.RequiredLayers,
			OptionalLayers:     cfg.Instance.OptionalLayers,
			Debug:              cfg.Instance.Debug,
		},
		Device: vulkan.PhysicalDeviceRequirements{
			DeviceExtensionNames: cfg.Device.RequiredExtensions,
			GeometryShader:       cfg.Device.RequireGeometryShader,
		},
		MaxMaterialSets: materialPoolSets(cfg.Model.MaxMaterials),
	}, nil
}

// materialPoolSets sizes the material descriptor pool. A reload allocates
// the new model's sets while the previous model still holds its own, so the
// pool fits two models of maxMaterials materials.
func materialPoolSets(maxMaterials uint32) uint32 {
	return 2 * maxMaterials
}

func makeVersion(v config.Version) uint32 {
	return uint32(vk.MakeVersion(int(v.Major), int(v.Minor), int(v.Patch)))
}

// Initialize opens the window, boots the renderer and loads the configured
// model. Partial initialization is undone by Shutdown.
func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("engine cannot initialize while %s", e.currentStage)
	}
	e.currentStage = EngineStageInitializing

	rc, err := rendererConfig(e.config)
	if err != nil {
		return err
	}

	if !core.EventInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)
	core.EventRegister(core.EVENT_CODE_MODEL_CHANGED, e, e.onModelChanged)

	w := e.config.Window
	if err := e.platform.Startup(e.config.Application.Name, w.StartPosX, w.StartPosY, w.Width, w.Height); err != nil {
		return err
	}

	e.renderer = vulkan.New(e.platform, rc)
	if err := e.renderer.Initialize(); err != nil {
		e.renderer = nil
		return err
	}

	if path := e.config.Model.Path; path != "" {
		importer, err := loaders.NewSceneImporter(path)
		if err != nil {
			return err
		}
		e.host = &modelHost{
			path:           path,
			backend:        e.renderer,
			importer:       importer,
			pool:           e.renderer.DescriptorPool(),
			setLayout:      e.renderer.MaterialSetLayout(),
			pipelineLayout: e.renderer.PipelineLayout(),
			clock:          core.NewClock(),
		}
		if err := e.host.load(); err != nil {
			return err
		}

		if e.config.Model.Watch {
			if e.watcher, err = assets.NewWatcher(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			core.LogInfo("Watching '%s' for changes.", path)
		}
	} else {
		core.LogWarn("No model configured, running with an empty scene.")
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// Run pumps window events until the window closes or Stop is called. File
// changes are handled here, on the thread that owns the device.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine cannot run while %s", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	var changes <-chan string
	if e.watcher != nil {
		changes = e.watcher.Changes()
	}

	for e.isRunning.Load() {
		frameStart := time.Now()

		if !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			break
		}

		select {
		case path := <-changes:
			var ctx core.EventContext
			ctx.Data.C[0] = path
			core.EventFire(core.EVENT_CODE_MODEL_CHANGED, e.watcher, ctx)
		default:
		}

		if remaining := targetFrameTime - time.Since(frameStart); remaining > 0 {
			time.Sleep(remaining)
		}
	}
	return nil
}

// Stop asks Run to return. Safe to call from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

// DrawCommands returns the commands that draw the loaded model, nil when
// no model is loaded.
func (e *Engine) DrawCommands() []metadata.DrawCommand {
	if e.host == nil {
		return nil
	}
	return e.host.DrawCommands()
}

// Shutdown releases everything in the opposite order of Initialize. It must
// run on the main thread, after Run returned.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	var closeErr error
	if e.watcher != nil {
		closeErr = e.watcher.Close()
		e.watcher = nil
	}
	if e.host != nil {
		e.host.release()
		e.host = nil
	}
	if e.renderer != nil {
		e.renderer.Shutdown()
		e.renderer = nil
	}
	if err := e.platform.Shutdown(); err != nil {
		core.LogError("platform shutdown: %s", err)
	}
	if err := core.EventShutdown(); err != nil {
		core.LogError("event system shutdown: %s", err)
	}

	e.currentStage = EngineStageShutdown
	core.LogInfo("Engine shut down.")
	return closeErr
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.Stop()
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	if width == 0 || height == 0 {
		core.LogDebug("Window minimized.")
		return false
	}
	core.LogDebug("Window resized: %d x %d.", width, height)
	return false
}

func (e *Engine) onModelChanged(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	if e.host == nil {
		return false
	}
	core.LogInfo("'%s' changed, reloading model.", data.Data.C[0])
	e.renderer.WaitIdle()
	if err := e.host.load(); err != nil {
		core.LogError("Model reload failed, keeping the previous model: %s", err)
	}
	return true
}
