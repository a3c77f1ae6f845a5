package engine

import (
	"github.com/spaghettifunk/dubu/engine/assets/loaders"
	"github.com/spaghettifunk/dubu/engine/core"
	"github.com/spaghettifunk/dubu/engine/renderer"
	"github.com/spaghettifunk/dubu/engine/renderer/metadata"
	"github.com/spaghettifunk/dubu/engine/systems"
)

// modelHost owns the loaded model and the draw commands recorded for it.
type modelHost struct {
	path           string
	backend        renderer.RendererBackend
	importer       loaders.SceneImporter
	pool           *metadata.DescriptorPool
	setLayout      *metadata.DescriptorSetLayout
	pipelineLayout *metadata.PipelineLayout

	model    *systems.Model
	commands []metadata.DrawCommand
	clock    *core.Clock
}

// load replaces the current model with a fresh import of path. The current
// model is kept when the new one fails to load.
func (h *modelHost) load() error {
	h.clock.Start()
	model, err := systems.LoadModel(systems.ModelConfig{
		Path:                h.path,
		Backend:             h.backend,
		Importer:            h.importer,
		DescriptorPool:      h.pool,
		DescriptorSetLayout: h.setLayout,
	})
	h.clock.Stop()
	if err != nil {
		return err
	}

	h.release()
	h.model = model
	h.commands = model.RecordCommands(h.pipelineLayout, nil)
	core.LogInfo("Model '%s' loaded in %s: %d meshes, %d materials, %d textures, %d draw commands.",
		h.path, h.clock.Elapsed(), len(model.Meshes()), len(model.Materials()), model.TextureCount(), len(h.commands))
	return nil
}

func (h *modelHost) release() {
	if h.model != nil {
		h.model.Destroy()
		h.model = nil
	}
	h.commands = nil
}

// DrawCommands returns the commands that draw the current model.
func (h *modelHost) DrawCommands() []metadata.DrawCommand {
	return h.commands
}
