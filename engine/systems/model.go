package systems

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/dubu/engine/assets/loaders"
	"github.com/spaghettifunk/dubu/engine/core"
	"github.com/spaghettifunk/dubu/engine/renderer"
	"github.com/spaghettifunk/dubu/engine/renderer/metadata"
	"github.com/spaghettifunk/dubu/engine/resources"
)

// MaterialSetIndex is the descriptor set index material textures are bound to.
const MaterialSetIndex uint32 = 1

// ErrMaterialIndex is returned when a mesh references a material the scene
// does not have.
var ErrMaterialIndex = errors.New("mesh material index out of range")

// ErrMissingTexture is returned when a material references a texture path
// the scene carries no data for.
var ErrMissingTexture = errors.New("texture not found in scene")

type ModelConfig struct {
	Path    string
	Backend renderer.RendererBackend
	// Importer defaults to the importer matching the extension of Path.
	Importer            loaders.SceneImporter
	DescriptorPool      *metadata.DescriptorPool
	DescriptorSetLayout *metadata.DescriptorSetLayout
}

// Material owns the descriptor set its textures are written into.
type Material struct {
	Name          string
	DescriptorSet *metadata.DescriptorSet
}

// Model is a set of GPU-resident meshes with their materials and the
// textures those materials sample.
type Model struct {
	Path      string
	backend   renderer.RendererBackend
	pool      *metadata.DescriptorPool
	meshes    []*Mesh
	textures  *textureCache
	materials []*Material
	// Bound to every slot a material leaves empty. Kept out of the cache so
	// no texture path can shadow it.
	defaultTexture *metadata.Texture
}

// LoadModel imports the file at cfg.Path and uploads its meshes, materials
// and textures through cfg.Backend. Import failures are returned wrapping
// core.ErrModelImport. On any error every resource created so far is
// released.
func LoadModel(cfg ModelConfig) (*Model, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("model '%s': no renderer backend", cfg.Path)
	}

	importer := cfg.Importer
	if importer == nil {
		imp, err := loaders.NewSceneImporter(cfg.Path)
		if err != nil {
			core.LogError("Failed to load model: %s", cfg.Path)
			core.LogError("Importer error: %s", err)
			return nil, fmt.Errorf("%w: %s: %w", core.ErrModelImport, cfg.Path, err)
		}
		importer = imp
	}

	scene, err := importer.Import(cfg.Path)
	if err != nil {
		core.LogError("Failed to load model: %s", cfg.Path)
		core.LogError("Importer error: %s", err)
		return nil, fmt.Errorf("%w: %s: %w", core.ErrModelImport, cfg.Path, err)
	}

	m := &Model{
		Path:     cfg.Path,
		backend:  cfg.Backend,
		pool:     cfg.DescriptorPool,
		textures: newTextureCache(),
	}

	if err := m.build(scene, cfg.DescriptorSetLayout); err != nil {
		m.Destroy()
		return nil, err
	}

	core.LogInfo("Loaded model '%s': %d meshes, %d materials, %d textures.", cfg.Path, len(m.meshes), len(m.materials), m.TextureCount())
	return m, nil
}

func (m *Model) build(scene *resources.Scene, layout *metadata.DescriptorSetLayout) error {
	def, err := createDefaultTexture(m.backend)
	if err != nil {
		return err
	}
	m.defaultTexture = def

	for i, sm := range scene.Materials {
		if err := m.createMaterial(scene, sm, layout); err != nil {
			return fmt.Errorf("material %d: %w", i, err)
		}
	}

	for i, sm := range scene.Meshes {
		if int(sm.MaterialIndex) >= len(m.materials) {
			return fmt.Errorf("mesh %d ('%s') references material %d of %d: %w", i, sm.Name, sm.MaterialIndex, len(m.materials), ErrMaterialIndex)
		}
		mesh, err := newMesh(m.backend, sm)
		if err != nil {
			return err
		}
		m.meshes = append(m.meshes, mesh)
	}
	return nil
}

func (m *Model) createMaterial(scene *resources.Scene, sm *resources.SceneMaterial, layout *metadata.DescriptorSetLayout) error {
	set, err := m.backend.DescriptorSetAllocate(m.pool, layout)
	if err != nil {
		return err
	}
	material := &Material{
		Name:          sm.Name,
		DescriptorSet: set,
	}
	m.materials = append(m.materials, material)

	textures := make([]*metadata.Texture, 0, resources.TextureSlotCount)
	for slot := resources.TextureSlotBaseColor; slot < resources.TextureSlotCount; slot++ {
		tex, err := m.LoadTexture(scene, sm, slot)
		if err != nil {
			return err
		}
		textures = append(textures, tex)
	}
	return m.backend.DescriptorSetWriteTextures(set, 0, textures)
}

// LoadTexture resolves the texture material samples in slot. Textures are
// cached by path and colour space: the first reference decodes and uploads,
// later ones reuse the same texture. A slot without a texture resolves to
// the default one.
func (m *Model) LoadTexture(scene *resources.Scene, material *resources.SceneMaterial, slot resources.TextureSlot) (*metadata.Texture, error) {
	path, ok := material.Texture(slot)
	if !ok {
		return m.defaultTexture, nil
	}

	key := textureKey{path: path, colorSpace: slotColorSpace(slot)}
	if tex, ok := m.textures.get(key); ok {
		return tex, nil
	}

	embedded, ok := scene.EmbeddedTexture(path)
	if !ok {
		return nil, fmt.Errorf("%s texture '%s': %w", slot, path, ErrMissingTexture)
	}
	tex, err := createEmbeddedTexture(m.backend, key, embedded)
	if err != nil {
		return nil, err
	}
	m.textures.insert(key, tex)
	return tex, nil
}

// RecordCommands appends, for every mesh in load order, the material
// descriptor set bind, vertex and index buffer binds and one indexed draw.
func (m *Model) RecordCommands(layout *metadata.PipelineLayout, cmds []metadata.DrawCommand) []metadata.DrawCommand {
	for _, mesh := range m.meshes {
		cmds = append(cmds,
			&metadata.BindDescriptorSets{
				BindPoint:      metadata.PIPELINE_BIND_POINT_GRAPHICS,
				PipelineLayout: layout,
				FirstSet:       MaterialSetIndex,
				DescriptorSets: []*metadata.DescriptorSet{m.materials[mesh.MaterialIndex].DescriptorSet},
			},
			&metadata.BindVertexBuffers{
				Buffers: []*metadata.RenderBuffer{mesh.VertexBuffer},
				Offsets: []uint64{0},
			},
			&metadata.BindIndexBuffer{
				Buffer:    mesh.IndexBuffer,
				IndexType: metadata.INDEX_TYPE_UINT32,
			},
			&metadata.DrawIndexed{
				IndexCount:    mesh.IndexCount,
				InstanceCount: 1,
			},
		)
	}
	return cmds
}

func (m *Model) Meshes() []*Mesh {
	return m.meshes
}

func (m *Model) Materials() []*Material {
	return m.materials
}

// Texture returns the texture loaded from path in colorSpace.
func (m *Model) Texture(path string, colorSpace metadata.TextureColorSpace) (*metadata.Texture, bool) {
	return m.textures.get(textureKey{path: path, colorSpace: colorSpace})
}

func (m *Model) DefaultTexture() *metadata.Texture {
	return m.defaultTexture
}

// TextureCount counts the default texture and every loaded one.
func (m *Model) TextureCount() int {
	n := m.textures.len()
	if m.defaultTexture != nil {
		n++
	}
	return n
}

// Destroy releases meshes, material descriptor sets and textures, in the
// reverse order they were created. It is safe to call more than once.
func (m *Model) Destroy() {
	for i := len(m.meshes) - 1; i >= 0; i-- {
		m.meshes[i].destroy(m.backend)
	}
	m.meshes = nil

	for i := len(m.materials) - 1; i >= 0; i-- {
		if m.materials[i].DescriptorSet != nil {
			m.backend.DescriptorSetFree(m.pool, m.materials[i].DescriptorSet)
		}
	}
	m.materials = nil

	m.textures.destroy(m.backend)
	if m.defaultTexture != nil {
		m.backend.TextureDestroy(m.defaultTexture)
		m.defaultTexture = nil
	}
}
