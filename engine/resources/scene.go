package resources

import (
	"github.com/spaghettifunk/dubu/engine/math"
)

/**
 * @brief The texture slots a material can reference. The order matches the
 * binding index inside a material descriptor set.
 */
type TextureSlot int

const (
	/** @brief Base colour (albedo) texture. Binding 0. */
	TextureSlotBaseColor TextureSlot = iota
	/** @brief Metallic (B) and roughness (G) texture. Binding 1. */
	TextureSlotMetallicRoughness
	/** @brief Tangent space normal map. Binding 2. */
	TextureSlotNormal
	/** @brief The number of texture slots. */
	TextureSlotCount
)

func (s TextureSlot) String() string {
	switch s {
	case TextureSlotBaseColor:
		return "base_color"
	case TextureSlotMetallicRoughness:
		return "metallic_roughness"
	case TextureSlotNormal:
		return "normal"
	default:
		return "unknown"
	}
}

/**
 * @brief A texture shipped inside the model file. A Height of 0 means Data
 * holds a compressed stream (PNG, JPEG, ...) of Width bytes; otherwise Data
 * holds raw RGBA8 pixels of Width*Height*4 bytes.
 */
type EmbeddedTexture struct {
	Width  uint32
	Height uint32
	/** @brief Format hint of a compressed stream, e.g. "image/png". Empty for raw pixels. */
	FormatHint string
	Data       []byte
}

// IsCompressed reports whether the texture must be decoded before upload.
func (t *EmbeddedTexture) IsCompressed() bool {
	return t.Height == 0
}

/**
 * @brief A material as reported by the importer: for every slot, the path
 * of the texture it samples (if any).
 */
type SceneMaterial struct {
	Name     string
	Textures map[TextureSlot]string
}

// Texture returns the path bound to slot.
func (m *SceneMaterial) Texture(slot TextureSlot) (string, bool) {
	if m == nil || m.Textures == nil {
		return "", false
	}
	path, ok := m.Textures[slot]
	return path, ok && path != ""
}

/**
 * @brief A triangulated mesh as reported by the importer. Normals and
 * TexCoords are either empty or have the same length as Positions.
 */
type SceneMesh struct {
	Name          string
	Positions     []math.Vec3
	Normals       []math.Vec3
	TexCoords     []math.Vec2
	Faces         [][3]uint32
	MaterialIndex uint32
}

/**
 * @brief The result of importing a model file.
 */
type Scene struct {
	Meshes    []*SceneMesh
	Materials []*SceneMaterial
	/** @brief Embedded textures keyed by the path materials refer to them with. */
	Textures map[string]*EmbeddedTexture
}

// EmbeddedTexture looks up the texture a material path refers to.
func (s *Scene) EmbeddedTexture(path string) (*EmbeddedTexture, bool) {
	if s.Textures == nil {
		return nil, false
	}
	tex, ok := s.Textures[path]
	return tex, ok
}
