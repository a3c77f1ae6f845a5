package systems

import (
	"fmt"

	"github.com/spaghettifunk/dubu/engine/assets/loaders"
	"github.com/spaghettifunk/dubu/engine/core"
	"github.com/spaghettifunk/dubu/engine/renderer"
	"github.com/spaghettifunk/dubu/engine/renderer/metadata"
	"github.com/spaghettifunk/dubu/engine/resources"
)

// defaultTexturePixel is a single opaque white RGBA8 texel.
var defaultTexturePixel = []uint8{0xff, 0xff, 0xff, 0xff}

// slotColorSpace is the colour space a texture bound to slot is sampled in.
// Only base colour holds colour data.
func slotColorSpace(slot resources.TextureSlot) metadata.TextureColorSpace {
	if slot == resources.TextureSlotBaseColor {
		return metadata.TEXTURE_COLOR_SPACE_SRGB
	}
	return metadata.TEXTURE_COLOR_SPACE_LINEAR
}

// textureKey identifies a cached texture. An image used both as colour and
// as data is uploaded once per colour space.
type textureKey struct {
	path       string
	colorSpace metadata.TextureColorSpace
}

// textureCache maps a texture path to the texture created for it. It also
// remembers creation order so textures are released in reverse.
type textureCache struct {
	textures map[textureKey]*metadata.Texture
	order    []textureKey
}

func newTextureCache() *textureCache {
	return &textureCache{
		textures: make(map[textureKey]*metadata.Texture),
	}
}

func (tc *textureCache) get(key textureKey) (*metadata.Texture, bool) {
	tex, ok := tc.textures[key]
	return tex, ok
}

func (tc *textureCache) insert(key textureKey, tex *metadata.Texture) {
	tc.textures[key] = tex
	tc.order = append(tc.order, key)
}

func (tc *textureCache) len() int {
	return len(tc.textures)
}

func (tc *textureCache) destroy(backend renderer.RendererBackend) {
	for i := len(tc.order) - 1; i >= 0; i-- {
		backend.TextureDestroy(tc.textures[tc.order[i]])
	}
	tc.textures = make(map[textureKey]*metadata.Texture)
	tc.order = nil
}

func createDefaultTexture(backend renderer.RendererBackend) (*metadata.Texture, error) {
	tex, err := backend.TextureCreate(metadata.DEFAULT_TEXTURE_NAME, 1, 1, metadata.TEXTURE_COLOR_SPACE_SRGB, defaultTexturePixel)
	if err != nil {
		return nil, fmt.Errorf("failed to create default texture: %w", err)
	}
	return tex, nil
}

func createEmbeddedTexture(backend renderer.RendererBackend, key textureKey, embedded *resources.EmbeddedTexture) (*metadata.Texture, error) {
	path := key.path
	img, err := loaders.DecodeTexture(embedded)
	if err != nil {
		return nil, fmt.Errorf("texture '%s': %w", path, err)
	}
	tex, err := backend.TextureCreate(path, img.Width, img.Height, key.colorSpace, img.Pixels)
	if err != nil {
		return nil, fmt.Errorf("texture '%s': %w", path, err)
	}
	core.LogDebug("Loaded texture '%s' (%dx%d %s, compressed: %t).", path, img.Width, img.Height, key.colorSpace, embedded.IsCompressed())
	return tex, nil
}
