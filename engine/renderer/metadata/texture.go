package metadata

import "github.com/google/uuid"

const (
	/** @brief The default texture name. */
	DEFAULT_TEXTURE_NAME string = "default"
)

/**
 * @brief How the RGBA8 texels of a texture are interpreted when sampled.
 */
type TextureColorSpace int

const (
	/** @brief Colour data, decoded from sRGB to linear by the sampler. */
	TEXTURE_COLOR_SPACE_SRGB TextureColorSpace = iota
	/** @brief Non-colour data (normals, roughness) sampled as stored. */
	TEXTURE_COLOR_SPACE_LINEAR
)

func (cs TextureColorSpace) String() string {
	switch cs {
	case TEXTURE_COLOR_SPACE_SRGB:
		return "srgb"
	case TEXTURE_COLOR_SPACE_LINEAR:
		return "linear"
	default:
		return "unknown"
	}
}

/**
 * @brief Represents a sampled texture: image, view and sampler on the
 * backend side.
 */
type Texture struct {
	/** @brief The unique texture identifier. */
	ID uuid.UUID
	/** @brief The texture name, usually the path it was loaded from. */
	Name string
	/** @brief The texture width. */
	Width uint32
	/** @brief The texture height. */
	Height uint32
	/** @brief The number of channels in the texture. */
	ChannelCount uint8
	/** @brief How the texels are sampled. */
	ColorSpace TextureColorSpace
	/** @brief The raw texture data (pixels). */
	InternalData interface{}
}
