package renderer

import "github.com/spaghettifunk/dubu/engine/renderer/metadata"

// RendererBackend is the set of resource operations the model loader and
// the staged uploader need from a graphics API. Every call blocks until the
// driver has completed it.
type RendererBackend interface {
	RenderBufferCreate(renderbufferType metadata.RenderBufferType, totalSize uint64) (*metadata.RenderBuffer, error)
	RenderBufferDestroy(buffer *metadata.RenderBuffer)
	// RenderBufferLoadRange writes data into a host-visible buffer.
	RenderBufferLoadRange(buffer *metadata.RenderBuffer, offset uint64, data []byte) error
	// RenderBufferRead reads size bytes from a host-visible buffer.
	RenderBufferRead(buffer *metadata.RenderBuffer, offset, size uint64) ([]byte, error)
	// RenderBufferCopyRange records, submits and waits for a buffer copy on
	// the graphics queue.
	RenderBufferCopyRange(source *metadata.RenderBuffer, sourceOffset uint64, dest *metadata.RenderBuffer, destOffset uint64, size uint64) error

	// TextureCreate uploads RGBA8 pixels into a sampled texture whose
	// format matches colorSpace.
	TextureCreate(name string, width, height uint32, colorSpace metadata.TextureColorSpace, pixels []uint8) (*metadata.Texture, error)
	TextureDestroy(texture *metadata.Texture)

	DescriptorSetAllocate(pool *metadata.DescriptorPool, layout *metadata.DescriptorSetLayout) (*metadata.DescriptorSet, error)
	// DescriptorSetWriteTextures binds textures[i] to binding firstBinding+i
	// as combined image samplers.
	DescriptorSetWriteTextures(set *metadata.DescriptorSet, firstBinding uint32, textures []*metadata.Texture) error
	DescriptorSetFree(pool *metadata.DescriptorPool, set *metadata.DescriptorSet)
}
