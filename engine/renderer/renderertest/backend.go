// Package renderertest provides an in-memory renderer.RendererBackend for
// tests that exercise upload and model code without a GPU.
package renderertest

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/dubu/engine/core"
	"github.com/spaghettifunk/dubu/engine/renderer/metadata"
)

// ErrInjected is returned by operations listed in Backend.Fail.
var ErrInjected = errors.New("injected failure")

// ErrPoolExhausted is returned when a pool already holds MaxSets sets, the
// way the driver reports VK_ERROR_OUT_OF_POOL_MEMORY.
var ErrPoolExhausted = errors.New("descriptor pool exhausted")

// Operation names accepted by Backend.Fail.
const (
	OpBufferCreate  = "buffer_create"
	OpBufferLoad    = "buffer_load"
	OpBufferCopy    = "buffer_copy"
	OpTextureCreate = "texture_create"
	OpSetAllocate   = "set_allocate"
	OpSetWrite      = "set_write"
	OpStagingCreate = "staging_create"
	OpDeviceCreate  = "device_create"
)

type memory struct {
	data []byte
}

// Texture is the InternalData of textures created by Backend.
type Texture struct {
	Pixels []uint8
}

// DescriptorSet is the InternalData of sets allocated by Backend.
type DescriptorSet struct {
	Bindings map[uint32]*metadata.Texture
}

// Backend keeps every resource in host memory. Device-local buffers reject
// direct loads and reads, so data has to go through staging copies like on
// real hardware.
type Backend struct {
	// Fail makes the named operation return ErrInjected.
	Fail map[string]bool

	Buffers  map[*metadata.RenderBuffer]bool
	Textures map[*metadata.Texture]bool
	Sets     map[*metadata.DescriptorSet]bool
	// live sets per pool, a pool refuses allocations past MaxSets
	poolSets map[*metadata.DescriptorPool]int
	setPool  map[*metadata.DescriptorSet]*metadata.DescriptorPool

	BuffersCreated  int
	TexturesCreated int
	Copies          int
}

func New() *Backend {
	return &Backend{
		Fail:     make(map[string]bool),
		Buffers:  make(map[*metadata.RenderBuffer]bool),
		Textures: make(map[*metadata.Texture]bool),
		Sets:     make(map[*metadata.DescriptorSet]bool),
		poolSets: make(map[*metadata.DescriptorPool]int),
		setPool:  make(map[*metadata.DescriptorSet]*metadata.DescriptorPool),
	}
}

// Live returns how many resources have been created and not destroyed.
func (b *Backend) Live() int {
	return len(b.Buffers) + len(b.Textures) + len(b.Sets)
}

func (b *Backend) RenderBufferCreate(renderbufferType metadata.RenderBufferType, totalSize uint64) (*metadata.RenderBuffer, error) {
	if b.Fail[OpBufferCreate] {
		return nil, ErrInjected
	}
	if renderbufferType == metadata.RENDERBUFFER_TYPE_STAGING && b.Fail[OpStagingCreate] {
		return nil, ErrInjected
	}
	if renderbufferType != metadata.RENDERBUFFER_TYPE_STAGING && b.Fail[OpDeviceCreate] {
		return nil, ErrInjected
	}
	buf := &metadata.RenderBuffer{
		ID:               core.NewResourceID(),
		RenderBufferType: renderbufferType,
		TotalSize:        totalSize,
		InternalData:     &memory{data: make([]byte, totalSize)},
	}
	b.Buffers[buf] = true
	b.BuffersCreated++
	return buf, nil
}

func (b *Backend) RenderBufferDestroy(buffer *metadata.RenderBuffer) {
	if !b.Buffers[buffer] {
		panic(fmt.Sprintf("renderertest: destroying unknown buffer %s", buffer.ID))
	}
	delete(b.Buffers, buffer)
}

func (b *Backend) mem(buffer *metadata.RenderBuffer, offset, size uint64) ([]byte, error) {
	if !b.Buffers[buffer] {
		return nil, fmt.Errorf("buffer %s is not alive", buffer.ID)
	}
	if offset+size > buffer.TotalSize {
		return nil, fmt.Errorf("range [%d, %d) exceeds buffer size %d", offset, offset+size, buffer.TotalSize)
	}
	return buffer.InternalData.(*memory).data[offset : offset+size], nil
}

func (b *Backend) RenderBufferLoadRange(buffer *metadata.RenderBuffer, offset uint64, data []byte) error {
	if b.Fail[OpBufferLoad] {
		return ErrInjected
	}
	if !buffer.RenderBufferType.HostVisible() {
		return fmt.Errorf("%s buffer is not host visible", buffer.RenderBufferType)
	}
	dst, err := b.mem(buffer, offset, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

func (b *Backend) RenderBufferRead(buffer *metadata.RenderBuffer, offset, size uint64) ([]byte, error) {
	if !buffer.RenderBufferType.HostVisible() {
		return nil, fmt.Errorf("%s buffer is not host visible", buffer.RenderBufferType)
	}
	src, err := b.mem(buffer, offset, size)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), src...), nil
}

func (b *Backend) RenderBufferCopyRange(source *metadata.RenderBuffer, sourceOffset uint64, dest *metadata.RenderBuffer, destOffset uint64, size uint64) error {
	if b.Fail[OpBufferCopy] {
		return ErrInjected
	}
	src, err := b.mem(source, sourceOffset, size)
	if err != nil {
		return err
	}
	dst, err := b.mem(dest, destOffset, size)
	if err != nil {
		return err
	}
	copy(dst, src)
	b.Copies++
	return nil
}

// Bytes returns the content of any buffer, bypassing visibility rules.
func (b *Backend) Bytes(buffer *metadata.RenderBuffer) []byte {
	return buffer.InternalData.(*memory).data
}

func (b *Backend) TextureCreate(name string, width, height uint32, colorSpace metadata.TextureColorSpace, pixels []uint8) (*metadata.Texture, error) {
	if b.Fail[OpTextureCreate] {
		return nil, ErrInjected
	}
	if uint64(len(pixels)) != uint64(width)*uint64(height)*4 {
		return nil, fmt.Errorf("texture %s: got %d bytes for %dx%d RGBA", name, len(pixels), width, height)
	}
	tex := &metadata.Texture{
		ID:           core.NewResourceID(),
		Name:         name,
		Width:        width,
		Height:       height,
		ChannelCount: 4,
		ColorSpace:   colorSpace,
		InternalData: &Texture{Pixels: append([]uint8(nil), pixels...)},
	}
	b.Textures[tex] = true
	b.TexturesCreated++
	return tex, nil
}

func (b *Backend) TextureDestroy(texture *metadata.Texture) {
	if !b.Textures[texture] {
		panic(fmt.Sprintf("renderertest: destroying unknown texture %s", texture.Name))
	}
	delete(b.Textures, texture)
}

func (b *Backend) DescriptorSetAllocate(pool *metadata.DescriptorPool, layout *metadata.DescriptorSetLayout) (*metadata.DescriptorSet, error) {
	if b.Fail[OpSetAllocate] {
		return nil, ErrInjected
	}
	if uint32(b.poolSets[pool]) >= pool.MaxSets {
		return nil, ErrPoolExhausted
	}
	set := &metadata.DescriptorSet{
		ID:           core.NewResourceID(),
		Layout:       layout,
		InternalData: &DescriptorSet{Bindings: make(map[uint32]*metadata.Texture)},
	}
	b.Sets[set] = true
	b.poolSets[pool]++
	b.setPool[set] = pool
	return set, nil
}

func (b *Backend) DescriptorSetWriteTextures(set *metadata.DescriptorSet, firstBinding uint32, textures []*metadata.Texture) error {
	if b.Fail[OpSetWrite] {
		return ErrInjected
	}
	if !b.Sets[set] {
		return fmt.Errorf("descriptor set %s is not alive", set.ID)
	}
	internal := set.InternalData.(*DescriptorSet)
	for i, tex := range textures {
		binding := firstBinding + uint32(i)
		if set.Layout != nil && binding >= set.Layout.BindingCount {
			return fmt.Errorf("binding %d outside layout of %d bindings", binding, set.Layout.BindingCount)
		}
		if !b.Textures[tex] {
			return fmt.Errorf("texture %s is not alive", tex.Name)
		}
		internal.Bindings[binding] = tex
	}
	return nil
}

func (b *Backend) DescriptorSetFree(pool *metadata.DescriptorPool, set *metadata.DescriptorSet) {
	if !b.Sets[set] {
		panic(fmt.Sprintf("renderertest: freeing unknown descriptor set %s", set.ID))
	}
	if b.setPool[set] != pool {
		panic(fmt.Sprintf("renderertest: descriptor set %s freed into the wrong pool", set.ID))
	}
	delete(b.Sets, set)
	delete(b.setPool, set)
	b.poolSets[pool]--
}

// PoolSets returns how many sets are allocated from pool.
func (b *Backend) PoolSets(pool *metadata.DescriptorPool) int {
	return b.poolSets[pool]
}
