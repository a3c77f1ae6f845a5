package renderer

import (
	"fmt"

	"github.com/spaghettifunk/dubu/engine/core"
	"github.com/spaghettifunk/dubu/engine/renderer/metadata"
)

// UploadBuffer moves data into a new device-local buffer of the given type
// through a host-visible staging buffer. The staging buffer never outlives
// the call. On error nothing is left allocated.
func UploadBuffer(backend RendererBackend, renderbufferType metadata.RenderBufferType, data []byte) (*metadata.RenderBuffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot upload an empty %s buffer", renderbufferType)
	}
	if renderbufferType.HostVisible() {
		return nil, fmt.Errorf("%s buffers are host visible and do not need staging", renderbufferType)
	}
	size := uint64(len(data))

	staging, err := backend.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_STAGING, size)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging buffer: %w", err)
	}
	defer backend.RenderBufferDestroy(staging)

	if err := backend.RenderBufferLoadRange(staging, 0, data); err != nil {
		return nil, fmt.Errorf("failed to fill staging buffer: %w", err)
	}

	dest, err := backend.RenderBufferCreate(renderbufferType, size)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s buffer: %w", renderbufferType, err)
	}

	if err := backend.RenderBufferCopyRange(staging, 0, dest, 0, size); err != nil {
		backend.RenderBufferDestroy(dest)
		return nil, fmt.Errorf("failed to copy staging buffer: %w", err)
	}

	core.LogDebug("Uploaded %d bytes into %s buffer %s.", size, renderbufferType, dest.ID)
	return dest, nil
}

// DownloadBuffer reads back the whole content of a device-local buffer
// through a temporary read buffer.
func DownloadBuffer(backend RendererBackend, buffer *metadata.RenderBuffer) ([]byte, error) {
	if buffer.RenderBufferType.HostVisible() {
		return backend.RenderBufferRead(buffer, 0, buffer.TotalSize)
	}

	read, err := backend.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_READ, buffer.TotalSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create read buffer: %w", err)
	}
	defer backend.RenderBufferDestroy(read)

	if err := backend.RenderBufferCopyRange(buffer, 0, read, 0, buffer.TotalSize); err != nil {
		return nil, fmt.Errorf("failed to copy into read buffer: %w", err)
	}
	return backend.RenderBufferRead(read, 0, buffer.TotalSize)
}
