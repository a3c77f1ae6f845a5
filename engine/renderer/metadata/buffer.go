package metadata

import "github.com/google/uuid"

type RenderBufferType int

const (
	/** @brief Buffer is use is unknown. Default, but usually invalid. */
	RENDERBUFFER_TYPE_UNKNOWN RenderBufferType = iota
	/** @brief Buffer is used for vertex data. */
	RENDERBUFFER_TYPE_VERTEX
	/** @brief Buffer is used for index data. */
	RENDERBUFFER_TYPE_INDEX
	/** @brief Buffer is used for uniform data. */
	RENDERBUFFER_TYPE_UNIFORM
	/** @brief Buffer is used for staging purposes (i.e. from host-visible to device-local memory) */
	RENDERBUFFER_TYPE_STAGING
	/** @brief Buffer is used for reading purposes (i.e copy to from device local, then read) */
	RENDERBUFFER_TYPE_READ
	/** @brief Buffer is used for data storage. */
	RENDERBUFFER_TYPE_STORAGE
)

func (t RenderBufferType) String() string {
	switch t {
	case RENDERBUFFER_TYPE_VERTEX:
		return "vertex"
	case RENDERBUFFER_TYPE_INDEX:
		return "index"
	case RENDERBUFFER_TYPE_UNIFORM:
		return "uniform"
	case RENDERBUFFER_TYPE_STAGING:
		return "staging"
	case RENDERBUFFER_TYPE_READ:
		return "read"
	case RENDERBUFFER_TYPE_STORAGE:
		return "storage"
	default:
		return "unknown"
	}
}

// HostVisible reports whether buffers of this type live in memory the host
// can map. Every other type is device-local and only reachable by copies.
func (t RenderBufferType) HostVisible() bool {
	switch t {
	case RENDERBUFFER_TYPE_STAGING, RENDERBUFFER_TYPE_READ, RENDERBUFFER_TYPE_UNIFORM:
		return true
	default:
		return false
	}
}

/**
 * @brief A buffer owned by exactly one resource (a mesh, a texture upload,
 * a staging scope). It must be destroyed by its owner.
 */
type RenderBuffer struct {
	ID uuid.UUID
	/** @brief The type of buffer, which typically determines its use. */
	RenderBufferType RenderBufferType
	/** @brief The total size of the buffer in bytes. */
	TotalSize uint64
	/** @brief Contains internal data for the renderer-API-specific buffer. */
	InternalData interface{}
}
