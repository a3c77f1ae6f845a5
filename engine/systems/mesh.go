package systems

import (
	"fmt"

	"github.com/spaghettifunk/dubu/engine/renderer"
	"github.com/spaghettifunk/dubu/engine/renderer/metadata"
	"github.com/spaghettifunk/dubu/engine/resources"
)

// Mesh owns the device-local vertex and index buffers of one imported mesh
// and refers to its material by index.
type Mesh struct {
	Name          string
	VertexBuffer  *metadata.RenderBuffer
	IndexBuffer   *metadata.RenderBuffer
	IndexCount    uint32
	MaterialIndex uint32
}

// buildVertices interleaves positions, normals and the first UV channel.
// Missing normals or UVs are left zero.
func buildVertices(sm *resources.SceneMesh) []metadata.Vertex {
	vertices := make([]metadata.Vertex, len(sm.Positions))
	for i := range vertices {
		vertices[i].Position = sm.Positions[i]
		if i < len(sm.Normals) {
			vertices[i].Normal = sm.Normals[i]
		}
		if i < len(sm.TexCoords) {
			vertices[i].TexCoord = sm.TexCoords[i]
		}
	}
	return vertices
}

// buildIndices flattens triangular faces, three indices per face.
func buildIndices(sm *resources.SceneMesh) []uint32 {
	indices := make([]uint32, len(sm.Faces)*3)
	for i, f := range sm.Faces {
		indices[i*3+0] = f[0]
		indices[i*3+1] = f[1]
		indices[i*3+2] = f[2]
	}
	return indices
}

func newMesh(backend renderer.RendererBackend, sm *resources.SceneMesh) (*Mesh, error) {
	if len(sm.Positions) == 0 || len(sm.Faces) == 0 {
		return nil, fmt.Errorf("mesh '%s' has no geometry", sm.Name)
	}

	vertices := buildVertices(sm)
	indices := buildIndices(sm)

	vb, err := renderer.UploadBuffer(backend, metadata.RENDERBUFFER_TYPE_VERTEX, metadata.VertexBytes(vertices))
	if err != nil {
		return nil, fmt.Errorf("mesh '%s' vertex upload: %w", sm.Name, err)
	}
	ib, err := renderer.UploadBuffer(backend, metadata.RENDERBUFFER_TYPE_INDEX, metadata.IndexBytes(indices))
	if err != nil {
		backend.RenderBufferDestroy(vb)
		return nil, fmt.Errorf("mesh '%s' index upload: %w", sm.Name, err)
	}

	return &Mesh{
		Name:          sm.Name,
		VertexBuffer:  vb,
		IndexBuffer:   ib,
		IndexCount:    uint32(len(indices)),
		MaterialIndex: sm.MaterialIndex,
	}, nil
}

func (m *Mesh) destroy(backend renderer.RendererBackend) {
	if m.IndexBuffer != nil {
		backend.RenderBufferDestroy(m.IndexBuffer)
		m.IndexBuffer = nil
	}
	if m.VertexBuffer != nil {
		backend.RenderBufferDestroy(m.VertexBuffer)
		m.VertexBuffer = nil
	}
}
