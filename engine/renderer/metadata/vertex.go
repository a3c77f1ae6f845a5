package metadata

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/dubu/engine/math"
)

// VertexSize is the size in bytes of one interleaved Vertex.
const VertexSize = 8 * 4

/**
 * @brief Represents a single vertex in 3D space.
 */
type Vertex struct {
	/** @brief The position of the vertex */
	Position math.Vec3
	/** @brief The normal of the vertex. */
	Normal math.Vec3
	/** @brief The texture coordinate of the vertex. */
	TexCoord math.Vec2
}

// VertexBytes packs vertices into the little-endian interleaved layout
// expected by the vertex input binding.
func VertexBytes(vertices []Vertex) []byte {
	out := make([]byte, len(vertices)*VertexSize)
	for i, v := range vertices {
		b := out[i*VertexSize:]
		for j, f := range [8]float32{
			v.Position.X, v.Position.Y, v.Position.Z,
			v.Normal.X, v.Normal.Y, v.Normal.Z,
			v.TexCoord.X, v.TexCoord.Y,
		} {
			binary.LittleEndian.PutUint32(b[j*4:], gomath.Float32bits(f))
		}
	}
	return out
}

// IndexBytes packs 32-bit indices little-endian.
func IndexBytes(indices []uint32) []byte {
	out := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}
