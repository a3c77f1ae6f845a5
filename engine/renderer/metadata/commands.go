package metadata

type PipelineBindPoint int

const (
	PIPELINE_BIND_POINT_GRAPHICS PipelineBindPoint = iota
	PIPELINE_BIND_POINT_COMPUTE
)

type IndexType int

const (
	INDEX_TYPE_UINT16 IndexType = iota
	INDEX_TYPE_UINT32
)

// DrawCommand is one entry of a recorded draw sequence. Pointers to the
// concrete types below are the only implementations.
type DrawCommand interface {
	drawCommand()
}

type BindDescriptorSets struct {
	BindPoint      PipelineBindPoint
	PipelineLayout *PipelineLayout
	FirstSet       uint32
	DescriptorSets []*DescriptorSet
}

type BindVertexBuffers struct {
	FirstBinding uint32
	Buffers      []*RenderBuffer
	Offsets      []uint64
}

type BindIndexBuffer struct {
	Buffer    *RenderBuffer
	Offset    uint64
	IndexType IndexType
}

type DrawIndexed struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

func (*BindDescriptorSets) drawCommand() {}
func (*BindVertexBuffers) drawCommand()  {}
func (*BindIndexBuffer) drawCommand()    {}
func (*DrawIndexed) drawCommand()        {}
