package metadata

import "github.com/google/uuid"

/** @brief A descriptor set layout created by the caller. */
type DescriptorSetLayout struct {
	/** @brief The number of bindings in the layout. */
	BindingCount uint32
	InternalData interface{}
}

/** @brief A descriptor pool created by the caller. */
type DescriptorPool struct {
	/** @brief The maximum number of sets that can be allocated from the pool. */
	MaxSets      uint32
	InternalData interface{}
}

/** @brief A pipeline layout created by the caller. */
type PipelineLayout struct {
	InternalData interface{}
}

/** @brief A single descriptor set, exclusively owned by a material. */
type DescriptorSet struct {
	ID           uuid.UUID
	Layout       *DescriptorSetLayout
	InternalData interface{}
}
