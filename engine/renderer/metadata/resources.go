package metadata

import (
	"github.com/spaghettifunk/kestrel/engine/containers"
)

/**
 * @brief A compiled shader variation supplied by the shader system.
 * The graphics core only reads it; identity is (Name, VariationHash).
 */
type ShaderVariation interface {
	/** @brief Base shader name. */
	Name() string
	/** @brief Hash of the variation defines, distinguishes variations of the same shader. */
	VariationHash() uint32
	/** @brief Stage the variation was compiled for. */
	Type() ShaderType
	/** @brief SPIR-V words, empty when the variation is not ready. */
	ByteCode() []uint32
	/** @brief Entry point name, usually "main". */
	EntryPoint() string
	/** @brief Reflected constant buffer byte sizes per parameter group, zero when unused. */
	ConstantBufferSizes() [MaxShaderParameterGroups]uint32
	/** @brief Reflected descriptor bindings per set. */
	DescriptorStructure() DescriptorStructure
	/** @brief Byte offset of a named parameter inside its constant buffer. */
	ParameterOffset(name string) (group int, offset uint32, ok bool)
}

/**
 * @brief A vertex stream.
 */
type VertexBuffer interface {
	/** @brief Native buffer handle, null when the buffer is not created. */
	GPUObject() containers.Handle
	VertexCount() uint32
	/** @brief Stride in bytes. */
	VertexSize() uint32
	Elements() []VertexElement
}

/**
 * @brief An index stream.
 */
type IndexBuffer interface {
	GPUObject() containers.Handle
	IndexCount() uint32
	/** @brief Bytes per index, 2 or 4. */
	IndexSize() uint32
}

/**
 * @brief A uniform buffer owned by the shader parameter system.
 */
type ConstantBuffer interface {
	GPUObject() containers.Handle
	/** @brief Size in bytes of one object's data. */
	Size() uint32
	/** @brief True when shadow data has not been uploaded yet. */
	IsDirty() bool
	/**
	 * @brief Upload shadow data for frame and clear the dirty flag. The first
	 * upload of a new frame goes to a region no earlier frame in flight reads,
	 * so GPUObject may change.
	 */
	Apply(frame uint64)
	/**
	 * @brief Object slot addressed through a dynamic offset. Buffers bound
	 * to non-dynamic bindings always report zero.
	 */
	ObjectIndex() uint32
}

/**
 * @brief A sampled texture.
 * A null view or sampler handle means "not ready" and the unit is skipped.
 */
type Texture interface {
	Name() string
	ShaderResourceView() containers.Handle
	Sampler() containers.Handle
	/** @brief Texture used while this one is bound as a render target. */
	BackupTexture() Texture
	Levels() uint32
	SetLevelsDirty()
	MultiSample() uint32
	AutoResolve() bool
	SetResolveDirty(dirty bool)
}

/**
 * @brief A texture level usable as a colour render target.
 */
type RenderSurface interface {
	ParentTexture() Texture
	/** @brief Attachment view of the surface. */
	RenderTargetView() containers.Handle
	Width() uint32
	Height() uint32
	MultiSample() uint32
	SetResolveDirty(dirty bool)
}
