package metadata

import (
	vk "github.com/goki/vulkan"
)

const (
	/** @brief Number of texture units addressable by SetTexture. */
	MaxTextureUnits = 16
	/** @brief Number of vertex streams bindable at once. */
	MaxVertexStreams = 4
	/** @brief Number of colour render targets. */
	MaxRenderTargets = 4
	/** @brief Number of constant buffer groups per shader stage. */
	MaxShaderParameterGroups = 7
	/** @brief Number of logical viewports tracked for size-dependent attachments. */
	MaxViewports = 8
)

/** @brief Primitive topology requested by a draw call. */
type PrimitiveType uint32

const (
	TriangleList PrimitiveType = iota
	LineList
	PointList
	TriangleStrip
	LineStrip
	TriangleFan
	MaxPrimitiveTypes
)

/** @brief Colour blending mode. */
type BlendMode uint32

const (
	BlendReplace BlendMode = iota
	BlendAdd
	BlendMultiply
	BlendAlpha
	BlendAddAlpha
	BlendPreMulAlpha
	BlendInvDestAlpha
	BlendSubtract
	BlendSubtractAlpha
	MaxBlendModes
)

/** @brief Depth or stencil compare function. */
type CompareMode uint32

const (
	CompareAlways CompareMode = iota
	CompareEqual
	CompareNotEqual
	CompareLess
	CompareLessEqual
	CompareGreater
	CompareGreaterEqual
	MaxCompareModes
)

/** @brief Triangle culling mode. CullCCW discards counter-clockwise triangles. */
type CullMode uint32

const (
	CullNone CullMode = iota
	CullCCW
	CullCW
	MaxCullModes
)

/** @brief Polygon fill mode. */
type FillMode uint32

const (
	FillSolid FillMode = iota
	FillWireframe
	FillPoint
)

/** @brief Stencil buffer operation. */
type StencilOp uint32

const (
	StencilOpKeep StencilOp = iota
	StencilOpZero
	StencilOpRef
	StencilOpIncr
	StencilOpDecr
)

/** @brief Shader stage a variation was compiled for. */
type ShaderType uint32

const (
	VertexShader ShaderType = iota
	PixelShader
)

/** @brief Clear target flags. */
type ClearTarget uint32

const (
	ClearColor ClearTarget = 1 << iota
	ClearDepth
	ClearStencil
)

/** @brief Data type of a single vertex element. */
type VertexElementType uint8

const (
	TypeInt VertexElementType = iota
	TypeFloat
	TypeVector2
	TypeVector3
	TypeVector4
	TypeUByte4
	TypeUByte4Norm
	MaxVertexElementTypes
)

/** @brief Semantic of a vertex element. */
type VertexElementSemantic uint8

const (
	SemPosition VertexElementSemantic = iota
	SemNormal
	SemBinormal
	SemTangent
	SemTexCoord
	SemColor
	SemBlendWeights
	SemBlendIndices
	SemObjectIndex
)

/**
 * @brief Describes one attribute of a vertex stream.
 */
type VertexElement struct {
	/** @brief Data type of the element. */
	Type VertexElementType
	/** @brief Semantic of the element. */
	Semantic VertexElementSemantic
	/** @brief Semantic index, e.g. the texcoord set. */
	Index uint8
	/** @brief Whether the element advances per instance instead of per vertex. */
	PerInstance bool
	/** @brief Byte offset inside the vertex. */
	Offset uint32
}

/** @brief Byte size of each vertex element type. */
var VertexElementTypeSize = [MaxVertexElementTypes]uint32{
	4,  // TypeInt
	4,  // TypeFloat
	8,  // TypeVector2
	12, // TypeVector3
	16, // TypeVector4
	4,  // TypeUByte4
	4,  // TypeUByte4Norm
}

/** @brief Native format of each vertex element type. */
var VertexElementFormat = [MaxVertexElementTypes]vk.Format{
	vk.FormatR32Sint,
	vk.FormatR32Sfloat,
	vk.FormatR32g32Sfloat,
	vk.FormatR32g32b32Sfloat,
	vk.FormatR32g32b32a32Sfloat,
	vk.FormatR8g8b8a8Uint,
	vk.FormatR8g8b8a8Unorm,
}

/**
 * @brief One shader-reflected descriptor binding.
 */
type ShaderBind struct {
	/** @brief Binding number inside the set. */
	ID uint32
	/** @brief Descriptor type: uniform buffer (dynamic or not), combined image sampler or input attachment. */
	Type vk.DescriptorType
	/** @brief Stage(s) the binding is visible to. */
	StageFlag vk.ShaderStageFlagBits
	/**
	 * @brief First resource unit. Texture unit for samplers, parameter group for
	 * uniform buffers, attachment index in the current pass for input attachments.
	 */
	UnitStart uint32
	/** @brief Number of array elements, at least one. */
	UnitRange uint32
}

/** @brief Reflected bindings of one shader, set number -> bindings. */
type DescriptorStructure map[uint32][]ShaderBind
