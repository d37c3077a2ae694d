package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
	"github.com/spaghettifunk/kestrel/engine/core"
	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
)

const (
	maxShaderStages     = 2
	maxVertexBindings   = 4
	maxVertexAttributes = 16
	maxDynamicStates    = 8
	maxColorAttachments = 4
)

/**
 * @brief Accumulates the fixed-function sub-states of one graphics pipeline.
 * One setter per axis of the packed pipeline state. Reset before reuse.
 */
type PipelineBuilder struct {
	stages           []ShaderStageDesc
	bindings         []vk.VertexInputBindingDescription
	attributes       []vk.VertexInputAttributeDescription
	inputAssembly    vk.PipelineInputAssemblyStateCreateInfo
	rasterization    vk.PipelineRasterizationStateCreateInfo
	multisample      vk.PipelineMultisampleStateCreateInfo
	depthStencil     vk.PipelineDepthStencilStateCreateInfo
	blendAttachments []vk.PipelineColorBlendAttachmentState
	dynamicStates    []vk.DynamicState
}

func NewPipelineBuilder() *PipelineBuilder {
	b := &PipelineBuilder{}
	b.Reset()
	return b
}

// Reset restores the defaults: triangle list, solid fill, no culling, depth
// test less-equal with writes, no stencil, single sample.
func (b *PipelineBuilder) Reset() {
	b.stages = b.stages[:0]
	b.bindings = b.bindings[:0]
	b.attributes = b.attributes[:0]
	b.blendAttachments = b.blendAttachments[:0]
	b.dynamicStates = b.dynamicStates[:0]

	b.inputAssembly = vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}
	b.rasterization = vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}
	b.multisample = vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples:  vk.SampleCount1Bit,
		SampleShadingEnable:   vk.False,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}
	b.depthStencil = vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.True,
		DepthWriteEnable:      vk.True,
		DepthCompareOp:        vk.CompareOpLessOrEqual,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
		MinDepthBounds:        0.0,
		MaxDepthBounds:        1.0,
	}
}

// AddShaderStage appends the stage of shader. Returns false when the
// variation has no bytecode or the stage limit is reached.
func (b *PipelineBuilder) AddShaderStage(shader metadata.ShaderVariation) bool {
	if shader == nil || len(shader.ByteCode()) == 0 {
		return false
	}
	if len(b.stages) >= maxShaderStages {
		core.LogWarn("pipeline builder: more than %d shader stages, %s ignored", maxShaderStages, shader.Name())
		return false
	}
	stage := vk.ShaderStageVertexBit
	if shader.Type() == metadata.PixelShader {
		stage = vk.ShaderStageFragmentBit
	}
	entry := shader.EntryPoint()
	if entry == "" {
		entry = "main"
	}
	b.stages = append(b.stages, ShaderStageDesc{Stage: stage, Code: shader.ByteCode(), Entry: entry})
	return true
}

// AddVertexBinding declares one vertex stream and its elements. Attribute
// locations are assigned in declaration order across all bindings.
func (b *PipelineBuilder) AddVertexBinding(layout VertexBindingLayout) bool {
	if len(b.bindings) >= maxVertexBindings {
		core.LogWarn("pipeline builder: more than %d vertex bindings", maxVertexBindings)
		return false
	}
	binding := uint32(len(b.bindings))
	rate := vk.VertexInputRateVertex
	if layout.PerInstance {
		rate = vk.VertexInputRateInstance
	}
	b.bindings = append(b.bindings, vk.VertexInputBindingDescription{
		Binding:   binding,
		Stride:    layout.Stride,
		InputRate: rate,
	})
	for _, e := range layout.Elements {
		if len(b.attributes) >= maxVertexAttributes {
			core.LogWarn("pipeline builder: more than %d vertex attributes", maxVertexAttributes)
			return false
		}
		if e.Type >= metadata.MaxVertexElementTypes {
			continue
		}
		b.attributes = append(b.attributes, vk.VertexInputAttributeDescription{
			Location: uint32(len(b.attributes)),
			Binding:  binding,
			Format:   metadata.VertexElementFormat[e.Type],
			Offset:   e.Offset,
		})
	}
	return true
}

func (b *PipelineBuilder) SetTopology(primitive metadata.PrimitiveType) {
	if primitive >= metadata.MaxPrimitiveTypes {
		primitive = metadata.TriangleList
	}
	b.inputAssembly.Topology = primitiveTopologies[primitive]
}

func (b *PipelineBuilder) SetPolygonMode(fill metadata.FillMode) {
	if int(fill) >= len(polygonModes) {
		fill = metadata.FillSolid
	}
	b.rasterization.PolygonMode = polygonModes[fill]
}

func (b *PipelineBuilder) SetCullMode(cull metadata.CullMode) {
	if cull >= metadata.MaxCullModes {
		cull = metadata.CullNone
	}
	b.rasterization.CullMode = vk.CullModeFlags(cullModes[cull])
}

func (b *PipelineBuilder) SetLineWidth(width float32) {
	b.rasterization.LineWidth = width
}

func (b *PipelineBuilder) SetDepthTest(compare metadata.CompareMode, write bool) {
	if compare >= metadata.MaxCompareModes {
		compare = metadata.CompareAlways
	}
	b.depthStencil.DepthCompareOp = compareOps[compare]
	b.depthStencil.DepthWriteEnable = vkBool(write)
	b.depthStencil.DepthTestEnable = vkBool(compare != metadata.CompareAlways || write)
}

// SetStencilTest configures both faces from a stencil mode index.
func (b *PipelineBuilder) SetStencilTest(enable bool, mode uint32, reference uint32) {
	b.depthStencil.StencilTestEnable = vkBool(enable)
	if int(mode) >= len(stencilModes) {
		mode = 0
	}
	m := stencilModes[mode]
	op := vk.StencilOpState{
		FailOp:      stencilOps[m.fail],
		PassOp:      stencilOps[m.pass],
		DepthFailOp: stencilOps[m.zFail],
		CompareOp:   compareOps[m.compare],
		CompareMask: 0xFF,
		WriteMask:   0xFF,
		Reference:   reference,
	}
	b.depthStencil.Front = op
	b.depthStencil.Back = op
}

// SetMultiSample takes the log2 encoded sample count of the samples axis.
func (b *PipelineBuilder) SetMultiSample(samplesIndex uint32) {
	if int(samplesIndex) >= len(sampleCounts) {
		samplesIndex = 0
	}
	b.multisample.RasterizationSamples = sampleCounts[samplesIndex]
}

func (b *PipelineBuilder) AddDynamicState(state vk.DynamicState) {
	for _, s := range b.dynamicStates {
		if s == state {
			return
		}
	}
	if len(b.dynamicStates) >= maxDynamicStates {
		core.LogWarn("pipeline builder: more than %d dynamic states", maxDynamicStates)
		return
	}
	b.dynamicStates = append(b.dynamicStates, state)
}

func (b *PipelineBuilder) AddColorBlendAttachment(blend metadata.BlendMode, colorMask uint32) {
	if len(b.blendAttachments) >= maxColorAttachments {
		core.LogWarn("pipeline builder: more than %d colour attachments", maxColorAttachments)
		return
	}
	if blend >= metadata.MaxBlendModes {
		blend = metadata.BlendReplace
	}
	d := blendModes[blend]
	b.blendAttachments = append(b.blendAttachments, vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vkBool(d.enable),
		SrcColorBlendFactor: d.srcColor,
		DstColorBlendFactor: d.dstColor,
		ColorBlendOp:        d.colorOp,
		SrcAlphaBlendFactor: d.srcAlpha,
		DstAlphaBlendFactor: d.dstAlpha,
		AlphaBlendOp:        d.alphaOp,
		ColorWriteMask:      vk.ColorComponentFlags(colorMask & ColorMaskAll),
	})
}

// ApplyStates sets every axis from a packed state bitmask. One blend
// attachment is added per colour attachment written by subpass.
func (b *PipelineBuilder) ApplyStates(states, stencilValue uint32, pass *RenderPassInfo, subpass uint32) {
	b.SetTopology(metadata.PrimitiveType(GetPipelineState(states, PipelineStatePrimitive)))
	b.SetPolygonMode(metadata.FillMode(GetPipelineState(states, PipelineStateFillMode)))
	b.SetCullMode(metadata.CullMode(GetPipelineState(states, PipelineStateCullMode)))
	lw := GetPipelineState(states, PipelineStateLineWidth)
	if int(lw) < len(LineWidthValues) {
		b.SetLineWidth(LineWidthValues[lw])
	}
	b.SetDepthTest(metadata.CompareMode(GetPipelineState(states, PipelineStateDepthTest)),
		GetPipelineState(states, PipelineStateDepthWrite) != 0)
	b.SetStencilTest(GetPipelineState(states, PipelineStateStencilTest) != 0,
		GetPipelineState(states, PipelineStateStencilMode), stencilValue)
	b.SetMultiSample(GetPipelineState(states, PipelineStateSamples))

	blend := metadata.BlendMode(GetPipelineState(states, PipelineStateBlendMode))
	mask := GetPipelineState(states, PipelineStateColorMask)
	if pass != nil && int(subpass) < len(pass.Subpasses) {
		for range pass.Subpasses[subpass].Colors {
			b.AddColorBlendAttachment(blend, mask)
		}
	}
	b.AddDynamicState(vk.DynamicStateViewport)
	b.AddDynamicState(vk.DynamicStateScissor)
}

// Desc snapshots the accumulated state for the driver.
func (b *PipelineBuilder) Desc(layout, renderPass containers.Handle, subpass uint32) *PipelineDesc {
	return &PipelineDesc{
		Stages:                append([]ShaderStageDesc(nil), b.stages...),
		VertexBindings:        append([]vk.VertexInputBindingDescription(nil), b.bindings...),
		VertexAttributes:      append([]vk.VertexInputAttributeDescription(nil), b.attributes...),
		InputAssembly:         b.inputAssembly,
		Rasterization:         b.rasterization,
		Multisample:           b.multisample,
		DepthStencil:          b.depthStencil,
		ColorBlendAttachments: append([]vk.PipelineColorBlendAttachmentState(nil), b.blendAttachments...),
		ColorBlend: vk.PipelineColorBlendStateCreateInfo{
			SType:         vk.StructureTypePipelineColorBlendStateCreateInfo,
			LogicOpEnable: vk.False,
			LogicOp:       vk.LogicOpCopy,
		},
		DynamicStates: append([]vk.DynamicState(nil), b.dynamicStates...),
		Layout:        layout,
		RenderPass:    renderPass,
		Subpass:       subpass,
	}
}

// CreatePipeline derives the descriptor groups and pipeline layout of info,
// then compiles the native pipeline. On failure info keeps a null Handle.
func (b *PipelineBuilder) CreatePipeline(dev Device, layouts *DescriptorLayoutCache, info *PipelineInfo) error {
	b.Reset()
	if err := CreateDescriptors(dev, layouts, info); err != nil {
		return err
	}
	setLayouts := make([]containers.Handle, 0, len(info.SetLayouts))
	setLayouts = append(setLayouts, info.SetLayouts...)
	layout, err := dev.CreatePipelineLayout(setLayouts)
	if err != nil {
		return err
	}
	info.Layout = layout

	b.AddShaderStage(info.VS)
	b.AddShaderStage(info.PS)
	for _, vb := range info.VertexBindings {
		b.AddVertexBinding(vb)
	}
	b.ApplyStates(info.States, info.StencilValue, info.RenderPass, info.Subpass)

	handle, err := dev.CreateGraphicsPipeline(b.Desc(layout, info.RenderPass.Handle, info.Subpass))
	if err != nil {
		return err
	}
	info.Handle = handle
	return nil
}

func vkBool(v bool) vk.Bool32 {
	if v {
		return vk.True
	}
	return vk.False
}
