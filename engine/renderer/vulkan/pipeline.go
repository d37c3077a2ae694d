package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
	"github.com/spaghettifunk/kestrel/engine/core"
)

func (d *VulkanDriver) CreatePipelineLayout(setLayouts []containers.Handle) (containers.Handle, error) {
	native := make([]vk.DescriptorSetLayout, len(setLayouts))
	for i, h := range setLayouts {
		layout, ok := d.setLayouts.Get(h)
		if !ok {
			return containers.NullHandle, errors.Newf("pipeline layout: unknown set layout %v at set %d", h, i)
		}
		native[i] = layout
	}
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(native)),
		PSetLayouts:    native,
	}

	var handle containers.Handle
	err := d.locks.SafeCall(PipelineManagement, func() error {
		var pPipelineLayout vk.PipelineLayout
		if res := vk.CreatePipelineLayout(d.device(), &pipelineLayoutCreateInfo, d.context.Allocator, &pPipelineLayout); res != vk.Success {
			return vkError(res, "vkCreatePipelineLayout")
		}
		handle = d.pipelineLayouts.Insert(pPipelineLayout)
		return nil
	})
	return handle, err
}

func (d *VulkanDriver) DestroyPipelineLayout(h containers.Handle) {
	_ = d.locks.SafeCall(PipelineManagement, func() error {
		if layout, ok := d.pipelineLayouts.Remove(h); ok {
			vk.DestroyPipelineLayout(d.device(), layout, d.context.Allocator)
		}
		return nil
	})
}

// CreateGraphicsPipeline fills in the pointers and counts of desc's
// sub-states and compiles the pipeline. Viewport and scissor are dynamic, so
// the viewport state only carries the counts.
func (d *VulkanDriver) CreateGraphicsPipeline(desc *PipelineDesc) (containers.Handle, error) {
	layout, ok := d.pipelineLayouts.Get(desc.Layout)
	if !ok {
		return containers.NullHandle, errors.Newf("unknown pipeline layout %v", desc.Layout)
	}
	renderPass, ok := d.renderPasses.Get(desc.RenderPass)
	if !ok {
		return containers.NullHandle, errors.Newf("unknown render pass %v", desc.RenderPass)
	}

	stages := make([]VulkanShaderStage, 0, len(desc.Stages))
	defer func() { d.destroyShaderStages(stages) }()
	stageInfos := make([]vk.PipelineShaderStageCreateInfo, 0, len(desc.Stages))
	for _, s := range desc.Stages {
		stage, err := d.newShaderStage(s)
		if err != nil {
			return containers.NullHandle, err
		}
		stages = append(stages, stage)
		stageInfos = append(stageInfos, stage.ShaderStageCreateInfo)
	}

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(desc.VertexBindings)),
		PVertexBindingDescriptions:      desc.VertexBindings,
		VertexAttributeDescriptionCount: uint32(len(desc.VertexAttributes)),
		PVertexAttributeDescriptions:    desc.VertexAttributes,
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	colorBlend := desc.ColorBlend
	colorBlend.AttachmentCount = uint32(len(desc.ColorBlendAttachments))
	colorBlend.PAttachments = desc.ColorBlendAttachments
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(desc.DynamicStates)),
		PDynamicStates:    desc.DynamicStates,
	}
	inputAssembly := desc.InputAssembly
	rasterization := desc.Rasterization
	multisample := desc.Multisample
	depthStencil := desc.DepthStencil

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stageInfos)),
		PStages:             stageInfos,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterization,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             desc.Subpass,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	var handle containers.Handle
	err := d.locks.SafeCall(PipelineManagement, func() error {
		pipelines := make([]vk.Pipeline, 1)
		result := vk.CreateGraphicsPipelines(d.device(), vk.NullPipelineCache, 1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, d.context.Allocator, pipelines)
		if !VulkanResultIsSuccess(result) {
			return vkError(result, "vkCreateGraphicsPipelines")
		}
		handle = d.pipelines.Insert(pipelines[0])
		return nil
	})
	if err != nil {
		return containers.NullHandle, errors.Mark(err, core.ErrPipelineBuild)
	}
	core.LogDebug("Graphics pipeline created for subpass %d.", desc.Subpass)
	return handle, nil
}

func (d *VulkanDriver) DestroyPipeline(h containers.Handle) {
	_ = d.locks.SafeCall(PipelineManagement, func() error {
		if pipeline, ok := d.pipelines.Remove(h); ok {
			vk.DestroyPipeline(d.device(), pipeline, d.context.Allocator)
		}
		return nil
	})
}
