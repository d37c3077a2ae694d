package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
)

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

// newShaderStage compiles SPIR-V words into a module. The module is only
// needed until the pipeline referencing it is created.
func (d *VulkanDriver) newShaderStage(desc ShaderStageDesc) (VulkanShaderStage, error) {
	var stage VulkanShaderStage
	if len(desc.Code) == 0 {
		return stage, errors.Newf("empty shader code for stage %#x", desc.Stage)
	}
	createInfo := shaderModuleCreateInfo(desc.Code)
	if res := vk.CreateShaderModule(d.device(), &createInfo, d.context.Allocator, &stage.Handle); res != vk.Success {
		return stage, vkError(res, "vkCreateShaderModule")
	}
	entry := desc.Entry
	if entry == "" {
		entry = "main"
	}
	stage.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  desc.Stage,
		Module: stage.Handle,
		PName:  VulkanSafeString(entry),
	}
	return stage, nil
}

func (d *VulkanDriver) destroyShaderStages(stages []VulkanShaderStage) {
	for _, s := range stages {
		if s.Handle != nil {
			vk.DestroyShaderModule(d.device(), s.Handle, d.context.Allocator)
		}
	}
}

// shaderModuleCreateInfo describes SPIR-V words; CodeSize is in bytes.
func shaderModuleCreateInfo(code []uint32) vk.ShaderModuleCreateInfo {
	return vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
}
