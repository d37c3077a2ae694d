package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
)

// CreateRenderPass turns a registry description into a native render pass.
// Reference slices are copied into per-subpass storage so the descriptions
// the registry keeps are never aliased by the create info.
func (d *VulkanDriver) CreateRenderPass(desc *RenderPassDesc) (containers.Handle, error) {
	subpasses := make([]vk.SubpassDescription, len(desc.Subpasses))
	for i, sp := range desc.Subpasses {
		subpass := vk.SubpassDescription{
			PipelineBindPoint: vk.PipelineBindPointGraphics,
		}
		if len(sp.Colors) > 0 {
			subpass.ColorAttachmentCount = uint32(len(sp.Colors))
			subpass.PColorAttachments = append([]vk.AttachmentReference(nil), sp.Colors...)
		}
		if sp.Depth != nil {
			depth := *sp.Depth
			subpass.PDepthStencilAttachment = &depth
		}
		if len(sp.Inputs) > 0 {
			subpass.InputAttachmentCount = uint32(len(sp.Inputs))
			subpass.PInputAttachments = append([]vk.AttachmentReference(nil), sp.Inputs...)
		}
		if len(sp.Preserve) > 0 {
			subpass.PreserveAttachmentCount = uint32(len(sp.Preserve))
			subpass.PPreserveAttachments = append([]uint32(nil), sp.Preserve...)
		}
		subpasses[i] = subpass
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(desc.Attachments)),
		PAttachments:    desc.Attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(desc.Dependencies)),
		PDependencies:   desc.Dependencies,
	}

	var pRenderPass vk.RenderPass
	if res := vk.CreateRenderPass(d.device(), &renderpassCreateInfo, d.context.Allocator, &pRenderPass); res != vk.Success {
		return containers.NullHandle, vkError(res, "vkCreateRenderPass")
	}
	return d.renderPasses.Insert(pRenderPass), nil
}

func (d *VulkanDriver) DestroyRenderPass(h containers.Handle) {
	if pass, ok := d.renderPasses.Remove(h); ok {
		vk.DestroyRenderPass(d.device(), pass, d.context.Allocator)
	}
}
