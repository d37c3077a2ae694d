package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
)

func (d *VulkanDriver) CreateFramebuffer(desc FramebufferDesc) (containers.Handle, error) {
	renderPass, ok := d.renderPasses.Get(desc.RenderPass)
	if !ok {
		return containers.NullHandle, errors.Newf("unknown render pass %v", desc.RenderPass)
	}
	attachments := make([]vk.ImageView, len(desc.Attachments))
	for i, h := range desc.Attachments {
		img, ok := d.images.Get(h)
		if !ok {
			return containers.NullHandle, errors.Newf("framebuffer attachment %d: unknown view %v", i, h)
		}
		attachments[i] = img.View
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           desc.Width,
		Height:          desc.Height,
		Layers:          1,
	}

	var pFramebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(d.device(), &framebufferCreateInfo, d.context.Allocator, &pFramebuffer); res != vk.Success {
		return containers.NullHandle, vkError(res, "vkCreateFramebuffer")
	}
	return d.framebuffers.Insert(pFramebuffer), nil
}

func (d *VulkanDriver) DestroyFramebuffer(h containers.Handle) {
	if fb, ok := d.framebuffers.Remove(h); ok {
		vk.DestroyFramebuffer(d.device(), fb, d.context.Allocator)
	}
}
