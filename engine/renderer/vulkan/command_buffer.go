package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
)

type VulkanCommandBufferState int

const (
	CommandBufferStateReady VulkanCommandBufferState = iota
	CommandBufferStateRecording
	CommandBufferStateInRenderPass
	CommandBufferStateRecordingEnded
	CommandBufferStateSubmitted
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	Pool   containers.Handle
	State  VulkanCommandBufferState
}

func (v *VulkanCommandBuffer) Reset() {
	v.State = CommandBufferStateReady
}

func (d *VulkanDriver) allocateCommandBuffer(pool containers.Handle, primary bool) (containers.Handle, error) {
	nativePool, ok := d.commandPools.Get(pool)
	if !ok {
		return containers.NullHandle, errors.Newf("unknown command pool %v", pool)
	}
	level := vk.CommandBufferLevelPrimary
	if !primary {
		level = vk.CommandBufferLevelSecondary
	}
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        nativePool,
		Level:              level,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(d.device(), &allocateInfo, buffers); res != vk.Success {
		return containers.NullHandle, vkError(res, "vkAllocateCommandBuffers")
	}
	return d.commandBuffers.Insert(&VulkanCommandBuffer{
		Handle: buffers[0],
		Pool:   pool,
		State:  CommandBufferStateReady,
	}), nil
}

// cmd resolves a recording command buffer; unknown handles yield nil and the
// recording call is dropped.
func (d *VulkanDriver) cmd(h containers.Handle) *VulkanCommandBuffer {
	cb, _ := d.commandBuffers.Get(h)
	return cb
}

func (d *VulkanDriver) BeginCommandBuffer(h containers.Handle) error {
	cb := d.cmd(h)
	if cb == nil {
		return errors.Newf("unknown command buffer %v", h)
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(cb.Handle, &beginInfo); res != vk.Success {
		return vkError(res, "vkBeginCommandBuffer")
	}
	cb.State = CommandBufferStateRecording
	return nil
}

func (d *VulkanDriver) EndCommandBuffer(h containers.Handle) error {
	cb := d.cmd(h)
	if cb == nil {
		return errors.Newf("unknown command buffer %v", h)
	}
	if res := vk.EndCommandBuffer(cb.Handle); res != vk.Success {
		return vkError(res, "vkEndCommandBuffer")
	}
	cb.State = CommandBufferStateRecordingEnded
	return nil
}

func (d *VulkanDriver) CmdBeginRenderPass(h, pass, framebuffer containers.Handle, area vk.Rect2D, clearValues []vk.ClearValue) {
	cb := d.cmd(h)
	renderPass, ok := d.renderPasses.Get(pass)
	fb, fbOK := d.framebuffers.Get(framebuffer)
	if cb == nil || !ok || !fbOK {
		return
	}
	beginInfo := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      renderPass,
		Framebuffer:     fb,
		RenderArea:      area,
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(cb.Handle, &beginInfo, vk.SubpassContentsInline)
	cb.State = CommandBufferStateInRenderPass
}

func (d *VulkanDriver) CmdNextSubpass(h containers.Handle) {
	if cb := d.cmd(h); cb != nil {
		vk.CmdNextSubpass(cb.Handle, vk.SubpassContentsInline)
	}
}

func (d *VulkanDriver) CmdEndRenderPass(h containers.Handle) {
	if cb := d.cmd(h); cb != nil {
		vk.CmdEndRenderPass(cb.Handle)
		cb.State = CommandBufferStateRecording
	}
}

func (d *VulkanDriver) CmdBindPipeline(h, pipeline containers.Handle) {
	cb := d.cmd(h)
	p, ok := d.pipelines.Get(pipeline)
	if cb == nil || !ok {
		return
	}
	vk.CmdBindPipeline(cb.Handle, vk.PipelineBindPointGraphics, p)
}

func (d *VulkanDriver) CmdBindDescriptorSets(h, layout containers.Handle, firstSet uint32, sets []containers.Handle, dynamicOffsets []uint32) {
	cb := d.cmd(h)
	pipelineLayout, ok := d.pipelineLayouts.Get(layout)
	if cb == nil || !ok || len(sets) == 0 {
		return
	}
	native := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		if native[i], ok = d.descriptorSets.Get(s); !ok {
			return
		}
	}
	vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointGraphics, pipelineLayout,
		firstSet, uint32(len(native)), native, uint32(len(dynamicOffsets)), dynamicOffsets)
}

func (d *VulkanDriver) CmdBindVertexBuffers(h containers.Handle, firstBinding uint32, buffers []containers.Handle, offsets []uint64) {
	cb := d.cmd(h)
	if cb == nil || len(buffers) == 0 {
		return
	}
	native := make([]vk.Buffer, len(buffers))
	nativeOffsets := make([]vk.DeviceSize, len(buffers))
	for i, b := range buffers {
		buf, ok := d.buffers.Get(b)
		if !ok {
			return
		}
		native[i] = buf.Handle
		if i < len(offsets) {
			nativeOffsets[i] = vk.DeviceSize(offsets[i])
		}
	}
	vk.CmdBindVertexBuffers(cb.Handle, firstBinding, uint32(len(native)), native, nativeOffsets)
}

func (d *VulkanDriver) CmdBindIndexBuffer(h, buffer containers.Handle, indexType vk.IndexType) {
	cb := d.cmd(h)
	buf, ok := d.buffers.Get(buffer)
	if cb == nil || !ok {
		return
	}
	vk.CmdBindIndexBuffer(cb.Handle, buf.Handle, 0, indexType)
}

func (d *VulkanDriver) CmdSetViewport(h containers.Handle, viewport vk.Viewport) {
	if cb := d.cmd(h); cb != nil {
		vk.CmdSetViewport(cb.Handle, 0, 1, []vk.Viewport{viewport})
	}
}

func (d *VulkanDriver) CmdSetScissor(h containers.Handle, scissor vk.Rect2D) {
	if cb := d.cmd(h); cb != nil {
		vk.CmdSetScissor(cb.Handle, 0, 1, []vk.Rect2D{scissor})
	}
}

func (d *VulkanDriver) CmdDraw(h containers.Handle, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if cb := d.cmd(h); cb != nil {
		vk.CmdDraw(cb.Handle, vertexCount, instanceCount, firstVertex, firstInstance)
	}
}

func (d *VulkanDriver) CmdDrawIndexed(h containers.Handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	if cb := d.cmd(h); cb != nil {
		vk.CmdDrawIndexed(cb.Handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	}
}

// runSingleUse records fn into a throwaway command buffer from the device's
// transient pool, submits it and waits for the graphics queue to drain.
func (d *VulkanDriver) runSingleUse(fn func(cmd vk.CommandBuffer)) error {
	dev := d.context.Device
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        dev.GraphicsCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(d.device(), &allocateInfo, buffers); res != vk.Success {
		return vkError(res, "vkAllocateCommandBuffers")
	}
	defer vk.FreeCommandBuffers(d.device(), dev.GraphicsCommandPool, 1, buffers)

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(buffers[0], &beginInfo); res != vk.Success {
		return vkError(res, "vkBeginCommandBuffer")
	}
	fn(buffers[0])
	if res := vk.EndCommandBuffer(buffers[0]); res != vk.Success {
		return vkError(res, "vkEndCommandBuffer")
	}

	return d.locks.SafeQueueCall(dev.GraphicsQueueIndex, func() error {
		submitInfo := vk.SubmitInfo{
			SType:              vk.StructureTypeSubmitInfo,
			CommandBufferCount: 1,
			PCommandBuffers:    buffers,
		}
		if res := vk.QueueSubmit(dev.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
			return vkError(res, "vkQueueSubmit")
		}
		if res := vk.QueueWaitIdle(dev.GraphicsQueue); res != vk.Success {
			return vkError(res, "vkQueueWaitIdle")
		}
		return nil
	})
}
