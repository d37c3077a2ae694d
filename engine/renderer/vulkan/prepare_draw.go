package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
	"github.com/spaghettifunk/kestrel/engine/core"
	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
)

// bindRun is a run of consecutive set numbers bound with one command.
type bindRun struct {
	layout  containers.Handle
	first   uint32
	sets    []containers.Handle
	offsets []uint32
}

// PrepareDraw resolves the requested state into the commands the next draw
// needs: render pass and subpass transitions, pipeline bind, descriptor
// writes and binds, vertex and index buffer binds, viewport and scissor.
// It returns false when the draw must be skipped.
func (g *Graphics) PrepareDraw(primitive metadata.PrimitiveType, indexed bool) bool {
	impl := g.impl
	frame := impl.currentFrame
	if frame == nil || !frame.commandBufferBegun {
		impl.logger.Debug("draw without a current frame")
		return false
	}
	if g.vertexShader == nil || g.pixelShader == nil {
		impl.logger.Debug("draw without shaders")
		return false
	}
	cmd := frame.CommandBuffer()

	if primitive < metadata.MaxPrimitiveTypes {
		SetPipelineState(&impl.pipelineStates, PipelineStatePrimitive, uint32(primitive))
	}

	want := impl.requestedTarget()
	if frame.renderPassBegun && frame.target() != want {
		impl.endRenderPass(frame)
	}
	if !frame.renderPassBegun {
		if err := impl.beginRenderPass(frame, want); err != nil {
			impl.logger.Error("render pass not begun, draw skipped", "pass", want.pass, "err", err)
			return false
		}
		// input attachments now resolve to other views
		frame.textureDirty = true
	}
	impl.advanceSubpass(frame, impl.subpassIndex)

	pass := impl.renderPasses.Get(frame.renderPassIndex)
	// rasterization samples must match the attachments of the bound pass
	states := GetPipelineStateVariation(impl.pipelineStates, PipelineStateSamples, SampleCountIndex(uint32(pass.Samples)))
	req := PipelineRequest{
		RenderPass:     pass,
		Subpass:        uint32(frame.subpassIndex),
		VS:             g.vertexShader,
		PS:             g.pixelShader,
		States:         states,
		StencilValue:   impl.stencilValue,
		VertexBindings: g.vertexLayouts,
	}
	info := impl.RegisterPipelineInfo(&req)
	if info.Handle.IsNull() {
		impl.logger.Error("null pipeline, draw skipped", "vs", req.VS.Name(), "ps", req.PS.Name())
		return false
	}

	pipelineChanged := frame.lastPipelineInfoBound != info.ID
	if pipelineChanged {
		compatible := GetMaxCompatibleDescriptorSets(impl.pipelines.Get(frame.lastPipelineInfoBound), info)
		frame.invalidateSetsAbove(compatible)
		impl.driver.CmdBindPipeline(cmd, info.Handle)
		frame.lastPipelineInfoBound = info.ID
		g.vertexBuffersDirty = true
		g.indexBufferDirty = true
	}

	if err := g.prepareDescriptors(frame, info, pipelineChanged); err != nil {
		impl.logger.Error("descriptors not ready, draw skipped", "err", err)
		return false
	}

	if g.vertexBuffersDirty {
		g.bindVertexBuffers(cmd)
		g.vertexBuffersDirty = false
	}
	if indexed && g.indexBufferDirty && g.indexBuffer != nil {
		indexType := vk.IndexTypeUint16
		if g.indexBuffer.IndexSize() == 4 {
			indexType = vk.IndexTypeUint32
		}
		impl.driver.CmdBindIndexBuffer(cmd, g.indexBuffer.GPUObject(), indexType)
		g.indexBufferDirty = false
	}

	g.setViewportAndScissor(frame, pass)
	return true
}

func (g *Graphics) bindVertexBuffers(cmd containers.Handle) {
	var buffers []containers.Handle
	var offsets []uint64
	for _, vb := range g.vertexBuffers {
		if vb == nil {
			continue
		}
		offset := uint64(0)
		for _, e := range vb.Elements() {
			if e.PerInstance {
				offset = uint64(g.instanceOffset) * uint64(vb.VertexSize())
				break
			}
		}
		buffers = append(buffers, vb.GPUObject())
		offsets = append(offsets, offset)
	}
	if len(buffers) > 0 {
		g.impl.driver.CmdBindVertexBuffers(cmd, 0, buffers, offsets)
	}
}

// setViewportAndScissor submits the dynamic viewport and scissor. A pass
// rendering at viewport size has its framebuffer start at the viewport origin.
func (g *Graphics) setViewportAndScissor(frame *Frame, pass *RenderPassInfo) {
	impl := g.impl
	var ox, oy int32
	if pass != nil && !pass.ScreenSized() && frame.renderTarget == nil && frame.viewportIndex >= 0 {
		r := impl.viewports[frame.viewportIndex].rect
		ox, oy = r.Left, r.Top
	}
	vp := impl.viewport
	impl.driver.CmdSetViewport(frame.CommandBuffer(), vk.Viewport{
		X:        float32(vp.Left - ox),
		Y:        float32(vp.Top - oy),
		Width:    float32(vp.Width()),
		Height:   float32(vp.Height()),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	})
	sc := vp
	if impl.scissorTest {
		sc = impl.scissor
	}
	w, h := sc.Size()
	impl.driver.CmdSetScissor(frame.CommandBuffer(), vk.Rect2D{
		Offset: vk.Offset2D{X: max(sc.Left-ox, 0), Y: max(sc.Top-oy, 0)},
		Extent: vk.Extent2D{Width: w, Height: h},
	})
}

// prepareDescriptors makes every descriptor group of info bound with current
// content. A group whose content matches the set already bound is left alone;
// one matching the allocation's current set rebinds it; anything else advances
// the allocation ring and writes a fresh set. All writes of the draw go out in
// one update, and consecutive sets needing a bind share one bind command.
func (g *Graphics) prepareDescriptors(frame *Frame, info *PipelineInfo, pipelineChanged bool) error {
	impl := g.impl
	rebindAll := impl.cfg.DescriptorBindMode == core.DescriptorBindRebindAll
	if !pipelineChanged && !frame.textureDirty && !g.constantBuffersDirty && !rebindAll && !g.hasDirtyBuffers(info) {
		return nil
	}

	g.writes = g.writes[:0]
	g.bindSets = g.bindSets[:0]
	var run *bindRun

	for _, group := range info.Groups {
		alloc, err := group.Allocation(impl.driver, frame.Index, impl.cfg.MaxDescriptorSets)
		if err != nil {
			return err
		}
		sig, staticDirty := g.groupSignature(frame, group)
		bound := frame.boundSet(group.ID)

		var set containers.Handle
		bind := rebindAll
		switch {
		case !staticDirty && bound.layout == group.Layout && !bound.set.IsNull() && equalSignature(bound.signature, sig):
			set = bound.set
			bind = bind || group.HasDynamic
		case !staticDirty && alloc.Matches(impl.frameNumber, sig):
			set = alloc.Current()
			bind = true
		default:
			if alloc.Advance(impl.frameNumber) {
				impl.logger.Warn("descriptor sets reused within one frame", "set", group.ID, "capacity", len(alloc.Sets))
			}
			set = alloc.Current()
			g.writeGroup(frame, group, set)
			alloc.record(sig)
			bind = true
		}
		bound.layout = group.Layout
		bound.set = set
		bound.signature = append(bound.signature[:0], sig...)

		if !bind {
			run = nil
			continue
		}
		if run == nil || run.first+uint32(len(run.sets)) != group.ID {
			g.bindSets = append(g.bindSets, bindRun{layout: info.Layout, first: group.ID})
			run = &g.bindSets[len(g.bindSets)-1]
		}
		run.sets = append(run.sets, set)
		run.offsets = g.appendDynamicOffsets(run.offsets, group)
	}

	if len(g.writes) > 0 {
		impl.driver.UpdateDescriptorSets(g.writes)
	}
	cmd := frame.CommandBuffer()
	for _, r := range g.bindSets {
		impl.driver.CmdBindDescriptorSets(cmd, r.layout, r.first, r.sets, r.offsets)
	}
	frame.textureDirty = false
	g.constantBuffersDirty = false
	return nil
}

// hasDirtyBuffers reports whether any uniform buffer referenced by info has
// data waiting for upload, or whether info uses dynamic offsets.
func (g *Graphics) hasDirtyBuffers(info *PipelineInfo) bool {
	for _, group := range info.Groups {
		if group.HasDynamic {
			return true
		}
		for _, b := range group.Bindings {
			if b.Type != vk.DescriptorTypeUniformBuffer {
				continue
			}
			if cb := g.constantBufferFor(b); cb != nil && cb.IsDirty() {
				return true
			}
		}
	}
	return false
}

// constantBufferFor returns the buffer bound to the binding's parameter group,
// taken from the vertex stage when the binding is visible to it.
func (g *Graphics) constantBufferFor(b metadata.ShaderBind) metadata.ConstantBuffer {
	if int(b.UnitStart) >= metadata.MaxShaderParameterGroups {
		return nil
	}
	vs := g.constantBuffers[metadata.VertexShader][b.UnitStart]
	ps := g.constantBuffers[metadata.PixelShader][b.UnitStart]
	if b.StageFlag&vk.ShaderStageVertexBit != 0 && vs != nil {
		return vs
	}
	if b.StageFlag&vk.ShaderStageFragmentBit != 0 {
		return ps
	}
	return vs
}

func textureReady(t metadata.Texture) bool {
	return t != nil && !t.ShaderResourceView().IsNull() && !t.Sampler().IsNull()
}

// groupSignature describes the resources a group would reference now. Dirty
// dynamic buffers are uploaded here; a dirty static buffer is reported so the
// group gets a fresh set.
func (g *Graphics) groupSignature(frame *Frame, group *DescriptorsGroup) ([]uint64, bool) {
	sig := g.signature[:0]
	staticDirty := false
	for _, b := range group.Bindings {
		switch b.Type {
		case vk.DescriptorTypeUniformBuffer, vk.DescriptorTypeUniformBufferDynamic:
			cb := g.constantBufferFor(b)
			if cb == nil {
				sig = append(sig, 0)
				continue
			}
			if cb.IsDirty() {
				if b.Type == vk.DescriptorTypeUniformBuffer {
					staticDirty = true
				}
				cb.Apply(g.impl.frameNumber)
			}
			sig = append(sig, uint64(cb.GPUObject()))
		case vk.DescriptorTypeCombinedImageSampler:
			for k := uint32(0); k < max(b.UnitRange, 1); k++ {
				unit := b.UnitStart + k
				if unit >= metadata.MaxTextureUnits || !textureReady(g.textures[unit]) {
					sig = append(sig, 0)
					continue
				}
				t := g.textures[unit]
				sig = append(sig, uint64(t.ShaderResourceView())<<32|uint64(t.Sampler()))
			}
		case vk.DescriptorTypeInputAttachment:
			view := containers.NullHandle
			if fb := frame.framebuffer; fb != nil && int(b.UnitStart) < len(fb.Views) {
				view = fb.Views[b.UnitStart]
			}
			sig = append(sig, uint64(view))
		}
	}
	g.signature = sig
	return sig, staticDirty
}

// writeGroup queues writes for every binding of group into set. Bindings whose
// resources are not ready are skipped.
func (g *Graphics) writeGroup(frame *Frame, group *DescriptorsGroup, set containers.Handle) {
	for _, b := range group.Bindings {
		w := DescriptorWrite{Set: set, Binding: b.ID, Type: b.Type}
		switch b.Type {
		case vk.DescriptorTypeUniformBuffer, vk.DescriptorTypeUniformBufferDynamic:
			cb := g.constantBufferFor(b)
			if cb == nil || cb.GPUObject().IsNull() {
				core.LogDebug("set %d binding %d: no constant buffer for group %d", group.ID, b.ID, b.UnitStart)
				continue
			}
			if cb.IsDirty() {
				cb.Apply(g.impl.frameNumber)
			}
			w.Buffers = []BufferRange{{Buffer: cb.GPUObject(), Range: uint64(cb.Size())}}
		case vk.DescriptorTypeCombinedImageSampler:
			w.Images = g.textureImages(b)
			if len(w.Images) == 0 {
				core.LogDebug("set %d binding %d: no texture ready", group.ID, b.ID)
				continue
			}
		case vk.DescriptorTypeInputAttachment:
			fb := frame.framebuffer
			if fb == nil || int(b.UnitStart) >= len(fb.Views) {
				continue
			}
			layout := vk.ImageLayoutShaderReadOnlyOptimal
			if pass := g.impl.renderPasses.Get(frame.renderPassIndex); pass != nil && pass.Attachments[b.UnitStart].Slot == SlotDepth {
				layout = vk.ImageLayoutDepthStencilReadOnlyOptimal
			}
			w.Images = []ImageSampler{{View: fb.Views[b.UnitStart], Layout: layout}}
		default:
			continue
		}
		g.writes = append(g.writes, w)
	}
}

// textureImages resolves the units of a sampler binding. Units without a
// ready texture repeat the nearest ready one so the whole array is valid.
func (g *Graphics) textureImages(b metadata.ShaderBind) []ImageSampler {
	count := max(b.UnitRange, 1)
	first := -1
	for k := uint32(0); k < count; k++ {
		unit := b.UnitStart + k
		if unit < metadata.MaxTextureUnits && textureReady(g.textures[unit]) {
			first = int(unit)
			break
		}
	}
	if first < 0 {
		return nil
	}
	images := make([]ImageSampler, 0, count)
	last := g.textures[first]
	for k := uint32(0); k < count; k++ {
		unit := b.UnitStart + k
		if unit < metadata.MaxTextureUnits && textureReady(g.textures[unit]) {
			last = g.textures[unit]
		}
		images = append(images, ImageSampler{
			View:    last.ShaderResourceView(),
			Sampler: last.Sampler(),
			Layout:  vk.ImageLayoutShaderReadOnlyOptimal,
		})
	}
	return images
}

func (g *Graphics) appendDynamicOffsets(offsets []uint32, group *DescriptorsGroup) []uint32 {
	if !group.HasDynamic {
		return offsets
	}
	for _, b := range group.Bindings {
		if b.Type != vk.DescriptorTypeUniformBufferDynamic {
			continue
		}
		var offset uint32
		if cb := g.constantBufferFor(b); cb != nil {
			offset = g.impl.dynamicOffset(cb.Size(), cb.ObjectIndex())
		}
		offsets = append(offsets, offset)
	}
	return offsets
}
