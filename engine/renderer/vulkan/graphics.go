package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/kestrel/engine/core"
	kmath "github.com/spaghettifunk/kestrel/engine/math"
	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
)

/**
 * @brief The Vulkan implementation of the renderer facade. Setters only
 * record requested state; PrepareDraw resolves it before every draw.
 */
type Graphics struct {
	impl *GraphicsImpl

	vertexShader    metadata.ShaderVariation
	pixelShader     metadata.ShaderVariation
	constantBuffers [2][metadata.MaxShaderParameterGroups]metadata.ConstantBuffer
	textures        [metadata.MaxTextureUnits]metadata.Texture
	vertexBuffers   [metadata.MaxVertexStreams]metadata.VertexBuffer
	vertexLayouts   []VertexBindingLayout
	instanceOffset  uint32
	indexBuffer     metadata.IndexBuffer

	vertexBuffersDirty   bool
	indexBufferDirty     bool
	constantBuffersDirty bool

	numBatches    uint32
	numPrimitives uint32

	// scratch reused by every draw
	writes    []DescriptorWrite
	signature []uint64
	bindSets  []bindRun
}

// NewGraphics takes ownership of driver and builds the device context.
func NewGraphics(driver Driver, window Window, cfg *core.Config) (*Graphics, error) {
	impl, err := NewGraphicsImpl(driver, window, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "initializing graphics")
	}
	g := &Graphics{impl: impl}
	g.ResetRenderTargets()
	return g, nil
}

func (g *Graphics) Impl() *GraphicsImpl { return g.impl }

// BeginFrame rebuilds a dirty swapchain, acquires the next frame and resets
// per-frame state. It returns false when the frame must be skipped.
func (g *Graphics) BeginFrame() bool {
	impl := g.impl
	if impl.driver == nil {
		return false
	}
	impl.swapChain.CheckResize(impl.window)
	if impl.swapChain.Dirty() {
		if err := impl.UpdateSwapChain(); err != nil {
			return false
		}
	}
	err := impl.AcquireFrame()
	if errors.Is(err, core.ErrSwapchainOutOfDate) {
		if impl.UpdateSwapChain() == nil {
			err = impl.AcquireFrame()
		}
	}
	if err != nil {
		impl.logger.Debug("frame skipped", "err", err)
		return false
	}

	g.numBatches = 0
	g.numPrimitives = 0
	g.ResetRenderTargets()
	for i := range g.textures {
		g.SetTexture(i, nil)
	}
	g.vertexBuffersDirty = true
	g.indexBufferDirty = true
	g.constantBuffersDirty = true
	return true
}

// EndFrame submits and presents the current frame.
func (g *Graphics) EndFrame() {
	if g.impl.currentFrame == nil {
		return
	}
	g.impl.PresentFrame()
}

// Clear sets the values passes with cleared attachments start from.
func (g *Graphics) Clear(flags metadata.ClearTarget, color mgl32.Vec4, depth float32, stencil uint32) {
	impl := g.impl
	c, d, s := impl.clearColor, impl.clearDepth, impl.clearStencil
	if flags&metadata.ClearColor != 0 {
		c = [4]float32{color.X(), color.Y(), color.Z(), color.W()}
	}
	if flags&metadata.ClearDepth != 0 {
		d = depth
	}
	if flags&metadata.ClearStencil != 0 {
		s = stencil
	}
	impl.SetClearValues(c, d, s)
}

func (g *Graphics) SetShaders(vs, ps metadata.ShaderVariation) {
	g.vertexShader = vs
	g.pixelShader = ps
}

func (g *Graphics) SetConstantBuffer(stage metadata.ShaderType, group int, cb metadata.ConstantBuffer) {
	if int(stage) >= len(g.constantBuffers) || group < 0 || group >= metadata.MaxShaderParameterGroups {
		return
	}
	if g.constantBuffers[stage][group] != cb {
		g.constantBuffers[stage][group] = cb
		g.constantBuffersDirty = true
	}
}

// SetTexture binds tex to unit. Units past MaxTextureUnits are ignored. A
// texture that is the parent of the current render target is replaced by its
// backup texture.
func (g *Graphics) SetTexture(unit int, tex metadata.Texture) {
	if unit < 0 || unit >= metadata.MaxTextureUnits {
		return
	}
	if tex != nil && g.impl.renderTarget != nil && g.impl.renderTarget.ParentTexture() == tex {
		tex = tex.BackupTexture()
	}
	if g.textures[unit] == tex {
		return
	}
	g.textures[unit] = tex
	if f := g.impl.currentFrame; f != nil {
		f.textureDirty = true
	}
}

func (g *Graphics) SetVertexBuffer(vb metadata.VertexBuffer) {
	g.SetVertexBuffers([]metadata.VertexBuffer{vb}, 0)
}

// SetVertexBuffers binds up to MaxVertexStreams streams. Per-instance streams
// start instanceOffset vertices in.
func (g *Graphics) SetVertexBuffers(buffers []metadata.VertexBuffer, instanceOffset uint32) bool {
	if len(buffers) > metadata.MaxVertexStreams {
		core.LogError("too many vertex buffers: %d", len(buffers))
		return false
	}
	changed := instanceOffset != g.instanceOffset
	for i := range g.vertexBuffers {
		var vb metadata.VertexBuffer
		if i < len(buffers) {
			vb = buffers[i]
		}
		if g.vertexBuffers[i] != vb {
			g.vertexBuffers[i] = vb
			changed = true
		}
	}
	if !changed {
		return true
	}
	g.instanceOffset = instanceOffset
	g.vertexLayouts = g.vertexLayouts[:0]
	for _, vb := range g.vertexBuffers {
		if vb == nil {
			continue
		}
		layout := VertexBindingLayout{Stride: vb.VertexSize(), Elements: vb.Elements()}
		for _, e := range layout.Elements {
			layout.PerInstance = layout.PerInstance || e.PerInstance
		}
		g.vertexLayouts = append(g.vertexLayouts, layout)
	}
	g.vertexBuffersDirty = true
	return true
}

func (g *Graphics) SetIndexBuffer(ib metadata.IndexBuffer) {
	if g.indexBuffer != ib {
		g.indexBuffer = ib
		g.indexBufferDirty = true
	}
}

// SetRenderPass requests a registered pass. Unknown ids are ignored.
func (g *Graphics) SetRenderPass(id int) {
	if !g.impl.SetRenderPass(id) {
		core.LogDebug("unknown render pass %d", id)
	}
}

func (g *Graphics) SetSubpass(index int) {
	g.impl.SetSubpass(index)
}

// SetRenderTarget replaces the present attachment with surface. Only index 0
// is attachable; the other colour slots are size-dependent pass attachments.
func (g *Graphics) SetRenderTarget(index int, surface metadata.RenderSurface) {
	if index != 0 {
		if index < metadata.MaxRenderTargets {
			core.LogDebug("render target %d is not attachable", index)
		}
		return
	}
	impl := g.impl
	if impl.renderTarget == surface {
		return
	}
	impl.renderTarget = surface
	samples := uint32(1)
	if surface != nil {
		samples = max(surface.MultiSample(), 1)
		if parent := surface.ParentTexture(); parent != nil {
			if samples > 1 && parent.AutoResolve() {
				surface.SetResolveDirty(true)
				parent.SetResolveDirty(true)
			}
			if parent.Levels() > 1 {
				parent.SetLevelsDirty()
			}
			for i, t := range g.textures {
				if t == parent {
					g.SetTexture(i, parent.BackupTexture())
				}
			}
		}
	}
	SetPipelineState(&impl.pipelineStates, PipelineStateSamples, SampleCountIndex(samples))
	w, h := impl.renderTargetSize()
	impl.SetViewport(kmath.NewIntRect(0, 0, w, h), -1)
}

// ResetRenderTargets returns to the main pass on the back buffer with a
// full-screen viewport.
func (g *Graphics) ResetRenderTargets() {
	impl := g.impl
	g.SetRenderTarget(0, nil)
	impl.SetRenderPass(impl.mainPass)
	impl.subpassIndex = 0
	SetPipelineState(&impl.pipelineStates, PipelineStateSamples, 0)
	w, h := impl.renderTargetSize()
	impl.SetViewport(kmath.NewIntRect(0, 0, w, h), -1)
}

func (g *Graphics) SetViewport(rect kmath.IntRect, index int) {
	g.impl.SetViewport(rect, index)
}

func (g *Graphics) SetScissorTest(enable bool, rect kmath.IntRect) {
	g.impl.SetScissorTest(enable, rect)
}

func (g *Graphics) SetBlendMode(mode metadata.BlendMode) {
	if mode < metadata.MaxBlendModes {
		SetPipelineState(&g.impl.pipelineStates, PipelineStateBlendMode, uint32(mode))
	}
}

func (g *Graphics) SetColorWrite(enable bool) {
	mask := uint32(0)
	if enable {
		mask = ColorMaskAll
	}
	SetPipelineState(&g.impl.pipelineStates, PipelineStateColorMask, mask)
}

func (g *Graphics) SetCullMode(mode metadata.CullMode) {
	if mode < metadata.MaxCullModes {
		SetPipelineState(&g.impl.pipelineStates, PipelineStateCullMode, uint32(mode))
	}
}

func (g *Graphics) SetDepthTest(mode metadata.CompareMode) {
	if mode < metadata.MaxCompareModes {
		SetPipelineState(&g.impl.pipelineStates, PipelineStateDepthTest, uint32(mode))
	}
}

func (g *Graphics) SetDepthWrite(enable bool) {
	SetPipelineState(&g.impl.pipelineStates, PipelineStateDepthWrite, boolBit(enable))
}

func (g *Graphics) SetFillMode(mode metadata.FillMode) {
	if int(mode) < len(polygonModes) {
		SetPipelineState(&g.impl.pipelineStates, PipelineStateFillMode, uint32(mode))
	}
}

func (g *Graphics) SetLineWidth(width float32) {
	SetPipelineState(&g.impl.pipelineStates, PipelineStateLineWidth, LineWidthIndex(width))
}

// SetStencilTest enables stencil testing with one of the known stencil modes.
// Unknown combinations fall back to mode 0.
func (g *Graphics) SetStencilTest(enable bool, compare metadata.CompareMode, pass, fail, zFail metadata.StencilOp, ref uint32) {
	impl := g.impl
	SetPipelineState(&impl.pipelineStates, PipelineStateStencilTest, boolBit(enable))
	if !enable {
		return
	}
	mode, ok := StencilMode(compare, pass, fail, zFail)
	if !ok {
		core.LogDebug("unsupported stencil mode, using mode 0")
	}
	SetPipelineState(&impl.pipelineStates, PipelineStateStencilMode, mode)
	impl.stencilValue = ref
}

func (g *Graphics) SetMultiSample(samples uint32) {
	SetPipelineState(&g.impl.pipelineStates, PipelineStateSamples, SampleCountIndex(samples))
}

func (g *Graphics) Draw(primitive metadata.PrimitiveType, vertexStart, vertexCount uint32) {
	if vertexCount == 0 || !g.PrepareDraw(primitive, false) {
		return
	}
	g.impl.driver.CmdDraw(g.impl.currentFrame.CommandBuffer(), vertexCount, 1, vertexStart, 0)
	g.numBatches++
	g.numPrimitives += primitiveCount(primitive, vertexCount)
}

func (g *Graphics) DrawIndexed(primitive metadata.PrimitiveType, indexStart, indexCount uint32, baseVertex int32) {
	g.DrawInstanced(primitive, indexStart, indexCount, baseVertex, 1)
}

func (g *Graphics) DrawInstanced(primitive metadata.PrimitiveType, indexStart, indexCount uint32, baseVertex int32, instanceCount uint32) {
	if indexCount == 0 || instanceCount == 0 || g.indexBuffer == nil || !g.PrepareDraw(primitive, true) {
		return
	}
	g.impl.driver.CmdDrawIndexed(g.impl.currentFrame.CommandBuffer(), indexCount, instanceCount, indexStart, baseVertex, 0)
	g.numBatches++
	g.numPrimitives += primitiveCount(primitive, indexCount) * instanceCount
}

func (g *Graphics) NumBatches() uint32    { return g.numBatches }
func (g *Graphics) NumPrimitives() uint32 { return g.numPrimitives }
func (g *Graphics) Viewport() kmath.IntRect {
	return g.impl.viewport
}

func (g *Graphics) Width() uint32  { return g.impl.swapChain.Extent.Width }
func (g *Graphics) Height() uint32 { return g.impl.swapChain.Extent.Height }

// RenderPassID returns the id registered under name, or -1.
func (g *Graphics) RenderPassID(name string) int {
	if id, ok := g.impl.renderPasses.Lookup(name); ok {
		return id
	}
	return -1
}

// RegisterRenderPass adds a pass at runtime and returns its id, or -1.
func (g *Graphics) RegisterRenderPass(cfg core.RenderPassConfig) int {
	id, err := g.impl.RegisterRenderPass(cfg)
	if err != nil {
		core.LogError("registering render pass %q: %v", cfg.Name, err)
		return -1
	}
	return id
}

func (g *Graphics) OnWindowResized() {
	g.impl.swapChain.MarkDirty()
}

func (g *Graphics) ApplyConfig(cfg *core.Config) {
	g.impl.ApplyConfig(cfg.Graphics)
}

// WaitIdle blocks until the GPU has finished every submitted frame, after
// which resources handed to Graphics may be destroyed.
func (g *Graphics) WaitIdle() {
	if g.impl.driver != nil {
		g.impl.driver.WaitIdle()
	}
}

func (g *Graphics) Close() {
	g.impl.Close()
}

func primitiveCount(primitive metadata.PrimitiveType, count uint32) uint32 {
	switch primitive {
	case metadata.TriangleList:
		return count / 3
	case metadata.LineList:
		return count / 2
	case metadata.PointList:
		return count
	case metadata.TriangleStrip, metadata.TriangleFan:
		if count < 3 {
			return 0
		}
		return count - 2
	case metadata.LineStrip:
		if count < 2 {
			return 0
		}
		return count - 1
	}
	return 0
}

func boolBit(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
