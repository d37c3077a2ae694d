package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/kestrel/engine/core"
	kmath "github.com/spaghettifunk/kestrel/engine/math"
	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
	"github.com/spaghettifunk/kestrel/engine/renderer/vulkan"
)

// Graphics is the draw-call facade. Setters only record state; draws resolve
// it into commands. Every method must be called from the render thread.
type Graphics interface {
	BeginFrame() bool
	EndFrame()
	Clear(flags metadata.ClearTarget, color mgl32.Vec4, depth float32, stencil uint32)

	SetShaders(vs, ps metadata.ShaderVariation)
	SetConstantBuffer(stage metadata.ShaderType, group int, cb metadata.ConstantBuffer)
	SetTexture(unit int, tex metadata.Texture)
	SetVertexBuffer(vb metadata.VertexBuffer)
	SetVertexBuffers(buffers []metadata.VertexBuffer, instanceOffset uint32) bool
	SetIndexBuffer(ib metadata.IndexBuffer)

	SetRenderPass(id int)
	SetSubpass(index int)
	SetRenderTarget(index int, surface metadata.RenderSurface)
	ResetRenderTargets()
	SetViewport(rect kmath.IntRect, index int)
	SetScissorTest(enable bool, rect kmath.IntRect)

	SetBlendMode(mode metadata.BlendMode)
	SetColorWrite(enable bool)
	SetCullMode(mode metadata.CullMode)
	SetDepthTest(mode metadata.CompareMode)
	SetDepthWrite(enable bool)
	SetFillMode(mode metadata.FillMode)
	SetLineWidth(width float32)
	SetStencilTest(enable bool, compare metadata.CompareMode, pass, fail, zFail metadata.StencilOp, ref uint32)
	SetMultiSample(samples uint32)

	Draw(primitive metadata.PrimitiveType, vertexStart, vertexCount uint32)
	DrawIndexed(primitive metadata.PrimitiveType, indexStart, indexCount uint32, baseVertex int32)
	DrawInstanced(primitive metadata.PrimitiveType, indexStart, indexCount uint32, baseVertex int32, instanceCount uint32)

	NumBatches() uint32
	NumPrimitives() uint32
	Viewport() kmath.IntRect
	Width() uint32
	Height() uint32
	RenderPassID(name string) int
	RegisterRenderPass(cfg core.RenderPassConfig) int

	OnWindowResized()
	ApplyConfig(cfg *core.Config)
	WaitIdle()
	Close()
}

var _ Graphics = (*vulkan.Graphics)(nil)

// New creates the Vulkan driver on the provider's window and the Graphics
// built on it. The returned factory creates buffers and samplers for the
// resources handed to Graphics and is valid until Close.
func New(provider vulkan.SurfaceProvider, cfg *core.Config) (Graphics, vulkan.ResourceFactory, error) {
	driver, err := vulkan.NewVulkanDriver(provider, cfg.Window.Name, cfg.Graphics.Validation)
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating vulkan driver")
	}
	g, err := vulkan.NewGraphics(driver, provider, cfg)
	if err != nil {
		return nil, nil, err
	}
	return g, driver, nil
}
