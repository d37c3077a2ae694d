package vulkan

import (
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
	"github.com/spaghettifunk/kestrel/engine/core"
	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
)

// fakeCall is one recorded driver call.
type fakeCall struct {
	op      string
	handles []containers.Handle
	first   uint32
	offsets []uint32
	writes  int
}

func (c fakeCall) String() string {
	if len(c.handles) == 0 {
		return c.op
	}
	parts := make([]string, len(c.handles))
	for i, h := range c.handles {
		parts[i] = h.String()
	}
	return fmt.Sprintf("%s(%s)", c.op, strings.Join(parts, ","))
}

// fakeDriver implements Driver without a GPU. Objects are plain handles;
// every call that matters to the frame logic is recorded in order.
type fakeDriver struct {
	next   containers.Handle
	live   map[containers.Handle]string
	calls  []fakeCall
	limits DeviceLimits

	caps         SurfaceCapabilities
	formats      []vk.SurfaceFormat
	modes        []vk.PresentMode
	depthFormats map[vk.Format]bool

	swapchainViews map[containers.Handle][]containers.Handle
	lastSwapchain  SwapchainDesc
	imageIndex     uint32

	acquireResults []vk.Result
	presentResults []vk.Result
	fenceErr       error
	swapchainErr   error
	failPipelines  bool

	descriptorWrites []DescriptorWrite
	buffers          map[containers.Handle][]byte
	renderPassDescs  map[containers.Handle]*RenderPassDesc
	framebuffers     map[containers.Handle]FramebufferDesc
	pipelineDescs    map[containers.Handle]*PipelineDesc
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		live: make(map[containers.Handle]string),
		limits: DeviceLimits{
			MinUniformBufferOffsetAlignment: 256,
			MaxBoundDescriptorSets:          8,
		},
		caps: SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  3,
			CurrentExtent:  vk.Extent2D{Width: 800, Height: 600},
			MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
		},
		formats: []vk.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		modes:           []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		depthFormats:    map[vk.Format]bool{vk.FormatD24UnormS8Uint: true, vk.FormatD32Sfloat: true},
		swapchainViews:  make(map[containers.Handle][]containers.Handle),
		buffers:         make(map[containers.Handle][]byte),
		renderPassDescs: make(map[containers.Handle]*RenderPassDesc),
		pipelineDescs:   make(map[containers.Handle]*PipelineDesc),
		framebuffers:    make(map[containers.Handle]FramebufferDesc),
	}
}

var _ Driver = (*fakeDriver)(nil)

func (f *fakeDriver) alloc(kind string) containers.Handle {
	f.next++
	f.live[f.next] = kind
	return f.next
}

func (f *fakeDriver) free(h containers.Handle) {
	delete(f.live, h)
}

func (f *fakeDriver) record(op string, handles ...containers.Handle) {
	f.calls = append(f.calls, fakeCall{op: op, handles: handles})
}

func (f *fakeDriver) liveCount(kind string) int {
	n := 0
	for _, k := range f.live {
		if k == kind {
			n++
		}
	}
	return n
}

func (f *fakeDriver) resetCalls() {
	f.calls = f.calls[:0]
	f.descriptorWrites = f.descriptorWrites[:0]
}

func (f *fakeDriver) count(op string) int {
	n := 0
	for _, c := range f.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

func (f *fakeDriver) callsOf(op string) []fakeCall {
	var out []fakeCall
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

// ops lists the recorded operations, filtered to the given names when any.
func (f *fakeDriver) ops(filter ...string) []string {
	var out []string
	for _, c := range f.calls {
		if len(filter) == 0 || containsString(filter, c.op) {
			out = append(out, c.op)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (f *fakeDriver) Limits() DeviceLimits { return f.limits }
func (f *fakeDriver) WaitIdle()            { f.record("WaitIdle") }
func (f *fakeDriver) Destroy()             { f.record("Destroy") }

func (f *fakeDriver) SurfaceCapabilities() (SurfaceCapabilities, error) { return f.caps, nil }
func (f *fakeDriver) SurfaceFormats() ([]vk.SurfaceFormat, error)      { return f.formats, nil }
func (f *fakeDriver) PresentModes() ([]vk.PresentMode, error)          { return f.modes, nil }
func (f *fakeDriver) SupportsDepthFormat(format vk.Format) bool        { return f.depthFormats[format] }

func (f *fakeDriver) CreateSwapchain(desc SwapchainDesc, old containers.Handle) (containers.Handle, error) {
	if f.swapchainErr != nil {
		return 0, f.swapchainErr
	}
	h := f.alloc("swapchain")
	views := make([]containers.Handle, desc.ImageCount)
	for i := range views {
		views[i] = f.alloc("swapchain view")
	}
	f.swapchainViews[h] = views
	f.lastSwapchain = desc
	f.imageIndex = 0
	f.record("CreateSwapchain", h, old)
	return h, nil
}

func (f *fakeDriver) SwapchainImageViews(h containers.Handle) []containers.Handle {
	return f.swapchainViews[h]
}

func (f *fakeDriver) DestroySwapchain(h containers.Handle) {
	for _, v := range f.swapchainViews[h] {
		f.free(v)
	}
	delete(f.swapchainViews, h)
	f.free(h)
	f.record("DestroySwapchain", h)
}

func (f *fakeDriver) CreateAttachment(desc AttachmentDesc) (containers.Handle, error) {
	h := f.alloc("attachment")
	f.record("CreateAttachment", h)
	return h, nil
}

func (f *fakeDriver) DestroyAttachment(h containers.Handle) { f.free(h) }

func (f *fakeDriver) CreateRenderPass(desc *RenderPassDesc) (containers.Handle, error) {
	h := f.alloc("render pass")
	f.renderPassDescs[h] = desc
	f.record("CreateRenderPass", h)
	return h, nil
}

func (f *fakeDriver) DestroyRenderPass(h containers.Handle) { f.free(h) }

func (f *fakeDriver) CreateFramebuffer(desc FramebufferDesc) (containers.Handle, error) {
	h := f.alloc("framebuffer")
	f.framebuffers[h] = desc
	f.record("CreateFramebuffer", append([]containers.Handle{h, desc.RenderPass}, desc.Attachments...)...)
	return h, nil
}

func (f *fakeDriver) DestroyFramebuffer(h containers.Handle) { f.free(h) }

func (f *fakeDriver) CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (containers.Handle, error) {
	return f.alloc("set layout"), nil
}

func (f *fakeDriver) DestroyDescriptorSetLayout(h containers.Handle) { f.free(h) }

func (f *fakeDriver) CreateDescriptorPool(sizes []vk.DescriptorPoolSize, maxSets uint32) (containers.Handle, error) {
	h := f.alloc("descriptor pool")
	f.record("CreateDescriptorPool", h)
	return h, nil
}

func (f *fakeDriver) DestroyDescriptorPool(h containers.Handle) { f.free(h) }

func (f *fakeDriver) AllocateDescriptorSets(pool, layout containers.Handle, count uint32) ([]containers.Handle, error) {
	sets := make([]containers.Handle, count)
	for i := range sets {
		f.next++
		sets[i] = f.next
	}
	return sets, nil
}

func (f *fakeDriver) UpdateDescriptorSets(writes []DescriptorWrite) {
	f.descriptorWrites = append(f.descriptorWrites, writes...)
	f.calls = append(f.calls, fakeCall{op: "UpdateDescriptorSets", writes: len(writes)})
}

func (f *fakeDriver) CreatePipelineLayout(setLayouts []containers.Handle) (containers.Handle, error) {
	return f.alloc("pipeline layout"), nil
}

func (f *fakeDriver) DestroyPipelineLayout(h containers.Handle) { f.free(h) }

func (f *fakeDriver) CreateGraphicsPipeline(desc *PipelineDesc) (containers.Handle, error) {
	if f.failPipelines {
		return 0, core.ErrPipelineBuild
	}
	h := f.alloc("pipeline")
	f.pipelineDescs[h] = desc
	f.record("CreateGraphicsPipeline", h, desc.RenderPass)
	return h, nil
}

func (f *fakeDriver) DestroyPipeline(h containers.Handle) { f.free(h) }

func (f *fakeDriver) CreateFrameResources() (FrameResources, error) {
	return FrameResources{
		CommandPool:    f.alloc("command pool"),
		CommandBuffer:  f.alloc("command buffer"),
		Fence:          f.alloc("fence"),
		RenderComplete: f.alloc("semaphore"),
	}, nil
}

func (f *fakeDriver) DestroyFrameResources(res FrameResources) {
	f.free(res.CommandPool)
	f.free(res.CommandBuffer)
	f.free(res.Fence)
	f.free(res.RenderComplete)
}

func (f *fakeDriver) CreateSemaphore() (containers.Handle, error) { return f.alloc("semaphore"), nil }
func (f *fakeDriver) DestroySemaphore(h containers.Handle)       { f.free(h) }

func (f *fakeDriver) WaitForFence(fence containers.Handle, timeoutNs uint64) error {
	f.record("WaitForFence", fence)
	return f.fenceErr
}

func (f *fakeDriver) ResetFence(fence containers.Handle) error {
	f.record("ResetFence", fence)
	return nil
}

func (f *fakeDriver) ResetCommandPool(pool containers.Handle) error {
	f.record("ResetCommandPool", pool)
	return nil
}

func (f *fakeDriver) AcquireNextImage(swapchain, semaphore containers.Handle, timeoutNs uint64) (uint32, vk.Result) {
	f.record("AcquireNextImage", swapchain, semaphore)
	if len(f.acquireResults) > 0 {
		res := f.acquireResults[0]
		f.acquireResults = f.acquireResults[1:]
		if res != vk.Success && res != vk.Suboptimal {
			return 0, res
		}
	}
	n := uint32(len(f.swapchainViews[swapchain]))
	if n == 0 {
		return 0, vk.ErrorOutOfDate
	}
	idx := f.imageIndex % n
	f.imageIndex++
	return idx, vk.Success
}

func (f *fakeDriver) Submit(cmd, wait, signal, fence containers.Handle) error {
	f.record("Submit", cmd, wait, signal, fence)
	return nil
}

func (f *fakeDriver) Present(swapchain containers.Handle, imageIndex uint32, wait containers.Handle) vk.Result {
	f.record("Present", swapchain, wait)
	if len(f.presentResults) > 0 {
		res := f.presentResults[0]
		f.presentResults = f.presentResults[1:]
		return res
	}
	return vk.Success
}

func (f *fakeDriver) BeginCommandBuffer(cmd containers.Handle) error {
	f.record("BeginCommandBuffer", cmd)
	return nil
}

func (f *fakeDriver) EndCommandBuffer(cmd containers.Handle) error {
	f.record("EndCommandBuffer", cmd)
	return nil
}

func (f *fakeDriver) CmdBeginRenderPass(cmd, pass, framebuffer containers.Handle, area vk.Rect2D, clearValues []vk.ClearValue) {
	f.record("CmdBeginRenderPass", pass, framebuffer)
}

func (f *fakeDriver) CmdNextSubpass(cmd containers.Handle)    { f.record("CmdNextSubpass") }
func (f *fakeDriver) CmdEndRenderPass(cmd containers.Handle)  { f.record("CmdEndRenderPass") }
func (f *fakeDriver) CmdBindPipeline(cmd, p containers.Handle) { f.record("CmdBindPipeline", p) }

func (f *fakeDriver) CmdBindDescriptorSets(cmd, layout containers.Handle, firstSet uint32, sets []containers.Handle, dynamicOffsets []uint32) {
	f.calls = append(f.calls, fakeCall{
		op:      "CmdBindDescriptorSets",
		handles: append([]containers.Handle(nil), sets...),
		first:   firstSet,
		offsets: append([]uint32(nil), dynamicOffsets...),
	})
}

func (f *fakeDriver) CmdBindVertexBuffers(cmd containers.Handle, firstBinding uint32, buffers []containers.Handle, offsets []uint64) {
	f.record("CmdBindVertexBuffers", buffers...)
}

func (f *fakeDriver) CmdBindIndexBuffer(cmd, buffer containers.Handle, indexType vk.IndexType) {
	f.record("CmdBindIndexBuffer", buffer)
}

func (f *fakeDriver) CmdSetViewport(cmd containers.Handle, viewport vk.Viewport) { f.record("CmdSetViewport") }
func (f *fakeDriver) CmdSetScissor(cmd containers.Handle, scissor vk.Rect2D)     { f.record("CmdSetScissor") }

func (f *fakeDriver) CmdDraw(cmd containers.Handle, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	f.record("CmdDraw")
}

func (f *fakeDriver) CmdDrawIndexed(cmd containers.Handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	f.record("CmdDrawIndexed")
}

func (f *fakeDriver) CreateBuffer(usage BufferUsage, size uint64) (containers.Handle, error) {
	h := f.alloc("buffer")
	f.buffers[h] = make([]byte, size)
	return h, nil
}

func (f *fakeDriver) UpdateBuffer(h containers.Handle, offset uint64, data []byte) error {
	buf, ok := f.buffers[h]
	if !ok || offset+uint64(len(data)) > uint64(len(buf)) {
		return fmt.Errorf("bad buffer write to %v", h)
	}
	copy(buf[offset:], data)
	return nil
}

func (f *fakeDriver) DestroyBuffer(h containers.Handle) {
	delete(f.buffers, h)
	f.free(h)
}

func (f *fakeDriver) CreateSampler(linear bool) (containers.Handle, error) { return f.alloc("sampler"), nil }
func (f *fakeDriver) DestroySampler(h containers.Handle)                   { f.free(h) }

type fakeWindow struct{ w, h int }

func (w *fakeWindow) DrawableSize() (int, int) { return w.w, w.h }

type fakeShader struct {
	name      string
	hash      uint32
	stage     metadata.ShaderType
	code      []uint32
	structure metadata.DescriptorStructure
}

func (s *fakeShader) Name() string              { return s.name }
func (s *fakeShader) VariationHash() uint32     { return s.hash }
func (s *fakeShader) Type() metadata.ShaderType { return s.stage }
func (s *fakeShader) ByteCode() []uint32        { return s.code }
func (s *fakeShader) EntryPoint() string        { return "main" }
func (s *fakeShader) ConstantBufferSizes() [metadata.MaxShaderParameterGroups]uint32 {
	return [metadata.MaxShaderParameterGroups]uint32{}
}
func (s *fakeShader) DescriptorStructure() metadata.DescriptorStructure { return s.structure }
func (s *fakeShader) ParameterOffset(name string) (int, uint32, bool)   { return 0, 0, false }

func newVS(name string, structure metadata.DescriptorStructure) *fakeShader {
	return &fakeShader{name: name, stage: metadata.VertexShader, code: []uint32{0x07230203}, structure: structure}
}

func newPS(name string, structure metadata.DescriptorStructure) *fakeShader {
	return &fakeShader{name: name, stage: metadata.PixelShader, code: []uint32{0x07230203}, structure: structure}
}

type fakeConstantBuffer struct {
	handle  containers.Handle
	size    uint32
	dirty   bool
	applies int
	object  uint32
}

func (b *fakeConstantBuffer) GPUObject() containers.Handle { return b.handle }
func (b *fakeConstantBuffer) Size() uint32                 { return b.size }
func (b *fakeConstantBuffer) IsDirty() bool                { return b.dirty }
func (b *fakeConstantBuffer) Apply(uint64)                 { b.dirty = false; b.applies++ }
func (b *fakeConstantBuffer) ObjectIndex() uint32          { return b.object }

type fakeTexture struct {
	name    string
	view    containers.Handle
	sampler containers.Handle
	backup  metadata.Texture
}

func (t *fakeTexture) Name() string                          { return t.name }
func (t *fakeTexture) ShaderResourceView() containers.Handle { return t.view }
func (t *fakeTexture) Sampler() containers.Handle            { return t.sampler }
func (t *fakeTexture) BackupTexture() metadata.Texture       { return t.backup }
func (t *fakeTexture) Levels() uint32                        { return 1 }
func (t *fakeTexture) SetLevelsDirty()                       {}
func (t *fakeTexture) MultiSample() uint32                   { return 1 }
func (t *fakeTexture) AutoResolve() bool                     { return false }
func (t *fakeTexture) SetResolveDirty(bool)                  {}

type fakeSurface struct {
	parent metadata.Texture
	view   containers.Handle
	w, h   uint32
}

func (s *fakeSurface) ParentTexture() metadata.Texture      { return s.parent }
func (s *fakeSurface) RenderTargetView() containers.Handle { return s.view }
func (s *fakeSurface) Width() uint32                       { return s.w }
func (s *fakeSurface) Height() uint32                      { return s.h }
func (s *fakeSurface) MultiSample() uint32                 { return 1 }
func (s *fakeSurface) SetResolveDirty(bool)                {}

type fakeVertexBuffer struct {
	handle   containers.Handle
	stride   uint32
	elements []metadata.VertexElement
}

func (b *fakeVertexBuffer) GPUObject() containers.Handle        { return b.handle }
func (b *fakeVertexBuffer) VertexCount() uint32                 { return 3 }
func (b *fakeVertexBuffer) VertexSize() uint32                  { return b.stride }
func (b *fakeVertexBuffer) Elements() []metadata.VertexElement { return b.elements }

type fakeIndexBuffer struct {
	handle containers.Handle
	size   uint32
}

func (b *fakeIndexBuffer) GPUObject() containers.Handle { return b.handle }
func (b *fakeIndexBuffer) IndexCount() uint32           { return 3 }
func (b *fakeIndexBuffer) IndexSize() uint32            { return b.size }
