package vulkan

import (
	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/spaghettifunk/kestrel/engine/containers"
	"github.com/spaghettifunk/kestrel/engine/core"
	kmath "github.com/spaghettifunk/kestrel/engine/math"
	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
)

const targetAttachmentFormat = vk.FormatR8g8b8a8Unorm

// viewSizeRetireFrames is how many frames a view size may go unused before
// its attachments and framebuffers are released.
const viewSizeRetireFrames = 120

type viewportInfo struct {
	rect kmath.IntRect
	size vk.Extent2D
}

type attachmentKey struct {
	slot RenderSlot
	size vk.Extent2D
}

type surfaceFramebufferKey struct {
	surface metadata.RenderSurface
	pass    int
	size    vk.Extent2D
}

// GraphicsImpl is the device context every component works through. It owns
// the swapchain, the frame ring, the render pass, pipeline and descriptor
// layout caches, and the requested render state resolved at draw time.
type GraphicsImpl struct {
	driver  Driver
	window  Window
	cfg     core.GraphicsConfig
	logger  *log.Logger
	session string

	swapChain         *SwapChainManager
	frames            []*Frame
	currentFrame      *Frame
	frameNumber       uint64
	acquireSemaphores *containers.Ring[containers.Handle]

	renderPasses *RenderPassRegistry
	layouts      *DescriptorLayoutCache
	pipelines    *PipelineCache
	uboAlignment uint64

	attachments         map[attachmentKey]containers.Handle
	viewSizes           map[vk.Extent2D]uint64
	viewports           [metadata.MaxViewports]viewportInfo
	surfaceFramebuffers map[surfaceFramebufferKey]*Framebuffer

	renderPassIndex int
	subpassIndex    int
	viewportIndex   int
	renderTarget    metadata.RenderSurface
	pipelineStates  uint32
	stencilValue    uint32
	viewport        kmath.IntRect
	scissor         kmath.IntRect
	scissorTest     bool

	clearColor   [4]float32
	clearDepth   float32
	clearStencil uint32

	clearPass int
	mainPass  int
}

// NewGraphicsImpl registers the built-in and configured render passes and
// builds the first swapchain. A window with a zero-sized drawable is not an
// error; the swapchain is built once it has a size.
func NewGraphicsImpl(driver Driver, window Window, cfg *core.Config) (*GraphicsImpl, error) {
	session := uuid.NewString()
	impl := &GraphicsImpl{
		driver:              driver,
		window:              window,
		cfg:                 cfg.Graphics,
		logger:              core.Logger("device", session[:8]),
		session:             session,
		swapChain:           NewSwapChainManager(driver),
		renderPasses:        NewRenderPassRegistry(),
		layouts:             NewDescriptorLayoutCache(),
		attachments:         make(map[attachmentKey]containers.Handle),
		viewSizes:           make(map[vk.Extent2D]uint64),
		surfaceFramebuffers: make(map[surfaceFramebufferKey]*Framebuffer),
		viewportIndex:       -1,
		clearDepth:          1.0,
	}
	impl.pipelines = NewPipelineCache(impl.layouts)
	impl.uboAlignment = driver.Limits().MinUniformBufferOffsetAlignment
	impl.clearPass, _ = impl.renderPasses.Lookup(ClearPassName)
	impl.mainPass, _ = impl.renderPasses.Lookup(MainPassName)
	impl.renderPassIndex = impl.mainPass
	impl.pipelineStates = DefaultPipelineStates()

	for _, rp := range cfg.RenderPasses {
		if _, err := impl.RegisterRenderPass(rp); err != nil {
			impl.logger.Warn("skipping render pass", "name", rp.Name, "err", err)
		}
	}

	if err := impl.UpdateSwapChain(); err != nil && !errors.Is(err, core.ErrZeroExtent) {
		impl.Close()
		return nil, err
	}
	impl.logger.Info("graphics ready", "session", session, "passes", impl.renderPasses.Len())
	return impl, nil
}

// DefaultPipelineStates is the bitmask every device starts with.
func DefaultPipelineStates() uint32 {
	var s uint32
	SetPipelineState(&s, PipelineStateBlendMode, uint32(metadata.BlendReplace))
	SetPipelineState(&s, PipelineStatePrimitive, uint32(metadata.TriangleList))
	SetPipelineState(&s, PipelineStateColorMask, ColorMaskAll)
	SetPipelineState(&s, PipelineStateFillMode, uint32(metadata.FillSolid))
	SetPipelineState(&s, PipelineStateCullMode, uint32(metadata.CullCCW))
	SetPipelineState(&s, PipelineStateDepthTest, uint32(metadata.CompareLessEqual))
	SetPipelineState(&s, PipelineStateDepthWrite, 1)
	return s
}

func (impl *GraphicsImpl) Session() string { return impl.session }

// RegisterRenderPass adds a configured pass and returns its id.
func (impl *GraphicsImpl) RegisterRenderPass(c core.RenderPassConfig) (int, error) {
	rp, err := RenderPassConfigFromCore(c)
	if err != nil {
		return -1, err
	}
	id, err := impl.renderPasses.Register(rp)
	if err != nil {
		return -1, err
	}
	if impl.swapChain.Valid() {
		if err := impl.renderPasses.Ensure(impl.driver, impl.renderPasses.Get(id)); err != nil {
			return -1, err
		}
	}
	return id, nil
}

func (impl *GraphicsImpl) RenderPasses() *RenderPassRegistry { return impl.renderPasses }

func (impl *GraphicsImpl) swapChainOptions() SwapChainOptions {
	return SwapChainOptions{SRGB: impl.cfg.SRGB, VSync: impl.cfg.VSync, TripleBuffer: impl.cfg.TripleBuffer}
}

func (impl *GraphicsImpl) fenceTimeout() uint64 {
	return uint64(impl.cfg.FenceTimeoutMs) * 1_000_000
}

// UpdateSwapChain tears down every swapchain-dependent object and rebuilds
// the swapchain at the window's drawable size. On failure the frame ring
// stays empty and the swapchain stays dirty.
func (impl *GraphicsImpl) UpdateSwapChain() error {
	w, h := impl.window.DrawableSize()
	impl.driver.WaitIdle()
	impl.CleanUpSwapChain()

	wasValid := impl.swapChain.Valid()
	if err := impl.swapChain.UpdateSwapChain(uint32(max(w, 0)), uint32(max(h, 0)), impl.swapChainOptions()); err != nil {
		if errors.Is(err, core.ErrZeroExtent) {
			impl.logger.Debug("swapchain not rebuilt", "err", err)
		} else {
			impl.logger.Error("swapchain rebuild failed", "err", err)
		}
		return err
	}

	formats := AttachmentFormats{
		Color:  impl.swapChain.Format.Format,
		Target: targetAttachmentFormat,
		Depth:  impl.swapChain.DepthFormat,
	}
	if wasValid && formats != impl.renderPasses.formats {
		// passes are rebuilt with new formats, pipelines built against the old ones are unusable
		impl.logger.Info("attachment formats changed, dropping pipeline cache")
		impl.pipelines.Destroy(impl.driver)
	}
	if err := impl.renderPasses.Build(impl.driver, formats); err != nil {
		impl.swapChain.MarkDirty()
		return err
	}

	views := impl.swapChain.ImageViews
	semaphores := make([]containers.Handle, 0, len(views)+1)
	for i := 0; i < len(views)+1; i++ {
		sem, err := impl.driver.CreateSemaphore()
		if err != nil {
			impl.destroySemaphores(semaphores)
			impl.swapChain.MarkDirty()
			return err
		}
		semaphores = append(semaphores, sem)
	}
	impl.acquireSemaphores = containers.NewRing(semaphores)

	for i, view := range views {
		res, err := impl.driver.CreateFrameResources()
		if err != nil {
			impl.CleanUpSwapChain()
			impl.swapChain.MarkDirty()
			return err
		}
		impl.frames = append(impl.frames, newFrame(i, res, view))
	}

	return nil
}

func (impl *GraphicsImpl) destroySemaphores(sems []containers.Handle) {
	for _, s := range sems {
		impl.driver.DestroySemaphore(s)
	}
}

// CleanUpSwapChain releases frames, framebuffers and size-dependent
// attachments. The swapchain itself and the caches survive.
func (impl *GraphicsImpl) CleanUpSwapChain() {
	impl.currentFrame = nil
	for _, f := range impl.frames {
		f.destroy(impl.driver)
	}
	impl.frames = nil
	if impl.acquireSemaphores != nil {
		impl.destroySemaphores(impl.acquireSemaphores.Values())
		impl.acquireSemaphores = nil
	}
	for k, fb := range impl.surfaceFramebuffers {
		impl.driver.DestroyFramebuffer(fb.Handle)
		delete(impl.surfaceFramebuffers, k)
	}
	for k, view := range impl.attachments {
		impl.driver.DestroyAttachment(view)
		delete(impl.attachments, k)
	}
	clear(impl.viewSizes)
}

// Close releases everything, including the caches and the driver.
func (impl *GraphicsImpl) Close() {
	if impl.driver == nil {
		return
	}
	impl.driver.WaitIdle()
	impl.CleanUpSwapChain()
	impl.swapChain.CleanUpSwapChain()
	impl.pipelines.Destroy(impl.driver)
	impl.layouts.Destroy(impl.driver)
	impl.renderPasses.Destroy(impl.driver)
	impl.driver.Destroy()
	impl.driver = nil
	impl.logger.Info("graphics closed")
}

// AcquireFrame acquires the next swapchain image and makes its frame slot
// current: waits on the slot's fence, resets its command pool and begins
// recording. Out-of-date and surface-lost results mark the swapchain dirty
// and return ErrSwapchainOutOfDate.
func (impl *GraphicsImpl) AcquireFrame() error {
	if impl.currentFrame != nil {
		return nil
	}
	if len(impl.frames) == 0 || impl.acquireSemaphores == nil {
		return core.ErrNoFrame
	}
	sem := impl.acquireSemaphores.Next()
	index, res := impl.driver.AcquireNextImage(impl.swapChain.Handle, sem, impl.fenceTimeout())
	switch res {
	case vk.Success:
	case vk.Suboptimal:
		impl.swapChain.MarkDirty()
	case vk.ErrorOutOfDate, vk.ErrorSurfaceLost:
		impl.swapChain.MarkDirty()
		return errors.Wrapf(core.ErrSwapchainOutOfDate, "acquire: %s", VulkanResultString(res))
	case vk.Timeout, vk.NotReady:
		return errors.Wrap(core.ErrFenceTimeout, "acquire")
	case vk.ErrorDeviceLost:
		return core.ErrDeviceLost
	default:
		return errors.Newf("acquire: %s", VulkanResultString(res))
	}
	if int(index) >= len(impl.frames) {
		impl.swapChain.MarkDirty()
		return errors.Wrapf(core.ErrSwapchainOutOfDate, "image index %d of %d", index, len(impl.frames))
	}

	frame := impl.frames[index]
	if err := impl.driver.WaitForFence(frame.Resources.Fence, impl.fenceTimeout()); err != nil {
		// the acquire semaphore is signalled but never waited on, only a rebuild recovers it
		impl.swapChain.MarkDirty()
		return err
	}
	if err := impl.driver.ResetFence(frame.Resources.Fence); err != nil {
		impl.swapChain.MarkDirty()
		return err
	}
	if err := impl.driver.ResetCommandPool(frame.Resources.CommandPool); err != nil {
		impl.swapChain.MarkDirty()
		return err
	}
	frame.reset()
	frame.acquireSemaphore = sem
	if err := impl.driver.BeginCommandBuffer(frame.CommandBuffer()); err != nil {
		impl.swapChain.MarkDirty()
		return err
	}
	frame.commandBufferBegun = true
	impl.frameNumber++
	impl.currentFrame = frame
	impl.retireViewSizes()
	return nil
}

// PresentFrame closes any open pass, submits the frame and presents its
// image. Out-of-date or suboptimal results mark the swapchain dirty.
func (impl *GraphicsImpl) PresentFrame() {
	frame := impl.currentFrame
	if frame == nil {
		impl.logger.Debug("present without a current frame")
		return
	}
	impl.currentFrame = nil

	if frame.renderPassBegun {
		impl.endRenderPass(frame)
	}
	if !frame.presentInitialized {
		impl.recordClearPass(frame)
	}
	cmd := frame.CommandBuffer()
	if err := impl.driver.EndCommandBuffer(cmd); err != nil {
		impl.logger.Error("ending command buffer", "err", err)
		impl.swapChain.MarkDirty()
		return
	}
	frame.commandBufferBegun = false
	if err := impl.driver.Submit(cmd, frame.acquireSemaphore, frame.Resources.RenderComplete, frame.Resources.Fence); err != nil {
		impl.logger.Error("queue submit", "err", err)
		impl.swapChain.MarkDirty()
		return
	}
	switch res := impl.driver.Present(impl.swapChain.Handle, uint32(frame.Index), frame.Resources.RenderComplete); res {
	case vk.Success:
	case vk.ErrorOutOfDate, vk.Suboptimal:
		impl.swapChain.MarkDirty()
	case vk.ErrorSurfaceLost:
		impl.logger.Warn("surface lost on present")
		impl.swapChain.MarkDirty()
	default:
		impl.logger.Error("present", "result", VulkanResultString(res))
		impl.swapChain.MarkDirty()
	}
}

func (impl *GraphicsImpl) CurrentFrame() *Frame { return impl.currentFrame }

func (impl *GraphicsImpl) NumFrames() int { return len(impl.frames) }

func (impl *GraphicsImpl) SwapChain() *SwapChainManager { return impl.swapChain }

// renderTargetSize is the size of the bound surface, or the swapchain extent.
func (impl *GraphicsImpl) renderTargetSize() (int32, int32) {
	if impl.renderTarget != nil {
		return int32(impl.renderTarget.Width()), int32(impl.renderTarget.Height())
	}
	e := impl.swapChain.Extent
	return int32(e.Width), int32(e.Height)
}

// useViewSize marks size as used by the current frame.
func (impl *GraphicsImpl) useViewSize(size vk.Extent2D) {
	impl.viewSizes[size] = impl.frameNumber
}

// retireViewSizes releases the attachments and framebuffers of view sizes
// unused for viewSizeRetireFrames frames. The swapchain extent is kept.
func (impl *GraphicsImpl) retireViewSizes() {
	for size, last := range impl.viewSizes {
		if size == impl.swapChain.Extent || impl.frameNumber-last <= viewSizeRetireFrames {
			continue
		}
		for _, f := range impl.frames {
			f.dropFramebuffers(impl.driver, size)
		}
		for k, fb := range impl.surfaceFramebuffers {
			if k.size == size {
				impl.driver.DestroyFramebuffer(fb.Handle)
				delete(impl.surfaceFramebuffers, k)
			}
		}
		for k, view := range impl.attachments {
			if k.size == size {
				impl.driver.DestroyAttachment(view)
				delete(impl.attachments, k)
			}
		}
		delete(impl.viewSizes, size)
		impl.logger.Debug("view size retired", "width", size.Width, "height", size.Height)
	}
}

// requestedTarget returns what a draw needs the open pass to be begun for.
func (impl *GraphicsImpl) requestedTarget() passTarget {
	want := passTarget{pass: impl.renderPassIndex, viewport: impl.viewportIndex, target: impl.renderTarget}
	switch pass := impl.renderPasses.Get(want.pass); {
	case want.target != nil:
		want.size = vk.Extent2D{Width: want.target.Width(), Height: want.target.Height()}
	case pass != nil && !pass.ScreenSized() && want.viewport >= 0:
		want.size = impl.viewports[want.viewport].size
	default:
		want.size = impl.swapChain.Extent
	}
	return want
}

// SetViewport clamps rect to the render target and selects the logical
// viewport index, -1 for the whole screen. Scissoring is switched off.
func (impl *GraphicsImpl) SetViewport(rect kmath.IntRect, index int) {
	w, h := impl.renderTargetSize()
	r := rect.ClampTo(w, h)
	impl.viewport = r
	impl.scissorTest = false
	impl.scissor = r
	if index < 0 || index >= metadata.MaxViewports {
		impl.viewportIndex = -1
		return
	}
	vw, vh := r.Size()
	impl.viewports[index] = viewportInfo{rect: r, size: vk.Extent2D{Width: vw, Height: vh}}
	impl.viewportIndex = index
}

func (impl *GraphicsImpl) SetScissorTest(enable bool, rect kmath.IntRect) {
	impl.scissorTest = enable
	if enable {
		w, h := impl.renderTargetSize()
		impl.scissor = rect.ClampTo(w, h)
	} else {
		impl.scissor = impl.viewport
	}
}

// SetRenderPass requests a registered pass, starting at subpass 0.
func (impl *GraphicsImpl) SetRenderPass(id int) bool {
	if impl.renderPasses.Get(id) == nil {
		return false
	}
	if id != impl.renderPassIndex {
		impl.renderPassIndex = id
		impl.subpassIndex = 0
	}
	return true
}

// SetSubpass requests a subpass of the current pass. Out of range values are ignored.
func (impl *GraphicsImpl) SetSubpass(index int) bool {
	if index < 0 || index >= impl.renderPasses.SubpassCount(impl.renderPassIndex) {
		return false
	}
	impl.subpassIndex = index
	return true
}

func (impl *GraphicsImpl) SetClearValues(color [4]float32, depth float32, stencil uint32) {
	impl.clearColor = color
	impl.clearDepth = depth
	impl.clearStencil = stencil
}

func (impl *GraphicsImpl) clearValues(pass *RenderPassInfo) []vk.ClearValue {
	values := make([]vk.ClearValue, len(pass.Attachments))
	for i, a := range pass.Attachments {
		if a.Slot == SlotDepth {
			values[i].SetDepthStencil(impl.clearDepth, impl.clearStencil)
		} else {
			values[i].SetColor(impl.clearColor[:])
		}
	}
	return values
}

// attachment returns the size-dependent image view for slot, created on demand.
func (impl *GraphicsImpl) attachment(slot RenderSlot, size vk.Extent2D) (containers.Handle, error) {
	key := attachmentKey{slot: slot, size: size}
	if view, ok := impl.attachments[key]; ok {
		return view, nil
	}
	desc := AttachmentDesc{
		Format:  targetAttachmentFormat,
		Width:   size.Width,
		Height:  size.Height,
		Samples: passSamples,
		Layout:  slotLayout(slot),
	}
	if slot == SlotDepth {
		desc.Format = impl.swapChain.DepthFormat
		desc.Depth = true
	}
	view, err := impl.driver.CreateAttachment(desc)
	if err != nil {
		return 0, err
	}
	impl.attachments[key] = view
	return view, nil
}

// framebufferFor selects, creating on demand, the framebuffer a pass renders
// into: the bound render surface, the screen for CLEAR and PRESENT passes, or
// the viewport's size for VIEW passes.
func (impl *GraphicsImpl) framebufferFor(frame *Frame, pass *RenderPassInfo, want passTarget) (*Framebuffer, error) {
	impl.useViewSize(want.size)
	if want.target != nil {
		key := surfaceFramebufferKey{surface: want.target, pass: pass.ID, size: want.size}
		if fb, ok := impl.surfaceFramebuffers[key]; ok {
			return fb, nil
		}
		fb, err := impl.createFramebuffer(pass, want.size, want.target.RenderTargetView())
		if err != nil {
			return nil, err
		}
		impl.surfaceFramebuffers[key] = fb
		return fb, nil
	}

	key := framebufferKey{pass: pass.ID, size: want.size}
	if fb, ok := frame.Framebuffers[key]; ok {
		return fb, nil
	}
	fb, err := impl.createFramebuffer(pass, want.size, frame.ImageView)
	if err != nil {
		return nil, err
	}
	frame.Framebuffers[key] = fb
	return fb, nil
}

func (impl *GraphicsImpl) createFramebuffer(pass *RenderPassInfo, size vk.Extent2D, presentView containers.Handle) (*Framebuffer, error) {
	if err := impl.renderPasses.Ensure(impl.driver, pass); err != nil {
		return nil, err
	}
	fb := &Framebuffer{Width: size.Width, Height: size.Height}
	for _, a := range pass.Attachments {
		if a.Slot == SlotPresent {
			fb.Views = append(fb.Views, presentView)
			continue
		}
		view, err := impl.attachment(a.Slot, size)
		if err != nil {
			return nil, err
		}
		fb.Views = append(fb.Views, view)
	}
	h, err := impl.driver.CreateFramebuffer(FramebufferDesc{
		RenderPass:  pass.Handle,
		Attachments: fb.Views,
		Width:       fb.Width,
		Height:      fb.Height,
	})
	if err != nil {
		return nil, err
	}
	fb.Handle = h
	return fb, nil
}

// beginRenderPass opens the requested pass at subpass 0. The first pass of a
// frame that loads the present attachment is preceded by the clear pass so
// the swapchain image is never loaded from an undefined layout.
func (impl *GraphicsImpl) beginRenderPass(frame *Frame, want passTarget) error {
	pass := impl.renderPasses.Get(want.pass)
	if pass == nil {
		return errors.Newf("unknown render pass %d", want.pass)
	}
	if want.target == nil {
		if idx := pass.AttachmentIndex(SlotPresent); idx >= 0 && !frame.presentInitialized {
			if !pass.Attachments[idx].Clear {
				impl.recordClearPass(frame)
			}
			frame.presentInitialized = true
		}
	}
	fb, err := impl.framebufferFor(frame, pass, want)
	if err != nil {
		return err
	}
	area := vk.Rect2D{Extent: vk.Extent2D{Width: fb.Width, Height: fb.Height}}
	impl.driver.CmdBeginRenderPass(frame.CommandBuffer(), pass.Handle, fb.Handle, area, impl.clearValues(pass))
	frame.renderPassBegun = true
	frame.renderPassIndex = want.pass
	frame.viewportIndex = want.viewport
	frame.viewSize = want.size
	frame.renderTarget = want.target
	frame.subpassIndex = 0
	frame.framebuffer = fb
	return nil
}

// endRenderPass steps through every remaining subpass before ending the pass.
func (impl *GraphicsImpl) endRenderPass(frame *Frame) {
	cmd := frame.CommandBuffer()
	count := impl.renderPasses.SubpassCount(frame.renderPassIndex)
	for frame.subpassIndex < count-1 {
		impl.driver.CmdNextSubpass(cmd)
		frame.subpassIndex++
	}
	impl.driver.CmdEndRenderPass(cmd)
	frame.renderPassBegun = false
	frame.framebuffer = nil
}

// advanceSubpass moves the open pass forward to subpass, never backward.
func (impl *GraphicsImpl) advanceSubpass(frame *Frame, subpass int) {
	count := impl.renderPasses.SubpassCount(frame.renderPassIndex)
	if subpass >= count {
		subpass = count - 1
	}
	if subpass < frame.subpassIndex {
		impl.logger.Debug("subpass cannot go backward", "current", frame.subpassIndex, "requested", subpass)
		return
	}
	for frame.subpassIndex < subpass {
		impl.driver.CmdNextSubpass(frame.CommandBuffer())
		frame.subpassIndex++
	}
}

// recordClearPass clears the frame's swapchain image with the clear pass.
func (impl *GraphicsImpl) recordClearPass(frame *Frame) {
	pass := impl.renderPasses.Get(impl.clearPass)
	fb, err := impl.framebufferFor(frame, pass, passTarget{pass: impl.clearPass, viewport: -1, size: impl.swapChain.Extent})
	if err != nil {
		impl.logger.Error("clear pass framebuffer", "err", err)
		return
	}
	cmd := frame.CommandBuffer()
	area := vk.Rect2D{Extent: vk.Extent2D{Width: fb.Width, Height: fb.Height}}
	impl.driver.CmdBeginRenderPass(cmd, pass.Handle, fb.Handle, area, impl.clearValues(pass))
	impl.driver.CmdEndRenderPass(cmd)
	frame.presentInitialized = true
}

// RegisterPipelineInfo returns the cached pipeline for req, building it on a miss.
func (impl *GraphicsImpl) RegisterPipelineInfo(req *PipelineRequest) *PipelineInfo {
	return impl.pipelines.RegisterPipelineInfo(impl.driver, req)
}

// GetPipelineInfo returns the cached pipeline for req without building.
func (impl *GraphicsImpl) GetPipelineInfo(req *PipelineRequest) *PipelineInfo {
	return impl.pipelines.GetPipelineInfo(req.Key())
}

// dynamicOffset is the byte offset of object index in a dynamic uniform buffer.
func (impl *GraphicsImpl) dynamicOffset(size, objectIndex uint32) uint32 {
	stride := kmath.AlignUp(uint64(size), impl.uboAlignment)
	return uint32(stride * uint64(objectIndex))
}

// ApplyConfig takes over a reloaded configuration. Presentation changes
// rebuild the swapchain at the next frame.
func (impl *GraphicsImpl) ApplyConfig(cfg core.GraphicsConfig) {
	if cfg.SRGB != impl.cfg.SRGB || cfg.VSync != impl.cfg.VSync || cfg.TripleBuffer != impl.cfg.TripleBuffer {
		impl.swapChain.MarkDirty()
	}
	if cfg.LogLevel != impl.cfg.LogLevel {
		core.SetLogLevel(cfg.LogLevel)
	}
	impl.cfg = cfg
}
