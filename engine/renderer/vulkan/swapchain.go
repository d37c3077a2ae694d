package vulkan

import (
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
	"github.com/spaghettifunk/kestrel/engine/core"
	kmath "github.com/spaghettifunk/kestrel/engine/math"
)

// SwapChainOptions are the presentation flags the swapchain is built with.
type SwapChainOptions struct {
	SRGB         bool
	VSync        bool
	TripleBuffer bool
}

// SwapChainManager owns the swapchain, its image views and the choice of
// surface, depth format, extent and present mode.
type SwapChainManager struct {
	dev Device

	Handle      containers.Handle
	Format      vk.SurfaceFormat
	DepthFormat vk.Format
	Extent      vk.Extent2D
	PresentMode vk.PresentMode
	ImageViews  []containers.Handle
	Options     SwapChainOptions

	dirty bool
}

func NewSwapChainManager(dev Device) *SwapChainManager {
	return &SwapChainManager{dev: dev, dirty: true}
}

func (s *SwapChainManager) MarkDirty()  { s.dirty = true }
func (s *SwapChainManager) Dirty() bool { return s.dirty }
func (s *SwapChainManager) Valid() bool { return !s.Handle.IsNull() }

// CheckResize marks the swapchain dirty when the drawable size no longer
// matches the extent.
func (s *SwapChainManager) CheckResize(win Window) bool {
	w, h := win.DrawableSize()
	if w < 0 || h < 0 {
		return s.dirty
	}
	if uint32(w) != s.Extent.Width || uint32(h) != s.Extent.Height {
		s.dirty = true
	}
	return s.dirty
}

// UpdateSwapChain (re)creates the swapchain for the given size and options.
// On failure the previous swapchain, if any, is kept and the manager stays
// dirty so the caller can retry.
func (s *SwapChainManager) UpdateSwapChain(width, height uint32, opts SwapChainOptions) error {
	caps, err := s.dev.SurfaceCapabilities()
	if err != nil {
		return errors.Mark(err, core.ErrSurfaceLost)
	}
	extent, err := ChooseExtent(caps, width, height)
	if err != nil {
		return err
	}
	formats, err := s.dev.SurfaceFormats()
	if err != nil {
		return errors.Mark(err, core.ErrSurfaceLost)
	}
	format, err := ChooseSurfaceFormat(formats, opts.SRGB)
	if err != nil {
		return err
	}
	modes, err := s.dev.PresentModes()
	if err != nil {
		return errors.Mark(err, core.ErrSurfaceLost)
	}
	depth, err := ChooseDepthFormat(s.dev)
	if err != nil {
		return err
	}
	desc := SwapchainDesc{
		Format:      format,
		Extent:      extent,
		PresentMode: ChoosePresentMode(modes, opts.VSync, opts.TripleBuffer),
		ImageCount:  ChooseImageCount(caps, opts.VSync, opts.TripleBuffer),
	}

	handle, err := s.dev.CreateSwapchain(desc, s.Handle)
	if err != nil {
		return err
	}
	if !s.Handle.IsNull() {
		s.dev.DestroySwapchain(s.Handle)
	}
	s.Handle = handle
	s.Format = format
	s.DepthFormat = depth
	s.Extent = extent
	s.PresentMode = desc.PresentMode
	s.ImageViews = s.dev.SwapchainImageViews(handle)
	s.Options = opts
	s.dirty = false

	core.LogInfo("swapchain %dx%d format=%d colorspace=%d present=%d images=%d",
		extent.Width, extent.Height, format.Format, format.ColorSpace, desc.PresentMode, len(s.ImageViews))
	return nil
}

// CleanUpSwapChain destroys the swapchain and its image views.
func (s *SwapChainManager) CleanUpSwapChain() {
	if s.Handle.IsNull() {
		return
	}
	s.dev.DestroySwapchain(s.Handle)
	s.Handle = 0
	s.ImageViews = nil
	s.dirty = true
}

// ChooseExtent uses the surface's current extent unless it is undefined, in
// which case the requested size is clamped to the supported range.
func ChooseExtent(caps SurfaceCapabilities, width, height uint32) (vk.Extent2D, error) {
	extent := caps.CurrentExtent
	if extent.Width == math.MaxUint32 {
		extent = vk.Extent2D{
			Width:  kmath.Clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
			Height: kmath.Clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
		}
	}
	if extent.Width == 0 || extent.Height == 0 {
		return extent, errors.Wrapf(core.ErrZeroExtent, "%dx%d", extent.Width, extent.Height)
	}
	return extent, nil
}

// ChooseSurfaceFormat prefers 8-bit RGBA/BGRA in the requested encoding with
// the sRGB non-linear colour space, then any format in that encoding, then the
// first format offered.
func ChooseSurfaceFormat(formats []vk.SurfaceFormat, srgb bool) (vk.SurfaceFormat, error) {
	if len(formats) == 0 {
		return vk.SurfaceFormat{}, core.ErrNoSurfaceFormat
	}
	// the surface accepts anything
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		f := vk.FormatB8g8r8a8Unorm
		if srgb {
			f = vk.FormatB8g8r8a8Srgb
		}
		return vk.SurfaceFormat{Format: f, ColorSpace: vk.ColorSpaceSrgbNonlinear}, nil
	}
	wanted := []vk.Format{vk.FormatB8g8r8a8Unorm, vk.FormatR8g8b8a8Unorm}
	if srgb {
		wanted = []vk.Format{vk.FormatB8g8r8a8Srgb, vk.FormatR8g8b8a8Srgb}
	}
	for _, w := range wanted {
		for _, f := range formats {
			if f.Format == w && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
				return f, nil
			}
		}
	}
	for _, w := range wanted {
		for _, f := range formats {
			if f.Format == w {
				return f, nil
			}
		}
	}
	return formats[0], nil
}

// ChoosePresentMode maps the vsync and triple buffer flags to a present mode.
// FIFO is always available and is the final fallback.
func ChoosePresentMode(modes []vk.PresentMode, vsync, tripleBuffer bool) vk.PresentMode {
	var preferred []vk.PresentMode
	switch {
	case vsync && tripleBuffer:
		preferred = []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeFifo}
	case vsync:
		preferred = []vk.PresentMode{vk.PresentModeFifo}
	default:
		preferred = []vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeMailbox, vk.PresentModeFifoRelaxed}
	}
	for _, p := range preferred {
		for _, m := range modes {
			if m == p {
				return m
			}
		}
	}
	return vk.PresentModeFifo
}

// ChooseImageCount asks for three images with triple buffering, two with
// vsync and one otherwise, within the surface limits. A zero maximum means
// unbounded.
func ChooseImageCount(caps SurfaceCapabilities, vsync, tripleBuffer bool) uint32 {
	count := uint32(1)
	switch {
	case tripleBuffer:
		count = 3
	case vsync:
		count = 2
	}
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

var depthFormatCandidates = []vk.Format{
	vk.FormatD24UnormS8Uint,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD32Sfloat,
}

// ChooseDepthFormat picks the first supported depth format, preferring ones
// with a stencil aspect.
func ChooseDepthFormat(dev Device) (vk.Format, error) {
	for _, f := range depthFormatCandidates {
		if dev.SupportsDepthFormat(f) {
			return f, nil
		}
	}
	return vk.FormatUndefined, core.ErrNoDepthFormat
}
