package vulkan

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/core"
)

func TestChooseExtent(t *testing.T) {
	undefined := vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32}
	caps := SurfaceCapabilities{
		MinImageExtent: vk.Extent2D{Width: 16, Height: 16},
		MaxImageExtent: vk.Extent2D{Width: 1024, Height: 768},
	}
	tests := []struct {
		name    string
		current vk.Extent2D
		w, h    uint32
		want    vk.Extent2D
		wantErr bool
	}{
		{"current extent wins", vk.Extent2D{Width: 800, Height: 600}, 1920, 1080, vk.Extent2D{Width: 800, Height: 600}, false},
		{"undefined uses request", undefined, 640, 480, vk.Extent2D{Width: 640, Height: 480}, false},
		{"undefined clamps high", undefined, 4000, 4000, vk.Extent2D{Width: 1024, Height: 768}, false},
		{"undefined clamps low", undefined, 1, 2, vk.Extent2D{Width: 16, Height: 16}, false},
		{"minimized", vk.Extent2D{Width: 0, Height: 0}, 0, 0, vk.Extent2D{}, true},
		{"zero height", vk.Extent2D{Width: 800, Height: 0}, 800, 0, vk.Extent2D{Width: 800}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := caps
			c.CurrentExtent = tt.current
			got, err := ChooseExtent(c, tt.w, tt.h)
			if tt.wantErr {
				if !errors.Is(err, core.ErrZeroExtent) {
					t.Fatalf("ChooseExtent() error = %v, want ErrZeroExtent", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ChooseExtent() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ChooseExtent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	bgraUnorm := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	bgraSrgb := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	rgbaSrgb := vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	odd := vk.SurfaceFormat{Format: vk.FormatR32g32b32a32Sfloat, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	tests := []struct {
		name    string
		formats []vk.SurfaceFormat
		srgb    bool
		want    vk.SurfaceFormat
	}{
		{"unorm preferred", []vk.SurfaceFormat{bgraSrgb, bgraUnorm}, false, bgraUnorm},
		{"srgb preferred", []vk.SurfaceFormat{bgraUnorm, bgraSrgb}, true, bgraSrgb},
		{"srgb rgba", []vk.SurfaceFormat{odd, rgbaSrgb}, true, rgbaSrgb},
		{"first as fallback", []vk.SurfaceFormat{odd}, false, odd},
		{"undefined means any", []vk.SurfaceFormat{{Format: vk.FormatUndefined}}, true, bgraSrgb},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChooseSurfaceFormat(tt.formats, tt.srgb)
			if err != nil {
				t.Fatalf("ChooseSurfaceFormat() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ChooseSurfaceFormat() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := ChooseSurfaceFormat(nil, false); !errors.Is(err, core.ErrNoSurfaceFormat) {
		t.Errorf("ChooseSurfaceFormat(nil) error = %v, want ErrNoSurfaceFormat", err)
	}
}

func TestChoosePresentMode(t *testing.T) {
	all := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox, vk.PresentModeImmediate, vk.PresentModeFifoRelaxed}
	fifoOnly := []vk.PresentMode{vk.PresentModeFifo}
	tests := []struct {
		name          string
		modes         []vk.PresentMode
		vsync, triple bool
		want          vk.PresentMode
	}{
		{"vsync", all, true, false, vk.PresentModeFifo},
		{"vsync triple", all, true, true, vk.PresentModeMailbox},
		{"vsync triple no mailbox", fifoOnly, true, true, vk.PresentModeFifo},
		{"no vsync", all, false, false, vk.PresentModeImmediate},
		{"no vsync no immediate", []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}, false, false, vk.PresentModeMailbox},
		{"no vsync relaxed", []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeFifoRelaxed}, false, false, vk.PresentModeFifoRelaxed},
		{"no vsync fifo only", fifoOnly, false, true, vk.PresentModeFifo},
		{"empty list", nil, false, false, vk.PresentModeFifo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChoosePresentMode(tt.modes, tt.vsync, tt.triple); got != tt.want {
				t.Errorf("ChoosePresentMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		name          string
		min, max      uint32
		vsync, triple bool
		want          uint32
	}{
		{"single", 1, 3, false, false, 1},
		{"vsync", 1, 3, true, false, 2},
		{"triple", 1, 3, true, true, 3},
		{"raised to min", 2, 3, false, false, 2},
		{"clamped to max", 1, 2, true, true, 2},
		{"unbounded max", 1, 0, false, true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max}
			if got := ChooseImageCount(caps, tt.vsync, tt.triple); got != tt.want {
				t.Errorf("ChooseImageCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestChooseDepthFormat(t *testing.T) {
	tests := []struct {
		name      string
		supported []vk.Format
		want      vk.Format
		wantErr   bool
	}{
		{"stencil preferred", []vk.Format{vk.FormatD32Sfloat, vk.FormatD24UnormS8Uint}, vk.FormatD24UnormS8Uint, false},
		{"d32 stencil", []vk.Format{vk.FormatD32SfloatS8Uint, vk.FormatD32Sfloat}, vk.FormatD32SfloatS8Uint, false},
		{"depth only", []vk.Format{vk.FormatD32Sfloat}, vk.FormatD32Sfloat, false},
		{"none", nil, vk.FormatUndefined, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeDriver()
			dev.depthFormats = map[vk.Format]bool{}
			for _, f := range tt.supported {
				dev.depthFormats[f] = true
			}
			got, err := ChooseDepthFormat(dev)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ChooseDepthFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ChooseDepthFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSwapChainManagerUpdate(t *testing.T) {
	dev := newFakeDriver()
	s := NewSwapChainManager(dev)
	if !s.Dirty() || s.Valid() {
		t.Fatalf("new manager dirty=%v valid=%v, want dirty and invalid", s.Dirty(), s.Valid())
	}

	opts := SwapChainOptions{VSync: true}
	if err := s.UpdateSwapChain(800, 600, opts); err != nil {
		t.Fatalf("UpdateSwapChain() error = %v", err)
	}
	if s.Dirty() || !s.Valid() {
		t.Errorf("after update dirty=%v valid=%v", s.Dirty(), s.Valid())
	}
	if len(s.ImageViews) != 2 {
		t.Errorf("ImageViews = %d, want 2", len(s.ImageViews))
	}
	if s.Extent.Width != 800 || s.Extent.Height != 600 {
		t.Errorf("Extent = %v, want 800x600", s.Extent)
	}
	if s.DepthFormat != vk.FormatD24UnormS8Uint {
		t.Errorf("DepthFormat = %v, want D24S8", s.DepthFormat)
	}

	first := s.Handle
	if err := s.UpdateSwapChain(800, 600, SwapChainOptions{VSync: true, TripleBuffer: true}); err != nil {
		t.Fatalf("UpdateSwapChain() error = %v", err)
	}
	created := dev.callsOf("CreateSwapchain")
	if len(created) != 2 || created[1].handles[1] != first {
		t.Errorf("second CreateSwapchain calls = %v, want old handle %v retired", created, first)
	}
	if dev.liveCount("swapchain") != 1 {
		t.Errorf("live swapchains = %d, want 1", dev.liveCount("swapchain"))
	}
	if s.PresentMode != vk.PresentModeMailbox {
		t.Errorf("PresentMode = %v, want mailbox", s.PresentMode)
	}

	s.CleanUpSwapChain()
	if s.Valid() || !s.Dirty() {
		t.Errorf("after cleanup valid=%v dirty=%v", s.Valid(), s.Dirty())
	}
	if dev.liveCount("swapchain") != 0 || dev.liveCount("swapchain view") != 0 {
		t.Errorf("swapchain objects leaked: %v", dev.live)
	}
}

func TestSwapChainManagerKeepsOldOnFailure(t *testing.T) {
	dev := newFakeDriver()
	s := NewSwapChainManager(dev)
	if err := s.UpdateSwapChain(800, 600, SwapChainOptions{VSync: true}); err != nil {
		t.Fatalf("UpdateSwapChain() error = %v", err)
	}
	old := s.Handle

	dev.swapchainErr = core.ErrSurfaceLost
	s.MarkDirty()
	if err := s.UpdateSwapChain(800, 600, SwapChainOptions{VSync: true}); err == nil {
		t.Fatal("UpdateSwapChain() error = nil, want failure")
	}
	if s.Handle != old || !s.Dirty() {
		t.Errorf("after failure handle=%v dirty=%v, want %v and dirty", s.Handle, s.Dirty(), old)
	}

	dev.caps.CurrentExtent = vk.Extent2D{}
	dev.swapchainErr = nil
	if err := s.UpdateSwapChain(0, 0, SwapChainOptions{}); !errors.Is(err, core.ErrZeroExtent) {
		t.Errorf("UpdateSwapChain(0,0) error = %v, want ErrZeroExtent", err)
	}
}

func TestSwapChainManagerCheckResize(t *testing.T) {
	dev := newFakeDriver()
	s := NewSwapChainManager(dev)
	if err := s.UpdateSwapChain(800, 600, SwapChainOptions{}); err != nil {
		t.Fatalf("UpdateSwapChain() error = %v", err)
	}
	if s.CheckResize(&fakeWindow{800, 600}) {
		t.Error("CheckResize() with same size = true")
	}
	if !s.CheckResize(&fakeWindow{1024, 600}) {
		t.Error("CheckResize() with new size = false")
	}
}
