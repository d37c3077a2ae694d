package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
)

type Framebuffer struct {
	Handle containers.Handle
	Views  []containers.Handle
	Width  uint32
	Height uint32
}

type framebufferKey struct {
	pass int
	size vk.Extent2D
}

// passTarget is what a begun render pass was begun for. A second begin is
// only needed when it changes.
type passTarget struct {
	pass     int
	viewport int
	size     vk.Extent2D
	target   metadata.RenderSurface
}

type boundSet struct {
	layout    containers.Handle
	set       containers.Handle
	signature []uint64
}

// Frame is one slot of the frame ring, paired with the swapchain image of the
// same index. It owns its command pool and buffer, its submission fence and
// its render-complete semaphore.
type Frame struct {
	Index        int
	Resources    FrameResources
	ImageView    containers.Handle
	Framebuffers map[framebufferKey]*Framebuffer

	acquireSemaphore containers.Handle

	renderPassIndex       int
	viewportIndex         int
	viewSize              vk.Extent2D
	renderTarget          metadata.RenderSurface
	subpassIndex          int
	commandBufferBegun    bool
	renderPassBegun       bool
	presentInitialized    bool
	lastPipelineInfoBound PipelineID
	textureDirty          bool
	framebuffer           *Framebuffer
	boundSets             []boundSet
}

func newFrame(index int, res FrameResources, view containers.Handle) *Frame {
	f := &Frame{
		Index:        index,
		Resources:    res,
		ImageView:    view,
		Framebuffers: make(map[framebufferKey]*Framebuffer),
	}
	f.reset()
	return f
}

// reset clears the per-frame transient state after the slot is acquired.
func (f *Frame) reset() {
	f.renderPassIndex = -1
	f.viewportIndex = -1
	f.viewSize = vk.Extent2D{}
	f.renderTarget = nil
	f.subpassIndex = 0
	f.commandBufferBegun = false
	f.renderPassBegun = false
	f.presentInitialized = false
	f.lastPipelineInfoBound = NullPipeline
	f.textureDirty = true
	f.framebuffer = nil
	f.boundSets = f.boundSets[:0]
}

func (f *Frame) target() passTarget {
	return passTarget{pass: f.renderPassIndex, viewport: f.viewportIndex, size: f.viewSize, target: f.renderTarget}
}

func (f *Frame) CommandBuffer() containers.Handle { return f.Resources.CommandBuffer }

func (f *Frame) boundSet(set uint32) *boundSet {
	for len(f.boundSets) <= int(set) {
		f.boundSets = append(f.boundSets, boundSet{})
	}
	return &f.boundSets[set]
}

// invalidateSetsAbove forgets every bound set past the compatible prefix.
func (f *Frame) invalidateSetsAbove(compatible int) {
	for s := compatible + 1; s < len(f.boundSets); s++ {
		f.boundSets[s] = boundSet{signature: f.boundSets[s].signature[:0]}
	}
}

// dropFramebuffers destroys the framebuffers of the given size.
func (f *Frame) dropFramebuffers(dev Device, size vk.Extent2D) {
	for k, fb := range f.Framebuffers {
		if k.size == size {
			dev.DestroyFramebuffer(fb.Handle)
			delete(f.Framebuffers, k)
		}
	}
}

func (f *Frame) destroy(dev Device) {
	for _, fb := range f.Framebuffers {
		dev.DestroyFramebuffer(fb.Handle)
	}
	f.Framebuffers = nil
	dev.DestroyFrameResources(f.Resources)
	f.Resources = FrameResources{}
}
