package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
)

// VulkanSwapchain owns the presentable images; their views live in the
// image arena so framebuffers can reference them like any attachment.
type VulkanSwapchain struct {
	Handle vk.Swapchain
	Images []vk.Image
	Views  []containers.Handle
	Format vk.SurfaceFormat
}

// CreateSwapchain builds a swapchain from desc. When old is a live swapchain
// it is passed as the retired chain but not destroyed.
func (d *VulkanDriver) CreateSwapchain(desc SwapchainDesc, old containers.Handle) (containers.Handle, error) {
	caps, err := d.surfaceCapabilities()
	if err != nil {
		return containers.NullHandle, err
	}
	dev := d.context.Device

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.context.Surface,
		MinImageCount:    desc.ImageCount,
		ImageFormat:      desc.Format.Format,
		ImageColorSpace:  desc.Format.ColorSpace,
		ImageExtent:      desc.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   chooseCompositeAlpha(caps.SupportedCompositeAlpha),
		PresentMode:      desc.PresentMode,
		Clipped:          vk.True,
	}
	if dev.GraphicsQueueIndex != dev.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{dev.GraphicsQueueIndex, dev.PresentQueueIndex}
	}
	if prev, ok := d.swapchains.Get(old); ok {
		swapchainCreateInfo.OldSwapchain = prev.Handle
	}

	sc := &VulkanSwapchain{Format: desc.Format}
	err = d.locks.SafeCall(SwapchainManagement, func() error {
		if res := vk.CreateSwapchain(d.device(), &swapchainCreateInfo, d.context.Allocator, &sc.Handle); res != vk.Success {
			return vkError(res, "vkCreateSwapchainKHR")
		}
		return nil
	})
	if err != nil {
		return containers.NullHandle, err
	}

	var imageCount uint32
	if res := vk.GetSwapchainImages(d.device(), sc.Handle, &imageCount, nil); res != vk.Success {
		d.releaseSwapchain(sc)
		return containers.NullHandle, vkError(res, "vkGetSwapchainImagesKHR")
	}
	sc.Images = make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(d.device(), sc.Handle, &imageCount, sc.Images); res != vk.Success {
		d.releaseSwapchain(sc)
		return containers.NullHandle, vkError(res, "vkGetSwapchainImagesKHR")
	}

	for i, image := range sc.Images {
		view, err := d.createImageView(image, desc.Format.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			d.releaseSwapchain(sc)
			return containers.NullHandle, errors.Wrapf(err, "swapchain image view %d", i)
		}
		sc.Views = append(sc.Views, d.images.Insert(&VulkanImage{
			Handle: image,
			View:   view,
			Format: desc.Format.Format,
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
		}))
	}
	return d.swapchains.Insert(sc), nil
}

func chooseCompositeAlpha(supported vk.CompositeAlphaFlags) vk.CompositeAlphaFlagBits {
	for _, bit := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaInheritBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
	} {
		if supported&vk.CompositeAlphaFlags(bit) != 0 {
			return bit
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

func (d *VulkanDriver) SwapchainImageViews(h containers.Handle) []containers.Handle {
	sc, ok := d.swapchains.Get(h)
	if !ok {
		return nil
	}
	return append([]containers.Handle(nil), sc.Views...)
}

func (d *VulkanDriver) DestroySwapchain(h containers.Handle) {
	if sc, ok := d.swapchains.Remove(h); ok {
		d.releaseSwapchain(sc)
	}
}

func (d *VulkanDriver) releaseSwapchain(sc *VulkanSwapchain) {
	for _, v := range sc.Views {
		d.DestroyAttachment(v)
	}
	sc.Views = nil
	if sc.Handle != vk.NullSwapchain {
		_ = d.locks.SafeCall(SwapchainManagement, func() error {
			vk.DestroySwapchain(d.device(), sc.Handle, d.context.Allocator)
			return nil
		})
		sc.Handle = vk.NullSwapchain
	}
}

// AcquireNextImage returns the raw result so the caller can tell out-of-date
// and suboptimal chains apart from hard failures.
func (d *VulkanDriver) AcquireNextImage(swapchain, semaphore containers.Handle, timeoutNs uint64) (uint32, vk.Result) {
	sc, ok := d.swapchains.Get(swapchain)
	if !ok {
		return 0, vk.ErrorOutOfDate
	}
	sem, ok := d.semaphores.Get(semaphore)
	if !ok {
		return 0, vk.ErrorUnknown
	}
	var index uint32
	res := vk.AcquireNextImage(d.device(), sc.Handle, timeoutNs, sem, vk.NullFence, &index)
	return index, res
}

// Submit queues cmd on the graphics queue. The fence is considered unsignaled
// from here until a wait observes it.
func (d *VulkanDriver) Submit(cmd, wait, signal, fence containers.Handle) error {
	cb := d.cmd(cmd)
	if cb == nil {
		return errors.Newf("unknown command buffer %v", cmd)
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.Handle},
	}
	if sem, ok := d.semaphores.Get(wait); ok {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{sem}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	}
	if sem, ok := d.semaphores.Get(signal); ok {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{sem}
	}
	nativeFence := vk.NullFence
	f, hasFence := d.fences.Get(fence)
	if hasFence {
		nativeFence = f.Handle
	}

	dev := d.context.Device
	err := d.locks.SafeQueueCall(dev.GraphicsQueueIndex, func() error {
		if res := vk.QueueSubmit(dev.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, nativeFence); res != vk.Success {
			return vkError(res, "vkQueueSubmit")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if hasFence {
		f.IsSignaled = false
	}
	cb.State = CommandBufferStateSubmitted
	return nil
}

func (d *VulkanDriver) Present(swapchain containers.Handle, imageIndex uint32, wait containers.Handle) vk.Result {
	sc, ok := d.swapchains.Get(swapchain)
	if !ok {
		return vk.ErrorOutOfDate
	}
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc.Handle},
		PImageIndices:  []uint32{imageIndex},
	}
	if sem, ok := d.semaphores.Get(wait); ok {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{sem}
	}
	dev := d.context.Device
	var res vk.Result
	_ = d.locks.SafeQueueCall(dev.PresentQueueIndex, func() error {
		res = vk.QueuePresent(dev.PresentQueue, &presentInfo)
		return nil
	})
	return res
}
