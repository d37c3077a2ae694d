package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
	"github.com/spaghettifunk/kestrel/engine/core"
)

// VulkanDriver implements Driver on top of goki/vulkan. Native objects live
// in arenas and are handed out as containers.Handle.
type VulkanDriver struct {
	context *VulkanContext
	locks   *VulkanLockPool

	swapchains      *containers.Arena[*VulkanSwapchain]
	images          *containers.Arena[*VulkanImage]
	samplers        *containers.Arena[vk.Sampler]
	buffers         *containers.Arena[*VulkanBuffer]
	renderPasses    *containers.Arena[vk.RenderPass]
	framebuffers    *containers.Arena[vk.Framebuffer]
	setLayouts      *containers.Arena[vk.DescriptorSetLayout]
	descriptorPools *containers.Arena[*VulkanDescriptorPool]
	descriptorSets  *containers.Arena[vk.DescriptorSet]
	pipelineLayouts *containers.Arena[vk.PipelineLayout]
	pipelines       *containers.Arena[vk.Pipeline]
	commandPools    *containers.Arena[vk.CommandPool]
	commandBuffers  *containers.Arena[*VulkanCommandBuffer]
	fences          *containers.Arena[*VulkanFence]
	semaphores      *containers.Arena[vk.Semaphore]
}

var _ Driver = (*VulkanDriver)(nil)

// NewVulkanDriver loads Vulkan through the window's loader and creates the
// instance, surface and logical device.
func NewVulkanDriver(p SurfaceProvider, appName string, validation bool) (*VulkanDriver, error) {
	procAddr := p.InstanceProcAddr()
	if procAddr == nil {
		return nil, errors.New("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "initializing vulkan loader")
	}

	d := &VulkanDriver{
		context:         &VulkanContext{Device: &VulkanDevice{}},
		locks:           NewVulkanLockPool(),
		swapchains:      containers.NewArena[*VulkanSwapchain](2),
		images:          containers.NewArena[*VulkanImage](16),
		samplers:        containers.NewArena[vk.Sampler](8),
		buffers:         containers.NewArena[*VulkanBuffer](16),
		renderPasses:    containers.NewArena[vk.RenderPass](8),
		framebuffers:    containers.NewArena[vk.Framebuffer](16),
		setLayouts:      containers.NewArena[vk.DescriptorSetLayout](16),
		descriptorPools: containers.NewArena[*VulkanDescriptorPool](16),
		descriptorSets:  containers.NewArena[vk.DescriptorSet](256),
		pipelineLayouts: containers.NewArena[vk.PipelineLayout](16),
		pipelines:       containers.NewArena[vk.Pipeline](32),
		commandPools:    containers.NewArena[vk.CommandPool](4),
		commandBuffers:  containers.NewArena[*VulkanCommandBuffer](4),
		fences:          containers.NewArena[*VulkanFence](4),
		semaphores:      containers.NewArena[vk.Semaphore](8),
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"instance", func() error { return d.context.createInstance(appName, p.RequiredInstanceExtensions(), validation) }},
		{"surface", func() error { return d.context.createSurface(p) }},
		{"physical device", d.context.selectPhysicalDevice},
		{"logical device", d.context.createLogicalDevice},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			d.context.destroy()
			return nil, errors.Wrapf(err, "creating %s", step.name)
		}
	}
	core.LogInfo("Vulkan driver initialized successfully.")
	return d, nil
}

func (d *VulkanDriver) device() vk.Device { return d.context.Device.LogicalDevice }

// fallbackFramesInFlight is used when the surface reports no image count limit.
const fallbackFramesInFlight = 4

func (d *VulkanDriver) Limits() DeviceLimits {
	limits := d.context.Device.Properties.Limits
	frames := uint32(fallbackFramesInFlight)
	if caps, err := d.surfaceCapabilities(); err == nil && caps.MaxImageCount > 0 {
		frames = caps.MaxImageCount
	}
	return DeviceLimits{
		MinUniformBufferOffsetAlignment: uint64(limits.MinUniformBufferOffsetAlignment),
		MaxBoundDescriptorSets:          limits.MaxBoundDescriptorSets,
		MaxFramesInFlight:               frames,
	}
}

func (d *VulkanDriver) WaitIdle() {
	_ = d.locks.SafeQueueCall(d.context.Device.GraphicsQueueIndex, func() error {
		if res := vk.DeviceWaitIdle(d.device()); res != vk.Success {
			core.LogWarn("vkDeviceWaitIdle failed with %s", VulkanResultString(res))
		}
		return nil
	})
}

// Destroy releases every object still owned by the driver, then the device.
func (d *VulkanDriver) Destroy() {
	if d.context.Device.LogicalDevice == nil {
		return
	}
	d.WaitIdle()

	d.pipelines.Each(func(h containers.Handle, _ vk.Pipeline) bool { d.DestroyPipeline(h); return true })
	d.pipelineLayouts.Each(func(h containers.Handle, _ vk.PipelineLayout) bool { d.DestroyPipelineLayout(h); return true })
	d.descriptorPools.Each(func(h containers.Handle, _ *VulkanDescriptorPool) bool { d.DestroyDescriptorPool(h); return true })
	d.setLayouts.Each(func(h containers.Handle, _ vk.DescriptorSetLayout) bool { d.DestroyDescriptorSetLayout(h); return true })
	d.framebuffers.Each(func(h containers.Handle, _ vk.Framebuffer) bool { d.DestroyFramebuffer(h); return true })
	d.renderPasses.Each(func(h containers.Handle, _ vk.RenderPass) bool { d.DestroyRenderPass(h); return true })
	d.swapchains.Each(func(h containers.Handle, _ *VulkanSwapchain) bool { d.DestroySwapchain(h); return true })
	d.images.Each(func(h containers.Handle, _ *VulkanImage) bool { d.DestroyAttachment(h); return true })
	d.samplers.Each(func(h containers.Handle, _ vk.Sampler) bool { d.DestroySampler(h); return true })
	d.buffers.Each(func(h containers.Handle, _ *VulkanBuffer) bool { d.DestroyBuffer(h); return true })
	d.semaphores.Each(func(h containers.Handle, _ vk.Semaphore) bool { d.DestroySemaphore(h); return true })
	d.fences.Each(func(h containers.Handle, f *VulkanFence) bool { d.destroyFence(h); return true })
	d.commandPools.Each(func(h containers.Handle, _ vk.CommandPool) bool { d.destroyCommandPool(h); return true })

	d.context.destroy()
	core.LogInfo("Vulkan driver destroyed.")
}

func (d *VulkanDriver) SurfaceCapabilities() (SurfaceCapabilities, error) {
	caps, err := d.surfaceCapabilities()
	if err != nil {
		return SurfaceCapabilities{}, err
	}
	return SurfaceCapabilities{
		MinImageCount:  caps.MinImageCount,
		MaxImageCount:  caps.MaxImageCount,
		CurrentExtent:  caps.CurrentExtent,
		MinImageExtent: caps.MinImageExtent,
		MaxImageExtent: caps.MaxImageExtent,
	}, nil
}

func (d *VulkanDriver) surfaceCapabilities() (vk.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(d.context.Device.PhysicalDevice, d.context.Surface, &caps); res != vk.Success {
		return caps, vkError(res, "vkGetPhysicalDeviceSurfaceCapabilitiesKHR")
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return caps, nil
}

func (d *VulkanDriver) SurfaceFormats() ([]vk.SurfaceFormat, error) {
	gpu, surface := d.context.Device.PhysicalDevice, d.context.Surface
	var count uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, nil); res != vk.Success {
		return nil, vkError(res, "vkGetPhysicalDeviceSurfaceFormatsKHR")
	}
	formats := make([]vk.SurfaceFormat, count)
	if count > 0 {
		if res := vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, formats); res != vk.Success {
			return nil, vkError(res, "vkGetPhysicalDeviceSurfaceFormatsKHR")
		}
	}
	for i := range formats {
		formats[i].Deref()
	}
	return formats, nil
}

func (d *VulkanDriver) PresentModes() ([]vk.PresentMode, error) {
	gpu, surface := d.context.Device.PhysicalDevice, d.context.Surface
	var count uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, nil); res != vk.Success {
		return nil, vkError(res, "vkGetPhysicalDeviceSurfacePresentModesKHR")
	}
	modes := make([]vk.PresentMode, count)
	if count > 0 {
		if res := vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, modes); res != vk.Success {
			return nil, vkError(res, "vkGetPhysicalDeviceSurfacePresentModesKHR")
		}
	}
	return modes, nil
}

// SupportsDepthFormat reports whether format can be an optimally tiled
// depth/stencil attachment.
func (d *VulkanDriver) SupportsDepthFormat(format vk.Format) bool {
	var properties vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(d.context.Device.PhysicalDevice, format, &properties)
	properties.Deref()
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	return properties.OptimalTilingFeatures&flags == flags
}
