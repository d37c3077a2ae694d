package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
)

// Window is the part of the surface provider the core needs after the native
// surface exists: the drawable size, compared against the swapchain extent to
// detect resizes.
type Window interface {
	DrawableSize() (width, height int)
}

type SurfaceCapabilities struct {
	MinImageCount  uint32
	MaxImageCount  uint32
	CurrentExtent  vk.Extent2D
	MinImageExtent vk.Extent2D
	MaxImageExtent vk.Extent2D
}

type DeviceLimits struct {
	MinUniformBufferOffsetAlignment uint64
	MaxBoundDescriptorSets          uint32
	// MaxFramesInFlight bounds the frame slots, one per swapchain image.
	MaxFramesInFlight uint32
}

type SwapchainDesc struct {
	Format      vk.SurfaceFormat
	Extent      vk.Extent2D
	PresentMode vk.PresentMode
	ImageCount  uint32
}

// AttachmentDesc describes a size-dependent render attachment. The driver
// transitions the new image to Layout once so load passes never see an
// undefined layout.
type AttachmentDesc struct {
	Format  vk.Format
	Width   uint32
	Height  uint32
	Samples vk.SampleCountFlagBits
	Depth   bool
	Layout  vk.ImageLayout
}

type SubpassDesc struct {
	Colors   []vk.AttachmentReference
	Depth    *vk.AttachmentReference
	Inputs   []vk.AttachmentReference
	Preserve []uint32
}

type RenderPassDesc struct {
	Attachments  []vk.AttachmentDescription
	Subpasses    []SubpassDesc
	Dependencies []vk.SubpassDependency
}

type FramebufferDesc struct {
	RenderPass  containers.Handle
	Attachments []containers.Handle
	Width       uint32
	Height      uint32
}

type BufferRange struct {
	Buffer containers.Handle
	Offset uint64
	Range  uint64
}

type ImageSampler struct {
	View    containers.Handle
	Sampler containers.Handle
	Layout  vk.ImageLayout
}

// DescriptorWrite updates Count consecutive array elements of one binding
// from either Buffers or Images, depending on Type.
type DescriptorWrite struct {
	Set          containers.Handle
	Binding      uint32
	ArrayElement uint32
	Type         vk.DescriptorType
	Buffers      []BufferRange
	Images       []ImageSampler
}

type ShaderStageDesc struct {
	Stage vk.ShaderStageFlagBits
	Code  []uint32
	Entry string
}

// PipelineDesc carries the sub-state structs assembled by PipelineBuilder. The
// driver fills in pointers and counts when it creates the native pipeline.
type PipelineDesc struct {
	Stages                []ShaderStageDesc
	VertexBindings        []vk.VertexInputBindingDescription
	VertexAttributes      []vk.VertexInputAttributeDescription
	InputAssembly         vk.PipelineInputAssemblyStateCreateInfo
	Rasterization         vk.PipelineRasterizationStateCreateInfo
	Multisample           vk.PipelineMultisampleStateCreateInfo
	DepthStencil          vk.PipelineDepthStencilStateCreateInfo
	ColorBlendAttachments []vk.PipelineColorBlendAttachmentState
	ColorBlend            vk.PipelineColorBlendStateCreateInfo
	DynamicStates         []vk.DynamicState
	Layout                containers.Handle
	RenderPass            containers.Handle
	Subpass               uint32
}

// FrameResources are the objects a frame slot owns exclusively.
type FrameResources struct {
	CommandPool    containers.Handle
	CommandBuffer  containers.Handle
	Fence          containers.Handle
	RenderComplete containers.Handle
}

// Device creates and destroys native objects and talks to the queue.
type Device interface {
	Limits() DeviceLimits
	WaitIdle()

	SurfaceCapabilities() (SurfaceCapabilities, error)
	SurfaceFormats() ([]vk.SurfaceFormat, error)
	PresentModes() ([]vk.PresentMode, error)
	SupportsDepthFormat(format vk.Format) bool
	// CreateSwapchain builds a swapchain, retiring old when it is not null.
	// On error old stays valid and owned by the caller.
	CreateSwapchain(desc SwapchainDesc, old containers.Handle) (containers.Handle, error)
	SwapchainImageViews(swapchain containers.Handle) []containers.Handle
	DestroySwapchain(swapchain containers.Handle)

	CreateAttachment(desc AttachmentDesc) (containers.Handle, error)
	DestroyAttachment(view containers.Handle)
	CreateRenderPass(desc *RenderPassDesc) (containers.Handle, error)
	DestroyRenderPass(pass containers.Handle)
	CreateFramebuffer(desc FramebufferDesc) (containers.Handle, error)
	DestroyFramebuffer(fb containers.Handle)

	CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (containers.Handle, error)
	DestroyDescriptorSetLayout(layout containers.Handle)
	CreateDescriptorPool(sizes []vk.DescriptorPoolSize, maxSets uint32) (containers.Handle, error)
	// DestroyDescriptorPool also releases every set allocated from the pool.
	DestroyDescriptorPool(pool containers.Handle)
	AllocateDescriptorSets(pool, layout containers.Handle, count uint32) ([]containers.Handle, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreatePipelineLayout(setLayouts []containers.Handle) (containers.Handle, error)
	DestroyPipelineLayout(layout containers.Handle)
	CreateGraphicsPipeline(desc *PipelineDesc) (containers.Handle, error)
	DestroyPipeline(pipeline containers.Handle)

	CreateFrameResources() (FrameResources, error)
	DestroyFrameResources(res FrameResources)
	CreateSemaphore() (containers.Handle, error)
	DestroySemaphore(semaphore containers.Handle)
	WaitForFence(fence containers.Handle, timeoutNs uint64) error
	ResetFence(fence containers.Handle) error
	ResetCommandPool(pool containers.Handle) error
	AcquireNextImage(swapchain, semaphore containers.Handle, timeoutNs uint64) (uint32, vk.Result)
	Submit(cmd, wait, signal, fence containers.Handle) error
	Present(swapchain containers.Handle, imageIndex uint32, wait containers.Handle) vk.Result
}

// CommandRecorder records into a command buffer.
type CommandRecorder interface {
	BeginCommandBuffer(cmd containers.Handle) error
	EndCommandBuffer(cmd containers.Handle) error
	CmdBeginRenderPass(cmd, pass, framebuffer containers.Handle, area vk.Rect2D, clearValues []vk.ClearValue)
	CmdNextSubpass(cmd containers.Handle)
	CmdEndRenderPass(cmd containers.Handle)
	CmdBindPipeline(cmd, pipeline containers.Handle)
	CmdBindDescriptorSets(cmd, layout containers.Handle, firstSet uint32, sets []containers.Handle, dynamicOffsets []uint32)
	CmdBindVertexBuffers(cmd containers.Handle, firstBinding uint32, buffers []containers.Handle, offsets []uint64)
	CmdBindIndexBuffer(cmd, buffer containers.Handle, indexType vk.IndexType)
	CmdSetViewport(cmd containers.Handle, viewport vk.Viewport)
	CmdSetScissor(cmd containers.Handle, scissor vk.Rect2D)
	CmdDraw(cmd containers.Handle, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(cmd containers.Handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}

type BufferUsage int

const (
	BufferVertex BufferUsage = iota
	BufferIndex
	BufferUniform
)

// ResourceFactory creates the host-visible buffers and samplers that back
// the vertex, index, constant buffer and texture objects handed to Graphics.
type ResourceFactory interface {
	CreateBuffer(usage BufferUsage, size uint64) (containers.Handle, error)
	UpdateBuffer(buffer containers.Handle, offset uint64, data []byte) error
	DestroyBuffer(buffer containers.Handle)
	CreateSampler(linear bool) (containers.Handle, error)
	DestroySampler(sampler containers.Handle)
	// Limits gives the uniform buffer alignment that dynamic offsets are padded to.
	Limits() DeviceLimits
}

// Driver is the single native backend behind GraphicsImpl.
type Driver interface {
	Device
	CommandRecorder
	ResourceFactory
	Destroy()
}
