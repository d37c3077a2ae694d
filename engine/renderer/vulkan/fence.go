package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
	"github.com/spaghettifunk/kestrel/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func (d *VulkanDriver) newFence(createSignaled bool) (containers.Handle, error) {
	fence := &VulkanFence{
		IsSignaled: createSignaled,
	}
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var pFence vk.Fence
	if res := vk.CreateFence(d.device(), &fenceCreateInfo, d.context.Allocator, &pFence); res != vk.Success {
		return containers.NullHandle, vkError(res, "vkCreateFence")
	}
	fence.Handle = pFence
	return d.fences.Insert(fence), nil
}

func (d *VulkanDriver) destroyFence(h containers.Handle) {
	fence, ok := d.fences.Remove(h)
	if !ok {
		return
	}
	if fence.Handle != nil {
		vk.DestroyFence(d.device(), fence.Handle, d.context.Allocator)
	}
}

// WaitForFence blocks until the fence signals. A fence the driver already saw
// signaled returns immediately.
func (d *VulkanDriver) WaitForFence(h containers.Handle, timeoutNs uint64) error {
	fence, ok := d.fences.Get(h)
	if !ok {
		return errors.Newf("unknown fence %v", h)
	}
	if fence.IsSignaled {
		return nil
	}
	switch res := vk.WaitForFences(d.device(), 1, []vk.Fence{fence.Handle}, vk.True, timeoutNs); res {
	case vk.Success:
		fence.IsSignaled = true
		return nil
	case vk.Timeout:
		return errors.Wrapf(core.ErrFenceTimeout, "waited %dns", timeoutNs)
	default:
		return vkError(res, "vkWaitForFences")
	}
}

func (d *VulkanDriver) ResetFence(h containers.Handle) error {
	fence, ok := d.fences.Get(h)
	if !ok {
		return errors.Newf("unknown fence %v", h)
	}
	if !fence.IsSignaled {
		return nil
	}
	if res := vk.ResetFences(d.device(), 1, []vk.Fence{fence.Handle}); res != vk.Success {
		return vkError(res, "vkResetFences")
	}
	fence.IsSignaled = false
	return nil
}

func (d *VulkanDriver) CreateSemaphore() (containers.Handle, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(d.device(), &info, d.context.Allocator, &semaphore); res != vk.Success {
		return containers.NullHandle, vkError(res, "vkCreateSemaphore")
	}
	return d.semaphores.Insert(semaphore), nil
}

func (d *VulkanDriver) DestroySemaphore(h containers.Handle) {
	if semaphore, ok := d.semaphores.Remove(h); ok {
		vk.DestroySemaphore(d.device(), semaphore, d.context.Allocator)
	}
}

func (d *VulkanDriver) newCommandPool(flags vk.CommandPoolCreateFlagBits) (containers.Handle, error) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(flags),
		QueueFamilyIndex: d.context.Device.GraphicsQueueIndex,
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(d.device(), &info, d.context.Allocator, &pool); res != vk.Success {
		return containers.NullHandle, vkError(res, "vkCreateCommandPool")
	}
	return d.commandPools.Insert(pool), nil
}

func (d *VulkanDriver) destroyCommandPool(h containers.Handle) {
	pool, ok := d.commandPools.Remove(h)
	if !ok {
		return
	}
	// buffers allocated from the pool die with it
	d.commandBuffers.Each(func(cb containers.Handle, buf *VulkanCommandBuffer) bool {
		if buf.Pool == h {
			d.commandBuffers.Remove(cb)
		}
		return true
	})
	vk.DestroyCommandPool(d.device(), pool, d.context.Allocator)
}

// ResetCommandPool recycles every command buffer of the pool at once.
func (d *VulkanDriver) ResetCommandPool(h containers.Handle) error {
	pool, ok := d.commandPools.Get(h)
	if !ok {
		return errors.Newf("unknown command pool %v", h)
	}
	if res := vk.ResetCommandPool(d.device(), pool, 0); res != vk.Success {
		return vkError(res, "vkResetCommandPool")
	}
	d.commandBuffers.Each(func(_ containers.Handle, buf *VulkanCommandBuffer) bool {
		if buf.Pool == h {
			buf.Reset()
		}
		return true
	})
	return nil
}

// CreateFrameResources builds the objects one frame slot owns. The fence
// starts signaled so the first wait on a fresh slot does not block.
func (d *VulkanDriver) CreateFrameResources() (FrameResources, error) {
	var res FrameResources
	var err error
	if res.CommandPool, err = d.newCommandPool(vk.CommandPoolCreateTransientBit); err != nil {
		return res, err
	}
	if res.CommandBuffer, err = d.allocateCommandBuffer(res.CommandPool, true); err != nil {
		d.DestroyFrameResources(res)
		return FrameResources{}, err
	}
	if res.Fence, err = d.newFence(true); err != nil {
		d.DestroyFrameResources(res)
		return FrameResources{}, err
	}
	if res.RenderComplete, err = d.CreateSemaphore(); err != nil {
		d.DestroyFrameResources(res)
		return FrameResources{}, err
	}
	return res, nil
}

func (d *VulkanDriver) DestroyFrameResources(res FrameResources) {
	d.DestroySemaphore(res.RenderComplete)
	d.destroyFence(res.Fence)
	d.destroyCommandPool(res.CommandPool)
}
