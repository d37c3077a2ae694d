package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
)

// VulkanBuffer is a persistently mapped, host-coherent buffer.
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
	Usage  BufferUsage
	mapped unsafe.Pointer
}

var bufferUsageFlags = map[BufferUsage]vk.BufferUsageFlagBits{
	BufferVertex:  vk.BufferUsageVertexBufferBit,
	BufferIndex:   vk.BufferUsageIndexBufferBit,
	BufferUniform: vk.BufferUsageUniformBufferBit,
}

func (d *VulkanDriver) CreateBuffer(usage BufferUsage, size uint64) (containers.Handle, error) {
	flags, ok := bufferUsageFlags[usage]
	if !ok {
		return containers.NullHandle, errors.Newf("unknown buffer usage %d", usage)
	}
	if size == 0 {
		return containers.NullHandle, errors.New("zero sized buffer")
	}
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(flags),
		SharingMode: vk.SharingModeExclusive,
	}
	buf := &VulkanBuffer{Size: size, Usage: usage}
	if res := vk.CreateBuffer(d.device(), &bufferInfo, d.context.Allocator, &buf.Handle); res != vk.Success {
		return containers.NullHandle, vkError(res, "vkCreateBuffer")
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device(), buf.Handle, &reqs)
	memory, err := d.context.allocateMemory(reqs,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		vk.DestroyBuffer(d.device(), buf.Handle, d.context.Allocator)
		return containers.NullHandle, errors.Wrap(err, "allocating buffer memory")
	}
	buf.Memory = memory
	if res := vk.BindBufferMemory(d.device(), buf.Handle, memory, 0); res != vk.Success {
		d.releaseBuffer(buf)
		return containers.NullHandle, vkError(res, "vkBindBufferMemory")
	}
	if res := vk.MapMemory(d.device(), memory, 0, vk.DeviceSize(size), 0, &buf.mapped); res != vk.Success {
		d.releaseBuffer(buf)
		return containers.NullHandle, vkError(res, "vkMapMemory")
	}
	return d.buffers.Insert(buf), nil
}

// UpdateBuffer copies data into the mapped memory at offset.
func (d *VulkanDriver) UpdateBuffer(h containers.Handle, offset uint64, data []byte) error {
	buf, ok := d.buffers.Get(h)
	if !ok {
		return errors.Newf("unknown buffer %v", h)
	}
	if offset+uint64(len(data)) > buf.Size {
		return errors.Newf("buffer write of %d bytes at %d overflows size %d", len(data), offset, buf.Size)
	}
	if len(data) == 0 {
		return nil
	}
	vk.Memcopy(unsafe.Add(buf.mapped, offset), data)
	return nil
}

func (d *VulkanDriver) DestroyBuffer(h containers.Handle) {
	if buf, ok := d.buffers.Remove(h); ok {
		d.releaseBuffer(buf)
	}
}

func (d *VulkanDriver) releaseBuffer(buf *VulkanBuffer) {
	if buf.mapped != nil {
		vk.UnmapMemory(d.device(), buf.Memory)
		buf.mapped = nil
	}
	if buf.Handle != nil {
		vk.DestroyBuffer(d.device(), buf.Handle, d.context.Allocator)
		buf.Handle = nil
	}
	if buf.Memory != nil {
		vk.FreeMemory(d.device(), buf.Memory, d.context.Allocator)
		buf.Memory = nil
	}
}
