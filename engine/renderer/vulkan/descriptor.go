package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
	"github.com/spaghettifunk/kestrel/engine/core"
)

// VulkanDescriptorPool remembers the sets allocated from it so destroying
// the pool also retires their handles.
type VulkanDescriptorPool struct {
	Handle vk.DescriptorPool
	Sets   []containers.Handle
}

func (d *VulkanDriver) CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (containers.Handle, error) {
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.device(), &layoutInfo, d.context.Allocator, &layout); res != vk.Success {
		return containers.NullHandle, vkError(res, "vkCreateDescriptorSetLayout")
	}
	return d.setLayouts.Insert(layout), nil
}

func (d *VulkanDriver) DestroyDescriptorSetLayout(h containers.Handle) {
	if layout, ok := d.setLayouts.Remove(h); ok {
		vk.DestroyDescriptorSetLayout(d.device(), layout, d.context.Allocator)
	}
}

func (d *VulkanDriver) CreateDescriptorPool(sizes []vk.DescriptorPoolSize, maxSets uint32) (containers.Handle, error) {
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.device(), &poolInfo, d.context.Allocator, &pool); res != vk.Success {
		return containers.NullHandle, vkError(res, "vkCreateDescriptorPool")
	}
	return d.descriptorPools.Insert(&VulkanDescriptorPool{Handle: pool}), nil
}

func (d *VulkanDriver) DestroyDescriptorPool(h containers.Handle) {
	pool, ok := d.descriptorPools.Remove(h)
	if !ok {
		return
	}
	for _, s := range pool.Sets {
		d.descriptorSets.Remove(s)
	}
	vk.DestroyDescriptorPool(d.device(), pool.Handle, d.context.Allocator)
}

// AllocateDescriptorSets allocates count sets of one layout in a single call.
func (d *VulkanDriver) AllocateDescriptorSets(pool, layout containers.Handle, count uint32) ([]containers.Handle, error) {
	p, ok := d.descriptorPools.Get(pool)
	if !ok {
		return nil, errors.Newf("unknown descriptor pool %v", pool)
	}
	setLayout, ok := d.setLayouts.Get(layout)
	if !ok {
		return nil, errors.Newf("unknown descriptor set layout %v", layout)
	}
	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = setLayout
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.Handle,
		DescriptorSetCount: count,
		PSetLayouts:        layouts,
	}
	native := make([]vk.DescriptorSet, count)
	if res := vk.AllocateDescriptorSets(d.device(), &allocInfo, &native[0]); res != vk.Success {
		return nil, vkError(res, "vkAllocateDescriptorSets")
	}
	sets := make([]containers.Handle, count)
	for i, s := range native {
		sets[i] = d.descriptorSets.Insert(s)
	}
	p.Sets = append(p.Sets, sets...)
	return sets, nil
}

// UpdateDescriptorSets resolves every write against the arenas and submits
// them in one call. Writes naming an unknown object are dropped.
func (d *VulkanDriver) UpdateDescriptorSets(writes []DescriptorWrite) {
	if len(writes) == 0 {
		return
	}
	native := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		set, ok := d.descriptorSets.Get(w.Set)
		if !ok {
			core.LogWarn("descriptor write to unknown set %v", w.Set)
			continue
		}
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      w.Binding,
			DstArrayElement: w.ArrayElement,
			DescriptorType:  w.Type,
		}
		switch {
		case len(w.Buffers) > 0:
			infos := make([]vk.DescriptorBufferInfo, 0, len(w.Buffers))
			for _, b := range w.Buffers {
				buf, ok := d.buffers.Get(b.Buffer)
				if !ok {
					break
				}
				infos = append(infos, vk.DescriptorBufferInfo{
					Buffer: buf.Handle,
					Offset: vk.DeviceSize(b.Offset),
					Range:  vk.DeviceSize(b.Range),
				})
			}
			if len(infos) != len(w.Buffers) {
				continue
			}
			write.DescriptorCount = uint32(len(infos))
			write.PBufferInfo = infos
		case len(w.Images) > 0:
			infos := make([]vk.DescriptorImageInfo, 0, len(w.Images))
			for _, im := range w.Images {
				img, ok := d.images.Get(im.View)
				if !ok {
					break
				}
				info := vk.DescriptorImageInfo{ImageView: img.View, ImageLayout: im.Layout}
				if sampler, ok := d.samplers.Get(im.Sampler); ok {
					info.Sampler = sampler
				}
				infos = append(infos, info)
			}
			if len(infos) != len(w.Images) {
				continue
			}
			write.DescriptorCount = uint32(len(infos))
			write.PImageInfo = infos
		default:
			continue
		}
		native = append(native, write)
	}
	if len(native) > 0 {
		vk.UpdateDescriptorSets(d.device(), uint32(len(native)), native, 0, nil)
	}
}
