package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
)

// VulkanImage is a view plus, for driver-created attachments, the image and
// memory behind it. Swapchain views leave Memory nil; the swapchain owns
// their images.
type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Format vk.Format
	Width  uint32
	Height uint32
}

func (vi *VulkanImage) owned() bool { return vi.Memory != nil }

func hasStencil(format vk.Format) bool {
	switch format {
	case vk.FormatD24UnormS8Uint, vk.FormatD32SfloatS8Uint, vk.FormatD16UnormS8Uint:
		return true
	}
	return false
}

func aspectFor(format vk.Format, depth bool) vk.ImageAspectFlags {
	if !depth {
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	aspect := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	if hasStencil(format) {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return aspect
}

func (d *VulkanDriver) createImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(d.device(), &viewInfo, d.context.Allocator, &view); res != vk.Success {
		return nil, vkError(res, "vkCreateImageView")
	}
	return view, nil
}

// CreateAttachment allocates a device-local image usable as a render
// attachment and as an input attachment, then moves it to desc.Layout.
func (d *VulkanDriver) CreateAttachment(desc AttachmentDesc) (containers.Handle, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return containers.NullHandle, errors.Newf("attachment size %dx%d", desc.Width, desc.Height)
	}
	samples := desc.Samples
	if samples == 0 {
		samples = vk.SampleCount1Bit
	}
	usage := vk.ImageUsageColorAttachmentBit | vk.ImageUsageSampledBit | vk.ImageUsageInputAttachmentBit
	if desc.Depth {
		usage = vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageInputAttachmentBit
	}
	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    desc.Format,
		Extent: vk.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       samples,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	img := &VulkanImage{Format: desc.Format, Width: desc.Width, Height: desc.Height}
	if res := vk.CreateImage(d.device(), &imageInfo, d.context.Allocator, &img.Handle); res != vk.Success {
		return containers.NullHandle, vkError(res, "vkCreateImage")
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device(), img.Handle, &reqs)
	memory, err := d.context.allocateMemory(reqs, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(d.device(), img.Handle, d.context.Allocator)
		return containers.NullHandle, errors.Wrap(err, "allocating attachment memory")
	}
	img.Memory = memory
	if res := vk.BindImageMemory(d.device(), img.Handle, memory, 0); res != vk.Success {
		d.releaseImage(img)
		return containers.NullHandle, vkError(res, "vkBindImageMemory")
	}

	aspect := aspectFor(desc.Format, desc.Depth)
	if img.View, err = d.createImageView(img.Handle, desc.Format, aspect); err != nil {
		d.releaseImage(img)
		return containers.NullHandle, err
	}
	if desc.Layout != vk.ImageLayoutUndefined {
		err = d.runSingleUse(func(cmd vk.CommandBuffer) {
			transitionLayout(cmd, img.Handle, aspect, vk.ImageLayoutUndefined, desc.Layout)
		})
		if err != nil {
			d.releaseImage(img)
			return containers.NullHandle, errors.Wrap(err, "transitioning attachment")
		}
	}
	return d.images.Insert(img), nil
}

func (d *VulkanDriver) DestroyAttachment(view containers.Handle) {
	if img, ok := d.images.Remove(view); ok {
		d.releaseImage(img)
	}
}

func (d *VulkanDriver) releaseImage(img *VulkanImage) {
	if img.View != nil {
		vk.DestroyImageView(d.device(), img.View, d.context.Allocator)
		img.View = nil
	}
	if !img.owned() {
		return
	}
	if img.Handle != nil {
		vk.DestroyImage(d.device(), img.Handle, d.context.Allocator)
		img.Handle = nil
	}
	vk.FreeMemory(d.device(), img.Memory, d.context.Allocator)
	img.Memory = nil
}

// transitionLayout records a full-pipeline barrier moving image from one
// layout to another. It is only used outside render passes at creation time.
func transitionLayout(cmd vk.CommandBuffer, image vk.Image, aspect vk.ImageAspectFlags, from, to vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
		DstAccessMask: accessForLayout(to),
	}
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func accessForLayout(layout vk.ImageLayout) vk.AccessFlags {
	switch layout {
	case vk.ImageLayoutColorAttachmentOptimal:
		return vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit)
	case vk.ImageLayoutDepthStencilAttachmentOptimal:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)
	case vk.ImageLayoutDepthStencilReadOnlyOptimal:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessInputAttachmentReadBit)
	case vk.ImageLayoutShaderReadOnlyOptimal:
		return vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessInputAttachmentReadBit)
	}
	return 0
}

// CreateSampler builds a clamped sampler with linear or nearest filtering.
func (d *VulkanDriver) CreateSampler(linear bool) (containers.Handle, error) {
	filter := vk.FilterNearest
	mipmap := vk.SamplerMipmapModeNearest
	if linear {
		filter = vk.FilterLinear
		mipmap = vk.SamplerMipmapModeLinear
	}
	info := vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        filter,
		MinFilter:        filter,
		MipmapMode:       mipmap,
		AddressModeU:     vk.SamplerAddressModeClampToEdge,
		AddressModeV:     vk.SamplerAddressModeClampToEdge,
		AddressModeW:     vk.SamplerAddressModeClampToEdge,
		MaxAnisotropy:    1,
		CompareOp:        vk.CompareOpAlways,
		MaxLod:           vk.LodClampNone,
		BorderColor:      vk.BorderColorIntOpaqueBlack,
		AnisotropyEnable: vk.False,
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(d.device(), &info, d.context.Allocator, &sampler); res != vk.Success {
		return containers.NullHandle, vkError(res, "vkCreateSampler")
	}
	return d.samplers.Insert(sampler), nil
}

func (d *VulkanDriver) DestroySampler(h containers.Handle) {
	if sampler, ok := d.samplers.Remove(h); ok {
		vk.DestroySampler(d.device(), sampler, d.context.Allocator)
	}
}
