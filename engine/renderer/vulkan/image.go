package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framer/engine/core"
	"github.com/spaghettifunk/framer/engine/renderer"
)

// attachment is any image view that can be bound to a framebuffer.
type attachment interface {
	renderer.ImageView
	view() vk.ImageView
}

// VulkanImageView wraps a view onto an image owned elsewhere.
type VulkanImageView struct {
	backend *Backend
	Handle  vk.ImageView
}

func (v *VulkanImageView) view() vk.ImageView { return v.Handle }

func (v *VulkanImageView) Destroy() {
	if v.Handle != vk.NullImageView {
		vk.DestroyImageView(v.backend.context.Device.LogicalDevice, v.Handle, v.backend.context.Allocator)
		v.Handle = vk.NullImageView
	}
}

// VulkanImage is an image with its own memory and view, used for the depth
// attachments.
type VulkanImage struct {
	backend *Backend
	Handle  vk.Image
	Memory  vk.DeviceMemory
	View    *VulkanImageView
	Width   uint32
	Height  uint32
}

func (vi *VulkanImage) view() vk.ImageView {
	if vi.View == nil {
		return vk.NullImageView
	}
	return vi.View.Handle
}

func (b *Backend) CreateDepthAttachment(extent renderer.Extent, format renderer.Format) (renderer.ImageView, error) {
	return b.ImageCreate(
		extent.Width,
		extent.Height,
		vk.Format(format),
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
}

func (b *Backend) ImageCreate(width, height uint32, format vk.Format, tiling vk.ImageTiling, usage vk.ImageUsageFlags, memoryFlags vk.MemoryPropertyFlags, viewAspectFlags vk.ImageAspectFlags) (*VulkanImage, error) {
	device := b.context.Device.LogicalDevice
	image := &VulkanImage{backend: b, Width: width, Height: height}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var handle vk.Image
	if res := vk.CreateImage(device, &imageCreateInfo, b.context.Allocator, &handle); res != vk.Success {
		err := resultError("vkCreateImage", res)
		core.LogError(err.Error())
		return nil, err
	}
	image.Handle = handle

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := b.context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(memoryFlags))
	if memoryType == -1 {
		image.Destroy()
		err := fmt.Errorf("%w: required memory type not found, image not valid", renderer.ErrAllocation)
		core.LogError(err.Error())
		return nil, err
	}

	memoryAllocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(device, &memoryAllocateInfo, b.context.Allocator, &memory); res != vk.Success {
		image.Destroy()
		err := fmt.Errorf("%w: %w", renderer.ErrAllocation, resultError("vkAllocateMemory", res))
		core.LogError(err.Error())
		return nil, err
	}
	image.Memory = memory

	if res := vk.BindImageMemory(device, handle, memory, 0); res != vk.Success {
		image.Destroy()
		return nil, resultError("vkBindImageMemory", res)
	}

	view, err := b.createImageView(handle, format, viewAspectFlags)
	if err != nil {
		image.Destroy()
		return nil, err
	}
	image.View = view

	return image, nil
}

func (b *Backend) createImageView(image vk.Image, format vk.Format, aspectFlags vk.ImageAspectFlags) (*VulkanImageView, error) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectFlags,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var handle vk.ImageView
	if res := vk.CreateImageView(b.context.Device.LogicalDevice, &viewCreateInfo, b.context.Allocator, &handle); res != vk.Success {
		err := resultError("vkCreateImageView", res)
		core.LogError(err.Error())
		return nil, err
	}
	return &VulkanImageView{backend: b, Handle: handle}, nil
}

func (vi *VulkanImage) Destroy() {
	device := vi.backend.context.Device.LogicalDevice
	allocator := vi.backend.context.Allocator
	if vi.View != nil {
		vi.View.Destroy()
		vi.View = nil
	}
	if vi.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, vi.Memory, allocator)
		vi.Memory = vk.NullDeviceMemory
	}
	if vi.Handle != vk.NullImage {
		vk.DestroyImage(device, vi.Handle, allocator)
		vi.Handle = vk.NullImage
	}
}
