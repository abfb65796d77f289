package vulkan

import (
	"errors"
	"fmt"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framer/engine/core"
	"github.com/spaghettifunk/framer/engine/renderer"
)

// VulkanSwapchain is the presentation engine's chain of images. It owns the
// color views of its images; everything else built on top of them belongs to
// renderer.SwapChain.
type VulkanSwapchain struct {
	backend *Backend
	Handle  vk.Swapchain
	Format  vk.SurfaceFormat
	Extent  vk.Extent2D
	Images  []vk.Image
	Views   []*VulkanImageView
}

var _ renderer.NativeSwapchain = (*VulkanSwapchain)(nil)

func querySurfaceSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface) (renderer.SurfaceSupport, error) {
	var support renderer.SurfaceSupport

	var capabilities vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &capabilities); res != vk.Success {
		return support, resultError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res)
	}
	capabilities.Deref()
	support.Capabilities = renderer.SurfaceCapabilities{
		MinImageCount:  capabilities.MinImageCount,
		MaxImageCount:  capabilities.MaxImageCount,
		CurrentExtent:  fromExtent2D(capabilities.CurrentExtent),
		MinImageExtent: fromExtent2D(capabilities.MinImageExtent),
		MaxImageExtent: fromExtent2D(capabilities.MaxImageExtent),
	}

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return support, resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
	}
	if formatCount != 0 {
		formats := make([]vk.SurfaceFormat, formatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, formats); res != vk.Success {
			return support, resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
		}
		for i := range formats[:formatCount] {
			formats[i].Deref()
			support.Formats = append(support.Formats, renderer.SurfaceFormat{
				Format:     renderer.Format(formats[i].Format),
				ColorSpace: renderer.ColorSpace(formats[i].ColorSpace),
			})
		}
	}

	var presentModeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, nil); res != vk.Success {
		return support, resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
	}
	if presentModeCount != 0 {
		modes := make([]vk.PresentMode, presentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, modes); res != vk.Success {
			return support, resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
		}
		for _, mode := range modes[:presentModeCount] {
			support.PresentModes = append(support.PresentModes, renderer.PresentMode(mode))
		}
	}
	return support, nil
}

func (b *Backend) CreateSwapchain(desc renderer.SwapchainDesc, old renderer.NativeSwapchain) (renderer.NativeSwapchain, error) {
	device := b.context.Device

	// The transform must come from the surface as it is now.
	var capabilities vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(device.PhysicalDevice, b.context.Surface, &capabilities); res != vk.Success {
		return nil, resultError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res)
	}
	capabilities.Deref()

	swapchain := &VulkanSwapchain{
		backend: b,
		Format: vk.SurfaceFormat{
			Format:     vk.Format(desc.Format.Format),
			ColorSpace: vk.ColorSpace(desc.Format.ColorSpace),
		},
		Extent: toExtent2D(desc.Extent),
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          b.context.Surface,
		MinImageCount:    desc.ImageCount,
		ImageFormat:      swapchain.Format.Format,
		ImageColorSpace:  swapchain.Format.ColorSpace,
		ImageExtent:      swapchain.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentMode(desc.PresentMode),
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(device.GraphicsQueueIndex),
			uint32(device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	// Hand the retired chain over so in-flight presents can complete.
	if previous, ok := old.(*VulkanSwapchain); ok && previous != nil {
		swapchainCreateInfo.OldSwapchain = previous.Handle
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(device.LogicalDevice, &swapchainCreateInfo, b.context.Allocator, &handle); res != vk.Success {
		err := resultError("vkCreateSwapchainKHR", res)
		core.LogError(err.Error())
		return nil, err
	}
	swapchain.Handle = handle

	var imageCount uint32
	if res := vk.GetSwapchainImages(device.LogicalDevice, handle, &imageCount, nil); res != vk.Success {
		swapchain.Destroy()
		return nil, resultError("vkGetSwapchainImagesKHR", res)
	}
	swapchain.Images = make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(device.LogicalDevice, handle, &imageCount, swapchain.Images); res != vk.Success {
		swapchain.Destroy()
		return nil, resultError("vkGetSwapchainImagesKHR", res)
	}

	for _, image := range swapchain.Images[:imageCount] {
		view, err := b.createImageView(image, swapchain.Format.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			swapchain.Destroy()
			return nil, err
		}
		swapchain.Views = append(swapchain.Views, view)
	}

	core.LogDebug("Native swapchain created with %d images.", imageCount)
	return swapchain, nil
}

func (vs *VulkanSwapchain) Images() []renderer.ImageView {
	views := make([]renderer.ImageView, len(vs.Views))
	for i, v := range vs.Views {
		views[i] = v
	}
	return views
}

func (vs *VulkanSwapchain) AcquireNextImage(timeout time.Duration, signal renderer.Semaphore) (uint32, renderer.Status, error) {
	semaphore, ok := signal.(*VulkanSemaphore)
	if !ok {
		return 0, renderer.StatusOutOfDate, fmt.Errorf("acquire: unexpected semaphore %T", signal)
	}

	var imageIndex uint32
	result := vk.AcquireNextImage(vs.backend.context.Device.LogicalDevice, vs.Handle, timeoutNanos(timeout), semaphore.Handle, vk.NullFence, &imageIndex)
	switch result {
	case vk.Success:
		return imageIndex, renderer.StatusSuccess, nil
	case vk.Suboptimal:
		return imageIndex, renderer.StatusSuboptimal, nil
	case vk.ErrorOutOfDate:
		return 0, renderer.StatusOutOfDate, nil
	case vk.Timeout, vk.NotReady:
		return 0, renderer.StatusOutOfDate, fmt.Errorf("vkAcquireNextImageKHR: %w", renderer.ErrTimeout)
	}
	err := resultError("vkAcquireNextImageKHR", result)
	core.LogError(err.Error())
	return 0, renderer.StatusOutOfDate, err
}

func (vs *VulkanSwapchain) Present(imageIndex uint32, wait renderer.Semaphore) (renderer.Status, error) {
	semaphore, ok := wait.(*VulkanSemaphore)
	if !ok {
		return renderer.StatusOutOfDate, fmt.Errorf("present: unexpected semaphore %T", wait)
	}

	// Return the image to the swapchain for presentation.
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{semaphore.Handle},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{imageIndex},
	}

	device := vs.backend.context.Device
	result := vs.backend.locks.QueueCall(uint32(device.PresentQueueIndex), func() vk.Result {
		return vk.QueuePresent(device.PresentQueue, &presentInfo)
	})

	switch result {
	case vk.Success:
		return renderer.StatusSuccess, nil
	case vk.Suboptimal:
		return renderer.StatusSuboptimal, nil
	case vk.ErrorOutOfDate:
		return renderer.StatusOutOfDate, nil
	}
	err := resultError("vkQueuePresentKHR", result)
	core.LogError(err.Error())
	return renderer.StatusOutOfDate, err
}

func (vs *VulkanSwapchain) Destroy() {
	if vs.Handle == vk.NullSwapchain && len(vs.Views) == 0 {
		return
	}
	// Only destroy the views, not the images, since those are owned by the
	// swapchain and are destroyed with it.
	for _, view := range vs.Views {
		view.Destroy()
	}
	vs.Views = nil
	vs.Images = nil

	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(vs.backend.context.Device.LogicalDevice, vs.Handle, vs.backend.context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
}
