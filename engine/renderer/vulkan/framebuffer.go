package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framer/engine/core"
	"github.com/spaghettifunk/framer/engine/renderer"
)

type VulkanFramebuffer struct {
	backend     *Backend
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	Renderpass  *VulkanRenderpass
}

func (b *Backend) CreateFramebuffer(pass renderer.RenderPass, attachments []renderer.ImageView, extent renderer.Extent) (renderer.Framebuffer, error) {
	renderpass, ok := pass.(*VulkanRenderpass)
	if !ok {
		return nil, fmt.Errorf("framebuffer: unexpected render pass %T", pass)
	}

	framebuffer := &VulkanFramebuffer{
		backend:     b,
		Attachments: make([]vk.ImageView, len(attachments)),
		Renderpass:  renderpass,
	}
	for i, a := range attachments {
		view, ok := a.(attachment)
		if !ok {
			return nil, fmt.Errorf("framebuffer: unexpected attachment %T", a)
		}
		framebuffer.Attachments[i] = view.view()
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(framebuffer.Attachments)),
		PAttachments:    framebuffer.Attachments,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}

	var handle vk.Framebuffer
	if res := vk.CreateFramebuffer(b.context.Device.LogicalDevice, &framebufferCreateInfo, b.context.Allocator, &handle); res != vk.Success {
		err := resultError("vkCreateFramebuffer", res)
		core.LogError(err.Error())
		return nil, err
	}
	framebuffer.Handle = handle
	return framebuffer, nil
}

func (vfb *VulkanFramebuffer) Destroy() {
	if vfb.Handle != vk.NullFramebuffer {
		vk.DestroyFramebuffer(vfb.backend.context.Device.LogicalDevice, vfb.Handle, vfb.backend.context.Allocator)
		vfb.Handle = vk.NullFramebuffer
	}
	vfb.Attachments = nil
	vfb.Renderpass = nil
}
