package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framer/engine/core"
	"github.com/spaghettifunk/framer/engine/renderer"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

var _ renderer.CommandBuffer = (*VulkanCommandBuffer)(nil)

func (b *Backend) AllocateCommandBuffers(n int) ([]renderer.CommandBuffer, error) {
	device := b.context.Device
	handles := make([]vk.CommandBuffer, n)

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        device.GraphicsCommandPool,
		CommandBufferCount: uint32(n),
		Level:              vk.CommandBufferLevelPrimary,
	}
	if res := vk.AllocateCommandBuffers(device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		err := resultError("vkAllocateCommandBuffers", res)
		core.LogError(err.Error())
		return nil, err
	}

	buffers := make([]renderer.CommandBuffer, n)
	for i, handle := range handles {
		buffers[i] = &VulkanCommandBuffer{Handle: handle, State: COMMAND_BUFFER_STATE_READY}
	}
	core.LogDebug("Vulkan command buffers created: %d", n)
	return buffers, nil
}

func (b *Backend) FreeCommandBuffers(buffers []renderer.CommandBuffer) {
	handles := make([]vk.CommandBuffer, 0, len(buffers))
	for _, buffer := range buffers {
		cb, ok := buffer.(*VulkanCommandBuffer)
		if !ok || cb.Handle == nil {
			continue
		}
		handles = append(handles, cb.Handle)
		cb.Handle = nil
		cb.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
	}
	if len(handles) == 0 {
		return
	}
	device := b.context.Device
	vk.FreeCommandBuffers(device.LogicalDevice, device.GraphicsCommandPool, uint32(len(handles)), handles)
}

func (v *VulkanCommandBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(v.Handle, 0); res != vk.Success {
		err := resultError("vkResetCommandBuffer", res)
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

func (v *VulkanCommandBuffer) Begin() error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		// Re-recorded every time the image comes around.
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(v.Handle, beginInfo); res != vk.Success {
		err := resultError("vkBeginCommandBuffer", res)
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		err := resultError("vkEndCommandBuffer", res)
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) BeginRenderPass(pass renderer.RenderPass, framebuffer renderer.Framebuffer, area renderer.Extent, clear renderer.ClearValues) {
	renderpass := pass.(*VulkanRenderpass)
	fb := framebuffer.(*VulkanFramebuffer)

	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(clear.Color[:])
	clearValues[1].SetDepthStencil(clear.Depth, clear.Stencil)

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  renderpass.Handle,
		Framebuffer: fb.Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: toExtent2D(area),
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}

	vk.CmdBeginRenderPass(v.Handle, &beginInfo, vk.SubpassContentsInline)
	v.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (v *VulkanCommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(v.Handle)
	v.State = COMMAND_BUFFER_STATE_RECORDING
}

func (v *VulkanCommandBuffer) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	viewport := vk.Viewport{
		X:        x,
		Y:        y,
		Width:    width,
		Height:   height,
		MinDepth: minDepth,
		MaxDepth: maxDepth,
	}
	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{viewport})
}

func (v *VulkanCommandBuffer) SetScissor(area renderer.Extent) {
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: toExtent2D(area),
	}
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{scissor})
}
