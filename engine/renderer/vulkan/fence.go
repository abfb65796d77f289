package vulkan

import (
	"fmt"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framer/engine/core"
	"github.com/spaghettifunk/framer/engine/renderer"
)

type VulkanFence struct {
	backend    *Backend
	Handle     vk.Fence
	IsSignaled bool
}

func (b *Backend) CreateFence(signaled bool) (renderer.Fence, error) {
	fence := &VulkanFence{
		backend: b,
		// Make sure to signal the fence if required.
		IsSignaled: signaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var handle vk.Fence
	if res := vk.CreateFence(b.context.Device.LogicalDevice, &fenceCreateInfo, b.context.Allocator, &handle); res != vk.Success {
		err := resultError("vkCreateFence", res)
		core.LogError(err.Error())
		return nil, err
	}
	fence.Handle = handle
	return fence, nil
}

func (vf *VulkanFence) Wait(timeout time.Duration) error {
	// A fence stays signaled until reset.
	if vf.IsSignaled {
		return nil
	}
	result := vk.WaitForFences(vf.backend.context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNanos(timeout))
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return fmt.Errorf("vkWaitForFences: %w", renderer.ErrTimeout)
	}
	err := resultError("vkWaitForFences", result)
	core.LogError(err.Error())
	return err
}

func (vf *VulkanFence) Reset() error {
	if res := vk.ResetFences(vf.backend.context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
		err := resultError("vkResetFences", res)
		core.LogError(err.Error())
		return err
	}
	vf.IsSignaled = false
	return nil
}

func (vf *VulkanFence) Destroy() {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(vf.backend.context.Device.LogicalDevice, vf.Handle, vf.backend.context.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

type VulkanSemaphore struct {
	backend *Backend
	Handle  vk.Semaphore
}

func (b *Backend) CreateSemaphore() (renderer.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var handle vk.Semaphore
	if res := vk.CreateSemaphore(b.context.Device.LogicalDevice, &semaphoreCreateInfo, b.context.Allocator, &handle); res != vk.Success {
		err := resultError("vkCreateSemaphore", res)
		core.LogError(err.Error())
		return nil, err
	}
	return &VulkanSemaphore{backend: b, Handle: handle}, nil
}

func (vs *VulkanSemaphore) Destroy() {
	if vs.Handle != vk.NullSemaphore {
		vk.DestroySemaphore(vs.backend.context.Device.LogicalDevice, vs.Handle, vs.backend.context.Allocator)
		vs.Handle = vk.NullSemaphore
	}
}
