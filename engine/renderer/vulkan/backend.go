package vulkan

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framer/engine/core"
	"github.com/spaghettifunk/framer/engine/platform"
	"github.com/spaghettifunk/framer/engine/renderer"
)

type Options struct {
	ApplicationName string
	// Enables VK_LAYER_KHRONOS_validation and the debug report callback.
	Validation bool
}

// Backend implements renderer.Device on top of a Vulkan instance, one
// physical device and one logical device presenting to the platform window.
type Backend struct {
	platform *platform.Platform
	context  *VulkanContext
	locks    *VulkanLockPool
}

var _ renderer.Device = (*Backend)(nil)

func New(p *platform.Platform, opts Options) (*Backend, error) {
	b := &Backend{
		platform: p,
		context:  &VulkanContext{},
		locks:    NewVulkanLockPool(),
	}
	if err := b.initialize(opts); err != nil {
		b.Destroy()
		return nil, err
	}
	core.LogInfo("Vulkan renderer backend initialized successfully.")
	return b, nil
}

func (b *Backend) initialize(opts Options) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}

	if err := createInstance(b.context, opts.ApplicationName, b.platform.GetRequiredExtensionNames(), opts.Validation); err != nil {
		return err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := b.platform.CreateWindowSurface(b.context.Instance)
	if err != nil {
		err = fmt.Errorf("vulkan surface creation failed: %w", err)
		core.LogError(err.Error())
		return err
	}
	b.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	return DeviceCreate(b.context)
}

// Destroy releases the device, surface and instance. Everything created
// through the Device methods must be destroyed first.
func (b *Backend) Destroy() {
	if b.context.Device != nil && b.context.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(b.context.Device.LogicalDevice)
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(b.context)

	if b.context.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(b.context.Instance, b.context.Surface, b.context.Allocator)
		b.context.Surface = vk.NullSurface
	}

	destroyInstance(b.context)
}

func (b *Backend) WaitIdle() error {
	if res := vk.DeviceWaitIdle(b.context.Device.LogicalDevice); res != vk.Success {
		err := resultError("vkDeviceWaitIdle", res)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (b *Backend) SurfaceSupport() (renderer.SurfaceSupport, error) {
	return querySurfaceSupport(b.context.Device.PhysicalDevice, b.context.Surface)
}

func (b *Backend) DepthFormat() renderer.Format {
	return renderer.Format(b.context.Device.DepthFormat)
}

func (b *Backend) Submit(buffer renderer.CommandBuffer, wait renderer.Semaphore, signal renderer.Semaphore, fence renderer.Fence) error {
	commandBuffer, ok := buffer.(*VulkanCommandBuffer)
	if !ok {
		return fmt.Errorf("submit: unexpected command buffer %T", buffer)
	}
	waitSemaphore, ok := wait.(*VulkanSemaphore)
	if !ok {
		return fmt.Errorf("submit: unexpected wait semaphore %T", wait)
	}
	signalSemaphore, ok := signal.(*VulkanSemaphore)
	if !ok {
		return fmt.Errorf("submit: unexpected signal semaphore %T", signal)
	}
	inFlight, ok := fence.(*VulkanFence)
	if !ok {
		return fmt.Errorf("submit: unexpected fence %T", fence)
	}

	submitInfo := vk.SubmitInfo{
		SType: vk.StructureTypeSubmitInfo,
		// The operation cannot begin until the image is available.
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{waitSemaphore.Handle},
		// Color attachment writes wait on the semaphore, one frame is presented at a time.
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{commandBuffer.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signalSemaphore.Handle},
	}

	device := b.context.Device
	res := b.locks.QueueCall(uint32(device.GraphicsQueueIndex), func() vk.Result {
		return vk.QueueSubmit(device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, inFlight.Handle)
	})
	if err := resultError("vkQueueSubmit", res); err != nil {
		core.LogError(err.Error())
		return err
	}
	inFlight.IsSignaled = false
	commandBuffer.State = COMMAND_BUFFER_STATE_SUBMITTED
	return nil
}
