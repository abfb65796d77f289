package renderer

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spaghettifunk/framer/engine/core"
	"github.com/spaghettifunk/framer/engine/math"
)

type SwapChainOptions struct {
	// Zero picks MinImageCount + 1.
	ImageCount  uint32
	PresentMode PresentMode
	// Bound of the fence and acquire waits. Zero or negative waits forever.
	AcquireTimeout time.Duration
}

// SwapChain holds the presentable images of a surface together with the
// framebuffers, render pass and per frame sync objects that depend on them.
// Image count and extent never change for the lifetime of a SwapChain: a new
// one is built instead.
type SwapChain struct {
	id     uuid.UUID
	device Device
	opts   SwapChainOptions

	native           NativeSwapchain
	images           []ImageView
	depthAttachments []ImageView
	framebuffers     []Framebuffer
	renderPass       RenderPass

	extent      Extent
	format      SurfaceFormat
	depthFormat Format
	presentMode PresentMode

	// Indexed by frame in flight.
	imageAvailable []Semaphore
	renderFinished []Semaphore
	inFlightFences []Fence
	// Indexed by image, borrowed from inFlightFences.
	imagesInFlight []Fence

	currentFrame uint32
	// Image returned by the last acquire, -1 once it was submitted.
	acquiredImage int64
}

// NewSwapChain creates a chain for the surface of device, sized as close as
// possible to desired. When previous is not nil its native chain is handed to
// the device so that presentation in flight is not disturbed. The caller
// destroys previous once NewSwapChain returns.
func NewSwapChain(device Device, desired Extent, opts SwapChainOptions, previous *SwapChain) (*SwapChain, error) {
	support, err := device.SurfaceSupport()
	if err != nil {
		err = fmt.Errorf("failed to query surface support: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		core.LogError(ErrUnsupportedSurface.Error())
		return nil, ErrUnsupportedSurface
	}

	sc := &SwapChain{
		id:            uuid.New(),
		device:        device,
		opts:          opts,
		extent:        chooseExtent(support.Capabilities, desired),
		format:        chooseSurfaceFormat(support.Formats),
		presentMode:   choosePresentMode(support.PresentModes, opts.PresentMode),
		depthFormat:   device.DepthFormat(),
		acquiredImage: -1,
	}
	if sc.extent.IsZero() {
		return nil, fmt.Errorf("%w: cannot create a swapchain with extent %s", ErrZeroExtent, sc.extent)
	}

	var old NativeSwapchain
	if previous != nil {
		old = previous.native
	}
	if err := sc.create(chooseImageCount(support.Capabilities, opts.ImageCount), old); err != nil {
		sc.Destroy()
		core.LogError(err.Error())
		return nil, err
	}

	core.LogInfo("swapchain %s created: %d images, extent %s, present mode %s", sc.id, sc.ImageCount(), sc.extent, sc.presentMode)
	return sc, nil
}

func (sc *SwapChain) create(imageCount uint32, old NativeSwapchain) error {
	native, err := sc.device.CreateSwapchain(SwapchainDesc{
		Extent:      sc.extent,
		ImageCount:  imageCount,
		Format:      sc.format,
		PresentMode: sc.presentMode,
	}, old)
	if err != nil {
		return fmt.Errorf("failed to create swapchain: %w", err)
	}
	sc.native = native
	sc.images = native.Images()
	if len(sc.images) == 0 {
		return fmt.Errorf("%w: swapchain has no images", ErrAllocation)
	}

	if sc.renderPass, err = sc.device.CreateRenderPass(sc.format.Format, sc.depthFormat); err != nil {
		return fmt.Errorf("failed to create render pass: %w", err)
	}

	n := len(sc.images)
	sc.depthAttachments = make([]ImageView, 0, n)
	sc.framebuffers = make([]Framebuffer, 0, n)
	for i := 0; i < n; i++ {
		depth, err := sc.device.CreateDepthAttachment(sc.extent, sc.depthFormat)
		if err != nil {
			return fmt.Errorf("failed to create depth attachment %d: %w", i, err)
		}
		sc.depthAttachments = append(sc.depthAttachments, depth)

		fb, err := sc.device.CreateFramebuffer(sc.renderPass, []ImageView{sc.images[i], depth}, sc.extent)
		if err != nil {
			return fmt.Errorf("failed to create framebuffer %d: %w", i, err)
		}
		sc.framebuffers = append(sc.framebuffers, fb)
	}

	// One set of sync objects per frame in flight, fences start signaled so
	// the first wait on each slot returns immediately.
	sc.imageAvailable = make([]Semaphore, 0, n)
	sc.renderFinished = make([]Semaphore, 0, n)
	sc.inFlightFences = make([]Fence, 0, n)
	for i := 0; i < n; i++ {
		available, err := sc.device.CreateSemaphore()
		if err != nil {
			return fmt.Errorf("failed to create image available semaphore: %w", err)
		}
		sc.imageAvailable = append(sc.imageAvailable, available)

		finished, err := sc.device.CreateSemaphore()
		if err != nil {
			return fmt.Errorf("failed to create render finished semaphore: %w", err)
		}
		sc.renderFinished = append(sc.renderFinished, finished)

		fence, err := sc.device.CreateFence(true)
		if err != nil {
			return fmt.Errorf("failed to create in flight fence: %w", err)
		}
		sc.inFlightFences = append(sc.inFlightFences, fence)
	}
	sc.imagesInFlight = make([]Fence, n)
	return nil
}

// AcquireNextImage waits for the current frame slot to be released by the GPU
// and requests the next presentable image. A timeout is reported as
// StatusOutOfDate.
func (sc *SwapChain) AcquireNextImage() (uint32, Status, error) {
	if err := sc.inFlightFences[sc.currentFrame].Wait(sc.timeout()); err != nil {
		if errors.Is(err, ErrTimeout) {
			core.LogWarn("timed out waiting for frame %d", sc.currentFrame)
			return 0, StatusOutOfDate, nil
		}
		return 0, StatusOutOfDate, fmt.Errorf("failed to wait for frame %d: %w", sc.currentFrame, err)
	}

	index, status, err := sc.native.AcquireNextImage(sc.timeout(), sc.imageAvailable[sc.currentFrame])
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			core.LogWarn("timed out acquiring the next swapchain image")
			return 0, StatusOutOfDate, nil
		}
		return 0, StatusOutOfDate, fmt.Errorf("failed to acquire swapchain image: %w", err)
	}
	if status == StatusOutOfDate {
		sc.acquiredImage = -1
		return 0, status, nil
	}
	if int(index) >= len(sc.images) {
		return 0, StatusOutOfDate, fmt.Errorf("acquired image %d out of range [0, %d)", index, len(sc.images))
	}
	// The image may still be in use by an older frame slot, and so may its
	// command buffer.
	if fence := sc.imagesInFlight[index]; fence != nil {
		if err := fence.Wait(WaitForever); err != nil {
			return 0, StatusOutOfDate, fmt.Errorf("failed to wait for image %d: %w", index, err)
		}
	}
	sc.acquiredImage = int64(index)
	return index, status, nil
}

// SubmitCommandBuffers queues cb for the image acquired last, then presents
// that image and moves to the next frame slot.
func (sc *SwapChain) SubmitCommandBuffers(cb CommandBuffer, imageIndex uint32) (Status, error) {
	if sc.acquiredImage < 0 || uint32(sc.acquiredImage) != imageIndex {
		return StatusSuccess, fmt.Errorf("%w: image %d", ErrImageNotAcquired, imageIndex)
	}
	sc.acquiredImage = -1

	frame := sc.currentFrame
	sc.imagesInFlight[imageIndex] = sc.inFlightFences[frame]

	if err := sc.inFlightFences[frame].Reset(); err != nil {
		return StatusSuccess, fmt.Errorf("failed to reset fence of frame %d: %w", frame, err)
	}
	if err := sc.device.Submit(cb, sc.imageAvailable[frame], sc.renderFinished[frame], sc.inFlightFences[frame]); err != nil {
		return StatusSuccess, fmt.Errorf("%w: %w", ErrSubmit, err)
	}

	status, err := sc.native.Present(imageIndex, sc.renderFinished[frame])
	sc.currentFrame = math.Wrap(sc.currentFrame, sc.FramesInFlight())
	if err != nil {
		return status, fmt.Errorf("failed to present image %d: %w", imageIndex, err)
	}
	return status, nil
}

func (sc *SwapChain) timeout() time.Duration {
	if sc.opts.AcquireTimeout <= 0 {
		return WaitForever
	}
	return sc.opts.AcquireTimeout
}

// CompareFormats reports whether other renders to the same color and depth
// formats, i.e. whether pipelines built for one can be used with the other.
func (sc *SwapChain) CompareFormats(other *SwapChain) bool {
	return sc.format.Format == other.format.Format && sc.depthFormat == other.depthFormat
}

func (sc *SwapChain) ID() uuid.UUID { return sc.id }

func (sc *SwapChain) ImageCount() int { return len(sc.images) }

func (sc *SwapChain) FramesInFlight() uint32 { return uint32(len(sc.inFlightFences)) }

func (sc *SwapChain) CurrentFrame() uint32 { return sc.currentFrame }

func (sc *SwapChain) Extent() Extent { return sc.extent }

func (sc *SwapChain) Width() uint32 { return sc.extent.Width }

func (sc *SwapChain) Height() uint32 { return sc.extent.Height }

func (sc *SwapChain) ExtentAspectRatio() float32 { return sc.extent.AspectRatio() }

func (sc *SwapChain) RenderPass() RenderPass { return sc.renderPass }

func (sc *SwapChain) Framebuffer(index uint32) Framebuffer { return sc.framebuffers[index] }

func (sc *SwapChain) Format() SurfaceFormat { return sc.format }

func (sc *SwapChain) DepthFormat() Format { return sc.depthFormat }

func (sc *SwapChain) PresentMode() PresentMode { return sc.presentMode }

// Destroy releases every object owned by the chain. It is safe to call on a
// partially constructed chain and more than once.
func (sc *SwapChain) Destroy() {
	for i := range sc.inFlightFences {
		sc.inFlightFences[i].Destroy()
	}
	for i := range sc.renderFinished {
		sc.renderFinished[i].Destroy()
	}
	for i := range sc.imageAvailable {
		sc.imageAvailable[i].Destroy()
	}
	sc.inFlightFences, sc.renderFinished, sc.imageAvailable, sc.imagesInFlight = nil, nil, nil, nil

	for i := range sc.framebuffers {
		sc.framebuffers[i].Destroy()
	}
	sc.framebuffers = nil
	for i := range sc.depthAttachments {
		sc.depthAttachments[i].Destroy()
	}
	sc.depthAttachments = nil

	if sc.renderPass != nil {
		sc.renderPass.Destroy()
		sc.renderPass = nil
	}
	// The native chain owns the image views.
	if sc.native != nil {
		sc.native.Destroy()
		sc.native = nil
	}
	sc.images = nil
	core.LogDebug("swapchain %s destroyed", sc.id)
}

func chooseSurfaceFormat(formats []SurfaceFormat) SurfaceFormat {
	for _, f := range formats {
		if f.Format == FormatB8G8R8A8Srgb && f.ColorSpace == ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return formats[0]
}

func choosePresentMode(modes []PresentMode, preferred PresentMode) PresentMode {
	for _, m := range modes {
		if m == preferred {
			return m
		}
	}
	return PresentModeFifo
}

func chooseExtent(caps SurfaceCapabilities, desired Extent) Extent {
	extent := desired
	if caps.CurrentExtent.Width != UndefinedExtent {
		extent = caps.CurrentExtent
	}
	return Extent{
		Width:  math.Clamp(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: math.Clamp(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func chooseImageCount(caps SurfaceCapabilities, requested uint32) uint32 {
	count := requested
	if count == 0 {
		count = caps.MinImageCount + 1
	}
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}
