package renderer

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Extent is a width/height pair in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// IsZero reports whether either dimension is zero, e.g. a minimized window.
func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent) AspectRatio() float32 {
	if e.Height == 0 {
		return 0
	}
	return float32(e.Width) / float32(e.Height)
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// UndefinedExtent in SurfaceCapabilities.CurrentExtent means the surface size
// is determined by the swapchain extent.
const UndefinedExtent uint32 = math.MaxUint32

// WaitForever disables the timeout of fence and image acquisition waits.
const WaitForever time.Duration = -1

// Format values match the Vulkan VkFormat enumerants.
type Format uint32

const (
	FormatUndefined       Format = 0
	FormatR8G8B8A8Unorm   Format = 37
	FormatR8G8B8A8Srgb    Format = 43
	FormatB8G8R8A8Unorm   Format = 44
	FormatB8G8R8A8Srgb    Format = 50
	FormatD32Sfloat       Format = 126
	FormatD24UnormS8Uint  Format = 129
	FormatD32SfloatS8Uint Format = 130
)

// ColorSpace values match the Vulkan VkColorSpaceKHR enumerants.
type ColorSpace uint32

const ColorSpaceSrgbNonlinear ColorSpace = 0

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// PresentMode values match the Vulkan VkPresentModeKHR enumerants.
type PresentMode uint32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

var presentModeNames = map[PresentMode]string{
	PresentModeImmediate:   "immediate",
	PresentModeMailbox:     "mailbox",
	PresentModeFifo:        "fifo",
	PresentModeFifoRelaxed: "fifo_relaxed",
}

func (p PresentMode) String() string {
	if name, ok := presentModeNames[p]; ok {
		return name
	}
	return fmt.Sprintf("present_mode(%d)", uint32(p))
}

func ParsePresentMode(name string) (PresentMode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for mode, n := range presentModeNames {
		if n == name {
			return mode, nil
		}
	}
	return PresentModeFifo, fmt.Errorf("unknown present mode %q", name)
}

type SurfaceCapabilities struct {
	MinImageCount uint32
	// Zero means there is no upper bound.
	MaxImageCount  uint32
	CurrentExtent  Extent
	MinImageExtent Extent
	MaxImageExtent Extent
}

// SurfaceSupport is what a device can do with the presentation surface.
type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

// Status is the outcome of an acquire or present request.
type Status int

const (
	StatusSuccess Status = iota
	// The chain still works but no longer matches the surface exactly.
	StatusSuboptimal
	// The chain must be recreated before further use.
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out-of-date"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Surface is the presentation surface, usually a window.
type Surface interface {
	// CurrentExtent is the drawable size in pixels.
	CurrentExtent() Extent
	ShouldClose() bool
	ResizePending() bool
	ClearResizePending()
	// WaitForEvents blocks until the windowing system has something to report.
	WaitForEvents()
}

type ClearValues struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// CommandBuffer is a device command buffer lent to the renderer for one frame.
type CommandBuffer interface {
	Reset() error
	Begin() error
	End() error
	BeginRenderPass(pass RenderPass, framebuffer Framebuffer, area Extent, clear ClearValues)
	EndRenderPass()
	SetViewport(x, y, width, height, minDepth, maxDepth float32)
	SetScissor(area Extent)
}

type RenderPass interface {
	Destroy()
}

type Framebuffer interface {
	Destroy()
}

type ImageView interface {
	Destroy()
}

type Semaphore interface {
	Destroy()
}

type Fence interface {
	// Wait blocks until the fence is signaled. It returns ErrTimeout when the
	// timeout expires first.
	Wait(timeout time.Duration) error
	Reset() error
	Destroy()
}

// NativeSwapchain is the device-level presentation chain. It owns its images
// and their views.
type NativeSwapchain interface {
	Images() []ImageView
	// AcquireNextImage returns ErrTimeout when no image became available in time.
	AcquireNextImage(timeout time.Duration, signal Semaphore) (uint32, Status, error)
	Present(imageIndex uint32, wait Semaphore) (Status, error)
	Destroy()
}

type SwapchainDesc struct {
	Extent      Extent
	ImageCount  uint32
	Format      SurfaceFormat
	PresentMode PresentMode
}

// Device is the logical GPU device as seen by the frame lifecycle.
type Device interface {
	WaitIdle() error
	AllocateCommandBuffers(n int) ([]CommandBuffer, error)
	FreeCommandBuffers(buffers []CommandBuffer)

	SurfaceSupport() (SurfaceSupport, error)
	DepthFormat() Format

	// CreateSwapchain builds a new chain. old, when not nil, is the chain being
	// replaced; it stays valid and is destroyed by the caller afterwards.
	CreateSwapchain(desc SwapchainDesc, old NativeSwapchain) (NativeSwapchain, error)
	CreateDepthAttachment(extent Extent, format Format) (ImageView, error)
	CreateRenderPass(color Format, depth Format) (RenderPass, error)
	CreateFramebuffer(pass RenderPass, attachments []ImageView, extent Extent) (Framebuffer, error)
	CreateSemaphore() (Semaphore, error)
	CreateFence(signaled bool) (Fence, error)

	// Submit queues buffer for execution after wait is signaled, signals
	// signal when done and fence once the GPU has finished with it.
	Submit(buffer CommandBuffer, wait Semaphore, signal Semaphore, fence Fence) error
}
