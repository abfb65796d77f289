package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/framer/engine/core"
)

type Options struct {
	SwapChain  SwapChainOptions
	ClearColor [4]float32
}

type Stats struct {
	FramesPresented uint64
	// Frames dropped because the swapchain was out of date.
	FramesSkipped uint64
	Recreations   uint64
}

// Renderer drives the acquire, record, submit and present cycle of a surface
// and rebuilds the swapchain whenever the surface changes.
//
// A frame is either in progress (between BeginFrame and EndFrame) or not.
// Calling the frame methods out of order is a programming error and panics
// with ErrPrecondition.
type Renderer struct {
	surface Surface
	device  Device
	opts    Options

	swapChain      *SwapChain
	commandBuffers *CommandBufferPool

	imageIndex   uint32
	frameStarted bool
	clear        ClearValues
	stats        Stats
}

func New(surface Surface, device Device, opts Options) (*Renderer, error) {
	r := &Renderer{
		surface:        surface,
		device:         device,
		opts:           opts,
		commandBuffers: NewCommandBufferPool(device),
		clear: ClearValues{
			Color: opts.ClearColor,
			Depth: 1.0,
		},
	}
	if err := r.recreateSwapChain(); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

// BeginFrame acquires the next image and starts recording its command
// buffer. A nil buffer with a nil error means the swapchain was out of date
// and has been rebuilt: the caller skips this frame.
func (r *Renderer) BeginFrame() (CommandBuffer, error) {
	precondition(!r.frameStarted, "BeginFrame called while a frame is already in progress")

	index, status, err := r.swapChain.AcquireNextImage()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	if status == StatusOutOfDate {
		r.stats.FramesSkipped++
		if err := r.recreateSwapChain(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	r.imageIndex = index
	cb := r.commandBuffers.Get(index)
	if err := cb.Reset(); err != nil {
		err = fmt.Errorf("failed to reset command buffer %d: %w", index, err)
		core.LogError(err.Error())
		return nil, err
	}
	if err := cb.Begin(); err != nil {
		err = fmt.Errorf("failed to begin recording command buffer %d: %w", index, err)
		core.LogError(err.Error())
		return nil, err
	}
	r.frameStarted = true
	return cb, nil
}

// EndFrame finishes recording, submits and presents the current frame. The
// swapchain is rebuilt afterwards when it reported out of date or suboptimal
// or when the surface was resized during the frame.
func (r *Renderer) EndFrame() error {
	precondition(r.frameStarted, "EndFrame called without a frame in progress")
	defer func() { r.frameStarted = false }()

	cb := r.commandBuffers.Get(r.imageIndex)
	if err := cb.End(); err != nil {
		err = fmt.Errorf("failed to record command buffer %d: %w", r.imageIndex, err)
		core.LogError(err.Error())
		return err
	}

	status, err := r.swapChain.SubmitCommandBuffers(cb, r.imageIndex)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	r.stats.FramesPresented++

	if status == StatusOutOfDate || status == StatusSuboptimal || r.surface.ResizePending() {
		r.surface.ClearResizePending()
		return r.recreateSwapChain()
	}
	return nil
}

// BeginSwapChainRenderPass starts the swapchain render pass on cb, clearing
// color and depth and covering the whole extent.
func (r *Renderer) BeginSwapChainRenderPass(cb CommandBuffer) {
	precondition(r.frameStarted, "cannot begin the render pass when no frame is in progress")
	precondition(cb == r.commandBuffers.Get(r.imageIndex), "cannot begin the render pass on a command buffer from a different frame")

	extent := r.swapChain.Extent()
	cb.BeginRenderPass(r.swapChain.RenderPass(), r.swapChain.Framebuffer(r.imageIndex), extent, r.clear)
	cb.SetViewport(0, 0, float32(extent.Width), float32(extent.Height), 0, 1)
	cb.SetScissor(extent)
}

func (r *Renderer) EndSwapChainRenderPass(cb CommandBuffer) {
	precondition(r.frameStarted, "cannot end the render pass when no frame is in progress")
	precondition(cb == r.commandBuffers.Get(r.imageIndex), "cannot end the render pass on a command buffer from a different frame")

	cb.EndRenderPass()
}

// DrawFrame runs a whole frame, calling record inside the swapchain render
// pass. It reports false when the frame was skipped.
func (r *Renderer) DrawFrame(record func(cb CommandBuffer) error) (bool, error) {
	cb, err := r.BeginFrame()
	if err != nil {
		return false, err
	}
	if cb == nil {
		return false, nil
	}

	r.BeginSwapChainRenderPass(cb)
	var recordErr error
	if record != nil {
		recordErr = record(cb)
	}
	r.EndSwapChainRenderPass(cb)

	// The frame is submitted even if recording failed so that the acquired
	// image goes back to the swapchain.
	if err := r.EndFrame(); err != nil {
		return false, errors.Join(recordErr, err)
	}
	if recordErr != nil {
		return false, recordErr
	}
	return true, nil
}

func (r *Renderer) recreateSwapChain() error {
	sc, err := r.newSwapChain()
	if err != nil {
		return err
	}
	old := r.swapChain
	r.swapChain = sc
	r.imageIndex = 0
	r.stats.Recreations++

	if old != nil {
		old.Destroy()
		if !old.CompareFormats(sc) {
			core.LogError(ErrFormatChanged.Error())
			return ErrFormatChanged
		}
	}

	if r.commandBuffers.Size() != sc.ImageCount() {
		r.commandBuffers.Free()
		if err := r.commandBuffers.Allocate(sc.ImageCount()); err != nil {
			return err
		}
	}
	return nil
}

// newSwapChain builds the next swapchain once the surface has a drawable
// extent. A surface that shrinks to zero again before the chain is built sends
// it back to waiting.
func (r *Renderer) newSwapChain() (*SwapChain, error) {
	for {
		extent, err := r.waitForExtent()
		if err != nil {
			return nil, err
		}

		if err := r.device.WaitIdle(); err != nil {
			err = fmt.Errorf("%w: %w", ErrDeviceLost, err)
			core.LogError(err.Error())
			return nil, err
		}

		sc, err := NewSwapChain(r.device, extent, r.opts.SwapChain, r.swapChain)
		if errors.Is(err, ErrZeroExtent) {
			core.LogDebug("surface minimized during swapchain recreation, waiting")
			r.surface.WaitForEvents()
			continue
		}
		return sc, err
	}
}

// waitForExtent blocks on window events while either dimension of the surface
// is zero.
func (r *Renderer) waitForExtent() (Extent, error) {
	extent := r.surface.CurrentExtent()
	for extent.IsZero() {
		if r.surface.ShouldClose() {
			core.LogInfo("window closed while minimized, swapchain not recreated")
			return Extent{}, core.ErrWindowClosed
		}
		r.surface.WaitForEvents()
		extent = r.surface.CurrentExtent()
	}
	return extent, nil
}

// Destroy waits for the device and releases the swapchain and command
// buffers.
func (r *Renderer) Destroy() {
	if err := r.device.WaitIdle(); err != nil {
		core.LogError("failed to wait for the device before destroying the renderer: %s", err)
	}
	r.commandBuffers.Free()
	if r.swapChain != nil {
		r.swapChain.Destroy()
		r.swapChain = nil
	}
}

func (r *Renderer) SetClearColor(color [4]float32) {
	r.clear.Color = color
}

func (r *Renderer) ClearColor() [4]float32 {
	return r.clear.Color
}

func (r *Renderer) RenderPass() RenderPass {
	return r.swapChain.RenderPass()
}

func (r *Renderer) AspectRatio() float32 {
	return r.swapChain.ExtentAspectRatio()
}

func (r *Renderer) IsFrameInProgress() bool {
	return r.frameStarted
}

func (r *Renderer) CurrentCommandBuffer() CommandBuffer {
	precondition(r.frameStarted, "cannot get the command buffer when no frame is in progress")
	return r.commandBuffers.Get(r.imageIndex)
}

// FrameIndex is the frame in flight slot the next frame will use.
func (r *Renderer) FrameIndex() uint32 {
	return r.swapChain.CurrentFrame()
}

func (r *Renderer) ImageIndex() uint32 {
	precondition(r.frameStarted, "cannot get the image index when no frame is in progress")
	return r.imageIndex
}

func (r *Renderer) SwapChain() *SwapChain {
	return r.swapChain
}

func (r *Renderer) CommandBufferCount() int {
	return r.commandBuffers.Size()
}

func (r *Renderer) Stats() Stats {
	return r.stats
}
