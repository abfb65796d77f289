package renderer

import (
	"errors"
	"testing"
	"time"

	"github.com/spaghettifunk/framer/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T) (*Renderer, *fakeSurface, *fakeDevice) {
	t.Helper()
	surface := newFakeSurface(Extent{Width: 800, Height: 600})
	device := newFakeDevice()
	r, err := New(surface, device, Options{
		SwapChain: SwapChainOptions{
			PresentMode:    PresentModeMailbox,
			AcquireTimeout: time.Second,
		},
		ClearColor: [4]float32{0.1, 0.2, 0.3, 1},
	})
	require.NoError(t, err)
	return r, surface, device
}

// renderFrame runs one full frame and fails the test if it was skipped.
func renderFrame(t *testing.T, r *Renderer) CommandBuffer {
	t.Helper()
	cb, err := r.BeginFrame()
	require.NoError(t, err)
	require.NotNil(t, cb)
	r.BeginSwapChainRenderPass(cb)
	r.EndSwapChainRenderPass(cb)
	require.NoError(t, r.EndFrame())
	return cb
}

func TestNewRenderer(t *testing.T) {
	r, _, device := newTestRenderer(t)

	assert.Equal(t, 3, r.SwapChain().ImageCount())
	assert.Equal(t, 3, r.CommandBufferCount())
	assert.Equal(t, []int{3}, device.allocCalls)
	assert.Equal(t, Extent{Width: 800, Height: 600}, r.SwapChain().Extent())
	assert.InDelta(t, 800.0/600.0, r.AspectRatio(), 1e-6)
	assert.NotNil(t, r.RenderPass())
	assert.False(t, r.IsFrameInProgress())
	assert.Equal(t, uint32(0), r.FrameIndex())
	assert.Equal(t, uint64(1), r.Stats().Recreations)
	assert.Nil(t, device.swapchains[0].old)
}

func TestNewRendererFailsOnAllocation(t *testing.T) {
	device := newFakeDevice()
	device.allocErr = errFake
	_, err := New(newFakeSurface(Extent{Width: 800, Height: 600}), device, Options{})
	require.ErrorIs(t, err, ErrAllocation)
	require.ErrorIs(t, err, errFake)
	// The chain built before the failure is released.
	assert.Equal(t, 0, device.live)
}

func TestNewRendererFailsOnUnsupportedSurface(t *testing.T) {
	device := newFakeDevice()
	device.support.Formats = nil
	_, err := New(newFakeSurface(Extent{Width: 800, Height: 600}), device, Options{})
	require.ErrorIs(t, err, ErrUnsupportedSurface)
}

func TestBeginFrameTwicePanics(t *testing.T) {
	r, _, _ := newTestRenderer(t)

	cb, err := r.BeginFrame()
	require.NoError(t, err)
	require.NotNil(t, cb)
	requirePrecondition(t, func() { r.BeginFrame() })
	assert.True(t, r.IsFrameInProgress())
}

func TestEndFrameWithoutBeginPanics(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	requirePrecondition(t, func() { r.EndFrame() })
	requirePrecondition(t, func() { r.CurrentCommandBuffer() })
	requirePrecondition(t, func() { r.ImageIndex() })
}

func TestRenderPassPreconditions(t *testing.T) {
	r, _, device := newTestRenderer(t)
	stray := &fakeCommandBuffer{device: device, name: "stray"}

	requirePrecondition(t, func() { r.BeginSwapChainRenderPass(stray) })
	requirePrecondition(t, func() { r.EndSwapChainRenderPass(stray) })

	cb, err := r.BeginFrame()
	require.NoError(t, err)
	requirePrecondition(t, func() { r.BeginSwapChainRenderPass(stray) })
	requirePrecondition(t, func() { r.EndSwapChainRenderPass(stray) })

	r.BeginSwapChainRenderPass(cb)
	r.EndSwapChainRenderPass(cb)
	require.NoError(t, r.EndFrame())

	// The buffer of a finished frame is no longer valid.
	requirePrecondition(t, func() { r.BeginSwapChainRenderPass(cb) })
}

func TestFrameRecordsCommandBuffer(t *testing.T) {
	r, _, device := newTestRenderer(t)

	cb, err := r.BeginFrame()
	require.NoError(t, err)
	assert.True(t, r.IsFrameInProgress())
	assert.Same(t, cb, r.CurrentCommandBuffer())
	assert.Equal(t, uint32(0), r.ImageIndex())

	r.SetClearColor([4]float32{1, 0, 0, 1})
	r.BeginSwapChainRenderPass(cb)
	r.EndSwapChainRenderPass(cb)
	require.NoError(t, r.EndFrame())
	assert.False(t, r.IsFrameInProgress())

	fake := cb.(*fakeCommandBuffer)
	assert.Equal(t, []string{"reset", "begin", "begin-pass", "viewport", "scissor", "end-pass", "end"}, fake.calls)
	assert.Equal(t, Extent{Width: 800, Height: 600}, fake.area)
	assert.Equal(t, Extent{Width: 800, Height: 600}, fake.scissor)
	assert.Equal(t, [6]float32{0, 0, 800, 600, 0, 1}, fake.viewport)
	assert.Equal(t, ClearValues{Color: [4]float32{1, 0, 0, 1}, Depth: 1}, fake.clear)
	assert.Equal(t, []uint32{0}, device.swapchains[0].presented)
	assert.Equal(t, uint64(1), r.Stats().FramesPresented)
}

func TestOutOfDateAcquireSkipsFrame(t *testing.T) {
	r, _, device := newTestRenderer(t)
	idle := device.waitIdleCalls
	device.swapchains[0].acquireResults = []acquireResult{{status: StatusOutOfDate}}

	cb, err := r.BeginFrame()
	require.NoError(t, err)
	assert.Nil(t, cb)
	assert.False(t, r.IsFrameInProgress())

	// Recreated exactly once, from the old chain, which is destroyed once.
	require.Len(t, device.swapchains, 2)
	assert.Equal(t, uint64(2), r.Stats().Recreations)
	assert.Equal(t, uint64(1), r.Stats().FramesSkipped)
	assert.Equal(t, idle+1, device.waitIdleCalls)
	assert.Same(t, device.swapchains[0], device.swapchains[1].old)
	assert.Equal(t, 1, device.swapchains[0].destroyed)
	assert.Equal(t, 0, device.swapchains[1].destroyed)
	assert.Empty(t, device.swapchains[0].presented)

	// Same image count, the pool is kept.
	assert.Equal(t, []int{3}, device.allocCalls)

	renderFrame(t, r)
	assert.Equal(t, []uint32{0}, device.swapchains[1].presented)
}

func TestAcquireTimeoutRecreates(t *testing.T) {
	r, _, device := newTestRenderer(t)
	device.swapchains[0].acquireResults = []acquireResult{{err: ErrTimeout}}

	cb, err := r.BeginFrame()
	require.NoError(t, err)
	assert.Nil(t, cb)
	assert.Equal(t, uint64(2), r.Stats().Recreations)
}

func TestSuboptimalAcquireStillRenders(t *testing.T) {
	r, _, device := newTestRenderer(t)
	device.swapchains[0].acquireResults = []acquireResult{{status: StatusSuboptimal}}

	cb, err := r.BeginFrame()
	require.NoError(t, err)
	require.NotNil(t, cb)
	require.NoError(t, r.EndFrame())
	assert.Equal(t, uint64(1), r.Stats().Recreations)
}

func TestAcquireErrorIsFatal(t *testing.T) {
	r, _, device := newTestRenderer(t)
	device.swapchains[0].acquireResults = []acquireResult{{err: errFake}}

	cb, err := r.BeginFrame()
	require.ErrorIs(t, err, errFake)
	assert.Nil(t, cb)
	assert.False(t, r.IsFrameInProgress())
}

func TestZeroExtentIsPolled(t *testing.T) {
	r, surface, _ := newTestRenderer(t)

	surface.queue(Extent{}, Extent{Width: 0, Height: 0}, Extent{Width: 1024, Height: 768})
	surface.resizePending = true
	renderFrame(t, r)

	assert.Equal(t, 2, surface.waits)
	assert.Equal(t, 3, surface.queries)
	assert.Equal(t, uint64(2), r.Stats().Recreations)
	assert.Equal(t, Extent{Width: 1024, Height: 768}, r.SwapChain().Extent())
	assert.False(t, surface.resizePending)
	assert.Equal(t, 1, surface.clears)
}

func TestZeroWidthOnlyIsPolled(t *testing.T) {
	r, surface, _ := newTestRenderer(t)

	surface.queue(Extent{Width: 0, Height: 600}, Extent{Width: 640, Height: 480})
	surface.resizePending = true
	renderFrame(t, r)

	assert.Equal(t, 1, surface.waits)
	assert.Equal(t, Extent{Width: 640, Height: 480}, r.SwapChain().Extent())
}

func TestMinimizedBeforeCreationRetries(t *testing.T) {
	r, surface, device := newTestRenderer(t)
	before := r.Stats().Recreations
	// The window reports a size, then the capabilities say it is minimized.
	device.support.Capabilities.MinImageExtent = Extent{}
	device.currentExtents = []Extent{{}}

	surface.queue(Extent{Width: 1024, Height: 768})
	surface.resizePending = true
	renderFrame(t, r)

	assert.Equal(t, 1, surface.waits)
	assert.Equal(t, before+1, r.Stats().Recreations)
	assert.Equal(t, Extent{Width: 1024, Height: 768}, r.SwapChain().Extent())
	renderFrame(t, r)
}

func TestClosedWhileMinimized(t *testing.T) {
	r, surface, device := newTestRenderer(t)
	chain := r.SwapChain()

	surface.queue(Extent{})
	surface.resizePending = true
	surface.closed = true

	cb, err := r.BeginFrame()
	require.NoError(t, err)
	r.BeginSwapChainRenderPass(cb)
	r.EndSwapChainRenderPass(cb)
	require.ErrorIs(t, r.EndFrame(), core.ErrWindowClosed)

	assert.False(t, r.IsFrameInProgress())
	assert.Equal(t, 0, surface.waits)
	assert.Same(t, chain, r.SwapChain())
	assert.Len(t, device.swapchains, 1)
}

func TestRecreatedExtentIsClamped(t *testing.T) {
	r, surface, device := newTestRenderer(t)
	device.support.Capabilities.MaxImageExtent = Extent{Width: 1280, Height: 720}

	surface.queue(Extent{Width: 1920, Height: 1080})
	surface.resizePending = true
	renderFrame(t, r)

	assert.Equal(t, Extent{Width: 1280, Height: 720}, r.SwapChain().Extent())
}

func TestFrameIndexCycles(t *testing.T) {
	r, _, device := newTestRenderer(t)
	n := r.SwapChain().ImageCount()

	for i := 0; i < n; i++ {
		assert.Equal(t, uint32(i), r.FrameIndex())
		renderFrame(t, r)
	}
	assert.Equal(t, uint32(0), r.FrameIndex())

	// Frame n+1 waits for slot 0 before reusing the command buffer of
	// image 0.
	from := len(device.events)
	cb, err := r.BeginFrame()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), r.ImageIndex())

	wait := device.eventIndex("wait fence0", from)
	reset := device.eventIndex("reset cb0", from)
	require.NotEqual(t, -1, wait)
	require.NotEqual(t, -1, reset)
	assert.Less(t, wait, reset)
	// Reset once for the first frame and again now.
	assert.Equal(t, 2, countCalls(cb, "reset"))
	require.NoError(t, r.EndFrame())
}

func countCalls(cb CommandBuffer, call string) int {
	n := 0
	for _, c := range cb.(*fakeCommandBuffer).calls {
		if c == call {
			n++
		}
	}
	return n
}

func TestFrameIndexIsIndependentOfImageIndex(t *testing.T) {
	r, _, device := newTestRenderer(t)
	// Hand out image 2 first.
	device.swapchains[0].next = 2

	cb, err := r.BeginFrame()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), r.ImageIndex())
	assert.Equal(t, uint32(0), r.FrameIndex())
	assert.Equal(t, "cb2", cb.(*fakeCommandBuffer).name)
	require.NoError(t, r.EndFrame())
	assert.Equal(t, uint32(1), r.FrameIndex())
}

func TestPoolFollowsImageCount(t *testing.T) {
	r, surface, device := newTestRenderer(t)

	device.support.Capabilities.MaxImageCount = 2
	surface.resizePending = true
	renderFrame(t, r)

	assert.Equal(t, 2, r.SwapChain().ImageCount())
	assert.Equal(t, 2, r.CommandBufferCount())
	assert.Equal(t, []int{3, 2}, device.allocCalls)
	assert.Equal(t, 1, device.freeCalls)
	assert.Equal(t, 2, device.buffers)

	renderFrame(t, r)
	assert.Equal(t, uint32(1), r.FrameIndex())
}

func TestSuboptimalPresentRecreates(t *testing.T) {
	for _, status := range []Status{StatusSuboptimal, StatusOutOfDate} {
		t.Run(status.String(), func(t *testing.T) {
			r, surface, device := newTestRenderer(t)
			device.swapchains[0].presentResults = []Status{status}

			renderFrame(t, r)
			assert.Equal(t, uint64(2), r.Stats().Recreations)
			assert.Equal(t, 1, surface.clears)
			assert.Equal(t, uint32(0), r.FrameIndex())
			assert.False(t, r.IsFrameInProgress())
		})
	}
}

func TestResizeDuringFrameIsDeferred(t *testing.T) {
	r, surface, device := newTestRenderer(t)

	cb, err := r.BeginFrame()
	require.NoError(t, err)
	surface.queue(Extent{Width: 1024, Height: 768})
	surface.resizePending = true

	r.BeginSwapChainRenderPass(cb)
	r.EndSwapChainRenderPass(cb)
	require.NoError(t, r.EndFrame())

	// The frame made it to the old chain before it was replaced.
	assert.Equal(t, []uint32{0}, device.swapchains[0].presented)
	present := device.eventIndex("present swapchain0.0", 0)
	idle := device.eventIndex("wait-idle", present)
	assert.Less(t, present, idle)

	assert.Equal(t, Extent{Width: 1024, Height: 768}, r.SwapChain().Extent())
	renderFrame(t, r)
	assert.Equal(t, []uint32{0}, device.swapchains[1].presented)
}

func TestSubmitErrorIsFatal(t *testing.T) {
	r, _, device := newTestRenderer(t)
	device.submitErr = errFake

	cb, err := r.BeginFrame()
	require.NoError(t, err)
	r.BeginSwapChainRenderPass(cb)
	r.EndSwapChainRenderPass(cb)

	err = r.EndFrame()
	require.ErrorIs(t, err, ErrSubmit)
	assert.False(t, r.IsFrameInProgress())
}

func TestDeviceLostDuringRecreation(t *testing.T) {
	r, _, device := newTestRenderer(t)
	device.waitIdleErr = errFake
	device.swapchains[0].acquireResults = []acquireResult{{status: StatusOutOfDate}}

	_, err := r.BeginFrame()
	require.ErrorIs(t, err, ErrDeviceLost)
	assert.False(t, r.IsFrameInProgress())
}

func TestFormatChangeIsFatal(t *testing.T) {
	r, surface, device := newTestRenderer(t)
	device.support.Formats = []SurfaceFormat{{Format: FormatB8G8R8A8Unorm, ColorSpace: ColorSpaceSrgbNonlinear}}
	surface.resizePending = true

	cb, err := r.BeginFrame()
	require.NoError(t, err)
	r.BeginSwapChainRenderPass(cb)
	r.EndSwapChainRenderPass(cb)
	require.ErrorIs(t, r.EndFrame(), ErrFormatChanged)

	r.Destroy()
	assert.Equal(t, 0, device.live)
}

func TestDrawFrame(t *testing.T) {
	r, _, device := newTestRenderer(t)

	var recorded CommandBuffer
	drawn, err := r.DrawFrame(func(cb CommandBuffer) error {
		recorded = cb
		assert.True(t, r.IsFrameInProgress())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, drawn)
	require.NotNil(t, recorded)
	assert.True(t, recorded.(*fakeCommandBuffer).called("end-pass"))
	assert.False(t, r.IsFrameInProgress())

	device.swapchains[0].acquireResults = []acquireResult{{status: StatusOutOfDate}}
	drawn, err = r.DrawFrame(func(cb CommandBuffer) error {
		t.Fatal("record called for a skipped frame")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, drawn)
}

func TestDrawFrameRecordError(t *testing.T) {
	r, _, device := newTestRenderer(t)
	errRecord := errors.New("record failed")

	drawn, err := r.DrawFrame(func(cb CommandBuffer) error { return errRecord })
	require.ErrorIs(t, err, errRecord)
	assert.False(t, drawn)
	assert.False(t, r.IsFrameInProgress())
	// The acquired image went back to the chain.
	assert.Equal(t, []uint32{0}, device.swapchains[0].presented)
}

func TestDestroyReleasesEverything(t *testing.T) {
	r, surface, device := newTestRenderer(t)
	surface.resizePending = true
	renderFrame(t, r)
	renderFrame(t, r)

	r.Destroy()
	assert.Equal(t, 0, device.live)
	assert.Equal(t, 0, device.buffers)
	for _, sc := range device.swapchains {
		assert.Equal(t, 1, sc.destroyed)
	}
}
