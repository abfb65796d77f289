package renderer

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/spaghettifunk/framer/engine/core"
	"github.com/stretchr/testify/require"
)

func init() {
	core.SetLogOutput(io.Discard)
}

var errFake = errors.New("fake device failure")

// fakeSurface reports the queued extents in order and repeats the last one.
type fakeSurface struct {
	extents       []Extent
	queries       int
	waits         int
	resizePending bool
	clears        int
	closed        bool
}

func newFakeSurface(extents ...Extent) *fakeSurface {
	return &fakeSurface{extents: extents}
}

func (s *fakeSurface) queue(extents ...Extent) {
	s.extents = extents
	s.queries = 0
}

func (s *fakeSurface) CurrentExtent() Extent {
	e := s.extents[min(s.queries, len(s.extents)-1)]
	s.queries++
	return e
}

func (s *fakeSurface) ShouldClose() bool   { return s.closed }
func (s *fakeSurface) ResizePending() bool { return s.resizePending }
func (s *fakeSurface) WaitForEvents()      { s.waits++ }

func (s *fakeSurface) ClearResizePending() {
	s.clears++
	s.resizePending = false
}

type fakeDevice struct {
	support     SurfaceSupport
	supportErr  error
	depthFormat Format
	// Consumed one per SurfaceSupport call as the reported current extent.
	currentExtents []Extent

	// Ordered record of the interesting calls.
	events []string
	// Objects created and not yet destroyed.
	live    int
	counter map[string]int

	waitIdleCalls int
	waitIdleErr   error

	allocCalls []int
	allocErr   error
	allocShort bool
	buffers    int
	freeCalls  int

	submits   int
	submitErr error

	swapchains         []*fakeSwapchain
	createSwapchainErr error
	renderPasses       int
	framebuffers       int
	framebufferErrAt   int
	fences             []*fakeFence
}

func defaultSupport() SurfaceSupport {
	return SurfaceSupport{
		Capabilities: SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  3,
			CurrentExtent:  Extent{Width: UndefinedExtent, Height: UndefinedExtent},
			MinImageExtent: Extent{Width: 1, Height: 1},
			MaxImageExtent: Extent{Width: 4096, Height: 4096},
		},
		Formats: []SurfaceFormat{
			{Format: FormatB8G8R8A8Unorm, ColorSpace: ColorSpaceSrgbNonlinear},
			{Format: FormatB8G8R8A8Srgb, ColorSpace: ColorSpaceSrgbNonlinear},
		},
		PresentModes: []PresentMode{PresentModeFifo, PresentModeMailbox},
	}
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		support:          defaultSupport(),
		depthFormat:      FormatD32Sfloat,
		counter:          map[string]int{},
		framebufferErrAt: -1,
	}
}

func (d *fakeDevice) record(format string, args ...any) {
	d.events = append(d.events, fmt.Sprintf(format, args...))
}

// eventIndex returns the position of the first event equal to name at or
// after from, or -1.
func (d *fakeDevice) eventIndex(name string, from int) int {
	for i := from; i < len(d.events); i++ {
		if d.events[i] == name {
			return i
		}
	}
	return -1
}

func (d *fakeDevice) name(kind string) string {
	n := d.counter[kind]
	d.counter[kind]++
	return fmt.Sprintf("%s%d", kind, n)
}

func (d *fakeDevice) object(kind string) *fakeObject {
	d.live++
	return &fakeObject{device: d, name: d.name(kind)}
}

func (d *fakeDevice) lastSwapchain() *fakeSwapchain {
	return d.swapchains[len(d.swapchains)-1]
}

func (d *fakeDevice) WaitIdle() error {
	d.waitIdleCalls++
	d.record("wait-idle")
	return d.waitIdleErr
}

func (d *fakeDevice) AllocateCommandBuffers(n int) ([]CommandBuffer, error) {
	d.allocCalls = append(d.allocCalls, n)
	if d.allocErr != nil {
		return nil, d.allocErr
	}
	if d.allocShort {
		n--
	}
	buffers := make([]CommandBuffer, n)
	for i := range buffers {
		buffers[i] = &fakeCommandBuffer{device: d, name: fmt.Sprintf("cb%d", i)}
	}
	d.buffers += n
	return buffers, nil
}

func (d *fakeDevice) FreeCommandBuffers(buffers []CommandBuffer) {
	d.freeCalls++
	d.buffers -= len(buffers)
}

func (d *fakeDevice) SurfaceSupport() (SurfaceSupport, error) {
	support := d.support
	if len(d.currentExtents) > 0 {
		support.Capabilities.CurrentExtent = d.currentExtents[0]
		d.currentExtents = d.currentExtents[1:]
	}
	return support, d.supportErr
}

func (d *fakeDevice) DepthFormat() Format {
	return d.depthFormat
}

func (d *fakeDevice) CreateSwapchain(desc SwapchainDesc, old NativeSwapchain) (NativeSwapchain, error) {
	if d.createSwapchainErr != nil {
		return nil, d.createSwapchainErr
	}
	sc := &fakeSwapchain{device: d, desc: desc, old: old, name: d.name("swapchain")}
	for i := uint32(0); i < desc.ImageCount; i++ {
		// Views owned by the native chain are not tracked as live objects.
		sc.images = append(sc.images, &fakeObject{name: fmt.Sprintf("%s.image%d", sc.name, i)})
	}
	d.live++
	d.swapchains = append(d.swapchains, sc)
	d.record("create %s", sc.name)
	return sc, nil
}

func (d *fakeDevice) CreateDepthAttachment(extent Extent, format Format) (ImageView, error) {
	return d.object("depth"), nil
}

func (d *fakeDevice) CreateRenderPass(color Format, depth Format) (RenderPass, error) {
	d.renderPasses++
	return d.object("renderpass"), nil
}

func (d *fakeDevice) CreateFramebuffer(pass RenderPass, attachments []ImageView, extent Extent) (Framebuffer, error) {
	if d.framebufferErrAt == d.framebuffers {
		return nil, errFake
	}
	d.framebuffers++
	return d.object("framebuffer"), nil
}

func (d *fakeDevice) CreateSemaphore() (Semaphore, error) {
	return d.object("semaphore"), nil
}

func (d *fakeDevice) CreateFence(signaled bool) (Fence, error) {
	d.live++
	f := &fakeFence{device: d, name: d.name("fence"), signaled: signaled}
	d.fences = append(d.fences, f)
	return f, nil
}

func (d *fakeDevice) Submit(buffer CommandBuffer, wait Semaphore, signal Semaphore, fence Fence) error {
	if d.submitErr != nil {
		return d.submitErr
	}
	d.submits++
	d.record("submit %s", buffer.(*fakeCommandBuffer).name)
	// The fake GPU finishes instantly.
	fence.(*fakeFence).signaled = true
	return nil
}

type fakeObject struct {
	device    *fakeDevice
	name      string
	destroyed int
}

func (o *fakeObject) Destroy() {
	o.destroyed++
	if o.device != nil && o.destroyed == 1 {
		o.device.live--
	}
}

type fakeFence struct {
	device    *fakeDevice
	name      string
	signaled  bool
	waits     int
	waitErr   error
	destroyed int
}

func (f *fakeFence) Wait(timeout time.Duration) error {
	f.waits++
	f.device.record("wait %s", f.name)
	if f.waitErr != nil {
		return f.waitErr
	}
	if !f.signaled {
		return fmt.Errorf("%s waited while unsignaled: %w", f.name, ErrTimeout)
	}
	return nil
}

func (f *fakeFence) Reset() error {
	f.device.record("reset %s", f.name)
	f.signaled = false
	return nil
}

func (f *fakeFence) Destroy() {
	f.destroyed++
	if f.destroyed == 1 {
		f.device.live--
	}
}

type acquireResult struct {
	status Status
	err    error
}

type fakeSwapchain struct {
	device *fakeDevice
	name   string
	desc   SwapchainDesc
	old    NativeSwapchain
	images []ImageView

	next uint32
	// Consumed before falling back to round robin success.
	acquireResults []acquireResult
	presentResults []Status
	presented      []uint32
	destroyed      int
}

func (s *fakeSwapchain) Images() []ImageView {
	return s.images
}

func (s *fakeSwapchain) AcquireNextImage(timeout time.Duration, signal Semaphore) (uint32, Status, error) {
	status := StatusSuccess
	if len(s.acquireResults) > 0 {
		r := s.acquireResults[0]
		s.acquireResults = s.acquireResults[1:]
		if r.err != nil || r.status == StatusOutOfDate {
			return 0, r.status, r.err
		}
		status = r.status
	}
	index := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	s.device.record("acquire %s.%d", s.name, index)
	return index, status, nil
}

func (s *fakeSwapchain) Present(imageIndex uint32, wait Semaphore) (Status, error) {
	s.presented = append(s.presented, imageIndex)
	s.device.record("present %s.%d", s.name, imageIndex)
	if len(s.presentResults) > 0 {
		status := s.presentResults[0]
		s.presentResults = s.presentResults[1:]
		return status, nil
	}
	return StatusSuccess, nil
}

func (s *fakeSwapchain) Destroy() {
	s.destroyed++
	if s.destroyed == 1 {
		s.device.live--
	}
	s.device.record("destroy %s", s.name)
}

type fakeCommandBuffer struct {
	device    *fakeDevice
	name      string
	recording bool
	calls     []string

	area     Extent
	clear    ClearValues
	viewport [6]float32
	scissor  Extent
}

func (c *fakeCommandBuffer) log(call string) {
	c.calls = append(c.calls, call)
	c.device.record("%s %s", call, c.name)
}

func (c *fakeCommandBuffer) Reset() error {
	c.log("reset")
	c.recording = false
	return nil
}

func (c *fakeCommandBuffer) Begin() error {
	c.log("begin")
	c.recording = true
	return nil
}

func (c *fakeCommandBuffer) End() error {
	c.log("end")
	c.recording = false
	return nil
}

func (c *fakeCommandBuffer) BeginRenderPass(pass RenderPass, framebuffer Framebuffer, area Extent, clear ClearValues) {
	c.log("begin-pass")
	c.area = area
	c.clear = clear
}

func (c *fakeCommandBuffer) EndRenderPass() {
	c.log("end-pass")
}

func (c *fakeCommandBuffer) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	c.log("viewport")
	c.viewport = [6]float32{x, y, width, height, minDepth, maxDepth}
}

func (c *fakeCommandBuffer) SetScissor(area Extent) {
	c.log("scissor")
	c.scissor = area
}

func (c *fakeCommandBuffer) called(call string) bool {
	return slices.Contains(c.calls, call)
}

// requirePrecondition asserts that fn panics with an ErrPrecondition error.
func requirePrecondition(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a precondition panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.ErrorIs(t, err, ErrPrecondition)
	}()
	fn()
}
