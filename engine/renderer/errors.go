package renderer

import (
	"errors"
	"fmt"
)

var (
	// The surface reports no formats or no present modes.
	ErrUnsupportedSurface = errors.New("surface has no supported formats or present modes")
	// A device object or command buffer could not be allocated.
	ErrAllocation = errors.New("device allocation failed")
	ErrSubmit     = errors.New("command buffer submission failed")
	ErrDeviceLost = errors.New("device lost")
	ErrTimeout    = errors.New("wait timed out")
	// Submitting or presenting an image index that was not just acquired.
	ErrImageNotAcquired = errors.New("image index was not acquired")
	// A recreated swapchain changed its color or depth format.
	ErrFormatChanged = errors.New("swapchain image or depth format has changed")
	// Frame lifecycle misuse, e.g. BeginFrame twice in a row.
	ErrPrecondition = errors.New("frame lifecycle precondition violated")
	// The surface capabilities report a zero extent, e.g. the window was
	// minimized after its size was read. Recreation waits and retries.
	ErrZeroExtent = errors.New("surface extent is zero")
)

func precondition(condition bool, msg string) {
	if !condition {
		panic(fmt.Errorf("%w: %s", ErrPrecondition, msg))
	}
}
