package renderer

import (
	"fmt"

	"github.com/spaghettifunk/framer/engine/core"
)

// CommandBufferPool keeps one reusable command buffer per swapchain image.
type CommandBufferPool struct {
	device  Device
	buffers []CommandBuffer
}

func NewCommandBufferPool(device Device) *CommandBufferPool {
	return &CommandBufferPool{device: device}
}

// Allocate requests exactly n buffers from the device. The pool must be empty.
func (p *CommandBufferPool) Allocate(n int) error {
	if len(p.buffers) != 0 {
		return fmt.Errorf("command buffer pool already holds %d buffers, free it first", len(p.buffers))
	}
	if n <= 0 {
		return fmt.Errorf("%w: cannot allocate %d command buffers", ErrAllocation, n)
	}
	buffers, err := p.device.AllocateCommandBuffers(n)
	if err != nil {
		err = fmt.Errorf("%w: failed to allocate %d command buffers: %w", ErrAllocation, n, err)
		core.LogError(err.Error())
		return err
	}
	if len(buffers) != n {
		p.device.FreeCommandBuffers(buffers)
		err = fmt.Errorf("%w: device returned %d command buffers, want %d", ErrAllocation, len(buffers), n)
		core.LogError(err.Error())
		return err
	}
	p.buffers = buffers
	core.LogDebug("allocated %d command buffers", n)
	return nil
}

// Free hands every buffer back to the device.
func (p *CommandBufferPool) Free() {
	if len(p.buffers) == 0 {
		return
	}
	p.device.FreeCommandBuffers(p.buffers)
	p.buffers = nil
}

func (p *CommandBufferPool) Size() int {
	return len(p.buffers)
}

func (p *CommandBufferPool) Get(index uint32) CommandBuffer {
	return p.buffers[index]
}
