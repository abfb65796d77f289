package engine

import (
	"github.com/spaghettifunk/framer/engine/renderer"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

// Frame is handed to the game while the swapchain render pass is open.
type Frame struct {
	Renderer      *renderer.Renderer
	CommandBuffer renderer.CommandBuffer
	// Clear color from the configuration, before the game changes it.
	BaseClearColor [4]float32
	DeltaTime      float64
}

type Initialize func() error
type Update func(deltaTime float64) error
type Render func(frame *Frame) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
