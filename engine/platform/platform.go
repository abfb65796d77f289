package platform

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/framer/engine/core"
	"github.com/spaghettifunk/framer/engine/renderer"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type WindowConfig struct {
	Title     string
	X, Y      uint32
	Width     uint32
	Height    uint32
	Resizable bool
}

// Platform owns the GLFW window. It is the renderer's Surface.
type Platform struct {
	Window *glfw.Window

	startTime     float64
	resizePending bool
}

var _ renderer.Surface = (*Platform)(nil)

// Upper bound on a suspended wait so shutdown requests are still noticed.
const eventWaitSeconds = 0.25

func New() *Platform {
	return &Platform{}
}

func (p *Platform) Startup(cfg WindowConfig) error {
	if err := glfw.Init(); err != nil {
		err = fmt.Errorf("failed to initialize glfw: %w", err)
		core.LogError(err.Error())
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		err := fmt.Errorf("glfw reports no Vulkan loader on this system")
		core.LogError(err.Error())
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, boolHint(cfg.Resizable))
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		err = fmt.Errorf("failed to create window: %w", err)
		core.LogError(err.Error())
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.onKey)
	p.Window.SetFramebufferSizeCallback(p.onFramebufferSize)
	p.Window.SetCloseCallback(p.onClose)
	p.Window.SetPos(int(cfg.X), int(cfg.Y))
	p.Window.Show()

	p.startTime = glfw.GetTime()
	core.LogInfo("window %q created at %dx%d", cfg.Title, cfg.Width, cfg.Height)

	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events and reports whether the
// application should keep running.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.ShouldClose()
}

// GetAbsoluteTime returns the seconds elapsed since Startup.
func (p *Platform) GetAbsoluteTime() float64 {
	return glfw.GetTime() - p.startTime
}

func (p *Platform) GetRequiredExtensionNames() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// CreateWindowSurface returns the raw VkSurfaceKHR handle for the window.
func (p *Platform) CreateWindowSurface(instance interface{}) (uintptr, error) {
	return p.Window.CreateWindowSurface(instance, nil)
}

func (p *Platform) CurrentExtent() renderer.Extent {
	width, height := p.Window.GetFramebufferSize()
	return renderer.Extent{Width: uint32(max(width, 0)), Height: uint32(max(height, 0))}
}

func (p *Platform) ShouldClose() bool {
	return p.Window == nil || p.Window.ShouldClose()
}

func (p *Platform) ResizePending() bool {
	return p.resizePending
}

func (p *Platform) ClearResizePending() {
	p.resizePending = false
}

func (p *Platform) WaitForEvents() {
	glfw.WaitEventsTimeout(eventWaitSeconds)
}

func (p *Platform) onKey(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	code := translateKey(key)
	switch action {
	case glfw.Press:
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: code}})
	case glfw.Release:
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_KEY_RELEASED, Data: &core.KeyEvent{KeyCode: code}})
	}
}

func (p *Platform) onFramebufferSize(w *glfw.Window, width, height int) {
	p.resizePending = true
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_RESIZED,
		Data: &core.SystemEvent{WindowWidth: uint32(max(width, 0)), WindowHeight: uint32(max(height, 0))},
	})
}

func (p *Platform) onClose(w *glfw.Window) {
	core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}

func translateKey(key glfw.Key) core.KeyCode {
	switch {
	case key == glfw.KeyEscape:
		return core.KEY_ESCAPE
	case key == glfw.KeyEnter:
		return core.KEY_ENTER
	case key == glfw.KeySpace:
		return core.KEY_SPACE
	case key == glfw.KeyTab:
		return core.KEY_TAB
	case key == glfw.KeyBackspace:
		return core.KEY_BACKSPACE
	case key == glfw.KeyLeft:
		return core.KEY_LEFT
	case key == glfw.KeyUp:
		return core.KEY_UP
	case key == glfw.KeyRight:
		return core.KEY_RIGHT
	case key == glfw.KeyDown:
		return core.KEY_DOWN
	case key >= glfw.KeyA && key <= glfw.KeyZ:
		return core.KEY_A + core.KeyCode(key-glfw.KeyA)
	case key >= glfw.KeyF1 && key <= glfw.KeyF12:
		return core.KEY_F1 + core.KeyCode(key-glfw.KeyF1)
	}
	return core.KEY_UNKNOWN
}

func boolHint(v bool) int {
	if v {
		return glfw.True
	}
	return glfw.False
}
