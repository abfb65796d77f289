package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/spaghettifunk/framer/engine/config"
	"github.com/spaghettifunk/framer/engine/core"
	"github.com/spaghettifunk/framer/engine/platform"
	"github.com/spaghettifunk/framer/engine/renderer"
	"github.com/spaghettifunk/framer/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Frames between two metrics log lines.
const statsInterval = 600

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool
	isSuspended  bool

	config     config.Config
	configPath string
	watcher    *config.Watcher

	platform *platform.Platform
	backend  *vulkan.Backend
	renderer *renderer.Renderer

	width    uint32
	height   uint32
	clock    *core.Clock
	metrics  *core.Metrics
	lastTime float64
	frames   uint64
}

func New(g *Game, cfg config.Config, configPath string) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g.ApplicationConfig = NewApplicationConfig(cfg)
	core.SetLogLevel(g.ApplicationConfig.LogLevel)

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		configPath:   configPath,
		platform:     platform.New(),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		width:        g.ApplicationConfig.StartWidth,
		height:       g.ApplicationConfig.StartHeight,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if !core.EventSystemInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)

	if err := e.platform.Startup(e.gameInstance.ApplicationConfig.windowConfig()); err != nil {
		return err
	}

	backend, err := vulkan.New(e.platform, backendOptions(e.config))
	if err != nil {
		return err
	}
	e.backend = backend

	opts, err := rendererOptions(e.config)
	if err != nil {
		return err
	}
	r, err := renderer.New(e.platform, e.backend, opts)
	if err != nil {
		return err
	}
	e.renderer = r

	if e.configPath != "" {
		w, err := config.NewWatcher(e.configPath)
		if err != nil {
			// Hot reload is a convenience; run without it.
			core.LogWarn("config hot reload disabled: %s", err)
		} else {
			e.watcher = w
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// Run drives frames until the window closes, a quit event arrives or ctx is
// cancelled. A panic below, such as a frame method called out of order, is
// returned as an error.
func (e *Engine) Run(ctx context.Context) (err error) {
	defer core.CheckError(&err)

	e.currentStage = EngineStageRunning
	e.isRunning = true

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		if ctx.Err() != nil {
			core.LogInfo("interrupted, shutting down.")
			break
		}
		if !e.platform.PumpMessages() {
			e.isRunning = false
			break
		}
		e.applyConfigUpdates()

		if e.isSuspended {
			// Nothing to present to; sleep until the window changes.
			e.platform.WaitForEvents()
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := e.platform.GetAbsoluteTime()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				return fmt.Errorf("game update failed: %w", err)
			}
		}

		drawn, err := e.renderer.DrawFrame(func(cb renderer.CommandBuffer) error {
			if e.gameInstance.FnRender == nil {
				return nil
			}
			return e.gameInstance.FnRender(&Frame{
				Renderer:       e.renderer,
				CommandBuffer:  cb,
				BaseClearColor: e.config.Renderer.ClearColor,
				DeltaTime:      delta,
			})
		})
		if errors.Is(err, core.ErrWindowClosed) {
			e.isRunning = false
			break
		}
		if err != nil {
			return fmt.Errorf("draw frame failed: %w", err)
		}

		if drawn {
			e.metrics.Update(e.platform.GetAbsoluteTime() - frameStartTime)
			e.frames++
			if e.frames%statsInterval == 0 {
				stats := e.renderer.Stats()
				core.LogDebug("fps %.1f, frame %.3f ms, presented %d, skipped %d, recreations %d",
					e.metrics.FPS(), e.metrics.FrameTime(), stats.FramesPresented, stats.FramesSkipped, stats.Recreations)
			}
		}

		e.lastTime = currentTime
	}

	// Let the device finish before anything is torn down.
	return e.backend.WaitIdle()
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.clock.Stop()

	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	if e.watcher != nil {
		errs = append(errs, e.watcher.Close())
		e.watcher = nil
	}
	if e.renderer != nil {
		e.renderer.Destroy()
		e.renderer = nil
	}
	if e.backend != nil {
		e.backend.Destroy()
		e.backend = nil
	}
	errs = append(errs, e.platform.Shutdown())
	errs = append(errs, core.EventSystemShutdown())
	return errors.Join(errs...)
}

// GetFramebufferSize returns the width and height (in this order) of the
// application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

// applyConfigUpdates drains the watcher without blocking. Only the clear
// color and the log level change live.
func (e *Engine) applyConfigUpdates() {
	if e.watcher == nil {
		return
	}
	for {
		select {
		case cfg := <-e.watcher.Updates():
			core.SetLogLevel(cfg.LogLevel())
			e.renderer.SetClearColor(cfg.Renderer.ClearColor)
			if cfg.Window != e.config.Window || cfg.Renderer.PresentMode != e.config.Renderer.PresentMode ||
				cfg.Renderer.ImageCount != e.config.Renderer.ImageCount || cfg.Renderer.Validation != e.config.Renderer.Validation ||
				cfg.Renderer.AcquireTimeoutMS != e.config.Renderer.AcquireTimeoutMS {
				core.LogWarn("window and swapchain settings in %s take effect after a restart", e.configPath)
			}
			e.config.Renderer.ClearColor = cfg.Renderer.ClearColor
			e.config.Log = cfg.Log
			core.LogInfo("configuration reloaded")
		case err := <-e.watcher.Errors():
			core.LogWarn("configuration not reloaded: %s", err)
		default:
			return
		}
	}
}

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	if ke.KeyCode == core.KEY_ESCAPE {
		// Technically firing an event to itself, but there may be other listeners.
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
		// Block anything else from processing this.
		return true
	}
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}

	width, height := se.WindowWidth, se.WindowHeight
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	// Other listeners may want to know as well.
	return false
}
