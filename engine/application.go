package engine

import (
	"github.com/spaghettifunk/framer/engine/config"
	"github.com/spaghettifunk/framer/engine/core"
	"github.com/spaghettifunk/framer/engine/platform"
	"github.com/spaghettifunk/framer/engine/renderer"
	"github.com/spaghettifunk/framer/engine/renderer/vulkan"
)

type ApplicationConfig struct {
	// Window starting position x axis.
	StartPosX uint32
	// Window starting position y axis.
	StartPosY uint32
	// Window starting width.
	StartWidth uint32
	// Window starting height.
	StartHeight uint32
	// The application name used in windowing.
	Name      string
	Resizable bool
	LogLevel  core.LogLevel
}

func NewApplicationConfig(cfg config.Config) *ApplicationConfig {
	return &ApplicationConfig{
		StartPosX:   cfg.Window.X,
		StartPosY:   cfg.Window.Y,
		StartWidth:  cfg.Window.Width,
		StartHeight: cfg.Window.Height,
		Name:        cfg.Window.Title,
		Resizable:   cfg.Window.Resizable,
		LogLevel:    cfg.LogLevel(),
	}
}

func (a *ApplicationConfig) windowConfig() platform.WindowConfig {
	return platform.WindowConfig{
		Title:     a.Name,
		X:         a.StartPosX,
		Y:         a.StartPosY,
		Width:     a.StartWidth,
		Height:    a.StartHeight,
		Resizable: a.Resizable,
	}
}

func backendOptions(cfg config.Config) vulkan.Options {
	return vulkan.Options{
		ApplicationName: cfg.Window.Title,
		Validation:      cfg.Renderer.Validation,
	}
}

// rendererOptions maps the [renderer] section onto the renderer options.
// The config is validated, so the present mode always parses.
func rendererOptions(cfg config.Config) (renderer.Options, error) {
	mode, err := renderer.ParsePresentMode(cfg.Renderer.PresentMode)
	if err != nil {
		return renderer.Options{}, err
	}
	return renderer.Options{
		SwapChain: renderer.SwapChainOptions{
			ImageCount:     cfg.Renderer.ImageCount,
			PresentMode:    mode,
			AcquireTimeout: cfg.AcquireTimeout(),
		},
		ClearColor: cfg.Renderer.ClearColor,
	}, nil
}
