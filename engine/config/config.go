package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/framer/engine/core"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Present modes accepted by renderer.present_mode.
const (
	PresentModeImmediate   = "immediate"
	PresentModeMailbox     = "mailbox"
	PresentModeFifo        = "fifo"
	PresentModeFifoRelaxed = "fifo_relaxed"
)

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Log      LogConfig      `toml:"log"`
}

type WindowConfig struct {
	// The application name used in windowing.
	Title string `toml:"title"`
	// Window starting width.
	Width uint32 `toml:"width"`
	// Window starting height.
	Height uint32 `toml:"height"`
	// Window starting position.
	X         uint32 `toml:"x"`
	Y         uint32 `toml:"y"`
	Resizable bool   `toml:"resizable"`
}

type RendererConfig struct {
	PresentMode string `toml:"present_mode"`
	// Zero lets the swapchain pick min_image_count + 1.
	ImageCount       uint32     `toml:"image_count"`
	AcquireTimeoutMS uint32     `toml:"acquire_timeout_ms"`
	ClearColor       [4]float32 `toml:"clear_color"`
	Validation       bool       `toml:"validation"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:     "Framer",
			Width:     800,
			Height:    600,
			X:         100,
			Y:         100,
			Resizable: true,
		},
		Renderer: RendererConfig{
			PresentMode:      PresentModeMailbox,
			ImageCount:       0,
			AcquireTimeoutMS: 1000,
			ClearColor:       [4]float32{0.01, 0.01, 0.01, 1.0},
			Validation:       false,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path on top of the defaults. A missing file is
// not an error: the defaults are returned.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		core.LogWarn("config file %s not found, using defaults", path)
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("%w: window size must be non-zero, got %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	}
	switch c.Renderer.PresentMode {
	case PresentModeImmediate, PresentModeMailbox, PresentModeFifo, PresentModeFifoRelaxed:
	default:
		return fmt.Errorf("%w: unknown present mode %q", ErrInvalidConfig, c.Renderer.PresentMode)
	}
	if c.Renderer.AcquireTimeoutMS == 0 {
		return fmt.Errorf("%w: acquire_timeout_ms must be positive", ErrInvalidConfig)
	}
	for i, v := range c.Renderer.ClearColor {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: clear_color[%d] = %f is outside [0, 1]", ErrInvalidConfig, i, v)
		}
	}
	if _, err := core.ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) AcquireTimeout() time.Duration {
	return time.Duration(c.Renderer.AcquireTimeoutMS) * time.Millisecond
}

func (c Config) LogLevel() core.LogLevel {
	l, _ := core.ParseLogLevel(c.Log.Level)
	return l
}
