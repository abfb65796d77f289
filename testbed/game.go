package testbed

import (
	"math"

	"github.com/spaghettifunk/framer/engine"
	"github.com/spaghettifunk/framer/engine/core"
)

// Seconds for one full brightness cycle of the clear color.
const pulsePeriod = 4.0

type TestGame struct {
	*engine.Game
}

type gameState struct {
	elapsed float64
	width   uint32
	height  uint32
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			State: &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize() error {
	core.LogInfo("testbed initialized, press ESC to quit")
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	g.state().elapsed += deltaTime
	return nil
}

// Render pulses the configured clear color. The renderer applies it when the
// next render pass begins.
func (g *TestGame) Render(frame *engine.Frame) error {
	frame.Renderer.SetClearColor(pulse(frame.BaseClearColor, g.state().elapsed))
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	s := g.state()
	s.width, s.height = width, height
	core.LogInfo("testbed surface is now %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("testbed ran for %.1f seconds", g.state().elapsed)
	return nil
}

// pulse scales the color channels of base between 50% and 100% of their
// value. Alpha is kept.
func pulse(base [4]float32, elapsed float64) [4]float32 {
	factor := float32(0.75 + 0.25*math.Sin(2*math.Pi*elapsed/pulsePeriod))
	return [4]float32{base[0] * factor, base[1] * factor, base[2] * factor, base[3]}
}
