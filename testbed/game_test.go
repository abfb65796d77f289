package testbed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPulseStaysWithinRange(t *testing.T) {
	base := [4]float32{0.4, 0.8, 1.0, 1.0}

	for name, tc := range map[string]struct {
		elapsed float64
		want    []float32
	}{
		"start":  {0, []float32{0.3, 0.6, 0.75, 1.0}},
		"peak":   {pulsePeriod / 4, []float32{0.4, 0.8, 1.0, 1.0}},
		"trough": {3 * pulsePeriod / 4, []float32{0.2, 0.4, 0.5, 1.0}},
	} {
		t.Run(name, func(t *testing.T) {
			got := pulse(base, tc.elapsed)
			assert.InDeltaSlice(t, tc.want, got[:], 1e-6)
		})
	}
}

func TestGameHooks(t *testing.T) {
	g := NewTestGame()
	require.NoError(t, g.FnInitialize())
	require.NoError(t, g.FnUpdate(0.5))
	require.NoError(t, g.FnUpdate(0.25))
	require.NoError(t, g.FnOnResize(1024, 768))

	s := g.state()
	assert.InDelta(t, 0.75, s.elapsed, 1e-9)
	assert.Equal(t, uint32(1024), s.width)
	assert.Equal(t, uint32(768), s.height)
	require.NoError(t, g.FnShutdown())
}
