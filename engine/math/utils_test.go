package math

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	for idx, tc := range []struct {
		v, low, high, want uint32
	}{
		{800, 1, 4096, 800},
		{0, 1, 4096, 1},
		{5000, 1, 4096, 4096},
		{1, 1, 1, 1},
	} {
		t.Run(fmt.Sprintf("%d/clamp(%d,%d,%d)", idx, tc.v, tc.low, tc.high), func(t *testing.T) {
			require.Equal(t, tc.want, Clamp(tc.v, tc.low, tc.high))
		})
	}
	require.Equal(t, float32(0.5), Clamp(float32(0.5), 0, 1))
	require.Equal(t, -1.0, Clamp(-3.0, -1, 1))
}

func TestWrap(t *testing.T) {
	require.Equal(t, 1, Wrap(0, 3))
	require.Equal(t, 0, Wrap(2, 3))
	require.Equal(t, uint32(0), Wrap(uint32(0), 1))
	require.Equal(t, 0, Wrap(5, 0))
}
