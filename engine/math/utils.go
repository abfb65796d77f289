package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// Wrap returns (v + 1) modulo n, the next slot of a ring of size n.
func Wrap[T constraints.Integer](v, n T) T {
	if n <= 0 {
		return 0
	}
	return (v + 1) % n
}
