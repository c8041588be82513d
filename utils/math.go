package utils

import (
	"math"
)

// Clamp limits x to the closed range [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(x, hi))
}

// RoundHalfAway rounds x to the nearest integer, rounding halves away from zero.
func RoundHalfAway(x float64) int {
	return int(math.Round(x))
}

// Sign returns -1, 0 or 1 according to the sign of x.
func Sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// AbsInt returns the absolute value of n.
func AbsInt(n int) int {
	if n < 0 {
		return -1 * n
	}
	return n
}
