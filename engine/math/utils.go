package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// A high bound below low is treated as unbounded, which is how
// Vulkan reports "no maximum" for image counts.
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if high >= low && f > high {
		return high
	}
	return f
}

// AlignUp rounds size up to a multiple of align, which must be a power of two.
// An align of zero returns size unchanged.
func AlignUp[T constraints.Unsigned](size, align T) T {
	if align == 0 {
		return size
	}
	return (size + align - 1) &^ (align - 1)
}
