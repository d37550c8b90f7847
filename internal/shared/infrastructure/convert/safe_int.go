// Package convert provides clamped integer conversions for configuration
// values and retry arithmetic.
package convert

import "math"

// IntToUintClamped converts an int to uint, clamping negative values to 0.
func IntToUintClamped(v int) uint {
	if v < 0 {
		return 0
	}
	return uint(v)
}

// IntToUint32Clamped converts an int to uint32, clamping to [0, MaxUint32].
func IntToUint32Clamped(v int) uint32 {
	if v < 0 {
		return 0
	}
	if uint64(v) > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}
