package util

import "time"

// Now returns the current wall clock in nanoseconds.
func Now() uint64 {
	return uint64(time.Now().UnixNano())
}

// CalcAvg folds newVal into a 4:1 exponential running average.
func CalcAvg(oldVal uint64, newVal uint64) uint64 {
	return (oldVal - (oldVal >> 2)) + (newVal >> 2)
}

// SaturatingSub returns a-b, clamped at zero.
func SaturatingSub(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return 0
}
