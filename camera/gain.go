package camera

import (
	"math"

	"github.com/nasa-jpl/cameraunit/util"
)

// NormalizeGain maps a raw gain in [min, max] onto [0, 1]
func NormalizeGain(raw, min, max int64) float64 {
	if max <= min {
		return 0
	}
	return float64(raw-min) / float64(max-min)
}

// RawGain is the inverse of NormalizeGain, rounding to the nearest device unit.
// 0 and 1 map exactly to min and max, and n is clamped to [0, 1].
func RawGain(n float64, min, max int64) int64 {
	if max <= min {
		return min
	}
	n = util.Clamp(n, 0, 1)
	return int64(math.Round(n*float64(max-min))) + min
}
