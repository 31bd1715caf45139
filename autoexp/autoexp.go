/*Package autoexp computes the next exposure time and binning for a camera
from the brightness of the previous frame.

The estimator is proportional and single-step: it samples the pixel value
at a percentile of the frame, scales the exposure so that value lands on the
target, and trades binning for exposure time when the result would exceed
the allowed maximum.  It assumes a linear sensor response and keeps no
history between frames.
*/
package autoexp

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// MinExposure is the shortest exposure Compute will recommend
	MinExposure = 10 * time.Microsecond

	// epsilon floors the sampled value before dividing by it
	epsilon = 1e-5
)

var (
	// ErrEmptyFrame is returned when there are no pixels to sample
	ErrEmptyFrame = errors.New("autoexp: frame has no pixels")

	// ErrBadParams is returned when the parameters cannot produce a result
	ErrBadParams = errors.New("autoexp: invalid parameters")
)

// Setting is the exposure state of a frame
type Setting struct {
	Exposure time.Duration
	BinX     int
	BinY     int
}

// Params tune the optimizer
type Params struct {
	// Percentile in [0, 100] of the pixel value to steer
	Percentile float64

	// Target is the desired pixel value at Percentile, on the scale of the
	// pixels passed to Compute
	Target float64

	// Tolerance is the half-width of the band around Target that counts as converged
	Tolerance float64

	// MaxExposure caps the recommended exposure
	MaxExposure time.Duration

	// MaxBin caps the recommended binning
	MaxBin int

	// Exclusion is the number of brightest pixels never sampled
	Exclusion int
}

func (p Params) validate() error {
	if p.Percentile < 0 || p.Percentile > 100 {
		return fmt.Errorf("%w: percentile %f outside [0, 100]", ErrBadParams, p.Percentile)
	}
	if p.MaxExposure < MinExposure {
		return fmt.Errorf("%w: max exposure %v below %v", ErrBadParams, p.MaxExposure, MinExposure)
	}
	if p.MaxBin < 1 {
		return fmt.Errorf("%w: max bin %d", ErrBadParams, p.MaxBin)
	}
	if p.Exclusion < 0 || p.Tolerance < 0 || p.Target <= 0 {
		return fmt.Errorf("%w: target %f, tolerance %f, exclusion %d", ErrBadParams, p.Target, p.Tolerance, p.Exclusion)
	}
	return nil
}

// Result is the recommendation for the next frame
type Result struct {
	Setting

	// Value is the sampled pixel value
	Value float64

	// Index is the rank of the sampled pixel in the sorted frame
	Index int

	// Converged is true when Value was already within tolerance of the target
	Converged bool
}

// Compute recommends the exposure and binning for the next frame
func Compute(pixels []uint16, cur Setting, p Params) (Result, error) {
	if err := p.validate(); err != nil {
		return Result{}, err
	}
	val, idx, err := Percentile(pixels, p.Percentile, p.Exclusion)
	if err != nil {
		return Result{}, err
	}
	res := Result{Setting: cur, Value: val, Index: idx}
	if math.Abs(p.Target-val) < p.Tolerance {
		res.Converged = true
		return res, nil
	}

	if val < epsilon {
		val = epsilon
	}
	exp := cur.Exposure.Seconds() * p.Target / val
	max := p.MaxExposure.Seconds()
	bin := cur.BinX

	if cur.BinX == cur.BinY {
		if exp > max {
			for exp > max && bin*2 <= p.MaxBin {
				bin *= 2
				exp /= 4
			}
		} else {
			for exp*4 <= max && bin >= 2 {
				bin /= 2
				exp *= 4
			}
		}
	}

	if exp > max {
		exp = max
	}
	if exp < MinExposure.Seconds() {
		exp = MinExposure.Seconds()
	}
	if bin < 1 {
		bin = 1
	}
	if bin > p.MaxBin {
		bin = p.MaxBin
	}
	res.Exposure = time.Duration(math.Round(exp * 1e6)) * time.Microsecond
	res.BinX = bin
	if cur.BinX == cur.BinY {
		res.BinY = bin
	}
	return res, nil
}

// Percentile returns the pixel value at the percentile rank of the sorted
// frame along with its index.  A rank within exclusion pixels of the top is
// moved down to skip the brightest pixels.
func Percentile(pixels []uint16, pct float64, exclusion int) (float64, int, error) {
	n := len(pixels)
	if n == 0 {
		return 0, 0, ErrEmptyFrame
	}
	var idx int
	if pct >= 99.9 {
		idx = n - 1
	} else {
		idx = int(math.Floor(pct * float64(n-1) / 100))
	}
	if exclusion > 0 && idx > n-1-exclusion {
		idx = n - 1 - exclusion
		if idx < 0 {
			idx = 0
		}
	}
	return float64(rank(pixels, idx)), idx, nil
}

// rank finds the idx-th smallest value with a counting histogram
func rank(pixels []uint16, idx int) uint16 {
	var hist [65536]int
	for _, v := range pixels {
		hist[v]++
	}
	seen := 0
	for v, c := range hist {
		seen += c
		if seen > idx {
			return uint16(v)
		}
	}
	return math.MaxUint16
}
