package camera

import "github.com/nasa-jpl/cameraunit/util"

// Sensor describes the geometry limits used to validate an ROI
type Sensor struct {
	// Width and Height are the unbinned sensor dimensions
	Width, Height int

	// Legacy sensors (USB2 ASI120 family) require the pixel count of the
	// region to be a multiple of 1024
	Legacy bool
}

// ValidateROI checks a requested region against the sensor and the set of
// supported binning factors, and returns it normalized to binned pixel space
// with width a multiple of 8 and height a multiple of 2.
func ValidateROI(req ROI, s Sensor, bins []int) (ROI, error) {
	if req.BinX != req.BinY {
		return ROI{}, Errorf(KindInvalidSize, "non-square binning %dx%d is not supported", req.BinX, req.BinY)
	}
	bin := req.BinX
	if bin < 1 {
		return ROI{}, Errorf(KindInvalidSize, "bin %d must be at least 1", bin)
	}
	if !util.IntSliceContains(bins, bin) {
		return ROI{}, Errorf(KindInvalidSize, "bin %d is not in the supported set %v", bin, bins)
	}

	out := req
	if out.XMax <= 0 {
		out.XMax = s.Width
	}
	if out.YMax <= 0 {
		out.YMax = s.Height
	}
	out.XMin /= bin
	out.XMax /= bin
	out.YMin /= bin
	out.YMax /= bin

	w := out.XMax - out.XMin
	h := out.YMax - out.YMin
	if w < 0 || h < 0 {
		return ROI{}, Errorf(KindInvalidSize, "negative region %dx%d", w, h)
	}
	w -= w % 8
	h -= h % 2
	out.XMax = out.XMin + w
	out.YMax = out.YMin + h

	if out.XMax > s.Width/bin {
		return ROI{}, Errorf(KindOutOfBounds, "x_max %d exceeds binned sensor width %d", out.XMax, s.Width/bin)
	}
	if out.YMax > s.Height/bin {
		return ROI{}, Errorf(KindOutOfBounds, "y_max %d exceeds binned sensor height %d", out.YMax, s.Height/bin)
	}
	if s.Legacy && (w*h)%1024 != 0 {
		return ROI{}, Errorf(KindInvalidSize, "region %dx%d must have a pixel count divisible by 1024", w, h)
	}
	return out, nil
}
