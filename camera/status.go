package camera

import "fmt"

// ExposureStatus is the hardware-reported exposure state
type ExposureStatus int

const (
	// ExpIdle means the camera is ready to start an exposure
	ExpIdle ExposureStatus = iota
	// ExpWorking means an exposure is in progress
	ExpWorking
	// ExpSuccess means the exposure finished and a frame is ready
	ExpSuccess
	// ExpFailed means the exposure failed and must be restarted
	ExpFailed
)

func (s ExposureStatus) String() string {
	switch s {
	case ExpIdle:
		return "Idle"
	case ExpWorking:
		return "Working"
	case ExpSuccess:
		return "Success"
	case ExpFailed:
		return "Failed"
	default:
		return fmt.Sprintf("ExposureStatus(%d)", int(s))
	}
}

// ToExposureStatus converts a raw device value, returning ErrInvalidMode
// for values outside the known set
func ToExposureStatus(v int) (ExposureStatus, error) {
	if v < int(ExpIdle) || v > int(ExpFailed) {
		return ExpIdle, Errorf(KindInvalidMode, "unknown exposure status %d", v)
	}
	return ExposureStatus(v), nil
}

// PixelFormat is the readout format of the sensor
type PixelFormat int

const (
	// Raw8 is 8-bit mono
	Raw8 PixelFormat = iota
	// RGB24 is 8 bits per channel, interleaved, in B G R order on the wire
	RGB24
	// Raw16 is 16-bit little-endian mono
	Raw16
	// Y8 is 8-bit luminance, only produced by color sensors
	Y8
)

// BytesPerPixel is the buffer size per pixel for the format
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case RGB24:
		return 3
	case Raw16:
		return 2
	default:
		return 1
	}
}

func (f PixelFormat) String() string {
	switch f {
	case Raw8:
		return "RAW8"
	case RGB24:
		return "RGB24"
	case Raw16:
		return "RAW16"
	case Y8:
		return "Y8"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// ToPixelFormat converts a raw device value, returning ErrInvalidMode for
// values outside the known set
func ToPixelFormat(v int) (PixelFormat, error) {
	if v < int(Raw8) || v > int(Y8) {
		return Raw8, Errorf(KindInvalidMode, "unknown pixel format %d", v)
	}
	return PixelFormat(v), nil
}

// ParsePixelFormat looks up a format by name (RAW8, RGB24, RAW16, Y8)
func ParsePixelFormat(s string) (PixelFormat, error) {
	for _, f := range []PixelFormat{Raw8, RGB24, Raw16, Y8} {
		if f.String() == s {
			return f, nil
		}
	}
	return Raw8, Errorf(KindInvalidImageType, "unknown pixel format %q", s)
}
