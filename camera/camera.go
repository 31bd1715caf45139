/*Package camera describes a standard set of interfaces for control of scientific cameras

Info contains the read-only surface of a camera (identity, sensor geometry,
thermal state, capture activity) while Unit extends it with the mutable control
surface (exposure, gain, offset, ROI, shutter, capture).  A driver which does
not expose a capability embeds Unsupported and only overrides what the
hardware can actually do; everything else reports ErrNotImplemented.

A driver and any number of read-only handles for the same physical camera
share a single *Device, which owns the hardware identity and the capturing
flag.

*/
package camera

import (
	"context"
	"fmt"
	"time"

	"github.com/nasa-jpl/cameraunit/imagedata"
	"github.com/nasa-jpl/cameraunit/temperature"
)

// ROI describes the region of the sensor read out by a capture, along with
// the binning applied to it.  Once accepted by a driver, the coordinates are
// in binned pixel space.
type ROI struct {
	// XMin is the left edge of the region
	XMin int `json:"xMin" yaml:"XMin" koanf:"XMin"`

	// XMax is one past the right edge of the region.  Zero or negative means
	// the full sensor width
	XMax int `json:"xMax" yaml:"XMax" koanf:"XMax"`

	// YMin is the top edge of the region
	YMin int `json:"yMin" yaml:"YMin" koanf:"YMin"`

	// YMax is one past the bottom edge of the region.  Zero or negative
	// means the full sensor height
	YMax int `json:"yMax" yaml:"YMax" koanf:"YMax"`

	// BinX is the horizontal binning factor
	BinX int `json:"binX" yaml:"BinX" koanf:"BinX"`

	// BinY is the vertical binning factor
	BinY int `json:"binY" yaml:"BinY" koanf:"BinY"`
}

// FullFrame is an ROI covering the whole sensor at the given binning
func FullFrame(bin int) ROI {
	return ROI{BinX: bin, BinY: bin}
}

// Width is the width of the region in pixels
func (r ROI) Width() int {
	return r.XMax - r.XMin
}

// Height is the height of the region in pixels
func (r ROI) Height() int {
	return r.YMax - r.YMin
}

// Rebin converts an accepted region back to unbinned sensor coordinates and
// requests bin, so the same area can be passed to SetROI at a new binning
func (r ROI) Rebin(bin int) ROI {
	bx, by := r.BinX, r.BinY
	if bx < 1 {
		bx = 1
	}
	if by < 1 {
		by = 1
	}
	return ROI{
		XMin: r.XMin * bx, XMax: r.XMax * bx,
		YMin: r.YMin * by, YMax: r.YMax * by,
		BinX: bin, BinY: bin,
	}
}

func (r ROI) String() string {
	return fmt.Sprintf("(ROI: x_min = %d, x_max = %d, y_min = %d, y_max = %d, bin_x = %d, bin_y = %d)",
		r.XMin, r.XMax, r.YMin, r.YMax, r.BinX, r.BinY)
}

// Info is the read-only surface of a camera.  It is safe to hold an Info in a
// goroutine separate from the one performing captures.
type Info interface {
	// Ready is true once the camera is open and initialized
	Ready() bool

	// Name is the human readable name of the camera
	Name() string

	// UUID returns the user-assignable identifier of the camera, if it has one
	UUID() (string, error)

	// Capturing reports if an exposure is in progress.  If the answer cannot
	// be determined without blocking, it is true.
	Capturing() bool

	// SetTemperature sets the cooler setpoint and returns the setpoint
	// confirmed by the hardware
	SetTemperature(temperature.Celsius) (temperature.Celsius, error)

	// Temperature gets the current sensor temperature
	Temperature() (temperature.Celsius, error)

	// CoolerPower gets the cooler power, in percent
	CoolerPower() (float64, error)

	// SetCoolerPower sets the cooler power, in percent
	SetCoolerPower(float64) (float64, error)

	// SensorWidth is the width of the sensor in unbinned pixels
	SensorWidth() int

	// SensorHeight is the height of the sensor in unbinned pixels
	SensorHeight() int

	// PixelSize is the pixel pitch in microns
	PixelSize() (float64, error)
}

// Unit is the full control surface of a camera
type Unit interface {
	Info

	// Vendor is the manufacturer of the camera
	Vendor() string

	// Capture triggers an exposure, blocks until it completes and returns
	// the image.  ctx may be used to abandon the wait, which stops the
	// exposure.
	Capture(ctx context.Context) (*imagedata.ImageData, error)

	// CancelCapture stops any exposure in progress.  It is not an error to
	// cancel when nothing is being captured.
	CancelCapture() error

	// LastImage returns the most recently captured image, for drivers that
	// retain one
	LastImage() (*imagedata.ImageData, error)

	// SetExposure programs the exposure time and returns the value the
	// hardware accepted
	SetExposure(time.Duration) (time.Duration, error)

	// Exposure is the currently programmed exposure time
	Exposure() time.Duration

	// Gain is the current gain as a percentage of the device range
	Gain() float64

	// GainRaw is the current gain in device units
	GainRaw() int64

	// SetGain sets gain as a percentage of the device range, [0, 100]
	SetGain(float64) (float64, error)

	// SetGainRaw sets gain in device units, [MinGain, MaxGain]
	SetGainRaw(int64) (int64, error)

	// Offset is the current pixel offset (bias)
	Offset() int

	// SetOffset sets the pixel offset
	SetOffset(int) (int, error)

	// MinExposure is the shortest supported exposure
	MinExposure() (time.Duration, error)

	// MaxExposure is the longest supported exposure
	MaxExposure() (time.Duration, error)

	// MinGain is the smallest raw gain
	MinGain() (int64, error)

	// MaxGain is the largest raw gain
	MaxGain() (int64, error)

	// SetShutterOpen opens (true) or closes (false) the mechanical shutter
	SetShutterOpen(bool) (bool, error)

	// ShutterOpen reports if the mechanical shutter is open
	ShutterOpen() (bool, error)

	// SetROI validates and applies a new region of interest, returning the
	// normalized region in use
	SetROI(ROI) (ROI, error)

	// ROI is the region currently in use
	ROI() ROI

	// BinX is the horizontal binning factor
	BinX() int

	// BinY is the vertical binning factor
	BinY() int

	// Status is a short description of the capture state
	Status() string
}
