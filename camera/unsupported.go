package camera

import (
	"time"

	"github.com/nasa-jpl/cameraunit/imagedata"
	"github.com/nasa-jpl/cameraunit/temperature"
)

// UnsupportedInfo provides ErrNotImplemented for every fallible method of
// Info.  Embed it and override what the hardware supports.
type UnsupportedInfo struct{}

// UUID returns ErrNotImplemented
func (UnsupportedInfo) UUID() (string, error) {
	return "", ErrNotImplemented
}

// SetTemperature returns ErrNotImplemented
func (UnsupportedInfo) SetTemperature(temperature.Celsius) (temperature.Celsius, error) {
	return temperature.Unknown, ErrNotImplemented
}

// Temperature returns ErrNotImplemented
func (UnsupportedInfo) Temperature() (temperature.Celsius, error) {
	return temperature.Unknown, ErrNotImplemented
}

// CoolerPower returns ErrNotImplemented
func (UnsupportedInfo) CoolerPower() (float64, error) {
	return 0, ErrNotImplemented
}

// SetCoolerPower returns ErrNotImplemented
func (UnsupportedInfo) SetCoolerPower(float64) (float64, error) {
	return 0, ErrNotImplemented
}

// PixelSize returns ErrNotImplemented
func (UnsupportedInfo) PixelSize() (float64, error) {
	return 0, ErrNotImplemented
}

// Unsupported provides ErrNotImplemented for every fallible method of Unit
type Unsupported struct {
	UnsupportedInfo
}

// CancelCapture returns ErrNotImplemented
func (Unsupported) CancelCapture() error {
	return ErrNotImplemented
}

// LastImage returns ErrNotImplemented
func (Unsupported) LastImage() (*imagedata.ImageData, error) {
	return nil, ErrNotImplemented
}

// SetExposure returns ErrNotImplemented
func (Unsupported) SetExposure(time.Duration) (time.Duration, error) {
	return 0, ErrNotImplemented
}

// SetGain returns ErrNotImplemented
func (Unsupported) SetGain(float64) (float64, error) {
	return 0, ErrNotImplemented
}

// SetGainRaw returns ErrNotImplemented
func (Unsupported) SetGainRaw(int64) (int64, error) {
	return 0, ErrNotImplemented
}

// SetOffset returns ErrNotImplemented
func (Unsupported) SetOffset(int) (int, error) {
	return 0, ErrNotImplemented
}

// MinExposure returns ErrNotImplemented
func (Unsupported) MinExposure() (time.Duration, error) {
	return 0, ErrNotImplemented
}

// MaxExposure returns ErrNotImplemented
func (Unsupported) MaxExposure() (time.Duration, error) {
	return 0, ErrNotImplemented
}

// MinGain returns ErrNotImplemented
func (Unsupported) MinGain() (int64, error) {
	return 0, ErrNotImplemented
}

// MaxGain returns ErrNotImplemented
func (Unsupported) MaxGain() (int64, error) {
	return 0, ErrNotImplemented
}

// SetShutterOpen returns ErrNotImplemented
func (Unsupported) SetShutterOpen(bool) (bool, error) {
	return false, ErrNotImplemented
}

// ShutterOpen returns ErrNotImplemented
func (Unsupported) ShutterOpen() (bool, error) {
	return false, ErrNotImplemented
}

// SetROI returns ErrNotImplemented
func (Unsupported) SetROI(ROI) (ROI, error) {
	return ROI{}, ErrNotImplemented
}
