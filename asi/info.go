package asi

import (
	"sync"

	"github.com/nasa-jpl/cameraunit/camera"
	"github.com/nasa-jpl/cameraunit/temperature"
)

// Info is a read-only handle to an open camera.  It may be used from any
// goroutine, for example to monitor temperature while another goroutine
// captures through the Camera.
type Info struct {
	camera.UnsupportedInfo

	sdk    SDK
	dev    *camera.Device
	name   string
	uuid   string
	width  int
	height int
	psize  float64
	cooler bool

	mu     sync.Mutex
	closed bool
}

func newInfo(sdk SDK, dev *camera.Device, name, uuid string, props Properties) *Info {
	return &Info{
		sdk:    sdk,
		dev:    dev,
		name:   name,
		uuid:   uuid,
		width:  props.MaxWidth,
		height: props.MaxHeight,
		psize:  props.PixelSize,
		cooler: props.IsCooler,
	}
}

// Close releases this handle.  Close is idempotent.
func (i *Info) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	i.dev.Release()
	return nil
}

// Ready is true until the handle is closed
func (i *Info) Ready() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return !i.closed
}

// Name is the model name of the camera
func (i *Info) Name() string { return i.name }

// UUID is the user id read when the camera was opened
func (i *Info) UUID() (string, error) {
	if i.uuid == "" {
		return "", camera.ErrNotImplemented
	}
	return i.uuid, nil
}

// Capturing reports if the shared device is exposing, true on contention
func (i *Info) Capturing() bool { return i.dev.Capturing() }

// SensorWidth is the unbinned sensor width
func (i *Info) SensorWidth() int { return i.width }

// SensorHeight is the unbinned sensor height
func (i *Info) SensorHeight() int { return i.height }

// PixelSize is the pixel pitch in microns
func (i *Info) PixelSize() (float64, error) { return i.psize, nil }

// Temperature is the sensor temperature
func (i *Info) Temperature() (temperature.Celsius, error) {
	return readTemperature(i.sdk, i.dev.ID())
}

// SetTemperature sets the cooler setpoint and switches the cooler on
func (i *Info) SetTemperature(t temperature.Celsius) (temperature.Celsius, error) {
	return setTemperature(i.sdk, i.dev.ID(), i.cooler, t)
}

// CoolerPower is the cooler power in percent
func (i *Info) CoolerPower() (float64, error) {
	return readCoolerPower(i.sdk, i.dev.ID(), i.cooler)
}

var _ camera.Info = (*Info)(nil)
