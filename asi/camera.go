/*Package asi is a driver for ZWO ASI cameras.

The vendor library is reached through the SDK interface.  Building with the
asi tag links the real ASICamera2 library through cgo; without it, NewSDK
reports that the library is not available and the pure-Go Simulator can be
used instead.

A Registry opens cameras and hands out a *Camera, which implements
camera.Unit, and an *Info, which implements camera.Info.  Both share one
camera.Device, so the Info handle observes captures made through the Camera
and the hardware is closed only when both have been closed.
*/
package asi

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nasa-jpl/cameraunit/camera"
	"github.com/nasa-jpl/cameraunit/capture"
	"github.com/nasa-jpl/cameraunit/imagedata"
	"github.com/nasa-jpl/cameraunit/mathx"
	"github.com/nasa-jpl/cameraunit/temperature"
	"github.com/nasa-jpl/cameraunit/util"
)

const (
	// Vendor is the manufacturer reported by Camera.Vendor
	Vendor = "ZWO"

	// DefaultExposure is programmed when a camera is opened
	DefaultExposure = 100 * time.Millisecond
)

// Setpoints is the accepted range of cooler setpoints
var Setpoints = temperature.Range{Min: -80, Max: 20}

// exposer adapts the SDK to the capture machine for one camera id
type exposer struct {
	sdk SDK
	id  int
}

func (e exposer) ExposureStatus() (camera.ExposureStatus, error) { return e.sdk.ExposureStatus(e.id) }
func (e exposer) StartExposure(dark bool) error                  { return e.sdk.StartExposure(e.id, dark) }
func (e exposer) StopExposure() error                            { return e.sdk.StopExposure(e.id) }
func (e exposer) ReadFrame(buf []byte) error                     { return e.sdk.DataAfterExp(e.id, buf) }

// Camera is the control handle of an open ASI camera.  Its settings are
// owned by the goroutine that uses it; the capturing state is shared with
// the Info handle.
type Camera struct {
	camera.Unsupported

	sdk     SDK
	dev     *camera.Device
	machine *capture.Machine
	log     *zap.Logger

	props  Properties
	name   string
	uuid   string
	caps   map[ControlType]ControlCaps
	closed bool

	gainMin, gainMax int64
	expMin, expMax   time.Duration

	exposure time.Duration
	dark     bool
	format   camera.PixelFormat
	roi      camera.ROI

	lastMu sync.Mutex
	last   *imagedata.ImageData
}

func newCamera(sdk SDK, dev *camera.Device, props Properties, log *zap.Logger) (*Camera, error) {
	id := dev.ID()
	c := &Camera{
		sdk:     sdk,
		dev:     dev,
		machine: capture.New(dev, exposer{sdk: sdk, id: id}, log),
		log:     log.With(zap.Int("camera", id)),
		props:   props,
		name:    props.Name,
		caps:    map[ControlType]ControlCaps{},
		expMin:  time.Millisecond,
		expMax:  200 * time.Second,
	}
	if props.IsUSB3Camera || props.IsUSB3Host {
		if uid, err := sdk.ID(id); err == nil {
			c.uuid = trimID(uid)
		}
	}
	n, err := sdk.NumControls(id)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		cc, err := sdk.ControlCaps(id, i)
		if err != nil {
			return nil, err
		}
		c.caps[cc.Type] = cc
	}
	if cc, ok := c.caps[Gain]; ok {
		c.gainMin, c.gainMax = cc.Min, cc.Max
	}
	if cc, ok := c.caps[Exposure]; ok {
		c.expMin = time.Duration(cc.Min) * time.Microsecond
		c.expMax = time.Duration(cc.Max) * time.Microsecond
	}

	switch {
	case props.IsColor:
		c.format = camera.RGB24
	case props.SupportsFormat(camera.Raw16):
		c.format = camera.Raw16
	default:
		c.format = camera.Raw8
	}
	c.roi = camera.ROI{XMax: props.MaxWidth, YMax: props.MaxHeight, BinX: 1, BinY: 1}
	if err = sdk.SetStartPos(id, 0, 0); err != nil {
		return nil, err
	}
	if err = sdk.SetROIFormat(id, ROIFormat{Width: props.MaxWidth, Height: props.MaxHeight, Bin: 1, Format: c.format}); err != nil {
		return nil, err
	}
	exp := DefaultExposure
	if exp < c.expMin {
		exp = c.expMin
	}
	if err = sdk.SetControlValue(id, Exposure, exp.Microseconds(), false); err != nil {
		return nil, err
	}
	c.exposure = exp
	c.log.Debug("camera initialized", zap.Stringer("format", c.format),
		zap.String("bins", util.IntSliceToCSV(props.SupportedBins)),
		zap.Int64("gainMin", c.gainMin), zap.Int64("gainMax", c.gainMax))
	return c, nil
}

func trimID(uid [8]byte) string {
	return string(bytes.TrimRight(uid[:], "\x00"))
}

// Close releases this handle.  The hardware is closed once the paired Info
// handle is closed too.  Close is idempotent.
func (c *Camera) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.dev.Release()
	return nil
}

// ID is the SDK camera id
func (c *Camera) ID() int { return c.dev.ID() }

// Properties returns the static properties of the camera
func (c *Camera) Properties() Properties { return c.props }

// Controls returns the capabilities of every control the camera has
func (c *Camera) Controls() map[ControlType]ControlCaps {
	out := make(map[ControlType]ControlCaps, len(c.caps))
	for k, v := range c.caps {
		out[k] = v
	}
	return out
}

// SetCaptureTimeout bounds each capture to its exposure time plus d.  Zero
// waits indefinitely.
func (c *Camera) SetCaptureTimeout(d time.Duration) { c.machine.Timeout = d }

// Observe registers fn to be called on every capture state change
func (c *Camera) Observe(fn func(from, to capture.State)) { c.machine.OnTransition = fn }

// Ready is true until the handle is closed
func (c *Camera) Ready() bool { return !c.closed }

// Name is the model name of the camera
func (c *Camera) Name() string { return c.name }

// Vendor returns "ZWO"
func (c *Camera) Vendor() string { return Vendor }

// UUID returns the user-settable 8 byte id of USB3 cameras
func (c *Camera) UUID() (string, error) {
	if c.uuid == "" && !c.props.IsUSB3Camera && !c.props.IsUSB3Host {
		return "", camera.ErrNotImplemented
	}
	return c.uuid, nil
}

// SetUUID writes a new user id of at most 8 bytes to the camera
func (c *Camera) SetUUID(s string) error {
	if len(s) > 8 {
		return camera.Errorf(camera.KindInvalidValue, "id %q is longer than 8 bytes", s)
	}
	if s == c.uuid {
		return nil
	}
	var uid [8]byte
	copy(uid[:], s)
	return c.dev.Exclusive(func() error {
		if err := c.sdk.SetID(c.ID(), uid); err != nil {
			return err
		}
		c.uuid = s
		return nil
	})
}

// SerialNumber returns the factory serial number
func (c *Camera) SerialNumber() (uint64, error) {
	sn, err := c.sdk.SerialNumber(c.ID())
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(sn[:]), nil
}

// Capturing reports if an exposure is in progress without blocking
func (c *Camera) Capturing() bool { return c.dev.Capturing() }

// SensorWidth is the unbinned sensor width
func (c *Camera) SensorWidth() int { return c.props.MaxWidth }

// SensorHeight is the unbinned sensor height
func (c *Camera) SensorHeight() int { return c.props.MaxHeight }

// PixelSize is the pixel pitch in microns
func (c *Camera) PixelSize() (float64, error) { return c.props.PixelSize, nil }

// Temperature is the sensor temperature
func (c *Camera) Temperature() (temperature.Celsius, error) {
	return readTemperature(c.sdk, c.ID())
}

// SetTemperature sets the cooler setpoint and switches the cooler on
func (c *Camera) SetTemperature(t temperature.Celsius) (temperature.Celsius, error) {
	return setTemperature(c.sdk, c.ID(), c.props.IsCooler, t)
}

// CoolerPower is the cooler power in percent
func (c *Camera) CoolerPower() (float64, error) {
	return readCoolerPower(c.sdk, c.ID(), c.props.IsCooler)
}

// MinExposure is the shortest supported exposure
func (c *Camera) MinExposure() (time.Duration, error) { return c.expMin, nil }

// MaxExposure is the longest supported exposure
func (c *Camera) MaxExposure() (time.Duration, error) { return c.expMax, nil }

// MinGain is the smallest raw gain
func (c *Camera) MinGain() (int64, error) { return c.gainMin, nil }

// MaxGain is the largest raw gain
func (c *Camera) MaxGain() (int64, error) { return c.gainMax, nil }

// Exposure is the programmed exposure time
func (c *Camera) Exposure() time.Duration { return c.exposure }

// SetExposure programs the exposure time
func (c *Camera) SetExposure(d time.Duration) (time.Duration, error) {
	if d < c.expMin || d > c.expMax {
		return c.exposure, camera.Errorf(camera.KindInvalidValue, "exposure %v outside [%v, %v]", d, c.expMin, c.expMax)
	}
	err := c.dev.Exclusive(func() error {
		if err := c.sdk.SetControlValue(c.ID(), Exposure, d.Microseconds(), false); err != nil {
			return err
		}
		us, _, err := c.sdk.ControlValue(c.ID(), Exposure)
		if err != nil {
			return err
		}
		c.exposure = time.Duration(us) * time.Microsecond
		return nil
	})
	return c.exposure, err
}

// GainRaw is the gain in device units, or 0 if it cannot be read
func (c *Camera) GainRaw() int64 {
	v, _, err := c.sdk.ControlValue(c.ID(), Gain)
	if err != nil {
		c.log.Warn("read gain", zap.Error(err))
		return 0
	}
	return v
}

// Gain is the gain as a percentage of the device range
func (c *Camera) Gain() float64 {
	return camera.NormalizeGain(c.GainRaw(), c.gainMin, c.gainMax) * 100
}

// SetGainRaw sets the gain in device units
func (c *Camera) SetGainRaw(g int64) (int64, error) {
	if g < c.gainMin || g > c.gainMax {
		return 0, camera.Errorf(camera.KindInvalidValue, "gain %d outside [%d, %d]", g, c.gainMin, c.gainMax)
	}
	var out int64
	err := c.dev.Exclusive(func() error {
		if err := c.sdk.SetControlValue(c.ID(), Gain, g, false); err != nil {
			return err
		}
		v, _, err := c.sdk.ControlValue(c.ID(), Gain)
		out = v
		return err
	})
	return out, err
}

// SetGain sets the gain as a percentage of the device range, [0, 100]
func (c *Camera) SetGain(pct float64) (float64, error) {
	if pct < 0 || pct > 100 {
		return 0, camera.Errorf(camera.KindInvalidValue, "gain %g%% outside [0, 100]", pct)
	}
	raw, err := c.SetGainRaw(camera.RawGain(pct/100, c.gainMin, c.gainMax))
	if err != nil {
		return 0, err
	}
	return camera.NormalizeGain(raw, c.gainMin, c.gainMax) * 100, nil
}

// Offset is the pixel offset, or 0 if it cannot be read
func (c *Camera) Offset() int {
	v, _, err := c.sdk.ControlValue(c.ID(), Offset)
	if err != nil {
		c.log.Warn("read offset", zap.Error(err))
		return 0
	}
	return int(v)
}

// SetOffset sets the pixel offset within the range the camera reports
func (c *Camera) SetOffset(o int) (int, error) {
	cc, ok := c.caps[Offset]
	if !ok {
		return 0, camera.Errorf(camera.KindInvalidControlType, "camera has no offset control")
	}
	if int64(o) < cc.Min || int64(o) > cc.Max {
		return 0, camera.Errorf(camera.KindInvalidValue, "offset %d outside [%d, %d]", o, cc.Min, cc.Max)
	}
	var out int
	err := c.dev.Exclusive(func() error {
		if err := c.sdk.SetControlValue(c.ID(), Offset, int64(o), false); err != nil {
			return err
		}
		v, _, err := c.sdk.ControlValue(c.ID(), Offset)
		out = int(v)
		return err
	})
	return out, err
}

// ShutterOpen reports the shutter state used for the next exposure
func (c *Camera) ShutterOpen() (bool, error) {
	if !c.props.MechanicalShutter {
		return false, camera.Errorf(camera.KindInvalidControlType, "camera does not have a mechanical shutter")
	}
	return !c.dark, nil
}

// SetShutterOpen selects a light (true) or dark (false) exposure
func (c *Camera) SetShutterOpen(open bool) (bool, error) {
	err := c.dev.Exclusive(func() error {
		if !c.props.MechanicalShutter {
			return camera.Errorf(camera.KindInvalidControlType, "camera does not have a mechanical shutter")
		}
		c.dark = !open
		return nil
	})
	return !c.dark, err
}

// ImageFormat is the readout pixel format
func (c *Camera) ImageFormat() camera.PixelFormat { return c.format }

// SetImageFormat changes the readout pixel format
func (c *Camera) SetImageFormat(f camera.PixelFormat) error {
	if f == c.format {
		return nil
	}
	if !c.props.SupportsFormat(f) {
		return camera.Errorf(camera.KindInvalidMode, "format %v not supported by camera", f)
	}
	return c.dev.Exclusive(func() error {
		rf, err := c.sdk.ROIFormat(c.ID())
		if err != nil {
			return err
		}
		rf.Format = f
		if err = c.sdk.SetROIFormat(c.ID(), rf); err != nil {
			return err
		}
		c.format = f
		return nil
	})
}

// ROI is the region in use, in binned pixels
func (c *Camera) ROI() camera.ROI { return c.roi }

// BinX is the horizontal binning
func (c *Camera) BinX() int { return c.roi.BinX }

// BinY is the vertical binning
func (c *Camera) BinY() int { return c.roi.BinY }

// SetROI validates and applies a region.  If the start position cannot be
// written, the previous geometry is restored and the error returned.
func (c *Camera) SetROI(req camera.ROI) (camera.ROI, error) {
	roi, err := camera.ValidateROI(req, camera.Sensor{
		Width:  c.props.MaxWidth,
		Height: c.props.MaxHeight,
		Legacy: c.props.Legacy(),
	}, c.props.SupportedBins)
	if err != nil {
		return c.roi, err
	}
	err = c.dev.Exclusive(func() error {
		id := c.ID()
		old, err := c.sdk.ROIFormat(id)
		if err != nil {
			return err
		}
		next := old
		next.Width, next.Height, next.Bin = roi.Width(), roi.Height(), roi.BinX
		c.log.Info("changing ROI", zap.Stringer("roi", roi),
			zap.Int("oldWidth", old.Width), zap.Int("oldHeight", old.Height), zap.Int("oldBin", old.Bin))
		if err = c.sdk.SetROIFormat(id, next); err != nil {
			return err
		}
		if err = c.sdk.SetStartPos(id, roi.XMin, roi.YMin); err != nil {
			rerr := c.sdk.SetROIFormat(id, old)
			return util.MergeErrors([]error{err, rerr})
		}
		c.roi = roi
		return nil
	})
	return c.roi, err
}

// Configure writes several controls at once.  Every control is attempted;
// the failures are returned together.
func (c *Camera) Configure(values map[ControlType]int64) error {
	return c.dev.Exclusive(func() error {
		var errs []error
		for ct, v := range values {
			cc, ok := c.caps[ct]
			if !ok {
				errs = append(errs, camera.Errorf(camera.KindInvalidControlType, "camera has no %v control", ct))
				continue
			}
			if !cc.Writable {
				errs = append(errs, camera.Errorf(camera.KindInvalidControlType, "%v is read only", ct))
				continue
			}
			if err := c.sdk.SetControlValue(c.ID(), ct, v, false); err != nil {
				errs = append(errs, err)
				continue
			}
			if ct == Exposure {
				us, _, err := c.sdk.ControlValue(c.ID(), Exposure)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				c.exposure = time.Duration(us) * time.Microsecond
			}
		}
		return util.MergeErrors(errs)
	})
}

// Status is the capture state, with the last failure if there was one
func (c *Camera) Status() string {
	st, err := c.machine.State()
	if err != nil {
		return st.String() + " (last: " + err.Error() + ")"
	}
	return st.String()
}

// Capture exposes one frame with the current settings
func (c *Camera) Capture(ctx context.Context) (*imagedata.ImageData, error) {
	temp, err := c.Temperature()
	if err != nil {
		temp = temperature.Unknown
	}
	meta := imagedata.Metadata{
		BinX:        c.roi.BinX,
		BinY:        c.roi.BinY,
		OriginX:     c.roi.XMin,
		OriginY:     c.roi.YMin,
		Temperature: temp,
		Exposure:    c.exposure,
		CameraName:  c.name,
		Gain:        c.GainRaw(),
		GainMin:     c.gainMin,
		GainMax:     c.gainMax,
		Offset:      c.Offset(),
	}
	if c.dark {
		meta.AddExtended("DARKFRAM", "True")
	} else {
		meta.AddExtended("DARKFRAM", "False")
	}
	img, err := c.machine.Run(ctx, capture.Request{
		ROI:      c.roi,
		Format:   c.format,
		Exposure: c.exposure,
		Dark:     c.dark,
		Meta:     meta,
	})
	if err != nil {
		return nil, err
	}
	c.lastMu.Lock()
	c.last = img
	c.lastMu.Unlock()
	return img, nil
}

// CancelCapture stops any exposure in progress
func (c *Camera) CancelCapture() error {
	return c.machine.Cancel()
}

// LastImage returns the most recent frame
func (c *Camera) LastImage() (*imagedata.ImageData, error) {
	c.lastMu.Lock()
	defer c.lastMu.Unlock()
	if c.last == nil {
		return nil, camera.ErrNoData
	}
	return c.last, nil
}

func readTemperature(sdk SDK, id int) (temperature.Celsius, error) {
	v, _, err := sdk.ControlValue(id, Temperature)
	if err != nil {
		return temperature.Unknown, err
	}
	// reported in tenths of a degree
	return temperature.Celsius(mathx.Round(float64(v)/10, 0.1)), nil
}

func readCoolerPower(sdk SDK, id int, cooler bool) (float64, error) {
	if !cooler {
		return 0, camera.Errorf(camera.KindInvalidControlType, "camera does not have a cooler")
	}
	v, _, err := sdk.ControlValue(id, CoolerPowerPerc)
	return float64(v), err
}

func setTemperature(sdk SDK, id int, cooler bool, t temperature.Celsius) (temperature.Celsius, error) {
	if !cooler {
		return temperature.Unknown, camera.Errorf(camera.KindInvalidControlType, "camera does not have a cooler")
	}
	if !Setpoints.Contains(t) {
		return temperature.Unknown, camera.Errorf(camera.KindInvalidValue, "setpoint %v outside [%v, %v]", t, Setpoints.Min, Setpoints.Max)
	}
	if err := sdk.SetControlValue(id, TargetTemp, int64(t), false); err != nil {
		return temperature.Unknown, err
	}
	if err := sdk.SetControlValue(id, CoolerOn, 1, false); err != nil {
		return temperature.Unknown, err
	}
	v, _, err := sdk.ControlValue(id, TargetTemp)
	if err != nil {
		return temperature.Unknown, err
	}
	return temperature.Celsius(v), nil
}

var _ camera.Unit = (*Camera)(nil)
