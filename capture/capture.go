/*Package capture drives a single hardware exposure from trigger to readout.

A Machine owns the Idle -> Exposing -> {Succeeded, Failed} -> Idle lifecycle
for one physical camera.  It polls the hardware at a cadence tiered by the
exposure length, reads the frame when the hardware reports success, and
always returns to Idle, whatever the outcome, so the device remains usable.

State transitions happen under the transition lock of the camera.Device
shared with any read-only handles; the lock is not held while waiting
between polls.
*/
package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nasa-jpl/cameraunit/camera"
	"github.com/nasa-jpl/cameraunit/imagedata"
)

// State is the capture state
type State int

const (
	// Idle means no capture is active
	Idle State = iota
	// Exposing means the hardware is integrating
	Exposing
	// Succeeded means the frame was read out
	Succeeded
	// Failed means the exposure or readout failed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Exposing:
		return "Exposing"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Exposer is the hardware surface the machine drives
type Exposer interface {
	ExposureStatus() (camera.ExposureStatus, error)
	StartExposure(dark bool) error
	StopExposure() error
	// ReadFrame fills buf with the completed frame
	ReadFrame(buf []byte) error
}

// Request describes one capture
type Request struct {
	ROI      camera.ROI
	Format   camera.PixelFormat
	Exposure time.Duration
	Dark     bool

	// Meta is copied into the image; its Timestamp is set at trigger
	Meta imagedata.Metadata
}

// PollInterval is the time between hardware status polls for an exposure
func PollInterval(exp time.Duration) time.Duration {
	switch {
	case exp < 16*time.Millisecond:
		return time.Millisecond
	case exp < time.Second:
		return 100 * time.Millisecond
	default:
		return time.Second
	}
}

// Machine is the capture state machine for one device
type Machine struct {
	dev *camera.Device
	hw  Exposer
	log *zap.Logger

	// Timeout, if nonzero, bounds the wait for completion to the exposure
	// time plus Timeout.  On expiry the exposure is stopped and
	// ErrCaptureTimedOut returned.
	Timeout time.Duration

	// Now is the clock used to stamp frames
	Now func() time.Time

	// OnTransition, if set, is called under the transition lock on every
	// state change
	OnTransition func(from, to State)

	// guarded by dev's transition lock
	state   State
	last    error
	active  bool
	adopted bool

	// gen is bumped by Cancel; a poller whose generation is stale abandons
	// its capture
	gen atomic.Uint64
}

// New creates a machine in the Idle state.  log may be nil.
func New(dev *camera.Device, hw Exposer, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{dev: dev, hw: hw, log: log, Now: time.Now}
}

// State returns the current state and the error of the last failed capture
func (m *Machine) State() (State, error) {
	m.dev.Lock()
	defer m.dev.Unlock()
	return m.state, m.last
}

// set changes state and the shared capturing flag.  Must hold the lock.
func (m *Machine) set(s State) {
	from := m.state
	m.state = s
	m.dev.SetCapturing(s == Exposing)
	if s != Exposing {
		m.active = false
		m.adopted = false
	}
	if from != s {
		m.log.Debug("capture transition", zap.Int("device", m.dev.ID()),
			zap.Stringer("from", from), zap.Stringer("to", s))
		if m.OnTransition != nil {
			m.OnTransition(from, s)
		}
	}
}

// fail records err and passes through Failed back to Idle.  Must hold the lock.
func (m *Machine) fail(err error) error {
	m.last = err
	m.set(Failed)
	m.set(Idle)
	return err
}

// Run triggers an exposure, waits for it and returns the decoded frame.
// If the hardware is already exposing, Run adopts that exposure and
// returns ErrExposureInProgress without starting another.
func (m *Machine) Run(ctx context.Context, req Request) (*imagedata.ImageData, error) {
	gen, start, err := m.begin(req)
	if err != nil {
		return nil, err
	}
	return m.wait(ctx, gen, start, req)
}

func (m *Machine) begin(req Request) (uint64, time.Time, error) {
	m.dev.Lock()
	defer m.dev.Unlock()
	if m.dev.CapturingLocked() && !m.adopted {
		return 0, time.Time{}, camera.ErrExposureInProgress
	}
	st, err := m.hw.ExposureStatus()
	if err != nil {
		return 0, time.Time{}, err
	}
	if st == camera.ExpWorking {
		if !m.adopted {
			m.log.Info("hardware already exposing, adopting", zap.Int("device", m.dev.ID()))
		}
		m.set(Exposing)
		m.adopted = true
		return 0, time.Time{}, camera.ErrExposureInProgress
	}
	start := m.Now()
	if err := m.hw.StartExposure(req.Dark); err != nil {
		m.set(Idle)
		return 0, time.Time{}, err
	}
	m.last = nil
	m.set(Exposing)
	m.active = true
	m.adopted = false
	return m.gen.Load(), start, nil
}

func (m *Machine) wait(ctx context.Context, gen uint64, start time.Time, req Request) (*imagedata.ImageData, error) {
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Exposure+m.Timeout)
		defer cancel()
	}
	lim := rate.NewLimiter(rate.Every(PollInterval(req.Exposure)), 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			return nil, m.abort(ctx, gen)
		}
		if m.gen.Load() != gen {
			return nil, camera.ErrCancelled
		}
		st, err := m.hw.ExposureStatus()
		if err != nil {
			return nil, m.finish(gen, err)
		}
		switch st {
		case camera.ExpWorking:
			continue
		case camera.ExpFailed:
			return nil, m.finish(gen, camera.ErrExposureFailed)
		case camera.ExpIdle:
			return nil, m.finish(gen, camera.ErrNoData)
		case camera.ExpSuccess:
			return m.readout(gen, start, req)
		default:
			return nil, m.finish(gen, camera.Errorf(camera.KindInvalidMode, "exposure status %v", st))
		}
	}
}

// finish ends a live capture with err.  A capture that was cancelled in the
// meantime reports ErrCancelled instead.
func (m *Machine) finish(gen uint64, err error) error {
	m.dev.Lock()
	defer m.dev.Unlock()
	if m.gen.Load() != gen {
		return camera.ErrCancelled
	}
	return m.fail(err)
}

// abort stops the hardware after the context ended
func (m *Machine) abort(ctx context.Context, gen uint64) error {
	var err error = camera.ErrCaptureTimedOut
	if errors.Is(ctx.Err(), context.Canceled) {
		err = camera.ErrCancelled
	}
	m.dev.Lock()
	defer m.dev.Unlock()
	if m.gen.Load() != gen {
		return camera.ErrCancelled
	}
	if serr := m.hw.StopExposure(); serr != nil {
		m.log.Warn("stop exposure failed", zap.Int("device", m.dev.ID()), zap.Error(serr))
	}
	m.log.Info("capture abandoned", zap.Int("device", m.dev.ID()), zap.Error(err))
	return m.fail(err)
}

func (m *Machine) readout(gen uint64, start time.Time, req Request) (*imagedata.ImageData, error) {
	m.dev.Lock()
	defer m.dev.Unlock()
	if m.gen.Load() != gen {
		return nil, camera.ErrCancelled
	}
	if _, err := camera.ToPixelFormat(int(req.Format)); err != nil {
		return nil, m.fail(err)
	}
	w, h := req.ROI.Width(), req.ROI.Height()
	buf := make([]byte, w*h*req.Format.BytesPerPixel())
	if err := m.hw.ReadFrame(buf); err != nil {
		return nil, m.fail(err)
	}
	meta := req.Meta
	meta.Timestamp = start
	var (
		img *imagedata.ImageData
		err error
	)
	switch req.Format {
	case camera.Raw16:
		img, err = imagedata.FromRaw16(buf, w, h, meta)
	case camera.RGB24:
		img, err = imagedata.FromBGR24(buf, w, h, meta)
	default:
		img, err = imagedata.FromRaw8(buf, w, h, meta)
	}
	if err != nil {
		return nil, m.fail(err)
	}
	m.set(Succeeded)
	m.set(Idle)
	return img, nil
}

// Cancel stops a capture in progress and forces the machine to Idle.  It
// does nothing, and issues no hardware command, when no capture is active.
// A frame that completed but was not yet read is discarded.
func (m *Machine) Cancel() error {
	m.dev.Lock()
	defer m.dev.Unlock()
	if !m.dev.CapturingLocked() {
		return nil
	}
	err := m.hw.StopExposure()
	m.gen.Add(1)
	m.last = camera.ErrCancelled
	m.set(Idle)
	m.log.Info("capture cancelled", zap.Int("device", m.dev.ID()))
	return err
}
