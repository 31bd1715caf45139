package camera

import (
	"sync"
)

// Device is the token shared by every handle to one physical camera.  It
// holds the device id and the capturing flag, and runs its release function
// exactly once, when the last holder lets go.
type Device struct {
	id int

	refMu   sync.Mutex
	refs    int
	release func()

	// mu is held by the capture machine across state transitions
	mu        sync.Mutex
	capturing bool
}

// NewDevice returns a token with one reference.  release may be nil.
func NewDevice(id int, release func()) *Device {
	return &Device{id: id, refs: 1, release: release}
}

// ID is the hardware id of the device
func (d *Device) ID() int {
	return d.id
}

// Retain adds a reference and returns d for chaining
func (d *Device) Retain() *Device {
	d.refMu.Lock()
	d.refs++
	d.refMu.Unlock()
	return d
}

// Release drops a reference.  The release function runs when the count hits
// zero; further calls are no-ops.
func (d *Device) Release() {
	d.refMu.Lock()
	if d.refs == 0 {
		d.refMu.Unlock()
		return
	}
	d.refs--
	var fn func()
	if d.refs == 0 {
		fn = d.release
		d.release = nil
	}
	d.refMu.Unlock()
	if fn != nil {
		fn()
	}
}

// Refs is the number of live references
func (d *Device) Refs() int {
	d.refMu.Lock()
	defer d.refMu.Unlock()
	return d.refs
}

// Lock takes the transition lock
func (d *Device) Lock() {
	d.mu.Lock()
}

// Unlock releases the transition lock
func (d *Device) Unlock() {
	d.mu.Unlock()
}

// SetCapturing updates the flag.  The caller must hold the transition lock.
func (d *Device) SetCapturing(b bool) {
	d.capturing = b
}

// CapturingLocked reads the flag.  The caller must hold the transition lock.
func (d *Device) CapturingLocked() bool {
	return d.capturing
}

// Capturing reports the flag without blocking.  If the transition lock is
// held by someone else, it reports true.
func (d *Device) Capturing() bool {
	if !d.mu.TryLock() {
		return true
	}
	defer d.mu.Unlock()
	return d.capturing
}

// Exclusive runs fn under the transition lock, failing with
// ErrExposureInProgress without calling fn if a capture is active
func (d *Device) Exclusive(fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capturing {
		return ErrExposureInProgress
	}
	return fn()
}
