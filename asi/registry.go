package asi

import (
	"sync"

	"go.uber.org/zap"

	"github.com/nasa-jpl/cameraunit/camera"
	"github.com/nasa-jpl/cameraunit/util"
)

// Registry tracks the cameras opened through one SDK.  At most one control
// handle exists per camera id; the hardware is closed when the last handle
// sharing its device is closed.
type Registry struct {
	sdk SDK
	log *zap.Logger

	mu   sync.Mutex
	open map[int]*camera.Device
}

// NewRegistry creates a registry over sdk.  log may be nil.
func NewRegistry(sdk SDK, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{sdk: sdk, log: log, open: map[int]*camera.Device{}}
}

// SDKVersion is the version string of the vendor library
func (r *Registry) SDKVersion() string {
	return r.sdk.Version()
}

// NumCameras is the number of connected cameras
func (r *Registry) NumCameras() int {
	return r.sdk.NumCameras()
}

// IDs returns the ids of every connected camera, in index order
func (r *Registry) IDs() ([]int, error) {
	n := r.sdk.NumCameras()
	if n <= 0 {
		return nil, camera.ErrNoCameras
	}
	ids := make([]int, 0, n)
	for i := 0; i < n; i++ {
		p, err := r.sdk.Property(i)
		if err != nil {
			return nil, err
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// List returns the properties of every connected camera
func (r *Registry) List() ([]Properties, error) {
	n := r.sdk.NumCameras()
	out := make([]Properties, 0, n)
	for i := 0; i < n; i++ {
		p, err := r.sdk.Property(i)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// IsOpen reports if a control handle for id exists
func (r *Registry) IsOpen(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.open[id]
	return ok
}

// OpenIndex opens the camera at an enumeration index
func (r *Registry) OpenIndex(idx int) (*Camera, *Info, error) {
	ids, err := r.IDs()
	if err != nil {
		return nil, nil, err
	}
	if idx < 0 || idx >= len(ids) {
		return nil, nil, camera.Errorf(camera.KindInvalidIndex, "index %d, %d cameras connected", idx, len(ids))
	}
	return r.Open(ids[idx])
}

// OpenFirst opens the first connected camera
func (r *Registry) OpenFirst() (*Camera, *Info, error) {
	return r.OpenIndex(0)
}

// Open opens the camera with the given id and returns its control handle
// and a read-only info handle sharing the same device
func (r *Registry) Open(id int) (*Camera, *Info, error) {
	ids, err := r.IDs()
	if err != nil {
		return nil, nil, err
	}
	if !util.IntSliceContains(ids, id) {
		return nil, nil, camera.Errorf(camera.KindInvalidID, "no camera with id %d", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.open[id]; ok {
		return nil, nil, camera.Errorf(camera.KindInvalidID, "camera %d is already open", id)
	}
	props, err := r.sdk.PropertyByID(id)
	if err != nil {
		return nil, nil, err
	}
	if err = r.sdk.Open(id); err != nil {
		return nil, nil, err
	}
	if err = r.sdk.Init(id); err != nil {
		r.sdk.Close(id)
		return nil, nil, err
	}
	dev := camera.NewDevice(id, func() { r.release(id) })
	cam, err := newCamera(r.sdk, dev, props, r.log)
	if err != nil {
		// not registered yet, so close directly rather than through dev
		r.sdk.Close(id)
		return nil, nil, err
	}
	r.open[id] = dev
	r.log.Info("opened camera", zap.Int("id", id), zap.String("name", props.Name))
	return cam, newInfo(r.sdk, dev.Retain(), cam.name, cam.uuid, props), nil
}

// release stops and closes the hardware once every handle is gone
func (r *Registry) release(id int) {
	if err := r.sdk.StopExposure(id); err != nil {
		r.log.Warn("stop exposure on close", zap.Int("id", id), zap.Error(err))
	}
	if err := r.sdk.Close(id); err != nil {
		r.log.Warn("close camera", zap.Int("id", id), zap.Error(err))
	}
	r.mu.Lock()
	delete(r.open, id)
	r.mu.Unlock()
	r.log.Info("closed camera", zap.Int("id", id))
}
