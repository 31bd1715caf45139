package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nasa-jpl/cameraunit/camera"
	"github.com/nasa-jpl/cameraunit/imagedata"
)

// fakeHW reports pre until an exposure is started, then Working for a
// number of polls, then final
type fakeHW struct {
	mu      sync.Mutex
	pre     camera.ExposureStatus
	started bool
	working int
	final   camera.ExposureStatus
	readErr error
	fill    byte

	starts, stops, polls, reads int
	// block, if set, makes status polls report Working forever
	block bool
}

func (f *fakeHW) ExposureStatus() (camera.ExposureStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if !f.started {
		return f.pre, nil
	}
	if f.block {
		return camera.ExpWorking, nil
	}
	if f.working > 0 {
		f.working--
		return camera.ExpWorking, nil
	}
	return f.final, nil
}

func (f *fakeHW) StartExposure(bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.started = true
	return nil
}

func (f *fakeHW) StopExposure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.started = false
	f.block = false
	return nil
}

func (f *fakeHW) ReadFrame(buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return f.readErr
	}
	for i := range buf {
		buf[i] = f.fill
	}
	return nil
}

func (f *fakeHW) counts() (starts, stops, reads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops, f.reads
}

func request() Request {
	return Request{
		ROI:      camera.ROI{XMax: 16, YMax: 4, BinX: 1, BinY: 1},
		Format:   camera.Raw16,
		Exposure: time.Millisecond,
		Meta:     imagedata.Metadata{CameraName: "fake", BinX: 1, BinY: 1},
	}
}

func newMachine(hw *fakeHW) (*Machine, *camera.Device) {
	dev := camera.NewDevice(0, nil)
	return New(dev, hw, nil), dev
}

func TestPollInterval(t *testing.T) {
	tests := []struct {
		exp, want time.Duration
	}{
		{time.Millisecond, time.Millisecond},
		{15 * time.Millisecond, time.Millisecond},
		{16 * time.Millisecond, 100 * time.Millisecond},
		{999 * time.Millisecond, 100 * time.Millisecond},
		{time.Second, time.Second},
		{time.Minute, time.Second},
	}
	for _, tt := range tests {
		if got := PollInterval(tt.exp); got != tt.want {
			t.Errorf("%v: expected %v got %v", tt.exp, tt.want, got)
		}
	}
}

func TestRunSuccess(t *testing.T) {
	hw := &fakeHW{working: 3, final: camera.ExpSuccess, fill: 1}
	m, dev := newMachine(hw)
	stamp := time.UnixMilli(42)
	m.Now = func() time.Time { return stamp }
	img, err := m.Run(context.Background(), request())
	if err != nil {
		t.Fatal(err)
	}
	if img.Width() != 16 || img.Height() != 4 {
		t.Errorf("expected 16x4 got %dx%d", img.Width(), img.Height())
	}
	if !img.Meta.Timestamp.Equal(stamp) {
		t.Errorf("timestamp should be taken at trigger, got %v", img.Meta.Timestamp)
	}
	if px := img.Luma16()[0]; px != 0x0101 {
		t.Errorf("expected pixel 0x0101 got %#x", px)
	}
	if st, _ := m.State(); st != Idle || dev.Capturing() {
		t.Errorf("expected Idle after success, got %v", st)
	}
}

func TestRunTerminalFailures(t *testing.T) {
	readErr := camera.Errorf(camera.KindCameraClosed, "unplugged")
	tests := []struct {
		name string
		hw   *fakeHW
		want error
	}{
		{"failed", &fakeHW{working: 1, final: camera.ExpFailed}, camera.ErrExposureFailed},
		{"idle while polling", &fakeHW{working: 1, final: camera.ExpIdle}, camera.ErrNoData},
		{"readout error", &fakeHW{final: camera.ExpSuccess, readErr: readErr}, readErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, dev := newMachine(tt.hw)
			_, err := m.Run(context.Background(), request())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v got %v", tt.want, err)
			}
			st, last := m.State()
			if st != Idle || dev.Capturing() {
				t.Errorf("expected Idle, got %v", st)
			}
			if !errors.Is(last, tt.want) {
				t.Errorf("expected last error %v got %v", tt.want, last)
			}
		})
	}
}

func TestRunWhileExposingIsRefused(t *testing.T) {
	hw := &fakeHW{block: true}
	m, _ := newMachine(hw)
	done := make(chan error)
	go func() {
		_, err := m.Run(context.Background(), request())
		done <- err
	}()
	for {
		if st, _ := m.State(); st == Exposing {
			break
		}
		time.Sleep(time.Millisecond)
	}
	_, err := m.Run(context.Background(), request())
	if !errors.Is(err, camera.ErrExposureInProgress) {
		t.Errorf("expected ErrExposureInProgress got %v", err)
	}
	if starts, _, _ := hw.counts(); starts != 1 {
		t.Errorf("expected one start command got %d", starts)
	}
	if err := m.Cancel(); err != nil {
		t.Fatal(err)
	}
	if err := <-done; !errors.Is(err, camera.ErrCancelled) {
		t.Errorf("expected ErrCancelled got %v", err)
	}
}

func TestAdoptsHardwareExposure(t *testing.T) {
	hw := &fakeHW{pre: camera.ExpWorking, final: camera.ExpSuccess}
	m, dev := newMachine(hw)
	_, err := m.Run(context.Background(), request())
	if !errors.Is(err, camera.ErrExposureInProgress) {
		t.Fatalf("expected ErrExposureInProgress got %v", err)
	}
	if !dev.Capturing() {
		t.Error("adopted exposure should be visible as capturing")
	}
	if starts, _, _ := hw.counts(); starts != 0 {
		t.Errorf("adopting must not start an exposure, got %d starts", starts)
	}
	// hardware has now finished, so a new capture may proceed
	hw.mu.Lock()
	hw.pre = camera.ExpSuccess
	hw.mu.Unlock()
	if _, err := m.Run(context.Background(), request()); err != nil {
		t.Fatal(err)
	}
	if starts, _, _ := hw.counts(); starts != 1 {
		t.Errorf("expected one start got %d", starts)
	}
}

func TestCancelIdempotent(t *testing.T) {
	hw := &fakeHW{}
	m, _ := newMachine(hw)
	for i := 0; i < 2; i++ {
		if err := m.Cancel(); err != nil {
			t.Fatal(err)
		}
	}
	if _, stops, _ := hw.counts(); stops != 0 {
		t.Errorf("cancel while idle must not stop hardware, got %d stops", stops)
	}
}

func TestTimeout(t *testing.T) {
	hw := &fakeHW{block: true}
	m, dev := newMachine(hw)
	m.Timeout = 20 * time.Millisecond
	_, err := m.Run(context.Background(), request())
	if !errors.Is(err, camera.ErrCaptureTimedOut) {
		t.Fatalf("expected ErrCaptureTimedOut got %v", err)
	}
	if _, stops, _ := hw.counts(); stops != 1 {
		t.Errorf("expected a stop command on timeout, got %d", stops)
	}
	if dev.Capturing() {
		t.Error("machine should be idle after timeout")
	}
}

func TestContextCancel(t *testing.T) {
	hw := &fakeHW{block: true}
	m, _ := newMachine(hw)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	_, err := m.Run(ctx, request())
	if !errors.Is(err, camera.ErrCancelled) {
		t.Fatalf("expected ErrCancelled got %v", err)
	}
	if _, stops, _ := hw.counts(); stops != 1 {
		t.Errorf("expected a stop command, got %d", stops)
	}
}

func TestTransitionsObserved(t *testing.T) {
	hw := &fakeHW{final: camera.ExpSuccess}
	m, _ := newMachine(hw)
	var seen []State
	m.OnTransition = func(_, to State) { seen = append(seen, to) }
	if _, err := m.Run(context.Background(), request()); err != nil {
		t.Fatal(err)
	}
	want := []State{Exposing, Succeeded, Idle}
	if len(seen) != len(want) {
		t.Fatalf("expected %v got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("expected %v got %v", want, seen)
		}
	}
}

func TestRunUnknownFormat(t *testing.T) {
	hw := &fakeHW{final: camera.ExpSuccess}
	m, dev := newMachine(hw)
	req := request()
	req.Format = camera.PixelFormat(9)
	_, err := m.Run(context.Background(), req)
	if camera.KindOf(err) != camera.KindInvalidMode {
		t.Fatalf("expected invalid mode, got %v", err)
	}
	if _, _, reads := hw.counts(); reads != 0 {
		t.Errorf("read %d frames in an unknown format", reads)
	}
	if dev.Capturing() {
		t.Error("machine should be idle after a failed readout")
	}
	if st, last := m.State(); st != Idle || last == nil {
		t.Errorf("state %v, last %v", st, last)
	}
}
