package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nasa-jpl/cameraunit/autoexp"
	"github.com/nasa-jpl/cameraunit/camera"
	"github.com/nasa-jpl/cameraunit/imagedata"
	"github.com/nasa-jpl/cameraunit/temperature"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{camera.ErrCaptureTimedOut, "timeout"},
		{camera.ErrCancelled, "cancelled"},
		{camera.ErrExposureInProgress, "busy"},
		{camera.ErrExposureFailed, "failed"},
		{errors.New("usb"), "failed"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("%v: expected %s, got %s", tt.err, tt.want, got)
		}
	}
}

func TestObserveCapture(t *testing.T) {
	s := New("sim")
	img := imagedata.New(nil, imagedata.Metadata{BinX: 2, Exposure: 1500 * time.Millisecond, Temperature: -5})
	s.ObserveCapture(img, nil)
	s.ObserveCapture(nil, camera.ErrCancelled)
	s.ObserveCapture(nil, camera.ErrCancelled)

	if v := testutil.ToFloat64(s.captures.WithLabelValues("ok")); v != 1 {
		t.Errorf("expected 1 ok, got %g", v)
	}
	if v := testutil.ToFloat64(s.captures.WithLabelValues("cancelled")); v != 2 {
		t.Errorf("expected 2 cancelled, got %g", v)
	}
	if v := testutil.ToFloat64(s.exposure); v != 1.5 {
		t.Errorf("exposure %g", v)
	}
	if v := testutil.ToFloat64(s.bin); v != 2 {
		t.Errorf("bin %g", v)
	}
	if v := testutil.ToFloat64(s.temp); v != -5 {
		t.Errorf("temp %g", v)
	}
}

func TestUnknownTemperatureIgnored(t *testing.T) {
	s := New("sim")
	s.ObserveCooling(-12, 40)
	s.ObserveCooling(temperature.Unknown, 41)
	if v := testutil.ToFloat64(s.temp); v != -12 {
		t.Errorf("temp %g", v)
	}
	if v := testutil.ToFloat64(s.cooler); v != 41 {
		t.Errorf("cooler %g", v)
	}
}

func TestWriteTextfile(t *testing.T) {
	s := New("sim")
	s.ObserveExposure(autoexp.Result{Value: 25000})
	s.ObserveCapture(nil, nil)
	path := filepath.Join(t.TempDir(), "asi.prom")
	if err := s.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(b)
	for _, want := range []string{
		`asicapture_captures_total{camera="sim",outcome="ok"} 1`,
		`asicapture_percentile_level{camera="sim"} 25000`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in\n%s", want, text)
		}
	}
}
