package asi

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nasa-jpl/cameraunit/camera"
	"github.com/nasa-jpl/cameraunit/temperature"
)

func smallProps() Properties {
	p := DefaultProperties(0)
	p.Name = "ZWO ASI290MM Mini"
	p.MaxWidth = 64
	p.MaxHeight = 48
	p.SupportedBins = []int{1, 2}
	return p
}

func openSim(t *testing.T, props Properties) (*Simulator, *Registry, *Camera, *Info) {
	t.Helper()
	sim := NewSimulator(NewSimCamera(props))
	reg := NewRegistry(sim, nil)
	cam, info, err := reg.Open(props.ID)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cam.Close()
		info.Close()
	})
	return sim, reg, cam, info
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestErrorCodes(t *testing.T) {
	if Error(0) != nil {
		t.Error("ASI_SUCCESS should be nil")
	}
	err := Error(15)
	if !errors.Is(err, camera.ErrExposureInProgress) {
		t.Errorf("code 15 should be exposure in progress, got %v", err)
	}
	if camera.KindOf(Error(10)) != camera.KindOutOfBounds {
		t.Error("code 10 should map to out of bounds")
	}
	if camera.KindOf(Error(99)) != camera.KindGeneral {
		t.Error("unknown codes should map to the general kind")
	}
	if s := ErrorCode(15).String(); s != "15 - ASI_ERROR_EXPOSURE_IN_PROGRESS" {
		t.Errorf("got %q", s)
	}
}

func TestParseControlType(t *testing.T) {
	for _, ct := range []ControlType{Gain, Exposure, Offset, TargetTemp, AntiDewHeater} {
		got, err := ParseControlType(ct.String())
		if err != nil || got != ct {
			t.Errorf("%v: got %v, %v", ct, got, err)
		}
	}
	if _, err := ParseControlType("Brightness"); !errors.Is(err, camera.ErrInvalidControlType) {
		t.Errorf("expected invalid control type, got %v", err)
	}
}

func TestLegacy(t *testing.T) {
	p := Properties{Name: "ZWO ASI120MM", IsUSB3Host: false}
	if !p.Legacy() {
		t.Error("USB2 ASI120 should be legacy")
	}
	p.IsUSB3Host = true
	if p.Legacy() {
		t.Error("ASI120 on a USB3 host should not be legacy")
	}
}

func TestOpenDefaults(t *testing.T) {
	_, _, cam, _ := openSim(t, smallProps())
	if cam.ImageFormat() != camera.Raw16 {
		t.Errorf("expected RAW16 default for a mono camera, got %v", cam.ImageFormat())
	}
	if cam.Exposure() != DefaultExposure {
		t.Errorf("expected default exposure %v, got %v", DefaultExposure, cam.Exposure())
	}
	want := camera.ROI{XMax: 64, YMax: 48, BinX: 1, BinY: 1}
	if diff := cmp.Diff(want, cam.ROI()); diff != "" {
		t.Errorf("ROI mismatch (-want +got):\n%s", diff)
	}
	if cam.Vendor() != "ZWO" {
		t.Errorf("vendor %q", cam.Vendor())
	}
	if uid, err := cam.UUID(); err != nil || uid != "SIM" {
		t.Errorf("uuid %q, %v", uid, err)
	}
}

func TestOpenColorDefaultsToRGB(t *testing.T) {
	p := smallProps()
	p.IsColor = true
	p.SupportedFormats = append(p.SupportedFormats, camera.RGB24)
	_, _, cam, _ := openSim(t, p)
	if cam.ImageFormat() != camera.RGB24 {
		t.Errorf("expected RGB24, got %v", cam.ImageFormat())
	}
}

func TestOpenTwiceRefused(t *testing.T) {
	sim := NewSimulator(NewSimCamera(smallProps()))
	reg := NewRegistry(sim, nil)
	cam, info, err := reg.Open(0)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := reg.Open(0); camera.KindOf(err) != camera.KindInvalidID {
		t.Errorf("second open should be refused, got %v", err)
	}
	cam.Close()
	if !reg.IsOpen(0) || sim.Count("Close") != 0 {
		t.Error("hardware closed while the info handle is live")
	}
	if !info.Ready() {
		t.Error("info should stay ready after the camera handle closes")
	}
	info.Close()
	info.Close()
	if reg.IsOpen(0) {
		t.Error("camera still registered after both handles closed")
	}
	if n := sim.Count("Close"); n != 1 {
		t.Errorf("expected one hardware close, got %d", n)
	}
	cam, info, err = reg.Open(0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	cam.Close()
	info.Close()
}

func TestOpenUnknown(t *testing.T) {
	reg := NewRegistry(NewSimulator(), nil)
	if _, _, err := reg.Open(7); camera.KindOf(err) != camera.KindInvalidID {
		t.Errorf("expected invalid id, got %v", err)
	}
	if _, _, err := reg.OpenIndex(3); camera.KindOf(err) != camera.KindInvalidIndex {
		t.Errorf("expected invalid index, got %v", err)
	}
}

func TestOpenInitFailureCloses(t *testing.T) {
	sim := NewSimulator(NewSimCamera(smallProps()))
	sim.SetFail("Init", Error(5))
	reg := NewRegistry(sim, nil)
	if _, _, err := reg.Open(0); !errors.Is(err, camera.ErrCameraRemoved) {
		t.Errorf("expected camera removed, got %v", err)
	}
	if sim.Count("Close") != 1 || reg.IsOpen(0) {
		t.Error("failed open should close the hardware and not register it")
	}
}

func TestSetROI(t *testing.T) {
	sim, _, cam, _ := openSim(t, smallProps())
	roi, err := cam.SetROI(camera.ROI{XMin: 8, XMax: 45, YMin: 4, YMax: 21, BinX: 1, BinY: 1})
	if err != nil {
		t.Fatal(err)
	}
	want := camera.ROI{XMin: 8, XMax: 40, YMin: 4, YMax: 20, BinX: 1, BinY: 1}
	if diff := cmp.Diff(want, roi); diff != "" {
		t.Errorf("ROI mismatch (-want +got):\n%s", diff)
	}
	rf, _ := sim.ROIFormat(0)
	if rf.Width != 32 || rf.Height != 16 || rf.Bin != 1 {
		t.Errorf("hardware format %+v", rf)
	}
	x, y, _ := sim.StartPos(0)
	if x != 8 || y != 4 {
		t.Errorf("start position %d,%d", x, y)
	}
}

func TestSetROIRollback(t *testing.T) {
	sim, _, cam, _ := openSim(t, smallProps())
	before, _ := sim.ROIFormat(0)
	sim.SetFail("SetStartPos", Error(10))
	_, err := cam.SetROI(camera.ROI{XMin: 8, XMax: 40, YMin: 4, YMax: 20, BinX: 1, BinY: 1})
	if !errors.Is(err, camera.ErrOutOfBounds) {
		t.Fatalf("expected out of bounds, got %v", err)
	}
	after, _ := sim.ROIFormat(0)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("format not restored (-want +got):\n%s", diff)
	}
	if cam.ROI().Width() != 64 {
		t.Errorf("cached ROI changed to %v", cam.ROI())
	}
}

func TestSetROIRejectsBadBin(t *testing.T) {
	sim, _, cam, _ := openSim(t, smallProps())
	n := sim.Count("SetROIFormat")
	if _, err := cam.SetROI(camera.ROI{BinX: 3, BinY: 3}); camera.KindOf(err) != camera.KindInvalidSize {
		t.Errorf("expected invalid size, got %v", err)
	}
	if sim.Count("SetROIFormat") != n {
		t.Error("hardware touched for an invalid request")
	}
}

func TestSetGainPercent(t *testing.T) {
	_, _, cam, _ := openSim(t, smallProps())
	pct, err := cam.SetGain(50)
	if err != nil {
		t.Fatal(err)
	}
	if pct != 50 || cam.GainRaw() != 150 {
		t.Errorf("got %g%%, raw %d", pct, cam.GainRaw())
	}
	if _, err := cam.SetGain(150); camera.KindOf(err) != camera.KindInvalidValue {
		t.Errorf("expected invalid value, got %v", err)
	}
	if _, err := cam.SetGainRaw(301); camera.KindOf(err) != camera.KindInvalidValue {
		t.Errorf("expected invalid value, got %v", err)
	}
}

func TestSetExposureBounds(t *testing.T) {
	_, _, cam, _ := openSim(t, smallProps())
	got, err := cam.SetExposure(250 * time.Millisecond)
	if err != nil || got != 250*time.Millisecond {
		t.Errorf("got %v, %v", got, err)
	}
	if _, err := cam.SetExposure(time.Microsecond); camera.KindOf(err) != camera.KindInvalidValue {
		t.Errorf("expected invalid value, got %v", err)
	}
	if cam.Exposure() != 250*time.Millisecond {
		t.Error("rejected exposure changed the setting")
	}
}

func TestTemperature(t *testing.T) {
	_, _, _, info := openSim(t, smallProps())
	got, err := info.SetTemperature(-10)
	if err != nil || got != -10 {
		t.Fatalf("set point %v, %v", got, err)
	}
	temp, err := info.Temperature()
	if err != nil || temp != -10 {
		t.Errorf("temperature %v, %v", temp, err)
	}
	if p, err := info.CoolerPower(); err != nil || p <= 0 {
		t.Errorf("cooler should be running, power %g, %v", p, err)
	}
	if _, err := info.SetTemperature(-90); camera.KindOf(err) != camera.KindInvalidValue {
		t.Errorf("expected invalid value, got %v", err)
	}
	if _, err := info.SetCoolerPower(10); !errors.Is(err, camera.ErrNotImplemented) {
		t.Errorf("cooler power is read only, got %v", err)
	}
}

func TestTemperatureUncooled(t *testing.T) {
	p := smallProps()
	p.IsCooler = false
	_, _, cam, _ := openSim(t, p)
	if _, err := cam.SetTemperature(0); camera.KindOf(err) != camera.KindInvalidControlType {
		t.Errorf("expected invalid control type, got %v", err)
	}
	if _, err := cam.CoolerPower(); camera.KindOf(err) != camera.KindInvalidControlType {
		t.Errorf("expected invalid control type, got %v", err)
	}
	temp, err := cam.Temperature()
	if err != nil || temp != temperature.Celsius(20) {
		t.Errorf("ambient %v, %v", temp, err)
	}
}

func TestSetUUID(t *testing.T) {
	_, _, cam, _ := openSim(t, smallProps())
	if err := cam.SetUUID("toolong99"); camera.KindOf(err) != camera.KindInvalidValue {
		t.Errorf("expected invalid value, got %v", err)
	}
	if err := cam.SetUUID("guide1"); err != nil {
		t.Fatal(err)
	}
	if uid, _ := cam.UUID(); uid != "guide1" {
		t.Errorf("uuid %q", uid)
	}
	if sn, err := cam.SerialNumber(); err != nil || sn == 0 {
		t.Errorf("serial %x, %v", sn, err)
	}
}

func TestCapture(t *testing.T) {
	_, _, cam, _ := openSim(t, smallProps())
	if _, err := cam.LastImage(); !errors.Is(err, camera.ErrNoData) {
		t.Errorf("expected no data before a capture, got %v", err)
	}
	if _, err := cam.SetExposure(time.Millisecond); err != nil {
		t.Fatal(err)
	}
	img, err := cam.Capture(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if img.Width() != 64 || img.Height() != 48 {
		t.Errorf("size %dx%d", img.Width(), img.Height())
	}
	if diff := cmp.Diff([]string{"False"}, img.Meta.Lookup("DARKFRAM")); diff != "" {
		t.Errorf("DARKFRAM mismatch (-want +got):\n%s", diff)
	}
	if img.Meta.Exposure != time.Millisecond || img.Meta.CameraName != "ZWO ASI290MM Mini" {
		t.Errorf("metadata %+v", img.Meta)
	}
	if img.Meta.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
	last, err := cam.LastImage()
	if err != nil || last != img {
		t.Error("last image not stored")
	}
	if cam.Status() != "Idle" {
		t.Errorf("status %q after capture", cam.Status())
	}
}

func TestCaptureDarkFrame(t *testing.T) {
	p := smallProps()
	p.MechanicalShutter = true
	sim, _, cam, _ := openSim(t, p)
	cam.SetExposure(time.Millisecond)
	if open, err := cam.SetShutterOpen(false); err != nil || open {
		t.Fatalf("shutter %v, %v", open, err)
	}
	img, err := cam.Capture(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"True"}, img.Meta.Lookup("DARKFRAM")); diff != "" {
		t.Errorf("DARKFRAM mismatch (-want +got):\n%s", diff)
	}
	if c := sim.Camera(0); !c.dark {
		t.Error("exposure was not started as a dark frame")
	}
}

func TestShutterAbsent(t *testing.T) {
	_, _, cam, _ := openSim(t, smallProps())
	if _, err := cam.ShutterOpen(); camera.KindOf(err) != camera.KindInvalidControlType {
		t.Errorf("expected invalid control type, got %v", err)
	}
	if _, err := cam.SetShutterOpen(false); camera.KindOf(err) != camera.KindInvalidControlType {
		t.Errorf("expected invalid control type, got %v", err)
	}
}

func TestMutatorsRefusedWhileCapturing(t *testing.T) {
	sim, _, cam, info := openSim(t, smallProps())
	cam.SetExposure(time.Millisecond)
	sim.SetStuck(0, true)

	done := make(chan error, 1)
	go func() {
		_, err := cam.Capture(context.Background())
		done <- err
	}()
	waitFor(t, func() bool { return cam.Status() == "Exposing" })

	if !info.Capturing() {
		t.Error("info handle does not see the capture")
	}
	if _, err := cam.SetExposure(2 * time.Millisecond); !errors.Is(err, camera.ErrExposureInProgress) {
		t.Errorf("SetExposure: %v", err)
	}
	if _, err := cam.SetROI(camera.ROI{BinX: 2, BinY: 2}); !errors.Is(err, camera.ErrExposureInProgress) {
		t.Errorf("SetROI: %v", err)
	}
	if _, err := cam.SetGainRaw(10); !errors.Is(err, camera.ErrExposureInProgress) {
		t.Errorf("SetGainRaw: %v", err)
	}
	if err := cam.SetImageFormat(camera.Raw8); !errors.Is(err, camera.ErrExposureInProgress) {
		t.Errorf("SetImageFormat: %v", err)
	}

	if err := cam.CancelCapture(); err != nil {
		t.Fatal(err)
	}
	if err := <-done; !errors.Is(err, camera.ErrCancelled) {
		t.Errorf("expected cancelled, got %v", err)
	}
	if info.Capturing() {
		t.Error("still capturing after cancel")
	}
	if _, err := cam.SetExposure(2 * time.Millisecond); err != nil {
		t.Errorf("SetExposure after cancel: %v", err)
	}
}

func TestCaptureTimeout(t *testing.T) {
	sim, _, cam, _ := openSim(t, smallProps())
	cam.SetExposure(time.Millisecond)
	cam.SetCaptureTimeout(10 * time.Millisecond)
	sim.SetStuck(0, true)
	if _, err := cam.Capture(context.Background()); !errors.Is(err, camera.ErrCaptureTimedOut) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if n := sim.Count("StopExposure"); n != 1 {
		t.Errorf("expected one stop, got %d", n)
	}
}

func TestCaptureAdoptsRunningExposure(t *testing.T) {
	sim, _, cam, _ := openSim(t, smallProps())
	sim.SetExposureStatus(0, camera.ExpWorking)
	if _, err := cam.Capture(context.Background()); !errors.Is(err, camera.ErrExposureInProgress) {
		t.Errorf("expected exposure in progress, got %v", err)
	}
	if n := sim.Count("StartExposure"); n != 0 {
		t.Errorf("started %d exposures over a running one", n)
	}
	if !cam.Capturing() {
		t.Error("adopted exposure should report capturing")
	}
	if st, _ := sim.ExposureStatus(0); st != camera.ExpWorking {
		t.Errorf("forced exposure finished on its own, status %v", st)
	}
	if _, err := cam.Capture(context.Background()); !errors.Is(err, camera.ErrExposureInProgress) {
		t.Errorf("second capture: expected exposure in progress, got %v", err)
	}
	if n := sim.Count("StartExposure"); n != 0 {
		t.Errorf("second capture started %d exposures", n)
	}
}

func TestStatusReportsLastFailure(t *testing.T) {
	sim, _, cam, _ := openSim(t, smallProps())
	cam.SetExposure(time.Millisecond)
	sim.SetFail("DataAfterExp", Error(13))
	if _, err := cam.Capture(context.Background()); !errors.Is(err, camera.ErrBufferTooSmall) {
		t.Fatalf("expected readout error, got %v", err)
	}
	if s := cam.Status(); !strings.HasPrefix(s, "Idle (last: ") || !strings.Contains(s, "ASI_ERROR_BUFFER_TOO_SMALL") {
		t.Errorf("status %q", s)
	}
}

func TestConfigure(t *testing.T) {
	_, _, cam, _ := openSim(t, smallProps())
	err := cam.Configure(map[ControlType]int64{
		Gain:        120,
		Offset:      20,
		Exposure:    5000,
		Temperature: 100,
		Gamma:       50,
	})
	if camera.KindOf(err) != camera.KindInvalidControlType {
		t.Errorf("expected invalid control type for read only and missing controls, got %v", err)
	}
	if cam.GainRaw() != 120 || cam.Offset() != 20 {
		t.Errorf("gain %d offset %d", cam.GainRaw(), cam.Offset())
	}
	if cam.Exposure() != 5*time.Millisecond {
		t.Errorf("exposure %v", cam.Exposure())
	}
	if err := cam.Configure(map[ControlType]int64{Gain: 10}); err != nil {
		t.Error(err)
	}
	if err := cam.Configure(map[ControlType]int64{Exposure: 5}); err != nil {
		t.Fatal(err)
	}
	if cam.Exposure() != 32*time.Microsecond {
		t.Errorf("exposure should follow the clamped hardware value, got %v", cam.Exposure())
	}
}
