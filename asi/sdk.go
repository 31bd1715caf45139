package asi

import (
	"fmt"
	"strings"

	"github.com/nasa-jpl/cameraunit/camera"
)

// ControlType enumerates the controls of an ASI camera
type ControlType int

const (
	Gain ControlType = iota
	Exposure
	Gamma
	WhiteBalR
	WhiteBalB
	Offset
	BandwidthOverload
	Overclock
	Temperature
	Flip
	AutoMaxGain
	AutoMaxExp
	AutoTargetBrightness
	HardwareBin
	HighSpeedMode
	CoolerPowerPerc
	TargetTemp
	CoolerOn
	MonoBin
	FanOn
	PatternAdjust
	AntiDewHeater
)

var controlNames = [...]string{
	"Gain", "Exposure", "Gamma", "WB_R", "WB_B", "Offset", "BandWidth", "Overclock",
	"Temperature", "Flip", "AutoExpMaxGain", "AutoExpMaxExpMS", "AutoExpTargetBrightness",
	"HardwareBin", "HighSpeedMode", "CoolPowerPerc", "TargetTemp", "CoolerOn", "MonoBin",
	"FanOn", "PatternAdjust", "AntiDewHeater",
}

func (c ControlType) String() string {
	if c >= 0 && int(c) < len(controlNames) {
		return controlNames[c]
	}
	return fmt.Sprintf("ControlType(%d)", int(c))
}

// ParseControlType looks up a control by the name the SDK reports for it
func ParseControlType(s string) (ControlType, error) {
	for i, n := range controlNames {
		if n == s {
			return ControlType(i), nil
		}
	}
	return 0, camera.Errorf(camera.KindInvalidControlType, "unknown control %q", s)
}

// BayerPattern is the color filter layout of a color sensor
type BayerPattern int

const (
	BayerRG BayerPattern = iota
	BayerBG
	BayerGR
	BayerGB
)

func (b BayerPattern) String() string {
	switch b {
	case BayerRG:
		return "RG"
	case BayerBG:
		return "BG"
	case BayerGR:
		return "GR"
	case BayerGB:
		return "GB"
	default:
		return fmt.Sprintf("BayerPattern(%d)", int(b))
	}
}

// Properties are the static properties of a camera, as reported by the SDK
type Properties struct {
	Name              string
	ID                int
	MaxHeight         int
	MaxWidth          int
	IsColor           bool
	Bayer             BayerPattern
	SupportedBins     []int
	SupportedFormats  []camera.PixelFormat
	PixelSize         float64
	MechanicalShutter bool
	ST4Port           bool
	IsCooler          bool
	IsUSB3Host        bool
	IsUSB3Camera      bool
	ElecPerADU        float64
	BitDepth          int
	IsTrigger         bool
}

// SupportsFormat reports if f is in the supported set
func (p Properties) SupportsFormat(f camera.PixelFormat) bool {
	for _, s := range p.SupportedFormats {
		if s == f {
			return true
		}
	}
	return false
}

// Legacy is true for USB2 ASI120 cameras, which have extra ROI constraints
func (p Properties) Legacy() bool {
	return !p.IsUSB3Host && strings.Contains(p.Name, "ASI120")
}

func (p Properties) String() string {
	return fmt.Sprintf("Camera %s\n\tID: %d\n\tDetector: %d x %d\n\tColor: %v, Shutter: %v, Cooler: %v, USB3: %v, Trigger: %v\n\tBayer pattern: %v\n\tBins: %v\n\tPixel size: %g um, e/ADU: %g, Bit depth: %d\n",
		p.Name, p.ID, p.MaxWidth, p.MaxHeight, p.IsColor, p.MechanicalShutter, p.IsCooler,
		p.IsUSB3Host, p.IsTrigger, p.Bayer, p.SupportedBins, p.PixelSize, p.ElecPerADU, p.BitDepth)
}

// ControlCaps describe the range and access of one control
type ControlCaps struct {
	Name          string
	Description   string
	Min, Max      int64
	Default       int64
	AutoSupported bool
	Writable      bool
	Type          ControlType
}

// ROIFormat is the readout geometry held by the SDK
type ROIFormat struct {
	Width, Height, Bin int
	Format             camera.PixelFormat
}

// SDK is the vendor call layer.  Every call is keyed by camera id except the
// enumeration calls, which take an index.
type SDK interface {
	NumCameras() int
	Property(index int) (Properties, error)
	PropertyByID(id int) (Properties, error)

	Open(id int) error
	Init(id int) error
	Close(id int) error

	NumControls(id int) (int, error)
	ControlCaps(id, index int) (ControlCaps, error)
	ControlValue(id int, ct ControlType) (value int64, auto bool, err error)
	SetControlValue(id int, ct ControlType, value int64, auto bool) error

	ROIFormat(id int) (ROIFormat, error)
	SetROIFormat(id int, f ROIFormat) error
	StartPos(id int) (x, y int, err error)
	SetStartPos(id, x, y int) error

	StartExposure(id int, dark bool) error
	StopExposure(id int) error
	ExposureStatus(id int) (camera.ExposureStatus, error)
	DataAfterExp(id int, buf []byte) error

	ID(id int) ([8]byte, error)
	SetID(id int, uid [8]byte) error
	SerialNumber(id int) ([8]byte, error)
	Version() string
}
