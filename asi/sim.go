package asi

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/nasa-jpl/cameraunit/camera"
)

// forever is the length of an exposure that never completes on its own
const forever = time.Duration(1<<63 - 1)

// SimCamera is the state of one simulated camera
type SimCamera struct {
	Props    Properties
	Controls []ControlCaps

	// Flux is the mean signal in ADU per second of exposure at bin 1
	Flux float64

	// Stuck keeps exposures reporting Working forever
	Stuck bool

	values map[ControlType]int64
	open   bool
	inited bool
	roi    ROIFormat
	sx, sy int
	status camera.ExposureStatus
	start  time.Time
	dur    time.Duration
	dark   bool
	uid    [8]byte
	serial [8]byte
}

// DefaultProperties describes a cooled 16-bit mono camera similar to an
// ASI183MM Pro
func DefaultProperties(id int) Properties {
	return Properties{
		Name:              "ZWO ASI183MM Pro",
		ID:                id,
		MaxWidth:          5496,
		MaxHeight:         3672,
		SupportedBins:     []int{1, 2, 3, 4},
		SupportedFormats:  []camera.PixelFormat{camera.Raw8, camera.Raw16},
		PixelSize:         2.4,
		IsCooler:          true,
		IsUSB3Host:        true,
		IsUSB3Camera:      true,
		ElecPerADU:        3.6,
		BitDepth:          12,
		MechanicalShutter: false,
	}
}

// DefaultControls are the controls of a cooled camera
func DefaultControls() []ControlCaps {
	return []ControlCaps{
		{Name: "Gain", Type: Gain, Min: 0, Max: 300, Default: 0, Writable: true},
		{Name: "Exposure", Type: Exposure, Min: 32, Max: 2000000000, Default: 10000, Writable: true},
		{Name: "Offset", Type: Offset, Min: 0, Max: 80, Default: 10, Writable: true},
		{Name: "BandWidth", Type: BandwidthOverload, Min: 40, Max: 100, Default: 50, Writable: true},
		{Name: "Temperature", Type: Temperature, Min: -500, Max: 1000, Default: 200},
		{Name: "CoolPowerPerc", Type: CoolerPowerPerc, Min: 0, Max: 100, Default: 0},
		{Name: "TargetTemp", Type: TargetTemp, Min: -40, Max: 30, Default: 0, Writable: true},
		{Name: "CoolerOn", Type: CoolerOn, Min: 0, Max: 1, Default: 0, Writable: true},
	}
}

// NewSimCamera creates a simulated camera with the default controls
func NewSimCamera(props Properties) *SimCamera {
	return &SimCamera{Props: props, Controls: DefaultControls(), Flux: 10000}
}

// Simulator is an in-memory SDK.  Exposures complete after their programmed
// time on the Now clock.  It is safe for concurrent use.
type Simulator struct {
	mu   sync.Mutex
	cams []*SimCamera

	// Now is the simulator clock
	Now func() time.Time

	// Fail maps an SDK method name to an error it returns instead of running
	Fail map[string]error

	// Calls counts invocations of each SDK method by name
	Calls map[string]int
}

// NewSimulator returns a simulator with the given cameras.  With none, it
// has one camera with DefaultProperties.
func NewSimulator(cams ...*SimCamera) *Simulator {
	if len(cams) == 0 {
		cams = []*SimCamera{NewSimCamera(DefaultProperties(0))}
	}
	for _, c := range cams {
		c.values = map[ControlType]int64{}
		for _, cc := range c.Controls {
			c.values[cc.Type] = cc.Default
		}
		copy(c.uid[:], "SIM")
		binary.BigEndian.PutUint64(c.serial[:], uint64(0x5a574f0000000000+c.Props.ID))
	}
	return &Simulator{cams: cams, Now: time.Now, Fail: map[string]error{}, Calls: map[string]int{}}
}

// Count returns the number of calls made to the named method
func (s *Simulator) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls[name]
}

// SetFail makes the named method return err, or clears the fault if err is nil
func (s *Simulator) SetFail(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.Fail, name)
		return
	}
	s.Fail[name] = err
}

// Camera returns the state of the simulated camera with id, or nil
func (s *Simulator) Camera(id int) *SimCamera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID(id)
}

// SetStuck makes exposures of camera id report Working forever
func (s *Simulator) SetStuck(id int, stuck bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.byID(id); c != nil {
		c.Stuck = stuck
	}
}

// SetExposureStatus forces the hardware exposure status of camera id.  A
// forced Working exposure runs until stopped.
func (s *Simulator) SetExposureStatus(id int, st camera.ExposureStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.byID(id); c != nil {
		c.status = st
		if st == camera.ExpWorking {
			c.start = s.Now()
			c.dur = forever
		}
	}
}

func (s *Simulator) byID(id int) *SimCamera {
	for _, c := range s.cams {
		if c.Props.ID == id {
			return c
		}
	}
	return nil
}

// enter records a call and returns any injected fault; must hold mu
func (s *Simulator) enter(name string) error {
	s.Calls[name]++
	return s.Fail[name]
}

// opened looks up an initialized camera; must hold mu
func (s *Simulator) opened(id int) (*SimCamera, error) {
	c := s.byID(id)
	if c == nil {
		return nil, Error(2)
	}
	if !c.open {
		return nil, Error(4)
	}
	return c, nil
}

func (s *Simulator) NumCameras() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enter("NumCameras")
	return len(s.cams)
}

func (s *Simulator) Property(index int) (Properties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Property"); err != nil {
		return Properties{}, err
	}
	if index < 0 || index >= len(s.cams) {
		return Properties{}, Error(1)
	}
	return s.cams[index].Props, nil
}

func (s *Simulator) PropertyByID(id int) (Properties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("PropertyByID"); err != nil {
		return Properties{}, err
	}
	c := s.byID(id)
	if c == nil {
		return Properties{}, Error(2)
	}
	return c.Props, nil
}

func (s *Simulator) Open(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Open"); err != nil {
		return err
	}
	c := s.byID(id)
	if c == nil {
		return Error(2)
	}
	c.open = true
	return nil
}

func (s *Simulator) Init(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Init"); err != nil {
		return err
	}
	c, err := s.opened(id)
	if err != nil {
		return err
	}
	c.inited = true
	c.roi = ROIFormat{Width: c.Props.MaxWidth, Height: c.Props.MaxHeight, Bin: 1, Format: camera.Raw8}
	c.status = camera.ExpIdle
	return nil
}

func (s *Simulator) Close(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Close"); err != nil {
		return err
	}
	c := s.byID(id)
	if c == nil {
		return Error(2)
	}
	c.open, c.inited = false, false
	return nil
}

func (s *Simulator) NumControls(id int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("NumControls"); err != nil {
		return 0, err
	}
	c, err := s.opened(id)
	if err != nil {
		return 0, err
	}
	return len(c.Controls), nil
}

func (s *Simulator) ControlCaps(id, index int) (ControlCaps, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ControlCaps"); err != nil {
		return ControlCaps{}, err
	}
	c, err := s.opened(id)
	if err != nil {
		return ControlCaps{}, err
	}
	if index < 0 || index >= len(c.Controls) {
		return ControlCaps{}, Error(1)
	}
	return c.Controls[index], nil
}

func (c *SimCamera) caps(ct ControlType) (ControlCaps, bool) {
	for _, cc := range c.Controls {
		if cc.Type == ct {
			return cc, true
		}
	}
	return ControlCaps{}, false
}

func (s *Simulator) ControlValue(id int, ct ControlType) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ControlValue"); err != nil {
		return 0, false, err
	}
	c, err := s.opened(id)
	if err != nil {
		return 0, false, err
	}
	if _, ok := c.caps(ct); !ok {
		return 0, false, Error(3)
	}
	cooling := c.values[CoolerOn] == 1
	switch ct {
	case Temperature:
		if cooling {
			return c.values[TargetTemp] * 10, false, nil
		}
	case CoolerPowerPerc:
		if cooling {
			return 50, false, nil
		}
		return 0, false, nil
	}
	return c.values[ct], false, nil
}

func (s *Simulator) SetControlValue(id int, ct ControlType, v int64, auto bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SetControlValue"); err != nil {
		return err
	}
	c, err := s.opened(id)
	if err != nil {
		return err
	}
	cc, ok := c.caps(ct)
	if !ok {
		return Error(3)
	}
	if !cc.Writable {
		return Error(16)
	}
	// the hardware clamps rather than rejects
	if v < cc.Min {
		v = cc.Min
	}
	if v > cc.Max {
		v = cc.Max
	}
	c.values[ct] = v
	return nil
}

func (s *Simulator) ROIFormat(id int) (ROIFormat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ROIFormat"); err != nil {
		return ROIFormat{}, err
	}
	c, err := s.opened(id)
	if err != nil {
		return ROIFormat{}, err
	}
	return c.roi, nil
}

func (s *Simulator) SetROIFormat(id int, f ROIFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SetROIFormat"); err != nil {
		return err
	}
	c, err := s.opened(id)
	if err != nil {
		return err
	}
	if f.Bin < 1 || f.Width <= 0 || f.Height <= 0 ||
		f.Width*f.Bin > c.Props.MaxWidth || f.Height*f.Bin > c.Props.MaxHeight {
		return Error(8)
	}
	if !c.Props.SupportsFormat(f.Format) && !(c.Props.IsColor && f.Format == camera.RGB24) {
		return Error(9)
	}
	c.roi = f
	return nil
}

func (s *Simulator) StartPos(id int) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("StartPos"); err != nil {
		return 0, 0, err
	}
	c, err := s.opened(id)
	if err != nil {
		return 0, 0, err
	}
	return c.sx, c.sy, nil
}

func (s *Simulator) SetStartPos(id, x, y int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SetStartPos"); err != nil {
		return err
	}
	c, err := s.opened(id)
	if err != nil {
		return err
	}
	if x < 0 || y < 0 || x+c.roi.Width > c.Props.MaxWidth/c.roi.Bin || y+c.roi.Height > c.Props.MaxHeight/c.roi.Bin {
		return Error(10)
	}
	c.sx, c.sy = x, y
	return nil
}

func (s *Simulator) StartExposure(id int, dark bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("StartExposure"); err != nil {
		return err
	}
	c, err := s.opened(id)
	if err != nil {
		return err
	}
	if c.status == camera.ExpWorking {
		return Error(15)
	}
	c.status = camera.ExpWorking
	c.start = s.Now()
	c.dur = time.Duration(c.values[Exposure]) * time.Microsecond
	c.dark = dark
	return nil
}

func (s *Simulator) StopExposure(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("StopExposure"); err != nil {
		return err
	}
	c, err := s.opened(id)
	if err != nil {
		return err
	}
	if c.status == camera.ExpWorking {
		c.status = camera.ExpIdle
	}
	return nil
}

func (s *Simulator) ExposureStatus(id int) (camera.ExposureStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ExposureStatus"); err != nil {
		return camera.ExpIdle, err
	}
	c, err := s.opened(id)
	if err != nil {
		return camera.ExpIdle, err
	}
	if c.status == camera.ExpWorking && !c.Stuck && s.Now().Sub(c.start) >= c.dur {
		c.status = camera.ExpSuccess
	}
	return c.status, nil
}

func (s *Simulator) DataAfterExp(id int, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DataAfterExp"); err != nil {
		return err
	}
	c, err := s.opened(id)
	if err != nil {
		return err
	}
	if c.status != camera.ExpSuccess {
		return Error(12)
	}
	w, h, bpp := c.roi.Width, c.roi.Height, c.roi.Format.BytesPerPixel()
	if len(buf) < w*h*bpp {
		return Error(13)
	}
	c.render(buf)
	c.status = camera.ExpIdle
	return nil
}

// render fills buf with a horizontal ramp whose mean scales with exposure
// time and binned area.  Dark frames hold only the offset.
func (c *SimCamera) render(buf []byte) {
	w, h := c.roi.Width, c.roi.Height
	base := float64(c.values[Offset])
	signal := 0.0
	if !c.dark {
		b := float64(c.roi.Bin)
		signal = c.Flux * c.dur.Seconds() * b * b
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := base + signal*(0.5+float64(x)/float64(w))
			if v > 65535 {
				v = 65535
			}
			px := uint16(v)
			i := y*w + x
			switch c.roi.Format {
			case camera.Raw16:
				binary.LittleEndian.PutUint16(buf[2*i:], px)
			case camera.RGB24:
				buf[3*i], buf[3*i+1], buf[3*i+2] = byte(px>>8), byte(px>>8), byte(px>>8)
			default:
				buf[i] = byte(px >> 8)
			}
		}
	}
}

func (s *Simulator) ID(id int) ([8]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ID"); err != nil {
		return [8]byte{}, err
	}
	c, err := s.opened(id)
	if err != nil {
		return [8]byte{}, err
	}
	return c.uid, nil
}

func (s *Simulator) SetID(id int, uid [8]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SetID"); err != nil {
		return err
	}
	c, err := s.opened(id)
	if err != nil {
		return err
	}
	c.uid = uid
	return nil
}

func (s *Simulator) SerialNumber(id int) ([8]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SerialNumber"); err != nil {
		return [8]byte{}, err
	}
	c, err := s.opened(id)
	if err != nil {
		return [8]byte{}, err
	}
	return c.serial, nil
}

func (s *Simulator) Version() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enter("Version")
	return "1.31-sim"
}

var _ SDK = (*Simulator)(nil)
