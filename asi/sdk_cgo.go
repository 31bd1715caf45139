//go:build asi

package asi

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lASICamera2
#include <stdlib.h>
#include <ASICamera2.h>
*/
import "C"
import (
	"unsafe"

	"github.com/nasa-jpl/cameraunit/camera"
)

// cgoSDK calls the vendor library
type cgoSDK struct{}

// NewSDK returns the SDK backed by libASICamera2
func NewSDK() (SDK, error) {
	return cgoSDK{}, nil
}

func cbool(b bool) C.ASI_BOOL {
	if b {
		return C.ASI_TRUE
	}
	return C.ASI_FALSE
}

func toProperties(info *C.ASI_CAMERA_INFO) Properties {
	p := Properties{
		Name:              C.GoString(&info.Name[0]),
		ID:                int(info.CameraID),
		MaxHeight:         int(info.MaxHeight),
		MaxWidth:          int(info.MaxWidth),
		IsColor:           info.IsColorCam == C.ASI_TRUE,
		Bayer:             BayerPattern(info.BayerPattern),
		PixelSize:         float64(info.PixelSize),
		MechanicalShutter: info.MechanicalShutter == C.ASI_TRUE,
		ST4Port:           info.ST4Port == C.ASI_TRUE,
		IsCooler:          info.IsCoolerCam == C.ASI_TRUE,
		IsUSB3Host:        info.IsUSB3Host == C.ASI_TRUE,
		IsUSB3Camera:      info.IsUSB3Camera == C.ASI_TRUE,
		ElecPerADU:        float64(info.ElecPerADU),
		BitDepth:          int(info.BitDepth),
		IsTrigger:         info.IsTriggerCam == C.ASI_TRUE,
	}
	// both lists are terminated by a sentinel
	for _, b := range info.SupportedBins {
		if b == 0 {
			break
		}
		p.SupportedBins = append(p.SupportedBins, int(b))
	}
	for _, f := range info.SupportedVideoFormat {
		if f == C.ASI_IMG_END {
			break
		}
		if pf, err := camera.ToPixelFormat(int(f)); err == nil {
			p.SupportedFormats = append(p.SupportedFormats, pf)
		}
	}
	return p
}

func (cgoSDK) NumCameras() int {
	return int(C.ASIGetNumOfConnectedCameras())
}

func (cgoSDK) Property(index int) (Properties, error) {
	var info C.ASI_CAMERA_INFO
	if err := Error(int(C.ASIGetCameraProperty(&info, C.int(index)))); err != nil {
		return Properties{}, err
	}
	return toProperties(&info), nil
}

func (cgoSDK) PropertyByID(id int) (Properties, error) {
	var info C.ASI_CAMERA_INFO
	if err := Error(int(C.ASIGetCameraPropertyByID(C.int(id), &info))); err != nil {
		return Properties{}, err
	}
	return toProperties(&info), nil
}

func (cgoSDK) Open(id int) error {
	return Error(int(C.ASIOpenCamera(C.int(id))))
}

func (cgoSDK) Init(id int) error {
	return Error(int(C.ASIInitCamera(C.int(id))))
}

func (cgoSDK) Close(id int) error {
	return Error(int(C.ASICloseCamera(C.int(id))))
}

func (cgoSDK) NumControls(id int) (int, error) {
	var n C.int
	err := Error(int(C.ASIGetNumOfControls(C.int(id), &n)))
	return int(n), err
}

func (cgoSDK) ControlCaps(id, index int) (ControlCaps, error) {
	var cc C.ASI_CONTROL_CAPS
	if err := Error(int(C.ASIGetControlCaps(C.int(id), C.int(index), &cc))); err != nil {
		return ControlCaps{}, err
	}
	return ControlCaps{
		Name:          C.GoString(&cc.Name[0]),
		Description:   C.GoString(&cc.Description[0]),
		Min:           int64(cc.MinValue),
		Max:           int64(cc.MaxValue),
		Default:       int64(cc.DefaultValue),
		AutoSupported: cc.IsAutoSupported == C.ASI_TRUE,
		Writable:      cc.IsWritable == C.ASI_TRUE,
		Type:          ControlType(cc.ControlType),
	}, nil
}

func (cgoSDK) ControlValue(id int, ct ControlType) (int64, bool, error) {
	var (
		v    C.long
		auto C.ASI_BOOL
	)
	err := Error(int(C.ASIGetControlValue(C.int(id), C.ASI_CONTROL_TYPE(ct), &v, &auto)))
	return int64(v), auto == C.ASI_TRUE, err
}

func (cgoSDK) SetControlValue(id int, ct ControlType, value int64, auto bool) error {
	return Error(int(C.ASISetControlValue(C.int(id), C.ASI_CONTROL_TYPE(ct), C.long(value), cbool(auto))))
}

func (cgoSDK) ROIFormat(id int) (ROIFormat, error) {
	var (
		w, h, bin C.int
		typ       C.ASI_IMG_TYPE
	)
	if err := Error(int(C.ASIGetROIFormat(C.int(id), &w, &h, &bin, &typ))); err != nil {
		return ROIFormat{}, err
	}
	f, err := camera.ToPixelFormat(int(typ))
	if err != nil {
		return ROIFormat{}, err
	}
	return ROIFormat{Width: int(w), Height: int(h), Bin: int(bin), Format: f}, nil
}

func (cgoSDK) SetROIFormat(id int, f ROIFormat) error {
	return Error(int(C.ASISetROIFormat(C.int(id), C.int(f.Width), C.int(f.Height), C.int(f.Bin), C.ASI_IMG_TYPE(f.Format))))
}

func (cgoSDK) StartPos(id int) (int, int, error) {
	var x, y C.int
	err := Error(int(C.ASIGetStartPos(C.int(id), &x, &y)))
	return int(x), int(y), err
}

func (cgoSDK) SetStartPos(id, x, y int) error {
	return Error(int(C.ASISetStartPos(C.int(id), C.int(x), C.int(y))))
}

func (cgoSDK) StartExposure(id int, dark bool) error {
	return Error(int(C.ASIStartExposure(C.int(id), cbool(dark))))
}

func (cgoSDK) StopExposure(id int) error {
	return Error(int(C.ASIStopExposure(C.int(id))))
}

func (cgoSDK) ExposureStatus(id int) (camera.ExposureStatus, error) {
	var st C.ASI_EXPOSURE_STATUS
	if err := Error(int(C.ASIGetExpStatus(C.int(id), &st))); err != nil {
		return camera.ExpIdle, err
	}
	return camera.ToExposureStatus(int(st))
}

func (cgoSDK) DataAfterExp(id int, buf []byte) error {
	if len(buf) == 0 {
		return Error(13)
	}
	return Error(int(C.ASIGetDataAfterExp(C.int(id), (*C.uchar)(unsafe.Pointer(&buf[0])), C.long(len(buf)))))
}

func (cgoSDK) ID(id int) ([8]byte, error) {
	var (
		cid C.ASI_ID
		out [8]byte
	)
	err := Error(int(C.ASIGetID(C.int(id), &cid)))
	for i := range out {
		out[i] = byte(cid.id[i])
	}
	return out, err
}

func (cgoSDK) SetID(id int, uid [8]byte) error {
	var cid C.ASI_ID
	for i, b := range uid {
		cid.id[i] = C.uchar(b)
	}
	return Error(int(C.ASISetID(C.int(id), cid)))
}

func (cgoSDK) SerialNumber(id int) ([8]byte, error) {
	var (
		sn  C.ASI_SN
		out [8]byte
	)
	err := Error(int(C.ASIGetSerialNumber(C.int(id), &sn)))
	for i := range out {
		out[i] = byte(sn.id[i])
	}
	return out, err
}

func (cgoSDK) Version() string {
	return C.GoString(C.ASIGetSDKVersion())
}
