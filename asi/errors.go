package asi

import (
	"fmt"

	"github.com/nasa-jpl/cameraunit/camera"
)

// ErrorCode is an ASI_ERROR_CODE returned by the SDK
type ErrorCode int

var (
	// ErrCodes maps SDK return codes to their names
	ErrCodes = map[ErrorCode]string{
		0:  "ASI_SUCCESS",
		1:  "ASI_ERROR_INVALID_INDEX",
		2:  "ASI_ERROR_INVALID_ID",
		3:  "ASI_ERROR_INVALID_CONTROL_TYPE",
		4:  "ASI_ERROR_CAMERA_CLOSED",
		5:  "ASI_ERROR_CAMERA_REMOVED",
		6:  "ASI_ERROR_INVALID_PATH",
		7:  "ASI_ERROR_INVALID_FILEFORMAT",
		8:  "ASI_ERROR_INVALID_SIZE",
		9:  "ASI_ERROR_INVALID_IMGTYPE",
		10: "ASI_ERROR_OUTOF_BOUNDARY",
		11: "ASI_ERROR_TIMEOUT",
		12: "ASI_ERROR_INVALID_SEQUENCE",
		13: "ASI_ERROR_BUFFER_TOO_SMALL",
		14: "ASI_ERROR_VIDEO_MODE_ACTIVE",
		15: "ASI_ERROR_EXPOSURE_IN_PROGRESS",
		16: "ASI_ERROR_GENERAL_ERROR",
		17: "ASI_ERROR_INVALID_MODE",
	}

	codeKinds = map[ErrorCode]camera.Kind{
		1:  camera.KindInvalidIndex,
		2:  camera.KindInvalidID,
		3:  camera.KindInvalidControlType,
		4:  camera.KindCameraClosed,
		5:  camera.KindCameraRemoved,
		6:  camera.KindInvalidPath,
		7:  camera.KindInvalidFormat,
		8:  camera.KindInvalidSize,
		9:  camera.KindInvalidImageType,
		10: camera.KindOutOfBounds,
		11: camera.KindTimedOut,
		12: camera.KindInvalidSequence,
		13: camera.KindBufferTooSmall,
		14: camera.KindInvalidMode,
		15: camera.KindExposureInProgress,
		16: camera.KindGeneral,
		17: camera.KindInvalidMode,
	}
)

func (e ErrorCode) String() string {
	if s, ok := ErrCodes[e]; ok {
		return fmt.Sprintf("%d - %s", int(e), s)
	}
	return fmt.Sprintf("%d - UNKNOWN_ERROR_CODE", int(e))
}

// Error returns nil for ASI_SUCCESS, or a camera error of the matching kind
func Error(code int) error {
	if code == 0 {
		return nil
	}
	c := ErrorCode(code)
	kind, ok := codeKinds[c]
	if !ok {
		kind = camera.KindGeneral
	}
	return &camera.Error{Kind: kind, Msg: c.String()}
}
