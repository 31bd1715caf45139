package camera

import (
	"errors"
	"fmt"
)

// Kind is a category of camera error
type Kind int

const (
	// KindGeneral is an unclassified failure
	KindGeneral Kind = iota
	KindNotImplemented
	KindInvalidIndex
	KindInvalidID
	KindInvalidControlType
	KindNoCameras
	KindCameraClosed
	KindCameraRemoved
	KindInvalidPath
	KindInvalidFormat
	KindInvalidSize
	KindInvalidImageType
	KindTimedOut
	KindInvalidSequence
	KindBufferTooSmall
	KindExposureInProgress
	KindInvalidMode
	KindExposureFailed
	KindNoData
	KindInvalidValue
	KindOutOfBounds
	KindCaptureTimedOut
	KindCancelled
)

var kindNames = map[Kind]string{
	KindGeneral:            "general error",
	KindNotImplemented:     "not implemented",
	KindInvalidIndex:       "invalid index",
	KindInvalidID:          "invalid camera id",
	KindInvalidControlType: "invalid control type",
	KindNoCameras:          "no cameras connected",
	KindCameraClosed:       "camera closed",
	KindCameraRemoved:      "camera removed",
	KindInvalidPath:        "invalid path",
	KindInvalidFormat:      "invalid format",
	KindInvalidSize:        "invalid size",
	KindInvalidImageType:   "invalid image type",
	KindTimedOut:           "timed out",
	KindInvalidSequence:    "invalid sequence",
	KindBufferTooSmall:     "buffer too small",
	KindExposureInProgress: "exposure in progress",
	KindInvalidMode:        "invalid mode",
	KindExposureFailed:     "exposure failed",
	KindNoData:             "exposure succeeded but no data available",
	KindInvalidValue:       "invalid value",
	KindOutOfBounds:        "out of bounds",
	KindCaptureTimedOut:    "capture timed out, forcibly cancelled",
	KindCancelled:          "capture cancelled",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a camera error with a kind and optional detail.
// errors.Is matches any two Errors of the same Kind.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

// Is allows errors.Is(err, ErrX) to match by kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Errorf creates an Error of kind k with a formatted message
func Errorf(k Kind, format string, args ...interface{}) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or KindGeneral if err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneral
}

var (
	// ErrGeneral is an unclassified failure
	ErrGeneral = &Error{Kind: KindGeneral}

	// ErrNotImplemented is returned by drivers for capabilities they do not have
	ErrNotImplemented = &Error{Kind: KindNotImplemented}

	// ErrInvalidIndex is returned when no camera exists at an index
	ErrInvalidIndex = &Error{Kind: KindInvalidIndex}

	// ErrInvalidID is returned for an invalid or unopened camera id
	ErrInvalidID = &Error{Kind: KindInvalidID}

	// ErrInvalidControlType is returned when a control does not exist on the device
	ErrInvalidControlType = &Error{Kind: KindInvalidControlType}

	// ErrNoCameras is returned when opening with nothing connected
	ErrNoCameras = &Error{Kind: KindNoCameras}

	// ErrCameraClosed is returned when the device was not opened
	ErrCameraClosed = &Error{Kind: KindCameraClosed}

	// ErrCameraRemoved is returned when the device disappeared from the bus
	ErrCameraRemoved = &Error{Kind: KindCameraRemoved}

	ErrInvalidPath      = &Error{Kind: KindInvalidPath}
	ErrInvalidFormat    = &Error{Kind: KindInvalidFormat}
	ErrInvalidSize      = &Error{Kind: KindInvalidSize}
	ErrInvalidImageType = &Error{Kind: KindInvalidImageType}

	// ErrTimedOut is a hardware timeout
	ErrTimedOut = &Error{Kind: KindTimedOut}

	ErrInvalidSequence = &Error{Kind: KindInvalidSequence}
	ErrBufferTooSmall  = &Error{Kind: KindBufferTooSmall}

	// ErrExposureInProgress is returned by mutators and Capture while exposing
	ErrExposureInProgress = &Error{Kind: KindExposureInProgress}

	// ErrInvalidMode is returned for unrecognized device enum values
	ErrInvalidMode = &Error{Kind: KindInvalidMode}

	// ErrExposureFailed is returned when the hardware reports a failed exposure
	ErrExposureFailed = &Error{Kind: KindExposureFailed}

	// ErrNoData is returned when the exposure went idle without producing a frame
	ErrNoData = &Error{Kind: KindNoData}

	// ErrInvalidValue is returned by input validation
	ErrInvalidValue = &Error{Kind: KindInvalidValue}

	// ErrOutOfBounds is returned when a request exceeds device limits
	ErrOutOfBounds = &Error{Kind: KindOutOfBounds}

	// ErrCaptureTimedOut is returned when a capture exceeds its deadline and was stopped
	ErrCaptureTimedOut = &Error{Kind: KindCaptureTimedOut}

	// ErrCancelled is returned when a capture was cancelled before readout
	ErrCancelled = &Error{Kind: KindCancelled}
)
