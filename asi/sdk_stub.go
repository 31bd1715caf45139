//go:build !asi

package asi

import "errors"

// ErrNoLibrary is returned by NewSDK when built without the asi tag
var ErrNoLibrary = errors.New("asi: built without the ASICamera2 library, rebuild with -tags asi or use the simulator")

// NewSDK returns ErrNoLibrary
func NewSDK() (SDK, error) {
	return nil, ErrNoLibrary
}
