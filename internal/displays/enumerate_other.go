//go:build !windows

package displays

import "errors"

// ErrUnsupported is returned on build hosts without a DXGI binding.
var ErrUnsupported = errors.New("displays: enumeration requires Windows")

// Enumerate always fails on non-Windows hosts: DXGI has no cross-platform
// equivalent, unlike the rest of this module's control-plane/recording
// paths which can be exercised on any OS.
func Enumerate() ([]Info, error) {
	return nil, ErrUnsupported
}
