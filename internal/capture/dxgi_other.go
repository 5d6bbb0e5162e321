//go:build !windows

package capture

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by RunDXGI on platforms without a Desktop
// Duplication API.
var ErrUnsupported = errors.New("capture: DXGI capture requires Windows")

func RunDXGI(ctx context.Context, opts DXGIOptions) error {
	return ErrUnsupported
}
