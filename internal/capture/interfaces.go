// Package capture implements the Capture Loop (C4): one shared per-iteration
// algorithm (acquire -> copy to staging -> release -> map -> publish) driven
// against two small interfaces so the user-mode DXGI Desktop Duplication
// variant and the driver (IddCx swap-chain) variant share the same state
// machine, differing only in how a frame is acquired and whether it is also
// handed to a recording session.
package capture

import "errors"

// ErrTimeout is returned by acquisitionSource.Acquire when no new frame
// arrived within the source's own wait budget; the loop treats this as
// "try again immediately", matching AcquireNextFrame's DXGI_ERROR_WAIT_TIMEOUT
// and the driver variant's E_PENDING + WaitForSingleObject behavior.
var ErrTimeout = errors.New("capture: acquire timed out")

// ErrAccessLost is returned when the underlying duplication/swap chain was
// invalidated (display mode change, GPU reset, desktop switch) and must be
// recreated before capture can continue.
var ErrAccessLost = errors.New("capture: access lost, duplication must be recreated")

// AcquiredFrame is one CPU-readable frame, already mapped and copied out of
// GPU memory by the acquisitionSource.
type AcquiredFrame struct {
	Pixels         []byte
	Width          uint32
	Height         uint32
	Stride         uint32
	DirtyRectCount uint32
	TimestampUs    int64
}

// acquisitionSource abstracts one output's frame acquisition. Acquire must
// not block longer than the source's own internal timeout; the shared loop
// relies on that to stay responsive to cancellation.
type acquisitionSource interface {
	// Acquire waits for and returns the next frame. err is ErrTimeout,
	// ErrAccessLost, or a fatal error wrapping the underlying failure.
	Acquire() (AcquiredFrame, error)
	// Recreate rebuilds whatever state Acquire depends on after
	// ErrAccessLost. A non-nil return means recreation itself failed.
	Recreate() error
	// Close releases all GPU/OS resources held by the source.
	Close() error
}
