package controlplane

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultCapturePipePath returns the well-known pipe name for the user-mode
// DXGI capturer (§6). On non-Windows it falls back to a Unix domain socket
// path under the OS temp dir, mirroring Listen/Dial's own platform split.
func DefaultCapturePipePath() string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\dxgi-capture-control`
	}
	return filepath.Join(os.TempDir(), "dxgi-capture-control.sock")
}

// DefaultDriverPipePath returns the well-known pipe name for the virtual
// display driver's control half (§6).
func DefaultDriverPipePath() string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\virtualdisplaydriver`
	}
	return filepath.Join(os.TempDir(), "virtualdisplaydriver.sock")
}
