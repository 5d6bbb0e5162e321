package capture

import (
	"github.com/dxgicapture/service/internal/framering"
)

// DXGIOptions configures one RunDXGI invocation: one user-mode Desktop
// Duplication output, captured for the lifetime of ctx.
type DXGIOptions struct {
	Name            string
	AdapterIndex    uint32
	OutputIndex     uint32
	Width           uint32
	Height          uint32
	Ring            *framering.Writer
	RecordingSubmit RecordingSubmitFunc
}
