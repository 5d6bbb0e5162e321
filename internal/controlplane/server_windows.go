//go:build windows

package controlplane

import (
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// pipeSecurity grants SYSTEM full control and Interactive Users / Builtin
// Users read-write access: local clients only, no remote or
// service-account access.
const pipeSecurity = "D:P(A;;GA;;;SY)(A;;GRGW;;;IU)(A;;GRGW;;;BU)"

// Listen creates the named pipe at path and returns a PipeListener ready
// for Serve. Separated from Serve so callers can detect bind failures
// before committing to the accept loop.
func Listen(path string, server *Server) (*PipeListener, error) {
	cfg := &winio.PipeConfig{
		SecurityDescriptor: pipeSecurity,
		MessageMode:        true,
		InputBufferSize:    pipeBufferSize,
		OutputBufferSize:   pipeBufferSize,
	}

	listener, err := winio.ListenPipe(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("controlplane: listen pipe %s: %w", path, err)
	}

	log.Info("named pipe listener created", "pipe", path)
	return &PipeListener{path: path, listener: listener, server: server}, nil
}

// Dial connects to the named pipe at path, used by CLI subcommands that
// act as a client of a running service.
func Dial(path string, timeout time.Duration) (net.Conn, error) {
	return winio.DialPipe(path, &timeout)
}
