//go:build !windows

package controlplane

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Listen binds a Unix domain socket at path as a development/test stand-in
// for the Windows named pipe; the wire protocol above it is unchanged.
func Listen(path string, server *Server) (*PipeListener, error) {
	os.Remove(path)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0770); err != nil {
			return nil, fmt.Errorf("controlplane: mkdir %s: %w", dir, err)
		}
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("controlplane: listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0770); err != nil {
		listener.Close()
		return nil, fmt.Errorf("controlplane: chmod %s: %w", path, err)
	}

	log.Info("unix socket listener created", "path", path)
	return &PipeListener{path: path, listener: listener, server: server}, nil
}

// Dial connects to a server started with Listen, as a development/test
// stand-in for winio.DialPipe.
func Dial(path string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", path, timeout)
}
