package controlplane

import (
	"net"
	"sync"
)

const pipeBufferSize = 4096

// PipeListener wraps the named-pipe accept loop that feeds Server.
type PipeListener struct {
	path     string
	listener net.Listener
	server   *Server

	mu     sync.Mutex
	closed bool
}

// Serve accepts connections until Close is called, handling each on its
// own goroutine. It returns once the listener is closed.
func (l *PipeListener) Serve() error {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			l.mu.Lock()
			closed := l.closed
			l.mu.Unlock()
			if closed {
				return nil
			}
			log.Warn("accept error", "error", err)
			continue
		}
		go l.server.handleConnection(conn)
	}
}

// Close stops the accept loop and releases the pipe.
func (l *PipeListener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	return l.listener.Close()
}
