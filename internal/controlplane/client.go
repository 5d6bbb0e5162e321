package controlplane

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// dialTimeout bounds how long a CLI client waits for the service to accept
// the connection before giving up.
const dialTimeout = 3 * time.Second

// readTimeout bounds how long a CLI client waits for a reply to one
// command once the connection is established.
const readTimeout = 5 * time.Second

// SendCommand dials path, writes one EOT-delimited command body, and
// returns the single reply frame the server sends back. It is the client
// half of the protocol served by Server.handleConnection, used by CLI
// subcommands that act as a client of a running service rather than
// running it.
func SendCommand(path string, body []byte) (json.RawMessage, error) {
	conn, err := Dial(path, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("controlplane: dial %s: %w", path, err)
	}
	defer conn.Close()

	if err := writeFrame(conn, body); err != nil {
		return nil, fmt.Errorf("controlplane: write command: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	raw, err := bufio.NewReader(conn).ReadBytes(eot)
	if err != nil {
		return nil, fmt.Errorf("controlplane: read reply: %w", err)
	}
	raw = bytes.TrimSuffix(raw, []byte{eot})
	raw = bytes.TrimPrefix(raw, utf8BOM)
	return json.RawMessage(raw), nil
}
