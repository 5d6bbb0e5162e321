package controlplane

import (
	"bufio"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/dxgicapture/service/internal/recordingstate"
)

func TestServeRoundTripsNotifyCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.sock")

	server := NewServer(NewMonitorTable(&fakeAttacher{}), recordingstate.New(), DefaultServerConfig())
	listener, err := Listen(path, server)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer listener.Close()

	go listener.Serve()

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	body, _ := json.Marshal(map[string]any{"Notify": []Monitor{
		{ID: 1, Enabled: true, Modes: []Mode{mode(1920, 1080, 60)}},
	}})
	if _, err := conn.Write(append(body, eot)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	raw, err := reader.ReadBytes(eot)
	if err != nil {
		t.Fatalf("read reply failed: %v", err)
	}
	raw = raw[:len(raw)-1]

	var got string
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("reply did not decode as a bare string: %v (%s)", err, raw)
	}
	if got != "Ok" {
		t.Fatalf("expected an Ok reply to Notify, got %q", got)
	}

	state := server.Monitors.Snapshot()
	if len(state) != 1 || state[0].ID != 1 {
		t.Fatalf("unexpected monitor table after notify: %v", state)
	}
}
