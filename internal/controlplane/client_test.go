package controlplane

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/dxgicapture/service/internal/recordingstate"
)

func TestSendCommandRoundTripsStateReply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.sock")

	server := NewServer(NewMonitorTable(&fakeAttacher{}), recordingstate.New(), DefaultServerConfig())
	server.Monitors.Notify([]Monitor{{ID: 9, Enabled: true}})

	listener, err := Listen(path, server)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer listener.Close()
	go listener.Serve()

	body, _ := json.Marshal("State")
	raw, err := SendCommand(path, body)
	if err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}

	reply, err := DecodeReply(raw)
	if err != nil {
		t.Fatalf("DecodeReply failed: %v", err)
	}
	if reply.Kind != ReplyState || len(reply.State) != 1 || reply.State[0].ID != 9 {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}
