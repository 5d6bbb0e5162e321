package controlplane

import (
	"encoding/json"
	"testing"
)

func TestDecodeCommandAcceptsBareStringUnitVariants(t *testing.T) {
	for _, kind := range []CommandKind{KindRemoveAll, KindStopRecording, KindState, KindRecordingState} {
		raw, _ := json.Marshal(string(kind))
		cmd, err := DecodeCommand(raw)
		if err != nil {
			t.Fatalf("DecodeCommand(%q) failed: %v", kind, err)
		}
		if cmd.Kind != kind {
			t.Fatalf("DecodeCommand(%q) = %v, want %v", kind, cmd.Kind, kind)
		}
	}
}

func TestDecodeCommandRejectsMultiKeyObject(t *testing.T) {
	raw := []byte(`{"Notify":[],"Remove":[]}`)
	if _, err := DecodeCommand(raw); err == nil {
		t.Fatal("expected an error for a multi-key command object")
	}
}

func TestDecodeReplyRoundTripsOk(t *testing.T) {
	body, err := json.Marshal(Reply{Kind: ReplyOk})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	reply, err := DecodeReply(body)
	if err != nil {
		t.Fatalf("DecodeReply failed: %v", err)
	}
	if reply.Kind != ReplyOk {
		t.Fatalf("expected ReplyOk, got %v", reply.Kind)
	}
}

func TestDecodeReplyRoundTripsState(t *testing.T) {
	want := Reply{Kind: ReplyState, State: []Monitor{{ID: 3, Enabled: true}}}
	body, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	got, err := DecodeReply(body)
	if err != nil {
		t.Fatalf("DecodeReply failed: %v", err)
	}
	if got.Kind != ReplyState || len(got.State) != 1 || got.State[0].ID != 3 {
		t.Fatalf("unexpected reply: %+v", got)
	}
}

func TestDecodeReplyRoundTripsError(t *testing.T) {
	want := Reply{Kind: ReplyError, Error: "boom"}
	body, _ := json.Marshal(want)
	got, err := DecodeReply(body)
	if err != nil {
		t.Fatalf("DecodeReply failed: %v", err)
	}
	if got.Kind != ReplyError || got.Error != "boom" {
		t.Fatalf("unexpected reply: %+v", got)
	}
}
