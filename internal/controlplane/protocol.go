// Package controlplane implements the Control Plane (C6): a named-pipe
// server that accepts driver commands and state requests, reconciles the
// monitor table, drives recording start/stop, and fans out change events to
// every other connected client.
package controlplane

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Monitor mirrors the wire shape shared with every client: identity, an
// optional display name, enabled state, and the modes it supports.
type Monitor struct {
	ID      uint32  `json:"id"`
	Name    *string `json:"name"`
	Enabled bool    `json:"enabled"`
	Modes   []Mode  `json:"modes"`
}

// Mode is one width/height pairing and the refresh rates available at it.
type Mode struct {
	Width        uint32   `json:"width"`
	Height       uint32   `json:"height"`
	RefreshRates []uint32 `json:"refresh_rates"`
}

// CommandKind discriminates the single JSON key a Command arrives under
// (or, for unit variants, the entire body as a bare JSON string) — the Go
// realization of the wire format's untagged/externally-tagged Rust enums.
type CommandKind string

const (
	KindNotify         CommandKind = "Notify"
	KindRemove         CommandKind = "Remove"
	KindRemoveAll      CommandKind = "RemoveAll"
	KindStartRecording CommandKind = "StartRecording"
	KindStopRecording  CommandKind = "StopRecording"
	KindState          CommandKind = "State"
	KindRecordingState CommandKind = "RecordingState"
)

// StartRecordingArgs is the StartRecording command's payload. OutputPath
// and FPS are both optional: an absent OutputPath means shared-memory-only
// publication with no file output, and an absent FPS falls back to the
// server's configured default (5 unless configured otherwise).
type StartRecordingArgs struct {
	MonitorIDs []uint32 `json:"monitor_ids"`
	OutputPath *string  `json:"output_path,omitempty"`
	FPS        *uint32  `json:"fps,omitempty"`
}

// Command is the decoded form of any message a client may send. Only the
// fields relevant to Kind are populated.
type Command struct {
	Kind           CommandKind
	Monitors       []Monitor
	IDs            []uint32
	StartRecording StartRecordingArgs
}

var unitCommands = map[CommandKind]bool{
	KindRemoveAll:      true,
	KindStopRecording:  true,
	KindState:          true,
	KindRecordingState: true,
}

// DecodeCommand parses one message body (the bytes between EOT delimiters,
// BOM already stripped) into a Command. It accepts both a bare JSON string
// (unit variants) and a single-key JSON object (variants carrying data),
// matching serde's default externally-tagged enum representation exactly.
func DecodeCommand(raw []byte) (Command, error) {
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		kind := CommandKind(bare)
		if !unitCommands[kind] {
			return Command{}, fmt.Errorf("controlplane: unknown bare command %q", bare)
		}
		return Command{Kind: kind}, nil
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return Command{}, fmt.Errorf("controlplane: command is neither a string nor an object: %w", err)
	}
	if len(asMap) != 1 {
		return Command{}, fmt.Errorf("controlplane: command object must have exactly one key, got %d", len(asMap))
	}

	for key, payload := range asMap {
		switch CommandKind(key) {
		case KindNotify:
			var monitors []Monitor
			if err := strictUnmarshal(payload, &monitors); err != nil {
				return Command{}, fmt.Errorf("controlplane: decode Notify: %w", err)
			}
			return Command{Kind: KindNotify, Monitors: monitors}, nil
		case KindRemove:
			var ids []uint32
			if err := strictUnmarshal(payload, &ids); err != nil {
				return Command{}, fmt.Errorf("controlplane: decode Remove: %w", err)
			}
			return Command{Kind: KindRemove, IDs: ids}, nil
		case KindStartRecording:
			var args StartRecordingArgs
			if err := strictUnmarshal(payload, &args); err != nil {
				return Command{}, fmt.Errorf("controlplane: decode StartRecording: %w", err)
			}
			return Command{Kind: KindStartRecording, StartRecording: args}, nil
		default:
			return Command{}, fmt.Errorf("controlplane: unknown command key %q", key)
		}
	}
	panic("unreachable")
}

func strictUnmarshal(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ReplyKind discriminates a Reply's single populated field.
type ReplyKind string

const (
	// ReplyOk acknowledges a driver command (Notify, Remove, RemoveAll) that
	// carries no data back to the sender — including a Notify rejected for
	// duplicate data, which the original treats identically to success and
	// leaves observable only via an unchanged subsequent State reply.
	ReplyOk                ReplyKind = "Ok"
	ReplyState             ReplyKind = "State"
	ReplyRecordingState    ReplyKind = "RecordingState"
	ReplyRecordingFinished ReplyKind = "RecordingFinished"
	// ReplyRecordingStarted has no counterpart in the upstream ReplyCommand
	// enum definition, only in the handler that constructs and sends it —
	// a version-skew bug in the original. It clearly belongs: the server
	// sends it, so callers expect to parse it. Modeled here as its own
	// first-class variant.
	ReplyRecordingStarted ReplyKind = "RecordingStarted"
	// ReplyError reports a command that failed to decode or execute. The
	// original has no direct equivalent (a malformed message is just
	// logged and dropped); this spec's "exactly one reply per command"
	// invariant (§8) requires the client get something back instead of
	// silence.
	ReplyError ReplyKind = "Error"
)

// RecordingStateReply answers a RecordingState request.
type RecordingStateReply struct {
	Active     bool     `json:"active"`
	MonitorIDs []uint32 `json:"monitor_ids"`
	ShmNames   []string `json:"shm_names"`
}

// RecordingFinishedReply reports the outcome of a completed recording.
type RecordingFinishedReply struct {
	Path       string `json:"path"`
	Frames     uint64 `json:"frames"`
	DurationMs uint64 `json:"duration_ms"`
}

// RecordingStartedReply acknowledges a StartRecording command.
type RecordingStartedReply struct {
	Active     bool     `json:"active"`
	MonitorIDs []uint32 `json:"monitor_ids"`
	HasSession bool     `json:"has_session"`
}

// Reply is one server->client response.
type Reply struct {
	Kind              ReplyKind
	State             []Monitor
	RecordingState    RecordingStateReply
	RecordingFinished RecordingFinishedReply
	RecordingStarted  RecordingStartedReply
	Error             string
}

// MarshalJSON encodes Reply as a single-key object keyed by Kind (a bare
// JSON string for the data-free Ok variant), matching the wire format
// DecodeCommand's counterpart on the client side expects.
func (r Reply) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case ReplyOk:
		return json.Marshal("Ok")
	case ReplyState:
		return json.Marshal(map[string]any{"State": r.State})
	case ReplyRecordingState:
		return json.Marshal(map[string]any{"RecordingState": r.RecordingState})
	case ReplyRecordingFinished:
		return json.Marshal(map[string]any{"RecordingFinished": r.RecordingFinished})
	case ReplyRecordingStarted:
		return json.Marshal(map[string]any{"RecordingStarted": r.RecordingStarted})
	case ReplyError:
		return json.Marshal(map[string]any{"Error": r.Error})
	default:
		return nil, fmt.Errorf("controlplane: unknown reply kind %q", r.Kind)
	}
}

// DecodeReply parses one reply body into a Reply, the client-side mirror of
// DecodeCommand: a bare JSON string for the data-free Ok variant, a
// single-key object for every other kind.
func DecodeReply(raw []byte) (Reply, error) {
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		if ReplyKind(bare) == ReplyOk {
			return Reply{Kind: ReplyOk}, nil
		}
		return Reply{}, fmt.Errorf("controlplane: unknown bare reply %q", bare)
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return Reply{}, fmt.Errorf("controlplane: reply is neither a string nor an object: %w", err)
	}
	if len(asMap) != 1 {
		return Reply{}, fmt.Errorf("controlplane: reply object must have exactly one key, got %d", len(asMap))
	}

	for key, payload := range asMap {
		switch ReplyKind(key) {
		case ReplyState:
			var state []Monitor
			if err := strictUnmarshal(payload, &state); err != nil {
				return Reply{}, fmt.Errorf("controlplane: decode State reply: %w", err)
			}
			return Reply{Kind: ReplyState, State: state}, nil
		case ReplyRecordingState:
			var rs RecordingStateReply
			if err := strictUnmarshal(payload, &rs); err != nil {
				return Reply{}, fmt.Errorf("controlplane: decode RecordingState reply: %w", err)
			}
			return Reply{Kind: ReplyRecordingState, RecordingState: rs}, nil
		case ReplyRecordingStarted:
			var rs RecordingStartedReply
			if err := strictUnmarshal(payload, &rs); err != nil {
				return Reply{}, fmt.Errorf("controlplane: decode RecordingStarted reply: %w", err)
			}
			return Reply{Kind: ReplyRecordingStarted, RecordingStarted: rs}, nil
		case ReplyRecordingFinished:
			var rf RecordingFinishedReply
			if err := strictUnmarshal(payload, &rf); err != nil {
				return Reply{}, fmt.Errorf("controlplane: decode RecordingFinished reply: %w", err)
			}
			return Reply{Kind: ReplyRecordingFinished, RecordingFinished: rf}, nil
		case ReplyError:
			var msg string
			if err := strictUnmarshal(payload, &msg); err != nil {
				return Reply{}, fmt.Errorf("controlplane: decode Error reply: %w", err)
			}
			return Reply{Kind: ReplyError, Error: msg}, nil
		default:
			return Reply{}, fmt.Errorf("controlplane: unknown reply key %q", key)
		}
	}
	panic("unreachable")
}

// Event is a server->all-other-clients notification. The only event today
// is Changed, fired whenever the monitor table is reconciled.
type Event struct {
	Monitors []Monitor
}

// MarshalJSON encodes Event as {"Changed": [...]}.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"Changed": e.Monitors})
}
