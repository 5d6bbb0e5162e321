package controlplane

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/dxgicapture/service/internal/recording"
	"github.com/dxgicapture/service/internal/recordingstate"
)

// eot is the message delimiter used on the wire: each JSON body is followed
// by a single ASCII EOT byte (0x04) rather than a length prefix or newline.
const eot = 0x04

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Server owns the shared state every connection dispatches against: the
// monitor table, the process-wide recording state, and the broadcaster that
// fans monitor-table changes out to every other connected client.
type Server struct {
	Monitors    *MonitorTable
	Recording   *recordingstate.State
	Broadcaster *Broadcaster
	defaultFPS  uint32

	// monitorsMu serializes dispatch's calls into Monitors across
	// connections.
	monitorsMu sync.Mutex
}

// ServerConfig bounds the runtime-tunable behavior of a Server: the fps used
// when a StartRecording command omits one, and the per-client event
// dispatch pool's queue size and worker count (§4.6).
type ServerConfig struct {
	DefaultFPS         uint32
	BroadcastQueueSize int
	BroadcastWorkers   int
}

// DefaultServerConfig returns the tunables a Server uses when the caller has
// no config.Config to resolve them from (tests, ad hoc tooling).
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		DefaultFPS:         5,
		BroadcastQueueSize: 16,
		BroadcastWorkers:   1,
	}
}

// NewServer wires a Server over the given monitor table and recording state,
// with a new Broadcaster sized from cfg.
func NewServer(monitors *MonitorTable, recordingState *recordingstate.State, cfg ServerConfig) *Server {
	return &Server{
		Monitors:    monitors,
		Recording:   recordingState,
		Broadcaster: NewBroadcaster(cfg.BroadcastQueueSize, cfg.BroadcastWorkers),
		defaultFPS:  cfg.DefaultFPS,
	}
}

// handleConnection reads EOT-delimited command bodies from conn, dispatches
// each to the server, writes back its reply, and forwards monitor-table
// change events from every other connection for as long as conn stays open.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	writeCh := make(chan []byte, s.Broadcaster.queueSize)
	done := make(chan struct{})
	defer close(done)

	id, unsubscribe := s.Broadcaster.Subscribe(func(event Event) {
		body, err := json.Marshal(event)
		if err != nil {
			log.Error("failed to marshal event", "error", err)
			return
		}
		select {
		case writeCh <- body:
		case <-done:
		}
	})
	defer unsubscribe()

	go func() {
		for {
			select {
			case body := <-writeCh:
				if err := writeFrame(conn, body); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	reader := bufio.NewReader(conn)
	for {
		raw, err := reader.ReadBytes(eot)
		if err != nil {
			if err != io.EOF {
				log.Warn("connection read error", "error", err)
			}
			return
		}
		raw = bytes.TrimSuffix(raw, []byte{eot})
		raw = bytes.TrimPrefix(raw, utf8BOM)
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		reply, err := s.dispatch(id, raw)
		if err != nil {
			log.Warn("failed to handle command", "error", err)
			reply = &Reply{Kind: ReplyError, Error: err.Error()}
		}

		body, err := json.Marshal(reply)
		if err != nil {
			log.Error("failed to marshal reply", "error", err)
			continue
		}
		if err := writeFrame(conn, body); err != nil {
			return
		}
	}
}

func writeFrame(conn net.Conn, body []byte) error {
	_, err := conn.Write(append(body, eot))
	return err
}

// dispatch decodes and executes one command, returning the reply to send
// back to its originating connection; every command gets a non-nil reply,
// and an error (with a nil reply) is returned only when decoding fails or
// the command kind is unhandled.
// originID identifies the connection for self-origin filtering of the
// resulting broadcast, if any.
func (s *Server) dispatch(originID uint64, raw []byte) (*Reply, error) {
	cmd, err := DecodeCommand(raw)
	if err != nil {
		return nil, err
	}

	switch cmd.Kind {
	case KindNotify:
		// Notify is fire-and-forget in the original: success and a
		// rejected-duplicate update both reply Ok, distinguishable only by
		// whether the table (and the broadcast Changed event) actually moved.
		s.monitorsMu.Lock()
		snapshot, ok := s.Monitors.Notify(cmd.Monitors)
		s.monitorsMu.Unlock()
		if ok {
			s.Broadcaster.Publish(originID, Event{Monitors: snapshot})
		}
		return &Reply{Kind: ReplyOk}, nil

	case KindRemove:
		s.monitorsMu.Lock()
		snapshot := s.Monitors.Remove(cmd.IDs)
		s.monitorsMu.Unlock()
		s.Broadcaster.Publish(originID, Event{Monitors: snapshot})
		return &Reply{Kind: ReplyOk}, nil

	case KindRemoveAll:
		s.monitorsMu.Lock()
		s.Monitors.RemoveAll()
		snapshot := s.Monitors.Snapshot()
		s.monitorsMu.Unlock()
		s.Broadcaster.Publish(originID, Event{Monitors: snapshot})
		return &Reply{Kind: ReplyOk}, nil

	case KindState:
		s.monitorsMu.Lock()
		snapshot := s.Monitors.Snapshot()
		s.monitorsMu.Unlock()
		return &Reply{Kind: ReplyState, State: snapshot}, nil

	case KindStartRecording:
		return s.startRecording(cmd.StartRecording), nil

	case KindStopRecording:
		return s.stopRecording(), nil

	case KindRecordingState:
		active, ids := s.Recording.Snapshot()
		return &Reply{Kind: ReplyRecordingState, RecordingState: RecordingStateReply{
			Active:     active,
			MonitorIDs: ids,
		}}, nil

	default:
		return nil, fmt.Errorf("controlplane: unhandled command kind %q", cmd.Kind)
	}
}

func (s *Server) startRecording(args StartRecordingArgs) *Reply {
	fps := s.defaultFPS
	if args.FPS != nil {
		fps = *args.FPS
	}

	// A session already in progress is finalized before the new one
	// replaces it (§3: only one session at a time, starting a new one
	// implicitly stops the previous one).
	if old := s.Recording.Stop(); old != nil {
		old.Stop()
	}

	var session *recording.Session
	if args.OutputPath != nil {
		session = recording.Start(recording.StartOptions{
			OutputPath: *args.OutputPath,
			FPS:        fps,
		})
	}

	s.Recording.Start(args.MonitorIDs, session)

	return &Reply{Kind: ReplyRecordingStarted, RecordingStarted: RecordingStartedReply{
		Active:     true,
		MonitorIDs: args.MonitorIDs,
		HasSession: session != nil,
	}}
}

func (s *Server) stopRecording() *Reply {
	session := s.Recording.Stop()
	if session == nil {
		return &Reply{Kind: ReplyRecordingFinished, RecordingFinished: RecordingFinishedReply{}}
	}

	result := session.Stop()
	return &Reply{Kind: ReplyRecordingFinished, RecordingFinished: RecordingFinishedReply{
		Path:       result.Path,
		Frames:     result.Frames,
		DurationMs: result.DurationMs,
	}}
}
