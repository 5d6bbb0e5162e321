// Package recordingstate holds the process-wide recording state (C5): which
// monitor ids are currently attached to a recording, and the *recording.Session
// (if any) that frames should be handed off to. It is consulted by the
// capture loop on every frame and mutated only by the control plane.
package recordingstate

import (
	"sync"

	"github.com/dxgicapture/service/internal/recording"
)

// State is a process-wide singleton guarded by a mutex. Holders of the lock
// must not perform I/O, block, or otherwise await while it is held: the
// capture loop's entire critical section is read active+session, submit one
// frame (a non-blocking channel send), release (§4.5).
type State struct {
	mu      sync.Mutex
	active  bool
	ids     []uint32
	session *recording.Session
}

// New returns an inactive State. The control plane holds exactly one
// instance for the process lifetime.
func New() *State {
	return &State{}
}

// Start marks recording active for the given monitor ids. session may be
// nil when the caller only wants shared-memory publication (no file
// output); a non-nil session receives every subsequent submitted frame
// until Stop.
func (s *State) Start(ids []uint32, session *recording.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.ids = append([]uint32(nil), ids...)
	s.session = session
}

// Stop clears the active state and returns whatever session was attached
// (nil if none), leaving the caller responsible for calling its Stop to
// finalize the output.
func (s *State) Stop() *recording.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.session
	s.active = false
	s.ids = nil
	s.session = nil
	return session
}

// IsRecording reports whether id is covered by the active recording: an
// empty monitor id set means "all monitors" (§3), so active recordings
// started with no explicit ids match every id.
func (s *State) IsRecording(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRecordingLocked(id)
}

func (s *State) isRecordingLocked(id uint32) bool {
	if !s.active {
		return false
	}
	if len(s.ids) == 0 {
		return true
	}
	for _, want := range s.ids {
		if want == id {
			return true
		}
	}
	return false
}

// Snapshot returns the current active flag and a copy of the active
// monitor ids, safe to read without holding the lock further.
func (s *State) Snapshot() (active bool, ids []uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, append([]uint32(nil), s.ids...)
}

// SubmitFrame hands one frame to the active session, if any, under the
// lock. The call into TrySubmit is non-blocking (§4.3's contract), so this
// satisfies the no-I/O-while-held discipline required of every holder.
func (s *State) SubmitFrame(id uint32, frame recording.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil || !s.isRecordingLocked(id) {
		return false
	}
	return s.session.TrySubmit(frame)
}
