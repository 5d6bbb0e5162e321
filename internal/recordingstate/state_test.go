package recordingstate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dxgicapture/service/internal/recording"
)

func TestStartStopLifecycle(t *testing.T) {
	s := New()

	if active, _ := s.Snapshot(); active {
		t.Fatal("new State should start inactive")
	}

	s.Start([]uint32{1, 2}, nil)

	active, ids := s.Snapshot()
	if !active {
		t.Fatal("Start should mark active")
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("Snapshot ids = %v, want [1 2]", ids)
	}

	if !s.IsRecording(1) || !s.IsRecording(2) {
		t.Fatal("IsRecording should be true for attached ids")
	}
	if s.IsRecording(3) {
		t.Fatal("IsRecording should be false for an unattached id")
	}

	got := s.Stop()
	if got != nil {
		t.Fatal("Stop should return nil session when none was attached")
	}
	if active, _ := s.Snapshot(); active {
		t.Fatal("Stop should clear active")
	}
	if s.IsRecording(1) {
		t.Fatal("IsRecording should be false after Stop")
	}
}

func TestStartWithSessionRoundTripsThroughStop(t *testing.T) {
	s := New()
	sess := recording.Start(recording.StartOptions{
		OutputPath: filepath.Join(t.TempDir(), "out.mp4"),
		FPS:        1000,
	})

	s.Start([]uint32{7}, sess)

	if got := s.Stop(); got != sess {
		t.Fatal("Stop should return the exact session passed to Start")
	}
	sess.Stop()
}

func TestSubmitFrameOnlyForAttachedID(t *testing.T) {
	s := New()
	sess := recording.Start(recording.StartOptions{
		OutputPath: filepath.Join(t.TempDir(), "out.mp4"),
		FPS:        1000,
	})
	defer sess.Stop()

	s.Start([]uint32{5}, sess)

	buf := make([]byte, 16*16*4)
	frame := recording.Frame{BGRA: buf, Width: 16, Height: 16, Stride: 64}

	if s.SubmitFrame(9, frame) {
		t.Fatal("SubmitFrame should reject an id not in the active set")
	}
	// The 1000 fps throttle admits its first frame once 1 ms has elapsed.
	time.Sleep(5 * time.Millisecond)
	if !s.SubmitFrame(5, frame) {
		t.Fatal("SubmitFrame should accept the active id's first frame")
	}
}

func TestSubmitFrameWithNoSessionIsNoop(t *testing.T) {
	s := New()
	s.Start([]uint32{1}, nil)

	buf := make([]byte, 16)
	if s.SubmitFrame(1, recording.Frame{BGRA: buf}) {
		t.Fatal("SubmitFrame with a nil session should return false")
	}
}

func TestEmptyMonitorIDsMeansAllMonitors(t *testing.T) {
	s := New()
	s.Start(nil, nil)

	if !s.IsRecording(1) || !s.IsRecording(42) {
		t.Fatal("an empty monitor id set should match every id")
	}

	sess := recording.Start(recording.StartOptions{
		OutputPath: filepath.Join(t.TempDir(), "out.mp4"),
		FPS:        1000,
	})
	defer sess.Stop()
	s.Start(nil, sess)

	buf := make([]byte, 16*16*4)
	frame := recording.Frame{BGRA: buf, Width: 16, Height: 16, Stride: 64}
	// The 1000 fps throttle admits its first frame once 1 ms has elapsed.
	time.Sleep(5 * time.Millisecond)
	if !s.SubmitFrame(123, frame) {
		t.Fatal("SubmitFrame should accept any id when the monitor set is empty")
	}
}
