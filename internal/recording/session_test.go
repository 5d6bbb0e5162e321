package recording

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func solidFrame(width, height uint32, v byte) Frame {
	buf := make([]byte, width*height*4)
	for i := range buf {
		buf[i] = v
	}
	return Frame{BGRA: buf, Width: width, Height: height, Stride: width * 4}
}

func TestTrySubmitNeverExceedsFPSBudget(t *testing.T) {
	// §8 invariant 4: at any instant, frames_sent <= floor(elapsed_ms*fps/1000).
	s := Start(StartOptions{OutputPath: filepath.Join(t.TempDir(), "out.mp4"), FPS: 10})
	defer s.Stop()

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		frame := solidFrame(64, 64, 1)
		frame.TimestampUs = time.Since(s.startTime).Microseconds()
		s.TrySubmit(frame)
	}

	sent, _ := s.Stats()
	elapsedMs := uint64(time.Since(s.startTime).Milliseconds())
	budget := elapsedMs * 10 / 1000
	if sent > budget+1 { // +1 tolerance for the in-flight check/send race window
		t.Fatalf("sent = %d, exceeds FPS budget %d (elapsed=%dms)", sent, budget, elapsedMs)
	}
}

func TestTrySubmitWithZeroFPSNeverSends(t *testing.T) {
	s := Start(StartOptions{OutputPath: filepath.Join(t.TempDir(), "out.mp4"), FPS: 0})
	defer s.Stop()

	time.Sleep(10 * time.Millisecond)
	if ok := s.TrySubmit(solidFrame(16, 16, 0)); ok {
		t.Fatal("TrySubmit with FPS=0 should never accept a frame")
	}
	sent, _ := s.Stats()
	if sent != 0 {
		t.Fatalf("sent = %d, want 0", sent)
	}
}

func TestStopFinalizesAndReturnsResult(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.mp4")
	s := Start(StartOptions{OutputPath: outPath, FPS: 1000})

	for i := 0; i < 5; i++ {
		frame := solidFrame(64, 64, byte(i))
		frame.TimestampUs = int64(i) * 1000
		for !s.TrySubmit(frame) {
			time.Sleep(time.Millisecond)
		}
	}

	result := s.Stop()
	if result.Path != outPath {
		t.Fatalf("result.Path = %q, want %q", result.Path, outPath)
	}
	if result.Frames != 5 {
		t.Fatalf("result.Frames = %d, want 5", result.Frames)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("output file missing: %v", err)
	}
}

func TestStopWithNoFramesReturnsEmptyResult(t *testing.T) {
	s := Start(StartOptions{OutputPath: filepath.Join(t.TempDir(), "out.mp4"), FPS: 10})
	result := s.Stop()
	if result.Frames != 0 {
		t.Fatalf("result.Frames = %d, want 0", result.Frames)
	}
}

func TestTrySubmitAfterStopDoesNotPanic(t *testing.T) {
	s := Start(StartOptions{OutputPath: filepath.Join(t.TempDir(), "out.mp4"), FPS: 1000})
	s.Stop()

	if ok := s.TrySubmit(solidFrame(16, 16, 0)); ok {
		t.Fatal("TrySubmit after Stop should return false, not send")
	}
}
