package capture

import (
	"context"
	"testing"
	"time"

	"github.com/dxgicapture/service/internal/framering"
)

func newTestRing(t *testing.T) *framering.Writer {
	t.Helper()
	w, err := framering.Create("capture-loop-test", framering.MagicDXGI, 2, 2, 8, 3)
	if err != nil {
		t.Fatalf("framering.Create: %v", err)
	}
	t.Cleanup(w.Close)
	return w
}

func TestRunPublishesSuccessfulFramesAndSkipsTimeouts(t *testing.T) {
	ring := newTestRing(t)
	pixels := make([]byte, 8*2)

	src := newFakeSource([]fakeStep{
		{err: ErrTimeout},
		{frame: AcquiredFrame{Pixels: pixels, Width: 2, Height: 2, Stride: 8, TimestampUs: 1}},
		{frame: AcquiredFrame{Pixels: pixels, Width: 2, Height: 2, Stride: 8, TimestampUs: 2}},
	})

	var submitted []AcquiredFrame
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{
			Name:   "test",
			Source: src,
			Ring:   ring,
			RecordingSubmit: func(f AcquiredFrame) {
				submitted = append(submitted, f)
			},
		})
	}()

	// Give the loop time to drain the scripted steps and fall into the
	// infinite ErrTimeout tail, then cancel.
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(submitted) != 2 {
		t.Fatalf("RecordingSubmit called %d times, want 2", len(submitted))
	}
	if !src.closed {
		t.Fatal("Run should close the source before returning")
	}
}

func TestRunRecreatesOnAccessLost(t *testing.T) {
	ring := newTestRing(t)
	pixels := make([]byte, 8*2)

	src := newFakeSource([]fakeStep{
		{err: ErrAccessLost},
		{frame: AcquiredFrame{Pixels: pixels, Width: 2, Height: 2, Stride: 8}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{Name: "test", Source: src, Ring: ring})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if src.recreateCall != 1 {
		t.Fatalf("Recreate called %d times, want 1", src.recreateCall)
	}
}

func TestRunReturnsFatalAcquireError(t *testing.T) {
	ring := newTestRing(t)
	src := newFakeSource([]fakeStep{{err: errFatalAcquire}})

	err := Run(context.Background(), Options{Name: "test", Source: src, Ring: ring})
	if err != errFatalAcquire {
		t.Fatalf("Run error = %v, want errFatalAcquire", err)
	}
	if !src.closed {
		t.Fatal("Run should close the source even on fatal error")
	}
}

func TestRunStopsImmediatelyOnAlreadyCancelledContext(t *testing.T) {
	ring := newTestRing(t)
	src := newFakeSource(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Run(ctx, Options{Name: "test", Source: src, Ring: ring}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}
