// Package recording implements the Recording Session (C3): a bounded
// hand-off from one or more capture goroutines to a single dedicated
// encoder goroutine, with frame-rate throttling and lazy encoder
// initialization on the first submitted frame.
package recording

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dxgicapture/service/internal/encoder"
	"github.com/dxgicapture/service/internal/logging"
)

var log = logging.L("recording")

// channelCapacity bounds the hand-off between capture and encoder so a
// stalled encoder cannot grow memory without bound; frames beyond this
// depth are dropped, not queued.
const channelCapacity = 10

// Frame is one BGRA image ready for encoding, along with the dimensions and
// timestamp needed to drive lazy encoder init and fMP4 timing.
type Frame struct {
	BGRA        []byte
	Width       uint32
	Height      uint32
	Stride      uint32
	TimestampUs int64
}

// Result summarizes a finished recording.
type Result struct {
	Path       string
	Frames     uint64
	DurationMs uint64
}

// StartOptions configures a new Session.
type StartOptions struct {
	OutputPath string
	FPS        uint32
}

// Session manages one recording's channel and encoder goroutine. The zero
// value is not usable; construct with Start.
type Session struct {
	frameCh chan Frame
	done    chan Result

	mu     sync.RWMutex
	closed bool

	startTime time.Time
	fps       uint32
	sent      atomic.Uint64
	dropped   atomic.Uint64
}

// Start begins a new recording session and returns immediately; the
// encoder initializes lazily on the first frame delivered to TrySubmit,
// since only then are the frame dimensions known.
func Start(opts StartOptions) *Session {
	s := &Session{
		frameCh:   make(chan Frame, channelCapacity),
		done:      make(chan Result, 1),
		startTime: time.Now(),
		fps:       opts.FPS,
	}
	go s.encoderLoop(opts.OutputPath)
	log.Info("recording session started", "path", opts.OutputPath, "fps", opts.FPS)
	return s
}

// TrySubmit offers a frame to the encoder goroutine. It never blocks: it
// returns false both when the session is throttling ahead of the target
// FPS and when the hand-off channel is full (the encoder is falling
// behind). Frames dropped for either reason are not retried.
func (s *Session) TrySubmit(f Frame) bool {
	elapsedMs := uint64(time.Since(s.startTime).Milliseconds())
	sent := s.sent.Load()
	expected := elapsedMs * uint64(s.fps) / 1000

	if sent >= expected {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}

	select {
	case s.frameCh <- f:
		s.sent.Add(1)
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Stats returns the number of frames accepted and dropped so far. Safe to
// call concurrently with TrySubmit and Stop.
func (s *Session) Stats() (sent, dropped uint64) {
	return s.sent.Load(), s.dropped.Load()
}

// Stop signals the encoder goroutine to drain any buffered frames and
// finalize the output, then blocks until it has done so. Stop is safe to
// call concurrently with in-flight TrySubmit calls; none racing with Stop
// will be lost silently (they simply return false once closed is
// observed), and none will panic by sending on the closed channel.
func (s *Session) Stop() Result {
	s.mu.Lock()
	sent := s.sent.Load()
	dropped := s.dropped.Load()
	s.closed = true
	close(s.frameCh)
	s.mu.Unlock()

	log.Info("recording session stopping", "sent", sent, "dropped", dropped)
	return <-s.done
}

func (s *Session) encoderLoop(outputPath string) {
	log.Debug("encoder goroutine started", "path", outputPath)

	var enc *encoder.Encoder
	loopStart := time.Now()

	// Closing frameCh in Stop both signals shutdown and drains any
	// buffered frames through this range before the loop exits, so no
	// separate stop-flag/timeout poll is needed to notice shutdown.
	for frame := range s.frameCh {
		if enc == nil {
			var err error
			enc, err = encoder.Open(outputPath, int(frame.Width), int(frame.Height), int(frame.Stride))
			if err != nil {
				log.Error("failed to create encoder", "error", err)
				s.done <- Result{}
				return
			}
			log.Debug("encoder initialized", "width", frame.Width, "height", frame.Height, "path", outputPath)
		}

		if err := enc.Encode(frame.BGRA, frame.TimestampUs); err != nil {
			log.Warn("encode error", "error", err)
		}
	}

	if enc == nil {
		log.Warn("encoder goroutine exiting without having encoded any frames")
		s.done <- Result{}
		return
	}

	frames := uint64(enc.FramesEncoded())
	if err := enc.Finish(); err != nil {
		log.Error("failed to finalize output", "error", err)
		s.done <- Result{}
		return
	}

	result := Result{
		Path:       outputPath,
		Frames:     frames,
		DurationMs: uint64(time.Since(loopStart).Milliseconds()),
	}
	log.Info("encoder goroutine finished", "path", result.Path, "frames", result.Frames, "duration_ms", result.DurationMs)
	s.done <- result
}
