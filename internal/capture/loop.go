package capture

import (
	"context"
	"errors"
	"time"

	"github.com/dxgicapture/service/internal/framering"
	"github.com/dxgicapture/service/internal/logging"
)

var log = logging.L("capture")

// accessLostBackoff is how long the loop sleeps after an access-lost error
// before recreating the duplication/swap chain.
const accessLostBackoff = 500 * time.Millisecond

// logEvery is the frame-count interval for periodic progress logging, so a
// long-running capture doesn't flood the log at one line per frame.
const logEvery = 300

// RecordingSubmitFunc hands one acquired frame to the recording subsystem
// after it has been published to the frame ring. cmd/dxgi-capture supplies
// one that forwards to the process-wide recording state; when it is nil the
// loop only publishes to the frame ring.
type RecordingSubmitFunc func(frame AcquiredFrame)

// Options configures one Run invocation: exactly one capture loop per
// display/monitor for the lifetime of the capture.
type Options struct {
	Name            string
	Source          acquisitionSource
	Ring            *framering.Writer
	RecordingSubmit RecordingSubmitFunc
}

// Run drives the shared capture state machine until ctx is cancelled or a
// fatal acquisition error occurs. It always closes opts.Source before
// returning.
func Run(ctx context.Context, opts Options) error {
	log.Info("capture loop starting", "name", opts.Name)
	defer opts.Source.Close()

	var framesCaptured uint64

	for {
		select {
		case <-ctx.Done():
			log.Info("capture loop stopping", "name", opts.Name, "frames", framesCaptured)
			return nil
		default:
		}

		frame, err := opts.Source.Acquire()
		switch {
		case errors.Is(err, ErrTimeout):
			continue

		case errors.Is(err, ErrAccessLost):
			log.Warn("access lost, recreating duplication", "name", opts.Name)
			time.Sleep(accessLostBackoff)
			if rerr := opts.Source.Recreate(); rerr != nil {
				log.Error("failed to recreate duplication", "name", opts.Name, "error", rerr)
			} else {
				log.Info("duplication recreated", "name", opts.Name)
			}
			continue

		case err != nil:
			log.Error("acquire failed, exiting capture loop", "name", opts.Name, "error", err)
			return err
		}

		opts.Ring.Publish(frame.Pixels, uint64(frame.TimestampUs), frame.DirtyRectCount)
		framesCaptured++

		if opts.RecordingSubmit != nil {
			opts.RecordingSubmit(frame)
		}

		if framesCaptured%logEvery == 0 {
			log.Debug("capture progress", "name", opts.Name, "frames", framesCaptured)
		}
	}
}
