package framering

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/dxgicapture/service/internal/logging"
)

var log = logging.L("framering")

// region abstracts the platform-specific mapped memory so the seqlock write
// protocol in Publish is written once and shared by every OS.
type region interface {
	// View returns the full mapped byte slice (header + slots).
	View() []byte
	Close() error
}

// createRegion is platform-specific: see writer_windows.go (real shared
// memory) and writer_other.go (in-process stand-in used by the shared test
// suite on non-Windows build hosts).
var createRegion func(name string, size int) (region, error)

// Writer owns one shared-memory frame ring for the lifetime of a capture.
// Publish is the only mutating operation and is safe to call repeatedly from
// a single goroutine (the capture loop); it is never called concurrently by
// design (§4.1 — single producer).
type Writer struct {
	name   string
	region region
	view   []byte

	width, height, stride uint32
	formatTag             uint32
	slotCount             uint32
	frameSizeBytes        uint32

	seq uint64 // mirrors header.WriteSequence; owned exclusively by the writer
}

// Create allocates (or opens, if already present from a prior crash) the
// named shared-memory region, writes the immutable header fields, and
// returns a Writer ready to Publish. width/height/stride describe every
// frame that will ever be published to this ring; stride must be >= width*4.
func Create(name string, magic, width, height, stride uint32, slotCount uint32) (*Writer, error) {
	if stride < width*4 {
		return nil, fmt.Errorf("framering: stride %d is smaller than width*4 (%d)", stride, width*4)
	}
	if slotCount == 0 {
		slotCount = DefaultSlotCount
	}

	frameSize := stride * height
	size := RegionSize(slotCount, frameSize)

	if createRegion == nil {
		return nil, fmt.Errorf("framering: no region backend registered for this platform")
	}
	r, err := createRegion(name, size)
	if err != nil {
		return nil, fmt.Errorf("framering: create region %q: %w", name, err)
	}

	w := &Writer{
		name:           name,
		region:         r,
		view:           r.View(),
		width:          width,
		height:         height,
		stride:         stride,
		formatTag:      FormatBGRA8,
		slotCount:      slotCount,
		frameSizeBytes: frameSize,
	}
	w.writeImmutableHeader(magic)
	return w, nil
}

func (w *Writer) writeImmutableHeader(magic uint32) {
	putU32(w.view, 0, magic)
	putU32(w.view, 4, Version)
	putU32(w.view, 8, w.width)
	putU32(w.view, 12, w.height)
	putU32(w.view, 16, w.stride)
	putU32(w.view, 20, w.formatTag)
	putU32(w.view, 24, w.slotCount)
	putU32(w.view, 28, w.frameSizeBytes)
	w.seqPtr().Store(0)
	putU64(w.view, 40, 0)
	putU32(w.view, 48, 0)
}

// Name returns the region name this writer was created with.
func (w *Writer) Name() string { return w.name }

// Publish overwrites the slot chosen by the current sequence number with
// pixels (truncated to frame_size_bytes, never overrun), records timestamp
// and dirtyRectCount, then release-stores the incremented sequence. This is
// the entire seqlock write protocol from §4.1; it never blocks and never
// fails.
func (w *Writer) Publish(pixels []byte, timestamp uint64, dirtyRectCount uint32) {
	seq := w.seq
	slot := seq % uint64(w.slotCount)

	slotOffset := HeaderSize + int(slot)*int(w.frameSizeBytes)
	n := copy(w.view[slotOffset:slotOffset+int(w.frameSizeBytes)], pixels)
	_ = n // truncate silently per contract; never overrun the slot

	putU64(w.view, 40, timestamp)
	putU32(w.view, 48, dirtyRectCount)

	w.seq = seq + 1
	w.seqPtr().Store(w.seq) // release-store: publishes the slot write above
}

// Close unmaps the region and releases the handle. Errors are logged, not
// propagated, per §4.1's cleanup contract.
func (w *Writer) Close() {
	if err := w.region.Close(); err != nil {
		log.Warn("failed to close frame ring region", "name", w.name, "error", err)
	}
}

func (w *Writer) seqPtr() *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&w.view[32]))
}

func putU32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

func putU64(b []byte, off int, v uint64) {
	for i := 0; i < 8; i++ {
		b[off+i] = byte(v >> (8 * i))
	}
}
