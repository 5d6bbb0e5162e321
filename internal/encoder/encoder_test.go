package encoder

import (
	"os"
	"path/filepath"
	"testing"
)

// gradientFrame builds a deterministic 128x128 top-down BGRA frame whose
// pixel value depends on both position and frame index, so consecutive
// frames differ enough to exercise real inter-frame encoding.
func gradientFrame(width, height, frameIdx int) []byte {
	buf := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := (y*width + x) * 4
			buf[off+0] = byte(x + frameIdx) // B
			buf[off+1] = byte(y + frameIdx) // G
			buf[off+2] = byte(x + y)        // R
			buf[off+3] = 0xFF
		}
	}
	return buf
}

func TestEncode30FramesProducesPlayableFile(t *testing.T) {
	// Seed scenario (c): encode 30 frames of a 128x128 gradient at 10fps,
	// then finish -> frames == 30, output file exists and is >= 100 bytes.
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.mp4")

	const width, height = 128, 128
	enc, err := Open(outPath, width, height, width*4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	const fps = 10
	for i := 0; i < 30; i++ {
		frame := gradientFrame(width, height, i)
		tsUs := int64(i) * int64(1_000_000/fps)
		if err := enc.Encode(frame, tsUs); err != nil {
			t.Fatalf("Encode frame %d: %v", i, err)
		}
	}

	if got := enc.FramesEncoded(); got != 30 {
		t.Fatalf("FramesEncoded() = %d, want 30", got)
	}

	if err := enc.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() < 100 {
		t.Fatalf("output file size = %d bytes, want >= 100", info.Size())
	}
}

// fakeH264Encoder implements h264Encoder with a scripted reply, used to
// force the rate-control-skip path that real openh264 can't be made to hit
// on demand.
type fakeH264Encoder struct {
	nalus      []byte
	isKeyframe bool
}

func (f *fakeH264Encoder) Encode(yuv []byte) ([]byte, bool, error) {
	return f.nalus, f.isKeyframe, nil
}

func (f *fakeH264Encoder) Close() error { return nil }

func TestEncodeSkippedOutputStillAdvancesFrameCount(t *testing.T) {
	dir := t.TempDir()
	const width, height = 64, 64

	out, err := os.Create(filepath.Join(dir, "out.mp4"))
	if err != nil {
		t.Fatalf("create output: %v", err)
	}

	enc := &Encoder{
		out:    out,
		h264:   &fakeH264Encoder{}, // zero-value nalus: encoder skipped this input
		width:  width,
		height: height,
		stride: width * 4,
		yuvBuf: make([]byte, width*height*3/2),
	}
	defer enc.Finish()

	frame := gradientFrame(width, height, 0)
	if err := enc.Encode(frame, 0); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if got := enc.FramesEncoded(); got != 1 {
		t.Fatalf("FramesEncoded() = %d, want 1 for a skipped encoder output", got)
	}
}

func TestEncodeRejectsMismatchedBufferSize(t *testing.T) {
	dir := t.TempDir()
	enc, err := Open(filepath.Join(dir, "out.mp4"), 64, 64, 64*4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer enc.Finish()

	err = enc.Encode(make([]byte, 10), 0)
	if err != ErrBufferSizeMismatch {
		t.Fatalf("Encode with wrong buffer size: got %v, want ErrBufferSizeMismatch", err)
	}
}

func TestOpenRejectsOddDimensions(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(filepath.Join(dir, "out.mp4"), 65, 64, 65*4); err == nil {
		t.Fatal("expected error for odd width")
	}
}
