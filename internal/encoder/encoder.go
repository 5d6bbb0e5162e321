// Package encoder implements the Encoder Façade (C2): it turns a stream of
// BGRA frames into a fragmented-MP4 file on disk, encoding each frame to
// H.264 and muxing the result incrementally so a crash or power loss leaves
// a playable file up to the last flushed fragment.
package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/y9o/go-openh264/openh264"

	"github.com/dxgicapture/service/internal/logging"
)

var log = logging.L("encoder")

// h264Encoder is the subset of *openh264.Encoder's surface this package
// calls, named here so tests can substitute a fake with scripted outputs.
type h264Encoder interface {
	Encode(yuv []byte) (nalus []byte, isKeyframe bool, err error)
	Close() error
}

// ErrBufferSizeMismatch is returned by Encode when the supplied BGRA buffer
// is not exactly stride*height bytes, using the stride given to Open.
var ErrBufferSizeMismatch = errors.New("encoder: frame buffer size does not match stride*height")

const timescale = 90000 // 90kHz, standard fMP4 video timescale

// Encoder owns one output file for the lifetime of a recording: it accepts
// BGRA frames in display order and appends H.264-encoded, fMP4-muxed
// fragments to disk. It is not safe for concurrent use; the recording
// session's encoder goroutine is its only caller.
type Encoder struct {
	out    *os.File
	h264   h264Encoder
	width  int
	height int
	stride int

	yuvBuf []byte

	initialized bool
	sps, pps    []byte
	baseTimeSet bool
	baseTimeUs  int64
	frameNum    uint32
}

// Open creates outputPath and prepares an encoder for frames of the given
// dimensions. width and height must be even (required by 4:2:0 chroma
// subsampling) and stride must be >= width*4.
func Open(outputPath string, width, height, stride int) (*Encoder, error) {
	if width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("encoder: width and height must be even, got %dx%d", width, height)
	}
	if stride < width*4 {
		return nil, fmt.Errorf("encoder: stride %d smaller than width*4 (%d)", stride, width*4)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("encoder: create %q: %w", outputPath, err)
	}

	enc, err := openh264.NewEncoder(openh264.EncoderConfig{
		Width:  width,
		Height: height,
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("encoder: init openh264: %w", err)
	}

	return &Encoder{
		out:    f,
		h264:   enc,
		width:  width,
		height: height,
		stride: stride,
		yuvBuf: make([]byte, width*height*3/2),
	}, nil
}

// Encode converts bgra (one top-down BGRA8 frame) to I420, feeds it to the
// H.264 encoder, and appends the resulting access unit as an fMP4 fragment.
// timestampUs is a monotonic, ever-increasing presentation timestamp in
// microseconds; the first call establishes the recording's base time.
func (e *Encoder) Encode(bgra []byte, timestampUs int64) error {
	if len(bgra) != e.stride*e.height {
		return ErrBufferSizeMismatch
	}

	bgraToI420(e.yuvBuf, bgra, e.width, e.height, e.stride)

	nalus, isKeyframe, err := e.h264.Encode(e.yuvBuf)
	if err != nil {
		return fmt.Errorf("encoder: h264 encode: %w", err)
	}
	if len(nalus) == 0 {
		// Encoder rate control skipped this input: nothing to mux, but the
		// frame still counts (§4.2).
		e.frameNum++
		return nil
	}

	extracted := avc.ExtractNalusFromByteStream(nalus)
	if len(extracted) == 0 {
		extracted = [][]byte{nalus}
	}

	var frameNALUs [][]byte
	for _, nalu := range extracted {
		if len(nalu) == 0 {
			continue
		}
		switch nalu[0] & 0x1F {
		case 7:
			e.sps = append([]byte(nil), nalu...)
		case 8:
			e.pps = append([]byte(nil), nalu...)
		default:
			frameNALUs = append(frameNALUs, nalu)
		}
	}

	if !e.initialized {
		if e.sps == nil || e.pps == nil {
			// Not yet initialized and this access unit carried no
			// parameter sets: nothing playable to write yet, but the frame
			// still counts (§4.2).
			e.frameNum++
			return nil
		}
		if err := e.writeInitSegment(); err != nil {
			return err
		}
		e.initialized = true
	}

	if !e.baseTimeSet {
		e.baseTimeUs = timestampUs
		e.baseTimeSet = true
	}

	if len(frameNALUs) == 0 {
		// This access unit carried only parameter sets, no frame data: still
		// counts as a skipped frame (§4.2).
		e.frameNum++
		return nil
	}

	return e.writeMediaSegment(frameNALUs, isKeyframe, timestampUs)
}

func (e *Encoder) writeInitSegment() error {
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "video", "und")

	trak := init.Moov.Trak
	stsd := trak.Mdia.Minf.Stbl.Stsd

	avcC, err := mp4.CreateAvcC([][]byte{e.sps}, [][]byte{e.pps}, true)
	if err != nil {
		return fmt.Errorf("encoder: create avcC: %w", err)
	}

	entry := mp4.CreateVisualSampleEntryBox("avc1", uint16(e.width), uint16(e.height), avcC)
	stsd.AddChild(entry)

	var buf bytes.Buffer
	if err := init.Encode(&buf); err != nil {
		return fmt.Errorf("encoder: encode init segment: %w", err)
	}
	if _, err := e.out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("encoder: write init segment: %w", err)
	}
	log.Debug("wrote fmp4 init segment", "width", e.width, "height", e.height)
	return nil
}

func (e *Encoder) writeMediaSegment(nalus [][]byte, isKeyframe bool, timestampUs int64) error {
	e.frameNum++

	decodeTime := uint64((timestampUs - e.baseTimeUs) * timescale / 1_000_000)

	var sampleData []byte
	lenBuf := make([]byte, 4)
	for _, nalu := range nalus {
		putU32BE(lenBuf, uint32(len(nalu)))
		sampleData = append(sampleData, lenBuf...)
		sampleData = append(sampleData, nalu...)
	}

	frag, err := mp4.CreateFragment(e.frameNum, 1)
	if err != nil {
		return fmt.Errorf("encoder: create fragment: %w", err)
	}

	sample := mp4.FullSample{
		Sample: mp4.Sample{
			Flags:      mp4.NonSyncSampleFlags,
			Dur:        0,
			Size:       uint32(len(sampleData)),
		},
		DecodeTime: decodeTime,
		Data:       sampleData,
	}
	if isKeyframe {
		sample.Sample.Flags = mp4.SyncSampleFlags
	}
	frag.AddFullSample(sample)

	var buf bytes.Buffer
	if err := frag.Encode(&buf); err != nil {
		return fmt.Errorf("encoder: encode fragment: %w", err)
	}
	if _, err := e.out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("encoder: write fragment: %w", err)
	}
	// Flush to disk after every fragment: a crash mid-recording must leave
	// a file playable up to the last completed fragment (§4.2).
	return e.out.Sync()
}

// FramesEncoded returns the number of frames passed to Encode so far,
// regardless of how many produced a keyframe-bearing fragment.
func (e *Encoder) FramesEncoded() uint32 {
	return e.frameNum
}

// Finish closes the H.264 encoder and the output file. Safe to call even
// if no frame was ever encoded, producing an empty file.
func (e *Encoder) Finish() error {
	closeErr := e.h264.Close()
	if err := e.out.Close(); err != nil {
		return err
	}
	return closeErr
}

func putU32BE(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
