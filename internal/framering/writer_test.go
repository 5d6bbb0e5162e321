package framering

import (
	"bytes"
	"testing"
)

func slotBytes(w *Writer, slot uint64) []byte {
	off := HeaderSize + int(slot)*int(w.frameSizeBytes)
	return w.view[off : off+int(w.frameSizeBytes)]
}

func TestPublishAdvancesSequenceAndWritesSlot(t *testing.T) {
	// §8 invariant 1 / seed scenario (e): slots=3, 7 publishes, sequence=7,
	// slot index for call k is (k-1) mod 3.
	w, err := Create("test-ring-1", MagicDXGI, 4, 1, 16, 3)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()

	var lastBuf []byte
	for k := 1; k <= 7; k++ {
		buf := bytes.Repeat([]byte{byte(k)}, 16)
		lastBuf = buf
		w.Publish(buf, uint64(k*1000), 0)
	}

	if w.seqPtr().Load() != 7 {
		t.Fatalf("write_sequence = %d, want 7", w.seqPtr().Load())
	}

	wantSlot := uint64((7 - 1) % 3)
	got := slotBytes(w, wantSlot)
	if !bytes.Equal(got, lastBuf) {
		t.Fatalf("slot %d = %v, want prefix of last published buffer %v", wantSlot, got, lastBuf)
	}
}

func TestPublishTruncatesOversizedBuffer(t *testing.T) {
	w, err := Create("test-ring-2", MagicVDD, 2, 1, 8, 2)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()

	oversized := bytes.Repeat([]byte{0xAA}, 64)
	w.Publish(oversized, 1, 0)

	got := slotBytes(w, 0)
	if len(got) != int(w.frameSizeBytes) {
		t.Fatalf("slot length = %d, want %d (no overrun)", len(got), w.frameSizeBytes)
	}
}

func TestHeaderFieldsAreImmutableAfterCreate(t *testing.T) {
	w, err := Create("test-ring-3", MagicDXGI, 8, 4, 32, 3)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()

	w.Publish(bytes.Repeat([]byte{1}, int(w.frameSizeBytes)), 42, 1)

	if got := u32(w.view, 0); got != MagicDXGI {
		t.Fatalf("magic changed after publish: %d", got)
	}
	if got := u32(w.view, 4); got != Version {
		t.Fatalf("version changed after publish: %d", got)
	}
	if got := u32(w.view, 28); got != w.stride*w.height {
		t.Fatalf("frame_size_bytes %d != stride*height %d", got, w.stride*w.height)
	}
}

func u32(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

func TestCreateRejectsStrideSmallerThanWidth(t *testing.T) {
	if _, err := Create("test-ring-4", MagicDXGI, 100, 10, 4, 3); err == nil {
		t.Fatal("expected error for stride < width*4")
	}
}

func TestNameTemplates(t *testing.T) {
	if got := NameDXGI(0, 1); got != `Local\DxgiCapture_0_1` {
		t.Fatalf("NameDXGI = %q", got)
	}
	if got := NameVDD(5); got != `Global\VDD_Frame_5` {
		t.Fatalf("NameVDD = %q", got)
	}
}
