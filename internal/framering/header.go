// Package framering implements the single-producer, many-consumer
// shared-memory frame ring: a header plus N fixed-size frame slots, written
// by one capture loop and observed by any number of readers through a
// seqlock-style sequence counter.
package framering

const (
	// MagicDXGI identifies a ring created by the user-mode DXGI Desktop
	// Duplication capturer.
	MagicDXGI uint32 = 0x44584749 // "DXGI"
	// MagicVDD identifies a ring created by the virtual-display-driver
	// variant.
	MagicVDD uint32 = 0x00444456 // "VDD"

	// Version is the only supported header version. Readers must reject
	// any other value.
	Version uint32 = 1

	// FormatBGRA8 is the only supported pixel format tag: 4 bytes per
	// pixel, top-down, row-major BGRA.
	FormatBGRA8 uint32 = 87

	// HeaderSize is the fixed size, in bytes, of the header that precedes
	// the frame slots in the mapped region.
	HeaderSize = 64

	// DefaultSlotCount is used when a caller does not specify one
	// (triple buffering).
	DefaultSlotCount uint32 = 3
)

// Header describes the fixed 64-byte layout at the start of the mapped
// region. Field order and sizes are part of the wire contract shared with
// any out-of-process reader; do not reorder or resize fields.
//
//	offset  size  field
//	0       4     Magic
//	4       4     Version
//	8       4     Width
//	12      4     Height
//	16      4     Stride
//	20      4     FormatTag
//	24      4     SlotCount
//	28      4     FrameSizeBytes
//	32      8     WriteSequence (atomic, release-stored)
//	40      8     Timestamp
//	48      4     DirtyRectCount
//	52      12    reserved
type Header struct {
	Magic          uint32
	Version        uint32
	Width          uint32
	Height         uint32
	Stride         uint32
	FormatTag      uint32
	SlotCount      uint32
	FrameSizeBytes uint32
	WriteSequence  uint64
	Timestamp      uint64
	DirtyRectCount uint32
}

// RegionSize returns the total number of bytes the mapped region must hold
// for the given slot count and per-slot frame size.
func RegionSize(slotCount, frameSizeBytes uint32) int {
	return HeaderSize + int(slotCount)*int(frameSizeBytes)
}

// NameDXGI and NameVDD return the documented shared-memory region name for the given
// variant and identity. The DXGI variant is keyed by (adapter, output); the
// driver variant is keyed by a single monitor id and lives in the Global\
// namespace so cross-session readers can open it.
func NameDXGI(adapterIndex, outputIndex uint32) string {
	return localPrefix + "DxgiCapture_" + uitoa(adapterIndex) + "_" + uitoa(outputIndex)
}

func NameVDD(monitorID uint32) string {
	return globalPrefix + "VDD_Frame_" + uitoa(monitorID)
}

const (
	localPrefix  = `Local\`
	globalPrefix = `Global\`
)

func uitoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
