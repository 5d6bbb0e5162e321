//go:build windows

package displays

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/dxgicapture/service/internal/logging"
)

var log = logging.L("displays")

// Enumeration walks the Win32 monitor list via EnumDisplayMonitors, the same
// lazy-DLL callback idiom internal/sessionbroker uses for WTSEnumerateSessionsW,
// then enriches each entry with its adapter's LUID/name from WMI (the one
// piece of adapter identity EnumDisplayMonitors cannot supply).

var (
	moduser32               = windows.NewLazySystemDLL("user32.dll")
	procEnumDisplayMonitors = moduser32.NewProc("EnumDisplayMonitors")
	procGetMonitorInfoW     = moduser32.NewProc("GetMonitorInfoW")
)

const monitorInfoFPrimary = 0x1

type rect struct {
	Left, Top, Right, Bottom int32
}

type monitorInfoEx struct {
	CbSize    uint32
	Monitor   rect
	WorkArea  rect
	Flags     uint32
	DeviceName [32]uint16
}

// Enumerate walks every monitor attached to the virtual desktop and returns
// one Info per monitor, joined by enumeration position against the WMI
// adapter list (see the note in the loop).
func Enumerate() ([]Info, error) {
	var handles []windows.Handle

	callback := windows.NewCallback(func(hMonitor windows.Handle, hdc windows.Handle, rc *rect, lParam uintptr) uintptr {
		handles = append(handles, hMonitor)
		return 1 // continue enumeration
	})

	r1, _, err := procEnumDisplayMonitors.Call(0, 0, callback, 0)
	if r1 == 0 {
		return nil, fmt.Errorf("displays: EnumDisplayMonitors: %w", err)
	}

	adapters, adapterErr := queryAdapters()
	if adapterErr != nil {
		log.Warn("WMI adapter query failed, LUIDs will be zero", "error", adapterErr)
	}

	out := make([]Info, 0, len(handles))
	for index, h := range handles {
		var mi monitorInfoEx
		mi.CbSize = uint32(unsafe.Sizeof(mi))
		r1, _, err := procGetMonitorInfoW.Call(uintptr(h), uintptr(unsafe.Pointer(&mi)))
		if r1 == 0 {
			return nil, fmt.Errorf("displays: GetMonitorInfoW(monitor %d): %w", index, err)
		}

		// WMI's Win32_VideoController has no stable key shared with a
		// monitor's GDI device name; EnumDisplayMonitors' enumeration order
		// is not guaranteed to match WMI's either, so this joins by
		// position, the best available approximation without the Display
		// Configuration API (QueryDisplayConfig) this spec does not require.
		var adapter adapterIdentity
		if index < len(adapters) {
			adapter = adapters[index]
		}

		out = append(out, Info{
			AdapterIndex: uint32(index),
			OutputIndex:  0,
			Name:         windows.UTF16ToString(mi.DeviceName[:]),
			Width:        uint32(mi.Monitor.Right - mi.Monitor.Left),
			Height:       uint32(mi.Monitor.Bottom - mi.Monitor.Top),
			Left:         mi.Monitor.Left,
			Top:          mi.Monitor.Top,
			IsPrimary:    mi.Flags&monitorInfoFPrimary != 0,
			AdapterLUID:  adapter.luid,
		})
	}

	return out, nil
}
