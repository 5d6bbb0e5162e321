//go:build windows

package framering

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Security descriptor granting SYSTEM, interactive users, and built-in users
// full access to the mapping object, so a Global\ region can be opened by
// readers running in a different session than the writer (§4.1 naming note).
// Mirrors the SDDL idiom used elsewhere in this tree for named-pipe DACLs,
// applied here to CreateFileMappingW's security attributes.
const mappingSecurityDescriptor = "D:P(A;;GA;;;SY)(A;;GA;;;IU)(A;;GA;;;BU)"

var (
	modkernel32               = windows.NewLazySystemDLL("kernel32.dll")
	procCreateFileMappingW    = modkernel32.NewProc("CreateFileMappingW")
	procMapViewOfFile         = modkernel32.NewProc("MapViewOfFile")
	procUnmapViewOfFile       = modkernel32.NewProc("UnmapViewOfFile")
	pageReadWrite      uint32 = 0x04
	fileMapAllAccess   uint32 = 0xF001F
)

func init() {
	createRegion = createWindowsRegion
}

type windowsRegion struct {
	handle windows.Handle
	addr   uintptr
	view   []byte
}

func createWindowsRegion(name string, size int) (region, error) {
	sd, err := windows.SecurityDescriptorFromString(mappingSecurityDescriptor)
	if err != nil {
		return nil, fmt.Errorf("parse security descriptor: %w", err)
	}
	sa := &windows.SecurityAttributes{
		Length:             uint32(unsafe.Sizeof(windows.SecurityAttributes{})),
		SecurityDescriptor: sd,
		InheritHandle:      0,
	}

	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}

	hi := uint32(uint64(size) >> 32)
	lo := uint32(uint64(size) & 0xFFFFFFFF)

	r1, _, e1 := procCreateFileMappingW.Call(
		uintptr(windows.InvalidHandle),
		uintptr(unsafe.Pointer(sa)),
		uintptr(pageReadWrite),
		uintptr(hi),
		uintptr(lo),
		uintptr(unsafe.Pointer(namePtr)),
	)
	if r1 == 0 {
		return nil, fmt.Errorf("CreateFileMappingW: %w", e1)
	}
	handle := windows.Handle(r1)

	addr, _, e2 := procMapViewOfFile.Call(
		uintptr(handle),
		uintptr(fileMapAllAccess),
		0, 0,
		uintptr(size),
	)
	if addr == 0 {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("MapViewOfFile: %w", e2)
	}

	view := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	return &windowsRegion{handle: handle, addr: addr, view: view}, nil
}

func (r *windowsRegion) View() []byte { return r.view }

func (r *windowsRegion) Close() error {
	ok, _, e1 := procUnmapViewOfFile.Call(r.addr)
	err1 := error(nil)
	if ok == 0 {
		err1 = fmt.Errorf("UnmapViewOfFile: %w", e1)
	}
	err2 := windows.CloseHandle(r.handle)
	if err1 != nil {
		return err1
	}
	return err2
}
