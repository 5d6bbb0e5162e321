//go:build windows

package capture

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modavrt                          = windows.NewLazySystemDLL("avrt.dll")
	procAvSetMmThreadCharacteristics = modavrt.NewProc("AvSetMmThreadCharacteristicsW")
	procAvRevertMmThreadChar         = modavrt.NewProc("AvRevertMmThreadCharacteristics")
)

// BoostThreadPriority registers the calling OS thread with the Multimedia
// Class Scheduler Service under the "Distribution" task profile, matching
// capture.rs and swap_chain_processor.rs. The caller must have already
// called runtime.LockOSThread, since MMCSS characteristics are per-OS-thread.
// The returned revert func is a no-op if registration failed.
func BoostThreadPriority() (revert func(), err error) {
	taskNamePtr, err := windows.UTF16PtrFromString("Distribution")
	if err != nil {
		return func() {}, err
	}
	var taskIndex uint32
	handle, _, callErr := procAvSetMmThreadCharacteristics.Call(
		uintptr(unsafe.Pointer(taskNamePtr)),
		uintptr(unsafe.Pointer(&taskIndex)),
	)
	if handle == 0 {
		return func() {}, callErr
	}
	return func() {
		procAvRevertMmThreadChar.Call(handle)
	}, nil
}
