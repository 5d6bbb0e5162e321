//go:build !windows

package capture

// BoostThreadPriority is a no-op on non-Windows build hosts; MMCSS has no
// equivalent outside Windows.
func BoostThreadPriority() (revert func(), err error) {
	return func() {}, nil
}
