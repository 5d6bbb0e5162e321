//go:build !windows

package framering

// The frame-ring write protocol (§4.1, §8 invariant 1) is platform
// independent: it operates purely on a byte slice and an atomic sequence
// counter. This backend stands in for real shared memory on non-Windows
// build hosts so the protocol and its tests run without CGO or a Windows
// kernel; the production binary only ever runs the _windows.go backend.
func init() {
	createRegion = createProcessLocalRegion
}

type processLocalRegion struct {
	buf []byte
}

func createProcessLocalRegion(name string, size int) (region, error) {
	return &processLocalRegion{buf: make([]byte, size)}, nil
}

func (r *processLocalRegion) View() []byte { return r.buf }

func (r *processLocalRegion) Close() error { return nil }
