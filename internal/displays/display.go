// Package displays implements the Display Enumerator (C7): listing every
// monitor attached to the desktop, with enough identity (adapter index,
// output index, adapter LUID) for a caller to target one with the Capture
// Loop (C4) or the Control Plane's monitor table (C6).
package displays

import "fmt"

// Info describes one enumerated display output.
type Info struct {
	AdapterIndex uint32
	OutputIndex  uint32
	Name         string
	Width        uint32
	Height       uint32
	Left         int32
	Top          int32
	IsPrimary    bool
	AdapterLUID  int64
}

// String renders a one-line human-readable summary, e.g. for `list` CLI output.
func (i Info) String() string {
	primary := ""
	if i.IsPrimary {
		primary = " PRIMARY"
	}
	return fmt.Sprintf("Display %s (%dx%d%s) adapter=%d output=%d",
		i.Name, i.Width, i.Height, primary, i.AdapterIndex, i.OutputIndex)
}
