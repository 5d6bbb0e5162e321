// Package hardware seams off the one part of the Control Plane (C6) that
// has no Go-reachable equivalent: the driver variant's monitor arrival and
// departure, which bottom out in WDF/IddCx kernel-mode calls
// (IddCxMonitorDeparture, a device-context create_monitor callback) owned by
// a UMDF driver host process, not by this module.
package hardware

import "github.com/dxgicapture/service/internal/logging"

var log = logging.L("hardware")

// HardwareAttacher arrives or departs one monitor id with the real display
// hardware. The monitor-table bookkeeping in internal/controlplane calls
// this on every transition so its own state machine (§8 invariants 2, 3, 6)
// is fully exercised independent of whether a real IddCx host is present.
type HardwareAttacher interface {
	Arrive(id uint32) error
	Depart(id uint32) error
}

// loggingAttacher is the default HardwareAttacher: it has no kernel-mode
// driver to call into, so it only logs the transition. Both the
// dxgi-capture and virtualdisplaydriver binaries use this; a genuine IddCx
// host binary would supply its own attacher wrapping the WDF calls.
type loggingAttacher struct{}

// NewLoggingAttacher returns the default no-op HardwareAttacher.
func NewLoggingAttacher() HardwareAttacher {
	return loggingAttacher{}
}

func (loggingAttacher) Arrive(id uint32) error {
	log.Info("monitor arrive (no hardware attacher wired)", "monitor_id", id)
	return nil
}

func (loggingAttacher) Depart(id uint32) error {
	log.Info("monitor depart (no hardware attacher wired)", "monitor_id", id)
	return nil
}
