package controlplane

import (
	"github.com/dxgicapture/service/internal/hardware"
	"github.com/dxgicapture/service/internal/logging"
)

var log = logging.L("controlplane")

type monitorEntry struct {
	attached bool
	data     Monitor
}

// MonitorTable is the server's bookkeeping of known monitors and whether
// each is currently attached to real (or seamed) display hardware. It is
// not safe for concurrent use without external synchronization; Server
// owns exactly one and serializes every call into it with its own mutex.
type MonitorTable struct {
	entries  []monitorEntry
	attacher hardware.HardwareAttacher
}

// NewMonitorTable returns an empty table driven by attacher.
func NewMonitorTable(attacher hardware.HardwareAttacher) *MonitorTable {
	return &MonitorTable{attacher: attacher}
}

// hasDuplicates reports whether monitors contains a repeated id, a
// repeated (width,height) mode on the same monitor, or a repeated refresh
// rate within the same mode — any of which makes the whole update invalid.
func hasDuplicates(monitors []Monitor) bool {
	for i, m := range monitors {
		for j := i + 1; j < len(monitors); j++ {
			if m.ID == monitors[j].ID {
				log.Warn("duplicate monitor id", "id", m.ID)
				return true
			}
		}
		for mi, mode := range m.Modes {
			for mj := mi + 1; mj < len(m.Modes); mj++ {
				if mode.Width == m.Modes[mj].Width && mode.Height == m.Modes[mj].Height {
					log.Warn("duplicate monitor mode", "monitor_id", m.ID, "width", mode.Width, "height", mode.Height)
					return true
				}
			}
			for ri, rr := range mode.RefreshRates {
				for rj := ri + 1; rj < len(mode.RefreshRates); rj++ {
					if rr == mode.RefreshRates[rj] {
						log.Warn("duplicate refresh rate", "monitor_id", m.ID, "width", mode.Width, "height", mode.Height, "refresh_rate", rr)
						return true
					}
				}
			}
		}
	}
	return false
}

func modesEqual(a, b []Mode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Width != b[i].Width || a[i].Height != b[i].Height {
			return false
		}
		if len(a[i].RefreshRates) != len(b[i].RefreshRates) {
			return false
		}
		for j := range a[i].RefreshRates {
			if a[i].RefreshRates[j] != b[i].RefreshRates[j] {
				return false
			}
		}
	}
	return true
}

// Notify reconciles the table against the given full monitor list: entries
// missing from the list are departed and dropped, entries present are
// updated (detaching first if their modes changed or they became
// disabled), and new entries are added. It arrives a monitor whenever it
// transitions from disabled to enabled, has a mode change while enabled, or
// is enabled but not currently attached. Returns the table's new snapshot
// and false (with the table left untouched) if monitors contains duplicate
// ids/modes/refresh-rates.
func (t *MonitorTable) Notify(monitors []Monitor) ([]Monitor, bool) {
	if hasDuplicates(monitors) {
		log.Warn("notify: duplicate data detected; update aborted")
		return t.Snapshot(), false
	}

	kept := t.entries[:0:0]
	for _, e := range t.entries {
		found := false
		for _, m := range monitors {
			if m.ID == e.data.ID {
				found = true
				break
			}
		}
		if !found {
			if e.attached {
				if err := t.attacher.Depart(e.data.ID); err != nil {
					log.Error("failed to depart monitor", "monitor_id", e.data.ID, "error", err)
				}
			}
			continue
		}
		kept = append(kept, e)
	}
	t.entries = kept

	type arrival struct {
		id     uint32
		arrive bool
	}
	var arrivals []arrival

	for _, m := range monitors {
		idx := -1
		for i := range t.entries {
			if t.entries[i].data.ID == m.ID {
				idx = i
				break
			}
		}

		if idx >= 0 {
			cur := &t.entries[idx]
			modesChanged := !modesEqual(cur.data.Modes, m.Modes)
			shouldArrive := (!cur.data.Enabled && m.Enabled) ||
				(m.Enabled && modesChanged) ||
				(m.Enabled && !cur.attached)

			if modesChanged || !m.Enabled {
				if cur.attached {
					if err := t.attacher.Depart(cur.data.ID); err != nil {
						log.Error("failed to depart monitor", "monitor_id", cur.data.ID, "error", err)
					}
					cur.attached = false
				}
			}

			cur.data = m
			arrivals = append(arrivals, arrival{id: m.ID, arrive: shouldArrive})
		} else {
			t.entries = append(t.entries, monitorEntry{data: m})
			arrivals = append(arrivals, arrival{id: m.ID, arrive: m.Enabled})
		}
	}

	for _, a := range arrivals {
		if !a.arrive {
			continue
		}
		if err := t.attacher.Arrive(a.id); err != nil {
			log.Error("failed to arrive monitor", "monitor_id", a.id, "error", err)
			continue
		}
		for i := range t.entries {
			if t.entries[i].data.ID == a.id {
				t.entries[i].attached = true
			}
		}
	}

	return t.Snapshot(), true
}

// Remove departs and drops the given monitor ids.
func (t *MonitorTable) Remove(ids []uint32) []Monitor {
	want := make(map[uint32]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	kept := t.entries[:0:0]
	for _, e := range t.entries {
		if want[e.data.ID] {
			if e.attached {
				if err := t.attacher.Depart(e.data.ID); err != nil {
					log.Error("failed to depart monitor", "monitor_id", e.data.ID, "error", err)
				}
			}
			continue
		}
		kept = append(kept, e)
	}
	t.entries = kept
	return t.Snapshot()
}

// RemoveAll departs and drops every monitor.
func (t *MonitorTable) RemoveAll() {
	for _, e := range t.entries {
		if e.attached {
			if err := t.attacher.Depart(e.data.ID); err != nil {
				log.Error("failed to depart monitor", "monitor_id", e.data.ID, "error", err)
			}
		}
	}
	t.entries = nil
}

// Snapshot returns a copy of the current monitor list.
func (t *MonitorTable) Snapshot() []Monitor {
	out := make([]Monitor, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.data
	}
	return out
}
