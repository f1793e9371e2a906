// Package live serves a continuously updating view of the scan store. A
// poller watches the store's change marker, re-reads the host table when it
// moves, and pushes the full snapshot to every connected websocket client.
package live

import (
	"strings"

	"github.com/edgerunner0x01/violette/internal/store"
)

// Row is one host in a view snapshot, flattened for display. Ports carries
// the whole port set pre-formatted so clients render rows verbatim.
type Row struct {
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
	OS       string `json:"os"`
	Ports    string `json:"ports"`
	LastScan string `json:"last_scan"`
}

// Snapshot is the complete current state of the host table. Clients always
// receive whole snapshots, never deltas, so a dropped message costs nothing
// once the next one arrives.
type Snapshot struct {
	Rows []Row `json:"rows"`
}

// BuildSnapshot flattens store records into display rows. Records arrive
// ordered by address and the order is preserved.
func BuildSnapshot(records []store.HostRecord) *Snapshot {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row{
			IP:       rec.Address,
			Hostname: rec.Hostname,
			OS:       rec.OSGuess,
			Ports:    formatPorts(rec.Ports),
			LastScan: rec.LastScan.Format("2006-01-02 15:04:05"),
		})
	}
	return &Snapshot{Rows: rows}
}

// formatPorts renders "22/ssh (OpenSSH 8.9), 80/http" or "-" when the host
// has no observed ports.
func formatPorts(ports []store.Port) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, ", ")
}

// Equal reports whether two snapshots render identically. Used by tests and
// to suppress redundant broadcasts when the marker moved but the view did not.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if other == nil || len(s.Rows) != len(other.Rows) {
		return false
	}
	for i := range s.Rows {
		if s.Rows[i] != other.Rows[i] {
			return false
		}
	}
	return true
}
