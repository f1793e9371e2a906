package store

import (
	"fmt"
	"time"
)

// OSUnknown is the sentinel OS label used when detection produced nothing.
const OSUnknown = "Unknown"

// Host status constants. Status is free-form (it carries whatever the probe
// engine reported) but conventionally one of these.
const (
	HostStatusUp      = "up"
	HostStatusDown    = "down"
	HostStatusUnknown = "unknown"
)

// Host represents one scanned host row. Address is the unique key: re-probing
// the same address mutates the existing row rather than inserting a new one.
type Host struct {
	ID       int64     `db:"id" json:"id"`
	Address  string    `db:"address" json:"ip"`
	Hostname string    `db:"hostname" json:"hostname"`
	LastScan time.Time `db:"last_scan" json:"last_scan"`
	OSGuess  string    `db:"os_guess" json:"os_guess"`
	Status   string    `db:"status" json:"status"`
}

// Port represents one observed port belonging to exactly one host. Version is
// the empty string when unknown, never null.
type Port struct {
	ID      int64  `db:"id" json:"-"`
	HostID  int64  `db:"host_id" json:"-"`
	Number  int    `db:"port_number" json:"port"`
	Service string `db:"service" json:"service"`
	Version string `db:"version" json:"version"`
}

// String formats a port as "80/http (nginx 1.18)" or "80/http".
func (p Port) String() string {
	if p.Version != "" {
		return fmt.Sprintf("%d/%s (%s)", p.Number, p.Service, p.Version)
	}
	return fmt.Sprintf("%d/%s", p.Number, p.Service)
}

// HostRecord is a host together with its current port set, as returned by
// ListHosts.
type HostRecord struct {
	Host
	Ports []Port
}
