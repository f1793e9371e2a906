// Package export produces point-in-time JSON dumps of the scan store.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/edgerunner0x01/violette/internal/logging"
	"github.com/edgerunner0x01/violette/internal/store"
)

// ExportedHost is one host with its full port set in the export document.
type ExportedHost struct {
	IP       string       `json:"ip"`
	Hostname string       `json:"hostname"`
	LastScan time.Time    `json:"last_scan"`
	OSGuess  string       `json:"os_guess"`
	Status   string       `json:"status"`
	Ports    []store.Port `json:"ports"`
}

// Metadata describes the export itself.
type Metadata struct {
	ExportDate time.Time `json:"export_date"`
	TotalHosts int       `json:"total_hosts"`
}

// Document is the complete export payload.
type Document struct {
	ScanResults []ExportedHost `json:"scan_results"`
	Metadata    Metadata       `json:"metadata"`
}

// Exporter reads the store and writes export documents.
type Exporter struct {
	store  *store.Store
	logger *logging.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates an exporter over the given store.
func New(st *store.Store) *Exporter {
	return &Exporter{
		store:  st,
		logger: logging.Default().WithComponent("export"),
		now:    time.Now,
	}
}

// Build reads every host and its ports and assembles the export document.
// An empty store yields an empty scan_results list, not an error.
func (e *Exporter) Build(ctx context.Context) (*Document, error) {
	records, err := e.store.ListHosts(ctx)
	if err != nil {
		return nil, err
	}

	hosts := make([]ExportedHost, 0, len(records))
	for _, rec := range records {
		ports := rec.Ports
		if ports == nil {
			ports = []store.Port{}
		}
		hosts = append(hosts, ExportedHost{
			IP:       rec.Address,
			Hostname: rec.Hostname,
			LastScan: rec.LastScan,
			OSGuess:  rec.OSGuess,
			Status:   rec.Status,
			Ports:    ports,
		})
	}

	return &Document{
		ScanResults: hosts,
		Metadata: Metadata{
			ExportDate: e.now(),
			TotalHosts: len(hosts),
		},
	}, nil
}

// WriteFile builds the document and writes it, indented, to path.
func (e *Exporter) WriteFile(ctx context.Context, path string) (*Document, error) {
	doc, err := e.Build(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write export file: %w", err)
	}

	e.logger.Info("Exported scan results", "path", path, "hosts", doc.Metadata.TotalHosts)
	return doc, nil
}
