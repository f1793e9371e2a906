package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgerunner0x01/violette/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestBuildDocument(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	lastScan := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := st.SaveResult(ctx, &store.Host{
		Address:  "192.168.1.10",
		Hostname: "web.local",
		LastScan: lastScan,
		OSGuess:  "Linux",
		Status:   store.HostStatusUp,
	}, []store.Port{
		{Number: 22, Service: "ssh", Version: "OpenSSH 8.9"},
	})
	require.NoError(t, err)

	_, err = st.SaveResult(ctx, &store.Host{
		Address:  "192.168.1.11",
		LastScan: lastScan,
		OSGuess:  store.OSUnknown,
		Status:   store.HostStatusUp,
	}, nil)
	require.NoError(t, err)

	exportTime := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	e := New(st)
	e.now = func() time.Time { return exportTime }

	doc, err := e.Build(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, doc.Metadata.TotalHosts)
	assert.Equal(t, exportTime, doc.Metadata.ExportDate)
	require.Len(t, doc.ScanResults, 2)

	first := doc.ScanResults[0]
	assert.Equal(t, "192.168.1.10", first.IP)
	assert.Equal(t, "web.local", first.Hostname)
	require.Len(t, first.Ports, 1)
	assert.Equal(t, 22, first.Ports[0].Number)

	assert.NotNil(t, doc.ScanResults[1].Ports, "portless host exports an empty list, not null")
	assert.Empty(t, doc.ScanResults[1].Ports)
}

func TestBuildEmptyStore(t *testing.T) {
	st := openTestStore(t)

	doc, err := New(st).Build(context.Background())
	require.NoError(t, err)
	assert.Zero(t, doc.Metadata.TotalHosts)
	assert.Empty(t, doc.ScanResults)
}

func TestWriteFileShape(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_, err := st.SaveResult(ctx, &store.Host{
		Address:  "10.0.0.1",
		LastScan: time.Now().UTC(),
		OSGuess:  "Linux",
		Status:   store.HostStatusUp,
	}, []store.Port{{Number: 80, Service: "http", Version: "nginx"}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.json")
	_, err = New(st).WriteFile(ctx, path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "scan_results")
	assert.Contains(t, decoded, "metadata")

	var meta struct {
		ExportDate time.Time `json:"export_date"`
		TotalHosts int       `json:"total_hosts"`
	}
	require.NoError(t, json.Unmarshal(decoded["metadata"], &meta))
	assert.Equal(t, 1, meta.TotalHosts)
	assert.False(t, meta.ExportDate.IsZero())

	var results []struct {
		IP    string `json:"ip"`
		Ports []struct {
			Port    int    `json:"port"`
			Service string `json:"service"`
			Version string `json:"version"`
		} `json:"ports"`
	}
	require.NoError(t, json.Unmarshal(decoded["scan_results"], &results))
	require.Len(t, results, 1)
	assert.Equal(t, "10.0.0.1", results[0].IP)
	require.Len(t, results[0].Ports, 1)
	assert.Equal(t, 80, results[0].Ports[0].Port)
	assert.Equal(t, "nginx", results[0].Ports[0].Version)
}

func TestWriteFileUnwritablePath(t *testing.T) {
	st := openTestStore(t)

	_, err := New(st).WriteFile(context.Background(), "/nonexistent-dir/out.json")
	require.Error(t, err)
}
