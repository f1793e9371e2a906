package live

import (
	"context"
	"net/http"
	"net/http/httptest"
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

func TestPublisherPushesOnStoreChange(t *testing.T) {
	st := openTestStore(t)
	hub := NewHub()
	defer hub.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewPublisher(st, hub, 10*time.Millisecond).Run(ctx)

	conn := dialHub(t, server)
	waitForClients(t, hub, 1)

	_, err := st.SaveResult(context.Background(), &store.Host{
		Address:  "192.168.1.10",
		LastScan: time.Now().UTC(),
		OSGuess:  "Linux",
		Status:   store.HostStatusUp,
	}, []store.Port{{Number: 22, Service: "ssh"}})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "192.168.1.10")
	assert.Contains(t, string(data), "22/ssh")
}

func TestPublisherQuietWhenStoreUnchanged(t *testing.T) {
	st := openTestStore(t)
	hub := NewHub()
	defer hub.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewPublisher(st, hub, 10*time.Millisecond).Run(ctx)

	conn := dialHub(t, server)
	waitForClients(t, hub, 1)

	// Several poll intervals pass with no commits; nothing may arrive.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "an unchanged store must not produce snapshots")
}

func TestPublisherSuppressesIdenticalView(t *testing.T) {
	st := openTestStore(t)
	hub := NewHub()
	defer hub.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewPublisher(st, hub, 10*time.Millisecond).Run(ctx)

	conn := dialHub(t, server)
	waitForClients(t, hub, 1)

	base := time.Now().UTC().Truncate(time.Second)
	host := &store.Host{
		Address:  "192.168.1.10",
		LastScan: base,
		OSGuess:  "Linux",
		Status:   store.HostStatusUp,
	}
	_, err := st.SaveResult(context.Background(), host, []store.Port{{Number: 22, Service: "ssh"}})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	// A sub-second last_scan bump moves the change marker but renders the
	// same rows; no snapshot may go out for it.
	host.LastScan = base.Add(500 * time.Millisecond)
	_, err = st.SaveResult(context.Background(), host, []store.Port{{Number: 22, Service: "ssh"}})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "an unchanged view must not produce snapshots")
}

func TestServerIndexRendersHostTable(t *testing.T) {
	st := openTestStore(t)

	_, err := st.SaveResult(context.Background(), &store.Host{
		Address:  "192.168.1.10",
		Hostname: "web.local",
		LastScan: time.Now().UTC(),
		OSGuess:  "Linux",
		Status:   store.HostStatusUp,
	}, []store.Port{{Number: 80, Service: "http", Version: "nginx"}})
	require.NoError(t, err)

	srv := NewServer(DefaultConfig(), st)
	defer srv.hub.Shutdown()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "192.168.1.10")
	assert.Contains(t, body, "web.local")
	assert.Contains(t, body, "80/http (nginx)")
}

func TestServerHealthEndpoint(t *testing.T) {
	st := openTestStore(t)
	srv := NewServer(DefaultConfig(), st)
	defer srv.hub.Shutdown()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
