package live

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgerunner0x01/violette/internal/store"
)

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub never reached %d clients", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testSnapshot(address string) *Snapshot {
	return BuildSnapshot([]store.HostRecord{
		{Host: store.Host{
			Address:  address,
			LastScan: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			OSGuess:  "Linux",
			Status:   store.HostStatusUp,
		}},
	})
}

func TestHubBroadcastsSnapshots(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := dialHub(t, server)
	waitForClients(t, hub, 1)

	hub.Publish(testSnapshot("10.0.0.1"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg viewMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "snapshot", msg.Type)
	require.NotNil(t, msg.Data)
	require.Len(t, msg.Data.Rows, 1)
	assert.Equal(t, "10.0.0.1", msg.Data.Rows[0].IP)
}

func TestHubNoReplayForLateSubscriber(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	// Snapshot published before anyone subscribes.
	hub.Publish(testSnapshot("10.0.0.1"))
	time.Sleep(50 * time.Millisecond)

	conn := dialHub(t, server)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "late subscriber must not receive history")
}

func TestHubMultipleSubscribers(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	first := dialHub(t, server)
	second := dialHub(t, server)
	waitForClients(t, hub, 2)

	hub.Publish(testSnapshot("10.0.0.1"))

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(data), "10.0.0.1")
	}
}

func TestHubKeepsServingAfterDeadPeerBroadcast(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	gone := dialHub(t, server)
	stays := dialHub(t, server)
	waitForClients(t, hub, 2)

	// Kill the peer's TCP side without a close handshake so the next write
	// to it fails, then broadcast while it may still be registered.
	require.NoError(t, gone.NetConn().Close())
	hub.Publish(testSnapshot("10.0.0.1"))

	// The dead peer must get dropped and the hub must keep registering and
	// serving new clients.
	waitForClients(t, hub, 1)
	late := dialHub(t, server)
	waitForClients(t, hub, 2)

	hub.Publish(testSnapshot("10.0.0.2"))

	require.NoError(t, stays.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := stays.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "10.0.0.1")
	_, data, err = stays.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "10.0.0.2")

	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err = late.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "10.0.0.2")
}

func TestHubSurvivesSubscriberDisconnect(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	gone := dialHub(t, server)
	stays := dialHub(t, server)
	waitForClients(t, hub, 2)

	require.NoError(t, gone.Close())
	waitForClients(t, hub, 1)

	hub.Publish(testSnapshot("10.0.0.2"))

	require.NoError(t, stays.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := stays.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "10.0.0.2")
}
