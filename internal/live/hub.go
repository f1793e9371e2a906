package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edgerunner0x01/violette/internal/logging"
	"github.com/edgerunner0x01/violette/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // must be shorter than pongWait
	maxMessageSize = 512
	broadcastDepth = 16
	clientDepth    = 8
)

// viewMessage is the wire envelope sent to websocket clients.
type viewMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      *Snapshot `json:"data"`
}

// client couples a connection with its outbound queue. writePump is the only
// goroutine that writes to conn; everyone else goes through send.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans snapshots out to websocket clients. The run goroutine owns all
// client-map mutation; the broadcast path never blocks on a client, it queues
// on the client's send channel and removes the client when the queue is full.
type Hub struct {
	logger   *logging.Logger
	upgrader websocket.Upgrader

	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	shutdown   chan struct{}
	mutex      sync.RWMutex
}

// NewHub creates the hub and starts its run loop.
func NewHub() *Hub {
	h := &Hub{
		logger: logging.Default().WithComponent("live"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, broadcastDepth),
		register:   make(chan *client),
		unregister: make(chan *client),
		shutdown:   make(chan struct{}),
	}
	go h.run()
	return h
}

// Publish marshals a snapshot and queues it for every connected client. A
// full queue drops the message; the next snapshot supersedes it anyway.
func (h *Hub) Publish(snap *Snapshot) {
	data, err := json.Marshal(viewMessage{
		Type:      "snapshot",
		Timestamp: time.Now().UTC(),
		Data:      snap,
	})
	if err != nil {
		h.logger.ErrorLive("Failed to marshal snapshot", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast queue full, dropping snapshot")
	}
}

// ServeWS upgrades the request and attaches the client to the hub. Blocks
// until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.ErrorLive("Failed to upgrade websocket connection", err, "remote_addr", r.RemoteAddr)
		return
	}
	h.logger.InfoLive("Client connected", "remote_addr", r.RemoteAddr)

	c := &client{conn: conn, send: make(chan []byte, clientDepth)}

	// No replay: the client only sees snapshots produced after this point.
	// The index page already carries current state in its initial render.
	select {
	case h.register <- c:
	case <-h.shutdown:
		_ = conn.Close()
		return
	}

	go c.writePump()
	h.readPump(c)
}

// Shutdown stops the run loop and closes every client connection.
func (h *Hub) Shutdown() {
	close(h.shutdown)

	h.mutex.Lock()
	for c := range h.clients {
		close(c.send)
	}
	h.clients = make(map[*client]bool)
	h.mutex.Unlock()
	metrics.Get().SetLiveClients(0)
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.shutdown:
			return
		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mutex.Unlock()
			metrics.Get().SetLiveClients(n)
			h.logger.Debug("Client registered", "clients", n)
		case c := <-h.unregister:
			h.remove(c)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// remove detaches a client and closes its send channel, which makes its
// writePump close the connection. Idempotent.
func (h *Hub) remove(c *client) {
	h.mutex.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mutex.Unlock()
	metrics.Get().SetLiveClients(n)
	h.logger.Debug("Client unregistered", "clients", n)
}

// broadcastToClients queues the message on every client without blocking. It
// runs in the run goroutine, so removal happens right here rather than by
// sending on unregister, whose receiver is this same goroutine. Send channels
// are only closed under the write lock, so queuing under the read lock never
// races a close.
func (h *Hub) broadcastToClients(message []byte) {
	var full []*client

	h.mutex.RLock()
	for c := range h.clients {
		select {
		case c.send <- message:
		default:
			full = append(full, c)
		}
	}
	h.mutex.RUnlock()

	for _, c := range full {
		h.logger.Debug("Client queue full, dropping client")
		h.remove(c)
	}
	metrics.Get().IncrementSnapshots()
}

func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.shutdown:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Clients never send application messages; the read loop only services
	// control frames and detects disconnects.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("Unexpected websocket close", "error", err)
			}
			return
		}
	}
}

// writePump drains the send channel onto the connection and keeps the ping
// ticker going. It exits when the channel is closed or a write fails; either
// way it closes the connection, which unblocks readPump.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
