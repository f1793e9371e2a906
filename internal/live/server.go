package live

import (
	"context"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/edgerunner0x01/violette/internal/logging"
	"github.com/edgerunner0x01/violette/internal/metrics"
	"github.com/edgerunner0x01/violette/internal/store"
)

const (
	serverShutdownTimeout = 10 * time.Second
	defaultIdleTimeout    = 60 * time.Second
	defaultReadTimeout    = 10 * time.Second
)

// Config holds live view server configuration.
type Config struct {
	Host         string        `yaml:"host" json:"host"`
	Port         int           `yaml:"port" json:"port"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// DefaultConfig returns the default live view configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		PollInterval: defaultPollInterval,
	}
}

// Server hosts the live view: an HTML index that renders the current host
// table, a websocket endpoint fed by the publisher, and Prometheus metrics.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	store      *store.Store
	hub        *Hub
	publisher  *Publisher
	logger     *logging.Logger
}

// NewServer wires the hub, publisher, and routes for the given store.
func NewServer(cfg Config, st *store.Store) *Server {
	hub := NewHub()
	s := &Server{
		router:    mux.NewRouter(),
		store:     st,
		hub:       hub,
		publisher: NewPublisher(st, hub, cfg.PollInterval),
		logger:    logging.Default().WithComponent("live"),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:     handlers.RecoveryHandler()(s.router),
		ReadTimeout: defaultReadTimeout,
		IdleTimeout: defaultIdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.hub.ServeWS)
	s.router.Handle("/metrics", metrics.Get().Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

// Run serves until ctx is canceled, then shuts down gracefully. The
// publisher's poll loop runs for the lifetime of the server.
func (s *Server) Run(ctx context.Context) error {
	pubCtx, cancelPub := context.WithCancel(ctx)
	defer cancelPub()
	go s.publisher.Run(pubCtx)

	s.logger.InfoLive("Starting live view server", "address", s.httpServer.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("live server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.stop()
	case err := <-errChan:
		return err
	}
}

func (s *Server) stop() error {
	s.logger.InfoLive("Stopping live view server")
	s.hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.CountHosts(r.Context()); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleIndex renders the host table server-side. The embedded script then
// keeps it current over the websocket.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListHosts(r.Context())
	if err != nil {
		s.logger.ErrorLive("Failed to read host view", err)
		http.Error(w, "failed to read scan results", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, BuildSnapshot(records)); err != nil {
		s.logger.ErrorLive("Failed to render index", err)
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Scan Results</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Arial, sans-serif;
            margin: 10px;
            background: #fff;
            font-size: 13px;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            margin-top: 5px;
        }
        th, td {
            padding: 8px 12px;
            border: 1px solid #eee;
            text-align: left;
            word-wrap: break-word;
        }
        th {
            background: #fafafa;
            font-weight: 500;
            border-bottom: 2px solid #eee;
        }
        tr:hover {
            background: #f8f8f8;
        }
        .port-info {
            max-width: 400px;
            word-wrap: break-word;
        }
        .mono {
            font-family: monospace;
        }
        #status {
            position: fixed;
            bottom: 10px;
            right: 10px;
            padding: 5px 10px;
            background: #f0f0f0;
            border-radius: 3px;
            font-size: 11px;
            opacity: 0.8;
        }
    </style>
    <script>
        document.addEventListener('DOMContentLoaded', function() {
            const tbody = document.querySelector('tbody');
            const status = document.getElementById('status');
            const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
            const sock = new WebSocket(proto + '//' + location.host + '/ws');

            sock.onmessage = function(event) {
                const msg = JSON.parse(event.data);
                if (msg.type !== 'snapshot') {
                    return;
                }
                let newHtml = '';
                (msg.data.rows || []).forEach(row => {
                    newHtml += '<tr>' +
                        '<td class="mono">' + row.ip + '</td>' +
                        '<td>' + row.hostname + '</td>' +
                        '<td>' + row.os + '</td>' +
                        '<td class="port-info">' + row.ports + '</td>' +
                        '<td>' + row.last_scan + '</td>' +
                        '</tr>';
                });
                tbody.innerHTML = newHtml;
                status.textContent = 'Updated: ' + new Date().toLocaleTimeString();
            };

            sock.onclose = function() {
                status.textContent = 'Connection lost';
            };
        });
    </script>
</head>
<body>
    <table>
        <thead>
            <tr>
                <th>IP</th>
                <th>Hostname</th>
                <th>OS</th>
                <th>Ports</th>
                <th>Last Scan</th>
            </tr>
        </thead>
        <tbody>
            {{range .Rows}}
            <tr>
                <td class="mono">{{.IP}}</td>
                <td>{{.Hostname}}</td>
                <td>{{.OS}}</td>
                <td class="port-info">{{.Ports}}</td>
                <td>{{.LastScan}}</td>
            </tr>
            {{end}}
        </tbody>
    </table>
    <div id="status">Connected</div>
</body>
</html>
`))
