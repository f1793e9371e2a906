package live

import (
	"context"
	"time"

	"github.com/edgerunner0x01/violette/internal/logging"
	"github.com/edgerunner0x01/violette/internal/store"
)

const defaultPollInterval = time.Second

// Publisher polls the store's change marker and pushes a fresh snapshot to
// the hub whenever the marker moves. The marker is an opaque token; only
// inequality with the previously observed value matters.
type Publisher struct {
	store    *store.Store
	hub      *Hub
	interval time.Duration
	logger   *logging.Logger
}

// NewPublisher creates a publisher polling at the given interval. A zero or
// negative interval falls back to one second.
func NewPublisher(st *store.Store, hub *Hub, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Publisher{
		store:    st,
		hub:      hub,
		interval: interval,
		logger:   logging.Default().WithComponent("live"),
	}
}

// Run polls until ctx is canceled. Transient store errors are logged and
// retried on the next tick; they never terminate the loop.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	marker, err := p.store.LatestChangeMarker(ctx)
	if err != nil {
		p.logger.ErrorLive("Failed to read initial change marker", err)
		marker = ""
	}
	p.logger.InfoLive("Publisher started", "interval", p.interval)

	var last *Snapshot

	for {
		select {
		case <-ctx.Done():
			p.logger.InfoLive("Publisher stopped")
			return
		case <-ticker.C:
			current, err := p.store.LatestChangeMarker(ctx)
			if err != nil {
				p.logger.ErrorLive("Failed to read change marker", err)
				continue
			}
			if current == marker {
				continue
			}

			records, err := p.store.ListHosts(ctx)
			if err != nil {
				p.logger.ErrorLive("Failed to read host view", err)
				continue
			}

			// The marker can move without the rendered view changing, for
			// example a sub-second last_scan bump. Skip the broadcast then.
			snap := BuildSnapshot(records)
			if last != nil && snap.Equal(last) {
				marker = current
				continue
			}

			p.hub.Publish(snap)
			last = snap
			marker = current
		}
	}
}
