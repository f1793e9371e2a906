package probe

import (
	"context"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	defaultResolveTimeout = 2 * time.Second
	resolvConfPath        = "/etc/resolv.conf"
	fallbackNameserver    = "1.1.1.1:53"
)

// Resolver performs best-effort reverse PTR lookups for probed addresses.
type Resolver struct {
	servers []string
	client  *dns.Client
}

// NewResolver creates a resolver using the system's configured nameservers,
// falling back to a public one when none can be read.
func NewResolver(timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}

	servers := []string{fallbackNameserver}
	if cfg, err := dns.ClientConfigFromFile(resolvConfPath); err == nil && len(cfg.Servers) > 0 {
		servers = make([]string, 0, len(cfg.Servers))
		for _, s := range cfg.Servers {
			servers = append(servers, s+":"+cfg.Port)
		}
	}

	return &Resolver{
		servers: servers,
		client:  &dns.Client{Timeout: timeout},
	}
}

// Reverse resolves the PTR name for an IP address. Returns an empty string
// when the address has no PTR record.
func (r *Resolver) Reverse(ctx context.Context, address string) (string, error) {
	arpa, err := dns.ReverseAddr(address)
	if err != nil {
		return "", err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)

	var lastErr error
	for _, server := range r.servers {
		in, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		for _, answer := range in.Answer {
			if ptr, ok := answer.(*dns.PTR); ok {
				return strings.TrimSuffix(ptr.Ptr, "."), nil
			}
		}
		return "", nil
	}
	return "", lastErr
}
