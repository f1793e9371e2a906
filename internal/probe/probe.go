// Package probe wraps one invocation of the external probing engine (nmap)
// against a single address. It converts raw engine output into a canonical
// per-host report, or a typed failure the orchestrator can log and skip.
package probe

import (
	"context"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"github.com/edgerunner0x01/violette/internal/errors"
	"github.com/edgerunner0x01/violette/internal/logging"
	"github.com/edgerunner0x01/violette/internal/metrics"
	"github.com/edgerunner0x01/violette/internal/store"
)

// engineGrace is added on top of the per-host timeout so nmap's own
// --host-timeout fires before our context deadline in the common case.
const engineGrace = 10 * time.Second

// PortObservation is one observed open port.
type PortObservation struct {
	Number  int
	Service string
	Version string
}

// Report is the canonical result of one successful probe.
type Report struct {
	Address   string
	Hostname  string
	Status    string
	OSGuess   string
	Ports     []PortObservation
	ScannedAt time.Time
}

// Prober executes one probe against a single address, blocking for up to the
// given timeout. Every non-nil error is a *errors.ProbeError.
type Prober interface {
	Probe(ctx context.Context, address string, timeout time.Duration) (*Report, error)
}

// NmapProber probes targets with nmap: SYN scan with service, version and OS
// detection enabled.
type NmapProber struct {
	resolver *Resolver
	logger   *logging.Logger
}

// NewNmapProber creates a prober. The resolver is optional; without one the
// hostname comes only from engine output.
func NewNmapProber(resolver *Resolver) *NmapProber {
	return &NmapProber{
		resolver: resolver,
		logger:   logging.Default().WithComponent("probe"),
	}
}

// Probe runs one engine invocation against address. The scanner is created
// with a per-probe context, so the adapter owns the subprocess: cancelling
// the context terminates a still-running nmap rather than leaving it
// orphaned.
func (p *NmapProber) Probe(ctx context.Context, address string, timeout time.Duration) (*Report, error) {
	start := time.Now()
	probeCtx, cancel := context.WithTimeout(ctx, timeout+engineGrace)
	defer cancel()

	scanner, err := nmap.NewScanner(probeCtx,
		nmap.WithTargets(address),
		nmap.WithSYNScan(),
		nmap.WithServiceInfo(),
		nmap.WithOSDetection(),
		nmap.WithAggressiveScan(),
		nmap.WithHostTimeout(timeout),
	)
	if err != nil {
		return nil, errors.WrapProbeError(errors.CodeEngineError, "failed to create scanner", address, err)
	}

	result, warnings, err := scanner.Run()
	metrics.Get().ObserveProbeDuration(time.Since(start))
	if err != nil {
		if probeCtx.Err() == context.DeadlineExceeded {
			return nil, errors.WrapProbeError(errors.CodeTimeout, "probe timed out", address, err)
		}
		return nil, errors.WrapProbeError(errors.CodeEngineError, "probe engine failed", address, err)
	}
	if warnings != nil && len(*warnings) > 0 {
		p.logger.Debug("Probe completed with warnings", "target", address, "warnings", *warnings)
	}

	host := findHost(result, address)
	if host == nil {
		return nil, errors.NewProbeError(errors.CodeNoResponse, "host did not respond", address)
	}

	report := &Report{
		Address:   address,
		Hostname:  p.hostname(ctx, host, address),
		Status:    hostStatus(host),
		OSGuess:   osGuess(host),
		Ports:     openPorts(host),
		ScannedAt: time.Now(),
	}
	return report, nil
}

// findHost locates the probed target in engine output. The engine may report
// the target under any of its addresses.
func findHost(run *nmap.Run, address string) *nmap.Host {
	for i := range run.Hosts {
		h := &run.Hosts[i]
		for _, addr := range h.Addresses {
			if addr.Addr == address {
				return h
			}
		}
	}
	return nil
}

func hostStatus(h *nmap.Host) string {
	if h.Status.State == "" {
		return store.HostStatusUnknown
	}
	return h.Status.State
}

// osGuess applies the contract precedence: first OS-match name, else first
// OS-class family, else the Unknown sentinel.
func osGuess(h *nmap.Host) string {
	for _, match := range h.OS.Matches {
		if match.Name != "" {
			return match.Name
		}
	}
	for _, match := range h.OS.Matches {
		for _, class := range match.Classes {
			if class.Family != "" {
				return class.Family
			}
		}
	}
	return store.OSUnknown
}

// openPorts extracts the open port set with version normalized to empty
// string rather than absent.
func openPorts(h *nmap.Host) []PortObservation {
	ports := make([]PortObservation, 0, len(h.Ports))
	for i := range h.Ports {
		p := &h.Ports[i]
		if p.State.State != "open" {
			continue
		}
		ports = append(ports, PortObservation{
			Number:  int(p.ID),
			Service: p.Service.Name,
			Version: p.Service.Version,
		})
	}
	return ports
}

// hostname prefers the engine-reported name and falls back to a reverse
// lookup. Resolution failures are not probe failures; the hostname is simply
// left empty.
func (p *NmapProber) hostname(ctx context.Context, h *nmap.Host, address string) string {
	if len(h.Hostnames) > 0 && h.Hostnames[0].Name != "" {
		return h.Hostnames[0].Name
	}
	if p.resolver == nil {
		return ""
	}
	name, err := p.resolver.Reverse(ctx, address)
	if err != nil {
		p.logger.Debug("Reverse lookup failed", "target", address, "error", err)
		return ""
	}
	return name
}
