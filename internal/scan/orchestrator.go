// Package scan contains the scan orchestration core: it expands a CIDR range
// into targets, runs a bounded pool of probe workers gated by the recency
// filter, commits results to the store, and aggregates live progress into a
// final summary.
package scan

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgerunner0x01/violette/internal/errors"
	"github.com/edgerunner0x01/violette/internal/logging"
	"github.com/edgerunner0x01/violette/internal/metrics"
	"github.com/edgerunner0x01/violette/internal/probe"
	"github.com/edgerunner0x01/violette/internal/store"
)

const (
	defaultConcurrency = 10
	defaultHostTimeout = 300 * time.Second
	defaultThreshold   = 24 * time.Hour
)

// Request describes one scan invocation.
type Request struct {
	// CIDR is the target range, e.g. "192.168.1.0/24".
	CIDR string
	// Concurrency bounds the number of simultaneously in-flight probes.
	Concurrency int
	// TimeoutPerHost bounds each individual probe.
	TimeoutPerHost time.Duration
	// ForceFresh bypasses the recency filter.
	ForceFresh bool
	// Threshold is the age beyond which a stored record is stale.
	Threshold time.Duration
}

func (r *Request) applyDefaults() {
	if r.Concurrency <= 0 {
		r.Concurrency = defaultConcurrency
	}
	if r.TimeoutPerHost <= 0 {
		r.TimeoutPerHost = defaultHostTimeout
	}
	if r.Threshold <= 0 {
		r.Threshold = defaultThreshold
	}
}

// Summary reports the outcome of one scan run. It is returned to the caller
// for final reporting and never persisted.
type Summary struct {
	RunID       uuid.UUID
	Targets     int
	Completed   int
	Skipped     int
	Failed      int
	ActiveHosts int
	Elapsed     time.Duration
	StorePath   string
	Canceled    bool
}

// Target outcomes. Every expanded target reaches exactly one of these within
// a run; no target is probed twice in the same invocation.
type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeCommitted
	outcomeFailed
)

// completion is the message a worker sends the aggregator when a target
// reaches a terminal state.
type completion struct {
	address string
	result  outcome
	up      bool
}

// tally is what the aggregator hands back once the completion channel drains.
type tally struct {
	completed int
	skipped   int
	failed    int
	up        int
}

// Orchestrator coordinates concurrent probing of a network range.
type Orchestrator struct {
	store  *store.Store
	prober probe.Prober
	filter *Filter
	logger *logging.Logger

	// Progress, when set, is called after every terminal target state with
	// the number of finished targets and the total.
	Progress func(done, total int)
}

// New creates an orchestrator writing through the given store.
func New(st *store.Store, prober probe.Prober) *Orchestrator {
	return &Orchestrator{
		store:  st,
		prober: prober,
		filter: NewFilter(st),
		logger: logging.Default().WithComponent("scan"),
	}
}

// Run executes one scan over the request's range. Per-host probe failures
// are logged and skipped; a store write failure or malformed range aborts.
// Cancelling ctx stops new submissions, terminates in-flight probe
// subprocesses through their own contexts, and yields a partial summary.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Summary, error) {
	req.applyDefaults()

	targets, err := ExpandCIDR(req.CIDR)
	if err != nil {
		return nil, err
	}

	runID := uuid.New()
	start := time.Now()
	o.logger.Info("Starting scan run",
		"run_id", runID, "range", req.CIDR,
		"targets", len(targets), "concurrency", req.Concurrency)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	// A store write failure is fatal: record the first one and stop the run.
	var fatalErr error
	var fatalOnce sync.Once
	abort := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			cancelRun()
		})
	}

	// All counters live in the aggregator goroutine; workers only send
	// completion messages.
	completions := make(chan completion)
	tallied := make(chan tally, 1)
	go func() {
		var t tally
		done := 0
		for c := range completions {
			done++
			switch c.result {
			case outcomeSkipped:
				t.skipped++
			case outcomeCommitted:
				t.completed++
				if c.up {
					t.up++
				}
			case outcomeFailed:
				t.failed++
			}
			if o.Progress != nil {
				o.Progress(done, len(targets))
			}
		}
		tallied <- t
	}()

	sem := make(chan struct{}, req.Concurrency)
	var wg sync.WaitGroup

submit:
	for _, addr := range targets {
		select {
		case sem <- struct{}{}:
		case <-runCtx.Done():
			break submit
		}

		wg.Add(1)
		go func(address string) {
			defer wg.Done()
			defer func() { <-sem }()
			completions <- o.processTarget(runCtx, address, req, abort)
		}(addr)
	}

	wg.Wait()
	close(completions)
	t := <-tallied

	elapsed := time.Since(start)
	canceled := ctx.Err() != nil
	status := "completed"
	switch {
	case fatalErr != nil:
		status = "aborted"
	case canceled:
		status = "canceled"
	}
	metrics.Get().RecordScanRun(status, elapsed, t.up)

	summary := &Summary{
		RunID:       runID,
		Targets:     len(targets),
		Completed:   t.completed,
		Skipped:     t.skipped,
		Failed:      t.failed,
		ActiveHosts: t.up,
		Elapsed:     elapsed,
		StorePath:   o.store.Path(),
		Canceled:    canceled,
	}

	o.logger.Info("Scan run finished",
		"run_id", runID, "status", status,
		"completed", t.completed, "skipped", t.skipped, "failed", t.failed,
		"active_hosts", t.up, "elapsed", elapsed)

	return summary, fatalErr
}

// processTarget drives one target through the per-target state machine:
// Pending -> Skipped | Probing -> Committed | Failed.
func (o *Orchestrator) processTarget(ctx context.Context, address string, req Request, abort func(error)) completion {
	should, err := o.filter.ShouldProbe(ctx, address, req.Threshold, req.ForceFresh)
	if err != nil {
		o.logger.Warn("Recency check failed, probing anyway", "target", address, "error", err)
	}
	if !should {
		metrics.Get().IncrementProbes("skipped")
		o.logger.Debug("Skipping recently scanned host", "target", address)
		return completion{address: address, result: outcomeSkipped}
	}

	report, err := o.prober.Probe(ctx, address, req.TimeoutPerHost)
	if err != nil || ctx.Err() != nil {
		metrics.Get().IncrementProbes("failed")
		switch {
		case ctx.Err() != nil:
			o.logger.Debug("Probe abandoned, run canceled", "target", address)
		case errors.IsCode(err, errors.CodeNoResponse):
			o.logger.Debug("Host did not respond", "target", address)
		default:
			o.logger.ErrorScan("Probe failed", address, err)
		}
		return completion{address: address, result: outcomeFailed}
	}

	host := &store.Host{
		Address:  report.Address,
		Hostname: report.Hostname,
		LastScan: report.ScannedAt,
		OSGuess:  report.OSGuess,
		Status:   report.Status,
	}
	ports := make([]store.Port, 0, len(report.Ports))
	for _, p := range report.Ports {
		ports = append(ports, store.Port{
			Number:  p.Number,
			Service: p.Service,
			Version: p.Version,
		})
	}

	if _, err := o.store.SaveResult(ctx, host, ports); err != nil {
		o.logger.ErrorStore("Failed to commit probe result", err, "target", address)
		if ctx.Err() == nil {
			abort(err)
		}
		return completion{address: address, result: outcomeFailed}
	}

	metrics.Get().IncrementProbes("committed")
	o.logger.InfoScan("Host committed", address,
		"status", report.Status, "os", report.OSGuess, "open_ports", len(ports))
	return completion{
		address: address,
		result:  outcomeCommitted,
		up:      report.Status == store.HostStatusUp,
	}
}
