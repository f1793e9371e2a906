package scan

import (
	"context"
	"time"
)

// LastScanSource is the read-only store view the recency filter needs.
type LastScanSource interface {
	LastScanTime(ctx context.Context, address string) (time.Time, bool, error)
}

// Filter decides whether a target needs a fresh probe or its stored record
// is still valid. It is a pure decision function over the store and safe for
// concurrent use from many workers.
type Filter struct {
	source LastScanSource
	now    func() time.Time
}

// NewFilter creates a recency filter over the given store.
func NewFilter(source LastScanSource) *Filter {
	return &Filter{source: source, now: time.Now}
}

// ShouldProbe returns true when the address must be probed: always under
// force, when no record exists, or when the record is older than threshold.
// A read error also returns true so a flaky store never suppresses probing;
// the error is passed back for logging.
func (f *Filter) ShouldProbe(ctx context.Context, address string, threshold time.Duration, force bool) (bool, error) {
	if force {
		return true, nil
	}
	last, found, err := f.source.LastScanTime(ctx, address)
	if err != nil {
		return true, err
	}
	if !found {
		return true, nil
	}
	return f.now().Sub(last) > threshold, nil
}
