// Package historicaldata provides a one-shot bulk fetch of daily bars
// for a symbol set, cached in memory for the process lifetime.
package historicaldata

import (
	"context"
	"fmt"
	"time"

	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
)

// HistoryResponse is the decoded set of daily bars for one symbol over
// a requested window.
type HistoryResponse struct {
	Days []domainmodel.Day
}

// Fetcher fetches decoded daily bars for one symbol. Satisfied by
// BrokerFetcher, an adapter over *broker.CircuitBreakerClient.
type Fetcher interface {
	History(ctx context.Context, symbol string, start, end time.Time) (HistoryResponse, error)
}

// Provider is a one-shot bulk fetch of daily bars, cached in memory for
// the process lifetime. The same map is returned by reference on every
// call to Snapshot.
type Provider struct {
	snapshot map[string][]domainmodel.Day
}

// NewProvider performs the initial bulk fetch of history for symbols
// over the window ending at end, rangeDays before it. A failure for any
// symbol is fatal to provider construction.
func NewProvider(ctx context.Context, fetcher Fetcher, symbols []string, end time.Time, rangeDays int) (*Provider, error) {
	start := end.AddDate(0, 0, -rangeDays)
	snapshot := make(map[string][]domainmodel.Day, len(symbols))

	for _, symbol := range symbols {
		resp, err := fetcher.History(ctx, symbol, start, end)
		if err != nil {
			return nil, fmt.Errorf("fetching history for %s: %w", symbol, err)
		}
		snapshot[symbol] = resp.Days
	}

	return &Provider{snapshot: snapshot}, nil
}

// Snapshot returns the cached symbol -> ordered Day sequence mapping.
// The same map value is returned on every call.
func (p *Provider) Snapshot() map[string][]domainmodel.Day {
	return p.snapshot
}

// Window returns a copy of snapshot with each symbol's sequence
// filtered to [end-rangeDays, end]. Used by backtest mode so a single
// full-history snapshot can serve every replay date's statistics window
// without refetching.
func Window(snapshot map[string][]domainmodel.Day, end domainmodel.CivilDate, rangeDays int) map[string][]domainmodel.Day {
	start := end.AddDays(-rangeDays)
	out := make(map[string][]domainmodel.Day, len(snapshot))
	for symbol, days := range snapshot {
		var windowed []domainmodel.Day
		for _, d := range days {
			if !d.Date.Before(start) && !d.Date.After(end) {
				windowed = append(windowed, d)
			}
		}
		out[symbol] = windowed
	}
	return out
}
