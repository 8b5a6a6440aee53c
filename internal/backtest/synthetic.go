// Package backtest replays historical daily bars as a deterministic
// quote stream, one trading worker per (strategy, date), against an
// in-memory order service.
//
// A date -> []Quote index is built once from the full historical
// snapshot; the per-date driver loop instantiates a fresh trading
// worker per strategy against it.
package backtest

import (
	"fmt"
	"time"

	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
	"github.com/harlowquant/meanrev-engine/internal/quotefeed"
)

// BuildQuoteIndex collapses a symbol -> []Day snapshot into a
// date -> []Quote index: one synthetic quote per (symbol, date) with
// bid = ask = close and both timestamps at midnight local time on that
// date.
func BuildQuoteIndex(snapshot map[string][]domainmodel.Day) map[domainmodel.CivilDate][]domainmodel.Quote {
	index := make(map[domainmodel.CivilDate][]domainmodel.Quote)
	for _, days := range snapshot {
		for _, d := range days {
			ts := d.Date.Midnight(time.Local)
			index[d.Date] = append(index[d.Date], domainmodel.Quote{
				Symbol:  d.Symbol,
				Bid:     d.Close,
				Ask:     d.Close,
				BidDate: ts,
				AskDate: ts,
			})
		}
	}
	return index
}

// syntheticSource is a per-date quotefeed.Source: Subscribe synchronously
// pushes every quote for the date into the returned subscription's
// buffered channel before returning, so the trading worker drains
// already-buffered quotes rather than racing a live feed.
type syntheticSource struct {
	quotes []domainmodel.Quote
}

// ErrNoData is returned by QuotesForDate when a date has no bars
// (weekends, holidays): the driver skips these dates.
var ErrNoData = fmt.Errorf("no data for date")

// QuotesForDate returns the source for date, or ErrNoData if the index
// has no quotes for it.
func QuotesForDate(index map[domainmodel.CivilDate][]domainmodel.Quote, date domainmodel.CivilDate) (quotefeed.Source, error) {
	quotes, ok := index[date]
	if !ok || len(quotes) == 0 {
		return nil, ErrNoData
	}
	return &syntheticSource{quotes: quotes}, nil
}

func (s *syntheticSource) Subscribe() quotefeed.Subscription {
	ch := make(chan domainmodel.Quote, len(s.quotes))
	for _, q := range s.quotes {
		ch <- q
	}
	return syntheticSubscription{ch: ch}
}

// Unsubscribe is a no-op: the synthetic source has no upstream
// connection or subscriber registry to tear down.
func (s *syntheticSource) Unsubscribe(quotefeed.Subscription) error {
	return nil
}

type syntheticSubscription struct {
	ch chan domainmodel.Quote
}

func (s syntheticSubscription) Recv() <-chan domainmodel.Quote {
	return s.ch
}
