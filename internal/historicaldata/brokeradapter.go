package historicaldata

import (
	"context"
	"fmt"
	"time"

	"github.com/harlowquant/meanrev-engine/internal/broker"
	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
)

// BrokerFetcher adapts a broker client to the Fetcher interface,
// decoding each raw day entry into a domainmodel.Day.
type BrokerFetcher struct {
	Client *broker.CircuitBreakerClient
}

// History fetches and decodes daily bars for symbol from the broker.
func (f BrokerFetcher) History(ctx context.Context, symbol string, start, end time.Time) (HistoryResponse, error) {
	raw, err := f.Client.History(ctx, symbol, start, end)
	if err != nil {
		return HistoryResponse{}, err
	}

	days := make([]domainmodel.Day, 0, len(raw.History.Day))
	for _, entry := range raw.History.Day {
		day, err := domainmodel.DecodeDay(symbol, entry)
		if err != nil {
			return HistoryResponse{}, fmt.Errorf("decoding history for %s: %w", symbol, err)
		}
		days = append(days, day)
	}
	return HistoryResponse{Days: days}, nil
}
