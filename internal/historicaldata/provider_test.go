package historicaldata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
)

type fakeFetcher struct {
	bars map[string][]domainmodel.Day
	err  error
}

func (f fakeFetcher) History(ctx context.Context, symbol string, start, end time.Time) (HistoryResponse, error) {
	if f.err != nil {
		return HistoryResponse{}, f.err
	}
	return HistoryResponse{Days: f.bars[symbol]}, nil
}

func bar(symbol string, y int, m time.Month, d int, close float64) domainmodel.Day {
	return domainmodel.Day{
		Symbol: symbol,
		Date:   domainmodel.CivilDate{Year: y, Month: m, Day: d},
		Open:   close, High: close, Low: close, Close: close,
		Volume: 1000,
	}
}

func TestNewProvider_SnapshotReturnsSameMapEveryCall(t *testing.T) {
	fetcher := fakeFetcher{bars: map[string][]domainmodel.Day{
		"SPY": {bar("SPY", 2024, 6, 28, 100)},
	}}

	p, err := NewProvider(context.Background(), fetcher, []string{"SPY"}, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), 20)
	require.NoError(t, err)

	first := p.Snapshot()
	second := p.Snapshot()
	assert.Len(t, first["SPY"], 1)

	// Both calls hand back the same underlying map, not a copy.
	first["QQQ"] = nil
	_, shared := second["QQQ"]
	assert.True(t, shared)
}

func TestNewProvider_AnySymbolFailureIsFatal(t *testing.T) {
	fetcher := fakeFetcher{err: errors.New("history endpoint down")}

	_, err := NewProvider(context.Background(), fetcher, []string{"SPY"}, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), 20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPY")
}

func TestWindow_FiltersToStatisticsRange(t *testing.T) {
	snapshot := map[string][]domainmodel.Day{
		"SPY": {
			bar("SPY", 2024, 6, 24, 98),
			bar("SPY", 2024, 6, 26, 99),
			bar("SPY", 2024, 6, 28, 100),
			bar("SPY", 2024, 6, 30, 101),
		},
	}

	end := domainmodel.CivilDate{Year: 2024, Month: 6, Day: 28}
	got := Window(snapshot, end, 4)

	require.Len(t, got["SPY"], 3)
	assert.Equal(t, domainmodel.CivilDate{Year: 2024, Month: 6, Day: 24}, got["SPY"][0].Date)
	assert.Equal(t, domainmodel.CivilDate{Year: 2024, Month: 6, Day: 28}, got["SPY"][2].Date)
}

func TestWindow_DoesNotMutateTheSourceSnapshot(t *testing.T) {
	snapshot := map[string][]domainmodel.Day{
		"SPY": {bar("SPY", 2024, 6, 24, 98), bar("SPY", 2024, 6, 28, 100)},
	}

	_ = Window(snapshot, domainmodel.CivilDate{Year: 2024, Month: 6, Day: 28}, 1)
	assert.Len(t, snapshot["SPY"], 2)
}
