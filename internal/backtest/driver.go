package backtest

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
	"github.com/harlowquant/meanrev-engine/internal/historicaldata"
	"github.com/harlowquant/meanrev-engine/internal/quotefeed"
	"github.com/harlowquant/meanrev-engine/internal/tradingworker"
)

// Report is the result of a completed replay: every symbol left with an
// open position, and the sum of realized P&L across the whole window.
type Report struct {
	OpenPositions []domainmodel.Position
	RealizedPnL   float64
}

// Driver runs a deterministic historical replay over
// [end-windowDays, end], one trading worker per (strategy, date).
type Driver struct {
	end        domainmodel.CivilDate
	windowDays int
	histRange  int
	strategies []domainmodel.StrategyConfig
	snapshot   map[string][]domainmodel.Day
	logger     *log.Logger

	orders *memoryOrderService
}

// New builds a Driver. snapshot is the full historical bar set for
// every symbol any configured strategy touches, as returned by
// historicaldata.Provider.Snapshot.
func New(end domainmodel.CivilDate, windowDays, histRangeDays int, strategies []domainmodel.StrategyConfig, snapshot map[string][]domainmodel.Day, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.Default()
	}
	return &Driver{
		end:        end,
		windowDays: windowDays,
		histRange:  histRangeDays,
		strategies: strategies,
		snapshot:   snapshot,
		logger:     logger,
		orders:     newMemoryOrderService(),
	}
}

// quoteGrace is how long the driver waits after starting each date's
// workers before signaling shutdown, giving the already-buffered quotes
// time to drain.
const quoteGrace = 10 * time.Millisecond

// Run replays every date in [end-windowDays, end], skipping dates with
// no bar data, then returns the accumulated report.
func (d *Driver) Run(ctx context.Context) (Report, error) {
	index := BuildQuoteIndex(d.snapshot)
	start := d.end.AddDays(-d.windowDays)

	for date := start; !date.After(d.end); date = date.AddDays(1) {
		source, err := QuotesForDate(index, date)
		if err != nil {
			d.logger.Printf("backtest: skipping %s - no data (weekend or holiday)", date)
			continue
		}

		if err := d.runDate(ctx, date, source); err != nil {
			return Report{}, fmt.Errorf("running backtest date %s: %w", date, err)
		}
	}

	return Report{
		OpenPositions: d.orders.openPositions(),
		RealizedPnL:   d.orders.totalRealizedPnL(),
	}, nil
}

// runDate instantiates one fresh trading worker per configured strategy
// for date, all pointed at the same per-date synthetic source and the
// same shared in-memory order service, and runs them concurrently.
func (d *Driver) runDate(ctx context.Context, date domainmodel.CivilDate, source quotefeed.Source) error {
	windowed := historicaldata.Window(d.snapshot, date, d.histRange)

	g, gctx := errgroup.WithContext(ctx)
	for _, cfg := range d.strategies {
		cfg := cfg
		g.Go(func() error {
			s := domainmodel.NewMeanReversion(cfg.Symbols)
			worker := tradingworker.New(date, s, cfg, windowed, source, d.orders, d.logger)

			worker.Run(gctx)
			time.Sleep(quoteGrace)
			worker.Shutdown()

			d.logger.Printf("backtest: strategy %q ran for %s", cfg.Name, date)
			return nil
		})
	}
	return g.Wait()
}
