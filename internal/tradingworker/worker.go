// Package tradingworker is the per-(strategy, trading day) quote
// consumer: it subscribes to market data, evaluates the strategy
// against each quote using precomputed statistics, and submits whatever
// order the strategy's sizing rule yields.
//
// Polls non-blockingly with a short sleep between attempts and an
// atomic shutdown flag rather than a blocking receive, so shutdown is
// observed at bounded latency.
package tradingworker

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
	"github.com/harlowquant/meanrev-engine/internal/quotefeed"
	"github.com/harlowquant/meanrev-engine/internal/strategy"
)

// pollInterval is how long the worker sleeps between non-blocking
// receive attempts when no quote is waiting.
const pollInterval = time.Millisecond

// OrderService is the subset of *orderservice.Service the worker needs.
type OrderService interface {
	CreateOrder(ctx context.Context, order domainmodel.Order, strategyName string) (domainmodel.Order, error)
	GetPosition(symbol string) (domainmodel.Position, bool)
}

// Worker runs one strategy against market data for one trading date.
type Worker struct {
	tradeDate domainmodel.CivilDate
	strategy  domainmodel.Strategy
	config    domainmodel.StrategyConfig

	feed   quotefeed.Source
	orders OrderService
	logger *log.Logger

	stats map[string]domainmodel.SymbolStats

	sub      quotefeed.Subscription
	shutdown atomic.Bool
	wg       sync.WaitGroup
}

// New builds a Worker. history maps symbol -> ordered daily bars used
// to compute each symbol's statistics once at startup.
func New(
	tradeDate domainmodel.CivilDate,
	s domainmodel.Strategy,
	config domainmodel.StrategyConfig,
	history map[string][]domainmodel.Day,
	feed quotefeed.Source,
	orders OrderService,
	logger *log.Logger,
) *Worker {
	if logger == nil {
		logger = log.Default()
	}

	stats := make(map[string]domainmodel.SymbolStats, len(s.Symbols))
	for _, symbol := range s.Symbols {
		days := history[symbol]
		if len(days) == 0 {
			continue
		}
		stats[symbol] = domainmodel.NewSymbolStats(symbol, days)
	}

	return &Worker{
		tradeDate: tradeDate,
		strategy:  s,
		config:    config,
		feed:      feed,
		orders:    orders,
		logger:    logger,
		stats:     stats,
	}
}

// Run subscribes to market data and spawns the consume loop. It returns
// immediately; call Shutdown to stop and wait for the loop to exit.
func (w *Worker) Run(ctx context.Context) {
	w.sub = w.feed.Subscribe()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.consume(ctx)
	}()
}

func (w *Worker) consume(ctx context.Context) {
	ch := w.sub.Recv()
	for {
		if w.shutdown.Load() {
			return
		}
		select {
		case quote, ok := <-ch:
			if !ok {
				return
			}
			w.handleQuote(ctx, quote)
		default:
			time.Sleep(pollInterval)
		}
	}
}

func (w *Worker) handleQuote(ctx context.Context, quote domainmodel.Quote) {
	stats, ok := w.stats[quote.Symbol]
	if !ok {
		return
	}

	signal := strategy.Evaluate(w.strategy, quote, stats)
	if signal == domainmodel.SignalNone {
		return
	}

	var position *domainmodel.Position
	if p, ok := w.orders.GetPosition(quote.Symbol); ok {
		position = &p
	}

	capital := w.config.CapitalFor(quote.Symbol)
	order := strategy.MaybeCreateOrder(w.tradeDate, signal, position, quote, capital)
	if order == nil {
		return
	}

	confirmed, err := w.orders.CreateOrder(ctx, *order, w.config.Name)
	if err != nil {
		w.logger.Printf("tradingworker: order submission failed for %s: %v", quote.Symbol, err)
		return
	}
	w.logger.Printf("tradingworker: %s %s qty=%d px=%.2f confirmed broker_id=%d",
		confirmed.Side, confirmed.Symbol, confirmed.Quantity, confirmed.ReferencePrice, confirmed.BrokerID)
}

// Shutdown unsubscribes from market data and joins the consume loop.
func (w *Worker) Shutdown() {
	w.shutdown.Store(true)
	if w.sub != nil {
		_ = w.feed.Unsubscribe(w.sub)
	}
	w.wg.Wait()
}
