// Package supervisor owns the live-mode day-rollover lifecycle: build
// today's components, run them, and rebuild everything except
// persistence when the local calendar date advances.
//
// A ticker-driven main loop with a context-cancellation shutdown path,
// adapted from a fixed trading-cycle interval to a daily rebuild
// boundary.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/harlowquant/meanrev-engine/internal/broker"
	"github.com/harlowquant/meanrev-engine/internal/config"
	"github.com/harlowquant/meanrev-engine/internal/dispatcher"
	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
	"github.com/harlowquant/meanrev-engine/internal/historicaldata"
	"github.com/harlowquant/meanrev-engine/internal/orderservice"
	"github.com/harlowquant/meanrev-engine/internal/persistence"
	"github.com/harlowquant/meanrev-engine/internal/tradingworker"
)

// checkInterval is how often the supervisor wakes to check for a date
// rollover.
const checkInterval = 5 * time.Minute

// Supervisor builds and rebuilds the live per-day component set:
// dispatcher, historical data snapshot, order service, and one trading
// worker per configured strategy. Persistence is process-lifetime and
// is never rebuilt.
type Supervisor struct {
	cfg     *config.Config
	broker  *broker.CircuitBreakerClient
	persist persistence.Handle
	store   persistence.Store
	logger  *log.Logger
}

// New builds a Supervisor. broker and persist/store are shared across
// every day's rebuild.
func New(cfg *config.Config, b *broker.CircuitBreakerClient, persist persistence.Handle, store persistence.Store, logger *log.Logger) *Supervisor {
	if logger == nil {
		logger = log.Default()
	}
	return &Supervisor{cfg: cfg, broker: b, persist: persist, store: store, logger: logger}
}

// day is one rebuildable set of live components.
type day struct {
	dispatcher *dispatcher.Dispatcher
	workers    []*tradingworker.Worker
	cancel     context.CancelFunc
	runDone    chan struct{}
	runErr     error // written before runDone closes
}

// Run loops until ctx is canceled: build today's components and start
// them, then wake every checkInterval to check for a local date
// rollover, tearing down and rebuilding everything but persistence when
// one occurs.
func (s *Supervisor) Run(ctx context.Context) error {
	today := domainmodel.NewCivilDate(time.Now())
	d, err := s.build(ctx, today)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.teardown(d)
			return nil
		case <-d.runDone:
			// The dispatcher's work loop only returns on its own when the
			// initial authenticate+connect failed fatally; that is an
			// unrecoverable startup condition, not something to rebuild
			// around.
			s.teardown(d)
			return fmt.Errorf("dispatcher exited: %w", d.runErr)
		case <-ticker.C:
			now := domainmodel.NewCivilDate(time.Now())
			if !now.After(today) {
				continue
			}
			s.logger.Printf("supervisor: date rollover %s -> %s, rebuilding", today, now)
			s.teardown(d)
			today = now
			d, err = s.build(ctx, today)
			if err != nil {
				return err
			}
		}
	}
}

func (s *Supervisor) build(parent context.Context, today domainmodel.CivilDate) (*day, error) {
	ctx, cancel := context.WithCancel(parent)

	symbols := s.cfg.AllSymbols()
	disp := dispatcher.New(s.broker, s.cfg.Broker.StreamURL, symbols, s.logger)

	d := &day{dispatcher: disp, cancel: cancel, runDone: make(chan struct{})}
	go func() {
		defer close(d.runDone)
		d.runErr = disp.Run(ctx)
	}()

	histProvider, err := historicaldata.NewProvider(ctx, historicaldata.BrokerFetcher{Client: s.broker}, symbols, today.Midnight(time.Local), s.cfg.HistData.RangeDays)
	if err != nil {
		s.abortBuild(d)
		return nil, err
	}

	orders, err := orderservice.New(ctx, s.broker, s.persist, s.store, s.logger)
	if err != nil {
		s.abortBuild(d)
		return nil, err
	}

	strategies := s.cfg.DomainStrategies()
	d.workers = make([]*tradingworker.Worker, 0, len(strategies))
	for _, strategyCfg := range strategies {
		strat := domainmodel.NewMeanReversion(strategyCfg.Symbols)
		w := tradingworker.New(today, strat, strategyCfg, histProvider.Snapshot(), disp.AsFeed(), orders, s.logger)
		w.Run(ctx)
		d.workers = append(d.workers, w)
	}

	return d, nil
}

func (s *Supervisor) teardown(d *day) {
	for _, w := range d.workers {
		w.Shutdown()
	}
	d.dispatcher.Shutdown()
	d.cancel()
	<-d.runDone
}

// abortBuild stops the dispatcher started by a build that failed
// partway through, before any worker existed.
func (s *Supervisor) abortBuild(d *day) {
	d.dispatcher.Shutdown()
	d.cancel()
	<-d.runDone
}
