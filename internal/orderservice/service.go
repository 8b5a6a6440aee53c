// Package orderservice transforms a requested Order into a broker
// submission, reconciles local position state, and emits realized P&L
// on closes.
//
// Shape: a broker handle plus mutex-guarded local state and a logger,
// with the position bookkeeping delegated to domainmodel.PositionFromOrder
// so the live and backtest order services share exactly one arithmetic
// implementation.
package orderservice

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harlowquant/meanrev-engine/internal/broker"
	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
	"github.com/harlowquant/meanrev-engine/internal/persistence"
	"github.com/harlowquant/meanrev-engine/internal/retry"
	"github.com/harlowquant/meanrev-engine/internal/xerrors"
)

// Broker is the subset of the circuit-breaker-wrapped broker client the
// order service needs.
type Broker interface {
	SubmitOrder(ctx context.Context, symbol, side string, quantity int64) (broker.OrderResponse, error)
	Positions(ctx context.Context) (broker.PositionsResponse, error)
}

// Service owns the local position map and submits orders through
// Broker, persisting confirmed state via a persistence.Handle.
type Service struct {
	broker  Broker
	persist persistence.Handle
	logger  *log.Logger
	retry   *retry.Client

	mu        sync.RWMutex
	positions map[string]domainmodel.Position
	realized  []domainmodel.RealizedPnL
}

// New constructs a Service. It fetches the broker's current position
// snapshot, drops any previously persisted positions collection, and
// rewrites it from that snapshot: the broker, not the store, is the
// source of truth for position state at startup.
func New(ctx context.Context, b Broker, persist persistence.Handle, store persistence.Store, logger *log.Logger) (*Service, error) {
	if logger == nil {
		logger = log.Default()
	}

	snapshot, err := b.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching broker position snapshot: %w", err)
	}

	positions := make(map[string]domainmodel.Position, len(snapshot.Positions.Position))
	for _, item := range snapshot.Positions.Position {
		acquired, _ := time.Parse("2006-01-02", item.DateAcquired)
		positions[item.Symbol] = domainmodel.Position{
			BrokerID:    item.ID,
			HasBrokerID: true,
			Symbol:      item.Symbol,
			Quantity:    item.Quantity,
			CostBasis:   item.CostBasis,
			AcquiredAt:  acquired,
		}
	}

	if err := store.DropPositions(ctx); err != nil {
		return nil, fmt.Errorf("dropping stale positions before rewrite: %w", err)
	}
	for _, p := range positions {
		persist.EnqueuePosition(p)
	}

	return &Service{broker: b, persist: persist, logger: logger, retry: retry.NewClient(logger), positions: positions}, nil
}

// CreateOrder submits order to the broker. On a confirmed fill it
// persists the order, computes and persists the resulting position, and
// (on a Sell) computes and persists a RealizedPnL. A non-"ok" broker
// status returns an *xerrors.Rejected and leaves local state untouched.
func (s *Service) CreateOrder(ctx context.Context, order domainmodel.Order, strategyName string) (domainmodel.Order, error) {
	resp, err := submitWithRetry(ctx, s.retry, s.broker, order)
	if err != nil {
		return domainmodel.Order{}, err
	}
	if resp.Order.Status != "ok" {
		return domainmodel.Order{}, &xerrors.Rejected{Status: resp.Order.Status}
	}

	confirmed := order.WithBrokerID(resp.Order.ID)
	s.persist.EnqueueOrder(confirmed)

	s.mu.Lock()
	existing, had := s.positions[order.Symbol]
	var existingPtr *domainmodel.Position
	if had {
		existingPtr = &existing
	}
	next := domainmodel.PositionFromOrder(confirmed, existingPtr, time.Now())
	s.positions[order.Symbol] = next
	s.mu.Unlock()

	s.persist.EnqueuePosition(next)

	if confirmed.Side == domainmodel.Sell {
		pnl := domainmodel.CalcRealizedPnL(uuid.NewString(), confirmed, existing, strategyName)
		s.mu.Lock()
		s.realized = append(s.realized, pnl)
		s.mu.Unlock()
		s.persist.EnqueuePnL(pnl)
	}

	return confirmed, nil
}

// GetPosition returns the current Position for symbol, and whether one
// exists.
func (s *Service) GetPosition(symbol string) (domainmodel.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[symbol]
	return p, ok
}

// UpdatePosition replaces the stored Position for its symbol, bypassing
// order submission. Nothing is persisted.
func (s *Service) UpdatePosition(p domainmodel.Position) {
	s.mu.Lock()
	s.positions[p.Symbol] = p
	s.mu.Unlock()
}

// AllPositions returns a snapshot of every tracked position, open or
// closed. Backs the status API's /positions endpoint.
func (s *Service) AllPositions() []domainmodel.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domainmodel.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out
}

// RealizedPnL returns every realized P&L record emitted since this
// service was constructed. The supervisor rebuilds the service at each
// day boundary, so this is the current trading day's realized P&L.
// Backs the status API's /pnl endpoint.
func (s *Service) RealizedPnL() []domainmodel.RealizedPnL {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domainmodel.RealizedPnL, len(s.realized))
	copy(out, s.realized)
	return out
}
