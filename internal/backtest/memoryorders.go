package backtest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
)

// memoryOrderService mirrors the live order service's contract and
// position arithmetic (domainmodel.PositionFromOrder) but skips HTTP
// submission and persistence entirely, matching spec: the backtest
// in-memory order service shares exactly the same position-from-order
// rules as the live one.
type memoryOrderService struct {
	mu        sync.Mutex
	positions map[string]domainmodel.Position
	pnl       []domainmodel.RealizedPnL
}

func newMemoryOrderService() *memoryOrderService {
	return &memoryOrderService{positions: make(map[string]domainmodel.Position)}
}

func (m *memoryOrderService) CreateOrder(ctx context.Context, order domainmodel.Order, strategyName string) (domainmodel.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, had := m.positions[order.Symbol]
	var existingPtr *domainmodel.Position
	if had {
		existingPtr = &existing
	}

	next := domainmodel.PositionFromOrder(order, existingPtr, time.Now())
	m.positions[order.Symbol] = next

	if order.Side == domainmodel.Sell {
		pnl := domainmodel.CalcRealizedPnL(uuid.NewString(), order, existing, strategyName)
		m.pnl = append(m.pnl, pnl)
	}

	return order, nil
}

func (m *memoryOrderService) GetPosition(symbol string) (domainmodel.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[symbol]
	return p, ok
}

// openPositions returns every symbol with a non-zero open quantity.
func (m *memoryOrderService) openPositions() []domainmodel.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domainmodel.Position, 0, len(m.positions))
	for _, p := range m.positions {
		if p.Quantity > 0 {
			out = append(out, p)
		}
	}
	return out
}

// totalRealizedPnL sums every RealizedPnL recorded across the replay.
func (m *memoryOrderService) totalRealizedPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	for _, r := range m.pnl {
		total += r.PnL
	}
	return total
}
