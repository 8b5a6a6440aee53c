package domainmodel

import (
	"time"

	"github.com/harlowquant/meanrev-engine/internal/xerrors"
)

// Position is the net open quantity and aggregate cost basis for a
// symbol. At most one Position exists per symbol at any time.
type Position struct {
	BrokerID    int       `json:"broker_id,omitempty"`
	HasBrokerID bool      `json:"has_broker_id,omitempty"`
	Symbol      string    `json:"symbol"`
	Quantity    int64     `json:"quantity"`
	CostBasis   float64   `json:"cost_basis"`
	AcquiredAt  time.Time `json:"acquired_at"`
}

// PositionFromOrder computes the resulting Position after order is
// confirmed against existing (nil if the symbol had no prior position).
// Shared by the live order service and the backtest in-memory order
// service so the position-arithmetic rules live in exactly one place.
//
// Buy with no existing position opens a fresh position at order price.
// Buy with an existing position adds quantity without reaveraging cost
// basis, so P&L after several buys of one symbol is approximate. Sell
// requires an existing position with quantity >= order.Quantity and
// always closes the position out to zero; partial sell sizing is the
// caller's responsibility (see strategy.MaybeCreateOrder's full-unwind
// policy).
func PositionFromOrder(order Order, existing *Position, now time.Time) Position {
	switch order.Side {
	case Buy:
		if existing == nil {
			return Position{
				Symbol:     order.Symbol,
				Quantity:   order.Quantity,
				CostBasis:  order.ReferencePrice * float64(order.Quantity),
				AcquiredAt: now,
			}
		}
		next := *existing
		next.Quantity += order.Quantity
		return next
	case Sell:
		if existing == nil || existing.Quantity < order.Quantity {
			xerrors.Logic("attempted unwind with no sufficient position for %s: order qty %d, position %+v",
				order.Symbol, order.Quantity, existing)
		}
		next := *existing
		next.Quantity = 0
		return next
	default:
		xerrors.Logic("unknown order side %q", order.Side)
		return Position{}
	}
}
