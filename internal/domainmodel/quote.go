// Package domainmodel defines the value types shared by every component of
// the trading engine: quotes, daily bars, orders, positions, realized P&L,
// signals, and strategy configuration.
package domainmodel

import "time"

// Quote is a point-in-time best-bid/best-ask pair for a symbol.
type Quote struct {
	Symbol  string    `json:"symbol"`
	Bid     float64   `json:"bid"`
	Ask     float64   `json:"ask"`
	BidDate time.Time `json:"biddate"`
	AskDate time.Time `json:"askdate"`
}

// Valid reports whether the quote satisfies the domain invariants:
// a non-empty symbol, and bid <= ask whenever both sides are present.
func (q Quote) Valid() bool {
	if q.Symbol == "" {
		return false
	}
	if q.Bid > 0 && q.Ask > 0 && q.Bid > q.Ask {
		return false
	}
	return true
}
