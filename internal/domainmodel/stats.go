package domainmodel

import "math"

// SymbolStats holds the rolling closing-price statistics a strategy
// evaluates against. Computed once at trading-worker startup and
// immutable thereafter.
type SymbolStats struct {
	Symbol  string
	History []Day
	Mean    float64
	StdDev  float64
}

// NewSymbolStats computes the mean and population standard deviation of
// the closing prices in history. history must contain at least one Day.
func NewSymbolStats(symbol string, history []Day) SymbolStats {
	n := float64(len(history))
	var sum float64
	for _, d := range history {
		sum += d.Close
	}
	mean := sum / n

	var variance float64
	for _, d := range history {
		diff := d.Close - mean
		variance += diff * diff
	}
	variance /= n

	return SymbolStats{
		Symbol:  symbol,
		History: history,
		Mean:    mean,
		StdDev:  math.Sqrt(variance),
	}
}
