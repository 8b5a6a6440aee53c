// Package strategy evaluates a Quote against a Strategy's configuration
// and produces a pure Signal. Adding a strategy variant means adding a
// case to Evaluate, not a new dynamic dispatch target.
//
// Returns Buy/Sell/None rather than only logging a verdict.
package strategy

import "github.com/harlowquant/meanrev-engine/internal/domainmodel"

// sigma is the number of population standard deviations away from the
// mean that triggers a signal.
const sigma = 2.0

// Evaluate returns the strategy's verdict for quote given the symbol's
// precomputed statistics. Quotes for a symbol outside the strategy's
// configured set return None. stats is used as given: a zero-value
// SymbolStats puts both bands at zero, so any positive ask yields Sell.
func Evaluate(s domainmodel.Strategy, quote domainmodel.Quote, stats domainmodel.SymbolStats) domainmodel.Signal {
	if !s.Contains(quote.Symbol) {
		return domainmodel.SignalNone
	}

	switch s.Kind {
	case domainmodel.StrategyMeanReversion:
		return meanReversion(quote, stats)
	default:
		return domainmodel.SignalNone
	}
}

func meanReversion(quote domainmodel.Quote, stats domainmodel.SymbolStats) domainmodel.Signal {
	lower := stats.Mean - sigma*stats.StdDev
	upper := stats.Mean + sigma*stats.StdDev

	switch {
	case quote.Ask < lower:
		return domainmodel.SignalBuy
	case quote.Ask > upper:
		return domainmodel.SignalSell
	default:
		return domainmodel.SignalNone
	}
}
