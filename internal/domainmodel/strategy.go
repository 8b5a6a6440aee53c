package domainmodel

// StrategyKind names a strategy variant. Adding a strategy means adding a
// new kind and a new arm in the evaluator switch, not a new dynamic type.
type StrategyKind int

const (
	StrategyMeanReversion StrategyKind = iota
)

// Strategy is a closed sum type over strategy variants, each carrying its
// own configuration. Today the only variant is MeanReversion.
type Strategy struct {
	Kind    StrategyKind
	Symbols []string // non-empty
}

// NewMeanReversion builds a MeanReversion strategy variant over symbols.
func NewMeanReversion(symbols []string) Strategy {
	return Strategy{Kind: StrategyMeanReversion, Symbols: symbols}
}

// Contains reports whether symbol is one of the strategy's configured
// symbols.
func (s Strategy) Contains(symbol string) bool {
	for _, sym := range s.Symbols {
		if sym == symbol {
			return true
		}
	}
	return false
}

// StrategyConfig binds a named strategy to its symbol list and the
// capital cap allocated per symbol.
type StrategyConfig struct {
	Name    string
	Symbols []string
	Capital map[string]int64 // per-symbol capital cap; defined for every symbol
}

// CapitalFor returns the capital cap configured for symbol, or 0 if the
// symbol is not part of this strategy.
func (c StrategyConfig) CapitalFor(symbol string) int64 {
	return c.Capital[symbol]
}
