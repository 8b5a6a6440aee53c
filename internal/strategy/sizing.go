package strategy

import "github.com/harlowquant/meanrev-engine/internal/domainmodel"

// MaybeCreateOrder turns a Signal plus the current position and quote
// into an Order to submit, or nil if no order should be placed. capital
// is the strategy's per-symbol capital cap.
//
// Buy sizes to spend the unused portion of the capital cap: shares =
// floor((capital - position_market_value) / ask). Sell always unwinds
// the full existing position at bid; partial sells are not modeled.
func MaybeCreateOrder(tradeDate domainmodel.CivilDate, signal domainmodel.Signal, position *domainmodel.Position, quote domainmodel.Quote, capital int64) *domainmodel.Order {
	switch signal {
	case domainmodel.SignalBuy:
		return maybeBuy(tradeDate, position, quote, capital)
	case domainmodel.SignalSell:
		return maybeSell(tradeDate, position, quote)
	default:
		return nil
	}
}

func maybeBuy(tradeDate domainmodel.CivilDate, position *domainmodel.Position, quote domainmodel.Quote, capital int64) *domainmodel.Order {
	var presentMV float64
	if position != nil {
		presentMV = float64(position.Quantity) * quote.Ask
	}
	remaining := float64(capital) - presentMV
	shares := int64(remaining / quote.Ask)
	if shares <= 0 {
		return nil
	}
	return &domainmodel.Order{
		TradeDate:      tradeDate,
		Symbol:         quote.Symbol,
		Side:           domainmodel.Buy,
		Quantity:       shares,
		ReferencePrice: quote.Ask,
		HasRefPrice:    true,
	}
}

func maybeSell(tradeDate domainmodel.CivilDate, position *domainmodel.Position, quote domainmodel.Quote) *domainmodel.Order {
	if position == nil || position.Quantity <= 0 {
		return nil
	}
	return &domainmodel.Order{
		TradeDate:      tradeDate,
		Symbol:         quote.Symbol,
		Side:           domainmodel.Sell,
		Quantity:       position.Quantity,
		ReferencePrice: quote.Bid,
		HasRefPrice:    true,
	}
}
