// Package quotefeed defines the minimal subscribe/unsubscribe contract
// a trading worker needs from a quote source, satisfied by both the
// live dispatcher and the backtest driver's synthetic per-date source.
//
// Implemented once for the live broker feed and once for backtest
// replay, so tradingworker depends on neither concretely.
package quotefeed

import "github.com/harlowquant/meanrev-engine/internal/domainmodel"

// Subscription is a subscriber's receive handle.
type Subscription interface {
	Recv() <-chan domainmodel.Quote
}

// Source is anything a trading worker can subscribe to for quotes.
type Source interface {
	Subscribe() Subscription
	Unsubscribe(Subscription) error
}
