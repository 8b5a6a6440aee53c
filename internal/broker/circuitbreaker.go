package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/harlowquant/meanrev-engine/internal/xerrors"
)

// CircuitBreakerClient wraps Client so repeated auth/order/history
// failures trip the breaker open and fail fast instead of retrying
// into a dead broker: one breaker per endpoint family, since an outage
// in one (e.g. order submission) should not stop quote history fetches
// from being attempted.
type CircuitBreakerClient struct {
	inner *Client

	auth      *gobreaker.CircuitBreaker
	history   *gobreaker.CircuitBreaker
	orders    *gobreaker.CircuitBreaker
	positions *gobreaker.CircuitBreaker
}

// NewCircuitBreakerClient wraps client with per-endpoint circuit
// breakers using sensible trading-engine defaults: trip after 5
// consecutive failures, stay open 30s before probing half-open.
func NewCircuitBreakerClient(client *Client) *CircuitBreakerClient {
	newBreaker := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    0,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
	}
	return &CircuitBreakerClient{
		inner:     client,
		auth:      newBreaker("broker-auth"),
		history:   newBreaker("broker-history"),
		orders:    newBreaker("broker-orders"),
		positions: newBreaker("broker-positions"),
	}
}

// Authenticate obtains a streaming session id, failing fast if the
// auth breaker is open.
func (c *CircuitBreakerClient) Authenticate(ctx context.Context) (string, error) {
	result, err := c.auth.Execute(func() (interface{}, error) {
		return c.inner.Authenticate(ctx)
	})
	if err != nil {
		return "", wrapBreakerErr(err, xerrors.ErrAuth)
	}
	return result.(string), nil
}

// History fetches daily bars, failing fast if the history breaker is
// open.
func (c *CircuitBreakerClient) History(ctx context.Context, symbol string, start, end time.Time) (HistoryResponse, error) {
	result, err := c.history.Execute(func() (interface{}, error) {
		return c.inner.History(ctx, symbol, start, end)
	})
	if err != nil {
		return HistoryResponse{}, wrapBreakerErr(err, xerrors.ErrTransientTransport)
	}
	return result.(HistoryResponse), nil
}

// SubmitOrder submits an order, failing fast if the orders breaker is
// open.
func (c *CircuitBreakerClient) SubmitOrder(ctx context.Context, symbol, side string, quantity int64) (OrderResponse, error) {
	result, err := c.orders.Execute(func() (interface{}, error) {
		return c.inner.SubmitOrder(ctx, symbol, side, quantity)
	})
	if err != nil {
		return OrderResponse{}, wrapBreakerErr(err, xerrors.ErrTransientTransport)
	}
	return result.(OrderResponse), nil
}

// Positions fetches the broker's position snapshot, failing fast if the
// positions breaker is open.
func (c *CircuitBreakerClient) Positions(ctx context.Context) (PositionsResponse, error) {
	result, err := c.positions.Execute(func() (interface{}, error) {
		return c.inner.Positions(ctx)
	})
	if err != nil {
		return PositionsResponse{}, wrapBreakerErr(err, xerrors.ErrTransientTransport)
	}
	return result.(PositionsResponse), nil
}

func wrapBreakerErr(err error, kind error) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return fmt.Errorf("%w: %v", kind, err)
	}
	return err
}
