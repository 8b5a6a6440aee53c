package orderservice

import (
	"context"

	"github.com/harlowquant/meanrev-engine/internal/broker"
	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
	"github.com/harlowquant/meanrev-engine/internal/retry"
)

// submitWithRetry submits order through r, retrying only transient
// transport failures per retry.Client's exponential-backoff-with-budget
// policy. A protocol error or broker rejection returns immediately.
func submitWithRetry(ctx context.Context, r *retry.Client, b Broker, order domainmodel.Order) (broker.OrderResponse, error) {
	var resp broker.OrderResponse
	err := r.Do(ctx, func(ctx context.Context) error {
		var opErr error
		resp, opErr = b.SubmitOrder(ctx, order.Symbol, string(order.Side), order.Quantity)
		return opErr
	})
	if err != nil {
		return broker.OrderResponse{}, err
	}
	return resp, nil
}
