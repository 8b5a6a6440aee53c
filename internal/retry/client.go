// Package retry provides exponential-backoff retry logic bounded by a
// total time budget, shared by every caller that talks to the broker.
//
// Generalized from a single method tied to one broker call into a Do
// method taking an arbitrary operation, and from a max-attempt count to
// a total-time-budget stop condition: keep retrying transient failures
// until the budget is exhausted, not until N tries have been made.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/harlowquant/meanrev-engine/internal/xerrors"
)

// Config controls backoff timing and the total retry budget.
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Budget         time.Duration
}

// DefaultConfig is the retry policy used for broker order submission:
// start at 100ms, double up to a 2s cap, over a 5s total budget.
var DefaultConfig = Config{
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
	Budget:         5 * time.Second,
}

// Client retries an operation against the configured backoff policy.
type Client struct {
	logger *log.Logger
	config Config
}

// NewClient builds a Client, sanitizing zero/negative config fields to
// DefaultConfig's values.
func NewClient(logger *log.Logger, config ...Config) *Client {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultConfig.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig.MaxBackoff
	}
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultConfig.Budget
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return &Client{logger: logger, config: cfg}
}

// Do runs op, retrying with exponential backoff as long as op returns
// an error wrapping xerrors.ErrTransientTransport and the total time
// budget has not been exhausted. Any other error returns immediately;
// a non-transient failure is never worth retrying.
func (c *Client) Do(ctx context.Context, op func(ctx context.Context) error) error {
	deadline := time.Now().Add(c.config.Budget)
	backoff := c.config.InitialBackoff

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !errors.Is(err, xerrors.ErrTransientTransport) {
			return err
		}

		if time.Now().Add(backoff).After(deadline) {
			return fmt.Errorf("exhausted %s retry budget after %d attempt(s): %w", c.config.Budget, attempt, lastErr)
		}

		c.logger.Printf("retry: attempt %d failed with transient error, retrying in %s: %v", attempt, backoff, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.config.MaxBackoff {
			backoff = c.config.MaxBackoff
		}
	}
}
