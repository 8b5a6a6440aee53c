package retry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harlowquant/meanrev-engine/internal/xerrors"
)

func makeClient(cfg Config) (*Client, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewClient(log.New(&buf, "", 0), cfg), &buf
}

func TestNewClient_SanitizesZeroConfig(t *testing.T) {
	c, _ := makeClient(Config{})
	assert.Equal(t, DefaultConfig, c.config)
}

func TestDo_SucceedsFirstAttemptNoRetry(t *testing.T) {
	c, _ := makeClient(Config{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Budget: 50 * time.Millisecond})

	calls := 0
	err := c.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	c, buf := makeClient(Config{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Budget: 100 * time.Millisecond})

	calls := 0
	err := c.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient blip: %w", xerrors.ErrTransientTransport)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, buf.String(), "retrying in")
}

func TestDo_NonTransientErrorFailsFast(t *testing.T) {
	c, _ := makeClient(Config{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Budget: 100 * time.Millisecond})

	calls := 0
	wantErr := errors.New("rejected: insufficient buying power")
	err := c.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsBudgetAndReturnsWrappedLastErr(t *testing.T) {
	c, _ := makeClient(Config{InitialBackoff: 5 * time.Millisecond, MaxBackoff: 5 * time.Millisecond, Budget: 12 * time.Millisecond})

	calls := 0
	err := c.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return xerrors.ErrTransientTransport
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrTransientTransport)
	assert.Contains(t, err.Error(), "exhausted")
	assert.GreaterOrEqual(t, calls, 1)
}

func TestDo_ContextCanceledDuringBackoffReturnsCtxErr(t *testing.T) {
	c, _ := makeClient(Config{InitialBackoff: 50 * time.Millisecond, MaxBackoff: 50 * time.Millisecond, Budget: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := c.Do(ctx, func(ctx context.Context) error {
		calls++
		return xerrors.ErrTransientTransport
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
