// Package xerrors names the error kinds the trading engine distinguishes,
// so callers can react with errors.Is/errors.As instead of matching on
// error strings.
package xerrors

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Wrap these with fmt.Errorf("...: %w", ErrX) at the
// point of detection; callers use errors.Is to branch on kind.
var (
	// ErrConfig marks missing or invalid configuration. Fatal at startup.
	ErrConfig = errors.New("config error")

	// ErrAuth marks a rejected bearer token. Fatal at dispatcher startup;
	// transient thereafter (triggers reconnect backoff).
	ErrAuth = errors.New("auth error")

	// ErrTransientTransport marks a socket disconnect, HTTP 5xx, or
	// timeout. Retried per component policy.
	ErrTransientTransport = errors.New("transient transport error")

	// ErrProtocol marks an unparseable frame or HTTP body.
	ErrProtocol = errors.New("protocol error")

	// ErrStore marks a document-store failure. Logged and swallowed by
	// the persistence actor; never propagated to callers.
	ErrStore = errors.New("store error")
)

// Rejected is returned when the broker reports a non-"ok" order status.
// Not retried; the caller decides how to surface it.
type Rejected struct {
	Status string
}

func (e *Rejected) Error() string {
	return fmt.Sprintf("order rejected by broker: %s", e.Status)
}

// IsRejected reports whether err is (or wraps) a broker rejection.
func IsRejected(err error) bool {
	var r *Rejected
	return errors.As(err, &r)
}

// Logic panics to signal a programmer error: an invariant the caller
// should have upheld was violated (e.g. selling with no position). These
// are never retried or recovered from in production code paths.
func Logic(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}
