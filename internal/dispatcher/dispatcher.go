// Package dispatcher provides the market-data fan-out: a long-lived
// quote-dispatch loop that authenticates and connects to the broker's
// streaming session, reconnects with backoff on disconnect, and
// multiplexes each quote to every registered subscriber.
//
// A mutex-guarded subscriber map is broadcast over per quote.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/semaphore"

	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
	"github.com/harlowquant/meanrev-engine/internal/quotefeed"
	"github.com/harlowquant/meanrev-engine/internal/xerrors"
)

const (
	transientBackoff = 1 * time.Second
	authBackoff      = 5 * time.Second
	// maxConcurrentSends bounds how many subscriber sends run
	// concurrently per quote, so one wedged subscriber cannot stall the
	// broadcast of a single quote indefinitely.
	maxConcurrentSends = 8
)

// Authenticator obtains a streaming session id and reports auth/
// transport failures distinctly, matching the broker circuit breaker's
// error wrapping.
type Authenticator interface {
	Authenticate(ctx context.Context) (sessionID string, err error)
}

// Subscription is a subscriber's receive handle. Quotes arrive in the
// order the dispatcher read them from the socket, buffered without
// bound between the dispatcher and the consumer so a slow consumer
// delays only itself and no quote is ever discarded.
type Subscription struct {
	id  uuid.UUID
	in  chan domainmodel.Quote
	out chan domainmodel.Quote
}

// Recv returns the channel to range or select over.
func (s *Subscription) Recv() <-chan domainmodel.Quote {
	return s.out
}

// pump moves quotes from in to out through a growable queue, so the
// dispatcher's send side never waits on the consumer. When the
// subscription is removed, quotes still queued are discarded and out
// is closed.
func (s *Subscription) pump() {
	var queue []domainmodel.Quote
	for {
		if len(queue) == 0 {
			q, ok := <-s.in
			if !ok {
				close(s.out)
				return
			}
			queue = append(queue, q)
		}
		select {
		case q, ok := <-s.in:
			if !ok {
				close(s.out)
				return
			}
			queue = append(queue, q)
		case s.out <- queue[0]:
			queue = queue[1:]
		}
	}
}

// Dispatcher owns the upstream streaming connection and fans quotes out
// to every registered subscriber.
type Dispatcher struct {
	auth      Authenticator
	streamURL string
	symbols   []string
	logger    *log.Logger
	dialer    *websocket.Dialer

	mu          sync.RWMutex
	subscribers map[uuid.UUID]*Subscription

	shutdown atomic.Bool
}

// New builds a Dispatcher. Call Run in its own goroutine to start the
// work loop; Subscribe/Unsubscribe are safe to call concurrently with
// Run.
func New(auth Authenticator, streamURL string, symbols []string, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		auth:        auth,
		streamURL:   streamURL,
		symbols:     symbols,
		logger:      logger,
		dialer:      websocket.DefaultDialer,
		subscribers: make(map[uuid.UUID]*Subscription),
	}
}

// Shutdown signals the work loop to exit after the current iteration.
// Cancellation is cooperative: an in-flight socket read is not
// interrupted and unblocks on the next message or disconnect.
func (d *Dispatcher) Shutdown() {
	d.shutdown.Store(true)
}

// Subscribe registers a fresh subscriber with an unbounded queue and
// returns its receive handle.
func (d *Dispatcher) Subscribe() *Subscription {
	sub := &Subscription{
		id:  uuid.New(),
		in:  make(chan domainmodel.Quote, 64),
		out: make(chan domainmodel.Quote),
	}
	go sub.pump()

	d.mu.Lock()
	d.subscribers[sub.id] = sub
	d.mu.Unlock()

	return sub
}

// Unsubscribe removes a subscriber by identity. Calling it twice for
// the same subscription fails with an error. The error is the same one
// returned for a subscription that was never registered; the two cases
// are not told apart.
func (d *Dispatcher) Unsubscribe(sub *Subscription) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	registered, ok := d.subscribers[sub.id]
	if !ok {
		return fmt.Errorf("unsubscribe: subscriber %s not registered (duplicate unsubscribe?)", sub.id)
	}
	delete(d.subscribers, sub.id)
	close(registered.in)
	return nil
}

// feed adapts *Dispatcher to quotefeed.Source: Subscribe/Unsubscribe
// already match in spirit, only the return/argument types need
// widening to the interface.
type feed struct{ *Dispatcher }

func (f feed) Subscribe() quotefeed.Subscription { return f.Dispatcher.Subscribe() }

func (f feed) Unsubscribe(sub quotefeed.Subscription) error {
	s, ok := sub.(*Subscription)
	if !ok {
		return fmt.Errorf("unsubscribe: not a dispatcher subscription")
	}
	return f.Dispatcher.Unsubscribe(s)
}

// AsFeed exposes d as a quotefeed.Source for consumption by
// tradingworker without either package importing the other's concrete
// types.
func (d *Dispatcher) AsFeed() quotefeed.Source {
	return feed{d}
}

// Run is the long-lived work loop: authenticate, connect, read frames,
// fan out, reconnect on failure. It returns only when shutdown is
// observed true between iterations, or when the very first
// authenticate+connect fails fatally (a rejected token rather than a
// transient transport failure, which is backed off and retried even on
// the first attempt).
func (d *Dispatcher) Run(ctx context.Context) error {
	first := true
	for !d.shutdown.Load() {
		conn, err := d.connect(ctx)
		if err != nil {
			d.logger.Printf("dispatcher: authenticate+connect failed: %v", err)
			if first && !errors.Is(err, xerrors.ErrTransientTransport) {
				return fmt.Errorf("initial authenticate+connect failed: %w", err)
			}
			time.Sleep(authBackoff)
			continue
		}
		first = false

		d.readLoop(conn)
		_ = conn.Close()

		if d.shutdown.Load() {
			break
		}
		time.Sleep(transientBackoff)
	}
	return nil
}

func (d *Dispatcher) connect(ctx context.Context) (*websocket.Conn, error) {
	sessionID, err := d.auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	conn, _, err := d.dialer.DialContext(ctx, d.streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing stream: %w: %v", xerrors.ErrTransientTransport, err)
	}

	frame := struct {
		Symbols   []string `json:"symbols"`
		SessionID string   `json:"sessionid"`
		Filter    []string `json:"filter"`
		Linebreak bool     `json:"linebreak"`
	}{
		Symbols:   d.symbols,
		SessionID: sessionID,
		Filter:    []string{"quote"},
		Linebreak: true,
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("encoding subscription frame: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("writing subscription frame: %w: %v", xerrors.ErrTransientTransport, err)
	}
	return conn, nil
}

// readLoop reads frames until a read error or the shutdown flag is
// observed, fanning each parsed quote out to every subscriber.
func (d *Dispatcher) readLoop(conn *websocket.Conn) {
	sem := semaphore.NewWeighted(maxConcurrentSends)
	for !d.shutdown.Load() {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			d.logger.Printf("dispatcher: read error, will reconnect: %v", err)
			return
		}

		quote, err := domainmodel.DecodeQuoteFrame(raw)
		if err != nil {
			// Protocol errors are demoted to log-and-continue: a
			// non-quote control frame should not kill the iteration.
			d.logger.Printf("dispatcher: dropping unparseable frame: %v", err)
			continue
		}
		if !quote.Valid() {
			d.logger.Printf("dispatcher: dropping invalid quote: %+v", quote)
			continue
		}

		d.broadcast(sem, quote)
	}
}

func (d *Dispatcher) broadcast(sem *semaphore.Weighted, quote domainmodel.Quote) {
	d.mu.RLock()
	targets := make([]*Subscription, 0, len(d.subscribers))
	for _, sub := range d.subscribers {
		targets = append(targets, sub)
	}
	d.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range targets {
		sub := sub
		_ = sem.Acquire(context.Background(), 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			d.sendOne(sub, quote)
		}()
	}
	wg.Wait()
}

// sendOne hands a quote to one subscriber's pump. The pump is always
// ready to receive, so this never waits on the consumer itself.
func (d *Dispatcher) sendOne(sub *Subscription, quote domainmodel.Quote) {
	defer func() {
		if r := recover(); r != nil {
			// in was closed by a concurrent Unsubscribe; drop the send.
			d.logger.Printf("dispatcher: send to removed subscriber dropped: %v", r)
		}
	}()
	sub.in <- quote
}
