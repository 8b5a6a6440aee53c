// Package persistence provides the single-writer persistence actor: a
// background worker draining a channel of heterogeneous domain entities
// and upserting them into named document-store collections.
//
// Adapted from a request-response store wrapper into a channel-driven
// single-writer actor.
package persistence

import (
	"context"
	"log"
	"time"

	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
)

// Kind tags a persistable message so the actor can route it to the
// right collection and upsert key without reflection.
type Kind int

const (
	KindOrder Kind = iota
	KindPosition
	KindPnL
)

// Message is a tagged union over the three persistable entity types.
// Exactly one of the payload fields is populated, matching Kind.
type Message struct {
	Kind     Kind
	Order    domainmodel.Order
	Position domainmodel.Position
	PnL      domainmodel.RealizedPnL
}

// Store is the minimal persistence backend the actor needs. Satisfied
// by *MongoStore.
type Store interface {
	UpsertOrder(ctx context.Context, o domainmodel.Order) error
	UpsertPosition(ctx context.Context, p domainmodel.Position) error
	UpsertPnL(ctx context.Context, r domainmodel.RealizedPnL) error
	DropPositions(ctx context.Context) error
}

// Handle is the public, cheaply-copyable send-only handle callers use
// to enqueue persistence work. Sends after shutdown are silently
// dropped rather than panicking.
type Handle struct {
	ch       chan Message
	shutdown *shutdownFlag
}

type shutdownFlag struct {
	done chan struct{}
}

// Init spawns the background worker that owns store and drains
// messages until shutdownCtx is canceled. It returns the send handle
// callers enqueue work through.
func Init(shutdownCtx context.Context, store Store, logger *log.Logger) Handle {
	if logger == nil {
		logger = log.Default()
	}
	ch := make(chan Message, 4096)
	flag := &shutdownFlag{done: make(chan struct{})}

	go run(shutdownCtx, ch, store, logger, flag)

	return Handle{ch: ch, shutdown: flag}
}

func run(ctx context.Context, ch chan Message, store Store, logger *log.Logger, flag *shutdownFlag) {
	defer close(flag.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := write(writeCtx, store, msg); err != nil {
				logger.Printf("persistence: store error, dropping write: %v", err)
			}
			cancel()
		}
	}
}

func write(ctx context.Context, store Store, msg Message) error {
	switch msg.Kind {
	case KindOrder:
		return store.UpsertOrder(ctx, msg.Order)
	case KindPosition:
		return store.UpsertPosition(ctx, msg.Position)
	case KindPnL:
		return store.UpsertPnL(ctx, msg.PnL)
	default:
		return nil
	}
}

// Enqueue hands a message to the persistence actor. Non-blocking from
// the caller's view.
func (h Handle) Enqueue(msg Message) {
	select {
	case h.ch <- msg:
	default:
		// Queue momentarily full; drop rather than block the caller,
		// matching the actor's "enqueue only" contract.
	}
}

// EnqueueOrder is a convenience wrapper for the Order kind.
func (h Handle) EnqueueOrder(o domainmodel.Order) {
	h.Enqueue(Message{Kind: KindOrder, Order: o})
}

// EnqueuePosition is a convenience wrapper for the Position kind.
func (h Handle) EnqueuePosition(p domainmodel.Position) {
	h.Enqueue(Message{Kind: KindPosition, Position: p})
}

// EnqueuePnL is a convenience wrapper for the RealizedPnL kind.
func (h Handle) EnqueuePnL(r domainmodel.RealizedPnL) {
	h.Enqueue(Message{Kind: KindPnL, PnL: r})
}

// QueueDepth reports the number of messages currently buffered,
// exposed for the status API.
func (h Handle) QueueDepth() int {
	return len(h.ch)
}
