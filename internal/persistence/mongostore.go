package persistence

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
)

// MongoStore is the Store implementation backing the persistence actor:
// connect, ping to confirm, and resolve the database name from the URI.
// The upsert methods are one per domain entity kind.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to MongoDB and pings to confirm. The URI should
// include the database name (e.g. mongodb://localhost:27017/meanrev);
// absent one, "meanrev" is used.
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	clientOpts := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	dbName := "meanrev"
	if u, err := url.Parse(uri); err == nil {
		if name := strings.TrimPrefix(u.Path, "/"); name != "" {
			dbName = name
		}
	}

	log.Printf("persistence: connected to MongoDB (db=%s)", dbName)
	return &MongoStore{client: client, db: client.Database(dbName)}, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) orders() *mongo.Collection    { return s.db.Collection("orders") }
func (s *MongoStore) positions() *mongo.Collection { return s.db.Collection("positions") }
func (s *MongoStore) pnl() *mongo.Collection       { return s.db.Collection("pnl") }

// UpsertOrder upserts keyed on (symbol, trade_date): one order document
// per symbol per trading day.
func (s *MongoStore) UpsertOrder(ctx context.Context, o domainmodel.Order) error {
	filter := bson.M{"symbol": o.Symbol, "trade_date": o.TradeDate.String()}
	update := bson.M{"$set": bson.M{
		"symbol":          o.Symbol,
		"trade_date":      o.TradeDate.String(),
		"side":            string(o.Side),
		"quantity":        o.Quantity,
		"reference_price": o.ReferencePrice,
		"broker_id":       o.BrokerID,
	}}
	_, err := s.orders().UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting order for %s: %w", o.Symbol, err)
	}
	return nil
}

// UpsertPosition upserts keyed on symbol: at most one position document
// per symbol.
func (s *MongoStore) UpsertPosition(ctx context.Context, p domainmodel.Position) error {
	filter := bson.M{"symbol": p.Symbol}
	update := bson.M{"$set": bson.M{
		"symbol":      p.Symbol,
		"quantity":    p.Quantity,
		"cost_basis":  p.CostBasis,
		"acquired_at": p.AcquiredAt,
		"broker_id":   p.BrokerID,
	}}
	_, err := s.positions().UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting position for %s: %w", p.Symbol, err)
	}
	return nil
}

// UpsertPnL upserts keyed on id: one record per realized close.
func (s *MongoStore) UpsertPnL(ctx context.Context, r domainmodel.RealizedPnL) error {
	filter := bson.M{"id": r.ID}
	update := bson.M{"$set": bson.M{
		"id":       r.ID,
		"symbol":   r.Symbol,
		"date":     r.Date.String(),
		"pnl":      r.PnL,
		"strategy": r.Strategy,
	}}
	_, err := s.pnl().UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting realized pnl %s: %w", r.ID, err)
	}
	return nil
}

// DropPositions empties the positions collection. Called once at order
// service construction: the broker's own position snapshot is the
// source of truth at startup, not whatever this store last held.
func (s *MongoStore) DropPositions(ctx context.Context) error {
	_, err := s.positions().DeleteMany(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("dropping positions: %w", err)
	}
	return nil
}
