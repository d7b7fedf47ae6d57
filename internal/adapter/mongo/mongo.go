// Package mongo implements the poll and option stores on MongoDB. Transactions need a
// replica set, so a standalone server is not supported.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	pollsCollection   = "polls"
	optionsCollection = "options"
)

// Connect dials the server and verifies it with a ping. m may be nil.
func Connect(ctx context.Context, uri string, m *metrics.StoreMetrics) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(uri)
	if m != nil {
		opts.SetMonitor(newCommandMonitor(m))
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	slog.Info("Mongo connected")
	return client, nil
}

// EnsureIndexes creates the indexes listings and the orphan sweep rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	pollIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "is_open", Value: 1}}},
		{Keys: bson.D{{Key: "option_ids", Value: 1}}},
	}
	if _, err := db.Collection(pollsCollection).Indexes().CreateMany(ctx, pollIndexes); err != nil {
		return fmt.Errorf("failed to create poll indexes: %w", err)
	}

	optionIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}
	if _, err := db.Collection(optionsCollection).Indexes().CreateMany(ctx, optionIndexes); err != nil {
		return fmt.Errorf("failed to create option indexes: %w", err)
	}
	return nil
}

// newCommandMonitor records command latency and failures by command name.
func newCommandMonitor(m *metrics.StoreMetrics) *event.CommandMonitor {
	observe := func(name string, d time.Duration, failed bool) {
		m.QueryDuration.WithLabelValues(name).Observe(d.Seconds())
		if failed {
			m.QueryErrors.WithLabelValues(name).Inc()
		}
	}
	return &event.CommandMonitor{
		Succeeded: func(_ context.Context, e *event.CommandSucceededEvent) {
			observe(e.CommandName, e.Duration, false)
		},
		Failed: func(_ context.Context, e *event.CommandFailedEvent) {
			observe(e.CommandName, e.Duration, true)
		},
	}
}
