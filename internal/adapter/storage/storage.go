// Package storage opens the configured poll store backend.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/memory"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/metrics"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/mongo"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/postgres"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
	"github.com/svssathvik7/catalog-pollings-backend/internal/platform/config"
	"github.com/svssathvik7/catalog-pollings-backend/internal/platform/retry"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

const closeTimeout = 5 * time.Second

// Backend is an open store plus the means to probe and release it.
type Backend struct {
	Name  string
	Store domain.Store
	close func()
}

// Ping checks that the backend is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	return b.Store.Polls().Ping(ctx)
}

func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Options tune Open.
type Options struct {
	// Migrate applies schema migrations (postgres) or index definitions (mongo).
	Migrate bool
	// Metrics defaults to an unregistered set.
	Metrics *metrics.StoreMetrics
	Clock   clockwork.Clock
}

// Open connects to cfg.StoreBackend, retrying with retry.Startup while the service boots.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Backend, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewStoreMetrics(prometheus.NewRegistry())
	}
	policy := retry.Startup
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Store not reachable yet, retrying", "backend", cfg.StoreBackend, "attempt", attempt, "backoff", backoff.String(), "error", err)
	}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		return openPostgres(ctx, cfg, opts, policy)
	case config.BackendMongo:
		return openMongo(ctx, cfg, opts, policy)
	case config.BackendMemory:
		slog.Warn("Using in-memory store, data is lost on restart")
		return &Backend{Name: config.BackendMemory, Store: memory.NewStore()}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, opts Options, policy retry.Policy) (*Backend, error) {
	tracer := postgres.NewMetricsTracer(opts.Metrics, opts.Clock)
	pool, err := retry.Do(ctx, opts.Clock, policy, retry.Transient, func(ctx context.Context) (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL, tracer)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if opts.Migrate {
		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return &Backend{
		Name:  config.BackendPostgres,
		Store: postgres.NewStore(pool, opts.Metrics),
		close: pool.Close,
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config, opts Options, policy retry.Policy) (*Backend, error) {
	client, err := retry.Do(ctx, opts.Clock, policy, retry.Transient, func(ctx context.Context) (*mongodriver.Client, error) {
		return mongo.Connect(ctx, cfg.MongoURL, opts.Metrics)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	disconnect := func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			slog.Error("Failed to disconnect from mongo", "error", err)
		}
	}

	if opts.Migrate {
		if err := mongo.EnsureIndexes(ctx, client.Database(cfg.MongoDatabase)); err != nil {
			disconnect()
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
	}

	return &Backend{
		Name:  config.BackendMongo,
		Store: mongo.NewStore(client, cfg.MongoDatabase, opts.Metrics),
		close: disconnect,
	}, nil
}
