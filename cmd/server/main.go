package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/auth"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/httpserver"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/metrics"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/redis"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/storage"
	"github.com/svssathvik7/catalog-pollings-backend/internal/app"
	"github.com/svssathvik7/catalog-pollings-backend/internal/broadcast"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
	"github.com/svssathvik7/catalog-pollings-backend/internal/platform/config"
	"github.com/svssathvik7/catalog-pollings-backend/internal/platform/logging"
	"github.com/svssathvik7/catalog-pollings-backend/internal/platform/version"
)

const (
	startupTimeout      = 60 * time.Second
	shutdownTimeout     = 10 * time.Second
	memoryCacheTTL      = 5 * time.Second
	cacheEvictionPeriod = time.Minute
)

type stopper interface {
	Stop()
}

type drainer interface {
	Wait()
}

// runGracefulShutdown stops workers, shuts the server down, then waits for events that
// requests committed before shutdown to be published.
func runGracefulShutdown(srv *httpserver.Server, events drainer, workers ...stopper) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		// Streams end once the hub stops; Shutdown waits for them.
		for _, w := range workers {
			w.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		events.Wait()

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStore(ctx context.Context, cfg *config.Config, m *metrics.StoreMetrics, clock clockwork.Clock) *storage.Backend {
	backend, err := storage.Open(ctx, cfg, storage.Options{Migrate: true, Metrics: m, Clock: clock})
	if err != nil {
		slog.Error("Failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	slog.Info("Store ready", "backend", backend.Name)
	return backend
}

// setupRedis returns nil when no REDIS_URL is configured; results are then cached in memory only.
func setupRedis(ctx context.Context, cfg *config.Config, m *metrics.CacheMetrics, clock clockwork.Clock) *goredis.Client {
	if cfg.RedisURL == "" {
		slog.Info("REDIS_URL not set, results cache is process-local")
		return nil
	}
	client, err := redis.NewClient(ctx, cfg.RedisURL, m, clock)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func healthChecks(backend *storage.Backend, redisClient *goredis.Client) []httpserver.HealthCheck {
	checks := []httpserver.HealthCheck{{Name: backend.Name, Check: backend.Ping}}
	if redisClient != nil {
		checks = append(checks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	return checks
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	registry := metrics.NewRegistry()
	m := metrics.NewSet(registry)

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	backend := setupStore(startupCtx, cfg, m.Store, clock)
	defer backend.Close()

	redisClient := setupRedis(startupCtx, cfg, m.Cache, clock)
	cancel()
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// pass nil explicitly to avoid a typed-nil Cmdable
	var rdb goredis.Cmdable
	if redisClient != nil {
		rdb = redisClient
	}
	cache := redis.NewResultsCache(rdb, cfg.ResultsCacheTTL, memoryCacheTTL, clock, m.Cache)
	stopEviction := cache.StartEvictionTimer(cacheEvictionPeriod)
	defer stopEviction()

	hub := broadcast.NewHub(broadcast.Options{
		BufferSize:        cfg.SubscriberBuffer,
		KeepAliveInterval: cfg.KeepAliveInterval,
		MaxSubscribers:    cfg.MaxSubscribers,
		Clock:             clock,
		Metrics:           m.Hub,
	})

	projector := app.NewProjector(backend.Store)
	publisher := app.NewResultsPublisher(projector, cache, hub, m.Polls)
	engine := app.NewEngine(backend.Store, publisher, clock, app.NanoID, m.Polls)
	results := app.NewResultsService(projector, cache)

	janitor := app.NewOptionJanitor(backend.Store.Options(), clock, cfg.OrphanSweepInterval, m.Polls)
	janitor.Start()

	var identities domain.IdentityVerifier
	if cfg.DevLoginEnabled {
		slog.Warn("Development login is enabled; any well-formed username is accepted")
		identities = auth.DevVerifier{}
	}

	srv := httpserver.NewServer(cfg, httpserver.Deps{
		Polls:        engine,
		Results:      results,
		Hub:          hub,
		Sessions:     auth.NewJWTSigner(cfg.SessionSecret, cfg.SessionMaxAge, clock),
		Identities:   identities,
		Metrics:      m.HTTP,
		MetricsPage:  metrics.Handler(registry),
		HealthChecks: healthChecks(backend, redisClient),
		Clock:        clock,
	})

	done := runGracefulShutdown(srv, publisher, hub, janitor)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
