package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/storage"
	"github.com/svssathvik7/catalog-pollings-backend/internal/app"
	"github.com/svssathvik7/catalog-pollings-backend/internal/platform/config"
	"github.com/svssathvik7/catalog-pollings-backend/internal/platform/logging"
)

const runTimeout = 5 * time.Minute

func main() {
	var (
		backend     = flag.String("backend", envOr("STORE_BACKEND", config.BackendPostgres), "Store backend: postgres or mongo (or set STORE_BACKEND env)")
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL URL (or set DATABASE_URL env)")
		mongoURL    = flag.String("mongo-url", os.Getenv("MONGO_URL"), "MongoDB URL (or set MONGO_URL env)")
		mongoDB     = flag.String("mongo-db", envOr("MONGO_DATABASE", "polling"), "MongoDB database (or set MONGO_DATABASE env)")
		grace       = flag.Duration("grace", app.OrphanGrace, "Only remove options older than this")
		dryRun      = flag.Bool("dry-run", false, "Dry run mode (count, don't delete)")
		verbose     = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	logging.InitLogger(level, "text")

	cfg := &config.Config{
		StoreBackend:  *backend,
		DatabaseURL:   *databaseURL,
		MongoURL:      *mongoURL,
		MongoDatabase: *mongoDB,
	}
	switch {
	case cfg.StoreBackend == config.BackendPostgres && cfg.DatabaseURL == "":
		log.Fatal("Database URL required (--database-url or DATABASE_URL env)")
	case cfg.StoreBackend == config.BackendMongo && cfg.MongoURL == "":
		log.Fatal("Mongo URL required (--mongo-url or MONGO_URL env)")
	case cfg.StoreBackend != config.BackendPostgres && cfg.StoreBackend != config.BackendMongo:
		log.Fatalf("Unsupported backend %q", cfg.StoreBackend)
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	clock := clockwork.NewRealClock()
	store, err := storage.Open(ctx, cfg, storage.Options{Clock: clock})
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()
	slog.Info("Connected to store", "backend", store.Name, "target", sanitizeURL(targetURL(cfg)))

	start := clock.Now()
	cutoff := start.Add(-*grace)
	slog.Debug("Scanning for orphan options", "cutoff", cutoff.Format(time.RFC3339), "dry_run", *dryRun)

	n, err := store.Store.Options().DeleteOrphanOptions(ctx, cutoff, *dryRun)
	if err != nil {
		store.Close()
		log.Fatalf("Cleanup failed: %v", err)
	}

	verb := "removed"
	if *dryRun {
		verb = "would_remove"
	}
	slog.Info("Cleanup summary", verb, n, "duration_ms", clock.Since(start).Milliseconds())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func targetURL(cfg *config.Config) string {
	if cfg.StoreBackend == config.BackendMongo {
		return cfg.MongoURL
	}
	return cfg.DatabaseURL
}

// sanitizeURL hides the password of a connection URL for logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
