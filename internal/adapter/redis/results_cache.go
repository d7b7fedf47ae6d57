package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/metrics"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
)

const (
	layerMemory = "memory"
	layerRedis  = "redis"
)

// ResultsCache keeps results views in process memory (L1) in front of Redis (L2).
// Redis failures are logged and read as misses.
type ResultsCache struct {
	rdb     goredis.Cmdable
	ttl     time.Duration
	mem     *memoryCache
	metrics *metrics.CacheMetrics
}

var _ domain.ResultsCache = (*ResultsCache)(nil)

// NewResultsCache stores entries in Redis for ttl and in memory for memTTL.
// rdb may be nil to run with the memory layer only.
func NewResultsCache(rdb goredis.Cmdable, ttl, memTTL time.Duration, clock clockwork.Clock, m *metrics.CacheMetrics) *ResultsCache {
	return &ResultsCache{
		rdb:     rdb,
		ttl:     ttl,
		mem:     newMemoryCache(memTTL, clock),
		metrics: m,
	}
}

func (c *ResultsCache) Get(ctx context.Context, pollID string) (domain.ResultsView, bool) {
	if view, ok := c.mem.get(pollID); ok {
		c.metrics.Hits.WithLabelValues(layerMemory).Inc()
		return view, true
	}
	c.metrics.Misses.WithLabelValues(layerMemory).Inc()

	if c.rdb == nil {
		return domain.ResultsView{}, false
	}

	data, err := c.rdb.Get(ctx, resultsKey(pollID)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.WarnContext(ctx, "Redis results cache GET failed", "poll_id", pollID, "error", err)
		}
		c.metrics.Misses.WithLabelValues(layerRedis).Inc()
		return domain.ResultsView{}, false
	}

	var view domain.ResultsView
	if err := json.Unmarshal(data, &view); err != nil {
		slog.WarnContext(ctx, "Failed to unmarshal cached results", "poll_id", pollID, "error", err)
		c.metrics.Misses.WithLabelValues(layerRedis).Inc()
		return domain.ResultsView{}, false
	}

	c.metrics.Hits.WithLabelValues(layerRedis).Inc()
	c.mem.fill(view)
	return view, true
}

func (c *ResultsCache) Set(ctx context.Context, view domain.ResultsView) {
	c.mem.set(view)
	c.write(ctx, view, false)
}

func (c *ResultsCache) Fill(ctx context.Context, view domain.ResultsView) {
	c.mem.fill(view)
	c.write(ctx, view, true)
}

func (c *ResultsCache) Invalidate(ctx context.Context, pollID string) {
	c.mem.invalidate(pollID)
	c.metrics.Invalidations.Inc()
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, resultsKey(pollID)).Err(); err != nil {
		slog.WarnContext(ctx, "Failed to invalidate results cache", "poll_id", pollID, "error", err)
	}
}

func (c *ResultsCache) write(ctx context.Context, view domain.ResultsView, onlyIfAbsent bool) {
	if c.rdb == nil {
		return
	}

	encoded, err := json.Marshal(view)
	if err != nil {
		slog.WarnContext(ctx, "Failed to marshal results for cache", "poll_id", view.PollID, "error", err)
		return
	}

	key := resultsKey(view.PollID)
	if onlyIfAbsent {
		err = c.rdb.SetNX(ctx, key, encoded, c.ttl).Err()
	} else {
		err = c.rdb.Set(ctx, key, encoded, c.ttl).Err()
	}
	if err != nil {
		slog.WarnContext(ctx, "Failed to populate results cache", "poll_id", view.PollID, "error", err)
	}
}

func resultsKey(pollID string) string {
	return "poll:results:" + pollID
}

// memoryCache is the L1 layer with TTL-based expiry.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

type memoryCacheEntry struct {
	view      domain.ResultsView
	expiresAt time.Time
}

func newMemoryCache(ttl time.Duration, clock clockwork.Clock) *memoryCache {
	return &memoryCache{
		entries: make(map[string]memoryCacheEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

func (c *memoryCache) get(pollID string) (domain.ResultsView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[pollID]
	if !ok || c.clock.Now().After(entry.expiresAt) {
		return domain.ResultsView{}, false
	}
	return entry.view, true
}

func (c *memoryCache) set(view domain.ResultsView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[view.PollID] = memoryCacheEntry{view: view, expiresAt: c.clock.Now().Add(c.ttl)}
}

func (c *memoryCache) fill(view domain.ResultsView) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if entry, ok := c.entries[view.PollID]; ok && !now.After(entry.expiresAt) {
		return
	}
	c.entries[view.PollID] = memoryCacheEntry{view: view, expiresAt: now.Add(c.ttl)}
}

func (c *memoryCache) invalidate(pollID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, pollID)
}

// evictExpired drops expired entries and returns how many were removed.
func (c *memoryCache) evictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0
	for id, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, id)
			evicted++
		}
	}
	return evicted
}

func (c *memoryCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartEvictionTimer periodically evicts expired memory entries. The returned function stops it.
func (c *ResultsCache) StartEvictionTimer(interval time.Duration) func() {
	ticker := c.mem.clock.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if evicted := c.mem.evictExpired(); evicted > 0 {
					slog.Debug("Evicted expired results cache entries", "count", evicted, "remaining", c.mem.size())
				}
			case <-done:
				return
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}
