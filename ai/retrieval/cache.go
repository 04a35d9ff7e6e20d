// Package retrieval memoizes composed concierge responses and runs the
// analyze, resolve, compose pipeline around them.
package retrieval

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hrygo/concierge/ai/cache"
)

// Cache stores serialized responses under composite keys.
// Get never fails: any backend problem is reported as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Clear(ctx context.Context) error
	// InvalidatePrefix drops every entry whose key starts with prefix and
	// reports how many were removed.
	InvalidatePrefix(ctx context.Context, prefix string) (int, error)
	Stats() Stats
	Name() string
}

// Stats reports cache effectiveness.
type Stats struct {
	Backend  string  `json:"backend"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
}

type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

func (c *counters) snapshot(backend string) Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Stats{Backend: backend, Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

func (c *counters) reset() {
	c.hits.Store(0)
	c.misses.Store(0)
}

// MemoryConfig configures MemoryCache.
type MemoryConfig struct {
	Capacity int           // default 500
	TTL      time.Duration // default 10m, measured from insertion
	Now      func() time.Time
}

// MemoryCache is a process-local LRU cache with a fixed TTL per entry.
type MemoryCache struct {
	lru *cache.ByteLRUCache
	counters
}

// NewMemoryCache creates a MemoryCache.
func NewMemoryCache(cfg MemoryConfig) *MemoryCache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 500
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	var opts []cache.Option[string, []byte]
	if cfg.Now != nil {
		opts = append(opts, cache.WithClock[string, []byte](cfg.Now))
	}
	opts = append(opts, cache.WithEvictCallback[string, []byte](func(key string, reason cache.EvictReason) {
		slog.Debug("retrieval cache eviction", "key", key, "reason", reason)
	}))
	return &MemoryCache{lru: cache.NewByteLRUCache(cfg.Capacity, cfg.TTL, opts...)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := c.lru.Get(key)
	c.record(ok)
	return v, ok
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte) {
	c.lru.SetWithDefaultTTL(key, value)
}

func (c *MemoryCache) Clear(context.Context) error {
	c.lru.Clear()
	c.reset()
	return nil
}

func (c *MemoryCache) InvalidatePrefix(_ context.Context, prefix string) (int, error) {
	return c.lru.Invalidate(prefix + "*"), nil
}

// Stats sweeps expired entries first so Size only counts live ones.
func (c *MemoryCache) Stats() Stats {
	if n := c.lru.CleanupExpired(); n > 0 {
		slog.Debug("retrieval cache swept expired entries", "count", n)
	}
	s := c.snapshot(c.Name())
	s.Size = c.lru.Size()
	s.Capacity = c.lru.Capacity()
	return s
}

func (c *MemoryCache) Name() string { return "memory" }

// NoopCache never stores anything.
type NoopCache struct {
	counters
}

func (c *NoopCache) Get(context.Context, string) ([]byte, bool) {
	c.record(false)
	return nil, false
}

func (*NoopCache) Set(context.Context, string, []byte) {}

func (c *NoopCache) Clear(context.Context) error {
	c.reset()
	return nil
}

func (*NoopCache) InvalidatePrefix(context.Context, string) (int, error) { return 0, nil }

func (c *NoopCache) Stats() Stats { return c.snapshot(c.Name()) }

func (*NoopCache) Name() string { return "noop" }

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*NoopCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
