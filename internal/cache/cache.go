// Package cache is the two-tier semantic cache: an LRU memory tier backed by a
// persisted Tier (SQLite or Badger). Expiry is lazy: an entry past its TTL is
// treated as absent and deleted when read.
package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
)

// #region config
// Config controls capacity and lifetime.
type Config struct {
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

// DefaultConfig returns a week-long TTL and a 1024-entry memory tier.
func DefaultConfig() Config {
	return Config{Capacity: 1024, TTL: 7 * 24 * time.Hour}
}

// Stats counts cache outcomes since construction.
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	Promotions int64 `json:"promotions"`
	Expired    int64 `json:"expired"`
	Corrupt    int64 `json:"corrupt"`
	Entries    int   `json:"entries"`
}

// #endregion config

// #region cache
// Cache is safe for concurrent use.
type Cache struct {
	config Config
	tier   Tier // nil means memory only
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	mem   *lru
	stats Stats

	lookups *prometheus.CounterVec
	evicted prometheus.Counter
}

// Option customizes a Cache.
type Option func(*Cache)

// WithTier sets the persisted tier.
func WithTier(t Tier) Option { return func(c *Cache) { c.tier = t } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l.Named("cache")
		}
	}
}

// WithRegisterer registers cache metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Cache) { c.registerMetrics(reg) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// New creates a cache.
func New(config Config, opts ...Option) *Cache {
	c := &Cache{
		config: config,
		logger: zap.NewNop(),
		now:    time.Now,
		mem:    newLRU(config.Capacity),
	}
	for _, o := range opts {
		o(c)
	}
	if c.lookups == nil {
		c.registerMetrics(nil)
	}
	return c
}

func (c *Cache) registerMetrics(reg prometheus.Registerer) {
	f := promauto.With(reg)
	c.lookups = f.NewCounterVec(prometheus.CounterOpts{
		Name: "oracle_cache_lookups_total",
		Help: "Cache lookups by outcome.",
	}, []string{"outcome"})
	c.evicted = f.NewCounter(prometheus.CounterOpts{
		Name: "oracle_cache_evictions_total",
		Help: "Memory-tier LRU evictions.",
	})
}

// #endregion cache

// #region get
// Get returns the live entry for key. A memory miss falls through to the
// persisted tier; a persisted hit is promoted into memory.
func (c *Cache) Get(key string) (Entry, bool) {
	now := c.now()

	c.mu.Lock()
	if me, ok := c.mem.get(key); ok {
		if now.Before(me.expires) {
			me.entry.Hits++
			me.entry.LastAccess = now
			e := me.entry
			e.Payload = e.Payload.Clone()
			c.stats.Hits++
			c.mu.Unlock()
			c.lookups.WithLabelValues("memory_hit").Inc()
			return e, true
		}
		c.mem.delete(key)
		c.stats.Expired++
	}
	c.mu.Unlock()

	if c.tier == nil {
		c.miss()
		return Entry{}, false
	}

	e, err := c.tier.Load(key)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		c.miss()
		return Entry{}, false
	case errors.Is(err, ErrCorrupt):
		c.logger.Warn("dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		c.deletePersisted(key)
		c.mu.Lock()
		c.stats.Corrupt++
		c.mu.Unlock()
		c.miss()
		return Entry{}, false
	default:
		c.logger.Warn("cache tier load failed", zap.String("key", key), zap.Error(err))
		c.miss()
		return Entry{}, false
	}

	if c.expired(e, now) {
		c.deletePersisted(key)
		c.mu.Lock()
		c.stats.Expired++
		c.mu.Unlock()
		c.miss()
		return Entry{}, false
	}

	e.Hits++
	e.LastAccess = now
	if err := c.tier.Save(e); err != nil {
		c.logger.Warn("cache tier touch failed", zap.String("key", key), zap.Error(err))
	}
	c.mu.Lock()
	c.storeMemory(e, c.deadline(e.CreatedAt, c.config.TTL))
	c.stats.Hits++
	c.stats.Promotions++
	c.mu.Unlock()
	c.lookups.WithLabelValues("persisted_hit").Inc()

	e.Payload = e.Payload.Clone()
	return e, true
}

func (c *Cache) miss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
	c.lookups.WithLabelValues("miss").Inc()
}

func (c *Cache) expired(e Entry, now time.Time) bool {
	return c.config.TTL > 0 && !now.Before(e.CreatedAt.Add(c.config.TTL))
}

func (c *Cache) deletePersisted(key string) {
	if err := c.tier.Delete(key); err != nil {
		c.logger.Warn("cache tier delete failed", zap.String("key", key), zap.Error(err))
	}
}

// #endregion get

// #region put
// Put writes payload to both tiers. A persisted-tier failure is logged and the
// memory entry is kept.
func (c *Cache) Put(key string, payload preset.Candidate) {
	now := c.now()
	e := Entry{Key: key, Payload: payload.Clone(), CreatedAt: now, LastAccess: now}

	c.mu.Lock()
	c.storeMemory(e, c.deadline(now, c.config.TTL))
	c.mu.Unlock()

	if c.tier != nil {
		if err := c.tier.Save(e); err != nil {
			c.logger.Warn("cache tier save failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// PutMemory writes payload to the memory tier only, expiring after ttl.
func (c *Cache) PutMemory(key string, payload preset.Candidate, ttl time.Duration) {
	now := c.now()
	e := Entry{Key: key, Payload: payload.Clone(), CreatedAt: now, LastAccess: now}

	c.mu.Lock()
	c.storeMemory(e, c.deadline(now, ttl))
	c.mu.Unlock()
}

func (c *Cache) deadline(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		// Far enough out to never matter.
		return now.Add(100 * 365 * 24 * time.Hour)
	}
	return now.Add(ttl)
}

// storeMemory must be called with c.mu held.
func (c *Cache) storeMemory(e Entry, expires time.Time) {
	if c.mem.set(e.Key, &memEntry{entry: e, expires: expires}) {
		c.stats.Evictions++
		c.evicted.Inc()
	}
}

// Delete removes key from both tiers.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	c.mem.delete(key)
	c.mu.Unlock()
	if c.tier != nil {
		c.deletePersisted(key)
	}
}

// #endregion put

// #region stats
// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.mem.len()
	return s
}

// Len returns the number of memory-tier entries, including expired ones not
// yet read.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mem.len()
}

// #endregion stats
