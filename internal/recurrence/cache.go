package recurrence

import (
	"encoding/hex"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/dukerupert/recurcal/internal/calendar"
)

// Fingerprint returns a stable key for the series e would expand from
// anchor and rule. Identical inputs always yield the identical key.
func Fingerprint(anchor calendar.Date, rule Rule, e Expander) string {
	canonical := fmt.Sprintf("v1|%s|%s|%d|%s|cap=%d|horizon=%s|leap=%s",
		anchor, rule.kind, rule.interval, rule.end,
		e.hardCap(), e.Horizon(anchor), e.LeapDay)
	sum := blake2b.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// CacheConfig holds configuration for the series cache.
type CacheConfig struct {
	TTL        time.Duration // how long entries stay valid
	MaxEntries int           // entries kept before the least recently used is evicted
}

var DefaultCacheConfig = CacheConfig{
	TTL:        15 * time.Minute,
	MaxEntries: 1000,
}

type cacheEntry struct {
	series     Series
	expiresAt  time.Time
	accessedAt time.Time
}

// Cache holds expanded series keyed by Fingerprint. It is safe for
// concurrent use. Series are copied in and out so callers never share a
// backing array.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewCache(cfg CacheConfig) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig.TTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	return &Cache{
		entries:    make(map[string]*cacheEntry),
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		now:        time.Now,
	}
}

// Get returns a copy of the cached series for key.
func (c *Cache) Get(key string) (Series, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Series{}, false
	}
	if now.After(entry.expiresAt) {
		delete(c.entries, key)
		return Series{}, false
	}
	entry.accessedAt = now
	return cloneSeries(entry.series), true
}

func (c *Cache) Set(key string, s Series) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = &cacheEntry{
		series:     cloneSeries(s),
		expiresAt:  now.Add(c.ttl),
		accessedAt: now,
	}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictLocked drops expired entries, then the least recently accessed one
// if the cache is still full. Callers hold c.mu.
func (c *Cache) evictLocked(now time.Time) {
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}

	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.accessedAt.Before(oldest) {
			oldestKey = key
			oldest = entry.accessedAt
		}
	}
	delete(c.entries, oldestKey)
}

func cloneSeries(s Series) Series {
	s.Dates = slices.Clone(s.Dates)
	return s
}

// CachedExpander memoizes Expander results in a Cache. It pays off in
// long-lived callers that expand the same series repeatedly; a one-shot
// process sees only misses.
type CachedExpander struct {
	Expander Expander
	Cache    *Cache
}

func (ce CachedExpander) Expand(anchor calendar.Date, rule Rule) (Series, error) {
	key := Fingerprint(anchor, rule, ce.Expander)
	if s, ok := ce.Cache.Get(key); ok {
		return s, nil
	}
	s, err := ce.Expander.Expand(anchor, rule)
	if err != nil {
		return Series{}, err
	}
	ce.Cache.Set(key, s)
	return s, nil
}
