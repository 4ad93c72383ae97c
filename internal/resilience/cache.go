package resilience

import (
	"sync"
	"time"

	"github.com/llmjudge/evalengine/internal/domain"
	"github.com/llmjudge/evalengine/internal/observability"
)

// cacheEntry mirrors spec.md section 3's CacheEntry.
type cacheEntry struct {
	value        any
	createdAt    time.Time
	expiresAt    time.Time
	accessCount  int64
	lastAccessed time.Time
}

// ResponseCache is a bounded, TTL-expiring, LRU-evicting in-memory map keyed
// by domain.CacheKey, used by the Fallback Orchestrator only as a
// last-resort when every backend has failed (spec.md section 4.F). Grounded
// on teacher internal/adapter/ai/cache.go's capacity-bounded-map idiom,
// generalized from FIFO to LRU-by-lastAccessed, and on
// original_source/.../fallback_manager.py::ResponseCache's timestamp-based
// eviction target.
type ResponseCache struct {
	metrics *observability.Metrics

	ttl     time.Duration
	maxSize int

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewResponseCache constructs a cache with the given TTL and max entry
// count.
func NewResponseCache(ttl time.Duration, maxSize int, metrics *observability.Metrics) *ResponseCache {
	return &ResponseCache{
		ttl:     ttl,
		maxSize: maxSize,
		metrics: metrics,
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns the cached value for key, or (nil, false) if absent or
// expired. Expired entries are deleted on access.
func (c *ResponseCache) Get(key domain.CacheKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.Fingerprint]
	if !ok {
		if c.metrics != nil {
			c.metrics.CacheMisses.Inc()
		}
		return nil, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(c.entries, key.Fingerprint)
		if c.metrics != nil {
			c.metrics.CacheMisses.Inc()
		}
		return nil, false
	}

	e.accessCount++
	e.lastAccessed = time.Now()
	if c.metrics != nil {
		c.metrics.CacheHits.Inc()
	}
	return e.value, true
}

// Put stores value under key, evicting the least-recently-accessed entry if
// the cache is already at maxSize.
func (c *ResponseCache) Put(key domain.CacheKey, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = now.Add(c.ttl)
	}

	if _, exists := c.entries[key.Fingerprint]; !exists && len(c.entries) >= c.maxSize && c.maxSize > 0 {
		c.evictLRULocked()
	}

	c.entries[key.Fingerprint] = &cacheEntry{
		value:        value,
		createdAt:    now,
		expiresAt:    expiresAt,
		lastAccessed: now,
	}
}

// evictLRULocked removes the entry with the smallest lastAccessed timestamp
// via a single-pass scan, per spec.md section 4.F. Must be called with c.mu
// held.
func (c *ResponseCache) evictLRULocked() {
	var lruKey string
	var lruTime time.Time
	first := true
	for k, e := range c.entries {
		if first || e.lastAccessed.Before(lruTime) {
			lruKey, lruTime, first = k, e.lastAccessed, false
		}
	}
	if lruKey != "" {
		delete(c.entries, lruKey)
		if c.metrics != nil {
			c.metrics.CacheEvictions.Inc()
		}
	}
}

// Clear empties the store.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Stats summarizes cache state for GetSystemStatus.
type CacheStats struct {
	Size    int
	MaxSize int
	TTL     time.Duration
	Expired int
}

// Stats returns current cache statistics, counting (without evicting)
// currently-expired entries.
func (c *ResponseCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	expired := 0
	for _, e := range c.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			expired++
		}
	}
	return CacheStats{Size: len(c.entries), MaxSize: c.maxSize, TTL: c.ttl, Expired: expired}
}
