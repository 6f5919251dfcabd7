// Package cache provides a key-scoped, TTL-bounded value cache that is
// advisory by design: backend errors are logged and counted but never
// raised to callers, so cache unavailability only ever degrades
// performance, never functional outcomes.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Cache is the interface the rest of the core depends on. Implementations
// must never return an error for Get/Set; they return ok=false / success=
// false instead, recording the failure in Stats().
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
	Delete(ctx context.Context, key string)
	DeletePattern(ctx context.Context, prefix string)
	Stats() Stats
}

// Stats tracks hit/miss/error counters for observability.
type Stats struct {
	Hits   int64
	Misses int64
	Errors int64
}

// Default TTLs from spec.md §4.1.
const (
	TTLPersona      = 300 * time.Second
	TTLActivePrompt = 300 * time.Second
	TTLSiteMap      = 600 * time.Second
	TTLEvidence     = 60 * time.Second
)

// Key builds a scoped cache key: prefix:tenant:site:resource_type:resource_id.
// Scoped deletion (DeleteSite) relies on this exact ordering.
func Key(prefix, tenant, site, resourceType, resourceID string) string {
	return strings.Join([]string{prefix, tenant, site, resourceType, resourceID}, ":")
}

// SitePrefix returns the prefix that scopes every key under one site, for
// use with DeletePattern when invalidating an entire site.
func SitePrefix(prefix, tenant, site string) string {
	return strings.Join([]string{prefix, tenant, site}, ":") + ":"
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-memory, process-local Cache implementation. It is
// the default backend for local/single-node deployments and for tests;
// grounded on internal/cache's teacher dedupe map+mutex+TTL idiom, extended
// from a boolean presence check to a full value store.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	stats   Stats
	maxSize int
}

// NewMemoryCache creates an in-memory cache. maxSize<=0 means unbounded.
func NewMemoryCache(maxSize int) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		maxSize: maxSize,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	c.entries[key] = entry{value: stored, expiresAt: expiresAt}
	c.evictIfNeeded()
	return true
}

func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *MemoryCache) DeletePattern(_ context.Context, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// evictIfNeeded removes the oldest-inserted entries once over capacity.
// Caller holds c.mu.
func (c *MemoryCache) evictIfNeeded() {
	if c.maxSize <= 0 || len(c.entries) <= c.maxSize {
		return
	}
	for len(c.entries) > c.maxSize {
		var oldestKey string
		var oldestExp time.Time
		first := true
		for k, e := range c.entries {
			if first || (e.expiresAt.Before(oldestExp) && !e.expiresAt.IsZero()) {
				oldestKey, oldestExp = k, e.expiresAt
				first = false
			}
		}
		if oldestKey == "" {
			break
		}
		delete(c.entries, oldestKey)
	}
}

// JSONCache wraps a Cache with JSON marshal/unmarshal convenience, matching
// spec.md §4.1 ("Values are JSON-serialized").
type JSONCache struct {
	Backend Cache
}

// GetJSON decodes the cached value into dst. Any failure (miss, backend
// error, decode error) returns ok=false and never an error.
func (j JSONCache) GetJSON(ctx context.Context, key string, dst any) bool {
	raw, ok := j.Backend.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false
	}
	return true
}

// SetJSON encodes and stores value. Returns false on any encode/backend
// failure, matching the cache's never-raise contract.
func (j JSONCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		return false
	}
	return j.Backend.Set(ctx, key, raw, ttl)
}

// GetOrSetJSON returns the cached value if present, otherwise computes it
// via factory, stores it, and returns it. Factory errors propagate (they
// are not cache errors); a factory failure is never cached.
func (j JSONCache) GetOrSetJSON(ctx context.Context, key string, ttl time.Duration, dst any, factory func() (any, error)) error {
	if j.GetJSON(ctx, key, dst) {
		return nil
	}
	value, err := factory()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value for %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode freshly-computed value for %s: %w", key, err)
	}
	j.Backend.Set(ctx, key, raw, ttl)
	return nil
}

// InvalidateSite wipes every key scoped to one site, per spec.md §4.1's
// invalidate_site contract.
func InvalidateSite(ctx context.Context, c Cache, prefix, tenant, site string) {
	c.DeletePattern(ctx, SitePrefix(prefix, tenant, site))
}
