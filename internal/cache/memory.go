package cache

import (
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCache is the process-local L1. Values are held as JSON so callers
// never share mutable state with the cache.
type MemoryCache struct {
	mu       sync.RWMutex
	items    map[string]memoryEntry
	maxItems int
	metrics  *CacheMetrics
	now      func() time.Time
}

const defaultMemoryCacheItems = 10000

func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithLimit(defaultMemoryCacheItems)
}

func NewMemoryCacheWithLimit(maxItems int) *MemoryCache {
	if maxItems <= 0 {
		maxItems = defaultMemoryCacheItems
	}
	return &MemoryCache{
		items:    make(map[string]memoryEntry),
		maxItems: maxItems,
		metrics:  NewCacheMetrics(),
		now:      time.Now,
	}
}

func (c *MemoryCache) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	c.SetRaw(key, data, ttl)
	return nil
}

// SetRaw stores already-encoded JSON.
func (c *MemoryCache) SetRaw(key string, data []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if len(c.items) >= c.maxItems {
		c.evictLocked(now)
	}

	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	c.items[key] = entry
	c.metrics.RecordSet()
}

// Get returns the raw JSON stored under key.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || entry.expired(c.now()) {
		c.metrics.RecordMiss()
		return nil, false
	}

	c.metrics.RecordHit()
	return entry.data, true
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	c.metrics.RecordDelete()
}

// DeletePattern removes keys matching a glob pattern (path.Match syntax).
func (c *MemoryCache) DeletePattern(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.items, key)
		}
	}
	c.metrics.RecordDelete()
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *MemoryCache) Stats() map[string]interface{} {
	metrics := c.metrics.GetStats()
	return map[string]interface{}{
		"items":          c.Len(),
		"hits":           metrics.Hits,
		"misses":         metrics.Misses,
		"hit_rate":       c.metrics.HitRate(),
		"uptime_seconds": c.metrics.Uptime().Seconds(),
	}
}

// evictLocked drops expired entries, then an arbitrary tenth of the cache if
// it is still full.
func (c *MemoryCache) evictLocked(now time.Time) {
	for key, entry := range c.items {
		if entry.expired(now) {
			delete(c.items, key)
		}
	}
	if len(c.items) < c.maxItems {
		return
	}

	toDrop := c.maxItems / 10
	if toDrop == 0 {
		toDrop = 1
	}
	for key := range c.items {
		if toDrop == 0 {
			break
		}
		delete(c.items, key)
		toDrop--
	}
}
