package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tmarchal/climatekit/internal/models"
)

// Cache defines the interface for GDD result caching implementations.
// Get returns cached data if present and not expired, Set stores data with TTL.
type Cache interface {
	Get(ctx context.Context, key string) (models.GDDResult, bool, error)
	Set(ctx context.Context, key string, value models.GDDResult, ttl time.Duration) error
}

// InMemoryCache implements Cache using an in-memory map with TTL-based
// expiration. Expired entries are removed on access. Safe for concurrent use.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

// cacheEntry stores a cached GDD result with expiration timestamp.
type cacheEntry struct {
	value     models.GDDResult
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves a cached GDD result for the key if present and not expired.
// Returns (data, true, nil) on cache hit, (zero, false, nil) on miss or expiration.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.GDDResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return models.GDDResult{}, false, nil
	}

	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return models.GDDResult{}, false, nil
	}

	return entry.value, true, nil
}

// Set stores a GDD result in cache with the specified TTL duration.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.GDDResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
