package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/mverbeek/windmask-monitor/internal/models"
)

// Cache defines the interface for observation caching implementations.
// Get returns cached data if present and not expired, Set stores data with TTL.
type Cache interface {
	Get(ctx context.Context, key string) (models.Observation, bool, error)
	Set(ctx context.Context, key string, value models.Observation, ttl time.Duration) error
}

// Key builds the cache key for a station/lookback pair. Both the request
// path and the background poller must agree on this.
func Key(stationID string, lookbackHours int) string {
	return stationID + ":" + strconv.Itoa(lookbackHours) + "h"
}

// InMemoryCache implements Cache using an in-memory map with TTL-based
// expiration. Expired entries are removed on access. Guarded by a mutex:
// the background poller writes while request handlers read.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

// cacheEntry stores a cached observation with expiration timestamp.
type cacheEntry struct {
	value     models.Observation
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves a cached observation for the key if present and not expired.
// Returns (data, true, nil) on cache hit, (zero, false, nil) on miss or
// expiration. Expired entries are removed on access.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.Observation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return models.Observation{}, false, nil
	}

	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return models.Observation{}, false, nil
	}

	return entry.value, true, nil
}

// Set stores an observation in cache with the specified TTL duration.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.Observation, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
