package cache

import (
	"context"
	"sync"
	"time"
)

// entry represents a cached value with expiration.
type entry struct {
	value      []byte
	expiration time.Time
}

// MemoryCache is a simple in-memory cache implementation.
type MemoryCache struct {
	entries map[string]*entry
	mu      sync.RWMutex
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates a new in-memory cache that sweeps expired entries
// every interval until Close is called.
func NewMemoryCache(interval time.Duration) *MemoryCache {
	cache := &MemoryCache{
		entries: make(map[string]*entry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if interval > 0 {
		go cache.cleanup(interval)
	}

	return cache
}

// Get retrieves a value from the cache.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[key]
	if !exists || c.now().After(e.expiration) {
		return nil, ErrCacheMiss
	}

	return e.value, nil
}

// Set stores a value in the cache with a TTL.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		value:      value,
		expiration: c.now().Add(ttl),
	}

	return nil
}

// Delete removes a value from the cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Exists checks if a live key exists in the cache.
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[key]
	if !exists {
		return false, nil
	}

	return !c.now().After(e.expiration), nil
}

// Close stops the cleanup goroutine.
func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

// cleanup periodically removes expired entries.
func (c *MemoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for key, e := range c.entries {
				if now.After(e.expiration) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
