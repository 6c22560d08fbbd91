// Package cache provides small TTL key/value caches backed by process
// memory or Redis.
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache defines a TTL key/value cache.
type Cache interface {
	// Get retrieves a value, or ErrCacheMiss when absent or expired
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value
	Delete(ctx context.Context, key string) error

	// Exists checks if a live key exists
	Exists(ctx context.Context, key string) (bool, error)

	Close() error
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
