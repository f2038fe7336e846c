package cacher

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryCacher is an in-process Registry backed by go-cache.
type MemoryCacher[T any] struct {
	cache *cache.Cache
}

// NewMemoryCacher creates an in-memory registry.
//
// Parameters:
//   - defaultTTL: TTL used when Remember is called with ttl <= 0
//   - cleanupInterval: Interval at which expired entries are purged
//
// Returns:
//   - A new MemoryCacher as a Registry
func NewMemoryCacher[T any](defaultTTL, cleanupInterval time.Duration) Registry[T] {
	return &MemoryCacher[T]{
		cache: cache.New(defaultTTL, cleanupInterval),
	}
}

// Remember stores value under key. go-cache's Add is atomic, so exactly one
// of several concurrent first sightings reports the key as new.
func (c *MemoryCacher[T]) Remember(ctx context.Context, key string, value T, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}

	if err := c.cache.Add(key, value, ttl); err == nil {
		return true, nil
	}

	c.cache.Set(key, value, ttl)
	return false, nil
}

// Lookup returns the value stored under key.
func (c *MemoryCacher[T]) Lookup(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	val, found := c.cache.Get(key)
	if !found {
		return zero, false, nil
	}

	typed, ok := val.(T)
	if !ok {
		return zero, false, fmt.Errorf("unexpected type in cache for key %s", key)
	}

	return typed, true, nil
}

// Forget removes key.
func (c *MemoryCacher[T]) Forget(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.cache.Delete(key)
	return nil
}

// Len returns the number of entries, which may include expired entries not
// yet purged.
func (c *MemoryCacher[T]) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return c.cache.ItemCount(), nil
}

// Clear removes every entry.
func (c *MemoryCacher[T]) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.cache.Flush()
	return nil
}
