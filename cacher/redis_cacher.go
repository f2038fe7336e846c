package cacher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCacher is a Registry stored in Redis under a key prefix, so several
// processes sharing one Redis see the same entries. Values are stored as
// JSON.
type redisCacher[T any] struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewRedisCacher creates a Redis-backed registry.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	peers := NewRedisCacher[Peer](client, "netlab:peers:", time.Minute)
//
// Parameters:
//   - client: Connected Redis client
//   - prefix: Namespace prepended to every key; Len and Clear only touch it
//   - defaultTTL: TTL used when Remember is called with ttl <= 0
func NewRedisCacher[T any](client *redis.Client, prefix string, defaultTTL time.Duration) Registry[T] {
	return &redisCacher[T]{
		client:     client,
		prefix:     prefix,
		defaultTTL: defaultTTL,
	}
}

// Remember stores value under key. SETNX decides whether the key is new;
// if it already exists the value and TTL are refreshed with SET.
func (c *redisCacher[T]) Remember(ctx context.Context, key string, value T, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal value: %w", err)
	}

	added, err := c.client.SetNX(ctx, c.prefix+key, data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx error: %w", err)
	}

	if added {
		return true, nil
	}

	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return false, fmt.Errorf("redis set error: %w", err)
	}

	return false, nil
}

// Lookup returns the value stored under key.
func (c *redisCacher[T]) Lookup(ctx context.Context, key string) (T, bool, error) {
	var zero T

	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}

	if err != nil {
		return zero, false, fmt.Errorf("redis get error: %w", err)
	}

	var result T
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return zero, false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return result, true, nil
}

// Forget removes key.
func (c *redisCacher[T]) Forget(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	return nil
}

// Len counts the keys under the registry prefix.
func (c *redisCacher[T]) Len(ctx context.Context) (int, error) {
	keys, err := c.scan(ctx)
	if err != nil {
		return 0, err
	}

	return len(keys), nil
}

// Clear deletes the keys under the registry prefix. Other keys in the same
// database are left alone.
func (c *redisCacher[T]) Clear(ctx context.Context) error {
	keys, err := c.scan(ctx)
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}

	return nil
}

// scan collects the keys under the prefix with SCAN rather than KEYS.
func (c *redisCacher[T]) scan(ctx context.Context) ([]string, error) {
	var keys []string

	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}

	return keys, nil
}
