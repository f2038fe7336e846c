// Package cacher provides expiring key registries. The UDP chat server uses
// one to remember which peers it has heard from recently; the memory backend
// serves a single process and the Redis backend lets several servers share
// the same view.
package cacher

import (
	"context"
	"time"
)

// Registry remembers values under string keys for a limited time.
// Implementations must be safe for concurrent use.
type Registry[T any] interface {
	// Remember stores value under key for ttl. An existing entry is
	// overwritten and its expiry pushed back.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The registry key
	//   - value: The value to store
	//   - ttl: Time-to-live of the entry
	//
	// Returns:
	//   - true if the key was not present (or had expired) before the call
	//   - An error if the backend fails
	Remember(ctx context.Context, key string, value T, ttl time.Duration) (bool, error)

	// Lookup returns the live value stored under key.
	//
	// Returns:
	//   - The value and true if found, or the zero value and false
	//   - An error if the backend fails
	Lookup(ctx context.Context, key string) (T, bool, error)

	// Forget removes key.
	Forget(ctx context.Context, key string) error

	// Len returns the number of live entries.
	Len(ctx context.Context) (int, error)

	// Clear removes every entry.
	Clear(ctx context.Context) error
}
