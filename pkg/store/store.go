// Package store defines the shared counter/key-value store used by the cache
// and the rate limiter, and provides its Redis implementation.
//
// All cross-request (and cross-instance) coordination in quotegate goes through
// the atomic single-key operations of this store. Nothing in the core takes an
// in-process lock.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// NoExpiry is returned by TTL when the key has no expiry or does not exist.
const NoExpiry int64 = -1

// Store is the counter store contract consumed by the cache and the rate limiter.
//
// Incr and SetNX must be atomic. The store owns no lifecycle on behalf of its
// callers; whoever constructs it closes it.
type Store interface {
	// Incr atomically increments key and returns the new value.
	// A missing key is treated as 0.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets a TTL on key. Returns false if the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// TTL returns the remaining time to live in whole seconds, or NoExpiry.
	TTL(ctx context.Context, key string) (int64, error)

	// Get returns the raw value, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetEX stores value with an expiry.
	SetEX(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value with an expiry only if key is absent.
	// Returns true if the value was set.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Del removes key.
	Del(ctx context.Context, key string) error

	// FlushAll removes every key of the selected database.
	FlushAll(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}
