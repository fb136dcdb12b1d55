package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("store: key not found")

// Store is the shared atomic key-value surface the realtime components
// depend on. All mutation is single-key; concurrent access across
// different keys needs no application-level locking.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	// Incr atomically increments the integer at key, creating it at 1.
	// A return value of 1 means this caller created (or reset) the key.
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL returns the remaining lifetime of key, or zero when the key
	// is missing or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	Ping(ctx context.Context) error
}
