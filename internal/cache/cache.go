package cache

import (
	"context"
	"time"
)

// Store is the result cache the search service reads through. A miss is not
// an error: Get reports it through the boolean so callers can distinguish
// "not cached" from "cache unreachable".
type Store interface {
	// Get returns the cached bytes for key and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// DeleteByPrefix removes every key starting with prefix. Used to
	// invalidate whole operation families whose exact keys vary by
	// request parameters.
	DeleteByPrefix(ctx context.Context, prefix string) error

	// Ping reports whether the cache backend is reachable.
	Ping(ctx context.Context) error
}
