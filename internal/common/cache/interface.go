package cache

import (
	"context"
	"time"
)

// BasicOps is the key-value surface the service exercises: document caching
// (Get/Set/Del), lock-style writes (SetNX) and fixed-window counters
// (Incr/Expire/TTL). Implementations must be safe for concurrent use.
type BasicOps interface {
	// Get retrieves the value for key. A missing key returns "" with a nil
	// error, so callers treat empty as a miss.
	Get(ctx context.Context, key string) (string, error)

	// Set stores key with the given TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// SetNX stores key only if absent, reporting whether it was written.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Del removes the given keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Incr increments the integer value at key by one, creating it at zero
	// first when absent.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets a TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL returns the remaining lifetime: -1 for no expiry, -2 for a
	// missing key, matching Redis semantics.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Cache adds lifecycle operations on top of BasicOps.
type Cache interface {
	BasicOps

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the client and its connections.
	Close() error
}
