package cache

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// NullCacheValue marks the cached absence of data. Caching misses keeps
// repeated lookups for nonexistent ids from hitting the database.
const NullCacheValue = "$NULL$"

// GetWithCached implements the cache-aside pattern with null value caching.
// It reads the key first; on a miss it calls fn, stores the result, and
// returns it. Empty results are cached under NullCacheValue with the shorter
// emptyTTL so absent documents do not hammer the database.
//
// Parameters:
//   - isEmpty: reports whether fn's result counts as absent
//   - marshal/unmarshal: string codec for T
//   - fn: loads the value from the source of truth on cache miss
func GetWithCached[T any](
	ctx context.Context,
	cache Cache,
	key string,
	ttl time.Duration,
	emptyTTL time.Duration,
	isEmpty func(T) bool,
	marshal func(T) string,
	unmarshal func(string) (T, error),
	fn func(context.Context) (T, error),
) (T, error) {
	var zero T

	if result, hit := readCached(ctx, cache, key, unmarshal); hit {
		return result, nil
	}

	data, err := fn(ctx)
	if err != nil {
		return zero, err
	}
	if isEmpty(data) {
		_ = cache.Set(ctx, key, NullCacheValue, emptyTTL)
		return zero, nil
	}

	_ = cache.Set(ctx, key, marshal(data), ttl)
	return data, nil
}

// readCached reports a hit for both real values and the null sentinel, which
// comes back as the zero value. Read or decode failures count as misses so
// a broken cache entry degrades to a database read instead of an error.
func readCached[T any](ctx context.Context, cache Cache, key string, unmarshal func(string) (T, error)) (T, bool) {
	var zero T

	cached, err := cache.Get(ctx, key)
	if err != nil || cached == "" {
		return zero, false
	}
	if cached == NullCacheValue {
		return zero, true
	}
	result, err := unmarshal(cached)
	if err != nil {
		return zero, false
	}
	return result, true
}

// JitterTTL shortens a TTL by up to 10% so keys written together do not
// expire together.
func JitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	maxJitter := int64(ttl / 10)
	if maxJitter <= 0 {
		return ttl
	}
	n, err := rand.Int(rand.Reader, big.NewInt(maxJitter+1))
	if err != nil {
		return ttl
	}
	return ttl - time.Duration(n.Int64())
}
