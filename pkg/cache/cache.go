package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a TTL cache of JSON-serialized values.
type Cache interface {
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Get unmarshals the cached value into target, or returns ErrCacheMiss.
	Get(ctx context.Context, key string, target interface{}) error
	// Delete removes a single key.
	Delete(ctx context.Context, key string) error
	// Invalidate removes every key accepted by match and returns how many were removed.
	// It returns only after the keys are gone.
	Invalidate(ctx context.Context, match Matcher) (int, error)
}

// Matcher selects keys for invalidation.
type Matcher func(key string) bool

func Equals(k string) Matcher {
	return func(key string) bool { return key == k }
}

func Prefix(p string) Matcher {
	return func(key string) bool { return strings.HasPrefix(key, p) }
}

func Contains(s string) Matcher {
	return func(key string) bool { return strings.Contains(key, s) }
}

// Any matches a key accepted by at least one matcher.
func Any(ms ...Matcher) Matcher {
	return func(key string) bool {
		for _, m := range ms {
			if m(key) {
				return true
			}
		}
		return false
	}
}
