package cache

import (
	"context"
	"time"
)

// Cache is the local key-value store used for notification state:
// last-check stamps, per-day alert markers, the notification history and
// stream tokens. The memory implementation is per process; the Redis
// implementation is shared by every instance pointed at the same Redis.
type Cache interface {
	// Get returns ErrCacheMiss if key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A ttl <= 0 keeps the value until it is deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetIfAbsent stores value only if key is absent and reports whether it
	// did. Alert markers are claimed with it so two instances watching the
	// same user raise an alert once.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CacheError is a sentinel error of the cache package.
type CacheError string

func (e CacheError) Error() string { return string(e) }

// ErrCacheMiss indicates the key was not found.
const ErrCacheMiss CacheError = "cache miss"
