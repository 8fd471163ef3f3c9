package repo

import (
	"context"
	"time"
)

// StateStore is the TTL key-value persistence boundary.
// Expired keys behave as absent.
type StateStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores value under key, ttl <= 0 means no expiry
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes all keys in one atomic step
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
