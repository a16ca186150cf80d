package outbound

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by a store when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// QuotaStorePort defines the counter store behind the quota ledger.
// Every operation touches a single key atomically.
type QuotaStorePort interface {
	// Get returns the raw counter value, or ErrCacheMiss.
	Get(ctx context.Context, key string) (string, error)

	// Incr atomically increments the counter and returns the new value.
	// A missing or expired key starts from zero.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets the time-to-live of a key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error
}
