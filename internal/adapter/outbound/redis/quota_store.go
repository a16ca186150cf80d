package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/popgraph/server/internal/port/outbound"
)

// QuotaStore implements outbound.QuotaStorePort on Redis.
type QuotaStore struct {
	client redis.UniversalClient
}

// NewQuotaStore creates a new Redis quota store.
func NewQuotaStore(client redis.UniversalClient) *QuotaStore {
	return &QuotaStore{client: client}
}

func (s *QuotaStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", outbound.ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (s *QuotaStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *QuotaStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *QuotaStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Compile-time check
var _ outbound.QuotaStorePort = (*QuotaStore)(nil)
