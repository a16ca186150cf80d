package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/popgraph/server/internal/infra/config"
)

const pingTimeout = 5 * time.Second

// NewRedisClient connects to the quota Redis and pings it once.
// A client that cannot be pinged is closed and an error returned.
func NewRedisClient(cfg *config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewClient(options(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Address, err)
	}

	return client, nil
}

// NewLazyRedisClient returns a client that has not been pinged.
// go-redis dials on first use and redials after failures.
func NewLazyRedisClient(cfg *config.RedisConfig) redis.UniversalClient {
	return redis.NewClient(options(cfg))
}

func options(cfg *config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	// Quota checks sit on the request path; a blocked pool read must not outlive the request.
	opts.ContextTimeoutEnabled = true
	return opts
}

// Close closes client; a nil client is a no-op.
func Close(client redis.UniversalClient) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
