package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/popgraph/server/internal/port/outbound"
)

// BreakerConfig holds circuit breaker settings for storage uploads.
type BreakerConfig struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures uint32
	// OpenDelay is how long the breaker stays open before a trial upload.
	OpenDelay time.Duration
}

// DefaultBreakerConfig returns default breaker settings.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		Failures:  3,
		OpenDelay: 30 * time.Second,
	}
}

// BreakerStorage short-circuits uploads while the wrapped storage keeps failing.
// Rejected calls return outbound.ErrStorageUnavailable without touching the network.
type BreakerStorage struct {
	next    outbound.ArtifactStoragePort
	breaker *gobreaker.CircuitBreaker[string]
}

// NewBreakerStorage wraps next with a circuit breaker.
func NewBreakerStorage(next outbound.ArtifactStoragePort, config *BreakerConfig, logger *zap.Logger) *BreakerStorage {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	if config.Failures == 0 {
		config.Failures = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        "artifact-storage",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     config.OpenDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.Failures
		},
		// A caller hanging up says nothing about storage health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Storage circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &BreakerStorage{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[string](settings),
	}
}

// Put uploads through the breaker.
func (b *BreakerStorage) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	url, err := b.breaker.Execute(func() (string, error) {
		return b.next.Put(ctx, key, data, contentType)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", outbound.ErrStorageUnavailable, err)
	}
	return url, err
}

// State returns the current breaker state.
func (b *BreakerStorage) State() gobreaker.State {
	return b.breaker.State()
}

// Compile-time check
var _ outbound.ArtifactStoragePort = (*BreakerStorage)(nil)
