package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/popgraph/server/internal/port/outbound"
	"github.com/popgraph/server/internal/utils/clock"
)

type counter struct {
	value     int64
	expiresAt time.Time // zero means no expiry
}

// QuotaStore is an in-process counter store.
// Counters are lost on restart and are not shared between instances.
type QuotaStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	clock    clock.Clock
}

// NewQuotaStore creates a new in-memory quota store.
func NewQuotaStore(clk clock.Clock) *QuotaStore {
	if clk == nil {
		clk = clock.New()
	}
	return &QuotaStore{
		counters: make(map[string]*counter),
		clock:    clk,
	}
}

// live returns the counter for key, dropping it if expired. Caller holds mu.
func (s *QuotaStore) live(key string) *counter {
	c, ok := s.counters[key]
	if !ok {
		return nil
	}
	if !c.expiresAt.IsZero() && !s.clock.Now().Before(c.expiresAt) {
		delete(s.counters, key)
		return nil
	}
	return c
}

func (s *QuotaStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.live(key)
	if c == nil {
		return "", outbound.ErrCacheMiss
	}
	return strconv.FormatInt(c.value, 10), nil
}

func (s *QuotaStore) Incr(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.live(key)
	if c == nil {
		c = &counter{}
		s.counters[key] = c
	}
	c.value++
	return c.value, nil
}

func (s *QuotaStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.live(key)
	if c == nil {
		return nil
	}
	if ttl <= 0 {
		delete(s.counters, key)
		return nil
	}
	c.expiresAt = s.clock.Now().Add(ttl)
	return nil
}

func (s *QuotaStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.counters, key)
	return nil
}

// Len returns the number of stored counters, expired ones included.
func (s *QuotaStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// Compile-time check
var _ outbound.QuotaStorePort = (*QuotaStore)(nil)
