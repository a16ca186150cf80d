package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/popgraph/server/internal/adapter/outbound/quotatest"
	"github.com/popgraph/server/internal/port/outbound"
	"github.com/popgraph/server/internal/utils/clock"
)

// openTestDB connects to POPGRAPH_TEST_DATABASE_DSN or skips.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("POPGRAPH_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("POPGRAPH_TEST_DATABASE_DSN not set")
	}
	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// prefixedStore isolates each test run under a unique key prefix.
type prefixedStore struct {
	*QuotaStore
	prefix string
}

func (s prefixedStore) Get(ctx context.Context, key string) (string, error) {
	return s.QuotaStore.Get(ctx, s.prefix+key)
}

func (s prefixedStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.QuotaStore.Incr(ctx, s.prefix+key)
}

func (s prefixedStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.QuotaStore.Expire(ctx, s.prefix+key, ttl)
}

func (s prefixedStore) Delete(ctx context.Context, key string) error {
	return s.QuotaStore.Delete(ctx, s.prefix+key)
}

func TestQuotaStore_Contract(t *testing.T) {
	db := openTestDB(t)

	quotatest.RunStoreContract(t, func(t *testing.T) (outbound.QuotaStorePort, func(time.Duration)) {
		fake := clock.NewFake(time.Now().UTC())
		store := NewQuotaStore(db, fake)
		require.NoError(t, store.Migrate(context.Background()))
		return prefixedStore{QuotaStore: store, prefix: uuid.NewString() + ":"}, fake.Advance
	})
}

func TestQuotaStore_PurgeExpired(t *testing.T) {
	db := openTestDB(t)
	fake := clock.NewFake(time.Now().UTC())
	store := NewQuotaStore(db, fake)
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	key := uuid.NewString()
	_, err := store.Incr(ctx, key)
	require.NoError(t, err)
	require.NoError(t, store.Expire(ctx, key, time.Minute))

	fake.Advance(2 * time.Minute)
	n, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}

func TestQuotaCounter_TableName(t *testing.T) {
	assert.Equal(t, "quota_counters", quotaCounter{}.TableName())
}
