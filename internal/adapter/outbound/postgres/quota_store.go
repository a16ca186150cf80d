package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/popgraph/server/internal/port/outbound"
	"github.com/popgraph/server/internal/utils/clock"
)

// quotaCounter is a row of the quota_counters table.
type quotaCounter struct {
	Key       string     `gorm:"primaryKey;size:255"`
	Count     int64      `gorm:"not null;default:0"`
	ExpiresAt *time.Time `gorm:"index"`
}

func (quotaCounter) TableName() string {
	return "quota_counters"
}

// QuotaStore implements outbound.QuotaStorePort on PostgreSQL.
// Expired rows are treated as absent and restarted by the next Incr.
type QuotaStore struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewQuotaStore creates a new PostgreSQL quota store.
func NewQuotaStore(db *gorm.DB, clk clock.Clock) *QuotaStore {
	if clk == nil {
		clk = clock.New()
	}
	return &QuotaStore{db: db, clock: clk}
}

// Migrate creates the quota_counters table if needed.
func (s *QuotaStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&quotaCounter{})
}

func (s *QuotaStore) Get(ctx context.Context, key string) (string, error) {
	var row quotaCounter
	err := s.db.WithContext(ctx).
		Where("key = ? AND (expires_at IS NULL OR expires_at > ?)", key, s.clock.Now()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", outbound.ErrCacheMiss
		}
		return "", err
	}
	return strconv.FormatInt(row.Count, 10), nil
}

func (s *QuotaStore) Incr(ctx context.Context, key string) (int64, error) {
	now := s.clock.Now()

	var count int64
	err := s.db.WithContext(ctx).Raw(`
		INSERT INTO quota_counters (key, count, expires_at)
		VALUES (?, 1, NULL)
		ON CONFLICT (key)
		DO UPDATE SET
			count = CASE
				WHEN quota_counters.expires_at IS NOT NULL AND quota_counters.expires_at <= ? THEN 1
				ELSE quota_counters.count + 1
			END,
			expires_at = CASE
				WHEN quota_counters.expires_at IS NOT NULL AND quota_counters.expires_at <= ? THEN NULL
				ELSE quota_counters.expires_at
			END
		RETURNING count
	`, key, now, now).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *QuotaStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	expiresAt := s.clock.Now().Add(ttl)
	return s.db.WithContext(ctx).
		Model(&quotaCounter{}).
		Where("key = ?", key).
		Update("expires_at", expiresAt).Error
}

func (s *QuotaStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&quotaCounter{}, "key = ?", key).Error
}

// PurgeExpired removes rows whose expiry has passed and returns how many were deleted.
func (s *QuotaStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.clock.Now()).
		Delete(&quotaCounter{})
	return res.RowsAffected, res.Error
}

// Compile-time check
var _ outbound.QuotaStorePort = (*QuotaStore)(nil)
