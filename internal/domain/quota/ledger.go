package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/popgraph/server/internal/model"
	"github.com/popgraph/server/internal/port/outbound"
	"github.com/popgraph/server/internal/utils/clock"
	"github.com/popgraph/server/internal/utils/metrics"
)

const defaultFreeLimit = 5

// Ledger enforces per-user daily generation quotas.
//
// Counters are keyed by user and UTC date and expire at the next UTC midnight.
// Admission (Check) and commit (Increment) are separate calls, so two
// concurrent requests may both be admitted at limit-1. That window is accepted.
type Ledger struct {
	store    outbound.QuotaStorePort
	fallback outbound.QuotaStorePort
	config   *Config
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewLedger creates a new quota ledger. fallback may be nil.
func NewLedger(
	store outbound.QuotaStorePort,
	fallback outbound.QuotaStorePort,
	config *Config,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Ledger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultKeyPrefix
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:    store,
		fallback: fallback,
		config:   config,
		clock:    clk,
		metrics:  m,
		logger:   logger,
	}
}

// LimitFor returns the daily limit of a tier. Unknown tiers get the free limit.
func (l *Ledger) LimitFor(tier model.Tier) int {
	if limit, ok := l.config.Limits[model.ParseTier(string(tier))]; ok {
		return limit
	}
	if limit, ok := l.config.Limits[model.TierFree]; ok {
		return limit
	}
	return defaultFreeLimit
}

// Check decides whether the user may start another generation today.
// It never mutates the counter.
func (l *Ledger) Check(ctx context.Context, userID string, tier model.Tier) (*model.QuotaDecision, error) {
	tier = model.ParseTier(string(tier))
	limit := l.LimitFor(tier)
	if limit < 0 {
		l.metrics.RecordQuotaDecision(string(tier), "unbounded")
		return &model.QuotaDecision{
			Allowed:   true,
			Remaining: model.UnlimitedQuota,
			Limit:     model.UnlimitedQuota,
		}, nil
	}

	now := l.clock.Now()
	used, err := l.usage(ctx, l.Key(userID, now))
	if err != nil {
		if l.config.FailOpen {
			l.logger.Warn("Quota backend unavailable, admitting request",
				zap.String("user_id", userID),
				zap.String("tier", string(tier)),
				zap.Error(err),
			)
			l.metrics.RecordQuotaDecision(string(tier), "fail_open")
			return &model.QuotaDecision{
				Allowed:   true,
				Remaining: model.UnlimitedQuota,
				Limit:     limit,
			}, nil
		}
		return nil, err
	}

	resetAt := clock.NextUTCMidnight(now)
	decision := &model.QuotaDecision{
		Allowed:   used < int64(limit),
		Remaining: remaining(limit, used),
		Limit:     limit,
		Used:      used,
		ResetAt:   &resetAt,
	}

	if decision.Allowed {
		l.metrics.RecordQuotaDecision(string(tier), "allowed")
	} else {
		l.metrics.RecordQuotaDecision(string(tier), "denied")
		l.logger.Info("Quota exceeded",
			zap.String("user_id", userID),
			zap.String("tier", string(tier)),
			zap.Int64("used", used),
			zap.Int("limit", limit),
		)
	}
	return decision, nil
}

// Increment commits one unit of usage and returns the new count.
// The first increment of a day sets the key to expire at the next UTC midnight.
func (l *Ledger) Increment(ctx context.Context, userID string) (int64, error) {
	now := l.clock.Now()
	key := l.Key(userID, now)
	ttl := clock.NextUTCMidnight(now).Sub(now)

	var count int64
	err := l.do(ctx, "incr", func(s outbound.QuotaStorePort) error {
		c, err := s.Incr(ctx, key)
		if err != nil {
			return err
		}
		if c == 1 {
			if err := s.Expire(ctx, key, ttl); err != nil {
				l.logger.Warn("Failed to set quota expiry",
					zap.String("key", key),
					zap.Error(err),
				)
			}
		}
		count = c
		return nil
	})
	if err != nil {
		l.metrics.RecordQuotaIncrement(false)
		return 0, err
	}

	l.metrics.RecordQuotaIncrement(true)
	return count, nil
}

// CurrentUsage returns today's usage for a user.
func (l *Ledger) CurrentUsage(ctx context.Context, userID string) (int64, error) {
	return l.usage(ctx, l.Key(userID, l.clock.Now()))
}

// Remaining returns how many generations the user has left today, or -1 if unbounded.
func (l *Ledger) Remaining(ctx context.Context, userID string, tier model.Tier) (int, error) {
	limit := l.LimitFor(tier)
	if limit < 0 {
		return model.UnlimitedQuota, nil
	}
	used, err := l.CurrentUsage(ctx, userID)
	if err != nil {
		return 0, err
	}
	return remaining(limit, used), nil
}

// Status reports today's quota for a user.
func (l *Ledger) Status(ctx context.Context, userID string, tier model.Tier) (*model.QuotaStatus, error) {
	tier = model.ParseTier(string(tier))
	now := l.clock.Now()
	used, err := l.usage(ctx, l.Key(userID, now))
	if err != nil {
		return nil, err
	}

	limit := l.LimitFor(tier)
	status := &model.QuotaStatus{
		UserID:    userID,
		Tier:      tier,
		Used:      used,
		Limit:     limit,
		Remaining: model.UnlimitedQuota,
	}
	if limit >= 0 {
		resetAt := clock.NextUTCMidnight(now)
		status.Remaining = remaining(limit, used)
		status.ResetAt = &resetAt
	}
	return status, nil
}

// Reset deletes today's counter for a user.
func (l *Ledger) Reset(ctx context.Context, userID string) error {
	key := l.Key(userID, l.clock.Now())
	if err := l.do(ctx, "delete", func(s outbound.QuotaStorePort) error {
		return s.Delete(ctx, key)
	}); err != nil {
		return err
	}
	// The fallback may hold a counter from an earlier primary outage.
	if l.fallback != nil {
		if err := l.fallback.Delete(ctx, key); err != nil {
			l.logger.Warn("Failed to reset fallback quota", zap.String("key", key), zap.Error(err))
		}
	}

	l.logger.Info("Quota reset", zap.String("user_id", userID))
	return nil
}

func (l *Ledger) usage(ctx context.Context, key string) (int64, error) {
	var used int64
	err := l.do(ctx, "get", func(s outbound.QuotaStorePort) error {
		raw, err := s.Get(ctx, key)
		if errors.Is(err, outbound.ErrCacheMiss) {
			used = 0
			return nil
		}
		if err != nil {
			return err
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parse counter %q: %w", raw, err)
		}
		used = n
		return nil
	})
	return used, err
}

// do runs fn on the primary store and retries it once on the fallback.
func (l *Ledger) do(ctx context.Context, op string, fn func(outbound.QuotaStorePort) error) error {
	err := fn(l.store)
	if err == nil {
		return nil
	}
	l.metrics.RecordQuotaBackendError(op)

	if l.fallback == nil || ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, op, err)
	}

	l.logger.Warn("Quota store failed, using fallback",
		zap.String("op", op),
		zap.Error(err),
	)
	if ferr := fn(l.fallback); ferr != nil {
		l.metrics.RecordQuotaBackendError(op + "_fallback")
		return fmt.Errorf("%w: %s: %v (fallback: %v)", ErrBackendUnavailable, op, err, ferr)
	}
	return nil
}

// Key returns the store key of a user's counter for the UTC day containing now.
func (l *Ledger) Key(userID string, now time.Time) string {
	return l.config.KeyPrefix + userID + ":" + now.UTC().Format("2006-01-02")
}

func remaining(limit int, used int64) int {
	if r := int64(limit) - used; r > 0 {
		return int(r)
	}
	return 0
}
