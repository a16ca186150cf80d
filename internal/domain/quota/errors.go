package quota

import (
	"errors"
	"fmt"
	"time"

	"github.com/popgraph/server/internal/model"
)

var (
	// ErrQuotaExceeded is returned when a user has used up the daily limit.
	ErrQuotaExceeded = errors.New("daily quota exceeded")

	// ErrBackendUnavailable is returned when no quota store could serve the operation.
	ErrBackendUnavailable = errors.New("quota backend unavailable")
)

// ExceededError carries the details of a denied admission.
type ExceededError struct {
	UserID    string
	Tier      model.Tier
	Limit     int
	Remaining int
	ResetAt   *time.Time
}

// NewExceededError builds an ExceededError from a denied decision.
func NewExceededError(userID string, tier model.Tier, d *model.QuotaDecision) *ExceededError {
	return &ExceededError{
		UserID:    userID,
		Tier:      tier,
		Limit:     d.Limit,
		Remaining: d.Remaining,
		ResetAt:   d.ResetAt,
	}
}

func (e *ExceededError) Error() string {
	if e.ResetAt != nil {
		return fmt.Sprintf("daily quota exceeded for tier %s (limit %d), resets at %s",
			e.Tier, e.Limit, e.ResetAt.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("daily quota exceeded for tier %s (limit %d)", e.Tier, e.Limit)
}

func (e *ExceededError) Unwrap() error {
	return ErrQuotaExceeded
}
