package model

import (
	"time"
)

// Tier represents a membership tier.
type Tier string

const (
	TierFree         Tier = "free"
	TierBasic        Tier = "basic"
	TierProfessional Tier = "professional"
)

// UnlimitedQuota marks a tier without a daily cap.
const UnlimitedQuota = -1

// ParseTier converts a raw tier name. Unknown names resolve to TierFree.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierBasic:
		return TierBasic
	case TierProfessional:
		return TierProfessional
	default:
		return TierFree
	}
}

// QuotaDecision is the outcome of an admission check.
type QuotaDecision struct {
	Allowed   bool       `json:"allowed"`
	Remaining int        `json:"remaining"`
	Limit     int        `json:"limit"`
	Used      int64      `json:"used"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
}

// JobStatus represents the lifecycle state of an inference job.
type JobStatus string

const (
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusPolling   JobStatus = "polling"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusTimedOut  JobStatus = "timed_out"
)

// IsTerminal reports whether no further transition can happen.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusTimedOut
}

// GenerationOptions holds per-call rendering parameters.
type GenerationOptions struct {
	Width         int      `json:"width"`
	Height        int      `json:"height"`
	Seed          *int64   `json:"seed,omitempty"`
	GuidanceScale *float64 `json:"guidance_scale,omitempty"`
}

// GenerationJob is one asynchronous unit of work on the inference engine.
type GenerationJob struct {
	ExternalTaskID string
	Prompt         string
	Width          int
	Height         int
	Seed           *int64
	GuidanceScale  *float64
	Status         JobStatus
	SubmittedAt    time.Time
	Result         []byte
	Err            error
}

// IsTerminal checks if the job is in a terminal state.
func (j *GenerationJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// InferenceRequest is the payload submitted to the inference engine.
type InferenceRequest struct {
	Prompt        string
	Width         int
	Height        int
	Seed          *int64
	GuidanceScale *float64
}

// InferenceState is the engine-reported task state.
type InferenceState string

const (
	InferenceStatePending   InferenceState = "PENDING"
	InferenceStateRunning   InferenceState = "RUNNING"
	InferenceStateSucceeded InferenceState = "SUCCEED"
	InferenceStateFailed    InferenceState = "FAILED"
)

// InferenceStatus is the engine response to a status query.
type InferenceStatus struct {
	TaskID    string
	State     InferenceState
	ResultRef string
	Message   string
}

// GeneratedImage is a raw artifact produced by one successful job.
type GeneratedImage struct {
	Index          int
	Seed           int64
	Data           []byte
	ElapsedMs      int64
	ExternalTaskID string
}

// BatchRequest describes K seed-diversified renderings of one brief.
type BatchRequest struct {
	RequestID     string
	Prompt        string
	Width         int
	Height        int
	GuidanceScale *float64
	VariantCount  int
	BaseSeed      *int64
}

// Artifact is a deliverable image record. Exactly one of URL or
// InlinePayload is set.
type Artifact struct {
	ID            string  `json:"id"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	HasWatermark  bool    `json:"has_watermark"`
	URL           *string `json:"url"`
	ThumbnailURL  *string `json:"thumbnail_url"`
	InlinePayload *string `json:"inline_payload"`
	Seed          int64   `json:"seed"`

	StorageFallback bool `json:"-"`
}

// GenerationRequest is a caller-facing generation request.
type GenerationRequest struct {
	Prompt        string   `json:"prompt"`
	Width         int      `json:"width,omitempty"`
	Height        int      `json:"height,omitempty"`
	AspectRatio   string   `json:"aspect_ratio,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
	GuidanceScale *float64 `json:"guidance_scale,omitempty"`
	VariantCount  int      `json:"variant_count,omitempty" default:"1"`
	UserID        string   `json:"-"`
	Tier          Tier     `json:"-"`
}

// GenerationResponse is a successful generation result.
type GenerationResponse struct {
	RequestID string      `json:"request_id"`
	Artifacts []*Artifact `json:"artifacts"`
	ElapsedMs int64       `json:"elapsed_ms"`
}

// QuotaStatus describes a user's quota for the current UTC day.
type QuotaStatus struct {
	UserID    string     `json:"user_id"`
	Tier      Tier       `json:"tier"`
	Used      int64      `json:"used"`
	Remaining int        `json:"remaining"`
	Limit     int        `json:"limit"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
}
