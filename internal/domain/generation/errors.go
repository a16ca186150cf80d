package generation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when a generation request fails validation.
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrUpstreamFailure is returned when the inference engine rejects or fails a job.
	ErrUpstreamFailure = errors.New("upstream generation failed")

	// ErrUpstreamTransport marks upstream failures caused by the network or HTTP status.
	ErrUpstreamTransport = errors.New("upstream transport error")

	// ErrUpstreamTimeout is returned when a job does not finish before its deadline
	// or the caller gives up waiting.
	ErrUpstreamTimeout = errors.New("upstream generation timed out")

	// ErrWatermark is returned when a watermark cannot be applied.
	ErrWatermark = errors.New("watermark failed")
)

// UpstreamError describes a failed inference job.
// It matches ErrUpstreamFailure, and ErrUpstreamTransport when Transport is set.
type UpstreamError struct {
	Op        string // submit, status, fetch, job
	TaskID    string
	Message   string
	Transport bool
	Cause     error
}

func (e *UpstreamError) Error() string {
	msg := "upstream " + e.Op + " failed"
	if e.TaskID != "" {
		msg += fmt.Sprintf(" (task %s)", e.TaskID)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() []error {
	errs := []error{ErrUpstreamFailure}
	if e.Transport {
		errs = append(errs, ErrUpstreamTransport)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
