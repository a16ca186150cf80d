package outbound

import (
	"context"
	"errors"
)

var (
	// ErrStorageNotConfigured is returned when no object storage backend is set up.
	ErrStorageNotConfigured = errors.New("storage not configured")

	// ErrStorageUnavailable is returned without an upload attempt while the
	// storage circuit breaker is open.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ArtifactStoragePort defines durable artifact persistence.
type ArtifactStoragePort interface {
	// Put uploads an object and returns its public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
