package outbound

import (
	"context"

	"github.com/popgraph/server/internal/model"
)

// InferenceEnginePort defines the asynchronous image inference engine.
type InferenceEnginePort interface {
	// Submit enqueues a generation task and returns the external task id.
	Submit(ctx context.Context, req *model.InferenceRequest) (string, error)

	// Status queries the state of a previously submitted task.
	Status(ctx context.Context, taskID string) (*model.InferenceStatus, error)

	// Fetch downloads the result referenced by a succeeded task.
	Fetch(ctx context.Context, resultRef string) ([]byte, error)
}
