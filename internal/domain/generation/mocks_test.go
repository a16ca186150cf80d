package generation

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/popgraph/server/internal/model"
	"github.com/popgraph/server/internal/port/outbound"
)

// --- Mock implementations ---

type MockInferenceEngine struct {
	mock.Mock
}

func (m *MockInferenceEngine) Submit(ctx context.Context, req *model.InferenceRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockInferenceEngine) Status(ctx context.Context, taskID string) (*model.InferenceStatus, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InferenceStatus), args.Error(1)
}

func (m *MockInferenceEngine) Fetch(ctx context.Context, resultRef string) ([]byte, error) {
	args := m.Called(ctx, resultRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

var _ outbound.InferenceEnginePort = (*MockInferenceEngine)(nil)

type MockArtifactStorage struct {
	mock.Mock
}

func (m *MockArtifactStorage) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, key, data, contentType)
	return args.String(0), args.Error(1)
}

var _ outbound.ArtifactStoragePort = (*MockArtifactStorage)(nil)

type MockQuotaLedger struct {
	mock.Mock
}

func (m *MockQuotaLedger) Check(ctx context.Context, userID string, tier model.Tier) (*model.QuotaDecision, error) {
	args := m.Called(ctx, userID, tier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuotaDecision), args.Error(1)
}

func (m *MockQuotaLedger) Increment(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQuotaLedger) Status(ctx context.Context, userID string, tier model.Tier) (*model.QuotaStatus, error) {
	args := m.Called(ctx, userID, tier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuotaStatus), args.Error(1)
}

func (m *MockQuotaLedger) Reset(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

var _ QuotaLedger = (*MockQuotaLedger)(nil)

type MockBatchRunner struct {
	mock.Mock
}

func (m *MockBatchRunner) Run(ctx context.Context, req *model.BatchRequest) ([]*model.GeneratedImage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.GeneratedImage), args.Error(1)
}

var _ BatchRunner = (*MockBatchRunner)(nil)

// --- Helpers ---

func testPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testImages(t *testing.T, n int, base int64) []*model.GeneratedImage {
	t.Helper()
	images := make([]*model.GeneratedImage, n)
	for i := range images {
		images[i] = &model.GeneratedImage{
			Index: i,
			Seed:  base + int64(i),
			Data:  testPNG(t, 64, 64, color.Black),
		}
	}
	return images
}

func int64Ptr(v int64) *int64 {
	return &v
}
