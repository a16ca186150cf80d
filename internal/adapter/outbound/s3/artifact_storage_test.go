package s3

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/popgraph/server/internal/port/outbound"
)

// --- Mock implementations ---

type MockPutObjectAPI struct {
	mock.Mock
}

func (m *MockPutObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

type MockArtifactStorage struct {
	mock.Mock
}

func (m *MockArtifactStorage) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, key, data, contentType)
	return args.String(0), args.Error(1)
}

var _ outbound.ArtifactStoragePort = (*MockArtifactStorage)(nil)

func TestArtifactStorage_Put(t *testing.T) {
	t.Run("uploads with content type and returns public url", func(t *testing.T) {
		api := new(MockPutObjectAPI)
		storage := NewArtifactStorage(api, &Config{
			Endpoint:      "https://acct.r2.cloudflarestorage.com",
			Bucket:        "posters",
			PublicBaseURL: "https://cdn.popgraph.example/",
		})

		api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			body, _ := io.ReadAll(in.Body)
			return aws.ToString(in.Bucket) == "posters" &&
				aws.ToString(in.Key) == "generated/u1/2026/03/01/r-0.png" &&
				aws.ToString(in.ContentType) == "image/png" &&
				aws.ToInt64(in.ContentLength) == 3 &&
				string(body) == "png"
		})).Return(&s3.PutObjectOutput{}, nil)

		url, err := storage.Put(context.Background(), "generated/u1/2026/03/01/r-0.png", []byte("png"), "image/png")

		require.NoError(t, err)
		assert.Equal(t, "https://cdn.popgraph.example/generated/u1/2026/03/01/r-0.png", url)
		api.AssertExpectations(t)
	})

	t.Run("falls back to endpoint and bucket", func(t *testing.T) {
		storage := NewArtifactStorage(new(MockPutObjectAPI), &Config{
			Endpoint: "http://minio:9000/",
			Bucket:   "posters",
		})

		assert.Equal(t, "http://minio:9000/posters/a/b%20c.png", storage.URL("a/b c.png"))
	})

	t.Run("wraps upload errors", func(t *testing.T) {
		api := new(MockPutObjectAPI)
		storage := NewArtifactStorage(api, &Config{Endpoint: "http://minio", Bucket: "b"})
		api.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("AccessDenied"))

		_, err := storage.Put(context.Background(), "k.png", []byte("x"), "image/png")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "k.png")
	})
}

func TestNewClient(t *testing.T) {
	t.Run("rejects incomplete configuration", func(t *testing.T) {
		_, err := NewClient(context.Background(), &Config{Endpoint: "http://minio"})
		assert.Error(t, err)
	})

	t.Run("builds client", func(t *testing.T) {
		client, err := NewClient(context.Background(), &Config{
			Endpoint:        "http://minio:9000",
			AccessKeyID:     "ak",
			SecretAccessKey: "sk",
			Bucket:          "posters",
		})
		require.NoError(t, err)
		assert.NotNil(t, client)
	})
}

func TestBreakerStorage(t *testing.T) {
	t.Run("opens after consecutive failures", func(t *testing.T) {
		next := new(MockArtifactStorage)
		storage := NewBreakerStorage(next, &BreakerConfig{Failures: 2, OpenDelay: time.Minute}, nil)
		next.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("timeout"))

		for i := 0; i < 2; i++ {
			_, err := storage.Put(context.Background(), "k", []byte("x"), "image/png")
			require.Error(t, err)
			assert.NotErrorIs(t, err, outbound.ErrStorageUnavailable)
		}
		assert.Equal(t, gobreaker.StateOpen, storage.State())

		_, err := storage.Put(context.Background(), "k", []byte("x"), "image/png")

		assert.ErrorIs(t, err, outbound.ErrStorageUnavailable)
		next.AssertNumberOfCalls(t, "Put", 2)
	})

	t.Run("passes successes through", func(t *testing.T) {
		next := new(MockArtifactStorage)
		storage := NewBreakerStorage(next, nil, nil)
		next.On("Put", mock.Anything, "k", []byte("x"), "image/png").Return("https://cdn/k", nil)

		url, err := storage.Put(context.Background(), "k", []byte("x"), "image/png")

		require.NoError(t, err)
		assert.Equal(t, "https://cdn/k", url)
		assert.Equal(t, gobreaker.StateClosed, storage.State())
	})

	t.Run("caller cancellation does not trip", func(t *testing.T) {
		next := new(MockArtifactStorage)
		storage := NewBreakerStorage(next, &BreakerConfig{Failures: 1, OpenDelay: time.Minute}, nil)
		next.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", context.Canceled)

		_, err := storage.Put(context.Background(), "k", []byte("x"), "image/png")

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, gobreaker.StateClosed, storage.State())
	})
}
