package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/popgraph/server/internal/model"
	"github.com/popgraph/server/internal/utils/clock"
	"github.com/popgraph/server/internal/utils/metrics"
)

var driverEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func pending() *model.InferenceStatus {
	return &model.InferenceStatus{TaskID: "task-1", State: model.InferenceStatePending}
}

func succeeded(ref string) *model.InferenceStatus {
	return &model.InferenceStatus{TaskID: "task-1", State: model.InferenceStateSucceeded, ResultRef: ref}
}

func newTestDriver(engine *MockInferenceEngine, cfg *DriverConfig) (*JobDriver, *clock.Fake, *metrics.Metrics) {
	fake := clock.NewFake(driverEpoch)
	m := metrics.New("test", prometheus.NewRegistry())
	return NewJobDriver(engine, cfg, fake, m, nil), fake, m
}

func TestJobDriver_Submit(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		engine := new(MockInferenceEngine)
		driver, _, _ := newTestDriver(engine, nil)

		engine.On("Submit", mock.Anything, mock.MatchedBy(func(r *model.InferenceRequest) bool {
			return r.Prompt == "a red fox" && r.Width == 576 && r.Height == 1024 && *r.Seed == 42
		})).Return("task-1", nil)

		job, err := driver.Submit(context.Background(), "a red fox", &model.GenerationOptions{
			Width: 576, Height: 1024, Seed: int64Ptr(42),
		})

		require.NoError(t, err)
		assert.Equal(t, "task-1", job.ExternalTaskID)
		assert.Equal(t, model.JobStatusSubmitted, job.Status)
		assert.Equal(t, driverEpoch, job.SubmittedAt)
		engine.AssertExpectations(t)
	})

	t.Run("transport error", func(t *testing.T) {
		engine := new(MockInferenceEngine)
		driver, _, _ := newTestDriver(engine, nil)
		engine.On("Submit", mock.Anything, mock.Anything).Return("", errors.New("connection reset"))

		job, err := driver.Submit(context.Background(), "prompt", nil)

		assert.Nil(t, job)
		assert.ErrorIs(t, err, ErrUpstreamFailure)
		assert.ErrorIs(t, err, ErrUpstreamTransport)
	})

	t.Run("empty task id", func(t *testing.T) {
		engine := new(MockInferenceEngine)
		driver, _, _ := newTestDriver(engine, nil)
		engine.On("Submit", mock.Anything, mock.Anything).Return("", nil)

		_, err := driver.Submit(context.Background(), "prompt", nil)

		assert.ErrorIs(t, err, ErrUpstreamFailure)
		assert.NotErrorIs(t, err, ErrUpstreamTransport)
	})
}

func TestJobDriver_Poll(t *testing.T) {
	t.Run("polls at interval until success", func(t *testing.T) {
		engine := new(MockInferenceEngine)
		driver, fake, m := newTestDriver(engine, nil)
		job := &model.GenerationJob{ExternalTaskID: "task-1", SubmittedAt: fake.Now()}

		engine.On("Status", mock.Anything, "task-1").Return(pending(), nil).Times(2)
		engine.On("Status", mock.Anything, "task-1").Return(succeeded("https://cdn.example/out.png"), nil).Once()
		engine.On("Fetch", mock.Anything, "https://cdn.example/out.png").Return([]byte("png-bytes"), nil)

		data, err := driver.Poll(context.Background(), job)

		require.NoError(t, err)
		assert.Equal(t, []byte("png-bytes"), data)
		assert.Equal(t, model.JobStatusSucceeded, job.Status)
		assert.Equal(t, []time.Duration{time.Second, time.Second}, fake.Sleeps())
		assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamJobsTotal.WithLabelValues("succeeded")))
		engine.AssertExpectations(t)
	})

	t.Run("upstream failure carries message", func(t *testing.T) {
		engine := new(MockInferenceEngine)
		driver, fake, _ := newTestDriver(engine, nil)
		job := &model.GenerationJob{ExternalTaskID: "task-1", SubmittedAt: fake.Now()}

		engine.On("Status", mock.Anything, "task-1").Return(&model.InferenceStatus{
			State:   model.InferenceStateFailed,
			Message: "content policy",
		}, nil)

		data, err := driver.Poll(context.Background(), job)

		assert.Nil(t, data)
		require.ErrorIs(t, err, ErrUpstreamFailure)
		var upErr *UpstreamError
		require.ErrorAs(t, err, &upErr)
		assert.Equal(t, "content policy", upErr.Message)
		assert.Equal(t, model.JobStatusFailed, job.Status)
	})

	t.Run("times out at deadline", func(t *testing.T) {
		engine := new(MockInferenceEngine)
		driver, fake, m := newTestDriver(engine, &DriverConfig{PollInterval: time.Second, Timeout: 3 * time.Second})
		job := &model.GenerationJob{ExternalTaskID: "task-1", SubmittedAt: fake.Now()}

		engine.On("Status", mock.Anything, "task-1").Return(pending(), nil)

		_, err := driver.Poll(context.Background(), job)

		assert.ErrorIs(t, err, ErrUpstreamTimeout)
		assert.Equal(t, model.JobStatusTimedOut, job.Status)
		engine.AssertNumberOfCalls(t, "Status", 3)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamJobsTotal.WithLabelValues("timed_out")))
	})

	t.Run("last wait is trimmed to the deadline", func(t *testing.T) {
		engine := new(MockInferenceEngine)
		driver, fake, _ := newTestDriver(engine, &DriverConfig{PollInterval: time.Second, Timeout: 2500 * time.Millisecond})
		job := &model.GenerationJob{ExternalTaskID: "task-1", SubmittedAt: fake.Now()}

		engine.On("Status", mock.Anything, "task-1").Return(pending(), nil)

		_, err := driver.Poll(context.Background(), job)

		assert.ErrorIs(t, err, ErrUpstreamTimeout)
		assert.Equal(t, []time.Duration{time.Second, time.Second, 500 * time.Millisecond}, fake.Sleeps())
	})

	t.Run("deadline counts from submission", func(t *testing.T) {
		engine := new(MockInferenceEngine)
		driver, fake, _ := newTestDriver(engine, nil)
		job := &model.GenerationJob{ExternalTaskID: "task-1", SubmittedAt: fake.Now()}
		fake.Advance(31 * time.Second)

		_, err := driver.Poll(context.Background(), job)

		assert.ErrorIs(t, err, ErrUpstreamTimeout)
		engine.AssertNotCalled(t, "Status", mock.Anything, mock.Anything)
	})

	t.Run("terminal job is absorbed", func(t *testing.T) {
		engine := new(MockInferenceEngine)
		driver, fake, _ := newTestDriver(engine, nil)
		job := &model.GenerationJob{ExternalTaskID: "task-1", SubmittedAt: fake.Now()}

		engine.On("Status", mock.Anything, "task-1").Return(succeeded("ref"), nil).Once()
		engine.On("Fetch", mock.Anything, "ref").Return([]byte("img"), nil).Once()

		first, err := driver.Poll(context.Background(), job)
		require.NoError(t, err)
		second, err := driver.Poll(context.Background(), job)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		engine.AssertNumberOfCalls(t, "Status", 1)
		engine.AssertNumberOfCalls(t, "Fetch", 1)
	})

	t.Run("caller cancellation stops polling", func(t *testing.T) {
		engine := new(MockInferenceEngine)
		driver, fake, _ := newTestDriver(engine, nil)
		job := &model.GenerationJob{ExternalTaskID: "task-1", SubmittedAt: fake.Now()}
		ctx, cancel := context.WithCancel(context.Background())

		engine.On("Status", mock.Anything, "task-1").Run(func(mock.Arguments) { cancel() }).Return(pending(), nil)

		_, err := driver.Poll(ctx, job)

		assert.ErrorIs(t, err, ErrUpstreamTimeout)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, model.JobStatusTimedOut, job.Status)
		engine.AssertNumberOfCalls(t, "Status", 1)
	})

	t.Run("empty payload is a failure", func(t *testing.T) {
		engine := new(MockInferenceEngine)
		driver, fake, _ := newTestDriver(engine, nil)
		job := &model.GenerationJob{ExternalTaskID: "task-1", SubmittedAt: fake.Now()}

		engine.On("Status", mock.Anything, "task-1").Return(succeeded("ref"), nil)
		engine.On("Fetch", mock.Anything, "ref").Return([]byte{}, nil)

		data, err := driver.Poll(context.Background(), job)

		assert.Nil(t, data)
		assert.ErrorIs(t, err, ErrUpstreamFailure)
	})

	t.Run("missing output reference is a failure", func(t *testing.T) {
		engine := new(MockInferenceEngine)
		driver, fake, _ := newTestDriver(engine, nil)
		job := &model.GenerationJob{ExternalTaskID: "task-1", SubmittedAt: fake.Now()}

		engine.On("Status", mock.Anything, "task-1").Return(succeeded(""), nil)

		_, err := driver.Poll(context.Background(), job)

		assert.ErrorIs(t, err, ErrUpstreamFailure)
		engine.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	})

	t.Run("status transport error", func(t *testing.T) {
		engine := new(MockInferenceEngine)
		driver, fake, _ := newTestDriver(engine, nil)
		job := &model.GenerationJob{ExternalTaskID: "task-1", SubmittedAt: fake.Now()}

		engine.On("Status", mock.Anything, "task-1").Return(nil, errors.New("502 bad gateway"))

		_, err := driver.Poll(context.Background(), job)

		assert.ErrorIs(t, err, ErrUpstreamTransport)
		assert.Equal(t, model.JobStatusFailed, job.Status)
	})
}

func TestJobDriver_GenerateOne(t *testing.T) {
	engine := new(MockInferenceEngine)
	driver, _, _ := newTestDriver(engine, nil)

	engine.On("Submit", mock.Anything, mock.Anything).Return("task-1", nil)
	engine.On("Status", mock.Anything, "task-1").Return(pending(), nil).Times(2)
	engine.On("Status", mock.Anything, "task-1").Return(succeeded("ref"), nil).Once()
	engine.On("Fetch", mock.Anything, "ref").Return([]byte("img"), nil)

	img, err := driver.GenerateOne(context.Background(), "prompt", &model.GenerationOptions{
		Width: 1024, Height: 1024, Seed: int64Ptr(7),
	})

	require.NoError(t, err)
	assert.Equal(t, []byte("img"), img.Data)
	assert.Equal(t, int64(7), img.Seed)
	assert.Equal(t, "task-1", img.ExternalTaskID)
	assert.Equal(t, int64(2000), img.ElapsedMs)
}
