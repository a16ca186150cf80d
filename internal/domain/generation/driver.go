package generation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/popgraph/server/internal/model"
	"github.com/popgraph/server/internal/port/outbound"
	"github.com/popgraph/server/internal/utils/clock"
	"github.com/popgraph/server/internal/utils/metrics"
)

// JobDriver drives one asynchronous inference job from submission to a
// terminal state: Submitted -> Polling -> Succeeded | Failed | TimedOut.
//
// Callers only ever see complete image bytes or a typed error. Cancelling the
// caller's context stops polling locally; no cancel is sent upstream.
type JobDriver struct {
	engine  outbound.InferenceEnginePort
	config  *DriverConfig
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewJobDriver creates a new job driver.
func NewJobDriver(
	engine outbound.InferenceEnginePort,
	config *DriverConfig,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *JobDriver {
	if config == nil {
		config = DefaultDriverConfig()
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobDriver{
		engine:  engine,
		config:  config,
		clock:   clk,
		metrics: m,
		logger:  logger,
	}
}

// Submit enqueues a job on the inference engine.
func (d *JobDriver) Submit(ctx context.Context, prompt string, opts *model.GenerationOptions) (*model.GenerationJob, error) {
	if opts == nil {
		opts = &model.GenerationOptions{}
	}
	req := &model.InferenceRequest{
		Prompt:        prompt,
		Width:         opts.Width,
		Height:        opts.Height,
		Seed:          opts.Seed,
		GuidanceScale: opts.GuidanceScale,
	}

	submittedAt := d.clock.Now()
	taskID, err := d.engine.Submit(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: submit: %w", ErrUpstreamTimeout, ctx.Err())
		}
		d.metrics.RecordUpstreamJob(string(model.JobStatusFailed), 0)
		d.logger.Warn("Inference submit failed", zap.Error(err))
		return nil, &UpstreamError{Op: "submit", Transport: true, Cause: err}
	}
	if taskID == "" {
		d.metrics.RecordUpstreamJob(string(model.JobStatusFailed), 0)
		return nil, &UpstreamError{Op: "submit", Message: "empty task id"}
	}

	d.logger.Debug("Inference job submitted",
		zap.String("task_id", taskID),
		zap.Int("width", opts.Width),
		zap.Int("height", opts.Height),
	)

	return &model.GenerationJob{
		ExternalTaskID: taskID,
		Prompt:         prompt,
		Width:          opts.Width,
		Height:         opts.Height,
		Seed:           opts.Seed,
		GuidanceScale:  opts.GuidanceScale,
		Status:         model.JobStatusSubmitted,
		SubmittedAt:    submittedAt,
	}, nil
}

// Poll waits for a job to reach a terminal state and returns its image bytes.
// The deadline is measured from the job's submission time. Polling a terminal
// job returns the recorded outcome without contacting the engine.
func (d *JobDriver) Poll(ctx context.Context, job *model.GenerationJob) ([]byte, error) {
	if job.IsTerminal() {
		return job.Result, job.Err
	}
	job.Status = model.JobStatusPolling
	deadline := job.SubmittedAt.Add(d.config.Timeout)

	for {
		now := d.clock.Now()
		if !now.Before(deadline) {
			return d.finish(job, nil, fmt.Errorf("%w: task %s after %s", ErrUpstreamTimeout, job.ExternalTaskID, d.config.Timeout))
		}

		status, err := d.engine.Status(ctx, job.ExternalTaskID)
		if err != nil {
			if ctx.Err() != nil {
				return d.finish(job, nil, d.cancelled(ctx, job))
			}
			return d.finish(job, nil, &UpstreamError{Op: "status", TaskID: job.ExternalTaskID, Transport: true, Cause: err})
		}

		switch status.State {
		case model.InferenceStateSucceeded:
			return d.fetch(ctx, job, status)
		case model.InferenceStateFailed:
			msg := status.Message
			if msg == "" {
				msg = "unknown error"
			}
			return d.finish(job, nil, &UpstreamError{Op: "job", TaskID: job.ExternalTaskID, Message: msg})
		}

		wait := d.config.PollInterval
		if remaining := deadline.Sub(now); remaining < wait {
			wait = remaining
		}
		if err := d.clock.Sleep(ctx, wait); err != nil {
			return d.finish(job, nil, d.cancelled(ctx, job))
		}
	}
}

// GenerateOne submits a job and waits for its image.
func (d *JobDriver) GenerateOne(ctx context.Context, prompt string, opts *model.GenerationOptions) (*model.GeneratedImage, error) {
	start := d.clock.Now()

	job, err := d.Submit(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}
	data, err := d.Poll(ctx, job)
	if err != nil {
		return nil, err
	}

	img := &model.GeneratedImage{
		Data:           data,
		ElapsedMs:      d.clock.Now().Sub(start).Milliseconds(),
		ExternalTaskID: job.ExternalTaskID,
	}
	if job.Seed != nil {
		img.Seed = *job.Seed
	}
	return img, nil
}

func (d *JobDriver) fetch(ctx context.Context, job *model.GenerationJob, status *model.InferenceStatus) ([]byte, error) {
	if status.ResultRef == "" {
		return d.finish(job, nil, &UpstreamError{Op: "fetch", TaskID: job.ExternalTaskID, Message: "no output image"})
	}
	data, err := d.engine.Fetch(ctx, status.ResultRef)
	if err != nil {
		if ctx.Err() != nil {
			return d.finish(job, nil, d.cancelled(ctx, job))
		}
		return d.finish(job, nil, &UpstreamError{Op: "fetch", TaskID: job.ExternalTaskID, Transport: true, Cause: err})
	}
	if len(data) == 0 {
		return d.finish(job, nil, &UpstreamError{Op: "fetch", TaskID: job.ExternalTaskID, Message: "empty image payload"})
	}
	return d.finish(job, data, nil)
}

func (d *JobDriver) cancelled(ctx context.Context, job *model.GenerationJob) error {
	return fmt.Errorf("%w: task %s: %w", ErrUpstreamTimeout, job.ExternalTaskID, ctx.Err())
}

// finish moves the job to its terminal state and records the outcome.
func (d *JobDriver) finish(job *model.GenerationJob, data []byte, err error) ([]byte, error) {
	elapsed := d.clock.Now().Sub(job.SubmittedAt)

	switch {
	case err == nil:
		job.Status = model.JobStatusSucceeded
		job.Result = data
	case isTimeout(err):
		job.Status = model.JobStatusTimedOut
		job.Err = err
	default:
		job.Status = model.JobStatusFailed
		job.Err = err
	}

	d.metrics.RecordUpstreamJob(string(job.Status), elapsed)
	fields := []zap.Field{
		zap.String("task_id", job.ExternalTaskID),
		zap.String("status", string(job.Status)),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		d.logger.Warn("Inference job ended without result", append(fields, zap.Error(err))...)
	} else {
		d.logger.Info("Inference job succeeded", append(fields, zap.Int("bytes", len(data)))...)
	}
	return job.Result, job.Err
}

func isTimeout(err error) bool {
	return err != nil && errors.Is(err, ErrUpstreamTimeout)
}

