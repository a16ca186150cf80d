package generation

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/popgraph/server/internal/model"
	"github.com/popgraph/server/internal/utils/clock"
)

const seedModulus = 1 << 32

// Generator produces one image from a prompt.
type Generator interface {
	GenerateOne(ctx context.Context, prompt string, opts *model.GenerationOptions) (*model.GeneratedImage, error)
}

var _ Generator = (*JobDriver)(nil)

// BatchOrchestrator runs K seed-diversified variants of one prompt.
// A batch is all-or-nothing: any variant failure fails the whole batch.
type BatchOrchestrator struct {
	generator   Generator
	pacing      PacingPolicy
	maxVariants int
	clock       clock.Clock
	logger      *zap.Logger
}

// NewBatchOrchestrator creates a new batch orchestrator.
func NewBatchOrchestrator(
	generator Generator,
	pacing PacingPolicy,
	maxVariants int,
	clk clock.Clock,
	logger *zap.Logger,
) *BatchOrchestrator {
	if maxVariants <= 0 {
		maxVariants = MaxVariants
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchOrchestrator{
		generator:   generator,
		pacing:      pacing.normalized(),
		maxVariants: maxVariants,
		clock:       clk,
		logger:      logger,
	}
}

// Run generates req.VariantCount images. Position i of the result always holds
// the variant rendered with seed base+i.
func (o *BatchOrchestrator) Run(ctx context.Context, req *model.BatchRequest) ([]*model.GeneratedImage, error) {
	k := req.VariantCount
	if k == 0 {
		return []*model.GeneratedImage{}, nil
	}
	if k < 0 || k > o.maxVariants {
		return nil, invalidf("variant count %d outside [0, %d]", k, o.maxVariants)
	}

	base := o.baseSeed(req.BaseSeed)
	log := o.logger.With(
		zap.String("request_id", req.RequestID),
		zap.Int("variants", k),
		zap.Int64("base_seed", base),
	)
	log.Debug("Batch started", zap.Int("concurrency", o.pacing.Concurrency))

	var (
		images []*model.GeneratedImage
		err    error
	)
	if o.pacing.Concurrency == 1 {
		images, err = o.runSequential(ctx, req, base)
	} else {
		images, err = o.runBounded(ctx, req, base)
	}
	if err != nil {
		log.Warn("Batch failed", zap.Error(err))
		return nil, err
	}

	log.Debug("Batch completed")
	return images, nil
}

func (o *BatchOrchestrator) runSequential(ctx context.Context, req *model.BatchRequest, base int64) ([]*model.GeneratedImage, error) {
	images := make([]*model.GeneratedImage, 0, req.VariantCount)
	for i := 0; i < req.VariantCount; i++ {
		if i > 0 && o.pacing.Delay > 0 {
			if err := o.clock.Sleep(ctx, o.pacing.Delay); err != nil {
				return nil, fmt.Errorf("%w: batch interrupted before variant %d: %w", ErrUpstreamTimeout, i, err)
			}
		}
		img, err := o.variant(ctx, req, base, i)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

func (o *BatchOrchestrator) runBounded(ctx context.Context, req *model.BatchRequest, base int64) ([]*model.GeneratedImage, error) {
	images := make([]*model.GeneratedImage, req.VariantCount)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.pacing.Concurrency)

	var launchErr error
	for i := 0; i < req.VariantCount; i++ {
		if i > 0 && o.pacing.Delay > 0 {
			if err := o.clock.Sleep(gctx, o.pacing.Delay); err != nil {
				launchErr = fmt.Errorf("%w: batch interrupted before variant %d: %w", ErrUpstreamTimeout, i, err)
				break
			}
		}
		g.Go(func() error {
			img, err := o.variant(gctx, req, base, i)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}

	// A variant failure cancels gctx, so report it ahead of the interrupted launch.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if launchErr != nil {
		return nil, launchErr
	}
	return images, nil
}

func (o *BatchOrchestrator) variant(ctx context.Context, req *model.BatchRequest, base int64, i int) (*model.GeneratedImage, error) {
	seed := base + int64(i)
	img, err := o.generator.GenerateOne(ctx, req.Prompt, &model.GenerationOptions{
		Width:         req.Width,
		Height:        req.Height,
		Seed:          &seed,
		GuidanceScale: req.GuidanceScale,
	})
	if err != nil {
		return nil, fmt.Errorf("variant %d: %w", i, err)
	}
	img.Index = i
	img.Seed = seed
	return img, nil
}

func (o *BatchOrchestrator) baseSeed(explicit *int64) int64 {
	if explicit != nil {
		return *explicit
	}
	return o.clock.Now().UnixMilli() % seedModulus
}
