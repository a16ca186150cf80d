package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/popgraph/server/internal/domain/quota"
	"github.com/popgraph/server/internal/model"
	"github.com/popgraph/server/internal/port/inbound"
	"github.com/popgraph/server/internal/utils/clock"
	"github.com/popgraph/server/internal/utils/metrics"
	"github.com/popgraph/server/internal/utils/requestctx"
)

// QuotaLedger is the admission control used by the pipeline.
type QuotaLedger interface {
	Check(ctx context.Context, userID string, tier model.Tier) (*model.QuotaDecision, error)
	Increment(ctx context.Context, userID string) (int64, error)
	Status(ctx context.Context, userID string, tier model.Tier) (*model.QuotaStatus, error)
	Reset(ctx context.Context, userID string) error
}

// BatchRunner runs a batch of variants.
type BatchRunner interface {
	Run(ctx context.Context, req *model.BatchRequest) ([]*model.GeneratedImage, error)
}

// ArtifactMaterializer turns one generated image into a deliverable artifact.
type ArtifactMaterializer interface {
	Materialize(ctx context.Context, req *MaterializeRequest) (*model.Artifact, error)
}

var (
	_ QuotaLedger          = (*quota.Ledger)(nil)
	_ BatchRunner          = (*BatchOrchestrator)(nil)
	_ ArtifactMaterializer = (*Materializer)(nil)
)

// Pipeline runs a generation request end to end:
// validate, admit, generate, materialize, commit.
//
// Quota is committed once per successful request, after every artifact is
// materialized. A failed request never consumes quota.
type Pipeline struct {
	ledger       QuotaLedger
	batch        BatchRunner
	materializer ArtifactMaterializer
	config       *PipelineConfig
	clock        clock.Clock
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewPipeline creates a new generation pipeline.
func NewPipeline(
	ledger QuotaLedger,
	batch BatchRunner,
	materializer ArtifactMaterializer,
	config *PipelineConfig,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Pipeline {
	if config == nil {
		config = DefaultPipelineConfig()
	}
	if config.MaxVariants <= 0 || config.MaxVariants > MaxVariants {
		config.MaxVariants = MaxVariants
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		ledger:       ledger,
		batch:        batch,
		materializer: materializer,
		config:       config,
		clock:        clk,
		metrics:      m,
		logger:       logger,
	}
}

var _ inbound.GenerationDomain = (*Pipeline)(nil)

// Generate runs one generation request.
func (p *Pipeline) Generate(ctx context.Context, req *model.GenerationRequest) (*model.GenerationResponse, error) {
	start := p.clock.Now()
	tier := model.ParseTier(string(req.Tier))

	resp, err := p.generate(ctx, req, tier)
	elapsed := p.clock.Now().Sub(start)

	outcome := outcomeOf(err)
	artifacts := 0
	if resp != nil {
		artifacts = len(resp.Artifacts)
	}
	p.metrics.RecordGeneration(string(tier), outcome, artifacts, elapsed)

	if err != nil {
		return nil, err
	}
	resp.ElapsedMs = elapsed.Milliseconds()
	return resp, nil
}

func (p *Pipeline) generate(ctx context.Context, req *model.GenerationRequest, tier model.Tier) (*model.GenerationResponse, error) {
	width, height, err := p.validate(req)
	if err != nil {
		return nil, err
	}

	decision, err := p.ledger.Check(ctx, req.UserID, tier)
	if err != nil {
		return nil, fmt.Errorf("check quota: %w", err)
	}
	if !decision.Allowed {
		return nil, quota.NewExceededError(req.UserID, tier, decision)
	}

	ctx, requestID := requestctx.EnsureRequestID(ctx)
	log := p.logger.With(
		zap.String("request_id", requestID),
		zap.String("user_id", req.UserID),
		zap.String("tier", string(tier)),
	)

	images, err := p.batch.Run(ctx, &model.BatchRequest{
		RequestID:     requestID,
		Prompt:        req.Prompt,
		Width:         width,
		Height:        height,
		GuidanceScale: req.GuidanceScale,
		VariantCount:  req.VariantCount,
		BaseSeed:      req.Seed,
	})
	if err != nil {
		log.Warn("Generation failed", zap.Error(err))
		return nil, err
	}

	artifacts := make([]*model.Artifact, 0, len(images))
	for i, img := range images {
		artifact, err := p.materializer.Materialize(ctx, &MaterializeRequest{
			ArtifactID: fmt.Sprintf("%s-%d", requestID, i),
			UserID:     req.UserID,
			Tier:       tier,
			Width:      width,
			Height:     height,
			Image:      img,
		})
		if err != nil {
			log.Error("Materialization failed", zap.Int("index", i), zap.Error(err))
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}

	// Commit even if the caller has gone away.
	if _, err := p.ledger.Increment(context.WithoutCancel(ctx), req.UserID); err != nil {
		log.Error("Failed to commit quota usage", zap.Error(err))
	}

	log.Info("Generation completed", zap.Int("artifacts", len(artifacts)))
	return &model.GenerationResponse{
		RequestID: requestID,
		Artifacts: artifacts,
	}, nil
}

func (p *Pipeline) validate(req *model.GenerationRequest) (int, int, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return 0, 0, invalidf("prompt is required")
	}
	if req.UserID == "" {
		return 0, 0, invalidf("user id is required")
	}
	if req.VariantCount < 1 || req.VariantCount > p.config.MaxVariants {
		return 0, 0, invalidf("variant_count must be between 1 and %d", p.config.MaxVariants)
	}
	if req.GuidanceScale != nil && *req.GuidanceScale < 0 {
		return 0, 0, invalidf("guidance_scale must not be negative")
	}
	return ResolveDimensions(req.Width, req.Height, req.AspectRatio)
}

// QuotaStatus reports today's usage for a user.
func (p *Pipeline) QuotaStatus(ctx context.Context, userID string, tier model.Tier) (*model.QuotaStatus, error) {
	if userID == "" {
		return nil, invalidf("user id is required")
	}
	return p.ledger.Status(ctx, userID, tier)
}

// ResetQuota clears today's usage for a user.
func (p *Pipeline) ResetQuota(ctx context.Context, userID string) error {
	if userID == "" {
		return invalidf("user id is required")
	}
	return p.ledger.Reset(ctx, userID)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, quota.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, quota.ErrBackendUnavailable):
		return "quota_unavailable"
	case errors.Is(err, ErrUpstreamTimeout):
		return "upstream_timeout"
	case errors.Is(err, ErrUpstreamFailure):
		return "upstream_failure"
	default:
		return "internal"
	}
}
