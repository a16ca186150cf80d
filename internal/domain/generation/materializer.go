package generation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/popgraph/server/internal/model"
	"github.com/popgraph/server/internal/port/outbound"
	"github.com/popgraph/server/internal/utils/clock"
	"github.com/popgraph/server/internal/utils/metrics"
)

// Storage fallback reasons.
const (
	FallbackNotConfigured = "not_configured"
	FallbackCircuitOpen   = "circuit_open"
	FallbackTimeout       = "timeout"
	FallbackUploadFailed  = "upload_failed"
)

// MaterializeRequest is one generated image ready for delivery.
type MaterializeRequest struct {
	ArtifactID string
	UserID     string
	Tier       model.Tier
	Width      int
	Height     int
	Image      *model.GeneratedImage
}

// Materializer turns raw images into deliverable artifacts.
//
// Storage failures never fail materialization: the artifact is delivered
// inline instead, with no URL.
type Materializer struct {
	storage outbound.ArtifactStoragePort
	config  *MaterializerConfig
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewMaterializer creates a new materializer. storage may be nil, in which
// case every artifact is delivered inline.
func NewMaterializer(
	storage outbound.ArtifactStoragePort,
	config *MaterializerConfig,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Materializer {
	if config == nil {
		config = DefaultMaterializerConfig()
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{
		storage: storage,
		config:  config,
		clock:   clk,
		metrics: m,
		logger:  logger,
	}
}

// Materialize watermarks the image per the user's tier and persists it.
// Exactly one of the returned artifact's URL and InlinePayload is set.
func (m *Materializer) Materialize(ctx context.Context, req *MaterializeRequest) (*model.Artifact, error) {
	if req.Image == nil || len(req.Image.Data) == 0 {
		return nil, fmt.Errorf("materialize %s: empty image", req.ArtifactID)
	}

	rule := WatermarkRuleFor(req.Tier).WithStyle(m.config.Watermark)
	data, err := ApplyWatermark(req.Image.Data, rule)
	if err != nil {
		return nil, fmt.Errorf("materialize %s: %w", req.ArtifactID, err)
	}

	artifact := &model.Artifact{
		ID:           req.ArtifactID,
		Width:        req.Width,
		Height:       req.Height,
		HasWatermark: rule.Apply,
		Seed:         req.Image.Seed,
	}

	contentType := http.DetectContentType(data)
	key := m.StorageKey(req.UserID, req.ArtifactID, contentType)

	url, reason, err := m.persist(ctx, key, data, contentType)
	if err != nil {
		m.metrics.RecordStorageFallback(reason)
		m.logger.Warn("Artifact storage failed, delivering inline",
			zap.String("artifact_id", req.ArtifactID),
			zap.String("key", key),
			zap.String("reason", reason),
			zap.Error(err),
		)
		inline := base64.StdEncoding.EncodeToString(data)
		artifact.InlinePayload = &inline
		artifact.StorageFallback = true
		return artifact, nil
	}

	thumb := ThumbnailURL(url, m.config.ThumbnailSuffix)
	artifact.URL = &url
	artifact.ThumbnailURL = &thumb
	return artifact, nil
}

func (m *Materializer) persist(ctx context.Context, key string, data []byte, contentType string) (string, string, error) {
	if m.storage == nil {
		return "", FallbackNotConfigured, outbound.ErrStorageNotConfigured
	}

	uploadCtx := ctx
	if m.config.UploadTimeout > 0 {
		var cancel context.CancelFunc
		uploadCtx, cancel = context.WithTimeout(ctx, m.config.UploadTimeout)
		defer cancel()
	}

	url, err := m.storage.Put(uploadCtx, key, data, contentType)
	if err == nil && url == "" {
		err = errors.New("storage returned empty url")
	}
	if err != nil {
		m.metrics.RecordStorageUpload(false)
		return "", fallbackReason(err), err
	}
	m.metrics.RecordStorageUpload(true)
	return url, "", nil
}

// StorageKey returns "{prefix}/{user}/{yyyy}/{mm}/{dd}/{artifact}{ext}" for the current UTC day.
func (m *Materializer) StorageKey(userID, artifactID, contentType string) string {
	day := m.clock.Now().UTC()
	key := fmt.Sprintf("%s/%s/%s%s", userID, day.Format("2006/01/02"), artifactID, extensionFor(contentType))
	if prefix := strings.Trim(m.config.KeyPrefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

// ThumbnailURL derives a thumbnail URL from a canonical artifact URL.
func ThumbnailURL(url, suffix string) string {
	if suffix == "" {
		return url
	}
	if strings.HasPrefix(suffix, "?") && strings.Contains(url, "?") {
		suffix = "&" + suffix[1:]
	}
	return url + suffix
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, outbound.ErrStorageNotConfigured):
		return FallbackNotConfigured
	case errors.Is(err, outbound.ErrStorageUnavailable):
		return FallbackCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return FallbackTimeout
	default:
		return FallbackUploadFailed
	}
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

