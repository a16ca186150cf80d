package inbound

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/popgraph/server/internal/model"
)

// GenerationDomain defines the image generation use cases.
type GenerationDomain interface {
	// Generate runs one request end to end: admission, batch, materialization, commit.
	Generate(ctx context.Context, req *model.GenerationRequest) (*model.GenerationResponse, error)

	// QuotaStatus reports today's usage for a user.
	QuotaStatus(ctx context.Context, userID string, tier model.Tier) (*model.QuotaStatus, error)

	// ResetQuota clears today's usage for a user.
	ResetQuota(ctx context.Context, userID string) error
}

// GenerationHttpPort defines HTTP handler methods for generation.
type GenerationHttpPort interface {
	Generate(c *gin.Context)
	GetQuota(c *gin.Context)
}

// GenerationAdminHttpPort defines admin HTTP handler methods for generation.
type GenerationAdminHttpPort interface {
	ResetQuota(c *gin.Context)
}
