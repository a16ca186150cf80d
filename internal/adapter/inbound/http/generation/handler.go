package generationhttp

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/popgraph/server/internal/domain/generation"
	"github.com/popgraph/server/internal/domain/quota"
	"github.com/popgraph/server/internal/model"
	"github.com/popgraph/server/internal/port/inbound"
	"github.com/popgraph/server/internal/utils/middleware"
)

// Error codes returned to callers.
const (
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeUpstreamTimeout   = "UPSTREAM_TIMEOUT"
	CodeUpstreamFailure   = "UPSTREAM_FAILURE"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternalError     = "INTERNAL_ERROR"
)

// DefaultVariantCount is used when a request omits variant_count.
const DefaultVariantCount = 1

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	ErrorCode      string     `json:"error_code"`
	Message        string     `json:"message"`
	RemainingQuota *int       `json:"remaining_quota,omitempty"`
	ResetAt        *time.Time `json:"reset_at,omitempty"`
}

// Handler handles generation HTTP requests.
type Handler struct {
	domain inbound.GenerationDomain
}

// NewHandler creates a new generation handler.
func NewHandler(domain inbound.GenerationDomain) *Handler {
	return &Handler{domain: domain}
}

// RegisterRoutes registers generation routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	protected := r.Group("")
	protected.Use(authMiddleware)
	{
		protected.POST("/generations", h.Generate)
		protected.GET("/quota", h.GetQuota)
	}
}

// RegisterAdminRoutes registers generation admin routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.DELETE("/quota/:user_id", h.ResetQuota)
}

// Generate handles image generation requests.
//
//	@Summary		Generate images
//	@Description	Renders variant_count images for a prompt, subject to the caller's daily quota.
//	@Tags			generation
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		model.GenerationRequest	true	"Generation request"
//	@Success		200		{object}	model.GenerationResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		429		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Failure		504		{object}	ErrorResponse
//	@Router			/generations [post]
func (h *Handler) Generate(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		respondError(c, http.StatusUnauthorized, &ErrorResponse{ErrorCode: CodeUnauthorized, Message: "unauthorized"})
		return
	}

	var req model.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, &ErrorResponse{ErrorCode: CodeInvalidInput, Message: "malformed request body"})
		return
	}
	if req.VariantCount == 0 {
		req.VariantCount = DefaultVariantCount
	}
	req.UserID = userID
	req.Tier = middleware.GetTier(c)

	resp, err := h.domain.Generate(c.Request.Context(), &req)
	if err != nil {
		handleGenerationError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetQuota returns the caller's usage for the current UTC day.
//
//	@Summary	Get quota status
//	@Tags		generation
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	model.QuotaStatus
//	@Failure	401	{object}	ErrorResponse
//	@Failure	503	{object}	ErrorResponse
//	@Router		/quota [get]
func (h *Handler) GetQuota(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		respondError(c, http.StatusUnauthorized, &ErrorResponse{ErrorCode: CodeUnauthorized, Message: "unauthorized"})
		return
	}

	status, err := h.domain.QuotaStatus(c.Request.Context(), userID, middleware.GetTier(c))
	if err != nil {
		handleGenerationError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// ResetQuota clears a user's usage for the current UTC day.
//
//	@Summary	Reset a user's quota
//	@Tags		admin
//	@Security	BearerAuth
//	@Param		user_id	path	string	true	"User ID"
//	@Success	204
//	@Failure	400	{object}	ErrorResponse
//	@Failure	403	{object}	ErrorResponse
//	@Router		/admin/quota/{user_id} [delete]
func (h *Handler) ResetQuota(c *gin.Context) {
	if err := h.domain.ResetQuota(c.Request.Context(), c.Param("user_id")); err != nil {
		handleGenerationError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// handleGenerationError maps domain errors to HTTP responses.
// Upstream and internal details are never echoed to the caller.
func handleGenerationError(c *gin.Context, err error) {
	var exceeded *quota.ExceededError

	switch {
	case errors.As(err, &exceeded):
		remaining := exceeded.Remaining
		respondError(c, http.StatusTooManyRequests, &ErrorResponse{
			ErrorCode:      CodeRateLimitExceeded,
			Message:        "Daily generation limit reached, retry after reset_at",
			RemainingQuota: &remaining,
			ResetAt:        exceeded.ResetAt,
		})

	case errors.Is(err, quota.ErrQuotaExceeded):
		respondError(c, http.StatusTooManyRequests, &ErrorResponse{
			ErrorCode: CodeRateLimitExceeded,
			Message:   "Daily generation limit reached",
		})

	case errors.Is(err, generation.ErrInvalidRequest):
		respondError(c, http.StatusBadRequest, &ErrorResponse{
			ErrorCode: CodeInvalidInput,
			Message:   err.Error(),
		})

	case errors.Is(err, generation.ErrUpstreamTimeout):
		respondError(c, http.StatusGatewayTimeout, &ErrorResponse{
			ErrorCode: CodeUpstreamTimeout,
			Message:   "Image generation timed out, please retry later",
		})

	case errors.Is(err, generation.ErrUpstreamFailure):
		respondError(c, http.StatusBadGateway, &ErrorResponse{
			ErrorCode: CodeUpstreamFailure,
			Message:   "Image generation failed, please retry later",
		})

	case errors.Is(err, quota.ErrBackendUnavailable):
		respondError(c, http.StatusServiceUnavailable, &ErrorResponse{
			ErrorCode: CodeInternalError,
			Message:   "Service temporarily unavailable",
		})

	default:
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, &ErrorResponse{
			ErrorCode: CodeInternalError,
			Message:   "Internal server error",
		})
	}
}

func respondError(c *gin.Context, status int, body *ErrorResponse) {
	c.Set(middleware.ErrorCodeKey, body.ErrorCode)
	c.AbortWithStatusJSON(status, body)
}
