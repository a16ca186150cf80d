package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/popgraph/server/internal/model"
	"github.com/popgraph/server/internal/port/outbound"
)

const (
	// AuthorizationHeader is the header key for authorization.
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens.
	BearerPrefix = "Bearer "
	// UserIDKey is the context key for user ID.
	UserIDKey = "user_id"
	// TierKey is the context key for the membership tier.
	TierKey = "tier"
)

// Auth returns a middleware that validates bearer tokens.
// If the token is valid, it sets user_id and tier in the context.
// If optional is true, the middleware will not abort on missing/invalid tokens.
func Auth(validator outbound.TokenValidatorPort, optional bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			if !optional {
				abortJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header required")
				return
			}
			c.Next()
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil || claims.UserID == "" {
			if !optional {
				abortJSON(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
				return
			}
			c.Next()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(TierKey, model.ParseTier(string(claims.Tier)))

		c.Next()
	}
}

// RequireAuth returns a middleware that requires a valid bearer token.
func RequireAuth(validator outbound.TokenValidatorPort) gin.HandlerFunc {
	return Auth(validator, false)
}

// OptionalAuth returns a middleware that optionally validates bearer tokens.
func OptionalAuth(validator outbound.TokenValidatorPort) gin.HandlerFunc {
	return Auth(validator, true)
}

// RequireAdmin allows only the listed user IDs. It must run after Auth.
func RequireAdmin(adminUserIDs []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(adminUserIDs, GetUserID(c)) {
			abortJSON(c, http.StatusForbidden, "FORBIDDEN", "Admin access required")
			return
		}
		c.Next()
	}
}

// extractBearerToken extracts the bearer token from the Authorization header.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader(AuthorizationHeader)
	if strings.HasPrefix(authHeader, BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
	}
	return ""
}

// GetUserID returns the user ID from context.
// Returns an empty string if not found.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// GetTier returns the caller's tier from context, defaulting to free.
func GetTier(c *gin.Context) model.Tier {
	if val, exists := c.Get(TierKey); exists {
		if tier, ok := val.(model.Tier); ok {
			return tier
		}
	}
	return model.TierFree
}

// IsAuthenticated returns true if the user is authenticated.
func IsAuthenticated(c *gin.Context) bool {
	return GetUserID(c) != ""
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error_code": code,
		"message":    message,
	})
}
