package outbound

import "github.com/popgraph/server/internal/model"

// TokenClaims is the caller identity carried by a bearer token.
type TokenClaims struct {
	UserID string
	Tier   model.Tier
}

// TokenValidatorPort validates bearer tokens.
type TokenValidatorPort interface {
	ValidateToken(token string) (*TokenClaims, error)
}
