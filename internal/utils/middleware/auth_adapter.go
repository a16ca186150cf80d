package middleware

import (
	"github.com/popgraph/server/internal/port/outbound"
)

// ValidatorFunc adapts a plain function to TokenValidatorPort.
type ValidatorFunc func(token string) (*outbound.TokenClaims, error)

// ValidateToken implements TokenValidatorPort.
func (f ValidatorFunc) ValidateToken(token string) (*outbound.TokenClaims, error) {
	return f(token)
}

// Compile-time check
var _ outbound.TokenValidatorPort = ValidatorFunc(nil)
