package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/popgraph/server/internal/model"
	"github.com/popgraph/server/internal/port/outbound"
)

// ErrInvalidToken is returned for tokens that fail signature or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret string
	// Issuer is checked when set.
	Issuer string
	Expiry time.Duration
}

// DefaultJWTConfig returns default JWT configuration.
func DefaultJWTConfig() *JWTConfig {
	return &JWTConfig{
		Issuer: "popgraph",
		Expiry: 24 * time.Hour,
	}
}

type tierClaims struct {
	Tier string `json:"tier,omitempty"`
	jwt.RegisteredClaims
}

// JWTValidator validates HS256 bearer tokens carrying a subject and a tier.
type JWTValidator struct {
	secret []byte
	issuer string
	expiry time.Duration
	now    func() time.Time
}

// NewJWTValidator creates a new JWT validator.
func NewJWTValidator(cfg *JWTConfig) *JWTValidator {
	if cfg == nil {
		cfg = DefaultJWTConfig()
	}
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = DefaultJWTConfig().Expiry
	}
	return &JWTValidator{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		expiry: expiry,
		now:    time.Now,
	}
}

// ValidateToken parses and verifies a token.
func (v *JWTValidator) ValidateToken(tokenString string) (*outbound.TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &tierClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &outbound.TokenClaims{
		UserID: claims.Subject,
		Tier:   model.ParseTier(claims.Tier),
	}, nil
}

// IssueToken signs a token for userID. It backs local tooling and tests.
func (v *JWTValidator) IssueToken(userID string, tier model.Tier) (string, time.Time, error) {
	now := v.now()
	expiresAt := now.Add(v.expiry)

	claims := &tierClaims{
		Tier: string(tier),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Compile-time check
var _ outbound.TokenValidatorPort = (*JWTValidator)(nil)
