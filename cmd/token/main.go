// Command token mints a bearer token signed with the configured JWT secret.
// It exists for local development against the generation API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/popgraph/server/internal/adapter/outbound/token"
	"github.com/popgraph/server/internal/infra/config"
	"github.com/popgraph/server/internal/model"
)

func main() {
	userID := flag.String("user", "", "user id placed in the sub claim")
	tier := flag.String("tier", string(model.TierFree), "subscription tier: free, basic, professional")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if err := run(*userID, *tier, *ttl); err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
}

func run(userID, tier string, ttl time.Duration) error {
	if userID == "" {
		return fmt.Errorf("-user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not set")
	}

	issuer := token.NewJWTValidator(&token.JWTConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		Expiry: ttl,
	})
	signed, expiresAt, err := issuer.IssueToken(userID, model.ParseTier(tier))
	if err != nil {
		return err
	}

	fmt.Println(signed)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
