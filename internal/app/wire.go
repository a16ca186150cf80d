//go:build wireinject
// +build wireinject

package app

import (
	"net/http"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	// Inbound adapters
	generationhttp "github.com/popgraph/server/internal/adapter/inbound/http/generation"

	// Ports
	"github.com/popgraph/server/internal/port/inbound"
	"github.com/popgraph/server/internal/port/outbound"

	// Infrastructure
	"github.com/popgraph/server/internal/infra/config"

	// Utils
	"github.com/popgraph/server/internal/utils/logger"
	"github.com/popgraph/server/internal/utils/metrics"
)

// Dependencies holds all injected dependencies.
type Dependencies struct {
	Config     *config.Config
	DB         *gorm.DB
	Redis      goredis.UniversalClient
	HTTPClient *http.Client
	Logger     *logger.Logger
	ZapLogger  *zap.Logger
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics

	// Quota
	QuotaStores *QuotaStores

	// Domains
	GenerationDomain inbound.GenerationDomain

	// Auth
	TokenValidator outbound.TokenValidatorPort

	// HTTP Handlers
	GenerationHandler *generationhttp.Handler
}

// InitializeDependencies creates all dependencies using Wire.
func InitializeDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	wire.Build(
		AppSet,
		wire.Struct(new(Dependencies), "*"),
	)
	return nil, nil, nil
}
