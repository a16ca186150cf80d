package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	// Domains
	"github.com/popgraph/server/internal/domain/generation"
	"github.com/popgraph/server/internal/domain/quota"

	// Inbound adapters
	generationhttp "github.com/popgraph/server/internal/adapter/inbound/http/generation"

	// Ports
	"github.com/popgraph/server/internal/port/inbound"
	"github.com/popgraph/server/internal/port/outbound"

	// Outbound adapters
	"github.com/popgraph/server/internal/adapter/outbound/inference"
	"github.com/popgraph/server/internal/adapter/outbound/memory"
	"github.com/popgraph/server/internal/adapter/outbound/postgres"
	redisadapter "github.com/popgraph/server/internal/adapter/outbound/redis"
	s3adapter "github.com/popgraph/server/internal/adapter/outbound/s3"
	"github.com/popgraph/server/internal/adapter/outbound/token"

	// Infrastructure
	"github.com/popgraph/server/internal/infra/cache"
	"github.com/popgraph/server/internal/infra/config"
	"github.com/popgraph/server/internal/infra/database"
	"github.com/popgraph/server/internal/infra/httpclient"

	// Utils
	"github.com/popgraph/server/internal/utils/clock"
	"github.com/popgraph/server/internal/utils/logger"
	"github.com/popgraph/server/internal/utils/metrics"
)

// Quota store backends.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// ===== Infrastructure Providers =====

// InfraSet provides infrastructure dependencies.
var InfraSet = wire.NewSet(
	ProvideDatabase,
	ProvideRedisClient,
	ProvideHTTPClient,
	ProvideLogger,
	ProvideZapLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideClock,
)

// ProvideDatabase connects to PostgreSQL when a quota store needs it.
// It returns a nil DB otherwise.
func ProvideDatabase(cfg *config.Config) (*gorm.DB, func(), error) {
	if !usesBackend(cfg, BackendPostgres) {
		return nil, func() {}, nil
	}
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("init database: %w", err)
	}
	return db, func() { _ = database.Close(db) }, nil
}

// ProvideRedisClient creates a Redis client when a quota store needs it.
// A failed connection yields a nil client, unless Redis is the primary store and
// another fallback store is configured: then an unconnected client is returned so
// the ledger serves from the fallback until Redis comes back.
func ProvideRedisClient(cfg *config.Config, zapLog *zap.Logger) (goredis.UniversalClient, func()) {
	if !usesBackend(cfg, BackendRedis) || cfg.Redis.Address == "" {
		return nil, func() {}
	}
	client, err := cache.NewRedisClient(&cfg.Redis)
	if err == nil {
		return client, func() { _ = cache.Close(client) }
	}

	if cfg.Quota.Backend == BackendRedis && cfg.Quota.Fallback != "" && cfg.Quota.Fallback != BackendRedis {
		zapLog.Warn("Redis unreachable at startup, serving quota from fallback",
			zap.String("address", cfg.Redis.Address),
			zap.String("fallback", cfg.Quota.Fallback),
			zap.Error(err),
		)
		lazy := cache.NewLazyRedisClient(&cfg.Redis)
		return lazy, func() { _ = cache.Close(lazy) }
	}

	zapLog.Warn("Redis connection failed", zap.String("address", cfg.Redis.Address), zap.Error(err))
	return nil, func() {}
}

// ProvideLogger creates the HTTP access logger.
func ProvideLogger(cfg *config.Config) *logger.Logger {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
}

// ProvideZapLogger creates a zap logger instance.
func ProvideZapLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	zapLog, err := logger.NewZapLogger(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init zap logger: %w", err)
	}
	return zapLog, func() { _ = zapLog.Sync() }, nil
}

// ProvideHTTPClient creates a shared HTTP client with connection pooling.
func ProvideHTTPClient(cfg *config.Config) *http.Client {
	return httpclient.New(cfg.HTTPClient)
}

// ProvideRegistry creates the prometheus registry served on the metrics path.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a metrics instance.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(cfg.Metrics.Namespace, reg)
}

// ProvideClock returns the wall clock.
func ProvideClock() clock.Clock {
	return clock.New()
}

// ===== Quota Providers =====

// QuotaSet provides the quota ledger.
var QuotaSet = wire.NewSet(
	ProvideQuotaStores,
	ProvideQuotaLedger,
)

// QuotaStores holds the primary and optional fallback counter stores.
type QuotaStores struct {
	Primary  outbound.QuotaStorePort
	Fallback outbound.QuotaStorePort
	// Postgres is set when either store is PostgreSQL-backed.
	Postgres *postgres.QuotaStore
}

// ProvideQuotaStores builds the stores named by quota.backend and quota.fallback.
func ProvideQuotaStores(
	cfg *config.Config,
	redis goredis.UniversalClient,
	db *gorm.DB,
	clk clock.Clock,
	zapLog *zap.Logger,
) (*QuotaStores, error) {
	stores := &QuotaStores{}

	build := func(name string) (outbound.QuotaStorePort, error) {
		switch name {
		case BackendRedis:
			if redis == nil {
				return nil, fmt.Errorf("quota store %q: redis unavailable", name)
			}
			return redisadapter.NewQuotaStore(redis), nil
		case BackendPostgres:
			if stores.Postgres != nil {
				return stores.Postgres, nil
			}
			if db == nil {
				return nil, fmt.Errorf("quota store %q: database unavailable", name)
			}
			store := postgres.NewQuotaStore(db, clk)
			if err := store.Migrate(context.Background()); err != nil {
				return nil, fmt.Errorf("migrate quota store: %w", err)
			}
			stores.Postgres = store
			return store, nil
		case BackendMemory:
			return memory.NewQuotaStore(clk), nil
		default:
			return nil, fmt.Errorf("unknown quota store %q", name)
		}
	}

	primary, err := build(cfg.Quota.Backend)
	if err != nil {
		return nil, err
	}
	stores.Primary = primary

	if cfg.Quota.Fallback != "" && cfg.Quota.Fallback != cfg.Quota.Backend {
		fallback, err := build(cfg.Quota.Fallback)
		if err != nil {
			return nil, err
		}
		stores.Fallback = fallback
	}

	zapLog.Info("Quota stores ready",
		zap.String("backend", cfg.Quota.Backend),
		zap.String("fallback", cfg.Quota.Fallback),
		zap.Bool("fail_open", cfg.Quota.FailOpen),
	)
	return stores, nil
}

// ProvideQuotaLedger creates the quota ledger.
func ProvideQuotaLedger(
	cfg *config.Config,
	stores *QuotaStores,
	clk clock.Clock,
	m *metrics.Metrics,
	zapLog *zap.Logger,
) *quota.Ledger {
	quotaCfg := quota.DefaultConfig()
	if cfg.Quota.KeyPrefix != "" {
		quotaCfg.KeyPrefix = cfg.Quota.KeyPrefix
	}
	for tier, limit := range quota.LimitsFromNames(cfg.Quota.Limits) {
		quotaCfg.Limits[tier] = limit
	}
	quotaCfg.FailOpen = cfg.Quota.FailOpen

	return quota.NewLedger(stores.Primary, stores.Fallback, quotaCfg, clk, m, zapLog.Named("quota"))
}

// ===== Generation Providers =====

// GenerationSet provides the generation pipeline and its components.
var GenerationSet = wire.NewSet(
	ProvideInferenceEngine,
	ProvideJobDriver,
	ProvideBatchOrchestrator,
	ProvideArtifactStorage,
	ProvideMaterializer,
	ProvideGenerationDomain,
)

// ProvideInferenceEngine creates the ModelScope inference client.
func ProvideInferenceEngine(cfg *config.Config, client *http.Client) outbound.InferenceEnginePort {
	return inference.NewModelScopeEngine(client, inference.Config{
		BaseURL:        cfg.Inference.BaseURL,
		APIKey:         cfg.Inference.APIKey,
		Model:          cfg.Inference.Model,
		MaxResultBytes: cfg.Inference.MaxResultBytes,
	})
}

// ProvideJobDriver creates the job driver.
func ProvideJobDriver(
	cfg *config.Config,
	engine outbound.InferenceEnginePort,
	clk clock.Clock,
	m *metrics.Metrics,
	zapLog *zap.Logger,
) *generation.JobDriver {
	driverCfg := generation.DefaultDriverConfig()
	if cfg.Inference.PollInterval > 0 {
		driverCfg.PollInterval = cfg.Inference.PollInterval
	}
	if cfg.Inference.Timeout > 0 {
		driverCfg.Timeout = cfg.Inference.Timeout
	}
	return generation.NewJobDriver(engine, driverCfg, clk, m, zapLog.Named("driver"))
}

// ProvideBatchOrchestrator creates the batch orchestrator.
func ProvideBatchOrchestrator(
	cfg *config.Config,
	driver *generation.JobDriver,
	clk clock.Clock,
	zapLog *zap.Logger,
) *generation.BatchOrchestrator {
	pacing := generation.PacingPolicy{
		Delay:       cfg.Batch.Delay,
		Concurrency: cfg.Batch.Concurrency,
	}
	return generation.NewBatchOrchestrator(driver, pacing, cfg.Batch.MaxVariants, clk, zapLog.Named("batch"))
}

// ProvideArtifactStorage creates the breaker-guarded object storage.
// It returns nil when storage is not configured, so every artifact is delivered inline.
func ProvideArtifactStorage(cfg *config.Config, zapLog *zap.Logger) (outbound.ArtifactStoragePort, error) {
	if !cfg.Storage.Configured() {
		zapLog.Warn("Object storage not configured, artifacts will be delivered inline")
		return nil, nil
	}

	s3Cfg := &s3adapter.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Region:          cfg.Storage.Region,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		Bucket:          cfg.Storage.Bucket,
		PublicBaseURL:   cfg.Storage.PublicBaseURL,
	}
	client, err := s3adapter.NewClient(context.Background(), s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	breakerCfg := s3adapter.DefaultBreakerConfig()
	if cfg.Storage.BreakerFailures > 0 {
		breakerCfg.Failures = cfg.Storage.BreakerFailures
	}
	if cfg.Storage.BreakerOpenDelay > 0 {
		breakerCfg.OpenDelay = cfg.Storage.BreakerOpenDelay
	}

	storage := s3adapter.NewArtifactStorage(client, s3Cfg)
	return s3adapter.NewBreakerStorage(storage, breakerCfg, zapLog.Named("storage")), nil
}

// ProvideMaterializer creates the output materializer.
func ProvideMaterializer(
	cfg *config.Config,
	storage outbound.ArtifactStoragePort,
	clk clock.Clock,
	m *metrics.Metrics,
	zapLog *zap.Logger,
) *generation.Materializer {
	matCfg := generation.DefaultMaterializerConfig()
	matCfg.KeyPrefix = cfg.Storage.KeyPrefix
	if cfg.Storage.ThumbnailSuffix != "" {
		matCfg.ThumbnailSuffix = cfg.Storage.ThumbnailSuffix
	}
	if cfg.Storage.UploadTimeout > 0 {
		matCfg.UploadTimeout = cfg.Storage.UploadTimeout
	}
	matCfg.Watermark = generation.WatermarkStyle{
		Text:    cfg.Watermark.Text,
		Opacity: cfg.Watermark.Opacity,
		Margin:  cfg.Watermark.Margin,
		Scale:   cfg.Watermark.Scale,
	}
	return generation.NewMaterializer(storage, matCfg, clk, m, zapLog.Named("materializer"))
}

// ProvideGenerationDomain creates the generation pipeline.
func ProvideGenerationDomain(
	cfg *config.Config,
	ledger *quota.Ledger,
	batch *generation.BatchOrchestrator,
	materializer *generation.Materializer,
	clk clock.Clock,
	m *metrics.Metrics,
	zapLog *zap.Logger,
) inbound.GenerationDomain {
	return generation.NewPipeline(
		ledger,
		batch,
		materializer,
		&generation.PipelineConfig{MaxVariants: cfg.Batch.MaxVariants},
		clk,
		m,
		zapLog.Named("pipeline"),
	)
}

// ===== Auth Providers =====

// ProvideTokenValidator creates the bearer token validator.
func ProvideTokenValidator(cfg *config.Config) (outbound.TokenValidatorPort, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required")
	}
	return token.NewJWTValidator(&token.JWTConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
	}), nil
}

// ===== HTTP Handler Providers =====

// HandlerSet provides HTTP handlers.
var HandlerSet = wire.NewSet(
	generationhttp.NewHandler,
)

// AppSet is the complete provider set.
var AppSet = wire.NewSet(
	InfraSet,
	QuotaSet,
	GenerationSet,
	ProvideTokenValidator,
	HandlerSet,
)

func usesBackend(cfg *config.Config, name string) bool {
	return cfg.Quota.Backend == name || cfg.Quota.Fallback == name
}
