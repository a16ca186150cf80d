package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/popgraph/server/cmd/server/docs" // swagger docs
	"github.com/popgraph/server/internal/infra/config"
	"github.com/popgraph/server/internal/utils/middleware"
)

const purgeInterval = time.Hour

// App represents the application.
type App struct {
	config *config.Config
	deps   *Dependencies
	router *gin.Engine

	cleanup     func()
	stopJanitor context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	deps, cleanup, err := InitializeDependencies(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize dependencies: %w", err)
	}

	app := &App{
		config:  cfg,
		deps:    deps,
		cleanup: cleanup,
	}

	app.router = app.setupRouter()
	app.registerRoutes()
	app.startJanitor()

	return app, nil
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	// Set Gin mode based on environment
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Apply global middleware
	r.Use(middleware.Recovery(a.deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.deps.Logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(a.config.Server.AllowOrigins)))
	r.Use(middleware.Metrics(a.deps.Metrics))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if a.config.Metrics.Enabled {
		path := a.config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.HandlerFor(a.deps.Registry, promhttp.HandlerOpts{})))
	}

	// Swagger documentation endpoint
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	return r
}

// registerRoutes registers all API routes.
func (a *App) registerRoutes() {
	v1 := a.router.Group("/api/v1")
	auth := middleware.RequireAuth(a.deps.TokenValidator)

	a.deps.GenerationHandler.RegisterRoutes(v1, auth)

	admin := v1.Group("/admin")
	admin.Use(auth, middleware.RequireAdmin(a.config.Auth.AdminUserIDs))
	a.deps.GenerationHandler.RegisterAdminRoutes(admin)
}

// startJanitor periodically removes expired PostgreSQL quota rows.
func (a *App) startJanitor() {
	store := a.deps.QuotaStores.Postgres
	if store == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.stopJanitor = cancel

	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := store.PurgeExpired(ctx)
				if err != nil {
					a.deps.ZapLogger.Warn("Purge expired quota counters failed", zap.Error(err))
					continue
				}
				if n > 0 {
					a.deps.ZapLogger.Debug("Purged expired quota counters", zap.Int64("rows", n))
				}
			}
		}
	}()
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Logger returns the application's structured logger.
func (a *App) Logger() *zap.Logger {
	return a.deps.ZapLogger
}

// Stop stops the application and releases resources.
func (a *App) Stop() {
	if a.stopJanitor != nil {
		a.stopJanitor()
	}
	if a.cleanup != nil {
		a.cleanup()
	}
}
