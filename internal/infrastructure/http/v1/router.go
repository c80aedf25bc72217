// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"landedcost/internal/core/security"
	"landedcost/internal/domain/audit"
	"landedcost/internal/domain/catalogs/product"
	"landedcost/internal/domain/documents/purchase"
	"landedcost/internal/domain/registers/stock"
	"landedcost/internal/infrastructure/cache"
	"landedcost/internal/infrastructure/http/v1/dto"
	"landedcost/internal/infrastructure/http/v1/handlers"
	"landedcost/internal/infrastructure/http/v1/middleware"
	"landedcost/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	Authorizer security.Authorizer

	Purchases *purchase.Service
	Products  *product.Service
	Stock     *stock.Service

	// History serves purchase audit history (optional)
	History audit.Reader

	// Idempotency enables X-Idempotency-Key replay when set
	Idempotency *cache.IdempotencyStore

	// HealthChecks are probed by /health/ready
	HealthChecks map[string]handlers.Pinger
	Version      string

	// Debug keeps gin in debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	dto.RegisterValidators()

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.Version, cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	registerPurchaseRoutes(v1, cfg)
	registerProductRoutes(v1, cfg)

	return router
}

// registerPurchaseRoutes registers purchase endpoints.
func registerPurchaseRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewPurchaseHandler(baseHandler, cfg.Purchases, cfg.Stock, cfg.History, cfg.Authorizer)

	group := rg.Group("/purchases")
	// Static segment first so "preview" is never parsed as an id.
	group.POST("/preview", handler.Preview)
	RegisterCRUDRoutes(group, handler)
	group.GET("/:id/allocation", handler.Allocation)
	group.GET("/:id/history", handler.History)
	group.POST("/:id/status", handler.SetStatus)
	group.POST("/:id/complete", handler.Complete)
	group.POST("/:id/cancel", handler.Cancel)
}

// registerProductRoutes registers product catalog endpoints.
func registerProductRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewProductHandler(baseHandler, cfg.Products, cfg.Stock)
	RegisterCRUDRoutes(rg.Group("/products"), handler)
}
