package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"mizan/internal/application/entitlement"
	"mizan/internal/infrastructure/auth"
	"mizan/internal/infrastructure/billing"
	"mizan/internal/infrastructure/config"
	"mizan/internal/infrastructure/pubsub"
	"mizan/internal/interfaces/http/handlers"
	"mizan/internal/interfaces/http/middleware"
	"mizan/internal/shared/logger"
)

// RouterDeps carries the wired collaborators the HTTP surface needs.
type RouterDeps struct {
	Stores        *entitlement.Manager
	BillingClient *billing.HTTPClient
	Publisher     pubsub.EntitlementEventPublisher
	DB            *gorm.DB
	Redis         *redis.Client
	Config        *config.Config
	Logger        logger.Interface
}

// Router represents the HTTP router configuration
type Router struct {
	engine             *gin.Engine
	entitlementHandler *handlers.EntitlementHandler
	webhookHandler     *handlers.WebhookHandler
	healthHandler      *handlers.HealthHandler
	authMiddleware     *middleware.AuthMiddleware
	rateLimiter        *middleware.RateLimiter
	allowedOrigins     []string
	logger             logger.Interface
}

// NewRouter creates a new HTTP router with all dependencies
func NewRouter(deps RouterDeps) *Router {
	engine := gin.New()

	jwtSvc := auth.NewJWTService(deps.Config.Auth.JWT.Secret, deps.Config.Auth.JWT.AccessExpMinutes)

	var rateLimiter *middleware.RateLimiter
	if deps.Redis != nil {
		rateLimiter = middleware.NewRateLimiter(deps.Redis, 60, 1*time.Minute)
	}

	return &Router{
		engine:             engine,
		entitlementHandler: handlers.NewEntitlementHandler(deps.Stores, deps.Logger),
		webhookHandler:     handlers.NewWebhookHandler(deps.BillingClient, deps.Publisher, deps.Config.Billing.WebhookSecret, deps.Logger),
		healthHandler:      handlers.NewHealthHandler(deps.DB, deps.Redis),
		authMiddleware:     middleware.NewAuthMiddleware(jwtSvc, deps.Logger),
		rateLimiter:        rateLimiter,
		allowedOrigins:     deps.Config.Server.AllowedOrigins,
		logger:             deps.Logger,
	}
}

// SetupRoutes configures all HTTP routes
func (r *Router) SetupRoutes() {
	r.engine.Use(middleware.Logger(r.logger))
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.CORS(r.allowedOrigins))

	r.engine.GET("/health", r.healthHandler.HealthCheck)

	webhooks := r.engine.Group("/webhooks")
	{
		webhooks.POST("/billing", r.webhookHandler.HandleBillingEvent)
	}

	me := r.engine.Group("/users/me/entitlements")
	me.Use(r.authMiddleware.RequireAuth())
	{
		me.GET("", r.entitlementHandler.GetMyEntitlements)
		me.GET("/features/:key", r.entitlementHandler.CheckFeature)

		// Refreshes hit the billing provider; keep them behind the limiter.
		if r.rateLimiter != nil {
			me.POST("/refresh", r.rateLimiter.Limit(), r.entitlementHandler.Refresh)
			me.POST("/refresh-entitlements", r.rateLimiter.Limit(), r.entitlementHandler.RefreshEntitlements)
		} else {
			me.POST("/refresh", r.entitlementHandler.Refresh)
			me.POST("/refresh-entitlements", r.entitlementHandler.RefreshEntitlements)
		}
	}
}

// GetEngine returns the Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
