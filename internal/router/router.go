package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hargapangan/pangan-monitor/config"
	"github.com/hargapangan/pangan-monitor/internal/app/controller"
	"github.com/hargapangan/pangan-monitor/internal/middleware"
)

type Router struct {
	priceController      *controller.PriceController
	comparisonController *controller.ComparisonController
	overrideController   *controller.OverrideController
	liveController       *controller.LiveController
	authMiddleware       *middleware.AuthMiddleware
	config               *config.Config
	healthChecks         map[string]HealthCheck
}

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

const healthTimeout = 2 * time.Second

func NewRouter(
	priceController *controller.PriceController,
	comparisonController *controller.ComparisonController,
	overrideController *controller.OverrideController,
	liveController *controller.LiveController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		priceController:      priceController,
		comparisonController: comparisonController,
		overrideController:   overrideController,
		liveController:       liveController,
		authMiddleware:       authMiddleware,
		config:               cfg,
		healthChecks:         make(map[string]HealthCheck),
	}
}

// AddHealthCheck reports name on /health; a failing check turns the answer into 503
func (r *Router) AddHealthCheck(name string, check HealthCheck) {
	r.healthChecks[name] = check
}

func (r *Router) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(r.healthChecks))
	for name, check := range r.healthChecks {
		if err := check(ctx); err != nil {
			middleware.GetLoggerFromContext(c).Warn("Health check failed", map[string]interface{}{
				"check": name,
				"error": err.Error(),
			})
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}

	body := gin.H{
		"status":  "healthy",
		"message": "Pangan Monitor API is running",
		"checks":  checks,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
		body["message"] = "Pangan Monitor API is running with failing dependencies"
	}
	c.JSON(status, body)
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", r.health)

	v1 := router.Group("/api/v1")
	{
		prices := v1.Group("/prices")
		{
			prices.GET("/current", r.authMiddleware.OptionalAuthenticate(), r.priceController.GetCurrentPrices)
		}

		marketPrices := v1.Group("/market-prices")
		{
			marketPrices.GET("", r.authMiddleware.OptionalAuthenticate(), r.priceController.ListMarketPrices)
			marketPrices.GET("/compare", r.authMiddleware.OptionalAuthenticate(), r.comparisonController.Compare)
			marketPrices.GET("/compare/export", r.authMiddleware.OptionalAuthenticate(), r.comparisonController.ExportCompare)
			marketPrices.GET("/trends", r.authMiddleware.OptionalAuthenticate(), r.comparisonController.GetTrends)
			marketPrices.POST("", r.authMiddleware.Authenticate(), r.priceController.CreateMarketPrice)
			marketPrices.PUT("/:id", r.authMiddleware.Authenticate(), r.priceController.UpdateMarketPrice)
			marketPrices.DELETE("/:id", r.authMiddleware.Authenticate(), r.priceController.DeleteMarketPrice)
		}

		overrides := v1.Group("/overrides")
		overrides.Use(r.authMiddleware.Authenticate())
		{
			overrides.GET("", r.overrideController.History)
			overrides.POST("", r.overrideController.Submit)
			overrides.POST("/preview", r.overrideController.Preview)
			overrides.POST("/evidence/presigned-url", r.overrideController.PresignEvidence)
		}

		// token comes in the query string
		v1.GET("/ws/prices", r.authMiddleware.Authenticate(), r.liveController.WebSocketHandler)
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
