package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/middleware"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/service"
)

// HealthCheck reports a named dependency's health
type HealthCheck func(ctx context.Context) error

// Dependencies are the services the HTTP surface is built from
type Dependencies struct {
	Verifier     service.ITokenVerifier
	AuthDisabled bool

	Scans        service.IScanService
	Categorizer  service.ICategorizer
	Meals        service.IMealService
	Images       service.IRecipeImageService
	Entitlements service.IEntitlementsService
	Billing      service.IBillingService
	Uploads      service.IUploadService
	Sessions     service.ISessionService

	// RateLimiters by bucket; a missing bucket is not limited
	RateLimiters map[string]*middleware.RateLimiter
	HealthChecks map[string]HealthCheck
}

// RegisterRoutes registers all API routes
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	health := healthHandler(deps.HealthChecks)
	router.GET("/health", health)
	router.GET("/api/health", health)

	public := router.Group("/api")
	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(deps.Verifier, deps.AuthDisabled))

	NewScanHandler(deps.Scans, deps.Categorizer, deps.RateLimiters[middleware.BucketScan]).RegisterRoutes(protected)
	NewMealHandler(deps.Meals, deps.Images, deps.RateLimiters[middleware.BucketMealImage]).RegisterRoutes(protected)
	NewUploadHandler(deps.Uploads).RegisterRoutes(protected)

	sessions := NewSessionHandler(deps.Sessions)
	sessions.RegisterRoutes(protected)
	sessions.RegisterPublicRoutes(public)

	billing := NewBillingHandler(deps.Billing, deps.Entitlements)
	billing.RegisterRoutes(protected)
	billing.RegisterPublicRoutes(public)

	NewRateLimitHandler(deps.RateLimiters).RegisterRoutes(protected)
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		components := gin.H{}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				components[name] = err.Error()
				healthy = false
				continue
			}
			components[name] = "ok"
		}

		status := http.StatusOK
		body := gin.H{"status": "healthy", "message": "PlatelyAI API is running"}
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
		if len(components) > 0 {
			body["components"] = components
		}
		c.JSON(status, body)
	}
}

// withLimit prepends the limiter's middleware when one is configured
func withLimit(rl *middleware.RateLimiter, h gin.HandlerFunc) []gin.HandlerFunc {
	if rl == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{rl.Middleware(), h}
}
