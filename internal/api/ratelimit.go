package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/middleware"
)

// RateLimitHandler reports rate limit standing without consuming requests
type RateLimitHandler struct {
	limiters map[string]*middleware.RateLimiter
}

// NewRateLimitHandler creates a new rate limit handler
func NewRateLimitHandler(limiters map[string]*middleware.RateLimiter) *RateLimitHandler {
	return &RateLimitHandler{limiters: limiters}
}

func (h *RateLimitHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/rate-limits/:bucket", h.Status)
}

func (h *RateLimitHandler) Status(c *gin.Context) {
	bucket := c.Param("bucket")
	limiter, ok := h.limiters[bucket]
	if !ok || limiter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown rate limit bucket"})
		return
	}

	status, err := limiter.Status(c.Request.Context(), middleware.UID(c))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to check rate limit"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bucket":    bucket,
		"limit":     status.Limit,
		"remaining": status.Remaining,
		"resetAt":   status.ResetAt,
		"window":    "1h",
	})
}
