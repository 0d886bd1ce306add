package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/logger"
)

// Rate limit buckets
const (
	BucketScan      = "scan"
	BucketMealImage = "meal-image"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Window is the time window for rate limiting
	Window time.Duration
	// Limit is the maximum number of requests allowed in the window
	Limit int
	// Key prefix for Redis keys
	KeyPrefix string
}

// RateLimitStatus is a caller's standing in the current window
type RateLimitStatus struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// RateLimiter counts requests per user in fixed redis windows
type RateLimiter struct {
	redis  redis.Cmdable
	config RateLimitConfig
	now    func() time.Time
	log    *logrus.Entry
}

// NewRateLimiter creates a new rate limiter instance
func NewRateLimiter(redisClient redis.Cmdable, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		config: config,
		now:    time.Now,
		log:    logger.Component("ratelimit").WithField("bucket", config.KeyPrefix),
	}
}

// NewScanRateLimiter limits vision scans per user per hour
func NewScanRateLimiter(redisClient redis.Cmdable, perHour int) *RateLimiter {
	return NewRateLimiter(redisClient, RateLimitConfig{
		Window:    time.Hour,
		Limit:     perHour,
		KeyPrefix: "rate_limit:" + BucketScan,
	})
}

// NewMealImageRateLimiter limits meal image requests per user per hour
func NewMealImageRateLimiter(redisClient redis.Cmdable, perHour int) *RateLimiter {
	return NewRateLimiter(redisClient, RateLimitConfig{
		Window:    time.Hour,
		Limit:     perHour,
		KeyPrefix: "rate_limit:" + BucketMealImage,
	})
}

func (rl *RateLimiter) window() (string, time.Time) {
	windowStart := rl.now().Truncate(rl.config.Window)
	return strconv.FormatInt(windowStart.Unix(), 10), windowStart.Add(rl.config.Window)
}

func (rl *RateLimiter) key(userID, window string) string {
	return fmt.Sprintf("%s:%s:%s", rl.config.KeyPrefix, userID, window)
}

// Middleware enforces the limit for the authenticated caller. Redis failures let the request through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := UID(c)
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "user not authenticated"})
			return
		}

		allowed, remaining, resetTime, err := rl.IsAllowed(c.Request.Context(), uid)
		if err != nil {
			rl.log.WithError(err).Warn("rate limit check failed, allowing request")
			c.Header("X-RateLimit-Error", "rate limit check failed")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			retryAfter := int(resetTime.Sub(rl.now()).Seconds())
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":                "rate limit exceeded",
				"message":              fmt.Sprintf("You have exceeded the rate limit of %d requests per %v", rl.config.Limit, rl.config.Window),
				"rate_limit_remaining": remaining,
				"rate_limit_reset":     resetTime.Unix(),
				"retry_after":          retryAfter,
			})
			return
		}

		c.Next()
	}
}

// IsAllowed counts a request from the given user.
// Returns: allowed, remaining requests, reset time, error
func (rl *RateLimiter) IsAllowed(ctx context.Context, userID string) (bool, int, time.Time, error) {
	window, resetTime := rl.window()
	key := rl.key(userID, window)

	pipe := rl.redis.TxPipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, err
	}

	count := int(incrCmd.Val())
	remaining := rl.config.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.config.Limit, remaining, resetTime, nil
}

// Status reports the user's allowance without counting a request
func (rl *RateLimiter) Status(ctx context.Context, userID string) (*RateLimitStatus, error) {
	window, resetTime := rl.window()

	count, err := rl.redis.Get(ctx, rl.key(userID, window)).Int()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	remaining := rl.config.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &RateLimitStatus{Limit: rl.config.Limit, Remaining: remaining, ResetAt: resetTime}, nil
}
