package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/logger"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/service"
)

// retryAfterMs is the delay suggested to clients polling for a pending image
const retryAfterMs = 2000

// respondError maps a service error onto the HTTP error taxonomy
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var limitErr *service.LimitReachedError
	var upstream *service.UpstreamError

	switch {
	case errors.As(err, &limitErr):
		c.JSON(http.StatusForbidden, gin.H{
			"error":       "Monthly meal generation limit reached",
			"code":        "LIMIT_REACHED",
			"tier":        limitErr.Tier,
			"used":        limitErr.Used,
			"limit":       limitErr.Limit,
			"nextResetAt": limitErr.NextResetAt,
		})
	case errors.Is(err, service.ErrImageInProgress):
		c.Header("Retry-After", "2")
		c.JSON(http.StatusAccepted, gin.H{
			"status":       "pending",
			"retryAfterMs": retryAfterMs,
		})
	case errors.As(err, &upstream):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   upstream.Service + " request failed",
			"status":  upstream.StatusCode,
			"details": upstream.Payload,
		})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logger.Component("api").WithFields(logrus.Fields{
			"path":  c.Request.URL.Path,
			"error": err,
		}).Error("unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "message": err.Error()})
	}
}

// badRequest reports a malformed request body
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"message": err.Error(),
	})
}
