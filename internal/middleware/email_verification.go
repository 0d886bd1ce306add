package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireEmailVerification blocks callers whose token does not carry a verified email
func RequireEmailVerification() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}

		if !c.GetBool(ContextEmailVerified) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "email verification required",
				"message": "Please verify your email address to access this feature",
				"email":   c.GetString(ContextEmail),
			})
			return
		}

		c.Next()
	}
}
