package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/logger"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/service"
)

// Context keys set by AuthMiddleware
const (
	ContextUID           = "uid"
	ContextEmail         = "email"
	ContextEmailVerified = "email_verified"
)

// LocalDevUID is the caller identity when auth is disabled in development
const LocalDevUID = "local-dev"

// AuthMiddleware verifies the Firebase ID token in the Authorization header
// and stores the caller's identity in the gin context
func AuthMiddleware(verifier service.ITokenVerifier, disabled bool) gin.HandlerFunc {
	log := logger.Component("auth")
	return func(c *gin.Context) {
		if disabled {
			setIdentity(c, &service.AuthClaims{UID: LocalDevUID, Email: "dev@localhost", EmailVerified: true})
			c.Next()
			return
		}

		token, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			log.WithField("path", c.Request.URL.Path).Debug("missing or malformed authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "missing or invalid authorization header"})
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			log.WithFields(logrus.Fields{"path": c.Request.URL.Path, "error": err}).Info("token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

func setIdentity(c *gin.Context, claims *service.AuthClaims) {
	c.Set(ContextUID, claims.UID)
	c.Set(ContextEmail, claims.Email)
	c.Set(ContextEmailVerified, claims.EmailVerified)
}

// UID returns the authenticated caller, or "" outside AuthMiddleware
func UID(c *gin.Context) string {
	return c.GetString(ContextUID)
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
