package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/courseforge/courseforge-backend/internal/auth"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
)

const uidContextKey = "uid"

type AuthMiddleware struct {
	log      *logger.Logger
	verifier auth.TokenVerifier
}

func NewAuthMiddleware(log *logger.Logger, verifier auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		log:      log.With("middleware", "AuthMiddleware"),
		verifier: verifier,
	}
}

// RequireAuth resolves the caller before any handler runs; a bad credential
// aborts with 401 and no side effects.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := extractToken(c)
		if credential == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}
		uid, err := am.verifier.Verify(credential)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": err.Error(), "code": "unauthorized"},
			})
			return
		}
		c.Set(uidContextKey, uid)
		c.Next()
	}
}

// UserID returns the authenticated user id set by RequireAuth.
func UserID(c *gin.Context) string {
	return c.GetString(uidContextKey)
}

// extractToken accepts the Authorization header or a token query parameter;
// EventSource clients cannot set headers.
func extractToken(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
