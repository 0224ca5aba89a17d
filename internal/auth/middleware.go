package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fslongjin/billsync/internal/security"
)

const (
	ContextKeyAuthMethod = "auth_method"
	AuthMethodAPIKey     = "api_key"
)

// APIKeyMiddleware requires "Authorization: Bearer <key>" matching the
// configured operator key. Only the SHA-256 hash of the key is kept in memory.
// An empty key disables authentication.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	if apiKey == "" {
		return func(c *gin.Context) { c.Next() }
	}
	keyHash := security.HashToken(apiKey)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "UNAUTHORIZED", "message": "authentication required"},
			})
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" || !security.EqualHash(token, keyHash) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "UNAUTHORIZED", "message": "invalid API key"},
			})
			return
		}
		c.Set(ContextKeyAuthMethod, AuthMethodAPIKey)
		c.Next()
	}
}
