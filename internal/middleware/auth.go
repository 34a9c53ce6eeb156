package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/identity"
)

const identityKey = "identity"

// AuthMiddleware validates the Authorization header and stores the caller
// identity in the request context.
func AuthMiddleware(manager *identity.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		ident, err := manager.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(identityKey, ident)
		c.Next()
	}
}

// IdentityFromContext returns the authenticated identity set by
// AuthMiddleware, or false when the request was not authenticated.
func IdentityFromContext(c *gin.Context) (identity.Identity, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return identity.Identity{}, false
	}
	ident, ok := value.(identity.Identity)
	return ident, ok
}
