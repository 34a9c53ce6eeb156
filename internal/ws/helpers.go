package ws

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/identity"
)

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// authenticate resolves the caller identity from the Authorization header
// or, for browser clients that cannot set headers on websocket upgrades,
// from the token query parameter.
func authenticate(c *gin.Context, manager *identity.Manager) (identity.Identity, error) {
	token := c.GetHeader("Authorization")
	if parts := strings.SplitN(token, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		token = parts[1]
	}
	if token == "" {
		token = c.Query("token")
	}
	return manager.Verify(token)
}
