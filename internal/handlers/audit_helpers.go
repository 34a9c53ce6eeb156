package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-sync/internal/identity"
	"chat-sync/internal/middleware"
	"chat-sync/internal/store"
	"chat-sync/internal/writer"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func identityFromContext(c *gin.Context) (identity.Identity, bool) {
	return middleware.IdentityFromContext(c)
}

func userIDFromContext(c *gin.Context) string {
	if ident, ok := identityFromContext(c); ok {
		return ident.UserID
	}
	return c.GetHeader("X-User-ID")
}

// writeError maps store and validation failures onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var validation *writer.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Reason})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
