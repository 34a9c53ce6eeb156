package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/observability"
	"chat-sync/internal/sync"
	"chat-sync/internal/telemetry"
)

// FriendHandler manages profile and friend-graph endpoints.
type FriendHandler struct {
	facade *sync.Facade
	audit  *telemetry.AuditEmitter
}

// NewFriendHandler builds a FriendHandler.
func NewFriendHandler(facade *sync.Facade, audit *telemetry.AuditEmitter) *FriendHandler {
	return &FriendHandler{facade: facade, audit: audit}
}

// EnsureProfile bootstraps the caller's private and public records.
func (h *FriendHandler) EnsureProfile(c *gin.Context) {
	ident, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	if err := h.facade.EnsureProfile(c.Request.Context(), ident); err != nil {
		h.emitAudit(c, "ERROR", "profile bootstrap failed")
		writeError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "profile ensured")
	c.JSON(http.StatusOK, gin.H{"user_id": ident.UserID})
}

// ListFriends returns the caller's friends as public profiles.
func (h *FriendHandler) ListFriends(c *gin.Context) {
	ident, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	friends, err := h.facade.Friends(c.Request.Context(), ident.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// SendRequest sends a friend request to the user owning the given email.
func (h *FriendHandler) SendRequest(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ident, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	if err := h.facade.SendFriendRequestByEmail(c.Request.Context(), ident.UserID, req.Email); err != nil {
		h.emitAudit(c, "ERROR", "friend request failed")
		writeError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "friend request sent")
	_ = observability.PublishEvent(c.Request.Context(), observability.EventFriendRequest, observability.EventEnvelope{
		EventType: observability.EventFriendRequest,
		UserID:    ident.UserID,
		RequestID: requestIDFromContext(c),
	})
	c.Status(http.StatusNoContent)
}

// AcceptRequest completes the friendship protocol with the given user.
func (h *FriendHandler) AcceptRequest(c *gin.Context) {
	otherID := c.Param("user_id")
	ident, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	if err := h.facade.AcceptFriendRequest(c.Request.Context(), ident.UserID, otherID); err != nil {
		h.emitAudit(c, "ERROR", "friend accept failed")
		writeError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "friend request accepted")
	_ = observability.PublishEvent(c.Request.Context(), observability.EventFriendAccepted, observability.EventEnvelope{
		EventType: observability.EventFriendAccepted,
		UserID:    ident.UserID,
		OtherID:   otherID,
		RequestID: requestIDFromContext(c),
	})
	c.Status(http.StatusNoContent)
}

// RejectRequest drops a pending friend request.
func (h *FriendHandler) RejectRequest(c *gin.Context) {
	otherID := c.Param("user_id")
	ident, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	if err := h.facade.RejectFriendRequest(c.Request.Context(), ident.UserID, otherID); err != nil {
		h.emitAudit(c, "ERROR", "friend reject failed")
		writeError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "friend request rejected")
	_ = observability.PublishEvent(c.Request.Context(), observability.EventFriendRejected, observability.EventEnvelope{
		EventType: observability.EventFriendRejected,
		UserID:    ident.UserID,
		OtherID:   otherID,
		RequestID: requestIDFromContext(c),
	})
	c.Status(http.StatusNoContent)
}

func (h *FriendHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
