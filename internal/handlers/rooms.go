package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/observability"
	"chat-sync/internal/sync"
	"chat-sync/internal/telemetry"
)

// RoomHandler manages room endpoints.
type RoomHandler struct {
	facade *sync.Facade
	audit  *telemetry.AuditEmitter
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(facade *sync.Facade, audit *telemetry.AuditEmitter) *RoomHandler {
	return &RoomHandler{facade: facade, audit: audit}
}

// CreateRoom creates a room owned by the authenticated user.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
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

	roomID, err := h.facade.CreateRoom(c.Request.Context(), req.Title, ident.UserID)
	if err != nil {
		h.emitAudit(c, "ERROR", "room create failed")
		writeError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "room created")
	_ = observability.PublishEvent(c.Request.Context(), observability.EventRoomCreated, observability.EventEnvelope{
		EventType: observability.EventRoomCreated,
		RoomID:    roomID,
		UserID:    ident.UserID,
		RequestID: requestIDFromContext(c),
	})
	c.JSON(http.StatusCreated, gin.H{"room_id": roomID})
}

// DeleteRoom removes a room and its messages. Only members may delete.
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	roomID := c.Param("room_id")
	ident, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	member, err := h.facade.IsMember(c.Request.Context(), roomID, ident.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	if err := h.facade.DeleteRoom(c.Request.Context(), roomID); err != nil {
		h.emitAudit(c, "ERROR", "room delete failed")
		writeError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "room deleted")
	_ = observability.PublishEvent(c.Request.Context(), observability.EventRoomDeleted, observability.EventEnvelope{
		EventType: observability.EventRoomDeleted,
		RoomID:    roomID,
		UserID:    ident.UserID,
		RequestID: requestIDFromContext(c),
	})
	c.Status(http.StatusNoContent)
}

// InviteMember adds a user to the room's member set.
func (h *RoomHandler) InviteMember(c *gin.Context) {
	roomID := c.Param("room_id")
	var req struct {
		UserID string `json:"user_id" binding:"required"`
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

	member, err := h.facade.IsMember(c.Request.Context(), roomID, ident.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	if err := h.facade.InviteMember(c.Request.Context(), roomID, req.UserID); err != nil {
		h.emitAudit(c, "ERROR", "room invite failed")
		writeError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "room member invited")
	_ = observability.PublishEvent(c.Request.Context(), observability.EventMemberInvited, observability.EventEnvelope{
		EventType: observability.EventMemberInvited,
		RoomID:    roomID,
		UserID:    ident.UserID,
		OtherID:   req.UserID,
		RequestID: requestIDFromContext(c),
	})
	c.Status(http.StatusNoContent)
}

// PostMessage appends a message to the room's timeline.
func (h *RoomHandler) PostMessage(c *gin.Context) {
	roomID := c.Param("room_id")
	var req struct {
		Text string `json:"text"`
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

	member, err := h.facade.IsMember(c.Request.Context(), roomID, ident.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	messageID, err := h.facade.SendMessage(c.Request.Context(), roomID, ident, req.Text)
	if err != nil {
		h.emitAudit(c, "ERROR", "message send failed")
		writeError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "message sent")
	_ = observability.PublishEvent(c.Request.Context(), observability.EventMessageSent, observability.EventEnvelope{
		EventType: observability.EventMessageSent,
		RoomID:    roomID,
		UserID:    ident.UserID,
		RequestID: requestIDFromContext(c),
	})
	c.JSON(http.StatusCreated, gin.H{"message_id": messageID})
}

func (h *RoomHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
