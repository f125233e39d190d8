package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"relay-service/internal/middleware"
	"relay-service/internal/observability"
	"relay-service/internal/store"
	"relay-service/internal/telemetry"
)

// RelayHandler serves the message relay endpoints for the two paired
// participants.
type RelayHandler struct {
	store   store.ConversationStore
	emitter *telemetry.AuditEmitter
}

// NewRelayHandler builds a RelayHandler.
func NewRelayHandler(convStore store.ConversationStore, emitter *telemetry.AuditEmitter) *RelayHandler {
	return &RelayHandler{store: convStore, emitter: emitter}
}

// Send stores a new message addressed to the caller's partner.
func (h *RelayHandler) Send(c *gin.Context) {
	participant, ok := middleware.ParticipantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req struct {
		Text    string `json:"text"`
		LocalID string `json:"local_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := otel.Tracer("relay-service/handlers").Start(c.Request.Context(), "relay.send")
	defer span.End()

	msg, err := h.store.Append(participant, req.Text, req.LocalID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrEmptyText) || errors.Is(err, store.ErrTextTooLong) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	observability.IncMessageSent(participant.String())
	h.emitter.Emit(ctx, "send", "message "+msg.ID, requestIDFromContext(c), participant.String())
	c.JSON(http.StatusCreated, msg)
}

// List returns the full conversation history visible to the caller.
func (h *RelayHandler) List(c *gin.Context) {
	participant, ok := middleware.ParticipantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	msgs := h.store.ListFor(participant)
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Poll returns messages newer than the cursor and marks the ones addressed
// to the caller as delivered.
func (h *RelayHandler) Poll(c *gin.Context) {
	participant, ok := middleware.ParticipantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	since, err := strconv.ParseInt(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since cursor"})
		return
	}

	msgs := h.store.PollSince(participant, since)
	observability.IncPoll(participant.String())
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SetTyping updates the caller's typing state.
func (h *RelayHandler) SetTyping(c *gin.Context) {
	participant, ok := middleware.ParticipantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req struct {
		IsTyping *bool `json:"is_typing" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_typing must be a boolean"})
		return
	}

	h.store.SetTyping(participant, *req.IsTyping)
	observability.IncTypingUpdate(participant.String())
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetTyping returns the partner's typing flag, staleness-checked at read
// time.
func (h *RelayHandler) GetTyping(c *gin.Context) {
	participant, ok := middleware.ParticipantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	isTyping := h.store.GetTyping(participant.Partner())
	c.JSON(http.StatusOK, gin.H{"is_typing": isTyping})
}

// SendReadReceipt marks the referenced messages read for the caller.
// Unknown, foreign and already-read ids are skipped, not errors.
func (h *RelayHandler) SendReadReceipt(c *gin.Context) {
	participant, ok := middleware.ParticipantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req struct {
		MessageIDs []string `json:"message_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message_ids must be an array of ids"})
		return
	}

	updated := h.store.MarkRead(participant, req.MessageIDs)
	observability.AddReceiptsMarked(updated)
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated})
}

// GetReadStatus reports whether a message is marked read. Unknown ids read
// as false rather than erroring.
func (h *RelayHandler) GetReadStatus(c *gin.Context) {
	read := h.store.ReadStatus(c.Param("message_id"))
	c.JSON(http.StatusOK, gin.H{"read": read})
}

// Purge irreversibly deletes the caller's visible conversation history.
func (h *RelayHandler) Purge(c *gin.Context) {
	participant, ok := middleware.ParticipantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	ctx, span := otel.Tracer("relay-service/handlers").Start(c.Request.Context(), "relay.purge")
	defer span.End()

	h.store.Purge(participant)
	observability.IncPurge()
	h.emitter.Emit(ctx, "purge", "", requestIDFromContext(c), participant.String())
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Health is the unauthenticated liveness endpoint.
func (h *RelayHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
