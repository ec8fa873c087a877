package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"chatpulse/backend/internal/chathub"
	"chatpulse/backend/internal/models"
	"chatpulse/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

type createMessageRequest struct {
	Text        *string            `json:"text"`
	Type        models.MessageType `json:"type"`
	ReplyTo     *string            `json:"reply_to"`
	IsForwarded bool               `json:"is_forwarded"`
}

// CreateMessage stores a message from the caller. Fanout runs from the
// storage commit hook once the row is committed.
func (h *Handler) CreateMessage(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)
	chatID := c.Param("chat_id")

	if !chathub.IsValidChatID(chatID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat id"})
		return
	}

	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Type == "" {
		req.Type = models.MessageText
	}
	if !req.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown message type"})
		return
	}
	if req.Type == models.MessageText && (req.Text == nil || strings.TrimSpace(*req.Text) == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text message requires text"})
		return
	}
	if req.ReplyTo != nil && !chathub.IsValidChatID(*req.ReplyTo) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reply_to"})
		return
	}

	member, err := h.deps.Storage.IsChatMember(ctx, chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Membership lookup failed"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": chathub.ErrNotMember.Error()})
		return
	}

	msg := &models.Message{
		ChatID:      chatID,
		SenderID:    userID,
		Text:        req.Text,
		Type:        req.Type,
		ReplyToID:   req.ReplyTo,
		IsForwarded: req.IsForwarded,
	}
	committed, err := h.deps.Storage.SaveMessage(ctx, msg)
	if errors.Is(err, storage.ErrInvalidReply) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Printf("ERROR: message from %s in chat %s not saved: %v", userID, chatID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save message"})
		return
	}

	c.Data(http.StatusCreated, "application/json; charset=utf-8", committed.Payload)
}
