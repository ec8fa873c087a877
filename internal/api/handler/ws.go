package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"chatpulse/backend/internal/chathub"

	"github.com/gin-gonic/gin"
)

// session is the part of room and inbox sessions the upgrade path drives.
type session interface {
	Authorize(ctx context.Context) error
	Join(ctx context.Context, client chathub.Client) error
	Serve(ctx context.Context)
	Close(ctx context.Context)
}

// ServeRoom upgrades a member's connection to chat:{chat_id}.
func (h *Handler) ServeRoom(c *gin.Context) {
	userID := currentUserID(c)
	h.serve(c, userID, chathub.NewRoomSession(h.sessionDeps(), c.Param("chat_id"), userID))
}

// ServeInbox upgrades a connection to the caller's notification channel.
func (h *Handler) ServeInbox(c *gin.Context) {
	userID := currentUserID(c)
	h.serve(c, userID, chathub.NewInboxSession(h.sessionDeps(), userID))
}

// serve authorizes and registers the session before accepting the upgrade,
// so a rejected connection never touches the registry.
func (h *Handler) serve(c *gin.Context, userID string, s session) {
	ctx := c.Request.Context()

	if err := s.Authorize(ctx); err != nil {
		status := rejectionStatus(err)
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
		return
	}

	client := chathub.NewWebSocketClient(userID)
	if err := s.Join(ctx, client); err != nil {
		log.Printf("ERROR: join for user %s failed: %v", userID, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to join"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		log.Printf("WARNING: upgrade for user %s failed: %v", userID, err)
		s.Close(ctx)
		return
	}
	client.Attach(conn)
	s.Serve(ctx)
}

func rejectionStatus(err error) int {
	switch {
	case errors.Is(err, chathub.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, chathub.ErrInvalidRoom), errors.Is(err, chathub.ErrNotMember):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
