package chathub

import (
	"context"
	"fmt"
	"log"

	"chatpulse/backend/internal/models"

	"github.com/google/uuid"
)

// RoomSession is the connection handler of one user viewing one chat.
type RoomSession struct {
	session
	chatID string
}

// NewRoomSession prepares a session for userID in chatID. Nothing is
// registered until Authorize and Join succeed.
func NewRoomSession(deps SessionDeps, chatID, userID string) *RoomSession {
	return &RoomSession{
		session: session{
			deps:    deps,
			kind:    "room",
			userID:  userID,
			channel: RoomChannel(chatID),
			state:   StateConnecting,
		},
		chatID: chatID,
	}
}

// Authorize checks identity, room identifier and membership. Any failure
// moves the session to Closed; a failed membership lookup counts as a refusal.
func (s *RoomSession) Authorize(ctx context.Context) error {
	if s.userID == "" {
		return s.reject(ErrUnauthenticated)
	}
	if !IsValidChatID(s.chatID) {
		return s.reject(fmt.Errorf("%q: %w", s.chatID, ErrInvalidRoom))
	}
	ok, err := s.deps.Membership.IsChatMember(ctx, s.chatID, s.userID)
	if err != nil {
		log.Printf("ERROR: membership lookup for user %s in chat %s failed: %v", s.userID, s.chatID, err)
		return s.reject(fmt.Errorf("membership lookup: %w", ErrNotMember))
	}
	if !ok {
		return s.reject(ErrNotMember)
	}
	s.markAuthorized()
	return nil
}

// Join registers client on chat:{chat_id} and records the first heartbeat.
func (s *RoomSession) Join(ctx context.Context, client Client) error {
	if err := s.register(client); err != nil {
		return err
	}
	s.heartbeat(ctx)
	log.Printf("INFO: user %s joined room %s (conn %s)", s.userID, s.chatID, client.GetID())
	return nil
}

// Serve processes frames until the connection ends, then closes the session.
func (s *RoomSession) Serve(ctx context.Context) {
	s.serve(ctx, s.HandleFrame, s.teardown)
}

// HandleFrame applies one inbound frame.
func (s *RoomSession) HandleFrame(ctx context.Context, raw []byte) {
	frame, err := decodeFrame(raw)
	if err != nil {
		log.Printf("WARNING: dropping malformed frame from user %s in room %s: %v", s.userID, s.chatID, err)
		return
	}
	if !frame.Type.Known() {
		log.Printf("WARNING: ignoring unknown frame type %q from user %s in room %s", frame.Type, s.userID, s.chatID)
		return
	}

	switch frame.Type {
	case models.FramePing:
		s.heartbeat(ctx)
		s.reply(models.PongEvent())
	case models.FrameTyping, models.FrameStopTyping, models.FrameReadMessage,
		models.FrameDeleteMessage, models.FrameEditMessage:
		// Handled by the persistence side; nothing to do on the socket.
	}
}

// Close ends the session. Safe to call from any state, any number of times.
func (s *RoomSession) Close(ctx context.Context) {
	s.close(ctx, s.teardown)
}

func (s *RoomSession) heartbeat(ctx context.Context) {
	if err := s.deps.Presence.HeartbeatRoom(ctx, s.chatID, s.userID, s.deps.roomTTL()); err != nil {
		log.Printf("WARNING: room heartbeat for user %s in chat %s failed: %v", s.userID, s.chatID, err)
	}
}

// teardown clears the room marker at once so the user stops counting as
// active in the room before the TTL runs out. The marker is per user, so it
// stays while another device of the same user still views the room.
func (s *RoomSession) teardown(ctx context.Context) {
	if s.deps.Registry.HasUser(s.channel, s.userID) {
		log.Printf("INFO: user %s closed one connection to room %s, another remains", s.userID, s.chatID)
		return
	}
	if err := s.deps.Presence.ClearRoom(ctx, s.chatID, s.userID); err != nil {
		log.Printf("WARNING: clearing room marker for user %s in chat %s failed: %v", s.userID, s.chatID, err)
	}
	log.Printf("INFO: user %s left room %s", s.userID, s.chatID)
}

// IsValidChatID accepts the canonical 36-character UUID form only.
func IsValidChatID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
