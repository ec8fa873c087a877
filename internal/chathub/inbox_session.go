package chathub

import (
	"context"
	"log"

	"chatpulse/backend/internal/models"
)

// InboxSession is the connection handler of a user's personal notification
// channel, user:{user_id}.
type InboxSession struct {
	session
}

func NewInboxSession(deps SessionDeps, userID string) *InboxSession {
	return &InboxSession{
		session: session{
			deps:    deps,
			kind:    "inbox",
			userID:  userID,
			channel: InboxChannel(userID),
			state:   StateConnecting,
		},
	}
}

// Authorize only requires an identity: every user owns an inbox.
func (s *InboxSession) Authorize(ctx context.Context) error {
	if s.userID == "" {
		return s.reject(ErrUnauthenticated)
	}
	s.markAuthorized()
	return nil
}

// Join registers client on the inbox channel and marks the user online so
// notifications reach it before its first ping.
func (s *InboxSession) Join(ctx context.Context, client Client) error {
	if err := s.register(client); err != nil {
		return err
	}
	s.heartbeat(ctx)
	return nil
}

func (s *InboxSession) Serve(ctx context.Context) {
	s.serve(ctx, s.HandleFrame, nil)
}

// HandleFrame answers pings; every other frame is ignored.
func (s *InboxSession) HandleFrame(ctx context.Context, raw []byte) {
	frame, err := decodeFrame(raw)
	if err != nil {
		log.Printf("WARNING: dropping malformed inbox frame from user %s: %v", s.userID, err)
		return
	}
	if !frame.Type.Known() {
		log.Printf("WARNING: ignoring unknown frame type %q from user %s", frame.Type, s.userID)
		return
	}
	if frame.Type == models.FramePing {
		s.heartbeat(ctx)
		s.reply(models.PongEvent())
	}
}

// Close leaves the registry. The online marker is left to expire: the user
// may still be connected from another device.
func (s *InboxSession) Close(ctx context.Context) {
	s.close(ctx, nil)
}

func (s *InboxSession) heartbeat(ctx context.Context) {
	if err := s.deps.Presence.HeartbeatGlobal(ctx, s.userID, s.deps.onlineTTL()); err != nil {
		log.Printf("WARNING: online heartbeat for user %s failed: %v", s.userID, err)
	}
}
