package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"chatpulse/backend/internal/config"
	"chatpulse/backend/internal/models"
	"chatpulse/backend/internal/observability"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated connection")
	ErrInvalidRoom     = errors.New("invalid room identifier")
	ErrNotMember       = errors.New("user is not a member of the chat")
	ErrInvalidState    = errors.New("session is not in the expected state")
)

// State is the lifecycle position of a session.
type State int

const (
	StateConnecting State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// PresenceWriter is the part of the presence store sessions write to.
type PresenceWriter interface {
	HeartbeatRoom(ctx context.Context, chatID, userID string, ttl time.Duration) error
	HeartbeatGlobal(ctx context.Context, userID string, ttl time.Duration) error
	ClearRoom(ctx context.Context, chatID, userID string) error
}

// MembershipChecker answers whether a user may join a chat's room.
type MembershipChecker interface {
	IsChatMember(ctx context.Context, chatID, userID string) (bool, error)
}

// SessionDeps are the collaborators shared by every session.
type SessionDeps struct {
	Registry   *Registry
	Presence   PresenceWriter
	Membership MembershipChecker
	Metrics    *observability.Metrics

	RoomTTL   time.Duration
	OnlineTTL time.Duration
}

func (d SessionDeps) roomTTL() time.Duration {
	if d.RoomTTL > 0 {
		return d.RoomTTL
	}
	return config.DefaultRoomPresenceTTL
}

func (d SessionDeps) onlineTTL() time.Duration {
	if d.OnlineTTL > 0 {
		return d.OnlineTTL
	}
	return config.DefaultOnlinePresenceTTL
}

// session carries the lifecycle shared by room and inbox sessions:
// Connecting -> Joined -> Closed, with teardown run exactly once.
type session struct {
	deps    SessionDeps
	kind    string
	userID  string
	channel Channel

	mu         sync.Mutex
	state      State
	authorized bool
	client     Client
	closeOnce  sync.Once
}

// State returns the current lifecycle state.
func (s *session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Channel returns the registry channel this session subscribes to.
func (s *session) Channel() Channel { return s.channel }

func (s *session) reject(err error) error {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	return err
}

func (s *session) markAuthorized() {
	s.mu.Lock()
	s.authorized = true
	s.mu.Unlock()
}

// register subscribes client to the session channel.
func (s *session) register(client Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting || !s.authorized {
		return fmt.Errorf("%s join from %s: %w", s.kind, s.state, ErrInvalidState)
	}
	s.client = client
	s.deps.Registry.Join(s.channel, client)
	s.state = StateJoined
	s.deps.Metrics.ConnectionOpened(s.kind)
	return nil
}

// serve blocks in the client's read loop. Teardown always runs on return.
func (s *session) serve(ctx context.Context, handle func(context.Context, []byte), teardown func(context.Context)) {
	defer s.close(ctx, teardown)

	s.mu.Lock()
	client, joined := s.client, s.state == StateJoined
	s.mu.Unlock()
	if !joined {
		return
	}
	client.Run(func(raw []byte) { handle(ctx, raw) })
}

// close leaves the registry and runs teardown once. It uses a context that
// survives the request's cancellation so cleanup still reaches Redis.
func (s *session) close(ctx context.Context, teardown func(context.Context)) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		client, wasJoined := s.client, s.state == StateJoined
		s.state = StateClosed
		s.mu.Unlock()

		if !wasJoined {
			return
		}

		s.deps.Registry.Leave(s.channel, client)
		s.deps.Metrics.ConnectionClosed(s.kind)

		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.CloseTimeout)
		defer cancel()
		if teardown != nil {
			teardown(cleanupCtx)
		}
		client.Close()
	})
}

func (s *session) reply(event models.OutboundEvent) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return
	}
	if err := client.Send(event); err != nil {
		log.Printf("WARNING: reply %s to %s on %s failed: %v", event.Type, s.userID, s.channel, err)
	}
}

// decodeFrame parses a client frame; anything not matching the envelope is
// an error and the frame is dropped by the caller.
func decodeFrame(raw []byte) (models.InboundFrame, error) {
	var frame models.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return frame, err
	}
	return frame, nil
}
