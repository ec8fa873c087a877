package chathub_test

import (
	"context"
	"sync"
	"testing"

	"chatpulse/backend/internal/chathub"
	"chatpulse/backend/internal/models"
	"chatpulse/backend/internal/presence"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

// MockClient is a test double for the chathub.Client interface.
// Frames pushed with Feed are handed to Run's callback in order.
type MockClient struct {
	mock.Mock
	id     string
	userID string

	mu          sync.Mutex
	received    []models.OutboundEvent
	closed      bool
	sendErr     error
	panicOnSend bool

	frames    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newMockClient(id, userID string) *MockClient {
	c := &MockClient{
		id:     id,
		userID: userID,
		frames: make(chan []byte, 10),
		done:   make(chan struct{}),
	}
	c.On("Close").Return()
	return c
}

func (c *MockClient) GetID() string     { return c.id }
func (c *MockClient) GetUserID() string { return c.userID }

func (c *MockClient) Send(event models.OutboundEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panicOnSend {
		panic("send exploded")
	}
	if c.closed {
		return chathub.ErrClientClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.received = append(c.received, event)
	return nil
}

func (c *MockClient) Run(onFrame func([]byte)) {
	for {
		select {
		case raw, ok := <-c.frames:
			if !ok {
				return
			}
			onFrame(raw)
		case <-c.done:
			return
		}
	}
}

func (c *MockClient) Close() {
	c.Called()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.done) })
}

// Feed queues a raw frame for Run.
func (c *MockClient) Feed(raw string) { c.frames <- []byte(raw) }

// Hangup ends Run as if the peer disconnected.
func (c *MockClient) Hangup() { close(c.frames) }

// Received returns a copy of every event accepted by Send.
func (c *MockClient) Received() []models.OutboundEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.OutboundEvent, len(c.received))
	copy(out, c.received)
	return out
}

func (c *MockClient) failWith(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// MockMembership is a testify mock of chathub.MembershipChecker.
type MockMembership struct {
	mock.Mock
}

func (m *MockMembership) IsChatMember(ctx context.Context, chatID, userID string) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

// newTestPresence starts a miniredis server and returns a presence store on it.
func newTestPresence(t *testing.T) (*miniredis.Miniredis, *redis.Client, *presence.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb, presence.NewStore(rdb)
}
