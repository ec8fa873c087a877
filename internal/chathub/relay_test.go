package chathub_test

import (
	"context"
	"testing"
	"time"

	"chatpulse/backend/internal/chathub"
	"chatpulse/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelay_DeliversToEveryInstance(t *testing.T) {
	_, rdb, _ := newTestPresence(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Two registries sharing one Redis behave like two server instances.
	regA := chathub.NewRegistry(nil)
	regB := chathub.NewRegistry(nil)
	relayA := chathub.NewRelay(rdb, regA)
	relayB := chathub.NewRelay(rdb, regB)
	require.NoError(t, relayA.Start(ctx))
	require.NoError(t, relayB.Start(ctx))

	ch := chathub.RoomChannel(testChatID)
	onA := newMockClient("conn-a", "user_A")
	onB := newMockClient("conn-b", "user_B")
	regA.Join(ch, onA)
	regB.Join(ch, onB)

	require.NoError(t, relayA.Publish(ctx, ch, testEvent))

	for _, c := range []*MockClient{onA, onB} {
		assert.Eventually(t, func() bool { return len(c.Received()) == 1 }, 2*time.Second, 10*time.Millisecond)
		got := c.Received()[0]
		assert.Equal(t, models.EventChatMessage, got.Type)
		assert.JSONEq(t, string(testEvent.Message), string(got.Message))
	}
}

func TestRelay_SkipsMalformedPayloads(t *testing.T) {
	_, rdb, _ := newTestPresence(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := chathub.NewRegistry(nil)
	relay := chathub.NewRelay(rdb, reg)
	require.NoError(t, relay.Start(ctx))

	ch := chathub.InboxChannel("user_A")
	c := newMockClient("conn-a", "user_A")
	reg.Join(ch, c)

	require.NoError(t, rdb.Publish(ctx, chathub.RelayChannel, "not json").Err())
	require.NoError(t, rdb.Publish(ctx, chathub.RelayChannel, `{"type":"pong"}`).Err())
	require.NoError(t, relay.Publish(ctx, ch, models.PongEvent()))

	assert.Eventually(t, func() bool { return len(c.Received()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.PongEvent(), c.Received()[0])
}
