package chathub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"chatpulse/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// RelayChannel is the Redis Pub/Sub channel shared by every instance.
const RelayChannel = "chathub:events"

type relayEnvelope struct {
	Channel Channel          `json:"channel"`
	Type    models.EventType `json:"type"`
	Message json.RawMessage  `json:"message,omitempty"`
}

// Relay broadcasts events through Redis so every instance delivers them to
// its own registry. It is a drop-in replacement for LocalPublisher when the
// service runs behind a load balancer.
type Relay struct {
	rdb      *redis.Client
	registry *Registry
}

func NewRelay(rdb *redis.Client, registry *Registry) *Relay {
	return &Relay{rdb: rdb, registry: registry}
}

// Publish sends event for channel to all instances, this one included.
func (r *Relay) Publish(ctx context.Context, channel Channel, event models.OutboundEvent) error {
	payload, err := json.Marshal(relayEnvelope{Channel: channel, Type: event.Type, Message: event.Message})
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, RelayChannel, payload).Err(); err != nil {
		return fmt.Errorf("relay publish to %s: %w", channel, err)
	}
	return nil
}

// Start subscribes to the relay channel and returns once the subscription is
// confirmed. Delivery to the local registry continues in the background
// until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	pubsub := r.rdb.Subscribe(ctx, RelayChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("relay subscribe: %w", err)
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.deliver(msg.Payload)
			}
		}
	}()
	return nil
}

func (r *Relay) deliver(payload string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Printf("Error unmarshalling relay message: %v", err)
		return
	}
	if env.Channel == "" {
		log.Printf("WARNING: relay message without channel dropped")
		return
	}
	r.registry.Publish(env.Channel, models.OutboundEvent{Type: env.Type, Message: env.Message})
}
