// Package chathub holds the connection registry and the per-connection
// sessions of the real-time chat layer: room sessions (one chat) and inbox
// sessions (a user's notifications).
package chathub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"chatpulse/backend/internal/models"
	"chatpulse/backend/internal/observability"
)

// Registry maps channel names to the connections subscribed to them.
// It is safe for concurrent use by sessions and dispatchers.
type Registry struct {
	mu       sync.RWMutex
	channels map[Channel]map[string]Client
	metrics  *observability.Metrics
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(metrics *observability.Metrics) *Registry {
	return &Registry{
		channels: make(map[Channel]map[string]Client),
		metrics:  metrics,
	}
}

// Join subscribes client to channel. A channel may hold any number of
// connections, including several of the same user.
func (r *Registry) Join(channel Channel, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.channels[channel]
	if !ok {
		subs = make(map[string]Client)
		r.channels[channel] = subs
	}
	subs[client.GetID()] = client
}

// Leave unsubscribes client from channel and reports whether it was there.
// Empty channels are dropped.
func (r *Registry) Leave(channel Channel, client Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.channels[channel]
	if !ok {
		return false
	}
	if _, ok := subs[client.GetID()]; !ok {
		return false
	}
	delete(subs, client.GetID())
	if len(subs) == 0 {
		delete(r.channels, channel)
	}
	return true
}

// Publish hands event to every connection subscribed to channel and returns
// how many accepted it. Deliveries are independent: a connection that fails
// is logged, counted, removed and closed, and the others still get the event.
func (r *Registry) Publish(channel Channel, event models.OutboundEvent) int {
	clients := r.snapshot(channel)
	if len(clients) == 0 {
		return 0
	}

	delivered := 0
	var failed []Client
	for _, client := range clients {
		if err := r.deliver(client, event); err != nil {
			log.Printf("WARNING: delivery of %s to %s (user %s) on %s failed: %v",
				event.Type, client.GetID(), client.GetUserID(), channel, err)
			r.metrics.DeliveryFailed(failureReason(err))
			failed = append(failed, client)
			continue
		}
		r.metrics.EventDelivered(string(event.Type))
		delivered++
	}

	r.removeFailed(channel, failed)
	return delivered
}

// Subscribers returns the number of connections on channel.
func (r *Registry) Subscribers(channel Channel) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[channel])
}

// HasUser reports whether any connection of userID is still on channel.
func (r *Registry) HasUser(channel Channel, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.channels[channel] {
		if c.GetUserID() == userID {
			return true
		}
	}
	return false
}

// ChannelCount returns the number of channels with at least one connection.
func (r *Registry) ChannelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Shutdown closes every registered connection. Each session then runs its
// own teardown and leaves the registry.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	var clients []Client
	for _, subs := range r.channels {
		for _, c := range subs {
			clients = append(clients, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range clients {
		safeClose(c)
	}
	log.Printf("Closed %d client connections", len(clients))
}

// WaitEmpty blocks until every session has left the registry or ctx ends.
func (r *Registry) WaitEmpty(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for r.ChannelCount() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// snapshot copies the subscribers of channel so delivery runs without the lock.
func (r *Registry) snapshot(channel Channel) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.channels[channel]
	clients := make([]Client, 0, len(subs))
	for _, c := range subs {
		clients = append(clients, c)
	}
	return clients
}

func (r *Registry) deliver(client Client, event models.OutboundEvent) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &deliveryPanic{value: rec}
		}
	}()
	return client.Send(event)
}

func (r *Registry) removeFailed(channel Channel, failed []Client) {
	for _, c := range failed {
		if r.Leave(channel, c) {
			safeClose(c)
		}
	}
}

func safeClose(c Client) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Recovered from panic while closing client %s: %v", c.GetID(), rec)
		}
	}()
	c.Close()
}

type deliveryPanic struct{ value any }

func (p *deliveryPanic) Error() string { return fmt.Sprintf("panic during send: %v", p.value) }

func failureReason(err error) string {
	var p *deliveryPanic
	switch {
	case errors.Is(err, ErrSendBufferFull):
		return "buffer_full"
	case errors.Is(err, ErrClientClosed):
		return "closed"
	case errors.As(err, &p):
		return "panic"
	default:
		return "other"
	}
}

// LocalPublisher delivers straight into this process's registry.
type LocalPublisher struct {
	Registry *Registry
}

func (p LocalPublisher) Publish(_ context.Context, channel Channel, event models.OutboundEvent) error {
	p.Registry.Publish(channel, event)
	return nil
}
