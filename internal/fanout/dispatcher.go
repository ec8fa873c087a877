// Package fanout routes committed messages to connected clients: a
// chat_message to everyone viewing the room and a notify_message to each
// member who is online elsewhere.
package fanout

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"chatpulse/backend/internal/chathub"
	"chatpulse/backend/internal/config"
	"chatpulse/backend/internal/models"
	"chatpulse/backend/internal/observability"
	"chatpulse/backend/internal/presence"
)

// Publisher delivers an event to every connection on a channel. It is the
// local registry or the Redis relay.
type Publisher interface {
	Publish(ctx context.Context, channel chathub.Channel, event models.OutboundEvent) error
}

// PresenceReader is the read side of the presence store.
type PresenceReader interface {
	ActiveUsersInRoom(ctx context.Context, chatID string) presence.UserSet
	AllOnlineUsers(ctx context.Context) presence.UserSet
}

// MembershipLookup returns the current members of a chat.
type MembershipLookup interface {
	ChatMemberIDs(ctx context.Context, chatID string) ([]string, error)
}

// Options tune the dispatcher. Zero values fall back to the defaults.
type Options struct {
	Workers      int
	QueueSize    int
	Timeout      time.Duration
	OnlineFilter bool
}

// Dispatcher fans out committed messages on a bounded worker pool.
type Dispatcher struct {
	publisher  Publisher
	presence   PresenceReader
	membership MembershipLookup
	metrics    *observability.Metrics

	queue        chan models.CommittedMessage
	workers      int
	timeout      time.Duration
	onlineFilter bool
}

func NewDispatcher(pub Publisher, pr PresenceReader, ml MembershipLookup, metrics *observability.Metrics, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = config.DefaultFanoutWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = config.DefaultFanoutQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultFanoutTimeout
	}
	return &Dispatcher{
		publisher:    pub,
		presence:     pr,
		membership:   ml,
		metrics:      metrics,
		queue:        make(chan models.CommittedMessage, opts.QueueSize),
		workers:      opts.Workers,
		timeout:      opts.Timeout,
		onlineFilter: opts.OnlineFilter,
	}
}

// Enqueue hands msg to the worker pool without blocking. It is the commit
// hook of the storage layer and reports false when the queue is full.
func (d *Dispatcher) Enqueue(msg models.CommittedMessage) bool {
	select {
	case d.queue <- msg:
		return true
	default:
		log.Printf("ERROR: fanout queue full, dropping message for chat %s", msg.ChatID)
		d.metrics.FanoutDroppedInc()
		return false
	}
}

// Run starts the workers and blocks until ctx is done and they have exited.
// Messages still queued at that point are not dispatched.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx)
		}()
	}
	log.Printf("INFO: fanout dispatcher running with %d workers", d.workers)
	wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.queue:
			dctx, cancel := context.WithTimeout(ctx, d.timeout)
			if err := d.Dispatch(dctx, msg); err != nil {
				log.Printf("ERROR: fanout for chat %s failed: %v", msg.ChatID, err)
			}
			cancel()
		}
	}
}

// Dispatch delivers one committed message. Any error abandons the rest of
// the dispatch: events already published stay delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, msg models.CommittedMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("fanout panic: %v", rec)
		}
	}()
	start := time.Now()

	if err := d.publisher.Publish(ctx, chathub.RoomChannel(msg.ChatID), models.ChatMessageEvent(msg.Payload)); err != nil {
		return fmt.Errorf("publish to room: %w", err)
	}

	targets, err := d.Targets(ctx, msg)
	if err != nil {
		return err
	}

	notify := models.NotifyMessageEvent(msg.Payload)
	for _, userID := range targets {
		if err := d.publisher.Publish(ctx, chathub.InboxChannel(userID), notify); err != nil {
			return fmt.Errorf("notify %s: %w", userID, err)
		}
	}

	d.metrics.FanoutCompleted(time.Since(start), len(targets))
	return nil
}

// Targets returns the members to notify through their inbox: everyone but
// the sender who is not viewing the room and, when the online filter is
// enabled, has a live online marker. The result is sorted.
func (d *Dispatcher) Targets(ctx context.Context, msg models.CommittedMessage) ([]string, error) {
	roomActive := d.presence.ActiveUsersInRoom(ctx, msg.ChatID)

	var online presence.UserSet
	if d.onlineFilter {
		online = d.presence.AllOnlineUsers(ctx)
	}

	members, err := d.membership.ChatMemberIDs(ctx, msg.ChatID)
	if err != nil {
		return nil, fmt.Errorf("chat members of %s: %w", msg.ChatID, err)
	}

	targets := presence.NewUserSet()
	for _, id := range members {
		if id == msg.SenderID || roomActive.Has(id) {
			continue
		}
		if d.onlineFilter && !online.Has(id) {
			continue
		}
		targets.Add(id)
	}
	return targets.Sorted(), nil
}
