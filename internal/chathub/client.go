package chathub

import (
	"errors"

	"chatpulse/backend/internal/models"
)

var (
	// ErrClientClosed is returned by Send once the client has been closed.
	ErrClientClosed = errors.New("client closed")
	// ErrSendBufferFull is returned by Send when the client cannot keep up.
	ErrSendBufferFull = errors.New("client send buffer full")
)

// Client is one live connection handle (a WebSocket today). It abstracts the
// transport so the registry and the sessions can treat every connection the
// same way.
type Client interface {
	// GetID returns the unique identifier of this connection.
	GetID() string
	// GetUserID returns the authenticated user owning the connection.
	GetUserID() string

	// Send queues an event for delivery without blocking. It fails with
	// ErrSendBufferFull or ErrClientClosed instead of waiting.
	Send(event models.OutboundEvent) error

	// Run starts the transport pumps and blocks until the connection is gone.
	// Every inbound frame is passed to onFrame in arrival order.
	Run(onFrame func([]byte))
	// Close shuts the connection down. It is safe to call more than once.
	Close()
}
