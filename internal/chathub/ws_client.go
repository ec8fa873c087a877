package chathub

import (
	"log"
	"sync"
	"time"

	"chatpulse/backend/internal/config"
	"chatpulse/backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

// WebSocketClient implements Client over a gorilla WebSocket.
//
// The client exists before the HTTP upgrade so a session can register it and
// have events buffered while the handshake completes; Attach hands it the
// upgraded connection.
type WebSocketClient struct {
	ID     string
	UserID string
	Conn   *websocket.Conn

	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// NewWebSocketClient creates a client for userID with a fresh ULID.
func NewWebSocketClient(userID string) *WebSocketClient {
	return &WebSocketClient{
		ID:     ulid.Make().String(),
		UserID: userID,
		send:   make(chan []byte, config.SendBufferSize),
	}
}

func (c *WebSocketClient) GetID() string     { return c.ID }
func (c *WebSocketClient) GetUserID() string { return c.UserID }

// Attach binds the upgraded connection. It must be called before Run.
func (c *WebSocketClient) Attach(conn *websocket.Conn) { c.Conn = conn }

// Send encodes event and queues it for the write pump.
func (c *WebSocketClient) Send(event models.OutboundEvent) error {
	data, err := event.Encode()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops the write pump, which sends a close frame and drops the socket.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Run starts the write pump and runs the read pump until the peer goes away.
func (c *WebSocketClient) Run(onFrame func([]byte)) {
	if c.Conn == nil {
		c.Close()
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()

	c.readPump(onFrame)
	c.Close()
	<-done
}

func (c *WebSocketClient) readPump(onFrame func([]byte)) {
	defer c.Conn.Close()

	c.Conn.SetReadLimit(config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("error reading from client %s: %v", c.ID, err)
			}
			return
		}
		onFrame(message)
	}
}

// writePump writes queued frames to the socket, one WebSocket message per
// event, and keeps the connection alive with control pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				// Closed by the session or the registry.
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("error writing to client %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
