// Package handler exposes the chat hub over HTTP: WebSocket endpoints for
// rooms and inboxes, the message endpoint that triggers fanout, and the
// health and metrics endpoints.
package handler

import (
	"net/http"
	"time"

	"chatpulse/backend/internal/chathub"
	"chatpulse/backend/internal/observability"
	"chatpulse/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Registry *chathub.Registry
	Presence chathub.PresenceWriter
	Storage  storage.Storage
	Auth     *Authenticator
	Redis    redis.Cmdable
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer

	RoomTTL        time.Duration
	OnlineTTL      time.Duration
	AllowedOrigins []string
}

// Handler holds the hub components shared by the routes.
type Handler struct {
	deps     Deps
	upgrader websocket.Upgrader
}

func NewHandler(deps Deps) *Handler {
	policy := newOriginPolicy(deps.AllowedOrigins)
	return &Handler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
	}
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	if h.deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	authed := r.Group("/", h.deps.Auth.Middleware())
	authed.GET("/ws/chat/:chat_id", h.ServeRoom)
	authed.GET("/ws/notifications", h.ServeInbox)
	authed.POST("/api/chats/:chat_id/messages", h.CreateMessage)
}

// Health reports whether the presence backend answers.
func (h *Handler) Health(c *gin.Context) {
	if err := h.deps.Redis.Ping(c.Request.Context()).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "channels": h.deps.Registry.ChannelCount()})
}

func (h *Handler) sessionDeps() chathub.SessionDeps {
	return chathub.SessionDeps{
		Registry:   h.deps.Registry,
		Presence:   h.deps.Presence,
		Membership: h.deps.Storage,
		Metrics:    h.deps.Metrics,
		RoomTTL:    h.deps.RoomTTL,
		OnlineTTL:  h.deps.OnlineTTL,
	}
}
