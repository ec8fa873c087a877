package config

import "time"

const (
	// Presence
	DefaultRoomPresenceTTL   = 20 * time.Second
	DefaultOnlinePresenceTTL = 30 * time.Second
	PresenceScanCount        = 100

	// WebSocket
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 8192
	SendBufferSize = 256

	// Fanout
	DefaultFanoutWorkers   = 4
	DefaultFanoutQueueSize = 1024
	DefaultFanoutTimeout   = 5 * time.Second

	// Session teardown runs on a detached context bounded by this timeout.
	CloseTimeout = 2 * time.Second
)
