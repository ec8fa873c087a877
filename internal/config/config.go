// Package config loads runtime settings from the environment (and an optional
// .env file) and exposes the timing constants shared by the chat hub.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"github.com/spf13/viper"
)

// Config holds everything cmd/main.go needs to wire the server.
type Config struct {
	HTTPAddr string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	RoomPresenceTTL   time.Duration
	OnlinePresenceTTL time.Duration

	FanoutWorkers      int
	FanoutQueueSize    int
	FanoutTimeout      time.Duration
	FanoutOnlineFilter bool

	RelayEnabled   bool
	AllowedOrigins []string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: .env file not loaded, using process environment")
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "host=localhost user=user password=password dbname=chatpulse port=5432 sslmode=disable")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ROOM_PRESENCE_TTL", DefaultRoomPresenceTTL)
	v.SetDefault("ONLINE_PRESENCE_TTL", DefaultOnlinePresenceTTL)
	v.SetDefault("FANOUT_WORKERS", DefaultFanoutWorkers)
	v.SetDefault("FANOUT_QUEUE_SIZE", DefaultFanoutQueueSize)
	v.SetDefault("FANOUT_TIMEOUT", DefaultFanoutTimeout)
	v.SetDefault("FANOUT_ONLINE_FILTER", true)
	v.SetDefault("RELAY_ENABLED", false)
	v.SetDefault("ALLOWED_ORIGINS", "*")
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	dsn, err := normalizeDSN(v.GetString("DATABASE_URL"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		DatabaseDSN:        dsn,
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		RoomPresenceTTL:    v.GetDuration("ROOM_PRESENCE_TTL"),
		OnlinePresenceTTL:  v.GetDuration("ONLINE_PRESENCE_TTL"),
		FanoutWorkers:      v.GetInt("FANOUT_WORKERS"),
		FanoutQueueSize:    v.GetInt("FANOUT_QUEUE_SIZE"),
		FanoutTimeout:      v.GetDuration("FANOUT_TIMEOUT"),
		FanoutOnlineFilter: v.GetBool("FANOUT_ONLINE_FILTER"),
		RelayEnabled:       v.GetBool("RELAY_ENABLED"),
		AllowedOrigins:     splitList(v.GetString("ALLOWED_ORIGINS")),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	sanitize(cfg)
	return cfg, nil
}

func sanitize(cfg *Config) {
	if cfg.RoomPresenceTTL <= 0 {
		cfg.RoomPresenceTTL = DefaultRoomPresenceTTL
	}
	if cfg.OnlinePresenceTTL <= 0 {
		cfg.OnlinePresenceTTL = DefaultOnlinePresenceTTL
	}
	if cfg.FanoutWorkers <= 0 {
		cfg.FanoutWorkers = DefaultFanoutWorkers
	}
	if cfg.FanoutQueueSize <= 0 {
		cfg.FanoutQueueSize = DefaultFanoutQueueSize
	}
	if cfg.FanoutTimeout <= 0 {
		cfg.FanoutTimeout = DefaultFanoutTimeout
	}
}

// normalizeDSN accepts either a postgres:// URL or a key=value DSN.
func normalizeDSN(raw string) (string, error) {
	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		dsn, err := pq.ParseURL(raw)
		if err != nil {
			return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		return dsn, nil
	}
	return raw, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
