package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	v := newViper()
	v.Set("JWT_SECRET", "secret")

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 20*time.Second, cfg.RoomPresenceTTL)
	assert.Equal(t, 30*time.Second, cfg.OnlinePresenceTTL)
	assert.Equal(t, DefaultFanoutWorkers, cfg.FanoutWorkers)
	assert.True(t, cfg.FanoutOnlineFilter)
	assert.False(t, cfg.RelayEnabled)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestFromViper_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := FromViper(newViper())
	assert.Error(t, err)
}

func TestFromViper_Overrides(t *testing.T) {
	v := newViper()
	v.Set("JWT_SECRET", "secret")
	v.Set("ROOM_PRESENCE_TTL", "5s")
	v.Set("FANOUT_WORKERS", 0)
	v.Set("FANOUT_ONLINE_FILTER", false)
	v.Set("ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.RoomPresenceTTL)
	assert.Equal(t, DefaultFanoutWorkers, cfg.FanoutWorkers, "non-positive worker count falls back to default")
	assert.False(t, cfg.FanoutOnlineFilter)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := normalizeDSN("postgres://bob:pw@db.local:5433/chat?sslmode=disable")
	require.NoError(t, err)
	assert.Contains(t, dsn, "host='db.local'")
	assert.Contains(t, dsn, "port='5433'")
	assert.Contains(t, dsn, "dbname='chat'")
	assert.Contains(t, dsn, "user='bob'")

	raw := "host=localhost dbname=chat"
	dsn, err = normalizeDSN(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, dsn)
}
