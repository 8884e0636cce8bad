package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MODE", "test")
	require.NoError(t, Load())
	cfg := GlobalConfig

	assert.Equal(t, "test", cfg.Mode)
	assert.Equal(t, ":5000", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Empty(t, cfg.Redis.Addr)
	assert.NotEmpty(t, cfg.Redis.Channel)
	assert.Empty(t, cfg.Signal.AllowedOrigins)
	assert.Positive(t, cfg.Signal.HubQueueSize)
	assert.Positive(t, cfg.Signal.SendQueueSize)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ADDR", ":7000")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_CHANNEL", "rooms")
	t.Setenv("WS_SEND_QUEUE", "8")
	t.Setenv("WS_PONG_WAIT", "15")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("CALL_RETENTION_DAYS", "7")
	t.Setenv("STATS_CACHE_TTL", "250ms")
	require.NoError(t, Load())
	cfg := GlobalConfig

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "rooms", cfg.Redis.Channel)
	assert.Equal(t, 8, cfg.Signal.SendQueueSize)
	assert.Equal(t, 15*time.Second, cfg.Signal.PongWait)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Signal.AllowedOrigins)
	assert.Equal(t, 7, cfg.CallRetentionDays)
	assert.Equal(t, 250*time.Millisecond, cfg.StatsCacheTTL)
}
