package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 50*time.Millisecond, cfg.SendInterval)
	assert.Equal(t, 24*time.Hour, cfg.ProgressTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("BATCH_SIZE", "250")
	t.Setenv("SEND_INTERVAL", "200ms")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 250, cfg.BatchSize)
	assert.Equal(t, 200*time.Millisecond, cfg.SendInterval)
	assert.Equal(t, "123:abc", cfg.TelegramToken)
}

func TestLoadRejectsNonPositiveBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("SEND_INTERVAL", "fast")

	_, err := Load()
	require.Error(t, err)
}
