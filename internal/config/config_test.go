package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "http://localhost:8080", cfg.UpstreamURL)
	assert.True(t, cfg.NATSEnabled)
	assert.Equal(t, int64(1<<20), cfg.WSReadLimit)
	assert.Equal(t, 10*time.Second, cfg.WSHandshakeTimeout)
	assert.Equal(t, 15*time.Second, cfg.SSEKeepAlive)
	assert.Equal(t, "/metrics", cfg.MetricsPath)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("UPSTREAM_URL", "https://api.example.com")
	t.Setenv("UPSTREAM_API_KEY", "sk-test")
	t.Setenv("NATS_ENABLED", "false")
	t.Setenv("SSE_KEEPALIVE", "0s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "https://api.example.com", cfg.UpstreamURL)
	assert.Equal(t, "sk-test", cfg.UpstreamAPIKey)
	assert.False(t, cfg.NATSEnabled)
	assert.Zero(t, cfg.SSEKeepAlive)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}
