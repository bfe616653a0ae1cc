package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetline/msggate/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 8080, cfg.ForwardPort)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Empty(t, cfg.StorePath)
	assert.Equal(t, "http://127.0.0.1:3500", cfg.SidecarURL)
	assert.Equal(t, 3, cfg.MaxPairingAttempts)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.Dev)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MSGGATE_ADDR", ":9090")
	t.Setenv("MSGGATE_FORWARD_PORT", "9090")
	t.Setenv("MSGGATE_STORE_PATH", "/var/lib/msggate/sessions.db")
	t.Setenv("MSGGATE_DEV", "true")
	t.Setenv("MSGGATE_ZONE", "asia-southeast1-b")
	t.Setenv("MSGGATE_SHUTDOWN_TIMEOUT", "30s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 9090, cfg.ForwardPort)
	assert.Equal(t, "/var/lib/msggate/sessions.db", cfg.StorePath)
	assert.True(t, cfg.Dev)
	assert.Equal(t, "asia-southeast1-b", cfg.Zone)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoadRejectsZeroPairingAttempts(t *testing.T) {
	t.Setenv("MSGGATE_MAX_PAIRING_ATTEMPTS", "0")

	_, err := config.Load()
	require.Error(t, err)
}
