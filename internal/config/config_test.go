package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"SERVER_PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT",
		"SERVER_IDLE_TIMEOUT", "SERVER_SHUTDOWN_TIMEOUT",
		"BACKEND_URL", "BACKEND_WEBHOOK_TIMEOUT",
		"WHATSAPP_SESSIONS_DIR", "WHATSAPP_RECONNECT_DELAY",
		"WHATSAPP_HEARTBEAT_INTERVAL", "WHATSAPP_QR_TERMINAL",
		"DB_DRIVER", "DB_DSN",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.WebhookTimeout)
	assert.Equal(t, "sessions", cfg.WhatsApp.SessionsDir)
	assert.Equal(t, 3*time.Second, cfg.WhatsApp.ReconnectDelay)
	assert.Equal(t, 30*time.Second, cfg.WhatsApp.HeartbeatInterval)
	assert.False(t, cfg.WhatsApp.QRTerminal)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "file:bot.db?_foreign_keys=on", cfg.Database.DSN)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("BACKEND_URL", "http://backend:9000/")
	t.Setenv("BACKEND_WEBHOOK_TIMEOUT", "2s")
	t.Setenv("WHATSAPP_SESSIONS_DIR", "/var/lib/bot/sessoes")
	t.Setenv("WHATSAPP_RECONNECT_DELAY", "500ms")
	t.Setenv("WHATSAPP_QR_TERMINAL", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "http://backend:9000", cfg.Backend.BaseURL, "barra final deve ser removida")
	assert.Equal(t, 2*time.Second, cfg.Backend.WebhookTimeout)
	assert.Equal(t, "/var/lib/bot/sessoes", cfg.WhatsApp.SessionsDir)
	assert.Equal(t, 500*time.Millisecond, cfg.WhatsApp.ReconnectDelay)
	assert.True(t, cfg.WhatsApp.QRTerminal)
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("WHATSAPP_RECONNECT_DELAY", "depois do almoço")
	t.Setenv("WHATSAPP_QR_TERMINAL", "talvez")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.WhatsApp.ReconnectDelay)
	assert.False(t, cfg.WhatsApp.QRTerminal)
}
