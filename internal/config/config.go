package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	WhatsApp WhatsAppConfig
	Database DatabaseConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type BackendConfig struct {
	BaseURL        string
	WebhookTimeout time.Duration
}

type WhatsAppConfig struct {
	SessionsDir       string
	ReconnectDelay    time.Duration
	HeartbeatInterval time.Duration
	QRTerminal        bool
}

type DatabaseConfig struct {
	Driver string
	DSN    string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "3001"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Backend: BackendConfig{
			BaseURL:        strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8000"), "/"),
			WebhookTimeout: getDurationEnv("BACKEND_WEBHOOK_TIMEOUT", 5*time.Second),
		},
		WhatsApp: WhatsAppConfig{
			SessionsDir:       getEnv("WHATSAPP_SESSIONS_DIR", "sessions"),
			ReconnectDelay:    getDurationEnv("WHATSAPP_RECONNECT_DELAY", 3*time.Second),
			HeartbeatInterval: getDurationEnv("WHATSAPP_HEARTBEAT_INTERVAL", 30*time.Second),
			QRTerminal:        getBoolEnv("WHATSAPP_QR_TERMINAL", false),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite3"),
			DSN:    getEnv("DB_DSN", "file:bot.db?_foreign_keys=on"),
		},
	}

	if _, err := url.Parse(cfg.Backend.BaseURL); err != nil {
		return nil, fmt.Errorf("BACKEND_URL inválida: %w", err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
