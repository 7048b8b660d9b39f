package config

import (
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("HTTP_ADDR", "127.0.0.1:9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("DATABASE_URL", ":memory:")
	t.Setenv("SYNC_POLL_INTERVAL", "3s")
	t.Setenv("WS_PING_INTERVAL", "20s")

	c, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if c.HTTPAddr != "127.0.0.1:9090" {
		t.Fatalf("expected HTTP_ADDR binding, got %s", c.HTTPAddr)
	}
	if c.DatabaseURL != ":memory:" {
		t.Fatalf("expected sqlite DSN, got %s", c.DatabaseURL)
	}
	if c.ShutdownTimeout != 5*time.Second {
		t.Fatalf("expected parsed shutdown timeout, got %s", c.ShutdownTimeout)
	}
	if c.SyncPollInterval != 3*time.Second {
		t.Fatalf("expected parsed poll interval, got %s", c.SyncPollInterval)
	}
	if c.WSPingInterval != 20*time.Second {
		t.Fatalf("expected parsed ping interval, got %s", c.WSPingInterval)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	c, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if c.LogFormat != "json" {
		t.Fatalf("expected default log format json, got %s", c.LogFormat)
	}
	if c.SyncPollInterval != 10*time.Second {
		t.Fatalf("expected default poll interval 10s, got %s", c.SyncPollInterval)
	}
	if c.WSMaxMessageLen != 1<<20 {
		t.Fatalf("expected default max message length, got %d", c.WSMaxMessageLen)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("LOG_FORMAT", "xml")

	if _, err := Load(); err == nil {
		t.Fatal("expected invalid LOG_FORMAT to fail validation")
	}
}
