package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables
// or an optional config file.
type Config struct {
	AppEnv   string `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr string `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`

	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	// DATABASE_URL selects the storage engine by scheme:
	// postgres://... for PostgreSQL, anything else is treated as a
	// SQLite path (file or :memory:).
	DatabaseURL string `mapstructure:"DATABASE_URL" validate:"required"`

	// SyncPollInterval is the default delta-poll cadence handed to clients.
	SyncPollInterval time.Duration `mapstructure:"SYNC_POLL_INTERVAL" validate:"required"`

	// WriteTimeout bounds a single websocket write; PingInterval drives
	// keepalive pings and must be shorter than PongWait.
	WSWriteTimeout  time.Duration `mapstructure:"WS_WRITE_TIMEOUT" validate:"required"`
	WSPingInterval  time.Duration `mapstructure:"WS_PING_INTERVAL" validate:"required"`
	WSPongWait      time.Duration `mapstructure:"WS_PONG_WAIT" validate:"required"`
	WSMaxMessageLen int64         `mapstructure:"WS_MAX_MESSAGE_LEN" validate:"gte=1024"`

	GoMaxProcs int `mapstructure:"GOMAXPROCS" validate:"gte=0,lte=4096"`
}

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Load initializes configuration using Viper. It loads from .env if present,
// applies defaults, binds env vars, and validates the result.
func Load() (*Config, error) {
	// Load .env if present (non-fatal)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DATABASE_URL", "graph-studio.db")
	v.SetDefault("SYNC_POLL_INTERVAL", "10s")
	v.SetDefault("WS_WRITE_TIMEOUT", "10s")
	v.SetDefault("WS_PING_INTERVAL", "25s")
	v.SetDefault("WS_PONG_WAIT", "60s")
	v.SetDefault("WS_MAX_MESSAGE_LEN", 1<<20)
	v.SetDefault("GOMAXPROCS", 0)

	// Optional config file
	_ = v.ReadInConfig()

	// Bind env without prefix for convenience
	keys := []string{
		"APP_ENV",
		"HTTP_ADDR",
		"SHUTDOWN_TIMEOUT",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"DATABASE_URL",
		"SYNC_POLL_INTERVAL",
		"WS_WRITE_TIMEOUT",
		"WS_PING_INTERVAL",
		"WS_PONG_WAIT",
		"WS_MAX_MESSAGE_LEN",
		"GOMAXPROCS",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// Duration values may arrive as plain strings from the environment.
	durations := map[string]*time.Duration{
		"SHUTDOWN_TIMEOUT":   &c.ShutdownTimeout,
		"SYNC_POLL_INTERVAL": &c.SyncPollInterval,
		"WS_WRITE_TIMEOUT":   &c.WSWriteTimeout,
		"WS_PING_INTERVAL":   &c.WSPingInterval,
		"WS_PONG_WAIT":       &c.WSPongWait,
	}
	for key, dst := range durations {
		if s := v.GetString(key); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.GoMaxProcs > 0 {
		runtime.GOMAXPROCS(c.GoMaxProcs)
	}

	cfg = &c
	return cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}
