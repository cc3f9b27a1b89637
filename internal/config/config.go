// Package config loads and exposes application configuration (TOML).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath         = "config.toml"
	DefaultHTTPAddr           = ":8080"
	DefaultWSPath             = "/ws"
	DefaultStorageDriver      = StorageDriverPostgres
	DefaultPGHost             = "127.0.0.1"
	DefaultPGPort             = 5432
	DefaultPGUser             = "postgres"
	DefaultPGDatabase         = "alumnet"
	DefaultPGSSLMode          = "disable"
	DefaultSendBuffer         = 64
	DefaultWriteTimeout       = "10s"
	DefaultPingInterval       = "30s"
	DefaultAuthTimeout        = "10s"
	DefaultMaxFramesPerSecond = 20
	DefaultMaxFrameBytes      = 16 * 1024
)

// Storage drivers accepted by [storage] driver.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Storage  StorageConfig  `toml:"storage"`
	Postgres PostgresConfig `toml:"postgres"`
	Realtime RealtimeConfig `toml:"realtime"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP listen address and the websocket endpoint path.
type ServerConfig struct {
	Addr   string `toml:"addr"`
	WSPath string `toml:"ws_path"`
}

// AuthConfig holds the shared secret of the upstream session service.
// An empty secret means actor identity comes from trusted gateway headers.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `toml:"driver"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// RealtimeConfig tunes the websocket gateway.
type RealtimeConfig struct {
	SendBuffer         int    `toml:"send_buffer"`
	WriteTimeout       string `toml:"write_timeout"`
	PingInterval       string `toml:"ping_interval"`
	AuthTimeout        string `toml:"auth_timeout"`
	MaxFramesPerSecond int    `toml:"max_frames_per_second"`
	MaxFrameBytes      int64  `toml:"max_frame_bytes"`
}

// WriteTimeoutDuration returns the parsed write timeout.
func (c RealtimeConfig) WriteTimeoutDuration() time.Duration {
	return parseDurationOr(c.WriteTimeout, DefaultWriteTimeout)
}

// PingIntervalDuration returns the parsed ping interval.
func (c RealtimeConfig) PingIntervalDuration() time.Duration {
	return parseDurationOr(c.PingInterval, DefaultPingInterval)
}

// AuthTimeoutDuration returns how long a fresh connection may stay unauthenticated.
func (c RealtimeConfig) AuthTimeoutDuration() time.Duration {
	return parseDurationOr(c.AuthTimeout, DefaultAuthTimeout)
}

func parseDurationOr(raw, fallback string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:   DefaultHTTPAddr,
			WSPath: DefaultWSPath,
		},
		Storage: StorageConfig{
			Driver: DefaultStorageDriver,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Realtime: RealtimeConfig{
			SendBuffer:         DefaultSendBuffer,
			WriteTimeout:       DefaultWriteTimeout,
			PingInterval:       DefaultPingInterval,
			AuthTimeout:        DefaultAuthTimeout,
			MaxFramesPerSecond: DefaultMaxFramesPerSecond,
			MaxFrameBytes:      DefaultMaxFrameBytes,
		},
	}
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("storage.driver: unsupported driver %q", c.Storage.Driver)
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return errors.New("server.ws_path must start with /")
	}
	for name, raw := range map[string]string{
		"realtime.write_timeout": c.Realtime.WriteTimeout,
		"realtime.ping_interval": c.Realtime.PingInterval,
		"realtime.auth_timeout":  c.Realtime.AuthTimeout,
	} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Realtime.SendBuffer < 0 {
		return errors.New("realtime.send_buffer must not be negative")
	}
	return nil
}
