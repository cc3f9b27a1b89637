package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultWSPath, cfg.Server.WSPath)
	assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 10*time.Second, cfg.Realtime.WriteTimeoutDuration())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9090"

[storage]
driver = "memory"

[realtime]
ping_interval = "5s"
send_buffer = 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, DefaultWSPath, cfg.Server.WSPath)
	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.Realtime.PingIntervalDuration())
	assert.Equal(t, 8, cfg.Realtime.SendBuffer)
	assert.Equal(t, DefaultPGDatabase, cfg.Postgres.Database)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }, true},
		{"relative ws path", func(c *Config) { c.Server.WSPath = "ws" }, true},
		{"bad duration", func(c *Config) { c.Realtime.AuthTimeout = "soon" }, true},
		{"negative buffer", func(c *Config) { c.Realtime.SendBuffer = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDurationFallback(t *testing.T) {
	rc := RealtimeConfig{AuthTimeout: "-1s"}
	assert.Equal(t, 10*time.Second, rc.AuthTimeoutDuration())
}
