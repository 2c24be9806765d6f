package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE_BACKEND", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.StorageBackend)
	assert.Equal(t, 500, cfg.MaxTake)
	assert.Equal(t, 50, cfg.DefaultTake)
	assert.Equal(t, "codex.resonance.event", cfg.EventTypeID)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage_backend: sqlite
sqlite_path: /tmp/graph.db
max_take: 200
default_take: 25
rate_limit_rps: 10
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DEFAULT_TAKE", "40")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.StorageBackend)
	assert.Equal(t, "/tmp/graph.db", cfg.SQLitePath)
	assert.Equal(t, 200, cfg.MaxTake)
	assert.Equal(t, 40, cfg.DefaultTake)
	assert.Equal(t, 10.0, cfg.RateLimitRPS)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.StorageBackend = "postgres" }, "STORAGE_BACKEND"},
		{"max take above ceiling", func(c *Config) { c.MaxTake = 501 }, "MAX_TAKE"},
		{"default above max", func(c *Config) { c.MaxTake = 10; c.DefaultTake = 20 }, "DEFAULT_TAKE"},
		{"unknown sink", func(c *Config) { c.MetricsSink = "statsd" }, "METRICS_SINK"},
		{"rate without burst", func(c *Config) { c.RateLimitRPS = 5; c.RateLimitBurst = 0 }, "RATE_LIMIT_BURST"},
		{"sqlite without path", func(c *Config) { c.StorageBackend = BackendSQLite; c.SQLitePath = "" }, "SQLITE_PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
