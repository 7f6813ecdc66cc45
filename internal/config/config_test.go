package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8080", cfg.Server.HTTP.Address)
	assert.Equal(t, 100, cfg.Game.MaxTables)
	assert.Equal(t, "sqlite", cfg.Catalog.Driver)
	assert.Equal(t, "DOASD", cfg.Catalog.API.Set)
	assert.Equal(t, 10, cfg.Catalog.API.MaxPages)
	assert.Equal(t, 50*time.Millisecond, cfg.Catalog.API.PageDelay)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  http:
    address: "127.0.0.1:9000"
  grpc:
    enabled: false
  websocket:
    allowed_origins: ["http://localhost:5173"]
game:
  max_tables: 4
  shuffle_seed: 99
  replay:
    enabled: true
    directory: /tmp/replays
catalog:
  driver: postgres
  dsn: postgres://sandbox@localhost/cards
  api:
    page_delay: 250ms
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.HTTP.Address)
	assert.False(t, cfg.Server.GRPC.Enabled)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.WebSocket.AllowedOrigins)
	assert.Equal(t, 4, cfg.Game.MaxTables)
	assert.Equal(t, uint64(99), cfg.Game.ShuffleSeed)
	assert.True(t, cfg.Game.Replay.Enabled)
	assert.Equal(t, "postgres", cfg.Catalog.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Catalog.API.PageDelay)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	// untouched keys keep their defaults
	assert.Equal(t, 15*time.Second, cfg.Server.HTTP.ReadTimeout)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SANDBOX_SERVER_HTTP_ADDRESS", ":7070")
	t.Setenv("SANDBOX_GAME_MAX_TABLES", "7")
	t.Setenv("SANDBOX_LOGGING_FORMAT", "json")

	cfg, err := Load(writeConfig(t, "game:\n  max_tables: 3\n"))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.HTTP.Address)
	assert.Equal(t, 7, cfg.Game.MaxTables)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty http address", func(c *Config) { c.Server.HTTP.Address = "" }},
		{"empty grpc address", func(c *Config) { c.Server.GRPC.Address = "" }},
		{"zero streams", func(c *Config) { c.Server.GRPC.MaxConcurrentStreams = 0 }},
		{"zero send buffer", func(c *Config) { c.Server.WebSocket.SendBuffer = 0 }},
		{"zero tables", func(c *Config) { c.Game.MaxTables = 0 }},
		{"replay without directory", func(c *Config) {
			c.Game.Replay.Enabled = true
			c.Game.Replay.Directory = ""
		}},
		{"unknown driver", func(c *Config) { c.Catalog.Driver = "mysql" }},
		{"empty dsn", func(c *Config) { c.Catalog.DSN = "" }},
		{"zero pages", func(c *Config) { c.Catalog.API.MaxPages = 0 }},
		{"negative delay", func(c *Config) { c.Catalog.API.PageDelay = -time.Second }},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Catalog.Driver = "memory"
	cfg.Catalog.DSN = ""
	assert.NoError(t, cfg.Validate(), "the memory catalog needs no dsn")

	cfg = Default()
	cfg.Server.GRPC.Enabled = false
	cfg.Server.GRPC.Address = ""
	assert.NoError(t, cfg.Validate(), "grpc address only matters when grpc is enabled")
}
