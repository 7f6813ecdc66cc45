// Package config loads server configuration from a YAML file, environment variables and
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SANDBOX_SERVER_HTTP_ADDRESS.
const EnvPrefix = "SANDBOX"

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Game    GameConfig    `mapstructure:"game"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Decks   DecksConfig   `mapstructure:"decks"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig groups the network listeners.
type ServerConfig struct {
	HTTP            HTTPConfig      `mapstructure:"http"`
	GRPC            GRPCConfig      `mapstructure:"grpc"`
	WebSocket       WebSocketConfig `mapstructure:"websocket"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
}

// HTTPConfig configures the REST API listener. The WebSocket endpoint is served on the
// same listener.
type HTTPConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GRPCConfig configures the gRPC listener.
type GRPCConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// WebSocketConfig configures client connections.
type WebSocketConfig struct {
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

// GameConfig configures tables and their sessions.
type GameConfig struct {
	MaxTables int `mapstructure:"max_tables"`
	// ShuffleSeed makes every table shuffle deterministically when non-zero.
	ShuffleSeed uint64       `mapstructure:"shuffle_seed"`
	Replay      ReplayConfig `mapstructure:"replay"`
}

// ReplayConfig controls per-table replay recording.
type ReplayConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

// CatalogConfig selects the card store and the remote card API.
type CatalogConfig struct {
	Driver string    `mapstructure:"driver"`
	DSN    string    `mapstructure:"dsn"`
	API    APIConfig `mapstructure:"api"`
}

// APIConfig describes the remote card search endpoint.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	ImageBase string        `mapstructure:"image_base"`
	Set       string        `mapstructure:"set"`
	MaxPages  int           `mapstructure:"max_pages"`
	PageDelay time.Duration `mapstructure:"page_delay"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// DecksConfig points at the YAML deck library.
type DecksConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http.address", ":8080")
	v.SetDefault("server.http.read_timeout", 15*time.Second)
	v.SetDefault("server.http.write_timeout", 15*time.Second)
	v.SetDefault("server.grpc.enabled", true)
	v.SetDefault("server.grpc.address", ":9090")
	v.SetDefault("server.grpc.max_concurrent_streams", 100)
	v.SetDefault("server.websocket.allowed_origins", []string{})
	v.SetDefault("server.websocket.write_wait", 10*time.Second)
	v.SetDefault("server.websocket.ping_interval", 30*time.Second)
	v.SetDefault("server.websocket.send_buffer", 16)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("game.max_tables", 100)
	v.SetDefault("game.shuffle_seed", 0)
	v.SetDefault("game.replay.enabled", false)
	v.SetDefault("game.replay.directory", "replays")

	v.SetDefault("catalog.driver", "sqlite")
	v.SetDefault("catalog.dsn", "data/catalog.db")
	v.SetDefault("catalog.api.base_url", "https://api.gatcg.com/cards/search")
	v.SetDefault("catalog.api.image_base", "https://api.gatcg.com/cards/images")
	v.SetDefault("catalog.api.set", "DOASD")
	v.SetDefault("catalog.api.max_pages", 10)
	v.SetDefault("catalog.api.page_delay", 50*time.Millisecond)
	v.SetDefault("catalog.api.timeout", 15*time.Second)

	v.SetDefault("decks.path", "config/decks.yaml")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Default returns the configuration used when no file or environment override exists.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}

// Load reads the YAML file at path, applies SANDBOX_* environment overrides and
// validates the result. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if c.Server.HTTP.Address == "" {
		return errors.New("server.http.address is required")
	}
	if c.Server.GRPC.Enabled {
		if c.Server.GRPC.Address == "" {
			return errors.New("server.grpc.address is required when grpc is enabled")
		}
		if c.Server.GRPC.MaxConcurrentStreams <= 0 {
			return fmt.Errorf("server.grpc.max_concurrent_streams must be positive, got %d", c.Server.GRPC.MaxConcurrentStreams)
		}
	}
	if c.Server.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("server.websocket.send_buffer must be positive, got %d", c.Server.WebSocket.SendBuffer)
	}
	if c.Game.MaxTables <= 0 {
		return fmt.Errorf("game.max_tables must be positive, got %d", c.Game.MaxTables)
	}
	if c.Game.Replay.Enabled && c.Game.Replay.Directory == "" {
		return errors.New("game.replay.directory is required when replay is enabled")
	}

	switch c.Catalog.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Catalog.DSN == "" {
			return errors.New("catalog.dsn is required")
		}
	default:
		return fmt.Errorf("catalog.driver must be memory, sqlite or postgres, got %q", c.Catalog.Driver)
	}
	if c.Catalog.API.MaxPages <= 0 {
		return fmt.Errorf("catalog.api.max_pages must be positive, got %d", c.Catalog.API.MaxPages)
	}
	if c.Catalog.API.PageDelay < 0 {
		return fmt.Errorf("catalog.api.page_delay must not be negative, got %s", c.Catalog.API.PageDelay)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
