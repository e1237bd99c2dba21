package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Realtime RealtimeConfig `toml:"realtime"`
	Session  SessionConfig  `toml:"session"`
	Lists    ListsConfig    `toml:"lists"`
	Log      LogConfig      `toml:"log"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
}

// APIConfig contains admin API connection settings.
type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the request timeout, defaulting to ten seconds.
func (c APIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RealtimeConfig contains push notification settings.
type RealtimeConfig struct {
	URL              string `toml:"url"`
	CoalesceMS       int    `toml:"coalesce_ms"`
	ReconnectSeconds int    `toml:"reconnect_seconds"`
}

// CoalesceWindow returns the invalidation coalescing window.
func (c RealtimeConfig) CoalesceWindow() time.Duration {
	if c.CoalesceMS < 0 {
		return 0
	}
	return time.Duration(c.CoalesceMS) * time.Millisecond
}

// ReconnectDelay returns the delay between push reconnect attempts.
func (c RealtimeConfig) ReconnectDelay() time.Duration {
	if c.ReconnectSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.ReconnectSeconds) * time.Second
}

// SessionConfig contains the admin session used for capability checks and API authentication.
type SessionConfig struct {
	Token        string   `toml:"token"`
	Secret       string   `toml:"secret"`
	Capabilities []string `toml:"capabilities"`
}

// ListsConfig contains list screen defaults.
type ListsConfig struct {
	PageSize int `toml:"page_size"`
	// BulkRateLimit caps bulk actions at this many requests per second; 0 disables the limit.
	BulkRateLimit float64 `toml:"bulk_rate_limit"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep their defaults from the embedded example config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the URLs and list settings.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return fmt.Errorf("%w: api.base_url: %v", ErrInvalidConfig, err)
	}
	if c.Realtime.URL != "" {
		u, err := url.ParseRequestURI(c.Realtime.URL)
		if err != nil {
			return fmt.Errorf("%w: realtime.url: %v", ErrInvalidConfig, err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("%w: realtime.url must use ws or wss, got %q", ErrInvalidConfig, u.Scheme)
		}
	}
	if c.Lists.PageSize <= 0 {
		return fmt.Errorf("%w: lists.page_size must be positive", ErrInvalidConfig)
	}
	if c.Lists.BulkRateLimit < 0 {
		return fmt.Errorf("%w: lists.bulk_rate_limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(exampleConf)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
