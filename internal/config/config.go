package config

import (
	"strings"
	"time"
)

// Config represents the complete application configuration. Values are
// layered as code defaults, then a YAML file, then CRYPTOZAP_* environment
// variables (plus the legacy unprefixed provider variables).
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
	Health    HealthConfig              `mapstructure:"health"`
	RateLimit RateLimitConfig           `mapstructure:"rate_limit"`
	Cache     CacheConfig               `mapstructure:"cache"`
	Feeds     FeedsConfig               `mapstructure:"feeds"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RateLimitConfig controls inbound request admission.
type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	PerMinute       int           `mapstructure:"per_minute"`
	PerHour         int           `mapstructure:"per_hour"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	// ExemptPaths bypass admission. A trailing * matches any suffix.
	ExemptPaths []string `mapstructure:"exempt_paths"`
}

// CacheConfig selects and tunes the payload cache backend.
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Backend       string        `mapstructure:"backend"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Redis         RedisConfig   `mapstructure:"redis"`
	Store         StoreConfig   `mapstructure:"store"`
}

// RedisConfig configures the redis cache backend. URL wins over Addr.
type RedisConfig struct {
	URL         string        `mapstructure:"url"`
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	OpTimeout   time.Duration `mapstructure:"op_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// FeedsConfig tunes the fallback cascades.
type FeedsConfig struct {
	CollapseConcurrent bool                    `mapstructure:"collapse_concurrent"`
	Sources            map[string]SourceConfig `mapstructure:"sources"`
}

// SourceConfig overrides one named source. Zero values keep the built-in
// defaults.
type SourceConfig struct {
	Enabled *bool         `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// IsEnabled reports whether the source takes part in its cascade.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// ProviderConfig carries credentials and endpoints for one upstream API.
type ProviderConfig struct {
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// Provider returns the named provider block, or a zero value.
func (c *Config) Provider(name string) ProviderConfig {
	if c == nil || c.Providers == nil {
		return ProviderConfig{}
	}
	return c.Providers[strings.ToLower(strings.TrimSpace(name))]
}

// Source returns the named source override, or a zero value.
func (c *Config) Source(name string) SourceConfig {
	if c == nil || c.Feeds.Sources == nil {
		return SourceConfig{}
	}
	return c.Feeds.Sources[strings.ToLower(strings.TrimSpace(name))]
}
