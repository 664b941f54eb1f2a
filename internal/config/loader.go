// Package config provides centralized configuration management for cryptozap.
// It layers code defaults, an optional YAML file and environment variables
// through spf13/viper, then decodes the merged settings with mapstructure.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// AppName names the config and data directories.
	AppName = "cryptozap"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "CRYPTOZAP"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendLibsql = "libsql"
)

// ProviderNames lists the upstream API blocks under providers.*.
var ProviderNames = []string{
	"coingecko",
	"cryptocompare",
	"newsapi",
	"cryptopanic",
	"alphavantage",
	"fred",
	"whale_alert",
	"etherscan",
	"airdrop_api",
}

// legacyEnv maps config keys to the unprefixed variable names deployments
// already carry.
var legacyEnv = map[string]string{
	"providers.coingecko.api_key":    "COINGECKO_API_KEY",
	"providers.newsapi.api_key":      "NEWS_API_KEY",
	"providers.cryptopanic.api_key":  "CRYPTO_PANIC_API_KEY",
	"providers.alphavantage.api_key": "ALPHA_VANTAGE_API_KEY",
	"providers.fred.api_key":         "FRED_API_KEY",
	"providers.etherscan.api_key":    "ETHERSCAN_API_KEY",
	"providers.whale_alert.api_key":  "WHALE_ALERT_API_KEY",
	"providers.airdrop_api.api_key":  "AIRDROP_API_KEY",
	"cache.redis.url":                "REDIS_URL",
	"rate_limit.per_minute":          "RATE_LIMIT_PER_MINUTE",
	"rate_limit.per_hour":            "RATE_LIMIT_PER_HOUR",
}

var (
	appConfig *Config
	configMu  sync.RWMutex
)

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// SetDefaults registers the code-level defaults on v.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.per_minute", 60)
	v.SetDefault("rate_limit.per_hour", 1000)
	v.SetDefault("rate_limit.cleanup_interval", "5m")
	v.SetDefault("rate_limit.exempt_paths", []string{"/health*", "/metrics", "/version"})

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", CacheBackendMemory)
	v.SetDefault("cache.sweep_interval", "1m")
	v.SetDefault("cache.redis.url", "")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.dial_timeout", "2s")
	v.SetDefault("cache.redis.op_timeout", "500ms")
	v.SetDefault("cache.store.driver", "libsql")
	v.SetDefault("cache.store.path", DefaultStorePath())
	v.SetDefault("cache.store.url", "")
	v.SetDefault("cache.store.auth_token", "")

	// Feed defaults
	v.SetDefault("feeds.collapse_concurrent", true)
}

// BindEnv wires CRYPTOZAP_* variables onto v, plus the legacy names for
// provider credentials and limits.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	bound := map[string]bool{}
	bind := func(key string) {
		if bound[key] {
			return
		}
		bound[key] = true
		names := []string{key, EnvName(key)}
		if legacy, ok := legacyEnv[key]; ok {
			names = append(names, legacy)
		}
		_ = v.BindEnv(names...)
	}

	// Provider blocks have no defaults, so their keys only exist once bound.
	for _, name := range ProviderNames {
		for _, field := range []string{"api_key", "base_url", "requests_per_minute"} {
			bind("providers." + name + "." + field)
		}
	}
	for key := range legacyEnv {
		bind(key)
	}
}

// EnvName returns the prefixed environment variable for a config key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(envKeyReplacer.Replace(key))
}

// NewViper builds a standalone viper with defaults, environment bindings and
// the optional config file applied.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	if strings.TrimSpace(configFile) == "" {
		return v, nil
	}

	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return v, nil
}

// Load decodes and validates the settings held by v and makes the result
// available through GetConfig. A nil v loads defaults and environment only.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		var err error
		if v, err = NewViper(""); err != nil {
			return nil, err
		}
	}

	cfg, err := Decode(v.AllSettings())
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Decode converts a merged settings map into a typed Config.
func Decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalize(cfg)
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	var problems []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.PerMinute <= 0 {
			problems = append(problems, "rate_limit.per_minute must be positive")
		}
		if c.RateLimit.PerHour <= 0 {
			problems = append(problems, "rate_limit.per_hour must be positive")
		}
	}
	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case CacheBackendMemory, CacheBackendRedis, CacheBackendLibsql:
		default:
			problems = append(problems, fmt.Sprintf("cache.backend %q is not one of memory, redis, libsql", c.Cache.Backend))
		}
	}
	for name, source := range c.Feeds.Sources {
		if source.Timeout < 0 || source.TTL < 0 {
			problems = append(problems, fmt.Sprintf("feeds.sources.%s durations must not be negative", name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func normalize(cfg *Config) {
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))

	if len(cfg.Providers) > 0 {
		providers := make(map[string]ProviderConfig, len(cfg.Providers))
		for name, provider := range cfg.Providers {
			provider.APIKey = strings.TrimSpace(provider.APIKey)
			provider.BaseURL = strings.TrimRight(strings.TrimSpace(provider.BaseURL), "/")
			providers[strings.ToLower(strings.TrimSpace(name))] = provider
		}
		cfg.Providers = providers
	}

	if len(cfg.Feeds.Sources) > 0 {
		sources := make(map[string]SourceConfig, len(cfg.Feeds.Sources))
		for name, source := range cfg.Feeds.Sources {
			sources[strings.ToLower(strings.TrimSpace(name))] = source
		}
		cfg.Feeds.Sources = sources
	}

	if strings.TrimSpace(cfg.Cache.Store.URL) == "" && strings.TrimSpace(cfg.Cache.Store.Path) == "" {
		cfg.Cache.Store.Path = DefaultStorePath()
	}
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigDir returns the XDG-compliant config directory for the app.
func DefaultConfigDir() string {
	return gfconfig.GetAppConfigDir(AppName)
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := DefaultConfigDir()
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the cache database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}
