// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Backends BackendsConfig `mapstructure:"backends"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// LedgerConfig locates the persisted quota ledger.
type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig selects and tunes the response cache.
type CacheConfig struct {
	// Provider is "memory" or "redis".
	Provider string `mapstructure:"provider"`
	TTL      string `mapstructure:"ttl"`
	RedisURL string `mapstructure:"redis_url"`
}

// TTLDuration parses the configured cache TTL.
func (c CacheConfig) TTLDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("cache.ttl: %w", err)
	}
	return d, nil
}

// DatabaseConfig controls the optional Postgres job store.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// HTTPConfig configures backend retry behavior.
type HTTPConfig struct {
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// BackoffInitial converts the initial backoff into a duration.
func (c HTTPConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the backoff ceiling into a duration.
func (c HTTPConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// BackendsConfig holds per-backend toggles and tuning.
type BackendsConfig struct {
	Adzuna     AdzunaConfig     `mapstructure:"adzuna"`
	JSearch    JSearchConfig    `mapstructure:"jsearch"`
	ArbeitNow  ArbeitNowConfig  `mapstructure:"arbeitnow"`
	Web3Career Web3CareerConfig `mapstructure:"web3career"`
	LinkedIn   LinkedInConfig   `mapstructure:"linkedin"`
}

// AdzunaConfig tunes the Adzuna backend.
type AdzunaConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Country      string `mapstructure:"country"`
	MonthlyLimit int    `mapstructure:"monthly_limit"`
	BaseURL      string `mapstructure:"base_url"`
}

// JSearchConfig tunes the JSearch backend.
type JSearchConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MonthlyLimit int    `mapstructure:"monthly_limit"`
	BaseURL      string `mapstructure:"base_url"`
}

// ArbeitNowConfig tunes the ArbeitNow backend.
type ArbeitNowConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
}

// Web3CareerConfig tunes the web3.career scraper.
type Web3CareerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	BaseURL           string `mapstructure:"base_url"`
	RequestIntervalMs int    `mapstructure:"request_interval_ms"`
}

// RequestInterval converts the scrape spacing into a duration.
func (c Web3CareerConfig) RequestInterval() time.Duration {
	return time.Duration(c.RequestIntervalMs) * time.Millisecond
}

// LinkedInConfig tunes the LinkedIn headless scraper.
type LinkedInConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// NavTimeout converts the navigation budget into a duration.
func (c LinkedInConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBRADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("ledger.path", "data/usage.json")
	v.SetDefault("cache.provider", "memory")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("database.table", "jobs")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("backends.adzuna.enabled", true)
	v.SetDefault("backends.adzuna.country", "us")
	v.SetDefault("backends.adzuna.monthly_limit", 1000)
	v.SetDefault("backends.jsearch.enabled", true)
	v.SetDefault("backends.jsearch.monthly_limit", 200)
	v.SetDefault("backends.arbeitnow.enabled", true)
	v.SetDefault("backends.web3career.enabled", true)
	v.SetDefault("backends.web3career.request_interval_ms", 2000)
	v.SetDefault("backends.linkedin.enabled", false)
	v.SetDefault("backends.linkedin.nav_timeout_seconds", 60)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required")
	}
	switch c.Cache.Provider {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redis_url must be set when cache.provider is redis")
		}
	default:
		return fmt.Errorf("cache.provider must be memory or redis, got %q", c.Cache.Provider)
	}
	if _, err := c.Cache.TTLDuration(); err != nil {
		return err
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Backends.Adzuna.Enabled && c.Backends.Adzuna.MonthlyLimit <= 0 {
		return fmt.Errorf("backends.adzuna.monthly_limit must be > 0")
	}
	if c.Backends.JSearch.Enabled && c.Backends.JSearch.MonthlyLimit <= 0 {
		return fmt.Errorf("backends.jsearch.monthly_limit must be > 0")
	}
	return nil
}

// Secret names consumed from the process environment. Credentials never live
// in the config file.
const (
	SecretAdzunaAppID      = "ADZUNA_APP_ID"
	SecretAdzunaAppKey     = "ADZUNA_APP_KEY"
	SecretRapidAPIKey      = "RAPIDAPI_KEY"
	SecretLinkedInEmail    = "LINKEDIN_EMAIL"
	SecretLinkedInPassword = "LINKEDIN_PASSWORD"
)

// SecretsFromEnv snapshots the known backend credentials from the
// environment. Absent variables are omitted so callers can distinguish
// missing from empty.
func SecretsFromEnv() map[string]string {
	names := []string{
		SecretAdzunaAppID,
		SecretAdzunaAppKey,
		SecretRapidAPIKey,
		SecretLinkedInEmail,
		SecretLinkedInPassword,
	}
	secrets := make(map[string]string, len(names))
	for _, name := range names {
		if value := os.Getenv(name); value != "" {
			secrets[name] = value
		}
	}
	return secrets
}
