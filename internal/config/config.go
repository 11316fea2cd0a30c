// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Admin         AdminConfig         `yaml:"admin"`
	Database      DatabaseConfig      `yaml:"database"`
	Schemas       SchemasConfig       `yaml:"schemas"`
	Discovery     DiscoveryConfig     `yaml:"discovery"`
	Replay        ReplayConfig        `yaml:"replay"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// AdminConfig describes the admin surface itself: its title, its URL
// prefix, and the capability token signing material.
type AdminConfig struct {
	Title           string        `yaml:"title"`
	Prefix          string        `yaml:"prefix"`
	SecretKeyEnv    string        `yaml:"secret_key_env"`
	TokenSalt       string        `yaml:"token_salt"`
	TokenMaxAge     time.Duration `yaml:"token_max_age"`
	SingleUseTokens bool          `yaml:"single_use_tokens"`
}

// SecretKey resolves the signing secret from the configured environment
// variable.
func (a AdminConfig) SecretKey() string {
	return os.Getenv(a.SecretKeyEnv)
}

// DatabaseConfig describes the Postgres connection used for storage and
// table introspection. An empty DSN env value disables the database.
type DatabaseConfig struct {
	DSNEnv          string        `yaml:"dsn_env"`
	MaxConns        int           `yaml:"max_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Introspect      []string      `yaml:"introspect"`
}

// DSN resolves the connection string from the configured environment
// variable.
func (d DatabaseConfig) DSN() string {
	return os.Getenv(d.DSNEnv)
}

// SchemasConfig describes where to find OpenAPI schema files.
type SchemasConfig struct {
	Files []string `yaml:"files"`
}

// DiscoveryConfig describes auto-discovery filtering.
type DiscoveryConfig struct {
	Enabled bool     `yaml:"enabled"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// ReplayConfig describes single-use token tracking.
type ReplayConfig struct {
	Store   string `yaml:"store"`
	AddrEnv string `yaml:"addr_env"`
	DB      int    `yaml:"db"`
}

// Addr resolves the Redis address from the configured environment
// variable.
func (r ReplayConfig) Addr() string {
	return os.Getenv(r.AddrEnv)
}

// RateLimitConfig describes the token bucket applied to mutating requests.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Rate    int           `yaml:"rate"`
	Per     time.Duration `yaml:"per"`
	Burst   int           `yaml:"burst"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type", "X-Correlation-Id"},
				MaxAge:         86400,
			},
		},
		Admin: AdminConfig{
			Title:           "Admin",
			Prefix:          "/admin",
			SecretKeyEnv:    "MATRIXADMIN_SECRET_KEY",
			TokenMaxAge:     1 * time.Hour,
			SingleUseTokens: false,
		},
		Database: DatabaseConfig{
			DSNEnv:          "MATRIXADMIN_DATABASE_URL",
			MaxConns:        10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
		},
		Replay: ReplayConfig{
			Store:   "memory",
			AddrEnv: "MATRIXADMIN_REDIS_ADDR",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    30,
			Per:     1 * time.Minute,
			Burst:   10,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Admin.SecretKeyEnv == "" {
		errs = append(errs, "admin.secret_key_env is required")
	}
	if !strings.HasPrefix(c.Admin.Prefix, "/") {
		errs = append(errs, "admin.prefix must start with /")
	}
	if c.Replay.Store != "memory" && c.Replay.Store != "redis" {
		errs = append(errs, "replay.store must be memory or redis")
	}
	if c.RateLimit.Enabled && c.RateLimit.Rate < 1 {
		errs = append(errs, "rate_limit.rate must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads MATRIXADMIN_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MATRIXADMIN_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MATRIXADMIN_ADMIN_TITLE"); v != "" {
		cfg.Admin.Title = v
	}
	if v := os.Getenv("MATRIXADMIN_ADMIN_PREFIX"); v != "" {
		cfg.Admin.Prefix = v
	}
	if v := os.Getenv("MATRIXADMIN_REPLAY_STORE"); v != "" {
		cfg.Replay.Store = v
	}
	if v := os.Getenv("MATRIXADMIN_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}
