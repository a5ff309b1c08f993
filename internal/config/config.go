// Package config loads and validates the splitserve configuration file.
//
// Configuration is YAML (or JSON5, selected by file extension) with
// environment variable expansion and $include composition. Unknown fields
// are rejected so typos fail at startup instead of silently falling back
// to defaults.
package config

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "250ms" or "1h30m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the main configuration structure for splitserve.
type Config struct {
	// Domain is the site the experiment cookies are scoped to. It is
	// hashed into every cookie the service reads and writes.
	Domain      string            `yaml:"domain"`
	Server      ServerConfig      `yaml:"server"`
	Web         WebConfig         `yaml:"web"`
	Provider    ProviderConfig    `yaml:"provider"`
	Store       StoreConfig       `yaml:"store"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Janitor     JanitorConfig     `yaml:"janitor"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

type ServerConfig struct {
	Host            string   `yaml:"host"`
	HTTPPort        int      `yaml:"http_port"`
	MetricsPort     int      `yaml:"metrics_port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// WebConfig controls the HTTP API surface.
type WebConfig struct {
	// BasePath mounts the API under a URL prefix, for reverse proxies.
	BasePath string `yaml:"base_path"`
	// AllowForce honors ?force= variation overrides on the decide endpoint.
	AllowForce bool `yaml:"allow_force"`
}

// ProviderConfig describes where experiment definitions come from. At
// least one of Endpoint or File must be set; when both are set the HTTP
// provider is tried first and the file serves as fallback.
type ProviderConfig struct {
	Endpoint string      `yaml:"endpoint"`
	File     string      `yaml:"file"`
	Watch    bool        `yaml:"watch"`
	Timeout  Duration    `yaml:"timeout"`
	CacheDir string      `yaml:"cache_dir"`
	CacheTTL Duration    `yaml:"cache_ttl"`
	Cooldown Duration    `yaml:"cooldown"`
	Retry    RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts  int      `yaml:"max_attempts"`
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
}

// StoreConfig controls the assignment log.
type StoreConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Path      string   `yaml:"path"`
	Retention Duration `yaml:"retention"`
}

type AuthConfig struct {
	Enabled     bool     `yaml:"enabled"`
	APIKeys     []string `yaml:"api_keys"`
	JWTSecret   string   `yaml:"jwt_secret"`
	TokenExpiry Duration `yaml:"token_expiry"`
}

type LoggingConfig struct {
	Level          string   `yaml:"level"`
	Format         string   `yaml:"format"`
	AddSource      bool     `yaml:"add_source"`
	RedactPatterns []string `yaml:"redact_patterns"`
}

type TracingConfig struct {
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Environment  string  `yaml:"environment"`
	Insecure     bool    `yaml:"insecure"`
}

// JanitorConfig schedules background cleanup. Schedules use cron syntax,
// including the @hourly and @daily shorthands.
type JanitorConfig struct {
	Enabled       bool   `yaml:"enabled"`
	CacheSchedule string `yaml:"cache_schedule"`
	StoreSchedule string `yaml:"store_schedule"`
}

type DiagnosticsConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
}

// Load reads and parses the configuration file, resolving includes and
// applying defaults. Call Validate before serving with the result.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeStrict(raw)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = Duration(15 * time.Second)
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = Duration(10 * time.Second)
	}
	if cfg.Provider.CacheTTL == 0 {
		cfg.Provider.CacheTTL = Duration(5 * time.Minute)
	}
	if cfg.Provider.Cooldown == 0 {
		cfg.Provider.Cooldown = Duration(30 * time.Second)
	}
	if cfg.Provider.Retry.MaxAttempts == 0 {
		cfg.Provider.Retry.MaxAttempts = 3
	}
	if cfg.Provider.Retry.InitialDelay == 0 {
		cfg.Provider.Retry.InitialDelay = Duration(200 * time.Millisecond)
	}
	if cfg.Provider.Retry.MaxDelay == 0 {
		cfg.Provider.Retry.MaxDelay = Duration(5 * time.Second)
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "splitserve.db"
	}
	if cfg.Store.Retention == 0 {
		// Matches the lifetime of the assignment cookie.
		cfg.Store.Retention = Duration(93 * 24 * time.Hour)
	}
	if cfg.Auth.TokenExpiry == 0 {
		cfg.Auth.TokenExpiry = Duration(24 * time.Hour)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Tracing.SamplingRate == 0 {
		cfg.Tracing.SamplingRate = 1.0
	}
	if cfg.Janitor.CacheSchedule == "" {
		cfg.Janitor.CacheSchedule = "@hourly"
	}
	if cfg.Janitor.StoreSchedule == "" {
		cfg.Janitor.StoreSchedule = "@daily"
	}
	if cfg.Diagnostics.BufferSize == 0 {
		cfg.Diagnostics.BufferSize = 256
	}
}

// Validate checks the configuration for serving. CLI commands that only
// touch a slice of the config (cache purge, token minting) skip it.
func (c *Config) Validate() error {
	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort < 1 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metrics_port %d is out of range", c.Server.MetricsPort)
	}
	if c.Server.HTTPPort == c.Server.MetricsPort {
		return fmt.Errorf("server.http_port and server.metrics_port must differ")
	}
	if c.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if c.Provider.Endpoint == "" && c.Provider.File == "" {
		return fmt.Errorf("provider.endpoint or provider.file is required")
	}
	if c.Provider.Watch && c.Provider.File == "" {
		return fmt.Errorf("provider.watch requires provider.file")
	}
	if c.Store.Enabled && c.Store.Retention < 0 {
		return fmt.Errorf("store.retention must not be negative")
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.enabled requires auth.api_keys or auth.jwt_secret")
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("tracing.sampling_rate %v is out of range", c.Tracing.SamplingRate)
	}
	return nil
}

var (
	schemaOnce sync.Once
	schemaJSON []byte
	schemaErr  error
)

// JSONSchema returns the JSON Schema for the configuration file.
func JSONSchema() ([]byte, error) {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			FieldNameTag: "yaml",
		}
		schemaJSON, schemaErr = json.MarshalIndent(r.Reflect(&Config{}), "", "  ")
	})
	return schemaJSON, schemaErr
}
