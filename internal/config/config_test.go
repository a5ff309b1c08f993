package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	return writeConfigFile(t, t.TempDir(), "splitserve.yaml", contents)
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  http_port: 8181
  metrics_port: 9191
  read_timeout: 15s
domain: example.com
web:
  allow_force: true
provider:
  endpoint: https://www.google-analytics.com/cx/api.js
  cache_dir: /tmp/splitserve-cache
  cache_ttl: 10m
  retry:
    max_attempts: 5
    initial_delay: 100ms
store:
  enabled: true
  path: /var/lib/splitserve/assignments.db
  retention: 720h
auth:
  enabled: true
  api_keys:
    - key-one
    - key-two
logging:
  level: debug
  format: text
tracing:
  endpoint: otel-collector:4317
  sampling_rate: 0.25
janitor:
  enabled: true
  cache_schedule: "@every 30m"
diagnostics:
  enabled: true
  buffer_size: 64
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.HTTPPort != 8181 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if got := cfg.Server.ReadTimeout.Std(); got != 15*time.Second {
		t.Errorf("read_timeout = %v, want 15s", got)
	}
	if cfg.Domain != "example.com" || !cfg.Web.AllowForce {
		t.Errorf("domain/web = %q %+v", cfg.Domain, cfg.Web)
	}
	if got := cfg.Provider.CacheTTL.Std(); got != 10*time.Minute {
		t.Errorf("cache_ttl = %v, want 10m", got)
	}
	if cfg.Provider.Retry.MaxAttempts != 5 {
		t.Errorf("retry.max_attempts = %d, want 5", cfg.Provider.Retry.MaxAttempts)
	}
	if got := cfg.Provider.Retry.InitialDelay.Std(); got != 100*time.Millisecond {
		t.Errorf("retry.initial_delay = %v, want 100ms", got)
	}
	if !cfg.Store.Enabled || cfg.Store.Path != "/var/lib/splitserve/assignments.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if got := cfg.Store.Retention.Std(); got != 720*time.Hour {
		t.Errorf("retention = %v, want 720h", got)
	}
	if len(cfg.Auth.APIKeys) != 2 || cfg.Auth.APIKeys[1] != "key-two" {
		t.Errorf("api_keys = %v", cfg.Auth.APIKeys)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Tracing.SamplingRate != 0.25 {
		t.Errorf("sampling_rate = %v, want 0.25", cfg.Tracing.SamplingRate)
	}
	if cfg.Janitor.CacheSchedule != "@every 30m" {
		t.Errorf("cache_schedule = %q", cfg.Janitor.CacheSchedule)
	}
	if !cfg.Diagnostics.Enabled || cfg.Diagnostics.BufferSize != 64 {
		t.Errorf("diagnostics = %+v", cfg.Diagnostics)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
domain: example.com
provider:
  endpoint: https://www.google-analytics.com/cx/api.js
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.HTTPPort != 8080 || cfg.Server.MetricsPort != 9090 {
		t.Errorf("ports = %d/%d, want 8080/9090", cfg.Server.HTTPPort, cfg.Server.MetricsPort)
	}
	if got := cfg.Server.ShutdownTimeout.Std(); got != 10*time.Second {
		t.Errorf("shutdown_timeout = %v, want 10s", got)
	}
	if got := cfg.Provider.Timeout.Std(); got != 10*time.Second {
		t.Errorf("provider.timeout = %v, want 10s", got)
	}
	if got := cfg.Provider.CacheTTL.Std(); got != 5*time.Minute {
		t.Errorf("cache_ttl = %v, want 5m", got)
	}
	if got := cfg.Provider.Cooldown.Std(); got != 30*time.Second {
		t.Errorf("cooldown = %v, want 30s", got)
	}
	if cfg.Provider.Retry.MaxAttempts != 3 {
		t.Errorf("retry.max_attempts = %d, want 3", cfg.Provider.Retry.MaxAttempts)
	}
	if got := cfg.Provider.Retry.InitialDelay.Std(); got != 200*time.Millisecond {
		t.Errorf("retry.initial_delay = %v, want 200ms", got)
	}
	if got := cfg.Provider.Retry.MaxDelay.Std(); got != 5*time.Second {
		t.Errorf("retry.max_delay = %v, want 5s", got)
	}
	if cfg.Store.Path != "splitserve.db" {
		t.Errorf("store.path = %q", cfg.Store.Path)
	}
	if got := cfg.Store.Retention.Std(); got != 93*24*time.Hour {
		t.Errorf("retention = %v, want 93 days", got)
	}
	if got := cfg.Auth.TokenExpiry.Std(); got != 24*time.Hour {
		t.Errorf("token_expiry = %v, want 24h", got)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Tracing.SamplingRate != 1.0 {
		t.Errorf("sampling_rate = %v, want 1.0", cfg.Tracing.SamplingRate)
	}
	if cfg.Janitor.CacheSchedule != "@hourly" || cfg.Janitor.StoreSchedule != "@daily" {
		t.Errorf("janitor = %+v", cfg.Janitor)
	}
	if cfg.Diagnostics.BufferSize != 256 {
		t.Errorf("buffer_size = %d, want 256", cfg.Diagnostics.BufferSize)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  extra: true
domain: example.com
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	path := writeConfig(t, `
provider:
  timeout: fast
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("expected duration error, got %v", err)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("SPLITSERVE_TEST_DOMAIN", "shop.example.org")
	path := writeConfig(t, `
domain: ${SPLITSERVE_TEST_DOMAIN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Domain != "shop.example.org" {
		t.Errorf("domain = %q, want shop.example.org", cfg.Domain)
	}
}

func TestLoadResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "base.yaml", `
server:
  host: 10.0.0.1
  metrics_port: 9100
logging:
  level: debug
`)
	path := writeConfigFile(t, dir, "splitserve.yaml", `
$include: base.yaml
server:
  http_port: 8081
logging:
  format: text
domain: example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "10.0.0.1" {
		t.Errorf("host = %q, want value from include", cfg.Server.Host)
	}
	if cfg.Server.MetricsPort != 9100 || cfg.Server.HTTPPort != 8081 {
		t.Errorf("ports = %d/%d, want 8081/9100", cfg.Server.HTTPPort, cfg.Server.MetricsPort)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v, want merged include", cfg.Logging)
	}
	if cfg.Domain != "example.com" {
		t.Errorf("domain = %q", cfg.Domain)
	}
}

func TestLoadIncludeOverride(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "base.yaml", `
domain: base.example
`)
	path := writeConfigFile(t, dir, "splitserve.yaml", `
include: base.yaml
domain: override.example
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Domain != "override.example" {
		t.Errorf("domain = %q, including file should win", cfg.Domain)
	}
}

func TestLoadIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "a.yaml", `
$include: b.yaml
`)
	path := writeConfigFile(t, dir, "b.yaml", `
$include: a.yaml
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestLoadJSON5(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "splitserve.json5", `
{
  // JSON5 configs take comments and trailing commas.
  "server": {"http_port": 8082},
  "domain": "example.com",
  "provider": {"timeout": "3s"},
}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPPort != 8082 {
		t.Errorf("http_port = %d, want 8082", cfg.Server.HTTPPort)
	}
	if got := cfg.Provider.Timeout.Std(); got != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", got)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("http_port = %d, want default", cfg.Server.HTTPPort)
	}
}

func TestLoadRejectsMultiDocument(t *testing.T) {
	path := writeConfig(t, `
domain: example.com
---
domain: other.example
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error for multi-document config")
	}
	if !strings.Contains(err.Error(), "single document") {
		t.Fatalf("expected single document error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := Load("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *Config {
		t.Helper()
		cfg, err := Load(writeConfig(t, `
domain: example.com
provider:
  endpoint: https://www.google-analytics.com/cx/api.js
`))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing domain",
			mutate:  func(c *Config) { c.Domain = "" },
			wantErr: "domain",
		},
		{
			name: "missing provider",
			mutate: func(c *Config) {
				c.Provider.Endpoint = ""
				c.Provider.File = ""
			},
			wantErr: "provider.endpoint or provider.file",
		},
		{
			name:    "watch without file",
			mutate:  func(c *Config) { c.Provider.Watch = true },
			wantErr: "provider.watch",
		},
		{
			name: "auth without credentials",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.APIKeys = nil
				c.Auth.JWTSecret = ""
			},
			wantErr: "auth.enabled",
		},
		{
			name:    "sampling rate out of range",
			mutate:  func(c *Config) { c.Tracing.SamplingRate = 1.5 },
			wantErr: "sampling_rate",
		},
		{
			name:    "http port out of range",
			mutate:  func(c *Config) { c.Server.HTTPPort = 70000 },
			wantErr: "http_port",
		},
		{
			name:    "port collision",
			mutate:  func(c *Config) { c.Server.MetricsPort = c.Server.HTTPPort },
			wantErr: "must differ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestJSONSchema(t *testing.T) {
	data, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema() error = %v", err)
	}
	if !json.Valid(data) {
		t.Fatalf("schema is not valid JSON")
	}
	if !strings.Contains(string(data), "provider") {
		t.Errorf("schema does not mention provider section")
	}
	if !strings.Contains(string(data), "domain") {
		t.Errorf("schema does not mention domain")
	}

	again, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema() second call error = %v", err)
	}
	if string(again) != string(data) {
		t.Errorf("schema should be stable across calls")
	}
}
