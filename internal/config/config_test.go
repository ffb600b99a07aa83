package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func validConfig() *Config {
	cfg := &Config{}
	cfg.API.Key = "real-looking-key"
	cfg.SetDefaults()
	return cfg
}

func TestSetDefaults(t *testing.T) {
	resetViper(t)

	cfg := &Config{}
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("http_addr default: got %q", cfg.Server.HTTPAddr)
	}
	if cfg.Server.SessionTimeout != "30m" {
		t.Errorf("session_timeout default: got %q", cfg.Server.SessionTimeout)
	}
	if cfg.Server.SweepInterval != "5m" {
		t.Errorf("sweep_interval default: got %q", cfg.Server.SweepInterval)
	}
	if cfg.Server.ShutdownTimeout != "10s" {
		t.Errorf("shutdown_timeout default: got %q", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("max_body_bytes default: got %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.API.MaxRetries != 3 {
		t.Errorf("max_retries default: got %d", cfg.API.MaxRetries)
	}
	if cfg.API.BackoffInitial != "500ms" {
		t.Errorf("backoff_initial default: got %q", cfg.API.BackoffInitial)
	}
	if cfg.API.BackoffCeiling != "30s" {
		t.Errorf("backoff_ceiling default: got %q", cfg.API.BackoffCeiling)
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	resetViper(t)

	if err := validConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	resetViper(t)

	cfg := &Config{}
	cfg.SetDefaults()

	err := cfg.Validate()
	if err == nil {
		t.Fatal("missing api key accepted")
	}
	if !strings.Contains(err.Error(), "api.key is required") {
		t.Errorf("error not actionable: %v", err)
	}
}

func TestValidateRejectsPlaceholderKey(t *testing.T) {
	resetViper(t)

	cfg := validConfig()
	cfg.API.Key = "YOUR_RAPIDAPI_KEY_HERE"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("placeholder api key accepted")
	}
	if !strings.Contains(err.Error(), "placeholder") {
		t.Errorf("error not actionable: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	resetViper(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Server.LogLevel = "verbose" }},
		{"bad session timeout", func(c *Config) { c.Server.SessionTimeout = "soon" }},
		{"negative duration", func(c *Config) { c.API.Timeout = "-5s" }},
		{"too many retries", func(c *Config) { c.API.MaxRetries = 50 }},
		{"bad addr", func(c *Config) { c.Server.HTTPAddr = "not a listen addr" }},
		{"bad base url", func(c *Config) { c.API.BaseURL = "::" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "kanjialive-mcp.yaml")
	yaml := `
server:
  http_addr: "127.0.0.1:9090"
  log_level: debug
api:
  key: file-key
  max_retries: 1
cache:
  enabled: true
  ttl: 2m
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	InitViper(path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:9090" {
		t.Errorf("http_addr: got %q", cfg.Server.HTTPAddr)
	}
	if cfg.API.Key != "file-key" {
		t.Errorf("api key: got %q", cfg.API.Key)
	}
	if cfg.API.MaxRetries != 1 {
		t.Errorf("max_retries: got %d", cfg.API.MaxRetries)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != "2m" {
		t.Errorf("cache config: got %+v", cfg.Cache)
	}
	// Unset fields still default.
	if cfg.Server.SessionTimeout != "30m" {
		t.Errorf("session_timeout: got %q", cfg.Server.SessionTimeout)
	}
}

func TestLoadRapidAPIKeyFallback(t *testing.T) {
	resetViper(t)
	t.Setenv("RAPIDAPI_KEY", "env-fallback-key")

	dir := t.TempDir()
	path := filepath.Join(dir, "kanjialive-mcp.yaml")
	if err := os.WriteFile(path, []byte("server:\n  log_level: info\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	InitViper(path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.Key != "env-fallback-key" {
		t.Errorf("api key: got %q, want RAPIDAPI_KEY fallback", cfg.API.Key)
	}
}

func TestLoadPrefixedEnvOverride(t *testing.T) {
	resetViper(t)
	t.Setenv("KANJIALIVE_API_KEY", "prefixed-key")
	t.Setenv("KANJIALIVE_SERVER_HTTP_ADDR", "127.0.0.1:7070")

	dir := t.TempDir()
	path := filepath.Join(dir, "kanjialive-mcp.yaml")
	if err := os.WriteFile(path, []byte("api:\n  key: file-key\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	InitViper(path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.Key != "prefixed-key" {
		t.Errorf("api key: got %q, want env to win over file", cfg.API.Key)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:7070" {
		t.Errorf("http_addr: got %q", cfg.Server.HTTPAddr)
	}
}

func TestLoadMissingFileUsesEnvOnly(t *testing.T) {
	resetViper(t)
	t.Setenv("KANJIALIVE_API_KEY", "env-only-key")

	InitViper(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	_, err := Load()
	// An explicitly named missing file is an error, unlike an absent default
	// file.
	if err == nil {
		t.Error("explicitly named missing config file accepted")
	}
}

func TestFindConfigFileInPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kanjialive-mcp.yml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if got := findConfigFileInPaths([]string{t.TempDir(), dir}); got != path {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, path)
	}
	if got := findConfigFileInPaths([]string{t.TempDir()}); got != "" {
		t.Errorf("findConfigFileInPaths = %q, want empty", got)
	}
}
