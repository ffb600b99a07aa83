// Package config provides configuration types and loading for the
// Kanji Alive MCP server.
package config

import "github.com/spf13/viper"

// Config is the top-level configuration.
type Config struct {
	// Server configures the HTTP listener and session handling.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// API configures the Kanji Alive upstream client.
	API APIConfig `yaml:"api" mapstructure:"api"`

	// Cache configures reuse of successful upstream responses.
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// Data configures optional local data files served as MCP resources.
	Data DataConfig `yaml:"data" mapstructure:"data"`

	// Observability configures tracing. Metrics and structured logging are
	// always on.
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// ServerConfig configures the HTTP server and session registry.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8080").
	// Defaults to "127.0.0.1:8080" (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// SessionTimeout is the inactivity window before a session is reaped
	// (e.g., "30m", "1h"). Defaults to "30m".
	SessionTimeout string `yaml:"session_timeout" mapstructure:"session_timeout" validate:"omitempty,duration"`

	// SweepInterval is how often the registry scans for expired sessions.
	// Defaults to "5m".
	SweepInterval string `yaml:"sweep_interval" mapstructure:"sweep_interval" validate:"omitempty,duration"`

	// ShutdownTimeout bounds graceful shutdown, including closing all live
	// sessions. Defaults to "10s".
	ShutdownTimeout string `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"omitempty,duration"`

	// MaxBodyBytes caps the size of a single POST body.
	// Defaults to 1 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"omitempty,min=1024"`
}

// APIConfig configures the Kanji Alive upstream client.
type APIConfig struct {
	// Key is the RapidAPI key. Required; also read from the RAPIDAPI_KEY
	// environment variable when unset here.
	Key string `yaml:"key" mapstructure:"key" validate:"required,api_key"`

	// BaseURL overrides the RapidAPI gateway URL.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// Host overrides the X-RapidAPI-Host header value.
	Host string `yaml:"host" mapstructure:"host"`

	// Timeout is the per-attempt request timeout (e.g., "15s").
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`

	// MaxRetries is how many retries follow a failed first attempt.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries" validate:"min=0,max=10"`

	// BackoffInitial is the first retry delay (e.g., "500ms").
	BackoffInitial string `yaml:"backoff_initial" mapstructure:"backoff_initial" validate:"omitempty,duration"`

	// BackoffCeiling caps retry delays, including server Retry-After hints
	// (e.g., "30s").
	BackoffCeiling string `yaml:"backoff_ceiling" mapstructure:"backoff_ceiling" validate:"omitempty,duration"`
}

// CacheConfig configures the upstream response cache.
type CacheConfig struct {
	// Enabled controls whether successful responses are cached.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// TTL is how long cached responses are reused (e.g., "10m").
	TTL string `yaml:"ttl" mapstructure:"ttl" validate:"omitempty,duration"`
}

// DataConfig configures optional local data files.
type DataConfig struct {
	// RadicalsFile is a path to a JSON file with the full radicals dataset,
	// served as the kanjialive://info/radicals resource. When empty, the
	// resource is not registered. When set but unreadable, startup fails.
	RadicalsFile string `yaml:"radicals_file" mapstructure:"radicals_file"`
}

// ObservabilityConfig configures opt-in tracing.
type ObservabilityConfig struct {
	// Trace enables span export to stdout. Off by default; spans are
	// verbose and meant for local debugging.
	Trace bool `yaml:"trace" mapstructure:"trace"`
}

// SetDefaults applies default values to optional fields.
func (c *Config) SetDefaults() {
	// Bind to localhost only unless the user explicitly opens the listener.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.SessionTimeout == "" {
		c.Server.SessionTimeout = "30m"
	}
	if c.Server.SweepInterval == "" {
		c.Server.SweepInterval = "5m"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}

	if c.API.Timeout == "" {
		c.API.Timeout = "15s"
	}
	// viper.IsSet distinguishes "not set" from an explicit zero, so
	// max_retries: 0 (no retries) survives defaulting.
	if !viper.IsSet("api.max_retries") && c.API.MaxRetries == 0 {
		c.API.MaxRetries = 3
	}
	if c.API.BackoffInitial == "" {
		c.API.BackoffInitial = "500ms"
	}
	if c.API.BackoffCeiling == "" {
		c.API.BackoffCeiling = "30s"
	}

	if c.Cache.TTL == "" {
		c.Cache.TTL = "10m"
	}
}
