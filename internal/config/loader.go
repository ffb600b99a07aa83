package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for kanjialive-mcp.yaml/.yml
// in standard locations. The search requires an explicit YAML extension so
// the binary itself (same base name, no extension) is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location. Set name/type
		// without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("kanjialive-mcp")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: KANJIALIVE_SERVER_HTTP_ADDR
	viper.SetEnvPrefix("KANJIALIVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a kanjialive-mcp config
// file with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".kanjialive-mcp"),
		"/etc/kanjialive-mcp",
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for
// kanjialive-mcp.yaml or .yml. Returns the full path of the first match, or
// empty string if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "kanjialive-mcp"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds all nested config keys for environment variable
// support. Example: KANJIALIVE_API_MAX_RETRIES overrides api.max_retries.
func bindNestedEnvKeys() {
	// Server config
	_ = viper.BindEnv("server.http_addr")
	_ = viper.BindEnv("server.log_level")
	_ = viper.BindEnv("server.session_timeout")
	_ = viper.BindEnv("server.sweep_interval")
	_ = viper.BindEnv("server.shutdown_timeout")
	_ = viper.BindEnv("server.max_body_bytes")

	// Upstream API config
	_ = viper.BindEnv("api.key")
	_ = viper.BindEnv("api.base_url")
	_ = viper.BindEnv("api.host")
	_ = viper.BindEnv("api.timeout")
	_ = viper.BindEnv("api.max_retries")
	_ = viper.BindEnv("api.backoff_initial")
	_ = viper.BindEnv("api.backoff_ceiling")

	// Cache config
	_ = viper.BindEnv("cache.enabled")
	_ = viper.BindEnv("cache.ttl")

	// Data config
	_ = viper.BindEnv("data.radicals_file")

	// Observability config
	_ = viper.BindEnv("observability.trace")
}

// Load reads the configuration file, applies environment overrides and
// defaults, and validates the result.
func Load() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found: continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The bare RAPIDAPI_KEY variable is the conventional way to carry this
	// credential, so honor it before the prefixed form is required.
	if cfg.API.Key == "" {
		cfg.API.Key = os.Getenv("RAPIDAPI_KEY")
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded. Returns an empty string if no config file was found.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
