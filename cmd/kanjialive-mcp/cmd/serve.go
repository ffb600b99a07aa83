package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kanjialive/kanjialive-mcp-server/internal/config"
	"github.com/kanjialive/kanjialive-mcp-server/internal/gateway"
	"github.com/kanjialive/kanjialive-mcp-server/internal/kanjialive"
	"github.com/kanjialive/kanjialive-mcp-server/internal/mcpserver"
	"github.com/kanjialive/kanjialive-mcp-server/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Kanji Alive MCP server on the configured HTTP address.

The server speaks the MCP Streamable HTTP transport on /mcp and exposes
/health and /metrics alongside it.

Examples:
  # Start with config file settings
  kanjialive-mcp serve

  # Start with a specific config file
  kanjialive-mcp --config /path/to/config.yaml serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	// stop() restores default signal handling so a second Ctrl+C does a
	// hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	return run(ctx, cfg, logger)
}

// run wires all components together and blocks until shutdown.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tracing, err := observability.Setup(cfg.Observability.Trace, "kanjialive-mcp-server", Version, logger)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("trace pipeline shutdown", "error", err)
		}
	}()

	// Duration strings are validated at load time; parse failures here
	// mean a config layer bug, so fall back to defaults with a warning.
	apiTimeout := parseDurationOr(cfg.API.Timeout, kanjialive.DefaultTimeout, "api.timeout", logger)
	backoffInitial := parseDurationOr(cfg.API.BackoffInitial, kanjialive.DefaultBackoffInitial, "api.backoff_initial", logger)
	backoffCeiling := parseDurationOr(cfg.API.BackoffCeiling, kanjialive.DefaultBackoffCeiling, "api.backoff_ceiling", logger)
	cacheTTL := parseDurationOr(cfg.Cache.TTL, kanjialive.DefaultCacheTTL, "cache.ttl", logger)
	sessionTimeout := parseDurationOr(cfg.Server.SessionTimeout, gateway.DefaultSessionTimeout, "server.session_timeout", logger)
	sweepInterval := parseDurationOr(cfg.Server.SweepInterval, gateway.DefaultSweepInterval, "server.sweep_interval", logger)
	shutdownTimeout := parseDurationOr(cfg.Server.ShutdownTimeout, gateway.DefaultShutdownTimeout, "server.shutdown_timeout", logger)

	// The metric set is built before the client so the retry counter can
	// be wired into it.
	promReg := gateway.NewPrometheusRegistry()
	metrics := gateway.NewMetrics(promReg)

	clientOpts := []kanjialive.ClientOption{
		kanjialive.WithLogger(logger),
		kanjialive.WithTracer(tracing.Tracer),
		kanjialive.WithRetryCounter(metrics.UpstreamRetries),
		kanjialive.WithBackoff(kanjialive.NewBackoffPolicy(backoffInitial, backoffCeiling,
			kanjialive.WithBackoffLogger(logger))),
	}
	if cfg.Cache.Enabled {
		clientOpts = append(clientOpts, kanjialive.WithCache(kanjialive.NewCache(cacheTTL)))
		logger.Info("response cache enabled", "ttl", cacheTTL)
	}

	client, err := kanjialive.NewClient(kanjialive.Config{
		BaseURL:    cfg.API.BaseURL,
		APIKey:     cfg.API.Key,
		APIHost:    cfg.API.Host,
		Timeout:    apiTimeout,
		MaxRetries: cfg.API.MaxRetries,
	}, clientOpts...)
	if err != nil {
		return fmt.Errorf("failed to create upstream client: %w", err)
	}

	srv := mcpserver.New("kanjialive-mcp-server", Version, client,
		mcpserver.WithLogger(logger))

	if cfg.Data.RadicalsFile != "" {
		if err := srv.RegisterRadicalsFile(cfg.Data.RadicalsFile); err != nil {
			return fmt.Errorf("failed to load radicals file: %w", err)
		}
		logger.Info("radicals resource registered", "file", cfg.Data.RadicalsFile)
	}

	gw := gateway.New(srv,
		gateway.WithAddr(cfg.Server.HTTPAddr),
		gateway.WithLogger(logger),
		gateway.WithMetrics(metrics, promReg),
		gateway.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		gateway.WithGatewaySessionTimeout(sessionTimeout),
		gateway.WithGatewaySweepInterval(sweepInterval),
		gateway.WithShutdownTimeout(shutdownTimeout),
		gateway.WithGatewayTracer(tracing.Tracer),
		gateway.WithVersion(Version),
	)

	logger.Info("starting kanjialive-mcp",
		"version", Version,
		"addr", cfg.Server.HTTPAddr,
		"max_retries", cfg.API.MaxRetries,
	)

	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("kanjialive-mcp stopped")
	return nil
}

// parseDurationOr parses a duration string, warning and falling back to
// def on failure.
func parseDurationOr(value string, def time.Duration, key string, logger *slog.Logger) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("invalid duration, using default", "key", key, "value", value, "default", def)
		return def
	}
	return d
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
