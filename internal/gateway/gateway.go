package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kanjialive/kanjialive-mcp-server/internal/mcpserver"
)

// DefaultShutdownTimeout bounds graceful shutdown, including closing all
// live sessions.
const DefaultShutdownTimeout = 10 * time.Second

// Gateway is the HTTP server for the MCP Streamable HTTP transport. It
// owns the listener, the session registry, and the Prometheus registry.
type Gateway struct {
	addr            string
	logger          *slog.Logger
	mcpServer       *mcpserver.Server
	factory         TransportFactory
	allowedOrigins  []string
	maxBodyBytes    int64
	sessionTimeout  time.Duration
	sweepInterval   time.Duration
	shutdownTimeout time.Duration
	version         string
	tracer          trace.Tracer

	promReg  *prometheus.Registry
	metrics  *Metrics
	registry *Registry
	server   *http.Server
}

// GatewayOption is a functional option for configuring Gateway.
type GatewayOption func(*Gateway)

// WithAddr sets the listen address.
func WithAddr(addr string) GatewayOption {
	return func(g *Gateway) {
		if addr != "" {
			g.addr = addr
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithAllowedOrigins sets the Origin allowlist for browser requests.
// Empty means local-only: any request with an Origin header is refused.
func WithAllowedOrigins(origins []string) GatewayOption {
	return func(g *Gateway) {
		g.allowedOrigins = origins
	}
}

// WithMaxBodyBytes caps the size of a single POST body.
func WithMaxBodyBytes(n int64) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.maxBodyBytes = n
		}
	}
}

// WithGatewaySessionTimeout sets the session inactivity window.
func WithGatewaySessionTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.sessionTimeout = d
		}
	}
}

// WithGatewaySweepInterval sets the session sweep cadence.
func WithGatewaySweepInterval(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.sweepInterval = d
		}
	}
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.shutdownTimeout = d
		}
	}
}

// WithTransportFactory overrides how session transports are built.
// Tests use this to substitute fakes.
func WithTransportFactory(f TransportFactory) GatewayOption {
	return func(g *Gateway) {
		if f != nil {
			g.factory = f
		}
	}
}

// WithVersion sets the version string reported by /health.
func WithVersion(v string) GatewayOption {
	return func(g *Gateway) {
		g.version = v
	}
}

// WithGatewayTracer sets the tracer used to span inbound requests.
func WithGatewayTracer(tracer trace.Tracer) GatewayOption {
	return func(g *Gateway) {
		if tracer != nil {
			g.tracer = tracer
		}
	}
}

// WithMetrics supplies a pre-built metric set and its Prometheus
// registry. Callers use this when other components need a counter from
// the set before the gateway exists; otherwise New builds both.
func WithMetrics(m *Metrics, reg *prometheus.Registry) GatewayOption {
	return func(g *Gateway) {
		if m != nil && reg != nil {
			g.metrics = m
			g.promReg = reg
		}
	}
}

// New creates a Gateway serving the given MCP server. The Prometheus
// registry and metrics are built eagerly so callers can wire counters
// into other components before Start.
func New(srv *mcpserver.Server, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		addr:            "127.0.0.1:8080",
		logger:          slog.Default(),
		mcpServer:       srv,
		maxBodyBytes:    DefaultMaxBodyBytes,
		sessionTimeout:  DefaultSessionTimeout,
		sweepInterval:   DefaultSweepInterval,
		shutdownTimeout: DefaultShutdownTimeout,
		tracer:          noop.NewTracerProvider().Tracer("gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.promReg == nil {
		g.promReg = NewPrometheusRegistry()
		g.metrics = NewMetrics(g.promReg)
	}

	g.registry = NewRegistry(
		WithSessionTimeout(g.sessionTimeout),
		WithSweepInterval(g.sweepInterval),
		WithRegistryLogger(g.logger),
		WithActiveSessionsGauge(g.metrics.ActiveSessions),
	)

	if g.factory == nil {
		g.factory = func(hooks mcpserver.Hooks) SessionTransport {
			t := mcpserver.NewTransport(srv)
			t.SetHooks(hooks)
			return t
		}
	}

	return g
}

// Metrics returns the gateway's metric set. Available before Start so
// other components can record into the shared registry.
func (g *Gateway) Metrics() *Metrics {
	return g.metrics
}

// Registry returns the session registry.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Handler builds the full middleware chain and mux. Exposed for tests;
// Start wires it into the HTTP server.
func (g *Gateway) Handler() http.Handler {
	mcpHandler := newMCPHandler(g.registry, g.factory, g.logger, g.maxBodyBytes)

	// Middleware order (outermost first):
	// 1. MetricsMiddleware - record duration and status for the full chain
	// 2. RecoverMiddleware - panics become JSON-RPC internal errors
	// 3. RequestIDMiddleware - correlation ID and enriched logger
	// 4. TracingMiddleware - per-request span
	// 5. DNSRebindingProtection - Origin allowlist
	// 6. Handler - MCP request handling
	handler := DNSRebindingProtection(g.allowedOrigins)(mcpHandler)
	handler = TracingMiddleware(g.tracer)(handler)
	handler = RequestIDMiddleware(g.logger)(handler)
	handler = RecoverMiddleware(g.logger)(handler)
	handler = MetricsMiddleware(g.metrics)(handler)

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.Handle("/mcp/", handler)
	mux.Handle("/health", NewHealthChecker(g.registry, g.version).Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(g.promReg, promhttp.HandlerOpts{
		Registry: g.promReg,
	}))
	mux.Handle("/favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))

	return mux
}

// Start runs the HTTP server until the context is cancelled or the
// listener fails, then shuts down gracefully.
func (g *Gateway) Start(ctx context.Context) error {
	g.registry.StartSweeper(ctx)

	g.server = &http.Server{
		Addr:    g.addr,
		Handler: g.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("starting HTTP server", "addr", g.addr)
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		g.logger.Info("context cancelled, shutting down HTTP server")
		return g.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown closes all sessions, then drains the HTTP server, bounded by
// the shutdown timeout.
func (g *Gateway) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), g.shutdownTimeout)
	defer cancel()

	g.registry.Shutdown(ctx)

	if err := g.server.Shutdown(ctx); err != nil {
		g.logger.Error("error during server shutdown", "error", err)
		return err
	}

	g.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the gateway.
func (g *Gateway) Close() error {
	if g.server == nil {
		return nil
	}
	return g.shutdown()
}
