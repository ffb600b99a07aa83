package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kanjialive/kanjialive-mcp-server/internal/mcpserver"
)

// Default session lifecycle intervals.
const (
	DefaultSessionTimeout = 30 * time.Minute
	DefaultSweepInterval  = 5 * time.Minute
)

// SessionTransport is the per-session endpoint the registry tracks. The
// concrete implementation is *mcpserver.Transport; tests substitute fakes.
type SessionTransport interface {
	ServeMessage(ctx context.Context, body []byte, w mcpserver.ResponseWriter)
	SessionID() string
	Notifications() <-chan []byte
	Close(ctx context.Context) error
}

// sessionEntry pairs a transport with its last-access timestamp.
type sessionEntry struct {
	transport  SessionTransport
	lastAccess time.Time
}

// Registry indexes live session transports by session ID and reaps the
// ones idle past the session timeout.
type Registry struct {
	logger        *slog.Logger
	timeout       time.Duration
	sweepInterval time.Duration
	gauge         prometheus.Gauge
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry

	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// RegistryOption is a functional option for configuring Registry.
type RegistryOption func(*Registry)

// WithSessionTimeout sets the inactivity window before a session is
// reaped.
func WithSessionTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithSweepInterval sets how often the registry scans for expired
// sessions.
func WithSweepInterval(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.sweepInterval = d
		}
	}
}

// WithRegistryLogger sets the logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithActiveSessionsGauge wires a gauge that tracks registry size.
func WithActiveSessionsGauge(g prometheus.Gauge) RegistryOption {
	return func(r *Registry) {
		r.gauge = g
	}
}

// withClock overrides the time source for tests.
func withClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates a Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:        slog.Default(),
		timeout:       DefaultSessionTimeout,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		sessions:      make(map[string]*sessionEntry),
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add indexes a transport under its session ID and stamps last-access.
// Called from the transport's session-established hook, before the ID
// reaches the client.
func (r *Registry) Add(sessionID string, t SessionTransport) {
	r.mu.Lock()
	r.sessions[sessionID] = &sessionEntry{transport: t, lastAccess: r.now()}
	size := len(r.sessions)
	r.mu.Unlock()

	r.setGauge(size)
	r.logger.Debug("session registered", "session_id", sessionID, "active", size)
}

// Lookup returns the transport for sessionID and refreshes its
// last-access timestamp.
func (r *Registry) Lookup(sessionID string) (SessionTransport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	entry.lastAccess = r.now()
	return entry.transport, true
}

// Remove drops the index entry for sessionID. Called from the
// transport's close hook; it does not close the transport itself.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	size := len(r.sessions)
	r.mu.Unlock()

	r.setGauge(size)
	r.logger.Debug("session removed", "session_id", sessionID, "active", size)
}

// Len returns the number of indexed sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StartSweeper launches the background reaper. It stops when the context
// is cancelled or Stop is called.
func (r *Registry) StartSweeper(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopChan:
				return
			case <-ticker.C:
				r.sweep(ctx)
			}
		}
	}()
}

// sweep closes and removes sessions idle past the timeout. Expired
// entries are snapshotted under the lock and closed outside it; the
// close hook removes each from the index.
func (r *Registry) sweep(ctx context.Context) {
	cutoff := r.now().Add(-r.timeout)

	r.mu.Lock()
	var expired []SessionTransport
	for id, entry := range r.sessions {
		if entry.lastAccess.Before(cutoff) {
			expired = append(expired, entry.transport)
			r.logger.Info("session expired", "session_id", id)
		}
	}
	r.mu.Unlock()

	for _, t := range expired {
		if err := t.Close(ctx); err != nil {
			r.logger.Warn("closing expired session", "error", err)
		}
	}
}

// Stop halts the sweeper goroutine. Idempotent.
func (r *Registry) Stop() {
	r.once.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
}

// Shutdown stops the sweeper and closes all live sessions concurrently,
// waiting for them to settle or for the context deadline. Close failures
// are logged and swallowed.
func (r *Registry) Shutdown(ctx context.Context) {
	r.Stop()

	r.mu.Lock()
	transports := make([]SessionTransport, 0, len(r.sessions))
	for _, entry := range r.sessions {
		transports = append(transports, entry.transport)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		go func(t SessionTransport) {
			defer wg.Done()
			if err := t.Close(ctx); err != nil {
				r.logger.Warn("closing session during shutdown",
					"session_id", t.SessionID(),
					"error", err)
			}
		}(t)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("all sessions closed", "count", len(transports))
	case <-ctx.Done():
		r.logger.Warn("shutdown deadline reached with sessions still closing",
			"count", len(transports))
	}
}

func (r *Registry) setGauge(size int) {
	if r.gauge != nil {
		r.gauge.Set(float64(size))
	}
}
