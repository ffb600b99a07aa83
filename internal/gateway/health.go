package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status    string            `json:"status"`            // "healthy" or "unhealthy"
	Checks    map[string]string `json:"checks"`            // Component check results
	Version   string            `json:"version,omitempty"` // Optional version info
	GoVersion string            `json:"go_version,omitempty"`
}

// HealthChecker verifies component health.
type HealthChecker struct {
	registry *Registry
	version  string
}

// NewHealthChecker creates a HealthChecker. Pass nil for the registry if
// session tracking is not configured.
func NewHealthChecker(registry *Registry, version string) *HealthChecker {
	return &HealthChecker{registry: registry, version: version}
}

// Check performs health checks on all components.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)

	if h.registry != nil {
		// Len acquires the registry lock; if this hangs, we have a problem.
		checks["sessions"] = fmt.Sprintf("ok: %d active", h.registry.Len())
	} else {
		checks["sessions"] = "not configured"
	}

	return HealthResponse{
		Status:    "healthy",
		Checks:    checks,
		Version:   h.version,
		GoVersion: runtime.Version(),
	}
}

// Handler returns the HTTP handler for /health.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	})
}
