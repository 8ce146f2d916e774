package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus is the overall verdict reported by /health.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus is the state of one dependency.
type ComponentStatus string

const (
	ComponentStatusUp   ComponentStatus = "up"
	ComponentStatusDown ComponentStatus = "down"
)

// Health is the body of GET /health.
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Commit     string                     `json:"commit,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth reports one dependency, with the check latency in
// milliseconds.
type ComponentHealth struct {
	Status    ComponentStatus   `json:"status"`
	Message   string            `json:"message,omitempty"`
	LatencyMs float64           `json:"latency_ms"`
	Details   map[string]string `json:"details,omitempty"`
}

const healthTimeout = 2 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.checkHealth(r.Context())

	status := http.StatusOK
	if health.Status != HealthStatusHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// handleLive answers as long as the process is serving.
func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) checkHealth(ctx context.Context) Health {
	health := Health{
		Timestamp:  time.Now().UTC(),
		Version:    s.build.Version,
		Commit:     s.build.Commit,
		Components: map[string]ComponentHealth{"storage": s.checkStorage(ctx)},
	}
	health.Status = determineOverallHealth(health.Components)
	return health
}

func (s *Server) checkStorage(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	start := time.Now()
	err := s.store.Ping(ctx)
	latency := float64(time.Since(start).Microseconds()) / 1000

	ch := ComponentHealth{
		Status:    ComponentStatusUp,
		LatencyMs: latency,
		Details:   map[string]string{"backend": s.store.Kind()},
	}
	if err != nil {
		loggerFrom(ctx).WithError(err).Warn("storage health check failed")
		ch.Status = ComponentStatusDown
		ch.Message = "storage unreachable"
	}
	return ch
}

func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	for _, c := range components {
		if c.Status != ComponentStatusUp {
			return HealthStatusUnhealthy
		}
	}
	return HealthStatusHealthy
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
