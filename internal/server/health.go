package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// Health is the /health response body.
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
}

// healthHandler reports storage reachability; 503 when it is down.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := Health{
		Timestamp:  time.Now().UTC(),
		Version:    s.build.Version,
		Components: map[string]ComponentHealth{"storage": s.checkStorage(r.Context())},
	}
	health.Status = overallHealth(health.Components)

	status := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(health)
}

// liveHandler answers as long as the process is serving.
func (s *Server) liveHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

func (s *Server) checkStorage(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := s.store.Check(ctx); err != nil {
		return ComponentHealth{Status: ComponentStatusDown, Message: "storage check failed: " + err.Error()}
	}
	latency := time.Since(start).Milliseconds()

	if latency > 2000 {
		return ComponentHealth{Status: ComponentStatusDegraded, Message: "storage latency high", LatencyMs: float64(latency)}
	}
	return ComponentHealth{Status: ComponentStatusUp, Message: "storage healthy", LatencyMs: float64(latency)}
}

func overallHealth(components map[string]ComponentHealth) HealthStatus {
	status := HealthStatusHealthy
	for _, c := range components {
		switch c.Status {
		case ComponentStatusDown:
			return HealthStatusUnhealthy
		case ComponentStatusDegraded:
			status = HealthStatusDegraded
		}
	}
	return status
}
