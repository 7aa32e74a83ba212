// Package health provides health check endpoints for the recetas services.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// ServiceStatus represents the status of a single dependency
type ServiceStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the structured health check response
type HealthResponse struct {
	Status    string                   `json:"status"`
	Service   string                   `json:"service"`
	Timestamp string                   `json:"timestamp"`
	Services  map[string]ServiceStatus `json:"services"`
	Version   string                   `json:"version,omitempty"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Ready     bool   `json:"ready"`
	Timestamp string `json:"timestamp"`
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Alive     bool   `json:"alive"`
	Timestamp string `json:"timestamp"`
}

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// Handler handles health check requests
type Handler struct {
	service  string
	version  string
	timeout  time.Duration
	critical map[string]CheckFunc
	optional map[string]CheckFunc
	ready    bool
	mu       sync.RWMutex
}

// Config holds health handler configuration. Any nil dependency is skipped.
// Database pools are critical; Redis only degrades the report.
type Config struct {
	Service     string
	DBPool      *pgxpool.Pool
	SQLDB       *sqlx.DB
	RedisClient *redis.Client
	Version     string
	Timeout     time.Duration
}

// NewHandler creates a new health check handler
func NewHandler(cfg Config) *Handler {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	h := &Handler{
		service:  cfg.Service,
		version:  cfg.Version,
		timeout:  timeout,
		critical: make(map[string]CheckFunc),
		optional: make(map[string]CheckFunc),
		ready:    true,
	}
	if cfg.DBPool != nil {
		h.critical["database"] = cfg.DBPool.Ping
	}
	if cfg.SQLDB != nil {
		name := "database"
		if cfg.DBPool != nil {
			name = "database_sqlx"
		}
		h.critical[name] = cfg.SQLDB.PingContext
	}
	if cfg.RedisClient != nil {
		h.optional["redis"] = func(ctx context.Context) error {
			return cfg.RedisClient.Ping(ctx).Err()
		}
	}
	return h
}

// AddCheck registers an extra check. Critical checks also gate readiness.
func (h *Handler) AddCheck(name string, critical bool, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if critical {
		h.critical[name] = check
		return
	}
	h.optional[name] = check
}

// SetReady sets the readiness state of the service
func (h *Handler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsReady returns the current readiness state
func (h *Handler) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// Health reports every dependency. Any failure answers 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	services := make(map[string]ServiceStatus)
	overallStatus := "healthy"

	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.critical)+len(h.optional))
	for name, c := range h.critical {
		checks[name] = c
	}
	for name, c := range h.optional {
		checks[name] = c
	}
	h.mu.RUnlock()

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		status := probe(ctx, checks[name])
		services[name] = status
		if status.Status != "up" {
			overallStatus = "degraded"
		}
	}

	response := HealthResponse{
		Status:    overallStatus,
		Service:   h.service,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
		Version:   h.version,
	}

	status := http.StatusOK
	if overallStatus != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// Readiness answers 200 only while the service accepts traffic and every
// critical dependency is reachable.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ready := h.IsReady()
	if ready {
		h.mu.RLock()
		for _, check := range h.critical {
			if probe(ctx, check).Status != "up" {
				ready = false
				break
			}
		}
		h.mu.RUnlock()
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, ReadinessResponse{
		Ready:     ready,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Liveness handles the liveness probe endpoint
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Alive:     true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func probe(ctx context.Context, check CheckFunc) ServiceStatus {
	start := time.Now()
	err := check(ctx)
	latency := time.Since(start)

	if err != nil {
		return ServiceStatus{
			Status:  "down",
			Latency: latency.String(),
			Error:   err.Error(),
		}
	}
	return ServiceStatus{
		Status:  "up",
		Latency: latency.String(),
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
