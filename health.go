package pipeline

import (
	"encoding/json"
	"net/http"
	"sync"
)

// HealthStatus tracks application health
type HealthStatus struct {
	mu      sync.RWMutex
	healthy bool
	ready   bool
}

// newHealthStatus starts unhealthy and not ready; Run flips both once the
// app has started.
func newHealthStatus() *HealthStatus {
	return &HealthStatus{}
}

func (h *HealthStatus) SetHealthy(healthy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.healthy = healthy
}

func (h *HealthStatus) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

func (h *HealthStatus) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.healthy
}

func (h *HealthStatus) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// newHealthMux serves /health (alive) and /ready (accepting traffic).
func newHealthMux(status *HealthStatus) *http.ServeMux {
	m := http.NewServeMux()
	m.HandleFunc("/health", probe(status.IsHealthy, "healthy", "unhealthy"))
	m.HandleFunc("/ready", probe(status.IsReady, "ready", "not ready"))
	return m
}

func probe(check func() bool, up, down string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check() {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": up})
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": down})
	}
}
