package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker tracks liveness signals for the health endpoint
type HealthChecker struct {
	mu          sync.RWMutex
	lastOrder   time.Time
	lastPrice   float64
	isConnected bool
	errors      []string
}

// HealthStatus is the health endpoint response body
type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	LastOrder   time.Time `json:"last_order"`
	LastPrice   float64   `json:"last_price"`
	IsConnected bool      `json:"is_connected"`
	Uptime      string    `json:"uptime"`
	Errors      []string  `json:"errors,omitempty"`
}

// NewHealthChecker creates a health checker
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// SetConnected records broker connectivity
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	h.isConnected = connected
	h.mu.Unlock()
}

// RecordOrder records the latest order activity
func (h *HealthChecker) RecordOrder(price float64) {
	h.mu.Lock()
	h.lastOrder = time.Now()
	h.lastPrice = price
	h.mu.Unlock()
}

// RecordError appends an error to the health report
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 10 {
		h.errors = h.errors[1:]
	}
	h.mu.Unlock()
}

// ServeHTTP serves the health endpoint
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if !h.isConnected {
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
		w.WriteHeader(http.StatusInternalServerError)
	}

	health := HealthStatus{
		Status:      status,
		Timestamp:   time.Now(),
		LastOrder:   h.lastOrder,
		LastPrice:   h.lastPrice,
		IsConnected: h.isConnected,
		Uptime:      time.Since(startTime).String(),
		Errors:      h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
