package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sony/gobreaker"
)

// ProbeTimeout bounds a single readiness probe.
const ProbeTimeout = 3 * time.Second

// Prober reports whether a dependency is ready.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to [Prober].
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// NewCircuitBreaker returns a breaker that trips after 3 consecutive failures and
// resets after 30 seconds in the open state.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

type probeResponse struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	prober Prober
	cb     *gobreaker.CircuitBreaker
	logger *log.Logger
}

// NewHealthHandler wraps prober in a circuit breaker. A nil prober is always ready.
func NewHealthHandler(prober Prober, logger *log.Logger) *HealthHandler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &HealthHandler{prober: prober, cb: NewCircuitBreaker("database"), logger: logger}
}

func (h *HealthHandler) Routes() []string {
	return []string{"/healthz", "/readyz"}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/healthz":
		writeProbe(w, http.StatusOK, probeResponse{Status: "ok"})
	case "/readyz":
		h.ready(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *HealthHandler) ready(w http.ResponseWriter, r *http.Request) {
	if h.prober == nil {
		writeProbe(w, http.StatusOK, probeResponse{Status: "ok"})
		return
	}

	start := time.Now()
	_, err := h.cb.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(r.Context(), ProbeTimeout)
		defer cancel()
		return nil, h.prober.Probe(ctx)
	})
	latency := time.Since(start).Milliseconds()

	if err != nil {
		msg := err.Error()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			msg = "circuit open"
		}
		h.logger.Warn("readiness probe failed", "error", err, "breaker", h.cb.State().String())
		writeProbe(w, http.StatusServiceUnavailable, probeResponse{Status: "unavailable", Error: msg, LatencyMs: latency})
		return
	}
	writeProbe(w, http.StatusOK, probeResponse{Status: "ok", LatencyMs: latency})
}

func writeProbe(w http.ResponseWriter, status int, body probeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
