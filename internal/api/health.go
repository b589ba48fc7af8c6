package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/manolo/internal/store"
	"github.com/go-chi/chi/v5"
)

// Check probes one optional dependency.
type Check func(ctx context.Context) error

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo    store.Repository
	timeout time.Duration
	checks  map[string]Check
}

// NewHealthHandler creates a new health handler. Extra checks are reported
// individually but only the database decides the status code.
func NewHealthHandler(repo store.Repository, timeout time.Duration, checks map[string]Check) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{repo: repo, timeout: timeout, checks: checks}
}

// Health returns the health status of the bot and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			slog.Warn("Optional health check failed", "check", name, "error", err)
			checks[name] = "unavailable"
			continue
		}
		checks[name] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
