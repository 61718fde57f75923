// internal/handler/health_handler.go
package handler

import (
	"context"
	"net/http"
	"time"
)

// Check reports whether one dependency is reachable
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Check
}

func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		sendError(w, r, http.StatusServiceUnavailable, "unhealthy")
		return
	}
	sendSuccess(w, r, http.StatusOK, "OK", status)
}
