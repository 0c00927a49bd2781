package handler

import (
	"context"
	"net/http"
	"time"

	"repairchat/internal/httputil"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers liveness probes
type HealthHandler struct {
	store Pinger // nil for the in-memory store
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// HealthCheck is a simple health check endpoint
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			httputil.RespondError(w, http.StatusServiceUnavailable, "database unreachable", nil)
			return
		}
	}

	httputil.RespondSuccess(w, http.StatusOK, "ok", map[string]any{
		"status": "ok",
		"time":   time.Now(),
	})
}
