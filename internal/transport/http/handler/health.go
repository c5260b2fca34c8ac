package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-read-marker/internal/domain"
)

// HealthHandler answers liveness and readiness checks.
type HealthHandler struct {
	ready func() bool
}

// NewHealthHandler takes the readiness check; nil means always ready.
func NewHealthHandler(ready func() bool) *HealthHandler {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &HealthHandler{ready: ready}
}

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "ready":
		if !h.ready() {
			httpError(w, fmt.Errorf("event stream not connected: %w", domain.ErrUnavailable))
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ready"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
