package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// WindowService receives host-window focus transitions.
type WindowService interface {
	Focus(ctx context.Context)
	Blur()
}

// WindowHandler turns window signals into focus gate transitions.
type WindowHandler struct {
	svc WindowService
}

func NewWindowHandler(svc WindowService) *WindowHandler {
	return &WindowHandler{svc: svc}
}

func (h *WindowHandler) Action(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "focus":
		// A deferred thread replays here; it must finish even if the caller hangs up.
		h.svc.Focus(context.WithoutCancel(r.Context()))
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "focused"})
	case "blur":
		h.svc.Blur()
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "blurred"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
