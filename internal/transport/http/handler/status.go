package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-read-marker/internal/application/readmarker"
	"github.com/go-read-marker/internal/domain"
)

// StatusService exposes the reconciler's bookkeeping.
type StatusService interface {
	Status() readmarker.Status
	Marker(ctx context.Context, conversationID string) (string, bool)
}

type StatusHandler struct {
	svc StatusService
}

func NewStatusHandler(svc StatusService) *StatusHandler {
	return &StatusHandler{svc: svc}
}

func (h *StatusHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

func (h *StatusHandler) Marker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	messageID, ok := h.svc.Marker(r.Context(), id)
	if !ok {
		httpError(w, fmt.Errorf("no marker for %s: %w", id, domain.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, MarkerEnvelope{ConversationID: id, MessageID: messageID})
}
