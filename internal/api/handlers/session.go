package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/coursepilot/internal/api"
)

type SessionService interface {
	Clear(id string) error
}

type SessionHandler struct {
	svc SessionService
}

func NewSessionHandler(svc SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Clear(id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"session_id": id, "status": "cleared"})
}
