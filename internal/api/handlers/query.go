package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/coursepilot/internal/api"
	"github.com/cloo-solutions/coursepilot/internal/service"
)

type QueryService interface {
	Query(ctx context.Context, question, sessionID string) (*service.Answer, error)
}

type QueryHandler struct {
	svc QueryService
}

func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type SourceResponse struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

type QueryResponse struct {
	Answer    string           `json:"answer"`
	Sources   []SourceResponse `json:"sources"`
	SessionID string           `json:"session_id"`
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	answer, err := h.svc.Query(r.Context(), req.Query, req.SessionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	sources := make([]SourceResponse, len(answer.Citations))
	for i, c := range answer.Citations {
		sources[i] = SourceResponse{Text: c.Display(), Link: c.Link}
	}

	api.Success(w, http.StatusOK, QueryResponse{
		Answer:    answer.Text,
		Sources:   sources,
		SessionID: answer.SessionID,
	})
}
