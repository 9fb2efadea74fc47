package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/coursepilot/internal/domain"
)

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Clear(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func sessionRequest(id string) *http.Request {
	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestSessionHandler_Delete(t *testing.T) {
	mockSvc := new(MockSessionService)
	handler := NewSessionHandler(mockSvc)

	mockSvc.On("Clear", "sess-1").Return(nil)

	w := httptest.NewRecorder()
	handler.Delete(w, sessionRequest("sess-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestSessionHandler_Delete_NotFound(t *testing.T) {
	mockSvc := new(MockSessionService)
	handler := NewSessionHandler(mockSvc)

	mockSvc.On("Clear", "ghost").Return(domain.ErrSessionNotFound)

	w := httptest.NewRecorder()
	handler.Delete(w, sessionRequest("ghost"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
