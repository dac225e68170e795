package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vidfriends/videotube/internal/respond"
)

func TestHealthHandlerHandle(t *testing.T) {
	handler := HealthHandler{Renderer: respond.Renderer{Production: true}}

	rec := httptest.NewRecorder()
	handler.Handle(rec, httptest.NewRequest(http.MethodGet, "/api/v1/healthcheck", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	handler.Check = func(context.Context) error { return errors.New("mongo unreachable") }
	rec = httptest.NewRecorder()
	handler.Handle(rec, httptest.NewRequest(http.MethodGet, "/api/v1/healthcheck", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "mongo unreachable")
}
