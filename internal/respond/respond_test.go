package respond

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vidfriends/videotube/internal/apperr"
	"github.com/vidfriends/videotube/internal/repositories"
)

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Renderer{}.Success(context.Background(), rec, http.StatusCreated, map[string]string{"k": "v"}, "created")

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, float64(201), body["statusCode"])
	require.Equal(t, "created", body["message"])
	require.Equal(t, true, body["success"])
	require.Equal(t, map[string]any{"k": "v"}, body["data"])
}

func TestErrorEnvelopeHidesStackInProduction(t *testing.T) {
	err := apperr.NotFound("Tweet not found")

	dev := httptest.NewRecorder()
	Renderer{}.Error(context.Background(), dev, err)

	var devBody map[string]any
	require.NoError(t, json.Unmarshal(dev.Body.Bytes(), &devBody))
	require.Equal(t, http.StatusNotFound, dev.Code)
	require.Equal(t, false, devBody["success"])
	require.Equal(t, "Tweet not found", devBody["message"])
	require.Nil(t, devBody["data"])
	require.Equal(t, []any{}, devBody["errors"])
	require.NotEmpty(t, devBody["stack"])

	prod := httptest.NewRecorder()
	Renderer{Production: true}.Error(context.Background(), prod, err)

	var prodBody map[string]any
	require.NoError(t, json.Unmarshal(prod.Body.Bytes(), &prodBody))
	_, hasStack := prodBody["stack"]
	require.False(t, hasStack)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"app error", apperr.Forbidden("nope"), http.StatusForbidden},
		{"wrapped app error", fmt.Errorf("ctx: %w", apperr.Conflict("dup")), http.StatusConflict},
		{"not found", fmt.Errorf("find: %w", repositories.ErrNotFound), http.StatusNotFound},
		{"conflict", repositories.ErrConflict, http.StatusConflict},
		{"invalid id", repositories.ErrInvalidID, http.StatusBadRequest},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.status, Classify(tc.err).Status())
		})
	}
}

func TestInternalErrorsDoNotLeakCause(t *testing.T) {
	rec := httptest.NewRecorder()
	Renderer{Production: true}.Error(context.Background(), rec, errors.New("dial tcp 10.0.0.1: refused"))

	var body ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, http.StatusInternalServerError, body.StatusCode)
	require.Equal(t, "Something went wrong", body.Message)
}
