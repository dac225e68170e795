// Package respond writes the uniform JSON envelope used by every endpoint.
package respond

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/vidfriends/videotube/internal/apperr"
	"github.com/vidfriends/videotube/internal/logging"
	"github.com/vidfriends/videotube/internal/repositories"
)

// Envelope is the success payload shape.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrorEnvelope is the failure payload shape.
type ErrorEnvelope struct {
	StatusCode int      `json:"statusCode"`
	Data       any      `json:"data"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
	Stack      string   `json:"stack,omitempty"`
}

// Renderer writes envelopes. Production hides stack traces.
type Renderer struct {
	Production bool
}

// Success writes data with the given status and message.
func (rd Renderer) Success(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	writeJSON(ctx, w, status, Envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

// Error classifies err and writes the failure envelope.
func (rd Renderer) Error(ctx context.Context, w http.ResponseWriter, err error) {
	appErr := Classify(err)
	status := appErr.Status()

	logger := logging.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Warn("request rejected", zap.Int("status", status), zap.String("reason", appErr.Message))
	}

	payload := ErrorEnvelope{
		StatusCode: status,
		Message:    appErr.Message,
		Errors:     appErr.Details,
	}
	if payload.Errors == nil {
		payload.Errors = []string{}
	}
	if !rd.Production {
		payload.Stack = appErr.Stack()
	}

	writeJSON(ctx, w, status, payload)
}

// Classify maps any error onto the API taxonomy. Unknown errors become Internal.
func Classify(err error) *apperr.Error {
	if appErr, ok := apperr.As(err); ok {
		return appErr
	}

	var maxBytes *http.MaxBytesError
	switch {
	case err == nil:
		return apperr.Internal("Something went wrong", errors.New("nil error rendered"))
	case errors.As(err, &maxBytes):
		return apperr.Wrap(apperr.KindBadRequest, "Request body too large", err)
	case errors.Is(err, repositories.ErrInvalidID):
		return apperr.Wrap(apperr.KindBadRequest, "Invalid identifier", err)
	case errors.Is(err, repositories.ErrNotFound):
		return apperr.Wrap(apperr.KindNotFound, "Resource not found", err)
	case errors.Is(err, repositories.ErrConflict):
		return apperr.Wrap(apperr.KindConflict, "Resource already exists", err)
	default:
		return apperr.Internal("Something went wrong", err)
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response", zap.Error(err))
	}
}
