package middleware

import (
	"fmt"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidfriends/videotube/internal/apperr"
	"github.com/vidfriends/videotube/internal/logging"
	"github.com/vidfriends/videotube/internal/respond"
)

// RequestLogger decorates requests with structured logging metadata and
// converts panics into an Internal envelope.
func RequestLogger(base *zap.Logger, renderer respond.Renderer) func(http.Handler) http.Handler {
	if base == nil {
		base = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get("X-Request-Id")
			if requestID == "" {
				requestID = uuid.NewString()
			}

			reqLogger := base.With(
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)

			ctx := logging.WithLogger(r.Context(), reqLogger)
			ctx = logging.WithRequestID(ctx, requestID)

			wrapped := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			wrapped.Header().Set("X-Request-Id", requestID)

			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					reqLogger.Error("panic recovered", zap.Any("panic", rec), zap.Stack("stack"))
					if wrapped.Status() == 0 {
						renderer.Error(ctx, wrapped, apperr.Internal("Something went wrong", fmt.Errorf("panic: %v", rec)))
					}
				}
				status := wrapped.Status()
				if status == 0 {
					status = http.StatusOK
				}
				reqLogger.Info("request completed",
					zap.Int("status", status),
					zap.Int("bytes", wrapped.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()

			next.ServeHTTP(wrapped, r.WithContext(ctx))
		})
	}
}
