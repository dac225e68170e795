package handlers

import (
	"context"
	"net/http"

	"github.com/vidfriends/videotube/internal/apperr"
	"github.com/vidfriends/videotube/internal/respond"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	Renderer respond.Renderer
	// Check probes the backing store; nil skips it.
	Check func(ctx context.Context) error
}

type healthStatus struct {
	Status string `json:"status"`
}

// Handle implements GET /healthcheck.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Check != nil {
		if err := h.Check(ctx); err != nil {
			h.Renderer.Error(ctx, w, apperr.Internal("Service unhealthy", err))
			return
		}
	}
	h.Renderer.Success(ctx, w, http.StatusOK, healthStatus{Status: "ok"}, "Health check passed")
}
