package httpserver

import (
	"context"
	"time"
)

// ShutdownTimeout controls how long to wait for graceful shutdowns when the
// configuration does not say otherwise.
var ShutdownTimeout = 10 * time.Second

// Drain shuts the server down, waiting at most the configured shutdown timeout
// for in-flight requests. It ignores cancellation of ctx.
func (s *Server) Drain(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}
