package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vidfriends/videotube/internal/config"
)

// Server wraps the http.Server with sensible defaults.
type Server struct {
	inner           *http.Server
	shutdownTimeout time.Duration
}

// New constructs a server listening on the provided port. Zero timeouts in cfg
// fall back to the package defaults.
func New(port int, handler http.Handler, cfg config.HTTPConfig) *Server {
	readHeader := cfg.ReadHeaderTimeout
	if readHeader <= 0 {
		readHeader = 5 * time.Second
	}
	write := cfg.WriteTimeout
	if write <= 0 {
		// video uploads stream through the handler before the response is written
		write = 5 * time.Minute
	}
	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = ShutdownTimeout
	}

	return &Server{
		inner: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: readHeader,
			WriteTimeout:      write,
		},
		shutdownTimeout: shutdown,
	}
}

// Addr reports the listen address.
func (s *Server) Addr() string {
	return s.inner.Addr
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully terminates the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
