package httpserver

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vidfriends/videotube/internal/config"
)

func TestNewAppliesConfig(t *testing.T) {
	srv := New(8123, http.NotFoundHandler(), config.HTTPConfig{
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      2 * time.Second,
		ShutdownTimeout:   3 * time.Second,
	})

	require.Equal(t, ":8123", srv.Addr())
	require.Equal(t, time.Second, srv.inner.ReadHeaderTimeout)
	require.Equal(t, 2*time.Second, srv.inner.WriteTimeout)
	require.Equal(t, 3*time.Second, srv.shutdownTimeout)
}

func TestNewDefaults(t *testing.T) {
	srv := New(8000, http.NotFoundHandler(), config.HTTPConfig{})

	require.Equal(t, 5*time.Second, srv.inner.ReadHeaderTimeout)
	require.Equal(t, 5*time.Minute, srv.inner.WriteTimeout)
	require.Equal(t, ShutdownTimeout, srv.shutdownTimeout)
}

func TestDrainBeforeStart(t *testing.T) {
	srv := New(0, http.NotFoundHandler(), config.HTTPConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, srv.Drain(ctx))
	require.ErrorIs(t, srv.Start(), http.ErrServerClosed)
}
