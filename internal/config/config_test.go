package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Port)
	require.Equal(t, "/api/v1", cfg.APIPrefix)
	require.Equal(t, "mongo", cfg.Database.Driver)
	require.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	require.Equal(t, 240*time.Hour, cfg.Auth.RefreshTokenTTL)
	require.Equal(t, int64(2*1024*1024), cfg.Media.MaxImageBytes)
	require.NotEmpty(t, cfg.Auth.AccessTokenSecret)
	require.NotEqual(t, cfg.Auth.AccessTokenSecret, cfg.Auth.RefreshTokenSecret)
	require.False(t, cfg.IsProduction())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("VIDEOTUBE_PORT", "9090")
	t.Setenv("VIDEOTUBE_API_PREFIX", "api/v2/")
	t.Setenv("VIDEOTUBE_DATABASE_DRIVER", "postgres")
	t.Setenv("VIDEOTUBE_AUTH_ACCESS_TOKEN_TTL", "30s")
	t.Setenv("VIDEOTUBE_AUTH_ACCESS_TOKEN_SECRET", "a")
	t.Setenv("VIDEOTUBE_AUTH_REFRESH_TOKEN_SECRET", "b")
	t.Setenv("VIDEOTUBE_MEDIA_BUCKET", "clips")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, "/api/v2", cfg.APIPrefix)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, 30*time.Second, cfg.Auth.AccessTokenTTL)
	require.Equal(t, "a", cfg.Auth.AccessTokenSecret)
	require.Equal(t, "clips", cfg.Media.Bucket)
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Setenv("VIDEOTUBE_ENV", "production")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("VIDEOTUBE_AUTH_ACCESS_TOKEN_SECRET", "access")
	t.Setenv("VIDEOTUBE_AUTH_REFRESH_TOKEN_SECRET", "refresh")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("VIDEOTUBE_DATABASE_DRIVER", "sqlite")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsSharedSecrets(t *testing.T) {
	t.Setenv("VIDEOTUBE_AUTH_ACCESS_TOKEN_SECRET", "same")
	t.Setenv("VIDEOTUBE_AUTH_REFRESH_TOKEN_SECRET", "same")

	_, err := Load()
	require.Error(t, err)
}
