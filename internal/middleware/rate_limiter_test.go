package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vidfriends/videotube/internal/respond"
)

func TestIPRateLimiterRefills(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Second, 1, time.Minute).(*ipRateLimiter)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	require.True(t, limiter.Allow("1.2.3.4"))
	require.False(t, limiter.Allow("1.2.3.4"))
	require.True(t, limiter.Allow("5.6.7.8"))
}

func TestIPRateLimiterSweepsIdleKeys(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Minute).(*ipRateLimiter)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	require.True(t, limiter.Allow("1.2.3.4"))
	now = now.Add(2 * time.Minute)
	limiter.Allow("5.6.7.8")

	limiter.mu.Lock()
	_, kept := limiter.buckets["1.2.3.4"]
	limiter.mu.Unlock()
	require.False(t, kept)
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Hour)
	handler := RateLimit(limiter, "login", respond.Renderer{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/users/login", nil)
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("10.0.0.1, 172.16.0.1"))
	require.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	require.Equal(t, http.StatusOK, send("10.0.0.2"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	require.Equal(t, "192.0.2.1", clientIP(req))
	require.Equal(t, "scope:192.0.2.1", rateLimitKey(req, "scope"))
}
