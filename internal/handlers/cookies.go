package handlers

import (
	"net/http"
	"time"

	"github.com/vidfriends/videotube/internal/middleware"
	"github.com/vidfriends/videotube/internal/models"
)

// RefreshTokenCookie names the cookie carrying the refresh token.
const RefreshTokenCookie = "refreshToken"

// CookieConfig shapes the session cookies.
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (c CookieConfig) set(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, c.cookie(middleware.AccessTokenCookie, pair.AccessToken, c.AccessTTL))
	http.SetCookie(w, c.cookie(RefreshTokenCookie, pair.RefreshToken, c.RefreshTTL))
}

func (c CookieConfig) clear(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		cookie := c.cookie(name, "", 0)
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		http.SetCookie(w, cookie)
	}
}

func (c CookieConfig) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
