package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vidfriends/videotube/internal/apperr"
	"github.com/vidfriends/videotube/internal/auth"
	"github.com/vidfriends/videotube/internal/logging"
	"github.com/vidfriends/videotube/internal/models"
	"github.com/vidfriends/videotube/internal/repositories"
	"github.com/vidfriends/videotube/internal/respond"
)

// AccessTokenCookie names the cookie carrying the access token.
const AccessTokenCookie = "accessToken"

// maxTokenBody bounds how much of a JSON body is buffered while looking for a token.
const maxTokenBody = 16 << 10

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(accessToken string) (auth.AccessClaims, error)
}

// IdentityLoader resolves the user behind a verified token.
type IdentityLoader interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// Authenticate rejects requests without a valid access token and attaches the
// caller's public identity to the request context.
func Authenticate(verifier TokenVerifier, users IdentityLoader, renderer respond.Renderer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx)

			token := extractAccessToken(r)
			if token == "" {
				renderer.Error(ctx, w, apperr.Unauthorized("Unauthorized request"))
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("access token rejected", zap.Error(err))
				renderer.Error(ctx, w, apperr.Wrap(apperr.KindUnauthorized, "Invalid access token", err))
				return
			}

			user, err := users.FindByID(ctx, claims.Subject)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) || errors.Is(err, repositories.ErrInvalidID) {
					renderer.Error(ctx, w, apperr.Wrap(apperr.KindUnauthorized, "Invalid access token", err))
					return
				}
				renderer.Error(ctx, w, apperr.Internal("Something went wrong", err))
				return
			}

			ctx = auth.WithUser(ctx, user)
			ctx = logging.WithUserID(ctx, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractAccessToken looks at the cookie, then a JSON body field, then the
// Authorization header. The body is restored for downstream handlers.
func extractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value
		}
	}

	if token := accessTokenFromBody(r); token != "" {
		return token
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}

func accessTokenFromBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return ""
	}

	buffered, err := io.ReadAll(io.LimitReader(r.Body, maxTokenBody+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buffered), r.Body), r.Body}
	if err != nil || len(buffered) > maxTokenBody {
		return ""
	}

	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(buffered, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.AccessToken)
}
