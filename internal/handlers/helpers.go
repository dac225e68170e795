package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vidfriends/videotube/internal/apperr"
	"github.com/vidfriends/videotube/internal/auth"
	"github.com/vidfriends/videotube/internal/models"
)

// maxJSONBody mirrors the 16 KiB limit applied to JSON request bodies.
const maxJSONBody = 16 << 10

// decodeJSON reads an optional JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return classifyBodyError(err, "Invalid request body")
	}
	return nil
}

// currentUser returns the identity attached by the auth gate.
func currentUser(r *http.Request) (models.User, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user.ID == "" {
		return models.User{}, apperr.Unauthorized("Unauthorized request")
	}
	return user, nil
}

// pathID reads and validates a UUID route parameter.
func pathID(r *http.Request, name, label string) (string, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return "", apperr.BadRequest(label + " is missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperr.Wrap(apperr.KindBadRequest, "Invalid "+label+" format", err)
	}
	return id.String(), nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.BadRequest("Invalid email address")
	}
	return email, nil
}

func utcNow(now func() time.Time) time.Time {
	if now != nil {
		return now().UTC()
	}
	return time.Now().UTC()
}
