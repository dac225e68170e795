package auth

import (
	"context"

	"github.com/vidfriends/videotube/internal/models"
)

type userKey struct{}

// WithUser attaches the authenticated identity to ctx.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user.Public())
}

// UserFromContext returns the authenticated identity, if any.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey{}).(models.User)
	return user, ok
}
