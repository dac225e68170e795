package repositories

import (
	"context"

	"github.com/vidfriends/videotube/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	// FindByLogin returns the first user whose username or email matches either argument.
	FindByLogin(ctx context.Context, username, email string) (models.User, error)
	UpdateAccount(ctx context.Context, id, fullName, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetAvatar(ctx context.Context, id, url string) (models.User, error)
	SetCoverImage(ctx context.Context, id, url string) (models.User, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	// RotateRefreshToken swaps current for next only while current is still the stored value.
	RotateRefreshToken(ctx context.Context, id, current, next string) error
	AddToWatchHistory(ctx context.Context, id, videoID string) error
}
