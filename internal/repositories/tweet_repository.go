package repositories

import (
	"context"

	"github.com/vidfriends/videotube/internal/models"
)

// TweetRepository exposes data access for tweets. Owned operations match on
// both id and owner so a tweet belonging to someone else reads as missing.
type TweetRepository interface {
	Create(ctx context.Context, tweet models.Tweet) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.Tweet, error)
	UpdateOwned(ctx context.Context, id, ownerID, content string) (models.Tweet, error)
	DeleteOwned(ctx context.Context, id, ownerID string) (models.Tweet, error)
}
