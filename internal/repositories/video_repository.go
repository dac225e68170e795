package repositories

import (
	"context"

	"github.com/vidfriends/videotube/internal/models"
)

// VideoRepository exposes data access for videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Video, error)
	FindOwned(ctx context.Context, id, ownerID string) (models.Video, error)
	UpdateOwned(ctx context.Context, id, ownerID string, patch models.VideoPatch) (models.Video, error)
	DeleteOwned(ctx context.Context, id, ownerID string) (models.Video, error)
	List(ctx context.Context, query models.VideoQuery) ([]models.Video, int64, error)
}
