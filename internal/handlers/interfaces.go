package handlers

import (
	"context"

	"github.com/vidfriends/videotube/internal/auth"
	"github.com/vidfriends/videotube/internal/media"
	"github.com/vidfriends/videotube/internal/models"
)

// UserStore captures the persistence operations required by the user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByLogin(ctx context.Context, username, email string) (models.User, error)
	UpdateAccount(ctx context.Context, id, fullName, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetAvatar(ctx context.Context, id, url string) (models.User, error)
	SetCoverImage(ctx context.Context, id, url string) (models.User, error)
	AddToWatchHistory(ctx context.Context, id, videoID string) error
}

// TweetStore captures persistence for tweets.
type TweetStore interface {
	Create(ctx context.Context, tweet models.Tweet) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.Tweet, error)
	UpdateOwned(ctx context.Context, id, ownerID, content string) (models.Tweet, error)
	DeleteOwned(ctx context.Context, id, ownerID string) (models.Tweet, error)
}

// VideoStore captures persistence for videos.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Video, error)
	FindOwned(ctx context.Context, id, ownerID string) (models.Video, error)
	UpdateOwned(ctx context.Context, id, ownerID string, patch models.VideoPatch) (models.Video, error)
	DeleteOwned(ctx context.Context, id, ownerID string) (models.Video, error)
	List(ctx context.Context, query models.VideoQuery) ([]models.Video, int64, error)
}

// SessionManager issues, rotates and revokes authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, user models.User) (models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
	Revoke(ctx context.Context, userID string) error
	Verify(accessToken string) (auth.AccessClaims, error)
}

// MediaTransfer moves staged uploads into the object store and removes them.
type MediaTransfer interface {
	Upload(ctx context.Context, localPath string) (media.Asset, error)
	Remove(ctx context.Context, publicID string, kind media.Kind)
}

// AssetJanitor discards superseded remote assets off the request path.
type AssetJanitor interface {
	Discard(ctx context.Context, url string)
}
