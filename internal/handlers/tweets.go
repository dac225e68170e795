package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/vidfriends/videotube/internal/apperr"
	"github.com/vidfriends/videotube/internal/models"
	"github.com/vidfriends/videotube/internal/repositories"
	"github.com/vidfriends/videotube/internal/respond"
)

// MaxTweetLength is the longest tweet accepted, in characters after trimming.
const MaxTweetLength = 280

// TweetHandler implements the tweet endpoints.
type TweetHandler struct {
	Tweets   TweetStore
	Users    UserStore
	Renderer respond.Renderer
	NowFunc  func() time.Time
}

type tweetRequest struct {
	Content string `json:"content"`
}

func validTweetContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", apperr.BadRequest("Tweet content cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxTweetLength {
		return "", apperr.BadRequest("Tweet cannot exceed 280 characters")
	}
	return content, nil
}

// Create handles POST /tweets.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	var req tweetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}
	content, err := validTweetContent(req.Content)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	now := utcNow(h.NowFunc)
	tweet := models.Tweet{
		ID:        uuid.NewString(),
		Content:   content,
		Owner:     user.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Tweets.Create(ctx, tweet); err != nil {
		h.Renderer.Error(ctx, w, apperr.Internal("Failed to create tweet", err))
		return
	}

	h.Renderer.Success(ctx, w, http.StatusCreated, tweet, "Tweet posted successfully")
}

// ListByUser handles GET /tweets/user/{userId}.
func (h TweetHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := pathID(r, "userId", "user id")
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	owner, err := h.Users.FindByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		h.Renderer.Success(ctx, w, http.StatusOK, []models.UserTweets{}, "User has no tweets")
		return
	}
	if err != nil {
		h.Renderer.Error(ctx, w, apperr.Internal("Something went wrong while fetching user tweets", err))
		return
	}

	tweets, err := h.Tweets.ListByOwner(ctx, owner.ID)
	if err != nil {
		h.Renderer.Error(ctx, w, apperr.Internal("Something went wrong while fetching user tweets", err))
		return
	}
	if tweets == nil {
		tweets = []models.Tweet{}
	}

	h.Renderer.Success(ctx, w, http.StatusOK, []models.UserTweets{{
		ID:         owner.ID,
		FullName:   owner.FullName,
		Username:   owner.Username,
		Avatar:     owner.Avatar,
		Tweets:     tweets,
		TweetCount: len(tweets),
	}}, "User tweets fetched successfully")
}

// Update handles PATCH /tweets/{tweetId}.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}
	tweetID, err := pathID(r, "tweetId", "tweet id")
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	var req tweetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}
	content, err := validTweetContent(req.Content)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	tweet, err := h.Tweets.UpdateOwned(ctx, tweetID, user.ID, content)
	if err != nil {
		h.Renderer.Error(ctx, w, ownedNotFound(err, "Tweet not found"))
		return
	}

	h.Renderer.Success(ctx, w, http.StatusOK, tweet, "Tweet updated successfully")
}

// Delete handles DELETE /tweets/{tweetId}.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}
	tweetID, err := pathID(r, "tweetId", "tweet id")
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	if _, err := h.Tweets.DeleteOwned(ctx, tweetID, user.ID); err != nil {
		h.Renderer.Error(ctx, w, ownedNotFound(err, "Tweet not found"))
		return
	}

	h.Renderer.Success(ctx, w, http.StatusOK, struct{}{}, "Tweet deleted successfully")
}

// ownedNotFound gives owner-scoped misses a resource-specific message.
func ownedNotFound(err error, message string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, message, err)
	}
	return err
}
