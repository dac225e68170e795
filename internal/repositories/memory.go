package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vidfriends/videotube/internal/models"
)

// MemoryUserRepository implements UserRepository for tests and local development.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
	now   func() time.Time
}

// NewMemoryUserRepository returns an empty in-memory user repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]models.User), now: utcNow}
}

func (r *MemoryUserRepository) Create(_ context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return ErrConflict
	}
	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return ErrConflict
		}
	}
	user.WatchHistory = append([]string{}, user.WatchHistory...)
	r.users[user.ID] = user
	return nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) FindByLogin(_ context.Context, username, email string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			return cloneUser(user), nil
		}
	}
	return models.User{}, ErrNotFound
}

func (r *MemoryUserRepository) UpdateAccount(_ context.Context, id, fullName, email string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	if email != "" && email != user.Email {
		for otherID, other := range r.users {
			if otherID != id && other.Email == email {
				return models.User{}, ErrConflict
			}
		}
		user.Email = email
	}
	if fullName != "" {
		user.FullName = fullName
	}
	user.UpdatedAt = r.now()
	r.users[id] = user
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return r.mutate(id, func(u *models.User) { u.Password = passwordHash })
}

func (r *MemoryUserRepository) SetAvatar(_ context.Context, id, url string) (models.User, error) {
	return r.mutateAndGet(id, func(u *models.User) { u.Avatar = url })
}

func (r *MemoryUserRepository) SetCoverImage(_ context.Context, id, url string) (models.User, error) {
	return r.mutateAndGet(id, func(u *models.User) { u.CoverImage = url })
}

func (r *MemoryUserRepository) SetRefreshToken(_ context.Context, id, token string) error {
	return r.mutate(id, func(u *models.User) { u.RefreshToken = token })
}

func (r *MemoryUserRepository) RotateRefreshToken(_ context.Context, id, current, next string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok || current == "" || user.RefreshToken != current {
		return ErrNotFound
	}
	user.RefreshToken = next
	r.users[id] = user
	return nil
}

func (r *MemoryUserRepository) AddToWatchHistory(_ context.Context, id, videoID string) error {
	return r.mutate(id, func(u *models.User) {
		u.WatchHistory = prependUnique(u.WatchHistory, videoID)
	})
}

func (r *MemoryUserRepository) mutate(id string, fn func(*models.User)) error {
	_, err := r.mutateAndGet(id, fn)
	return err
}

func (r *MemoryUserRepository) mutateAndGet(id string, fn func(*models.User)) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	fn(&user)
	user.UpdatedAt = r.now()
	r.users[id] = user
	return cloneUser(user), nil
}

// MemoryTweetRepository implements TweetRepository in memory.
type MemoryTweetRepository struct {
	mu     sync.RWMutex
	tweets map[string]models.Tweet
	now    func() time.Time
}

// NewMemoryTweetRepository returns an empty in-memory tweet repository.
func NewMemoryTweetRepository() *MemoryTweetRepository {
	return &MemoryTweetRepository{tweets: make(map[string]models.Tweet), now: utcNow}
}

func (r *MemoryTweetRepository) Create(_ context.Context, tweet models.Tweet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tweets[tweet.ID]; ok {
		return ErrConflict
	}
	r.tweets[tweet.ID] = tweet
	return nil
}

func (r *MemoryTweetRepository) ListByOwner(_ context.Context, ownerID string) ([]models.Tweet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tweets := []models.Tweet{}
	for _, tweet := range r.tweets {
		if tweet.Owner == ownerID {
			tweets = append(tweets, tweet)
		}
	}
	sort.Slice(tweets, func(i, j int) bool { return tweets[i].CreatedAt.After(tweets[j].CreatedAt) })
	return tweets, nil
}

func (r *MemoryTweetRepository) UpdateOwned(_ context.Context, id, ownerID, content string) (models.Tweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tweet, ok := r.tweets[id]
	if !ok || tweet.Owner != ownerID {
		return models.Tweet{}, ErrNotFound
	}
	tweet.Content = content
	tweet.UpdatedAt = r.now()
	r.tweets[id] = tweet
	return tweet, nil
}

func (r *MemoryTweetRepository) DeleteOwned(_ context.Context, id, ownerID string) (models.Tweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tweet, ok := r.tweets[id]
	if !ok || tweet.Owner != ownerID {
		return models.Tweet{}, ErrNotFound
	}
	delete(r.tweets, id)
	return tweet, nil
}

// MemoryVideoRepository implements VideoRepository in memory.
type MemoryVideoRepository struct {
	mu     sync.RWMutex
	videos map[string]models.Video
	now    func() time.Time
}

// NewMemoryVideoRepository returns an empty in-memory video repository.
func NewMemoryVideoRepository() *MemoryVideoRepository {
	return &MemoryVideoRepository{videos: make(map[string]models.Video), now: utcNow}
}

func (r *MemoryVideoRepository) Create(_ context.Context, video models.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.videos[video.ID]; ok {
		return ErrConflict
	}
	r.videos[video.ID] = video
	return nil
}

func (r *MemoryVideoRepository) FindByID(_ context.Context, id string) (models.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	video, ok := r.videos[id]
	if !ok {
		return models.Video{}, ErrNotFound
	}
	return video, nil
}

func (r *MemoryVideoRepository) FindByIDs(_ context.Context, ids []string) ([]models.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	videos := make([]models.Video, 0, len(ids))
	for _, id := range ids {
		if video, ok := r.videos[id]; ok {
			videos = append(videos, video)
		}
	}
	return videos, nil
}

func (r *MemoryVideoRepository) FindOwned(_ context.Context, id, ownerID string) (models.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	video, ok := r.videos[id]
	if !ok || video.Owner != ownerID {
		return models.Video{}, ErrNotFound
	}
	return video, nil
}

func (r *MemoryVideoRepository) UpdateOwned(_ context.Context, id, ownerID string, patch models.VideoPatch) (models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	video, ok := r.videos[id]
	if !ok || video.Owner != ownerID {
		return models.Video{}, ErrNotFound
	}
	if patch.Title != nil {
		video.Title = *patch.Title
	}
	if patch.Description != nil {
		video.Description = *patch.Description
	}
	if patch.Thumbnail != nil {
		video.Thumbnail = *patch.Thumbnail
	}
	if patch.IsPublished != nil {
		video.IsPublished = *patch.IsPublished
	}
	video.UpdatedAt = r.now()
	r.videos[id] = video
	return video, nil
}

func (r *MemoryVideoRepository) DeleteOwned(_ context.Context, id, ownerID string) (models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	video, ok := r.videos[id]
	if !ok || video.Owner != ownerID {
		return models.Video{}, ErrNotFound
	}
	delete(r.videos, id)
	return video, nil
}

func (r *MemoryVideoRepository) List(_ context.Context, query models.VideoQuery) ([]models.Video, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(query.Search)
	matched := []models.Video{}
	for _, video := range r.videos {
		if query.OwnerID != "" && video.Owner != query.OwnerID {
			continue
		}
		if !video.IsPublished && !query.IncludeUnpublished {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(video.Title), search) &&
			!strings.Contains(strings.ToLower(video.Description), search) {
			continue
		}
		matched = append(matched, video)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		less := videoLess(matched[i], matched[j], query.SortBy)
		if query.Ascending {
			return less
		}
		return videoLess(matched[j], matched[i], query.SortBy)
	})

	total := int64(len(matched))
	start := query.Offset()
	if start >= len(matched) {
		return []models.Video{}, total, nil
	}
	end := len(matched)
	if query.Limit > 0 && query.Limit < end-start {
		end = start + query.Limit
	}
	return matched[start:end], total, nil
}

func videoLess(a, b models.Video, sortBy string) bool {
	switch sortBy {
	case models.SortByTitle:
		return a.Title < b.Title
	case models.SortByDuration:
		return a.Duration < b.Duration
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}

func cloneUser(user models.User) models.User {
	user.WatchHistory = append([]string{}, user.WatchHistory...)
	return user
}

// prependUnique moves id to the front of history, most recent first.
func prependUnique(history []string, id string) []string {
	out := make([]string, 0, len(history)+1)
	out = append(out, id)
	for _, existing := range history {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

func utcNow() time.Time {
	return time.Now().UTC()
}
