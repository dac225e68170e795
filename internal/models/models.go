package models

import (
	"math"
	"time"
)

// User represents an account on the platform.
type User struct {
	ID           string    `json:"_id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	Email        string    `json:"email" bson:"email"`
	FullName     string    `json:"fullname" bson:"fullname"`
	Avatar       string    `json:"avatar" bson:"avatar"`
	CoverImage   string    `json:"coverImage" bson:"coverImage"`
	Password     string    `json:"-" bson:"password"`
	RefreshToken string    `json:"-" bson:"refreshToken,omitempty"`
	WatchHistory []string  `json:"watchHistory" bson:"watchHistory"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Public returns a copy safe to hand to callers: no password hash, no refresh token.
func (u User) Public() User {
	u.Password = ""
	u.RefreshToken = ""
	if u.WatchHistory == nil {
		u.WatchHistory = []string{}
	}
	return u
}

// Tweet is a short text post owned by a user.
type Tweet struct {
	ID        string    `json:"_id" bson:"_id"`
	Content   string    `json:"content" bson:"content"`
	Owner     string    `json:"owner" bson:"owner"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Video is an uploaded video with its thumbnail.
type Video struct {
	ID          string    `json:"_id" bson:"_id"`
	VideoFile   string    `json:"videoFile" bson:"videoFile"`
	Thumbnail   string    `json:"thumbnail" bson:"thumbnail"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	Duration    float64   `json:"duration" bson:"duration"`
	Owner       string    `json:"owner" bson:"owner"`
	IsPublished bool      `json:"isPublished" bson:"isPublished"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// VideoPatch lists the mutable video fields; nil fields are left untouched.
type VideoPatch struct {
	Title       *string
	Description *string
	Thumbnail   *string
	IsPublished *bool
}

// Empty reports whether the patch changes nothing.
func (p VideoPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Thumbnail == nil && p.IsPublished == nil
}

// Video sort keys accepted by VideoQuery.
const (
	SortByCreatedAt = "createdAt"
	SortByTitle     = "title"
	SortByDuration  = "duration"
)

// VideoQuery filters and pages video listings.
type VideoQuery struct {
	Search             string
	OwnerID            string
	IncludeUnpublished bool
	SortBy             string
	Ascending          bool
	Page               int
	Limit              int
}

// Offset returns the number of records to skip for the requested page. It
// saturates at math.MaxInt instead of wrapping for absurd page numbers.
func (q VideoQuery) Offset() int {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// TokenPair is the access/refresh token pair issued on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UserTweets aggregates a user's public profile with their tweets.
type UserTweets struct {
	ID         string  `json:"_id"`
	FullName   string  `json:"fullname"`
	Username   string  `json:"username"`
	Avatar     string  `json:"avatar"`
	Tweets     []Tweet `json:"userTweets"`
	TweetCount int     `json:"userTweetCount"`
}

// VideoPage is one page of a video listing.
type VideoPage struct {
	Videos []Video `json:"videos"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
	Total  int64   `json:"total"`
}
