package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidfriends/videotube/internal/apperr"
	"github.com/vidfriends/videotube/internal/logging"
	"github.com/vidfriends/videotube/internal/media"
	"github.com/vidfriends/videotube/internal/models"
	"github.com/vidfriends/videotube/internal/respond"
	"github.com/vidfriends/videotube/internal/rollback"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

// VideoHandler implements the video endpoints.
type VideoHandler struct {
	Videos   VideoStore
	Users    UserStore
	Media    MediaTransfer
	Janitor  AssetJanitor
	Uploads  UploadConfig
	Renderer respond.Renderer
	NowFunc  func() time.Time
}

type videoUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// List handles GET /videos.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	query, err := parseVideoQuery(r, user.ID)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	videos, total, err := h.Videos.List(ctx, query)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}
	if videos == nil {
		videos = []models.Video{}
	}

	h.Renderer.Success(ctx, w, http.StatusOK, models.VideoPage{
		Videos: videos,
		Page:   query.Page,
		Limit:  query.Limit,
		Total:  total,
	}, "Videos fetched successfully")
}

func parseVideoQuery(r *http.Request, viewerID string) (models.VideoQuery, error) {
	params := r.URL.Query()
	query := models.VideoQuery{
		Search: strings.TrimSpace(params.Get("query")),
		SortBy: models.SortByCreatedAt,
		Page:   1,
		Limit:  defaultPageSize,
	}

	if raw := params.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return query, apperr.BadRequest("page must be a positive integer")
		}
		query.Page = page
	}
	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return query, apperr.BadRequest("limit must be a positive integer")
		}
		query.Limit = min(limit, maxPageSize)
	}

	switch sortBy := params.Get("sortBy"); sortBy {
	case "":
	case models.SortByCreatedAt, models.SortByTitle, models.SortByDuration:
		query.SortBy = sortBy
	default:
		return query, apperr.BadRequest("sortBy must be one of createdAt, title, duration")
	}

	switch strings.ToLower(params.Get("sortType")) {
	case "", "desc":
	case "asc":
		query.Ascending = true
	default:
		return query, apperr.BadRequest("sortType must be asc or desc")
	}

	if raw := strings.TrimSpace(params.Get("userId")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return query, apperr.Wrap(apperr.KindBadRequest, "Invalid user id format", err)
		}
		query.OwnerID = id.String()
		query.IncludeUnpublished = query.OwnerID == viewerID
	}
	return query, nil
}

// Publish handles POST /videos.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	form, err := h.Uploads.parseMultipart(w, r, h.Uploads.video("video"), h.Uploads.image("thumbnail"))
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}
	defer form.Cleanup(ctx)

	title := strings.TrimSpace(form.Value("title"))
	description := strings.TrimSpace(form.Value("description"))
	if title == "" || description == "" {
		h.Renderer.Error(ctx, w, apperr.BadRequest("Title and description required"))
		return
	}

	videoPath, thumbnailPath := form.File("video"), form.File("thumbnail")
	if videoPath == "" || thumbnailPath == "" {
		h.Renderer.Error(ctx, w, apperr.BadRequest("Video and thumbnail required"))
		return
	}

	var undo rollback.List
	videoAsset, err := h.Media.Upload(ctx, videoPath)
	if err != nil {
		h.Renderer.Error(ctx, w, apperr.Internal("Failed to upload video", err))
		return
	}
	undo.Add(h.removeAsset(videoAsset))

	thumbnail, err := h.Media.Upload(ctx, thumbnailPath)
	if err != nil {
		undo.Run(ctx)
		h.Renderer.Error(ctx, w, apperr.Internal("Failed to upload thumbnail", err))
		return
	}
	undo.Add(h.removeAsset(thumbnail))

	now := utcNow(h.NowFunc)
	video := models.Video{
		ID:          uuid.NewString(),
		VideoFile:   videoAsset.URL,
		Thumbnail:   thumbnail.URL,
		Title:       title,
		Description: description,
		Duration:    videoAsset.Duration,
		Owner:       user.ID,
		IsPublished: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Videos.Create(ctx, video); err != nil {
		undo.Run(ctx)
		h.Renderer.Error(ctx, w, apperr.Internal("Something went wrong while uploading", err))
		return
	}
	undo.Discard()

	h.Renderer.Success(ctx, w, http.StatusCreated, video, "Video uploaded successfully")
}

// Get handles GET /videos/{videoId}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}
	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		h.Renderer.Error(ctx, w, ownedNotFound(err, "Video not found"))
		return
	}
	if !video.IsPublished && video.Owner != user.ID {
		h.Renderer.Error(ctx, w, apperr.Forbidden("Video is not published"))
		return
	}

	if err := h.Users.AddToWatchHistory(ctx, user.ID, video.ID); err != nil {
		logging.FromContext(ctx).Warn("record watch history", zap.String("videoId", video.ID), zap.Error(err))
	}

	h.Renderer.Success(ctx, w, http.StatusOK, video, "Video retrieved successfully")
}

// Update handles PATCH /videos/{videoId} with a JSON or multipart body.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}
	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	var patch models.VideoPatch
	var thumbnailPath string
	if isMultipart(r) {
		form, err := h.Uploads.parseMultipart(w, r, h.Uploads.image("thumbnail"))
		if err != nil {
			h.Renderer.Error(ctx, w, err)
			return
		}
		defer form.Cleanup(ctx)
		patch.Title = nonEmpty(form.Value("title"))
		patch.Description = nonEmpty(form.Value("description"))
		thumbnailPath = form.File("thumbnail")
	} else {
		var req videoUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			h.Renderer.Error(ctx, w, err)
			return
		}
		if req.Title != nil {
			patch.Title = nonEmpty(*req.Title)
		}
		if req.Description != nil {
			patch.Description = nonEmpty(*req.Description)
		}
	}

	if patch.Empty() && thumbnailPath == "" {
		h.Renderer.Error(ctx, w, apperr.BadRequest("Provide at least one field to update"))
		return
	}

	existing, err := h.Videos.FindOwned(ctx, videoID, user.ID)
	if err != nil {
		h.Renderer.Error(ctx, w, ownedNotFound(err, "Video not found"))
		return
	}

	var undo rollback.List
	if thumbnailPath != "" {
		thumbnail, err := h.Media.Upload(ctx, thumbnailPath)
		if err != nil {
			h.Renderer.Error(ctx, w, apperr.Internal("Failed to upload thumbnail", err))
			return
		}
		undo.Add(h.removeAsset(thumbnail))
		patch.Thumbnail = &thumbnail.URL
	}

	updated, err := h.Videos.UpdateOwned(ctx, videoID, user.ID, patch)
	if err != nil {
		undo.Run(ctx)
		h.Renderer.Error(ctx, w, ownedNotFound(err, "Video not found"))
		return
	}
	undo.Discard()

	if patch.Thumbnail != nil && existing.Thumbnail != "" && existing.Thumbnail != *patch.Thumbnail {
		h.Janitor.Discard(ctx, existing.Thumbnail)
	}

	h.Renderer.Success(ctx, w, http.StatusOK, updated, "Video details updated successfully")
}

// Delete handles DELETE /videos/{videoId}.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}
	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	video, err := h.Videos.DeleteOwned(ctx, videoID, user.ID)
	if err != nil {
		h.Renderer.Error(ctx, w, ownedNotFound(err, "Video not found or you don't have permission to delete it"))
		return
	}

	h.Janitor.Discard(ctx, video.VideoFile)
	h.Janitor.Discard(ctx, video.Thumbnail)

	h.Renderer.Success(ctx, w, http.StatusOK, struct{}{}, "Video deleted successfully")
}

// TogglePublish handles PATCH /videos/toggle/publish/{videoId}.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}
	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	video, err := h.Videos.FindOwned(ctx, videoID, user.ID)
	if err != nil {
		h.Renderer.Error(ctx, w, ownedNotFound(err, "Video not found"))
		return
	}

	published := !video.IsPublished
	updated, err := h.Videos.UpdateOwned(ctx, videoID, user.ID, models.VideoPatch{IsPublished: &published})
	if err != nil {
		h.Renderer.Error(ctx, w, ownedNotFound(err, "Video not found"))
		return
	}

	h.Renderer.Success(ctx, w, http.StatusOK, updated, "Publish status toggled successfully")
}

func (h VideoHandler) removeAsset(asset media.Asset) rollback.Action {
	return func(ctx context.Context) {
		h.Media.Remove(ctx, asset.PublicID, asset.Kind)
	}
}

func nonEmpty(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
