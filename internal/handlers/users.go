package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vidfriends/videotube/internal/apperr"
	"github.com/vidfriends/videotube/internal/auth"
	"github.com/vidfriends/videotube/internal/logging"
	"github.com/vidfriends/videotube/internal/models"
	"github.com/vidfriends/videotube/internal/repositories"
	"github.com/vidfriends/videotube/internal/respond"
)

// UserHandler implements the authenticated account endpoints.
type UserHandler struct {
	Users      UserStore
	Videos     VideoStore
	Media      MediaTransfer
	Janitor    AssetJanitor
	Uploads    UploadConfig
	Renderer   respond.Renderer
	BcryptCost int
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
}

// ChangePassword handles POST /users/change-password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current, err := currentUser(r)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}
	if req.OldPassword == "" || strings.TrimSpace(req.NewPassword) == "" {
		h.Renderer.Error(ctx, w, apperr.BadRequest("Old and new passwords are required"))
		return
	}

	user, err := h.Users.FindByID(ctx, current.ID)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}
	if err := auth.VerifyPassword(user.Password, req.OldPassword); err != nil {
		h.Renderer.Error(ctx, w, apperr.Wrap(apperr.KindUnauthorized, "Invalid old password", err))
		return
	}

	hash, err := auth.HashPassword(req.NewPassword, h.BcryptCost)
	if err != nil {
		h.Renderer.Error(ctx, w, apperr.Internal("Something went wrong while changing the password", err))
		return
	}
	if err := h.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	h.Renderer.Success(ctx, w, http.StatusOK, struct{}{}, "Password changed successfully")
}

// Profile handles GET /users/profile.
func (h UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}
	h.Renderer.Success(ctx, w, http.StatusOK, user.Public(), "Current user fetched successfully")
}

// UpdateAccount handles PATCH /users/update-account.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current, err := currentUser(r)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	fullName := strings.TrimSpace(req.FullName)
	email := strings.TrimSpace(req.Email)
	if fullName == "" && email == "" {
		h.Renderer.Error(ctx, w, apperr.BadRequest("Provide fullname or email to update"))
		return
	}
	if email != "" {
		if email, err = normalizeEmail(email); err != nil {
			h.Renderer.Error(ctx, w, err)
			return
		}
	}

	user, err := h.Users.UpdateAccount(ctx, current.ID, fullName, email)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			h.Renderer.Error(ctx, w, apperr.Wrap(apperr.KindConflict, "Email is already in use", err))
			return
		}
		h.Renderer.Error(ctx, w, err)
		return
	}

	h.Renderer.Success(ctx, w, http.StatusOK, user.Public(), "Account details updated successfully")
}

// UpdateAvatar handles PATCH /users/avatar.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "avatar", "Avatar", h.Users.SetAvatar, func(u models.User) string { return u.Avatar })
}

// UpdateCoverImage handles PATCH /users/cover-image.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "coverImage", "Cover image", h.Users.SetCoverImage, func(u models.User) string { return u.CoverImage })
}

// replaceImage uploads a new profile image, persists it and only then
// discards the previous one.
func (h UserHandler) replaceImage(
	w http.ResponseWriter,
	r *http.Request,
	field, label string,
	persist func(ctx context.Context, id, url string) (models.User, error),
	previous func(models.User) string,
) {
	ctx := r.Context()
	current, err := currentUser(r)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	form, err := h.Uploads.parseMultipart(w, r, h.Uploads.image(field))
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}
	defer form.Cleanup(ctx)

	localPath := form.File(field)
	if localPath == "" {
		h.Renderer.Error(ctx, w, apperr.BadRequest(label+" file is missing"))
		return
	}

	asset, err := h.Media.Upload(ctx, localPath)
	if err != nil {
		h.Renderer.Error(ctx, w, apperr.Internal("Error while uploading "+strings.ToLower(label), err))
		return
	}

	user, err := persist(ctx, current.ID, asset.URL)
	if err != nil {
		h.Media.Remove(context.WithoutCancel(ctx), asset.PublicID, asset.Kind)
		h.Renderer.Error(ctx, w, err)
		return
	}

	if old := previous(current); old != "" && old != asset.URL {
		h.Janitor.Discard(ctx, old)
	}

	h.Renderer.Success(ctx, w, http.StatusOK, user.Public(), label+" updated successfully")
}

// WatchHistory handles GET /users/history.
func (h UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current, err := currentUser(r)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	user, err := h.Users.FindByID(ctx, current.ID)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	videos := []models.Video{}
	if len(user.WatchHistory) > 0 {
		found, err := h.Videos.FindByIDs(ctx, user.WatchHistory)
		if err != nil {
			h.Renderer.Error(ctx, w, err)
			return
		}
		videos = orderByHistory(user.WatchHistory, found, user.ID)
	}

	logging.FromContext(ctx).Debug("watch history loaded", zap.Int("videos", len(videos)))
	h.Renderer.Success(ctx, w, http.StatusOK, videos, "Watch history fetched successfully")
}

// orderByHistory keeps history order and drops videos the viewer may no longer see.
func orderByHistory(history []string, found []models.Video, viewerID string) []models.Video {
	byID := make(map[string]models.Video, len(found))
	for _, video := range found {
		byID[video.ID] = video
	}
	ordered := make([]models.Video, 0, len(found))
	for _, id := range history {
		video, ok := byID[id]
		if !ok || (!video.IsPublished && video.Owner != viewerID) {
			continue
		}
		ordered = append(ordered, video)
	}
	return ordered
}
