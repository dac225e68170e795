package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidfriends/videotube/internal/apperr"
	"github.com/vidfriends/videotube/internal/auth"
	"github.com/vidfriends/videotube/internal/logging"
	"github.com/vidfriends/videotube/internal/media"
	"github.com/vidfriends/videotube/internal/models"
	"github.com/vidfriends/videotube/internal/repositories"
	"github.com/vidfriends/videotube/internal/respond"
	"github.com/vidfriends/videotube/internal/rollback"
)

// AuthHandler implements registration and the session lifecycle.
type AuthHandler struct {
	Users      UserStore
	Sessions   SessionManager
	Media      MediaTransfer
	Uploads    UploadConfig
	Cookies    CookieConfig
	Renderer   respond.Renderer
	BcryptCost int
	NowFunc    func() time.Time
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

// Register handles POST /users/register.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	form, err := h.Uploads.parseMultipart(w, r, h.Uploads.image("avatar"), h.Uploads.image("coverImage"))
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}
	defer form.Cleanup(ctx)

	fullName := strings.TrimSpace(form.Value("fullname"))
	username := strings.ToLower(strings.TrimSpace(form.Value("username")))
	password := form.Value("password")
	rawEmail := strings.TrimSpace(form.Value("email"))
	if fullName == "" || username == "" || rawEmail == "" || strings.TrimSpace(password) == "" {
		h.Renderer.Error(ctx, w, apperr.BadRequest("All fields are required"))
		return
	}

	email, err := normalizeEmail(rawEmail)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	if _, err := h.Users.FindByLogin(ctx, username, email); err == nil {
		h.Renderer.Error(ctx, w, apperr.Conflict("User with email or username already exists"))
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		h.Renderer.Error(ctx, w, apperr.Internal("Something went wrong while registering the user", err))
		return
	}

	avatarPath := form.File("avatar")
	if avatarPath == "" {
		h.Renderer.Error(ctx, w, apperr.BadRequest("Avatar file is required"))
		return
	}

	var undo rollback.List
	avatar, err := h.Media.Upload(ctx, avatarPath)
	if err != nil {
		h.Renderer.Error(ctx, w, apperr.Internal("Error uploading avatar", err))
		return
	}
	undo.Add(h.removeAsset(avatar))

	var cover media.Asset
	if coverPath := form.File("coverImage"); coverPath != "" {
		cover, err = h.Media.Upload(ctx, coverPath)
		if err != nil {
			undo.Run(ctx)
			h.Renderer.Error(ctx, w, apperr.Internal("Error uploading coverImage", err))
			return
		}
		undo.Add(h.removeAsset(cover))
	}

	hash, err := auth.HashPassword(password, h.BcryptCost)
	if err != nil {
		undo.Run(ctx)
		h.Renderer.Error(ctx, w, apperr.Internal("Something went wrong while registering the user", err))
		return
	}

	now := utcNow(h.NowFunc)
	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		FullName:     fullName,
		Avatar:       avatar.URL,
		CoverImage:   cover.URL,
		Password:     hash,
		WatchHistory: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		undo.Run(ctx)
		if errors.Is(err, repositories.ErrConflict) {
			h.Renderer.Error(ctx, w, apperr.Wrap(apperr.KindConflict, "User with email or username already exists", err))
			return
		}
		h.Renderer.Error(ctx, w, apperr.Internal("Something went wrong while registering the user", err))
		return
	}
	undo.Discard()

	logger.Info("user registered", zap.String("userId", user.ID))
	h.Renderer.Success(ctx, w, http.StatusCreated, user.Public(), "User registered successfully")
}

// Login handles POST /users/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" && email == "" {
		h.Renderer.Error(ctx, w, apperr.BadRequest("Username or email is required"))
		return
	}
	if req.Password == "" {
		h.Renderer.Error(ctx, w, apperr.BadRequest("Password is required"))
		return
	}

	user, err := h.Users.FindByLogin(ctx, username, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			h.Renderer.Error(ctx, w, apperr.NotFound("User does not exist"))
			return
		}
		h.Renderer.Error(ctx, w, err)
		return
	}

	if err := auth.VerifyPassword(user.Password, req.Password); err != nil {
		h.Renderer.Error(ctx, w, apperr.Wrap(apperr.KindUnauthorized, "Invalid user credentials", err))
		return
	}

	pair, err := h.Sessions.Issue(ctx, user)
	if err != nil {
		h.Renderer.Error(ctx, w, apperr.Internal("Something went wrong while generating tokens", err))
		return
	}

	h.Cookies.set(w, pair)
	h.Renderer.Success(ctx, w, http.StatusOK, loginResponse{
		User:         user.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "User logged in successfully")
}

// Logout handles POST /users/logout.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		h.Renderer.Error(ctx, w, err)
		return
	}

	if err := h.Sessions.Revoke(ctx, user.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		h.Renderer.Error(ctx, w, apperr.Internal("Something went wrong while logging out", err))
		return
	}

	h.Cookies.clear(w)
	h.Renderer.Success(ctx, w, http.StatusOK, struct{}{}, "User logged out successfully")
}

// RefreshToken handles POST /users/refresh-token.
func (h AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := ""
	if cookie, err := r.Cookie(RefreshTokenCookie); err == nil {
		token = strings.TrimSpace(cookie.Value)
	}
	if token == "" {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err != nil {
			h.Renderer.Error(ctx, w, err)
			return
		}
		token = strings.TrimSpace(req.RefreshToken)
	}
	if token == "" {
		h.Renderer.Error(ctx, w, apperr.Unauthorized("Unauthorized request"))
		return
	}

	pair, err := h.Sessions.Refresh(ctx, token)
	if err != nil {
		h.Renderer.Error(ctx, w, apperr.Wrap(apperr.KindUnauthorized, "Invalid refresh token", err))
		return
	}

	h.Cookies.set(w, pair)
	h.Renderer.Success(ctx, w, http.StatusOK, pair, "Access token refreshed")
}

func (h AuthHandler) removeAsset(asset media.Asset) rollback.Action {
	return func(ctx context.Context) {
		h.Media.Remove(ctx, asset.PublicID, asset.Kind)
	}
}
