package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/vidfriends/videotube/internal/models"
	"github.com/vidfriends/videotube/internal/repositories"
)

var (
	// ErrRefreshTokenMismatch indicates the presented refresh token is not the one stored
	// for the user: it was rotated away, revoked on logout, or never issued.
	ErrRefreshTokenMismatch = errors.New("refresh token is expired or used")
	// ErrUnknownUser indicates the token subject no longer exists.
	ErrUnknownUser = errors.New("token subject not found")
)

// RefreshTokenStore persists the single active refresh token on the user record.
type RefreshTokenStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	RotateRefreshToken(ctx context.Context, id, current, next string) error
}

// Manager issues, rotates and revokes token pairs.
type Manager struct {
	tokens *TokenIssuer
	store  RefreshTokenStore
}

// NewManager constructs a Manager signing with tokens and persisting through store.
func NewManager(tokens *TokenIssuer, store RefreshTokenStore) *Manager {
	if tokens == nil || store == nil {
		panic("auth: token issuer and refresh token store must not be nil")
	}
	return &Manager{tokens: tokens, store: store}
}

// Issue signs a fresh pair for user and stores the refresh token on the user record.
func (m *Manager) Issue(ctx context.Context, user models.User) (models.TokenPair, error) {
	if user.ID == "" {
		return models.TokenPair{}, errors.New("user id must be provided")
	}

	pair, err := m.sign(user)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := m.store.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return models.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token must
// verify and equal the stored value; the swap to the new value only succeeds
// if no other refresh consumed the token first.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	userID, err := m.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return models.TokenPair{}, err
	}

	user, err := m.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.TokenPair{}, ErrUnknownUser
		}
		return models.TokenPair{}, fmt.Errorf("load token subject: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(refreshToken)) != 1 {
		return models.TokenPair{}, ErrRefreshTokenMismatch
	}

	pair, err := m.sign(user)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := m.store.RotateRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.TokenPair{}, ErrRefreshTokenMismatch
		}
		return models.TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	return pair, nil
}

// Revoke clears the stored refresh token so no outstanding refresh token can be used.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	if err := m.store.SetRefreshToken(ctx, userID, ""); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// Verify parses an access token.
func (m *Manager) Verify(accessToken string) (AccessClaims, error) {
	return m.tokens.ParseAccess(accessToken)
}

func (m *Manager) sign(user models.User) (models.TokenPair, error) {
	access, err := m.tokens.SignAccess(user)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := m.tokens.SignRefresh(user.ID)
	if err != nil {
		return models.TokenPair{}, err
	}
	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
