package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vidfriends/videotube/internal/models"
	"github.com/vidfriends/videotube/internal/repositories"
)

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)
	return issuer
}

func newTestManager(t *testing.T) (*Manager, *repositories.MemoryUserRepository, models.User) {
	t.Helper()
	users := repositories.NewMemoryUserRepository()
	user := models.User{ID: "user-1", Username: "alice", Email: "alice@example.com", FullName: "Alice"}
	require.NoError(t, users.Create(context.Background(), user))
	return NewManager(newTestIssuer(t), users), users, user
}

func TestManagerIssueStoresRefreshToken(t *testing.T) {
	manager, users, user := newTestManager(t)
	ctx := context.Background()

	pair, err := manager.Issue(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	stored, err := users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, stored.RefreshToken)

	claims, err := manager.Verify(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)
	require.Equal(t, "alice", claims.Username)
}

func TestManagerIssueValidation(t *testing.T) {
	manager, _, _ := newTestManager(t)
	_, err := manager.Issue(context.Background(), models.User{})
	require.Error(t, err)
}

func TestManagerRefreshRotates(t *testing.T) {
	manager, users, user := newTestManager(t)
	ctx := context.Background()

	first, err := manager.Issue(ctx, user)
	require.NoError(t, err)

	second, err := manager.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	stored, err := users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, second.RefreshToken, stored.RefreshToken)

	_, err = manager.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrRefreshTokenMismatch)
}

func TestManagerRefreshAfterRevoke(t *testing.T) {
	manager, _, user := newTestManager(t)
	ctx := context.Background()

	pair, err := manager.Issue(ctx, user)
	require.NoError(t, err)
	require.NoError(t, manager.Revoke(ctx, user.ID))

	_, err = manager.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrRefreshTokenMismatch)
}

func TestManagerRefreshRejectsForeignTokens(t *testing.T) {
	manager, _, user := newTestManager(t)
	ctx := context.Background()

	pair, err := manager.Issue(ctx, user)
	require.NoError(t, err)

	_, err = manager.Refresh(ctx, "")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = manager.Refresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	ghost, err := newTestIssuer(t).SignRefresh("ghost")
	require.NoError(t, err)
	_, err = manager.Refresh(ctx, ghost)
	require.ErrorIs(t, err, ErrUnknownUser)
}

type failingStore struct {
	*repositories.MemoryUserRepository
}

func (failingStore) SetRefreshToken(context.Context, string, string) error {
	return errors.New("write failed")
}

func TestManagerIssuePersistenceFailure(t *testing.T) {
	_, users, user := newTestManager(t)
	manager := NewManager(newTestIssuer(t), failingStore{users})

	_, err := manager.Issue(context.Background(), user)
	require.Error(t, err)
}
