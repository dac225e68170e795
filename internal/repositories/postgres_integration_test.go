//go:build integration

package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidfriends/videotube/internal/db"
	"github.com/vidfriends/videotube/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	url := server.PGURL().String()

	if err := db.Migrate(ctx, url, "up"); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	pool, err := db.ConnectPostgres(ctx, url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func resetDatabase(t *testing.T) {
	t.Helper()
	for _, table := range []string{"videos", "tweets", "users"} {
		if _, err := testPool.Exec(context.Background(), "DELETE FROM "+table); err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}
}

func createUser(t *testing.T, repo *PostgresUserRepository, username string) models.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	user := models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     username + "@example.com",
		FullName:  username,
		Avatar:    "http://cdn/" + username + ".png",
		Password:  "hash",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func TestPostgresUserRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)
	repo := NewPostgresUserRepository(testPool)

	alice := createUser(t, repo, "alice")
	createUser(t, repo, "bob")

	dup := alice
	dup.ID = uuid.NewString()
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}

	if _, err := repo.UpdateAccount(ctx, alice.ID, "", "bob@example.com"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict updating to a taken email, got %v", err)
	}

	if err := repo.SetRefreshToken(ctx, alice.ID, "r1"); err != nil {
		t.Fatalf("set refresh token: %v", err)
	}
	if err := repo.RotateRefreshToken(ctx, alice.ID, "r1", "r2"); err != nil {
		t.Fatalf("rotate refresh token: %v", err)
	}
	if err := repo.RotateRefreshToken(ctx, alice.ID, "r1", "r3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected stale rotation to fail, got %v", err)
	}

	for _, id := range []string{"v1", "v2", "v1"} {
		if err := repo.AddToWatchHistory(ctx, alice.ID, id); err != nil {
			t.Fatalf("add watch history: %v", err)
		}
	}

	fetched, err := repo.FindByLogin(ctx, "", alice.Email)
	if err != nil {
		t.Fatalf("find by login: %v", err)
	}
	if fetched.RefreshToken != "r2" {
		t.Fatalf("expected rotated refresh token, got %q", fetched.RefreshToken)
	}
	if len(fetched.WatchHistory) != 2 || fetched.WatchHistory[0] != "v1" {
		t.Fatalf("unexpected watch history %v", fetched.WatchHistory)
	}
}

func TestPostgresTweetAndVideoOwnership(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)
	users := NewPostgresUserRepository(testPool)
	tweets := NewPostgresTweetRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)

	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")
	now := time.Now().UTC().Truncate(time.Millisecond)

	tweet := models.Tweet{ID: uuid.NewString(), Content: "hello", Owner: alice.ID, CreatedAt: now, UpdatedAt: now}
	if err := tweets.Create(ctx, tweet); err != nil {
		t.Fatalf("create tweet: %v", err)
	}
	if _, err := tweets.DeleteOwned(ctx, tweet.ID, bob.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting someone else's tweet, got %v", err)
	}

	video := models.Video{ID: uuid.NewString(), VideoFile: "f", Thumbnail: "t", Title: "Cats", Description: "d", Owner: alice.ID, CreatedAt: now, UpdatedAt: now}
	if err := videos.Create(ctx, video); err != nil {
		t.Fatalf("create video: %v", err)
	}

	title := "Dogs"
	if _, err := videos.UpdateOwned(ctx, video.ID, bob.ID, models.VideoPatch{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating someone else's video, got %v", err)
	}

	page, total, err := videos.List(ctx, models.VideoQuery{Search: "cat", IncludeUnpublished: true, Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("list videos: %v", err)
	}
	if total != 1 || len(page) != 1 {
		t.Fatalf("expected one matching video, got total=%d page=%d", total, len(page))
	}

	if _, err := videos.DeleteOwned(ctx, video.ID, alice.ID); err != nil {
		t.Fatalf("delete video: %v", err)
	}
	if _, err := videos.FindByID(ctx, video.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted video to be gone, got %v", err)
	}
}
