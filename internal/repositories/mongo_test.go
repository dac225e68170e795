package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/vidfriends/videotube/internal/models"
)

func TestMongoUserRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create maps duplicate key to conflict", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)

		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NoError(mt, repo.Create(context.Background(), models.User{ID: "u1", Username: "alice", Email: "a@x.io"}))

		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))
		require.ErrorIs(mt, repo.Create(context.Background(), models.User{ID: "u2", Username: "alice", Email: "b@x.io"}), ErrConflict)
	})

	mt.Run("find by id", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		ns := mt.DB.Name() + "." + usersCollection

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"},
			{Key: "username", Value: "alice"},
			{Key: "email", Value: "a@x.io"},
			{Key: "password", Value: "hash"},
			{Key: "watchHistory", Value: bson.A{"v1"}},
		}))
		user, err := repo.FindByID(context.Background(), "u1")
		require.NoError(mt, err)
		require.Equal(mt, "alice", user.Username)
		require.Equal(mt, "hash", user.Password)
		require.Equal(mt, []string{"v1"}, user.WatchHistory)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		_, err = repo.FindByID(context.Background(), "missing")
		require.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("rotate refresh token requires a match", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		require.NoError(mt, repo.RotateRefreshToken(context.Background(), "u1", "old", "new"))

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		require.ErrorIs(mt, repo.RotateRefreshToken(context.Background(), "u1", "old", "newer"), ErrNotFound)

		require.ErrorIs(mt, repo.RotateRefreshToken(context.Background(), "u1", "", "newer"), ErrNotFound)
	})

	mt.Run("update account returns the new document", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "u1"},
			{Key: "username", Value: "alice"},
			{Key: "fullname", Value: "Alice A"},
		}}))
		user, err := repo.UpdateAccount(context.Background(), "u1", "Alice A", "")
		require.NoError(mt, err)
		require.Equal(mt, "Alice A", user.FullName)
	})
}

func TestMongoTweetRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("delete of someone else's tweet is not found", func(mt *mtest.T) {
		repo := NewMongoTweetRepository(mt.DB)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))
		_, err := repo.DeleteOwned(context.Background(), "t1", "intruder")
		require.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("list by owner", func(mt *mtest.T) {
		repo := NewMongoTweetRepository(mt.DB)
		ns := mt.DB.Name() + "." + tweetsCollection

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "t2"}, {Key: "content", Value: "second"}, {Key: "owner", Value: "u1"}},
			bson.D{{Key: "_id", Value: "t1"}, {Key: "content", Value: "first"}, {Key: "owner", Value: "u1"}},
		))
		tweets, err := repo.ListByOwner(context.Background(), "u1")
		require.NoError(mt, err)
		require.Len(mt, tweets, 2)
		require.Equal(mt, "second", tweets[0].Content)
	})
}

func TestMongoVideoRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("find owned", func(mt *mtest.T) {
		repo := NewMongoVideoRepository(mt.DB)
		ns := mt.DB.Name() + "." + videosCollection

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "v1"},
			{Key: "title", Value: "Cats"},
			{Key: "owner", Value: "u1"},
			{Key: "duration", Value: 12.5},
			{Key: "isPublished", Value: true},
		}))
		video, err := repo.FindOwned(context.Background(), "v1", "u1")
		require.NoError(mt, err)
		require.Equal(mt, 12.5, video.Duration)
		require.True(mt, video.IsPublished)
	})

	mt.Run("update of someone else's video is not found", func(mt *mtest.T) {
		repo := NewMongoVideoRepository(mt.DB)
		title := "hijack"

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))
		_, err := repo.UpdateOwned(context.Background(), "v1", "intruder", models.VideoPatch{Title: &title})
		require.ErrorIs(mt, err, ErrNotFound)
	})
}
