package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vidfriends/videotube/internal/models"
)

const (
	usersCollection  = "users"
	tweetsCollection = "tweets"
	videosCollection = "videos"
)

// EnsureMongoIndexes creates the unique and lookup indexes the repositories rely on.
func EnsureMongoIndexes(ctx context.Context, database *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		tweetsCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		videosCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}}},
			{Keys: bson.D{{Key: "isPublished", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}

	for name, idx := range indexes {
		if _, err := database.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

// MongoUserRepository provides MongoDB-backed persistence for users.
type MongoUserRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoUserRepository constructs a user repository on the users collection.
func NewMongoUserRepository(database *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: database.Collection(usersCollection), now: utcNow}
}

// Create persists a new user document.
func (r *MongoUserRepository) Create(ctx context.Context, user models.User) error {
	if user.WatchHistory == nil {
		user.WatchHistory = []string{}
	}
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByID fetches a user by id.
func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "find user by id")
}

// FindByLogin fetches the user matching username or email.
func (r *MongoUserRepository) FindByLogin(ctx context.Context, username, email string) (models.User, error) {
	var or bson.A
	if username != "" {
		or = append(or, bson.M{"username": username})
	}
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if len(or) == 0 {
		return models.User{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"$or": or}, "find user by login")
}

// UpdateAccount changes the non-empty fields among fullName and email.
func (r *MongoUserRepository) UpdateAccount(ctx context.Context, id, fullName, email string) (models.User, error) {
	set := bson.M{"updatedAt": r.now()}
	if fullName != "" {
		set["fullname"] = fullName
	}
	if email != "" {
		set["email"] = email
	}
	return r.findOneAndUpdate(ctx, id, bson.M{"$set": set}, "update account")
}

// UpdatePassword stores a new password hash.
func (r *MongoUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"password": passwordHash, "updatedAt": r.now()}}, "update password")
}

// SetAvatar replaces the avatar URL.
func (r *MongoUserRepository) SetAvatar(ctx context.Context, id, url string) (models.User, error) {
	return r.findOneAndUpdate(ctx, id, bson.M{"$set": bson.M{"avatar": url, "updatedAt": r.now()}}, "update avatar")
}

// SetCoverImage replaces the cover image URL.
func (r *MongoUserRepository) SetCoverImage(ctx context.Context, id, url string) (models.User, error) {
	return r.findOneAndUpdate(ctx, id, bson.M{"$set": bson.M{"coverImage": url, "updatedAt": r.now()}}, "update cover image")
}

// SetRefreshToken overwrites the stored refresh token; empty removes the field.
func (r *MongoUserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	update := bson.M{"$set": bson.M{"refreshToken": token}}
	if token == "" {
		update = bson.M{"$unset": bson.M{"refreshToken": ""}}
	}
	return r.updateOne(ctx, bson.M{"_id": id}, update, "set refresh token")
}

// RotateRefreshToken swaps current for next only if current is still stored.
func (r *MongoUserRepository) RotateRefreshToken(ctx context.Context, id, current, next string) error {
	if current == "" {
		return ErrNotFound
	}
	return r.updateOne(ctx,
		bson.M{"_id": id, "refreshToken": current},
		bson.M{"$set": bson.M{"refreshToken": next}},
		"rotate refresh token")
}

// AddToWatchHistory moves videoID to the front of the user's history in one update.
func (r *MongoUserRepository) AddToWatchHistory(ctx context.Context, id, videoID string) error {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"watchHistory": bson.M{"$concatArrays": bson.A{
				bson.A{videoID},
				bson.M{"$filter": bson.M{
					"input": bson.M{"$ifNull": bson.A{"$watchHistory", bson.A{}}},
					"cond":  bson.M{"$ne": bson.A{"$$this", videoID}},
				}},
			}},
		}}},
	}
	return r.updateOne(ctx, bson.M{"_id": id}, pipeline, "add watch history")
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M, op string) (models.User, error) {
	var user models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		return models.User{}, wrapMongo(err, op)
	}
	return user, nil
}

func (r *MongoUserRepository) findOneAndUpdate(ctx context.Context, id string, update any, op string) (models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user); err != nil {
		return models.User{}, wrapMongo(err, op)
	}
	return user, nil
}

func (r *MongoUserRepository) updateOne(ctx context.Context, filter bson.M, update any, op string) error {
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return wrapMongo(err, op)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MongoTweetRepository provides MongoDB-backed persistence for tweets.
type MongoTweetRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoTweetRepository constructs a tweet repository on the tweets collection.
func NewMongoTweetRepository(database *mongo.Database) *MongoTweetRepository {
	return &MongoTweetRepository{coll: database.Collection(tweetsCollection), now: utcNow}
}

// Create persists a tweet.
func (r *MongoTweetRepository) Create(ctx context.Context, tweet models.Tweet) error {
	if _, err := r.coll.InsertOne(ctx, tweet); err != nil {
		return wrapMongo(err, "insert tweet")
	}
	return nil
}

// ListByOwner returns the owner's tweets, newest first.
func (r *MongoTweetRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Tweet, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"owner": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find tweets: %w", err)
	}
	tweets := []models.Tweet{}
	if err := cursor.All(ctx, &tweets); err != nil {
		return nil, fmt.Errorf("decode tweets: %w", err)
	}
	return tweets, nil
}

// UpdateOwned replaces the content of a tweet owned by ownerID.
func (r *MongoTweetRepository) UpdateOwned(ctx context.Context, id, ownerID, content string) (models.Tweet, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"content": content, "updatedAt": r.now()}}
	var tweet models.Tweet
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id, "owner": ownerID}, update, opts).Decode(&tweet); err != nil {
		return models.Tweet{}, wrapMongo(err, "update tweet")
	}
	return tweet, nil
}

// DeleteOwned removes a tweet owned by ownerID.
func (r *MongoTweetRepository) DeleteOwned(ctx context.Context, id, ownerID string) (models.Tweet, error) {
	var tweet models.Tweet
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": id, "owner": ownerID}).Decode(&tweet); err != nil {
		return models.Tweet{}, wrapMongo(err, "delete tweet")
	}
	return tweet, nil
}

// MongoVideoRepository provides MongoDB-backed persistence for videos.
type MongoVideoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoVideoRepository constructs a video repository on the videos collection.
func NewMongoVideoRepository(database *mongo.Database) *MongoVideoRepository {
	return &MongoVideoRepository{coll: database.Collection(videosCollection), now: utcNow}
}

// Create persists a video.
func (r *MongoVideoRepository) Create(ctx context.Context, video models.Video) error {
	if _, err := r.coll.InsertOne(ctx, video); err != nil {
		return wrapMongo(err, "insert video")
	}
	return nil
}

// FindByID fetches a video by id regardless of owner.
func (r *MongoVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "find video")
}

// FindByIDs fetches the listed videos in the order given, skipping missing ids.
func (r *MongoVideoRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Video, error) {
	if len(ids) == 0 {
		return []models.Video{}, nil
	}
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find videos: %w", err)
	}
	var videos []models.Video
	if err := cursor.All(ctx, &videos); err != nil {
		return nil, fmt.Errorf("decode videos: %w", err)
	}
	return orderByIDs(videos, ids), nil
}

// FindOwned fetches a video owned by ownerID.
func (r *MongoVideoRepository) FindOwned(ctx context.Context, id, ownerID string) (models.Video, error) {
	return r.findOne(ctx, bson.M{"_id": id, "owner": ownerID}, "find owned video")
}

// UpdateOwned applies patch to a video owned by ownerID.
func (r *MongoVideoRepository) UpdateOwned(ctx context.Context, id, ownerID string, patch models.VideoPatch) (models.Video, error) {
	set := bson.M{"updatedAt": r.now()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Thumbnail != nil {
		set["thumbnail"] = *patch.Thumbnail
	}
	if patch.IsPublished != nil {
		set["isPublished"] = *patch.IsPublished
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var video models.Video
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id, "owner": ownerID}, bson.M{"$set": set}, opts).Decode(&video); err != nil {
		return models.Video{}, wrapMongo(err, "update video")
	}
	return video, nil
}

// DeleteOwned removes a video owned by ownerID.
func (r *MongoVideoRepository) DeleteOwned(ctx context.Context, id, ownerID string) (models.Video, error) {
	var video models.Video
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": id, "owner": ownerID}).Decode(&video); err != nil {
		return models.Video{}, wrapMongo(err, "delete video")
	}
	return video, nil
}

// List returns one page of videos matching query and the total match count.
func (r *MongoVideoRepository) List(ctx context.Context, query models.VideoQuery) ([]models.Video, int64, error) {
	filter := bson.M{}
	if !query.IncludeUnpublished {
		filter["isPublished"] = true
	}
	if query.OwnerID != "" {
		filter["owner"] = query.OwnerID
	}
	if query.Search != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(query.Search), "$options": "i"}
		filter["$or"] = bson.A{bson.M{"title": pattern}, bson.M{"description": pattern}}
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count videos: %w", err)
	}

	sortField := query.SortBy
	if _, ok := videoSortColumns[sortField]; !ok {
		sortField = models.SortByCreatedAt
	}
	direction := -1
	if query.Ascending {
		direction = 1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: direction}, {Key: "_id", Value: 1}}).
		SetSkip(int64(query.Offset()))
	if query.Limit > 0 {
		opts.SetLimit(int64(query.Limit))
	}

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find videos: %w", err)
	}
	videos := []models.Video{}
	if err := cursor.All(ctx, &videos); err != nil {
		return nil, 0, fmt.Errorf("decode videos: %w", err)
	}
	return videos, total, nil
}

func (r *MongoVideoRepository) findOne(ctx context.Context, filter bson.M, op string) (models.Video, error) {
	var video models.Video
	if err := r.coll.FindOne(ctx, filter).Decode(&video); err != nil {
		return models.Video{}, wrapMongo(err, op)
	}
	return video, nil
}

func wrapMongo(err error, op string) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrConflict
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
