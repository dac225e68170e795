package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vidfriends/videotube/internal/db"
	"github.com/vidfriends/videotube/internal/models"
)

const userColumns = `id, username, email, fullname, avatar, cover_image, password_hash, refresh_token, watch_history, created_at, updated_at`

const (
	insertUserSQL = `INSERT INTO users (` + userColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	selectUserByIDSQL    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	selectUserByLoginSQL = `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $2 LIMIT 1`
	updateAccountSQL     = `UPDATE users
        SET fullname = COALESCE(NULLIF($2, ''), fullname), email = COALESCE(NULLIF($3, ''), email), updated_at = $4
        WHERE id = $1
        RETURNING ` + userColumns
	updatePasswordSQL = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	setAvatarSQL      = `UPDATE users SET avatar = $2, updated_at = $3 WHERE id = $1 RETURNING ` + userColumns
	setCoverImageSQL  = `UPDATE users SET cover_image = $2, updated_at = $3 WHERE id = $1 RETURNING ` + userColumns
	setRefreshSQL     = `UPDATE users SET refresh_token = $2 WHERE id = $1`
	rotateRefreshSQL  = `UPDATE users SET refresh_token = $3 WHERE id = $1 AND refresh_token = $2 AND refresh_token <> ''`
	addWatchSQL       = `UPDATE users
        SET watch_history = array_prepend($2::TEXT, array_remove(watch_history, $2::TEXT))
        WHERE id = $1`
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool, now: utcNow}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	history := user.WatchHistory
	if history == nil {
		history = []string{}
	}
	_, err := r.pool.Exec(ctx, insertUserSQL,
		user.ID, user.Username, user.Email, user.FullName, user.Avatar, user.CoverImage,
		user.Password, user.RefreshToken, history, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByID fetches a user by id.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, selectUserByIDSQL, id))
	if err != nil {
		return models.User{}, wrapNotFound(err, "select user by id")
	}
	return user, nil
}

// FindByLogin fetches the user matching username or email.
func (r *PostgresUserRepository) FindByLogin(ctx context.Context, username, email string) (models.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, selectUserByLoginSQL, username, email))
	if err != nil {
		return models.User{}, wrapNotFound(err, "select user by login")
	}
	return user, nil
}

// UpdateAccount changes the non-empty fields among fullName and email.
func (r *PostgresUserRepository) UpdateAccount(ctx context.Context, id, fullName, email string) (models.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, updateAccountSQL, id, fullName, email, r.now()))
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrConflict
		}
		return models.User{}, wrapNotFound(err, "update account")
	}
	return user, nil
}

// UpdatePassword stores a new password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.execOne(ctx, "update password", updatePasswordSQL, id, passwordHash, r.now())
}

// SetAvatar replaces the avatar URL.
func (r *PostgresUserRepository) SetAvatar(ctx context.Context, id, url string) (models.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, setAvatarSQL, id, url, r.now()))
	if err != nil {
		return models.User{}, wrapNotFound(err, "update avatar")
	}
	return user, nil
}

// SetCoverImage replaces the cover image URL.
func (r *PostgresUserRepository) SetCoverImage(ctx context.Context, id, url string) (models.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, setCoverImageSQL, id, url, r.now()))
	if err != nil {
		return models.User{}, wrapNotFound(err, "update cover image")
	}
	return user, nil
}

// SetRefreshToken overwrites the stored refresh token; empty clears it.
func (r *PostgresUserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	return r.execOne(ctx, "set refresh token", setRefreshSQL, id, token)
}

// RotateRefreshToken swaps current for next only if current is still stored.
func (r *PostgresUserRepository) RotateRefreshToken(ctx context.Context, id, current, next string) error {
	return r.execOne(ctx, "rotate refresh token", rotateRefreshSQL, id, current, next)
}

// AddToWatchHistory moves videoID to the front of the user's history.
func (r *PostgresUserRepository) AddToWatchHistory(ctx context.Context, id, videoID string) error {
	return r.execOne(ctx, "add watch history", addWatchSQL, id, videoID)
}

func (r *PostgresUserRepository) execOne(ctx context.Context, op, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.Avatar, &user.CoverImage,
		&user.Password, &user.RefreshToken, &user.WatchHistory, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

const tweetColumns = `id, content, owner_id, created_at, updated_at`

const (
	insertTweetSQL       = `INSERT INTO tweets (` + tweetColumns + `) VALUES ($1, $2, $3, $4, $5)`
	listTweetsByOwnerSQL = `SELECT ` + tweetColumns + ` FROM tweets WHERE owner_id = $1 ORDER BY created_at DESC`
	updateOwnedTweetSQL  = `UPDATE tweets SET content = $3, updated_at = $4 WHERE id = $1 AND owner_id = $2 RETURNING ` + tweetColumns
	deleteOwnedTweetSQL  = `DELETE FROM tweets WHERE id = $1 AND owner_id = $2 RETURNING ` + tweetColumns
)

// PostgresTweetRepository provides PostgreSQL-backed persistence for tweets.
type PostgresTweetRepository struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgresTweetRepository constructs a tweet repository backed by PostgreSQL.
func NewPostgresTweetRepository(pool db.Pool) *PostgresTweetRepository {
	return &PostgresTweetRepository{pool: pool, now: utcNow}
}

// Create persists a tweet.
func (r *PostgresTweetRepository) Create(ctx context.Context, tweet models.Tweet) error {
	if _, err := r.pool.Exec(ctx, insertTweetSQL, tweet.ID, tweet.Content, tweet.Owner, tweet.CreatedAt, tweet.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert tweet: %w", err)
	}
	return nil
}

// ListByOwner returns the owner's tweets, newest first.
func (r *PostgresTweetRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Tweet, error) {
	rows, err := r.pool.Query(ctx, listTweetsByOwnerSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query tweets: %w", err)
	}
	defer rows.Close()

	tweets := []models.Tweet{}
	for rows.Next() {
		tweet, err := scanTweet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tweet: %w", err)
		}
		tweets = append(tweets, tweet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tweets: %w", err)
	}
	return tweets, nil
}

// UpdateOwned replaces the content of a tweet owned by ownerID.
func (r *PostgresTweetRepository) UpdateOwned(ctx context.Context, id, ownerID, content string) (models.Tweet, error) {
	tweet, err := scanTweet(r.pool.QueryRow(ctx, updateOwnedTweetSQL, id, ownerID, content, r.now()))
	if err != nil {
		return models.Tweet{}, wrapNotFound(err, "update tweet")
	}
	return tweet, nil
}

// DeleteOwned removes a tweet owned by ownerID.
func (r *PostgresTweetRepository) DeleteOwned(ctx context.Context, id, ownerID string) (models.Tweet, error) {
	tweet, err := scanTweet(r.pool.QueryRow(ctx, deleteOwnedTweetSQL, id, ownerID))
	if err != nil {
		return models.Tweet{}, wrapNotFound(err, "delete tweet")
	}
	return tweet, nil
}

func scanTweet(row pgx.Row) (models.Tweet, error) {
	var tweet models.Tweet
	err := row.Scan(&tweet.ID, &tweet.Content, &tweet.Owner, &tweet.CreatedAt, &tweet.UpdatedAt)
	return tweet, err
}

const videoColumns = `id, video_file, thumbnail, title, description, duration, owner_id, is_published, created_at, updated_at`

const (
	insertVideoSQL = `INSERT INTO videos (` + videoColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	selectVideoByIDSQL  = `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`
	selectVideosByIDSQL = `SELECT ` + videoColumns + ` FROM videos WHERE id = ANY($1)`
	selectOwnedVideoSQL = `SELECT ` + videoColumns + ` FROM videos WHERE id = $1 AND owner_id = $2`
	updateOwnedVideoSQL = `UPDATE videos
        SET title = COALESCE($3, title), description = COALESCE($4, description),
            thumbnail = COALESCE($5, thumbnail), is_published = COALESCE($6, is_published), updated_at = $7
        WHERE id = $1 AND owner_id = $2
        RETURNING ` + videoColumns
	deleteOwnedVideoSQL = `DELETE FROM videos WHERE id = $1 AND owner_id = $2 RETURNING ` + videoColumns
)

var videoSortColumns = map[string]string{
	models.SortByCreatedAt: "created_at",
	models.SortByTitle:     "title",
	models.SortByDuration:  "duration",
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool, now: utcNow}
}

// Create persists a video.
func (r *PostgresVideoRepository) Create(ctx context.Context, v models.Video) error {
	_, err := r.pool.Exec(ctx, insertVideoSQL,
		v.ID, v.VideoFile, v.Thumbnail, v.Title, v.Description, v.Duration, v.Owner, v.IsPublished, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// FindByID fetches a video by id regardless of owner.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	video, err := scanVideo(r.pool.QueryRow(ctx, selectVideoByIDSQL, id))
	if err != nil {
		return models.Video{}, wrapNotFound(err, "select video")
	}
	return video, nil
}

// FindByIDs fetches the listed videos in the order given, skipping missing ids.
func (r *PostgresVideoRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Video, error) {
	if len(ids) == 0 {
		return []models.Video{}, nil
	}
	videos, err := r.queryVideos(ctx, selectVideosByIDSQL, ids)
	if err != nil {
		return nil, err
	}
	return orderByIDs(videos, ids), nil
}

// FindOwned fetches a video owned by ownerID.
func (r *PostgresVideoRepository) FindOwned(ctx context.Context, id, ownerID string) (models.Video, error) {
	video, err := scanVideo(r.pool.QueryRow(ctx, selectOwnedVideoSQL, id, ownerID))
	if err != nil {
		return models.Video{}, wrapNotFound(err, "select owned video")
	}
	return video, nil
}

// UpdateOwned applies patch to a video owned by ownerID.
func (r *PostgresVideoRepository) UpdateOwned(ctx context.Context, id, ownerID string, patch models.VideoPatch) (models.Video, error) {
	video, err := scanVideo(r.pool.QueryRow(ctx, updateOwnedVideoSQL,
		id, ownerID, patch.Title, patch.Description, patch.Thumbnail, patch.IsPublished, r.now()))
	if err != nil {
		return models.Video{}, wrapNotFound(err, "update video")
	}
	return video, nil
}

// DeleteOwned removes a video owned by ownerID.
func (r *PostgresVideoRepository) DeleteOwned(ctx context.Context, id, ownerID string) (models.Video, error) {
	video, err := scanVideo(r.pool.QueryRow(ctx, deleteOwnedVideoSQL, id, ownerID))
	if err != nil {
		return models.Video{}, wrapNotFound(err, "delete video")
	}
	return video, nil
}

// List returns one page of videos matching query and the total match count.
func (r *PostgresVideoRepository) List(ctx context.Context, query models.VideoQuery) ([]models.Video, int64, error) {
	where, args := videoFilter(query)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM videos`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count videos: %w", err)
	}

	column, ok := videoSortColumns[query.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if query.Ascending {
		direction = "ASC"
	}

	sql := fmt.Sprintf(`SELECT %s FROM videos%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		videoColumns, where, column, direction, len(args)+1, len(args)+2)
	args = append(args, query.Limit, query.Offset())

	videos, err := r.queryVideos(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	return videos, total, nil
}

func videoFilter(query models.VideoQuery) (string, []any) {
	var clauses []string
	var args []any

	if !query.IncludeUnpublished {
		clauses = append(clauses, "is_published = TRUE")
	}
	if query.OwnerID != "" {
		args = append(args, query.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if query.Search != "" {
		args = append(args, "%"+query.Search+"%")
		clauses = append(clauses, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *PostgresVideoRepository) queryVideos(ctx context.Context, sql string, args ...any) ([]models.Video, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	return videos, nil
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.VideoFile, &v.Thumbnail, &v.Title, &v.Description, &v.Duration,
		&v.Owner, &v.IsPublished, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func orderByIDs(videos []models.Video, ids []string) []models.Video {
	byID := make(map[string]models.Video, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}
	ordered := make([]models.Video, 0, len(videos))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			ordered = append(ordered, v)
		}
	}
	return ordered
}

func wrapNotFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
