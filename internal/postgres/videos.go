package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medprep-backend/internal/domain"
)

const videoColumns = `id::text, title, description, category, duration_seconds, playback_url, thumbnail_url, published, created_at, updated_at`

func scanVideo(row pgx.Row) (domain.Video, error) {
	var v domain.Video
	err := row.Scan(
		&v.ID, &v.Title, &v.Description, &v.Category, &v.DurationSeconds,
		&v.PlaybackURL, &v.ThumbnailURL, &v.Published, &v.CreatedAt, &v.UpdatedAt,
	)
	return v, err
}

// CreateVideo inserts a new catalog item
func (r *Repository) CreateVideo(ctx context.Context, v domain.Video) (domain.Video, error) {
	id := uuid.New()
	query := `
		INSERT INTO videos (id, title, description, category, duration_seconds, playback_url, thumbnail_url, published)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + videoColumns
	out, err := scanVideo(r.pool.QueryRow(ctx, query,
		id, v.Title, v.Description, v.Category, v.DurationSeconds,
		v.PlaybackURL, v.ThumbnailURL, v.Published,
	))
	if err != nil {
		return domain.Video{}, fmt.Errorf("creating video: %w", err)
	}
	return out, nil
}

// UpdateVideo replaces the mutable fields of a catalog item
func (r *Repository) UpdateVideo(ctx context.Context, v domain.Video) (domain.Video, error) {
	query := `
		UPDATE videos
		SET title = $2, description = $3, category = $4, duration_seconds = $5,
		    playback_url = $6, thumbnail_url = $7, published = $8, updated_at = $9
		WHERE id = $1::uuid
		RETURNING ` + videoColumns
	out, err := scanVideo(r.pool.QueryRow(ctx, query,
		v.ID, v.Title, v.Description, v.Category, v.DurationSeconds,
		v.PlaybackURL, v.ThumbnailURL, v.Published, time.Now(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Video{}, domain.ErrVideoNotFound
		}
		return domain.Video{}, fmt.Errorf("updating video: %w", err)
	}
	return out, nil
}

// DeleteVideo removes a catalog item. Existing watch records keep their XP.
func (r *Repository) DeleteVideo(ctx context.Context, videoID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM videos WHERE id = $1::uuid`, videoID)
	if err != nil {
		return fmt.Errorf("deleting video: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrVideoNotFound
	}
	return nil
}

// GetVideo retrieves a catalog item by id
func (r *Repository) GetVideo(ctx context.Context, videoID string) (domain.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1::uuid`
	v, err := scanVideo(r.pool.QueryRow(ctx, query, videoID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Video{}, domain.ErrVideoNotFound
		}
		return domain.Video{}, fmt.Errorf("getting video: %w", err)
	}
	return v, nil
}

// ListVideos returns catalog items, newest first. When publishedOnly is set,
// unpublished items are hidden. An empty category matches everything.
func (r *Repository) ListVideos(ctx context.Context, publishedOnly bool, category string) ([]domain.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE ($1 = '' OR category = $1)`
	if publishedOnly {
		query += ` AND published`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}
	defer rows.Close()

	var videos []domain.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// VideoExists reports whether a published video with the given id exists
func (r *Repository) VideoExists(ctx context.Context, videoID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM videos WHERE id = $1::uuid AND published)`, videoID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking video existence: %w", err)
	}
	return exists, nil
}

// CountVideos returns the total number of catalog items
func (r *Repository) CountVideos(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM videos`).Scan(&n)
	return n, err
}
