package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medprep-backend/internal/domain"
)

// InsertWatchRecord appends a watch record and, when the (user, video) pair is
// new, transactionally bumps the denormalized user_stats row. The compound
// unique index is the sole arbiter of "already watched": a conflicting insert
// affects zero rows and inserted=false is returned without touching stats.
func (r *Repository) InsertWatchRecord(ctx context.Context, rec domain.WatchRecord) (inserted bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}

	result, err := tx.Exec(ctx, `
		INSERT INTO watch_records (id, user_id, video_id, xp_earned, watched_at)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5)
		ON CONFLICT (user_id, video_id) DO NOTHING
	`, id, rec.UserID, rec.VideoID, rec.XPEarned, rec.WatchedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == fkViolation {
			return false, fmt.Errorf("watch record for unknown user %s: %w", rec.UserID, domain.ErrUserNotFound)
		}
		return false, fmt.Errorf("inserting watch record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_stats (user_id, total_xp, videos_watched, last_watched_at, updated_at)
		VALUES ($1::uuid, $2, 1, $3, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id)
		DO UPDATE SET
			total_xp = user_stats.total_xp + $2,
			videos_watched = user_stats.videos_watched + 1,
			last_watched_at = GREATEST(user_stats.last_watched_at, $3),
			updated_at = CURRENT_TIMESTAMP
	`, rec.UserID, rec.XPEarned, rec.WatchedAt)
	if err != nil {
		return false, fmt.Errorf("updating user stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing watch record: %w", err)
	}
	return true, nil
}

// ListWatchRecords returns up to limit of a user's watch records, most recent first
func (r *Repository) ListWatchRecords(ctx context.Context, userID string, limit int) ([]domain.WatchRecord, error) {
	query := `
		SELECT id::text, user_id::text, video_id::text, xp_earned, watched_at
		FROM watch_records
		WHERE user_id = $1::uuid
		ORDER BY watched_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing watch records: %w", err)
	}
	defer rows.Close()

	var records []domain.WatchRecord
	for rows.Next() {
		var rec domain.WatchRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.VideoID, &rec.XPEarned, &rec.WatchedAt); err != nil {
			return nil, fmt.Errorf("scanning watch record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TopUserStats returns the highest-XP user stats rows, ties broken by recency
func (r *Repository) TopUserStats(ctx context.Context, limit int) ([]domain.UserStats, error) {
	query := `
		SELECT user_id::text, total_xp, videos_watched, last_watched_at, updated_at
		FROM user_stats
		ORDER BY total_xp DESC, last_watched_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing top user stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.UserStats
	for rows.Next() {
		var s domain.UserStats
		if err := rows.Scan(&s.UserID, &s.TotalXP, &s.VideosWatched, &s.LastWatchedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning user stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// AllUserStats streams every stats row in batches, invoking fn per batch.
// Used by the sync worker to rebuild the leaderboard cache.
func (r *Repository) AllUserStats(ctx context.Context, batchSize int, fn func([]domain.UserStats) error) error {
	if batchSize <= 0 {
		batchSize = 1000
	}

	offset := 0
	for {
		query := `
			SELECT user_id::text, total_xp, videos_watched, last_watched_at, updated_at
			FROM user_stats
			ORDER BY user_id
			LIMIT $1 OFFSET $2
		`
		rows, err := r.pool.Query(ctx, query, batchSize, offset)
		if err != nil {
			return fmt.Errorf("listing user stats: %w", err)
		}

		batch := make([]domain.UserStats, 0, batchSize)
		for rows.Next() {
			var s domain.UserStats
			if err := rows.Scan(&s.UserID, &s.TotalXP, &s.VideosWatched, &s.LastWatchedAt, &s.UpdatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scanning user stats: %w", err)
			}
			batch = append(batch, s)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		offset += batchSize
	}
}

// GetUserStats returns the denormalized aggregate for one user
func (r *Repository) GetUserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	query := `
		SELECT user_id::text, total_xp, videos_watched, last_watched_at, updated_at
		FROM user_stats
		WHERE user_id = $1::uuid
	`
	var s domain.UserStats
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.UserID, &s.TotalXP, &s.VideosWatched, &s.LastWatchedAt, &s.UpdatedAt,
	)
	if err != nil {
		return domain.UserStats{UserID: userID}, err
	}
	return s, nil
}

// CountWatchRecords returns the total number of watch records
func (r *Repository) CountWatchRecords(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM watch_records`).Scan(&n)
	return n, err
}
