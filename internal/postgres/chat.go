package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medprep-backend/internal/domain"
)

// InsertChatMessage persists a chat wall message
func (r *Repository) InsertChatMessage(ctx context.Context, m domain.ChatMessage) (domain.ChatMessage, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `
		INSERT INTO chat_messages (id, user_id, display_name, body, created_at)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5)
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query, m.ID, m.UserID, m.DisplayName, m.Body, m.CreatedAt).Scan(&m.CreatedAt)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("inserting chat message: %w", err)
	}
	return m, nil
}

// ListRecentMessages returns up to limit messages in chronological order
func (r *Repository) ListRecentMessages(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	query := `
		SELECT id::text, user_id::text, display_name, body, created_at
		FROM chat_messages
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing chat messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.DisplayName, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to oldest-first for display
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// PruneMessages deletes chat messages older than the cutoff and reports how many
func (r *Repository) PruneMessages(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM chat_messages WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("pruning chat messages: %w", err)
	}
	return result.RowsAffected(), nil
}

// CountChatMessages returns the total number of stored chat messages
func (r *Repository) CountChatMessages(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chat_messages`).Scan(&n)
	return n, err
}
