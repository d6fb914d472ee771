package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medprep-backend/internal/domain"
)

// PostgreSQL constraint violation codes.
const (
	uniqueViolation = "23505"
	fkViolation     = "23503"
)

// CreateUserParams are the fields needed to insert a new account
type CreateUserParams struct {
	Email        string
	Username     string
	DisplayName  string
	PasswordHash string
}

// CreateUser inserts a new user with the learner role
func (r *Repository) CreateUser(ctx context.Context, p CreateUserParams) (domain.User, error) {
	id := uuid.New()
	query := `
		INSERT INTO users (id, email, username, display_name, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text, email, username, display_name, role, created_at, updated_at
	`
	var u domain.User
	err := r.pool.QueryRow(ctx, query, id, p.Email, p.Username, p.DisplayName, p.PasswordHash).Scan(
		&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.User{}, domain.ErrConflict
		}
		return domain.User{}, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// FindUserByLogin looks up a user by email or username, case-insensitive
func (r *Repository) FindUserByLogin(ctx context.Context, login string) (domain.UserCredentials, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return domain.UserCredentials{}, domain.ErrUserNotFound
	}

	query := `
		SELECT id::text, email, username, display_name, role, password_hash, created_at, updated_at
		FROM users
		WHERE lower(email) = lower($1) OR lower(username) = lower($1)
		LIMIT 1
	`
	var row domain.UserCredentials
	err := r.pool.QueryRow(ctx, query, login).Scan(
		&row.User.ID, &row.User.Email, &row.User.Username, &row.User.DisplayName,
		&row.User.Role, &row.PasswordHash, &row.User.CreatedAt, &row.User.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserCredentials{}, domain.ErrUserNotFound
		}
		return domain.UserCredentials{}, fmt.Errorf("finding user: %w", err)
	}
	return row, nil
}

// GetUser retrieves a user by id
func (r *Repository) GetUser(ctx context.Context, userID string) (domain.User, error) {
	query := `
		SELECT id::text, email, username, display_name, role, created_at, updated_at
		FROM users
		WHERE id = $1::uuid
	`
	var u domain.User
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetDisplayNames resolves display names for a batch of user ids in one query.
// Users that cannot be resolved are simply absent from the result map.
func (r *Repository) GetDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	if len(userIDs) == 0 {
		return map[string]string{}, nil
	}

	query := `
		SELECT id::text, display_name, username
		FROM users
		WHERE id = ANY($1::uuid[])
	`
	rows, err := r.pool.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("resolving display names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string, len(userIDs))
	for rows.Next() {
		var id, displayName, username string
		if err := rows.Scan(&id, &displayName, &username); err != nil {
			return nil, fmt.Errorf("scanning display name: %w", err)
		}
		if displayName == "" {
			displayName = username
		}
		names[id] = displayName
	}
	return names, rows.Err()
}

// PromoteAdmin sets role=admin for the given username, case-insensitive.
// A missing user is not an error; bootstrap runs before any accounts may exist.
func (r *Repository) PromoteAdmin(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil
	}
	_, err := r.pool.Exec(ctx, `UPDATE users SET role = $1 WHERE lower(username) = lower($2)`, domain.RoleAdmin, username)
	if err != nil {
		return fmt.Errorf("promoting admin: %w", err)
	}
	return nil
}

// CreateRefreshSession stores the hash of a newly issued refresh token
func (r *Repository) CreateRefreshSession(ctx context.Context, s domain.RefreshSession) error {
	query := `
		INSERT INTO refresh_sessions (id, user_id, token_hash, expires_at, created_at, user_agent)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query, s.ID, s.UserID, s.TokenHash, s.ExpiresAt, s.CreatedAt, s.UserAgent)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrConflict
		}
		return fmt.Errorf("creating refresh session: %w", err)
	}
	return nil
}

// GetRefreshSessionByHash looks up a refresh session by token hash
func (r *Repository) GetRefreshSessionByHash(ctx context.Context, tokenHash string) (domain.RefreshSession, error) {
	query := `
		SELECT id::text, user_id::text, token_hash, expires_at, revoked_at, created_at
		FROM refresh_sessions
		WHERE token_hash = $1
		LIMIT 1
	`
	var s domain.RefreshSession
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.RevokedAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RefreshSession{}, domain.ErrSessionExpired
		}
		return domain.RefreshSession{}, fmt.Errorf("getting refresh session: %w", err)
	}
	return s, nil
}

// RevokeRefreshSession marks a refresh session revoked
func (r *Repository) RevokeRefreshSession(ctx context.Context, sessionID string, now time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE refresh_sessions SET revoked_at = $2 WHERE id = $1::uuid AND revoked_at IS NULL`,
		sessionID, now,
	)
	if err != nil {
		return fmt.Errorf("revoking refresh session: %w", err)
	}
	return nil
}

// CountUsers returns the total number of registered users
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
