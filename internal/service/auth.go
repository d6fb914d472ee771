package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/medprep-backend/internal/auth"
	"github.com/medprep-backend/internal/domain"
	"github.com/medprep-backend/internal/postgres"
)

const (
	minPasswordLen = 8
	maxLoginLen    = 254
)

// UserStore is the persistence surface for accounts and refresh sessions.
type UserStore interface {
	CreateUser(ctx context.Context, p postgres.CreateUserParams) (domain.User, error)
	FindUserByLogin(ctx context.Context, login string) (domain.UserCredentials, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	CreateRefreshSession(ctx context.Context, s domain.RefreshSession) error
	GetRefreshSessionByHash(ctx context.Context, tokenHash string) (domain.RefreshSession, error)
	RevokeRefreshSession(ctx context.Context, sessionID string, now time.Time) error
}

// AuthService handles registration, login and refresh token rotation.
type AuthService struct {
	store  UserStore
	tokens auth.TokenService
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(store UserStore, tokens auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:  store,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

// Register creates a learner account and issues a token pair.
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest, userAgent string) (domain.User, domain.TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)
	if email == "" || !strings.Contains(email, "@") || len(email) > maxLoginLen {
		return domain.User{}, domain.TokenPair{}, domain.ErrInvalidRequest
	}
	if username == "" || len(username) > maxLoginLen {
		return domain.User{}, domain.TokenPair{}, domain.ErrInvalidRequest
	}
	if len(req.Password) < minPasswordLen {
		return domain.User{}, domain.TokenPair{}, domain.ErrInvalidRequest
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, postgres.CreateUserParams{
		Email:        email,
		Username:     username,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: string(hash),
	})
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	pair, err := s.issueTokens(ctx, user, userAgent)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, pair, nil
}

// Login authenticates by email or username. Every failure mode returns the
// same generic error so responses do not reveal whether the account exists.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest, userAgent string) (domain.User, domain.TokenPair, error) {
	creds, err := s.store.FindUserByLogin(ctx, req.Login)
	if err != nil {
		// Burn a bcrypt comparison so lookup misses take the same time
		// as password mismatches.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$N9qo8uLOickgx2ZMRZoMye"), []byte(req.Password))
		return domain.User{}, domain.TokenPair{}, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(req.Password)); err != nil {
		return domain.User{}, domain.TokenPair{}, domain.ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, creds.User, userAgent)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	return creds.User, pair, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// session is created, so a stolen token can be used at most once.
func (s *AuthService) Refresh(ctx context.Context, rawToken, userAgent string) (domain.TokenPair, error) {
	session, err := s.store.GetRefreshSessionByHash(ctx, auth.HashToken(rawToken))
	if err != nil {
		return domain.TokenPair{}, err
	}
	now := s.now().UTC()
	if session.RevokedAt != nil || now.After(session.ExpiresAt) {
		return domain.TokenPair{}, domain.ErrSessionExpired
	}

	user, err := s.store.GetUser(ctx, session.UserID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if err := s.store.RevokeRefreshSession(ctx, session.ID, now); err != nil {
		return domain.TokenPair{}, err
	}
	return s.issueTokens(ctx, user, userAgent)
}

// Logout revokes the session behind a refresh token. An unknown token is
// treated as already logged out.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	session, err := s.store.GetRefreshSessionByHash(ctx, auth.HashToken(rawToken))
	if err != nil {
		if domain.IsNotFoundError(err) || err == domain.ErrSessionExpired {
			return nil
		}
		return err
	}
	return s.store.RevokeRefreshSession(ctx, session.ID, s.now().UTC())
}

// Me returns the profile for an authenticated user id.
func (s *AuthService) Me(ctx context.Context, userID string) (domain.User, error) {
	return s.store.GetUser(ctx, userID)
}

func (s *AuthService) issueTokens(ctx context.Context, user domain.User, userAgent string) (domain.TokenPair, error) {
	now := s.now().UTC()

	access, exp, err := s.tokens.NewAccessToken(user.ID, user.Role, now)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("signing access token: %w", err)
	}

	raw, hash, err := auth.NewRefreshToken()
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("minting refresh token: %w", err)
	}

	err = s.store.CreateRefreshSession(ctx, domain.RefreshSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: now.Add(s.tokens.RefreshTokenTTL),
		CreatedAt: now,
		UserAgent: userAgent,
	})
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		ExpiresAt:    exp,
	}, nil
}
