package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/medprep-backend/internal/config"
	"github.com/medprep-backend/internal/domain"
)

// ChatStore is the persistence surface for the chat wall.
type ChatStore interface {
	InsertChatMessage(ctx context.Context, m domain.ChatMessage) (domain.ChatMessage, error)
	ListRecentMessages(ctx context.Context, limit int) ([]domain.ChatMessage, error)
	PruneMessages(ctx context.Context, olderThan time.Time) (int64, error)
}

// UserLookup resolves a user id to a profile.
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
}

// ChatBroadcaster pushes new messages to live subscribers.
type ChatBroadcaster interface {
	BroadcastChat(m domain.ChatMessage)
}

// ChatService manages the live chat wall: persisted history plus live
// fan-out through the websocket hub.
type ChatService struct {
	store  ChatStore
	users  UserLookup
	hub    ChatBroadcaster
	config *config.ChatConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewChatService creates a new chat service
func NewChatService(store ChatStore, users UserLookup, cfg *config.ChatConfig, logger *slog.Logger) *ChatService {
	return &ChatService{
		store:  store,
		users:  users,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetHub wires the websocket hub for live message broadcasts.
func (s *ChatService) SetHub(hub ChatBroadcaster) {
	s.hub = hub
}

// Post validates, persists and broadcasts a chat message.
func (s *ChatService) Post(ctx context.Context, userID, body string) (domain.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" || len(body) > domain.MaxChatMessageLen {
		return domain.ChatMessage{}, domain.ErrInvalidRequest
	}

	displayName := domain.MaskedName(userID)
	if user, err := s.users.GetUser(ctx, userID); err != nil {
		s.logger.Warn("chat author lookup failed, using masked name", "user_id", userID, "error", err)
	} else if user.DisplayName != "" {
		displayName = user.DisplayName
	} else if user.Username != "" {
		displayName = user.Username
	}

	m, err := s.store.InsertChatMessage(ctx, domain.ChatMessage{
		UserID:      userID,
		DisplayName: displayName,
		Body:        body,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}

	if s.hub != nil {
		s.hub.BroadcastChat(m)
	}
	return m, nil
}

// Recent returns the latest messages in chronological order.
func (s *ChatService) Recent(ctx context.Context) ([]domain.ChatMessage, error) {
	messages, err := s.store.ListRecentMessages(ctx, s.config.HistoryLimit)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	return messages, nil
}

// Prune deletes messages older than the given age, defaulting to the
// configured retention window. Returns how many were removed.
func (s *ChatService) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		olderThan = s.config.Retention
	}
	cutoff := s.now().Add(-olderThan)
	return s.store.PruneMessages(ctx, cutoff)
}
