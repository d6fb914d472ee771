package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/medprep-backend/internal/config"
	"github.com/medprep-backend/internal/domain"
)

// StatsStore is the persistence surface the leaderboard needs: the
// denormalized per-user XP table and batch display-name resolution.
type StatsStore interface {
	TopUserStats(ctx context.Context, limit int) ([]domain.UserStats, error)
	GetUserStats(ctx context.Context, userID string) (domain.UserStats, error)
	GetDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// RankCache answers single-user rank queries from the XP sorted set.
type RankCache interface {
	UserRank(ctx context.Context, userID string) (rank int64, xp int64, err error)
}

// Broadcaster pushes leaderboard updates to live subscribers.
type Broadcaster interface {
	BroadcastLeaderboard(entries []domain.LeaderboardEntry)
}

// LeaderboardService ranks users by cumulative XP. Ranking is a sorted read
// over the denormalized user_stats table, so there is no ceiling on how many
// historical watch events an account may have.
type LeaderboardService struct {
	stats  StatsStore
	cache  RankCache
	hub    Broadcaster
	config *config.LeaderboardConfig
	logger *slog.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(stats StatsStore, cache RankCache, cfg *config.LeaderboardConfig, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{
		stats:  stats,
		cache:  cache,
		config: cfg,
		logger: logger,
	}
}

// SetHub wires the websocket hub for live leaderboard broadcasts.
func (s *LeaderboardService) SetHub(hub Broadcaster) {
	s.hub = hub
}

// Top returns the ranked leaderboard, truncated to the configured size.
func (s *LeaderboardService) Top(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	stats, err := s.stats.TopUserStats(ctx, s.config.Size)
	if err != nil {
		return nil, fmt.Errorf("reading top user stats: %w", err)
	}
	return s.buildEntries(ctx, stats), nil
}

// buildEntries turns stats rows into ranked entries with resolved names.
// A user whose name cannot be resolved gets a masked fallback rather than
// dropping out of the board.
func (s *LeaderboardService) buildEntries(ctx context.Context, stats []domain.UserStats) []domain.LeaderboardEntry {
	ids := make([]string, len(stats))
	for i, st := range stats {
		ids[i] = st.UserID
	}

	names, err := s.stats.GetDisplayNames(ctx, ids)
	if err != nil {
		s.logger.Warn("display name resolution failed, using masked names", "error", err)
		names = map[string]string{}
	}

	entries := make([]domain.LeaderboardEntry, len(stats))
	for i, st := range stats {
		name, ok := names[st.UserID]
		if !ok || name == "" {
			name = domain.MaskedName(st.UserID)
		}
		entries[i] = domain.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      st.UserID,
			DisplayName: name,
			XP:          st.TotalXP,
			Level:       domain.Level(st.TotalXP),
			LastActive:  st.LastWatchedAt,
		}
	}
	return entries
}

// Rank returns the authenticated user's own leaderboard position.
func (s *LeaderboardService) Rank(ctx context.Context, userID string) (domain.LeaderboardEntry, error) {
	rank, xp, err := s.cache.UserRank(ctx, userID)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}

	names, err := s.stats.GetDisplayNames(ctx, []string{userID})
	if err != nil {
		s.logger.Warn("display name resolution failed", "user_id", userID, "error", err)
		names = map[string]string{}
	}
	name := names[userID]
	if name == "" {
		name = domain.MaskedName(userID)
	}

	entry := domain.LeaderboardEntry{
		Rank:        int(rank) + 1,
		UserID:      userID,
		DisplayName: name,
		XP:          xp,
		Level:       domain.Level(xp),
	}

	stats, err := s.stats.GetUserStats(ctx, userID)
	if err != nil {
		s.logger.Warn("user stats lookup failed", "user_id", userID, "error", err)
		return entry, nil
	}
	entry.LastActive = stats.LastWatchedAt
	return entry, nil
}

// NotifyChange recomputes the board and broadcasts it to live subscribers.
// Failures are logged and swallowed; a missed broadcast self-heals on the
// next change.
func (s *LeaderboardService) NotifyChange(ctx context.Context) {
	if s.hub == nil {
		return
	}
	entries, err := s.Top(ctx)
	if err != nil {
		s.logger.Warn("leaderboard broadcast skipped", "error", err)
		return
	}
	s.hub.BroadcastLeaderboard(entries)
}
