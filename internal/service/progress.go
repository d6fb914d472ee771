package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/medprep-backend/internal/config"
	"github.com/medprep-backend/internal/domain"
)

const dayLayout = "2006-01-02"

// WatchStore is the persistence surface the progress aggregator needs.
type WatchStore interface {
	// InsertWatchRecord appends a record and reports whether the
	// (user, video) pair was new. The store's unique constraint is the
	// sole arbiter of "already watched".
	InsertWatchRecord(ctx context.Context, rec domain.WatchRecord) (bool, error)
	// ListWatchRecords returns up to limit of a user's records, most recent first.
	ListWatchRecords(ctx context.Context, userID string, limit int) ([]domain.WatchRecord, error)
}

// ProgressCache caches per-user aggregates and mirrors XP totals.
type ProgressCache interface {
	GetProgress(ctx context.Context, userID string) (domain.Progress, bool, error)
	SetProgress(ctx context.Context, p domain.Progress, ttl time.Duration) error
	InvalidateProgress(ctx context.Context, userID string) error
	IncrementXP(ctx context.Context, userID string, delta int64) (int64, error)
}

// ProgressService derives XP, watched-set and streak aggregates from watch
// records and applies new watch completions.
type ProgressService struct {
	store       WatchStore
	cache       ProgressCache
	config      *config.ProgressConfig
	leaderboard *LeaderboardService
	logger      *slog.Logger
	loc         *time.Location
	now         func() time.Time
}

// NewProgressService creates a new progress service
func NewProgressService(store WatchStore, cache ProgressCache, cfg *config.ProgressConfig, logger *slog.Logger) *ProgressService {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("invalid progress timezone, falling back to UTC", "timezone", cfg.Timezone)
		loc = time.UTC
	}
	return &ProgressService{
		store:  store,
		cache:  cache,
		config: cfg,
		logger: logger,
		loc:    loc,
		now:    time.Now,
	}
}

// SetLeaderboard wires the leaderboard service so new watch records trigger
// a live leaderboard broadcast.
func (s *ProgressService) SetLeaderboard(lb *LeaderboardService) {
	s.leaderboard = lb
}

// GetProgress returns the user's aggregated progress. Reads fail soft:
// a storage error yields a zeroed aggregate, never an error to the caller.
func (s *ProgressService) GetProgress(ctx context.Context, userID string) domain.Progress {
	if userID == "" {
		return domain.Progress{Watched: []string{}}
	}

	if s.cache != nil {
		if p, hit, err := s.cache.GetProgress(ctx, userID); err != nil {
			s.logger.Warn("progress cache read failed", "user_id", userID, "error", err)
		} else if hit {
			return p
		}
	}

	records, err := s.store.ListWatchRecords(ctx, userID, s.config.RecentLimit)
	if err != nil {
		s.logger.Warn("listing watch records failed", "user_id", userID, "error", err)
		return domain.Progress{UserID: userID, Watched: []string{}}
	}

	p := s.aggregate(userID, records)

	if s.cache != nil {
		if err := s.cache.SetProgress(ctx, p, s.config.CacheTTL); err != nil {
			s.logger.Warn("progress cache write failed", "user_id", userID, "error", err)
		}
	}
	return p
}

// RecordWatch applies a completion event. The XP reward is the base amount
// plus a bonus from the pre-write streak. Returns whether a record was
// inserted; a duplicate (user, video) pair inserts nothing and is not an error.
func (s *ProgressService) RecordWatch(ctx context.Context, ev domain.WatchEvent) (bool, error) {
	if ev.UserID == "" || ev.VideoID == "" {
		return false, domain.ErrInvalidRequest
	}

	current := s.GetProgress(ctx, ev.UserID)
	if current.HasWatched(ev.VideoID) {
		return false, nil
	}

	xp := domain.BaseWatchXP + domain.StreakBonus(current.Streak)
	watchedAt := ev.WatchedAt
	if watchedAt.IsZero() {
		watchedAt = s.now().UTC()
	}

	inserted, err := s.store.InsertWatchRecord(ctx, domain.WatchRecord{
		UserID:    ev.UserID,
		VideoID:   ev.VideoID,
		XPEarned:  xp,
		WatchedAt: watchedAt,
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		// Lost the race to a concurrent completion; the constraint decided.
		return false, nil
	}

	if s.cache != nil {
		if err := s.cache.InvalidateProgress(ctx, ev.UserID); err != nil {
			s.logger.Warn("progress cache invalidation failed", "user_id", ev.UserID, "error", err)
		}
		if _, err := s.cache.IncrementXP(ctx, ev.UserID, int64(xp)); err != nil {
			s.logger.Warn("leaderboard xp increment failed", "user_id", ev.UserID, "error", err)
		}
	}

	if s.leaderboard != nil {
		s.leaderboard.NotifyChange(ctx)
	}
	return true, nil
}

// MarkVideoWatched is the fail-soft form of RecordWatch used by the HTTP
// surface: missing ids and storage errors both degrade to returning the
// current (possibly unchanged) progress.
func (s *ProgressService) MarkVideoWatched(ctx context.Context, videoID, userID string) domain.Progress {
	if userID == "" || videoID == "" {
		return s.GetProgress(ctx, userID)
	}
	if _, err := s.RecordWatch(ctx, domain.WatchEvent{UserID: userID, VideoID: videoID}); err != nil {
		s.logger.Warn("recording watch failed", "user_id", userID, "video_id", videoID, "error", err)
	}
	return s.GetProgress(ctx, userID)
}

// aggregate folds watch records into a Progress value.
func (s *ProgressService) aggregate(userID string, records []domain.WatchRecord) domain.Progress {
	p := domain.Progress{UserID: userID, Watched: []string{}}

	seen := make(map[string]struct{}, len(records))
	days := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.VideoID]; !dup {
			seen[rec.VideoID] = struct{}{}
			p.Watched = append(p.Watched, rec.VideoID)
		}

		xp := rec.XPEarned
		if xp == 0 {
			// Legacy records without an explicit reward count as the base.
			xp = domain.BaseWatchXP
		}
		p.XP += int64(xp)

		if p.LastWatch == nil || rec.WatchedAt.After(*p.LastWatch) {
			at := rec.WatchedAt
			p.LastWatch = &at
		}

		days[rec.WatchedAt.In(s.loc).Format(dayLayout)] = struct{}{}
	}

	p.Streak = streakFromDays(days, s.now(), s.loc)
	return p
}

// streakFromDays counts consecutive watched days walking back from today.
// A day without a watch only breaks the streak once the walk has started;
// if today has no record yet the walk may start at yesterday instead.
func streakFromDays(days map[string]struct{}, now time.Time, loc *time.Location) int {
	if len(days) == 0 {
		return 0
	}
	day := func(offset int) string {
		return now.In(loc).AddDate(0, 0, -offset).Format(dayLayout)
	}

	start := 0
	if _, ok := days[day(0)]; !ok {
		if _, ok := days[day(1)]; !ok {
			return 0
		}
		start = 1
	}

	streak := 0
	for offset := start; ; offset++ {
		if _, ok := days[day(offset)]; !ok {
			break
		}
		streak++
	}
	return streak
}
