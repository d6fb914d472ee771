package domain

import "time"

// XP reward constants. A completed watch is worth BaseWatchXP plus a streak
// bonus of StreakBonusStep per streak day, capped at MaxStreakBonus.
const (
	BaseWatchXP     = 100
	StreakBonusStep = 10
	MaxStreakBonus  = 100
)

// WatchRecord is one completion event for a (user, video) pair. Records are
// append-only; uniqueness of the pair is enforced by the storage layer.
type WatchRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	VideoID   string    `json:"video_id"`
	XPEarned  int       `json:"xp_earned"`
	WatchedAt time.Time `json:"watched_at"`
}

// Progress is the aggregate derived from a user's watch records. It is
// recomputed from the records, never mutated in place.
type Progress struct {
	UserID    string     `json:"user_id"`
	Watched   []string   `json:"watched"`
	XP        int64      `json:"xp"`
	Streak    int        `json:"streak"`
	LastWatch *time.Time `json:"last_watch,omitempty"`
}

// HasWatched reports whether the given video id is in the watched set.
func (p Progress) HasWatched(videoID string) bool {
	for _, id := range p.Watched {
		if id == videoID {
			return true
		}
	}
	return false
}

// StreakBonus returns the XP bonus the next watch earns given the current streak.
func StreakBonus(streak int) int {
	if streak <= 0 {
		return 0
	}
	bonus := streak * StreakBonusStep
	if bonus > MaxStreakBonus {
		bonus = MaxStreakBonus
	}
	return bonus
}

// WatchEvent is a watch completion submitted through the ingestion pipeline
type WatchEvent struct {
	UserID    string    `json:"user_id"`
	VideoID   string    `json:"video_id"`
	WatchedAt time.Time `json:"watched_at"`
}
