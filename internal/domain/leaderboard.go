package domain

import "time"

// LeaderboardSize is the number of entries returned by the public leaderboard.
const LeaderboardSize = 50

// LeaderboardEntry is a single ranked row in the XP leaderboard
type LeaderboardEntry struct {
	Rank        int        `json:"rank"`
	UserID      string     `json:"user_id"`
	DisplayName string     `json:"display_name"`
	XP          int64      `json:"xp"`
	Level       int        `json:"level"`
	LastActive  *time.Time `json:"last_active,omitempty"`
}

// UserStats is the denormalized per-user aggregate maintained alongside each
// watch record insert, so ranking is a sorted read rather than an event scan.
type UserStats struct {
	UserID        string     `json:"user_id"`
	TotalXP       int64      `json:"total_xp"`
	VideosWatched int        `json:"videos_watched"`
	LastWatchedAt *time.Time `json:"last_watched_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// MaskedName derives a fallback display name from an opaque user id fragment.
func MaskedName(userID string) string {
	const frag = 8
	if len(userID) > frag {
		userID = userID[:frag]
	}
	return "learner-" + userID
}
