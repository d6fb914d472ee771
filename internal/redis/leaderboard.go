package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/medprep-backend/internal/domain"
)

// leaderboardKey is the sorted set holding total XP per user id.
const leaderboardKey = "leaderboard:xp"

// RankedUser is a (user, xp) pair read from the leaderboard sorted set
type RankedUser struct {
	UserID string
	XP     int64
}

// IncrementXP adds delta to a user's total XP in the leaderboard set
func (c *Cache) IncrementXP(ctx context.Context, userID string, delta int64) (int64, error) {
	score, err := c.client.ZIncrBy(ctx, leaderboardKey, float64(delta), userID).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing xp: %w", err)
	}
	return int64(score), nil
}

// SetXP overwrites a user's total XP in the leaderboard set
func (c *Cache) SetXP(ctx context.Context, userID string, xp int64) error {
	err := c.client.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(xp),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("setting xp: %w", err)
	}
	return nil
}

// BatchSetXP overwrites many users' totals in a single pipeline
func (c *Cache) BatchSetXP(ctx context.Context, totals map[string]int64) error {
	if len(totals) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for userID, xp := range totals {
		pipe.ZAdd(ctx, leaderboardKey, redis.Z{Score: float64(xp), Member: userID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("batch setting xp: %w", err)
	}
	return nil
}

// TopXP returns the n highest-XP users, best first
func (c *Cache) TopXP(ctx context.Context, n int) ([]RankedUser, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading top xp: %w", err)
	}

	ranked := make([]RankedUser, 0, len(results))
	for _, z := range results {
		userID, ok := z.Member.(string)
		if !ok {
			continue
		}
		ranked = append(ranked, RankedUser{UserID: userID, XP: int64(z.Score)})
	}
	return ranked, nil
}

// UserRank returns a user's zero-based rank and total XP
func (c *Cache) UserRank(ctx context.Context, userID string) (rank int64, xp int64, err error) {
	rank, err = c.client.ZRevRank(ctx, leaderboardKey, userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, 0, domain.ErrUserNotFound
		}
		return 0, 0, fmt.Errorf("reading rank: %w", err)
	}

	score, err := c.client.ZScore(ctx, leaderboardKey, userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, 0, domain.ErrUserNotFound
		}
		return 0, 0, fmt.Errorf("reading score: %w", err)
	}
	return rank, int64(score), nil
}

// LeaderboardCount returns the number of users in the leaderboard set
func (c *Cache) LeaderboardCount(ctx context.Context) (int64, error) {
	n, err := c.client.ZCard(ctx, leaderboardKey).Result()
	if err != nil {
		return 0, fmt.Errorf("counting leaderboard: %w", err)
	}
	return n, nil
}
