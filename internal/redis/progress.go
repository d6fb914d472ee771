package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medprep-backend/internal/domain"
)

// progressKey returns the per-user cache key for an aggregated progress blob.
// Keys are per user with a bounded TTL, so one learner's fetch can never
// surface another learner's aggregate.
func progressKey(userID string) string {
	return fmt.Sprintf("progress:%s", userID)
}

// GetProgress returns the cached aggregate for a user, if present
func (c *Cache) GetProgress(ctx context.Context, userID string) (domain.Progress, bool, error) {
	data, err := c.client.Get(ctx, progressKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Progress{}, false, nil
		}
		return domain.Progress{}, false, fmt.Errorf("reading progress cache: %w", err)
	}

	var p domain.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		// Treat a corrupt entry as a miss; it will be overwritten.
		return domain.Progress{}, false, nil
	}
	return p, true, nil
}

// SetProgress caches a user's aggregate with the given TTL
func (c *Cache) SetProgress(ctx context.Context, p domain.Progress, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling progress: %w", err)
	}
	if err := c.client.Set(ctx, progressKey(p.UserID), data, ttl).Err(); err != nil {
		return fmt.Errorf("writing progress cache: %w", err)
	}
	return nil
}

// InvalidateProgress drops a user's cached aggregate
func (c *Cache) InvalidateProgress(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, progressKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidating progress cache: %w", err)
	}
	return nil
}
