package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medprep-backend/internal/config"
	"github.com/medprep-backend/internal/domain"
)

type fakeStatsStore struct {
	stats    []domain.UserStats
	names    map[string]string
	statsErr error
	namesErr error
}

func (f *fakeStatsStore) TopUserStats(_ context.Context, limit int) ([]domain.UserStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	if len(f.stats) > limit {
		return f.stats[:limit], nil
	}
	return f.stats, nil
}

func (f *fakeStatsStore) GetUserStats(_ context.Context, userID string) (domain.UserStats, error) {
	if f.statsErr != nil {
		return domain.UserStats{}, f.statsErr
	}
	for _, st := range f.stats {
		if st.UserID == userID {
			return st, nil
		}
	}
	return domain.UserStats{}, domain.ErrUserNotFound
}

func (f *fakeStatsStore) GetDisplayNames(_ context.Context, userIDs []string) (map[string]string, error) {
	if f.namesErr != nil {
		return nil, f.namesErr
	}
	out := map[string]string{}
	for _, id := range userIDs {
		if name, ok := f.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

type fakeRankCache struct {
	rank int64
	xp   int64
	err  error
}

func (f *fakeRankCache) UserRank(context.Context, string) (int64, int64, error) {
	return f.rank, f.xp, f.err
}

type fakeBroadcaster struct {
	broadcasts [][]domain.LeaderboardEntry
}

func (f *fakeBroadcaster) BroadcastLeaderboard(entries []domain.LeaderboardEntry) {
	f.broadcasts = append(f.broadcasts, entries)
}

func newTestLeaderboard(stats StatsStore, cache RankCache) *LeaderboardService {
	return NewLeaderboardService(stats, cache, &config.LeaderboardConfig{Size: 50}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLeaderboardTop_RanksAndLevels(t *testing.T) {
	store := &fakeStatsStore{
		stats: []domain.UserStats{
			{UserID: "alice-id", TotalXP: 500},
			{UserID: "bob-id", TotalXP: 300},
			{UserID: "carol-id-1234", TotalXP: 200},
		},
		names: map[string]string{
			"alice-id": "Alice",
			"bob-id":   "Bob",
			// carol has no resolvable name
		},
	}
	svc := newTestLeaderboard(store, &fakeRankCache{})

	entries, err := svc.Top(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "Alice", entries[0].DisplayName)
	assert.Equal(t, int64(500), entries[0].XP)
	assert.Equal(t, 2, entries[0].Level)

	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "Bob", entries[1].DisplayName)
	assert.Equal(t, 1, entries[1].Level)

	assert.Equal(t, 3, entries[2].Rank)
	assert.Equal(t, "learner-carol-id", entries[2].DisplayName)
}

func TestLeaderboardTop_MaskedNamesOnLookupFailure(t *testing.T) {
	store := &fakeStatsStore{
		stats:    []domain.UserStats{{UserID: "someone-long-id", TotalXP: 100}},
		namesErr: errors.New("db down"),
	}
	svc := newTestLeaderboard(store, &fakeRankCache{})

	entries, err := svc.Top(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "learner-someone-", entries[0].DisplayName)
}

func TestLeaderboardTop_TruncatesToConfiguredSize(t *testing.T) {
	store := &fakeStatsStore{names: map[string]string{}}
	for i := 0; i < 80; i++ {
		store.stats = append(store.stats, domain.UserStats{UserID: "user", TotalXP: int64(80 - i)})
	}
	svc := newTestLeaderboard(store, &fakeRankCache{})

	entries, err := svc.Top(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 50)
}

func TestLeaderboardRank(t *testing.T) {
	store := &fakeStatsStore{names: map[string]string{"u1": "Uno"}}
	svc := newTestLeaderboard(store, &fakeRankCache{rank: 4, xp: 450})

	entry, err := svc.Rank(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, entry.Rank)
	assert.Equal(t, int64(450), entry.XP)
	assert.Equal(t, 1, entry.Level)
	assert.Equal(t, "Uno", entry.DisplayName)
}

func TestLeaderboardRank_IncludesLastActive(t *testing.T) {
	lastWatch := time.Date(2026, 3, 9, 18, 30, 0, 0, time.UTC)
	store := &fakeStatsStore{
		stats: []domain.UserStats{{UserID: "u1", TotalXP: 450, LastWatchedAt: &lastWatch}},
		names: map[string]string{"u1": "Uno"},
	}
	svc := newTestLeaderboard(store, &fakeRankCache{rank: 4, xp: 450})

	entry, err := svc.Rank(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, entry.LastActive)
	assert.Equal(t, lastWatch, *entry.LastActive)
}

func TestLeaderboardRank_StatsLookupFailureKeepsEntry(t *testing.T) {
	store := &fakeStatsStore{statsErr: errors.New("db down")}
	svc := newTestLeaderboard(store, &fakeRankCache{rank: 0, xp: 100})

	entry, err := svc.Rank(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Rank)
	assert.Nil(t, entry.LastActive)
}

func TestLeaderboardRank_NotRanked(t *testing.T) {
	svc := newTestLeaderboard(&fakeStatsStore{}, &fakeRankCache{err: domain.ErrUserNotFound})

	_, err := svc.Rank(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestNotifyChange_Broadcasts(t *testing.T) {
	store := &fakeStatsStore{
		stats: []domain.UserStats{{UserID: "u1", TotalXP: 100}},
		names: map[string]string{"u1": "Uno"},
	}
	svc := newTestLeaderboard(store, &fakeRankCache{})
	hub := &fakeBroadcaster{}
	svc.SetHub(hub)

	svc.NotifyChange(context.Background())
	require.Len(t, hub.broadcasts, 1)
	assert.Equal(t, "Uno", hub.broadcasts[0][0].DisplayName)
}

func TestNotifyChange_SwallowsErrors(t *testing.T) {
	svc := newTestLeaderboard(&fakeStatsStore{statsErr: errors.New("db down")}, &fakeRankCache{})
	hub := &fakeBroadcaster{}
	svc.SetHub(hub)

	svc.NotifyChange(context.Background())
	assert.Empty(t, hub.broadcasts)
}
