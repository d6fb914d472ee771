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

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeWatchStore struct {
	records   map[string][]domain.WatchRecord
	insertErr error
	listErr   error
}

func newFakeWatchStore() *fakeWatchStore {
	return &fakeWatchStore{records: map[string][]domain.WatchRecord{}}
}

func (f *fakeWatchStore) InsertWatchRecord(_ context.Context, rec domain.WatchRecord) (bool, error) {
	if f.insertErr != nil {
		return false, f.insertErr
	}
	for _, existing := range f.records[rec.UserID] {
		if existing.VideoID == rec.VideoID {
			return false, nil
		}
	}
	f.records[rec.UserID] = append(f.records[rec.UserID], rec)
	return true, nil
}

func (f *fakeWatchStore) ListWatchRecords(_ context.Context, userID string, limit int) ([]domain.WatchRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	recs := f.records[userID]
	if len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return recs, nil
}

type fakeProgressCache struct {
	entries     map[string]domain.Progress
	xp          map[string]int64
	invalidated int
	getErr      error
}

func newFakeProgressCache() *fakeProgressCache {
	return &fakeProgressCache{entries: map[string]domain.Progress{}, xp: map[string]int64{}}
}

func (f *fakeProgressCache) GetProgress(_ context.Context, userID string) (domain.Progress, bool, error) {
	if f.getErr != nil {
		return domain.Progress{}, false, f.getErr
	}
	p, ok := f.entries[userID]
	return p, ok, nil
}

func (f *fakeProgressCache) SetProgress(_ context.Context, p domain.Progress, _ time.Duration) error {
	f.entries[p.UserID] = p
	return nil
}

func (f *fakeProgressCache) InvalidateProgress(_ context.Context, userID string) error {
	delete(f.entries, userID)
	f.invalidated++
	return nil
}

func (f *fakeProgressCache) IncrementXP(_ context.Context, userID string, delta int64) (int64, error) {
	f.xp[userID] += delta
	return f.xp[userID], nil
}

func newTestProgressService(store WatchStore, cache ProgressCache) *ProgressService {
	return &ProgressService{
		store:  store,
		cache:  cache,
		config: &config.ProgressConfig{RecentLimit: 500, CacheTTL: 5 * time.Minute, Timezone: "UTC"},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		loc:    time.UTC,
		now:    func() time.Time { return testNow },
	}
}

func watchedOn(videoID string, daysAgo int, xp int) domain.WatchRecord {
	return domain.WatchRecord{
		UserID:    "u1",
		VideoID:   videoID,
		XPEarned:  xp,
		WatchedAt: testNow.AddDate(0, 0, -daysAgo),
	}
}

func TestGetProgress_EmptyHistory(t *testing.T) {
	svc := newTestProgressService(newFakeWatchStore(), newFakeProgressCache())

	p := svc.GetProgress(context.Background(), "u1")
	assert.Equal(t, "u1", p.UserID)
	assert.Empty(t, p.Watched)
	assert.Equal(t, int64(0), p.XP)
	assert.Equal(t, 0, p.Streak)
	assert.Nil(t, p.LastWatch)
}

func TestGetProgress_SumsXPAndDedupes(t *testing.T) {
	store := newFakeWatchStore()
	store.records["u1"] = []domain.WatchRecord{
		watchedOn("v1", 0, 100),
		watchedOn("v2", 0, 110),
		watchedOn("v2", 1, 0), // duplicate video, legacy zero reward
	}
	svc := newTestProgressService(store, newFakeProgressCache())

	p := svc.GetProgress(context.Background(), "u1")
	assert.ElementsMatch(t, []string{"v1", "v2"}, p.Watched)
	// 100 + 110, plus the zero-reward record counted at the base amount
	assert.Equal(t, int64(310), p.XP)
	require.NotNil(t, p.LastWatch)
	assert.True(t, p.LastWatch.Equal(testNow))
}

func TestGetProgress_StreakCases(t *testing.T) {
	cases := []struct {
		name    string
		daysAgo []int
		want    int
	}{
		{"three consecutive days", []int{0, 1, 2}, 3},
		{"gap yesterday breaks streak", []int{0, 2}, 1},
		{"no records", nil, 0},
		{"yesterday only", []int{1}, 1},
		{"yesterday and before, nothing today", []int{1, 2}, 2},
		{"two days ago only", []int{2}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeWatchStore()
			for i, d := range tc.daysAgo {
				store.records["u1"] = append(store.records["u1"], watchedOn(string(rune('a'+i)), d, 100))
			}
			svc := newTestProgressService(store, newFakeProgressCache())

			p := svc.GetProgress(context.Background(), "u1")
			assert.Equal(t, tc.want, p.Streak)
		})
	}
}

func TestGetProgress_FailSoftOnStoreError(t *testing.T) {
	store := newFakeWatchStore()
	store.listErr = errors.New("db down")
	svc := newTestProgressService(store, newFakeProgressCache())

	p := svc.GetProgress(context.Background(), "u1")
	assert.Equal(t, "u1", p.UserID)
	assert.Empty(t, p.Watched)
	assert.Equal(t, int64(0), p.XP)
}

func TestGetProgress_CacheHitSkipsStore(t *testing.T) {
	store := newFakeWatchStore()
	store.listErr = errors.New("must not be called")
	cache := newFakeProgressCache()
	cache.entries["u1"] = domain.Progress{UserID: "u1", Watched: []string{"v1"}, XP: 100, Streak: 1}
	svc := newTestProgressService(store, cache)

	p := svc.GetProgress(context.Background(), "u1")
	assert.Equal(t, int64(100), p.XP)
	assert.Equal(t, []string{"v1"}, p.Watched)
}

func TestRecordWatch_FirstWatch(t *testing.T) {
	store := newFakeWatchStore()
	cache := newFakeProgressCache()
	svc := newTestProgressService(store, cache)

	inserted, err := svc.RecordWatch(context.Background(), domain.WatchEvent{UserID: "u1", VideoID: "v1"})
	require.NoError(t, err)
	assert.True(t, inserted)

	require.Len(t, store.records["u1"], 1)
	assert.Equal(t, domain.BaseWatchXP, store.records["u1"][0].XPEarned)
	assert.Equal(t, int64(domain.BaseWatchXP), cache.xp["u1"])
	assert.GreaterOrEqual(t, cache.invalidated, 1)
}

func TestRecordWatch_StreakBonusFromPriorStreak(t *testing.T) {
	store := newFakeWatchStore()
	store.records["u1"] = []domain.WatchRecord{
		watchedOn("v1", 1, 100),
		watchedOn("v2", 2, 100),
	}
	svc := newTestProgressService(store, newFakeProgressCache())

	// Two-day streak before this watch earns a 20 XP bonus.
	inserted, err := svc.RecordWatch(context.Background(), domain.WatchEvent{UserID: "u1", VideoID: "v3"})
	require.NoError(t, err)
	assert.True(t, inserted)

	recs := store.records["u1"]
	assert.Equal(t, 120, recs[len(recs)-1].XPEarned)
}

func TestRecordWatch_DuplicateIsNoop(t *testing.T) {
	store := newFakeWatchStore()
	cache := newFakeProgressCache()
	svc := newTestProgressService(store, cache)

	inserted, err := svc.RecordWatch(context.Background(), domain.WatchEvent{UserID: "u1", VideoID: "v1"})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = svc.RecordWatch(context.Background(), domain.WatchEvent{UserID: "u1", VideoID: "v1"})
	require.NoError(t, err)
	assert.False(t, inserted)

	assert.Len(t, store.records["u1"], 1)
	assert.Equal(t, int64(domain.BaseWatchXP), cache.xp["u1"])
}

func TestRecordWatch_MissingIDs(t *testing.T) {
	svc := newTestProgressService(newFakeWatchStore(), newFakeProgressCache())

	_, err := svc.RecordWatch(context.Background(), domain.WatchEvent{UserID: "", VideoID: "v1"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.RecordWatch(context.Background(), domain.WatchEvent{UserID: "u1", VideoID: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestMarkVideoWatched_EndToEnd(t *testing.T) {
	store := newFakeWatchStore()
	svc := newTestProgressService(store, newFakeProgressCache())

	p := svc.MarkVideoWatched(context.Background(), "v1", "u1")
	assert.Equal(t, []string{"v1"}, p.Watched)
	assert.Equal(t, int64(domain.BaseWatchXP), p.XP)
	assert.Equal(t, 1, p.Streak)
}

func TestMarkVideoWatched_FailSoftOnInsertError(t *testing.T) {
	store := newFakeWatchStore()
	store.insertErr = errors.New("db down")
	svc := newTestProgressService(store, newFakeProgressCache())

	p := svc.MarkVideoWatched(context.Background(), "v1", "u1")
	assert.Equal(t, "u1", p.UserID)
	assert.Empty(t, p.Watched)
}
