package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medprep-backend/internal/domain"
)

type fakeVideoStore struct {
	videos map[string]domain.Video
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{videos: map[string]domain.Video{}}
}

func (f *fakeVideoStore) CreateVideo(_ context.Context, v domain.Video) (domain.Video, error) {
	v.ID = uuid.NewString()
	f.videos[v.ID] = v
	return v, nil
}

func (f *fakeVideoStore) UpdateVideo(_ context.Context, v domain.Video) (domain.Video, error) {
	if _, ok := f.videos[v.ID]; !ok {
		return domain.Video{}, domain.ErrVideoNotFound
	}
	f.videos[v.ID] = v
	return v, nil
}

func (f *fakeVideoStore) DeleteVideo(_ context.Context, videoID string) error {
	if _, ok := f.videos[videoID]; !ok {
		return domain.ErrVideoNotFound
	}
	delete(f.videos, videoID)
	return nil
}

func (f *fakeVideoStore) GetVideo(_ context.Context, videoID string) (domain.Video, error) {
	v, ok := f.videos[videoID]
	if !ok {
		return domain.Video{}, domain.ErrVideoNotFound
	}
	return v, nil
}

func (f *fakeVideoStore) ListVideos(_ context.Context, publishedOnly bool, category string) ([]domain.Video, error) {
	var out []domain.Video
	for _, v := range f.videos {
		if publishedOnly && !v.Published {
			continue
		}
		if category != "" && v.Category != category {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func newTestCatalog(store VideoStore) *CatalogService {
	return NewCatalogService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func published() *bool {
	b := true
	return &b
}

func TestCatalogCreate_Validation(t *testing.T) {
	svc := newTestCatalog(newFakeVideoStore())

	_, err := svc.Create(context.Background(), domain.UpsertVideoRequest{PlaybackURL: "https://cdn/v.m3u8"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.Create(context.Background(), domain.UpsertVideoRequest{Title: "Cardiology 101"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	v, err := svc.Create(context.Background(), domain.UpsertVideoRequest{
		Title:       "  Cardiology 101  ",
		PlaybackURL: "https://cdn/v.m3u8",
		Category:    "cardiology",
	})
	require.NoError(t, err)
	assert.Equal(t, "Cardiology 101", v.Title)
	assert.False(t, v.Published)
}

func TestCatalogGet_HidesUnpublishedFromLearners(t *testing.T) {
	store := newFakeVideoStore()
	svc := newTestCatalog(store)

	v, err := svc.Create(context.Background(), domain.UpsertVideoRequest{
		Title:       "Draft",
		PlaybackURL: "https://cdn/v.m3u8",
	})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), v.ID, false)
	assert.ErrorIs(t, err, domain.ErrVideoNotFound)

	got, err := svc.Get(context.Background(), v.ID, true)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)
}

func TestCatalogList_FiltersUnpublished(t *testing.T) {
	store := newFakeVideoStore()
	svc := newTestCatalog(store)

	_, err := svc.Create(context.Background(), domain.UpsertVideoRequest{
		Title: "Live", PlaybackURL: "https://cdn/a.m3u8", Published: published(),
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), domain.UpsertVideoRequest{
		Title: "Draft", PlaybackURL: "https://cdn/b.m3u8",
	})
	require.NoError(t, err)

	learnerView, err := svc.List(context.Background(), "", false)
	require.NoError(t, err)
	assert.Len(t, learnerView, 1)

	adminView, err := svc.List(context.Background(), "", true)
	require.NoError(t, err)
	assert.Len(t, adminView, 2)
}

func TestCatalogList_EmptyIsNotNil(t *testing.T) {
	svc := newTestCatalog(newFakeVideoStore())

	videos, err := svc.List(context.Background(), "", false)
	require.NoError(t, err)
	assert.NotNil(t, videos)
	assert.Empty(t, videos)
}

func TestCatalogUpdate_NilPublishedKeepsState(t *testing.T) {
	store := newFakeVideoStore()
	svc := newTestCatalog(store)

	v, err := svc.Create(context.Background(), domain.UpsertVideoRequest{
		Title: "Live", PlaybackURL: "https://cdn/a.m3u8", Published: published(),
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), v.ID, domain.UpsertVideoRequest{
		Title:       "Live v2",
		PlaybackURL: "https://cdn/a2.m3u8",
	})
	require.NoError(t, err)
	assert.Equal(t, "Live v2", updated.Title)
	assert.True(t, updated.Published, "publication state must survive an update without the field")
}

func TestCatalogDelete_Unknown(t *testing.T) {
	svc := newTestCatalog(newFakeVideoStore())
	err := svc.Delete(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrVideoNotFound)
}
