package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/medprep-backend/internal/domain"
)

// VideoStore is the persistence surface for the catalog.
type VideoStore interface {
	CreateVideo(ctx context.Context, v domain.Video) (domain.Video, error)
	UpdateVideo(ctx context.Context, v domain.Video) (domain.Video, error)
	DeleteVideo(ctx context.Context, videoID string) error
	GetVideo(ctx context.Context, videoID string) (domain.Video, error)
	ListVideos(ctx context.Context, publishedOnly bool, category string) ([]domain.Video, error)
}

// CatalogService manages the video catalog. Learners see published items
// only; the admin console sees everything.
type CatalogService struct {
	store  VideoStore
	logger *slog.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store VideoStore, logger *slog.Logger) *CatalogService {
	return &CatalogService{store: store, logger: logger}
}

// List returns catalog items, newest first.
func (s *CatalogService) List(ctx context.Context, category string, includeUnpublished bool) ([]domain.Video, error) {
	videos, err := s.store.ListVideos(ctx, !includeUnpublished, strings.TrimSpace(category))
	if err != nil {
		return nil, err
	}
	if videos == nil {
		videos = []domain.Video{}
	}
	return videos, nil
}

// Get returns one catalog item. Unpublished items are hidden from learners.
func (s *CatalogService) Get(ctx context.Context, videoID string, includeUnpublished bool) (domain.Video, error) {
	v, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		return domain.Video{}, err
	}
	if !v.Published && !includeUnpublished {
		return domain.Video{}, domain.ErrVideoNotFound
	}
	return v, nil
}

// Create adds a new catalog item from the admin console.
func (s *CatalogService) Create(ctx context.Context, req domain.UpsertVideoRequest) (domain.Video, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.PlaybackURL) == "" {
		return domain.Video{}, domain.ErrInvalidRequest
	}

	v := domain.Video{
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		Category:        strings.TrimSpace(req.Category),
		DurationSeconds: req.DurationSeconds,
		PlaybackURL:     strings.TrimSpace(req.PlaybackURL),
		ThumbnailURL:    strings.TrimSpace(req.ThumbnailURL),
	}
	if req.Published != nil {
		v.Published = *req.Published
	}
	return s.store.CreateVideo(ctx, v)
}

// Update replaces a catalog item's fields. A nil Published keeps the current
// publication state.
func (s *CatalogService) Update(ctx context.Context, videoID string, req domain.UpsertVideoRequest) (domain.Video, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.PlaybackURL) == "" {
		return domain.Video{}, domain.ErrInvalidRequest
	}

	existing, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		return domain.Video{}, err
	}

	existing.Title = strings.TrimSpace(req.Title)
	existing.Description = req.Description
	existing.Category = strings.TrimSpace(req.Category)
	existing.DurationSeconds = req.DurationSeconds
	existing.PlaybackURL = strings.TrimSpace(req.PlaybackURL)
	existing.ThumbnailURL = strings.TrimSpace(req.ThumbnailURL)
	if req.Published != nil {
		existing.Published = *req.Published
	}
	return s.store.UpdateVideo(ctx, existing)
}

// Delete removes a catalog item. Watch records for it keep their XP.
func (s *CatalogService) Delete(ctx context.Context, videoID string) error {
	return s.store.DeleteVideo(ctx, videoID)
}
