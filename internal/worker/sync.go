package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/medprep-backend/internal/config"
	"github.com/medprep-backend/internal/domain"
	"github.com/medprep-backend/internal/postgres"
	"github.com/medprep-backend/internal/redis"
)

// SyncWorker reconciles the Redis rank cache against the XP totals stored
// in PostgreSQL. Postgres is the source of truth; Redis only serves rank
// lookups and can be rebuilt from scratch at any time.
type SyncWorker struct {
	cache    *redis.Cache
	postgres *postgres.Repository
	config   *config.SyncConfig
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	cache *redis.Cache,
	pg *postgres.Repository,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		cache:    cache,
		postgres: pg,
		config:   cfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background sync process
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sync worker stopped")
	return nil
}

// run is the main worker loop
func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.SyncFromDatabase(ctx); err != nil {
				w.logger.Error("sync cycle failed", "error", err)
			}
		}
	}
}

// SyncFromDatabase rebuilds the Redis rank cache from the stored XP totals.
// Also used at startup so ranks survive a Redis flush.
func (w *SyncWorker) SyncFromDatabase(ctx context.Context) error {
	startTime := time.Now()

	batchSize := w.config.BatchSize
	if batchSize == 0 {
		batchSize = 1000
	}

	synced := 0
	err := w.postgres.AllUserStats(ctx, batchSize, func(stats []domain.UserStats) error {
		totals := make(map[string]int64, len(stats))
		for _, s := range stats {
			totals[s.UserID] = s.TotalXP
		}
		if err := w.cache.BatchSetXP(ctx, totals); err != nil {
			return err
		}
		synced += len(stats)
		return nil
	})
	if err != nil {
		return err
	}

	w.logger.Info("sync cycle completed",
		"duration", time.Since(startTime),
		"users", synced,
	)
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single sync cycle (useful for manual triggers)
func (w *SyncWorker) RunOnce(ctx context.Context) error {
	return w.SyncFromDatabase(ctx)
}
