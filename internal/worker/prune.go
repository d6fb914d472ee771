package worker

import (
	"context"
	"log/slog"
	"time"
)

// ChatPruner removes chat messages older than the retention window.
type ChatPruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// PruneWorker enforces chat retention in the background.
type PruneWorker struct {
	chat     ChatPruner
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewPruneWorker creates a new prune worker
func NewPruneWorker(chat ChatPruner, interval time.Duration, logger *slog.Logger) *PruneWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &PruneWorker{
		chat:     chat,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background prune loop
func (w *PruneWorker) Start(ctx context.Context) {
	w.logger.Info("prune worker started", "interval", w.interval)

	go func() {
		defer close(w.doneCh)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				removed, err := w.chat.Prune(ctx, 0)
				if err != nil {
					w.logger.Error("chat prune failed", "error", err)
					continue
				}
				if removed > 0 {
					w.logger.Info("pruned chat messages", "removed", removed)
				}
			}
		}
	}()
}

// Stop stops the prune loop
func (w *PruneWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.logger.Info("prune worker stopped")
}
