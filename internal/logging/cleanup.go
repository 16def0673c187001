package logging

import (
	"context"
	"log/slog"
	"time"
)

// Pruner deletes log records older than a cutoff.
type Pruner interface {
	PruneLogs(ctx context.Context, cutoff time.Time) (int64, error)
}

// Prune deletes sync logs older than retention once.
func Prune(ctx context.Context, p Pruner, retention time.Duration) {
	if retention <= 0 {
		return
	}
	deleted, err := p.PruneLogs(ctx, time.Now().Add(-retention))
	if err != nil {
		slog.Error("log cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("log cleanup completed", "deleted", deleted)
	}
}

// StartCleanup prunes once a day until done is closed.
func StartCleanup(p Pruner, retention time.Duration, done chan struct{}) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				Prune(context.Background(), p, retention)
			case <-done:
				return
			}
		}
	}()
}
