package connector

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Schedule starts a run every interval until ctx is done. A tick that lands
// while a run is still going is skipped.
func Schedule(ctx context.Context, runner *Runner, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("scheduled runs enabled", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := runner.Run(ctx, "schedule"); errors.Is(err, ErrRunning) {
				logger.Info("scheduled run skipped, previous run still in progress")
			}
		}
	}
}
