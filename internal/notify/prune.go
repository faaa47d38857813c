package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/campuslink/campuslink/internal/shared"
	"github.com/campuslink/campuslink/internal/store"
)

const pruneInterval = time.Hour

// StartPruneWorker runs a background goroutine that periodically deletes
// read notifications older than the retention window.
func StartPruneWorker(ctx context.Context, repo store.Repository, retention time.Duration) {
	ticker := time.NewTicker(pruneInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Notification prune worker started", "interval", pruneInterval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				pruneOnce(ctx, repo, retention)
			case <-ctx.Done():
				slog.Info("Notification prune worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// pruneOnce deletes expired read notifications, retrying with exponential
// backoff when the database is briefly locked.
func pruneOnce(ctx context.Context, repo store.Repository, retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		deleted, err := repo.PruneReadNotifications(ctx, cutoff)
		if err == nil {
			if deleted > 0 {
				slog.Info("Pruned read notifications", "count", deleted, "cutoff", cutoff)
			}
			return
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("Prune hit busy database, retrying", "attempt", i+1, "delay", delay)
			time.Sleep(delay)
			continue
		}

		slog.Error("Failed to prune notifications", "error", err)
		return
	}
}
