package plan

import (
	"context"
	"log/slog"
	"time"
)

const janitorInterval = 5 * time.Minute

// SessionCleaner removes plan conversation checkpoints idle longer than ttl.
type SessionCleaner interface {
	CleanupExpiredPlanSessions(ctx context.Context, ttl time.Duration) (int64, error)
}

// StartJanitor runs a background goroutine that periodically discards
// abandoned plan conversations. A suspended session has no wait timeout of
// its own; this sweep bounds how long its checkpoint survives.
func StartJanitor(ctx context.Context, cleaner SessionCleaner, ttl time.Duration) {
	ticker := time.NewTicker(janitorInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Plan session janitor started", "interval", janitorInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				deleted, err := cleaner.CleanupExpiredPlanSessions(ctx, ttl)
				if err != nil {
					slog.Error("Plan session janitor sweep failed", "error", err)
					continue
				}
				if deleted > 0 {
					slog.Info("Plan session janitor discarded abandoned sessions", "count", deleted)
				}
			case <-ctx.Done():
				slog.Info("Plan session janitor shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
