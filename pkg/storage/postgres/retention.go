package postgres

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AlertPruner deletes alert rows older than a cutoff.
type AlertPruner interface {
	DeleteAlertsBefore(ctx context.Context, before time.Time) (int64, error)
}

// RunRetention deletes alerts older than maxAge once at startup and then every
// interval until ctx is done. Failed deletes are logged and retried next round.
func RunRetention(ctx context.Context, store AlertPruner, maxAge, interval time.Duration, logger *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		pruneOnce(ctx, store, maxAge, logger)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func pruneOnce(ctx context.Context, store AlertPruner, maxAge time.Duration, logger *zap.Logger) {
	cutoff := time.Now().UTC().Add(-maxAge)

	deleteCtx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	n, err := store.DeleteAlertsBefore(deleteCtx, cutoff)
	if err != nil {
		logger.Warn("alert retention failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("pruned old alerts", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
}
