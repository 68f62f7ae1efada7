package migrator

import (
	"context"
	"strings"
	"time"

	"github.com/hookdeck/relaycursor/internal/logging"
	"go.uber.org/zap"
)

// Run applies all pending migrations. Nodes starting together race for the
// migration lock; the losers wait and retry, by which time there is usually
// nothing left to apply.
func Run(ctx context.Context, opts MigrationOpts, logger *logging.Logger) error {
	return run(ctx, opts, logger, 3, 5*time.Second)
}

func run(ctx context.Context, opts MigrationOpts, logger *logging.Logger, maxRetries int, retryDelay time.Duration) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		m, err := New(opts)
		if err != nil {
			return err
		}

		version, applied, err := m.Up(ctx, -1)

		sourceErr, dbErr := m.Close(ctx)
		if sourceErr != nil {
			logger.Error("failed to close migrator source", zap.Error(sourceErr))
		}
		if dbErr != nil {
			logger.Error("failed to close migrator database connection", zap.Error(dbErr))
		}

		if err == nil {
			if applied > 0 {
				logger.Info("migrations applied",
					zap.Int("version", version),
					zap.Int("version_applied", applied))
			} else {
				logger.Info("no migrations applied", zap.Int("version", version))
			}
			return nil
		}

		lastErr = err
		if !isLockRelatedError(err) {
			logger.Error("migration failed", zap.Error(err))
			return err
		}

		if attempt == maxRetries {
			logger.Error("migration failed after retries",
				zap.Int("attempts", maxRetries),
				zap.Error(err))
			break
		}

		logger.Warn("migration lock conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	return lastErr
}

// isLockRelatedError reports golang-migrate lock acquisition failures:
// database.ErrLocked and the postgres advisory lock error.
func isLockRelatedError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, indicator := range []string{"can't acquire lock", "try lock failed"} {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
