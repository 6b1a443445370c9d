package queue

import (
	"context"
	"log/slog"
)

// CheckHealth probes the broker for the queue's metadata and reports a
// process exit status: 0 when at least one worker is registered under
// the expected queue name, 1 otherwise. The queue's broker connection
// is always closed, healthy or not.
func CheckHealth(ctx context.Context, q *Queue, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	defer func() {
		if err := q.Close(); err != nil {
			logger.Warn("failed to close broker connection",
				slog.String("error", err.Error()))
		}
	}()

	info, err := q.Info(ctx)
	if err != nil {
		logger.Error("health check failed to reach broker",
			slog.String("error", err.Error()))
		return 1
	}

	if info.Name != q.Name() {
		logger.Error("health check found an unexpected queue",
			slog.String("expected", q.Name()),
			slog.String("actual", info.Name))
		return 1
	}

	if info.Workers == 0 {
		logger.Error("health check found no live workers",
			slog.String("queue", q.Name()))
		return 1
	}

	logger.Info("health check passed",
		slog.String("queue", q.Name()),
		slog.Int("workers", info.Workers))
	return 0
}
