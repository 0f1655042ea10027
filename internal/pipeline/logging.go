package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs each write passing through it at debug
// level, and failures from the rest of the chain at error level.
func Logging[T any](logger *slog.Logger, model string) Middleware[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, wc *Context[T], next Next[T]) error {
		start := time.Now()
		if err := next(ctx, wc); err != nil {
			logger.ErrorContext(ctx, "write failed",
				"model", model,
				"error", err,
			)
			return err
		}
		logger.DebugContext(ctx, "write",
			"model", model,
			"elapsed", time.Since(start),
		)
		return nil
	}
}
