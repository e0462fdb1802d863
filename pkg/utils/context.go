package utils

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Wait blocks for d or until ctx is done. It reports whether the full
// duration elapsed.
func Wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// RunEvery calls fn immediately and then once per interval until ctx is
// cancelled. A run that outlasts the interval delays the next one; runs never overlap.
func RunEvery(ctx context.Context, interval time.Duration, logger *zap.Logger, name string, fn func(context.Context)) {
	for ctx.Err() == nil {
		fn(ctx)

		if !Wait(ctx, interval) {
			break
		}
	}

	if logger != nil {
		logger.Info("Stopping loop", zap.String("loop", name))
	}
}
