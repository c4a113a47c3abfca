package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// pruneInterval matches the teacher's internal/message_processor poll
// cadence idiom: a single ticker driving a background sweep until ctx ends.
const pruneInterval = 5 * time.Minute

// RunPruner sweeps stale limiter state on pruneInterval until ctx is
// cancelled. Grounded on the teacher's Processor.Run ticker+select loop.
func RunPruner(ctx context.Context, limiter *Limiter, logger *zap.Logger) {
	logger.Info("rate limit pruner started")

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("rate limit pruner stopped")
			return
		case <-ticker.C:
			limiter.prune(time.Now())
		}
	}
}
