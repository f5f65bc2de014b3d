package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper drops entries idle for longer than idle and reports how many went.
// Browser contexts and rate limiter visitors are both swept this way.
type Sweeper interface {
	Sweep(idle time.Duration) int
}

// RunSweeper sweeps every interval until ctx is cancelled.
func RunSweeper(ctx context.Context, name string, sweeper Sweeper, interval, idle time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := sweeper.Sweep(idle); removed > 0 {
				logger.Info("idle entries removed", zap.String("sweeper", name), zap.Int("count", removed))
			}
		}
	}
}
