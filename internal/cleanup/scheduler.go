// Package cleanup runs the periodic retention purge that keeps the
// audit database from growing without bound.
package cleanup

import (
	"context"
	"time"

	"github.com/blanktrace/blanktrace/internal/telemetry"
)

// Purger deletes audit rows older than retentionDays and reports how
// many rows it removed.
type Purger interface {
	CleanupOldData(ctx context.Context, retentionDays uint64) (int64, error)
}

// Scheduler runs Purger.CleanupOldData on a fixed interval until its
// context is canceled.
type Scheduler struct {
	purger        Purger
	interval      time.Duration
	retentionDays uint64
	logger        telemetry.Logger
}

// NewScheduler builds a Scheduler. interval and retentionDays come
// straight from the cleanup section of the configuration.
func NewScheduler(purger Purger, interval time.Duration, retentionDays uint64, logger telemetry.Logger) *Scheduler {
	if logger == nil {
		logger = telemetry.Noop()
	}
	return &Scheduler{
		purger:        purger,
		interval:      interval,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Run blocks, purging at each tick, until ctx is canceled. It does not
// purge immediately on start; the first purge happens after one
// interval has elapsed.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeOnce(ctx)
		}
	}
}

func (s *Scheduler) purgeOnce(ctx context.Context) {
	deleted, err := s.purger.CleanupOldData(ctx, s.retentionDays)
	if err != nil {
		s.logger.Warn("retention purge failed: %v", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("retention purge removed %d rows older than %d days", deleted, s.retentionDays)
	}
}
