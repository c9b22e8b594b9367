package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bitcory/knight/internal/config"
)

// Job names registered by RegisterMaintenance.
const (
	JobQuotaRollover   = "quota-rollover"
	JobFeedRetention   = "feed-retention"
	JobInactiveCleanup = "inactive-cleanup"
)

// Maintainer performs the housekeeping the scheduled jobs trigger.
type Maintainer interface {
	// RolloverQuota discards battle counters from days before now.
	RolloverQuota(ctx context.Context, now time.Time) error
	// PurgeFeedBefore removes feed messages older than cutoff.
	PurgeFeedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// PurgeInactive removes non-admin accounts idle since before cutoff.
	PurgeInactive(ctx context.Context, cutoff time.Time) ([]string, error)
}

// RegisterMaintenance wires the housekeeping jobs described by cfg.
//
// Quota rollover runs at local midnight, feed retention runs every
// cfg.RetentionJobInterval and inactive cleanup runs daily at 04:00 when
// enabled.
func RegisterMaintenance(s *Scheduler, cfg config.MaintenanceConfig, m Maintainer, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	if err := s.Daily(JobQuotaRollover, 0, 0, func(ctx context.Context) error {
		return m.RolloverQuota(ctx, now())
	}); err != nil {
		return err
	}

	if err := s.Every(JobFeedRetention, cfg.RetentionJobInterval, func(ctx context.Context) error {
		n, err := m.PurgeFeedBefore(ctx, now().Add(-cfg.FeedRetention))
		if err != nil {
			return err
		}
		if n > 0 {
			s.logger.Info("feed retention purged messages", zap.Int64("count", n))
		}
		return nil
	}); err != nil {
		return err
	}

	if !cfg.InactiveCleanup {
		return nil
	}
	return s.Daily(JobInactiveCleanup, 4, 0, func(ctx context.Context) error {
		deleted, err := m.PurgeInactive(ctx, now().Add(-cfg.InactiveAfter))
		if err != nil {
			return err
		}
		if len(deleted) > 0 {
			s.logger.Info("inactive accounts removed", zap.Strings("usernames", deleted))
		}
		return nil
	})
}
