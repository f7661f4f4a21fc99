// Package retention purges read notifications older than the configured age
// on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"Livestream/internal/metrics"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"
)

const defaultCron = "0 3 * * *"

// Purger deletes read notifications created before cutoff.
type Purger interface {
	PurgeReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Runner struct {
	purger Purger
	cron   string
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewRunner(purger Purger, cronExpr string, maxAge time.Duration, logger *zap.Logger) (*Runner, error) {
	if cronExpr == "" {
		cronExpr = defaultCron
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid retention cron expression: %s", cronExpr)
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention max age must be positive, got %s", maxAge)
	}
	return &Runner{
		purger: purger,
		cron:   cronExpr,
		maxAge: maxAge,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// RunOnce deletes every read notification older than maxAge.
func (r *Runner) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.maxAge)
	deleted, err := r.purger.PurgeReadBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge read notifications: %w", err)
	}
	metrics.NotificationsPurged.Add(float64(deleted))
	r.logger.Info("Retention run complete",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff))
	return deleted, nil
}

// Start runs the scheduler until the returned cancel func is called or ctx ends.
func (r *Runner) Start(ctx context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	r.logger.Info("Retention scheduler started",
		zap.String("cron", r.cron),
		zap.Duration("maxAge", r.maxAge))
	go r.loop(ctx)
	return cancel
}

func (r *Runner) loop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(r.cron, r.now(), false)
		wait := time.Until(next)
		if err != nil {
			r.logger.Error("Failed to compute next retention tick", zap.String("cron", r.cron), zap.Error(err))
			wait = 30 * time.Second
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("Retention scheduler stopping")
			return
		case <-timer.C:
		}

		if err != nil {
			continue
		}
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("Retention run failed", zap.Error(err))
		}
	}
}
