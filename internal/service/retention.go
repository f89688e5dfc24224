package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoPolymarket/apilogs/internal/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Pruner deletes call summaries older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RetentionJob prunes old call summaries on a cron schedule.
type RetentionJob struct {
	store  Pruner
	ttl    time.Duration
	cron   *cron.Cron
	logger *slog.Logger
}

func NewRetentionJob(store Pruner, ttl time.Duration, log *slog.Logger) *RetentionJob {
	if log == nil {
		log = logger.Component("retention")
	}
	return &RetentionJob{
		store:  store,
		ttl:    ttl,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: log,
	}
}

// Start schedules pruning, e.g. "@every 1h" or "0 3 * * *". A zero TTL
// disables the job.
func (j *RetentionJob) Start(schedule string) error {
	if j.ttl <= 0 {
		j.logger.Info("retention disabled")
		return nil
	}
	if _, err := j.cron.AddFunc(schedule, func() {
		_, _ = j.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("retention schedule %q: %w", schedule, err)
	}
	j.cron.Start()
	j.logger.Info("retention scheduled", "schedule", schedule, "ttl", j.ttl.String())
	return nil
}

func (j *RetentionJob) RunOnce(ctx context.Context) (int64, error) {
	n, err := j.store.Prune(ctx, j.ttl)
	if err != nil {
		j.logger.Error("retention prune failed", "error", err)
		return 0, err
	}
	if n > 0 {
		j.logger.Info("pruned call summaries", "count", n)
	}
	return n, nil
}

// Stop waits for a running prune to finish or ctx to expire.
func (j *RetentionJob) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
