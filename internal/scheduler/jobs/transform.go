package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
	"github.com/pearsonlabs/factorpipe/internal/pipeline"
	"github.com/pearsonlabs/factorpipe/pkg/config"
	"github.com/pearsonlabs/factorpipe/pkg/logger"
	"github.com/pearsonlabs/factorpipe/pkg/redis"
)

// TransformJob runs the factor transform on a schedule. A Redis lock keeps
// concurrent deployments from running the same transform twice; when Redis
// is disabled the lock is a no-op and the job always runs.
type TransformJob struct {
	pipeline *pipeline.Pipeline
	cfg      *config.Config
	redis    *redis.Client
	logger   *logger.Logger
}

// NewTransformJob creates a new scheduled transform job
func NewTransformJob(p *pipeline.Pipeline, cfg *config.Config, rc *redis.Client, log *logger.Logger) *TransformJob {
	return &TransformJob{
		pipeline: p,
		cfg:      cfg,
		redis:    rc,
		logger:   log,
	}
}

// Name returns the job name
func (j *TransformJob) Name() string {
	return "factor_transform"
}

// Schedule returns the cron schedule from configuration
func (j *TransformJob) Schedule() string {
	return j.cfg.Pipeline.ScheduleSpec
}

// Run executes one transform run for today
func (j *TransformJob) Run(ctx context.Context) error {
	rc := contracts.NewRunContext(
		time.Now().UTC().Truncate(24*time.Hour),
		j.cfg.Pipeline.Frequency,
		j.cfg.Pipeline.BackfillYears,
		nil,
	)

	lock := redis.NewRunLock(j.redis, j.Name(), rc.RunID)
	acquired, err := lock.Acquire(ctx, j.cfg.Pipeline.ScheduleLockTTL)
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		j.logger.WithField("job", j.Name()).Info("Run lock held elsewhere, skipping")
		return nil
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			j.logger.WithError(err).Warn("Failed to release run lock")
		}
	}()

	j.logger.WithFields(map[string]interface{}{
		"run_id":   rc.RunID,
		"run_date": rc.RunDate.Format("2006-01-02"),
	}).Info("Starting scheduled factor transform")

	outcome, err := j.pipeline.Execute(ctx, rc)
	if err != nil {
		return fmt.Errorf("factor transform: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":       rc.RunID,
		"rows_written": outcome.RowsWritten,
		"capped":       outcome.Capped,
	}).Info("Scheduled factor transform completed")

	return nil
}
