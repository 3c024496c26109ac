// Package jobs schedules the recurring background work: a daily retention
// cleanup driven by a cron expression.
package jobs

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"visitorstats/internal/config"
	"visitorstats/internal/database"
)

// Jobs owns the cron scheduler and the job instances.
type Jobs struct {
	logger  *slog.Logger
	cron    *cron.Cron
	cleanup *CleanupJob

	mu           sync.Mutex
	isProcessing bool
}

// NewJobs builds the scheduler and registers the cleanup job on the
// configured cron schedule.
func NewJobs(dbManager *database.DBManager, logger *slog.Logger, cfg *config.Config) (*Jobs, error) {
	j := &Jobs{
		logger:  logger,
		cron:    cron.New(),
		cleanup: NewCleanupJob(dbManager, logger),
	}

	_, err := j.cron.AddFunc(cfg.CleanupSchedule, func() {
		j.executeJobSafely("retention_cleanup", j.cleanup.Run)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule cleanup job: %w", err)
	}

	return j, nil
}

// Start begins running scheduled jobs.
func (j *Jobs) Start() {
	j.cron.Start()
	j.logger.Info("Background jobs started")
}

// Stop halts the scheduler and waits for a running job to finish.
func (j *Jobs) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info("Background jobs stopped")
}

// RunCleanupNow triggers an immediate cleanup, used by the CLI.
func (j *Jobs) RunCleanupNow() error {
	return j.cleanup.Run()
}

// executeJobSafely runs a job only if no other job is currently executing
func (j *Jobs) executeJobSafely(jobName string, jobFunc func() error) {
	j.mu.Lock()
	if j.isProcessing {
		j.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		j.mu.Unlock()
		return
	}
	j.isProcessing = true
	j.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		j.mu.Lock()
		j.isProcessing = false
		j.mu.Unlock()
	}()

	if err := jobFunc(); err != nil {
		j.logger.Error("Background job failed",
			slog.String("job", jobName),
			slog.Any("error", err))
	}
}
