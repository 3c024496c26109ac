package jobs

import (
	"log/slog"

	"visitorstats/internal/analytics"
	"visitorstats/internal/database"
	"visitorstats/internal/settings"
)

// CleanupJob enforces the retention policy on recorded data.
type CleanupJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
}

func NewCleanupJob(dbManager *database.DBManager, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		dbManager: dbManager,
		logger:    logger,
	}
}

// Run deletes visits and behavior rows older than the configured retention.
// A disabled auto_cleanup setting turns the run into a no-op.
func (j *CleanupJob) Run() error {
	db := j.dbManager.GetConnection()

	cfg, err := settings.Load(db)
	if err != nil {
		j.logger.Error("Cleanup: failed to load settings", slog.Any("error", err))
		return err
	}
	if !cfg.AutoCleanup {
		j.logger.Debug("Cleanup disabled, skipping run")
		return nil
	}

	j.logger.Info("Starting retention cleanup",
		slog.Int("retention_days", cfg.DataRetentionDays))

	deleted, err := analytics.CleanOldData(db, j.logger, cfg.DataRetentionDays)
	if err != nil {
		j.logger.Error("Retention cleanup failed",
			slog.Any("error", err),
			slog.Int64("deleted_so_far", deleted))
		return err
	}

	j.logger.Info("Retention cleanup completed", slog.Int64("deleted_count", deleted))
	return nil
}
