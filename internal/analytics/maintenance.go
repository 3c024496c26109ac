package analytics

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"visitorstats/internal/behavior"
	"visitorstats/internal/visits"
)

// CleanOldData removes visits and behavior rows older than retentionDays.
// Deletes run in batches to avoid holding the write lock for long; the job
// is idempotent and safe alongside live traffic.
func CleanOldData(db *gorm.DB, logger *slog.Logger, retentionDays int) (int64, error) {
	cutoffDate := time.Now().UTC().AddDate(0, 0, -retentionDays)

	deletedVisits, err := batchDelete(db, &visits.Visit{}, cutoffDate)
	if err != nil {
		return deletedVisits, fmt.Errorf("failed to delete old visits: %w", err)
	}

	deletedBehavior, err := batchDelete(db, &behavior.Behavior{}, cutoffDate)
	if err != nil {
		return deletedVisits + deletedBehavior, fmt.Errorf("failed to delete old behavior rows: %w", err)
	}

	total := deletedVisits + deletedBehavior
	if total > 0 {
		logger.Info("Cleaned up old analytics data",
			slog.Int64("deleted_visits", deletedVisits),
			slog.Int64("deleted_behavior", deletedBehavior),
			slog.Int("retention_days", retentionDays))
	}
	return total, nil
}

func batchDelete(db *gorm.DB, model interface{}, cutoffDate time.Time) (int64, error) {
	batchSize := 1000
	totalDeleted := int64(0)

	for {
		result := db.Where("created_at < ?", cutoffDate).
			Limit(batchSize).
			Delete(model)
		if result.Error != nil {
			return totalDeleted, result.Error
		}

		totalDeleted += result.RowsAffected
		if result.RowsAffected < int64(batchSize) {
			break
		}

		// Small delay between batches to prevent database lock contention
		time.Sleep(100 * time.Millisecond)
	}

	return totalDeleted, nil
}

// ResetAll deletes every visit and behavior row. Settings are untouched.
func ResetAll(db *gorm.DB, logger *slog.Logger) error {
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&visits.Visit{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&behavior.Behavior{}).Error; err != nil {
			return err
		}
		tx.Exec("DELETE FROM sqlite_sequence WHERE name IN ('visits', 'behaviors')")
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reset analytics data: %w", err)
	}

	logger.Info("All analytics data reset")
	return nil
}
