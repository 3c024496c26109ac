// Package behavior stores lightweight engagement signals reported by the
// tracking client after a page view.
package behavior

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// MinTimeOnPage is the shortest dwell time worth recording, in seconds.
// The tracking client filters below this too; the server re-validates
// rather than trusting the client.
const MinTimeOnPage = 3

// Behavior is one engagement report for a page view.
type Behavior struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	SessionID   string `gorm:"index;size:64;not null"`
	PageURL     string `gorm:"size:2048;not null"`
	TimeOnPage  int    `gorm:"not null"`
	ScrollDepth int    `gorm:"not null"`
	Clicks      int    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"index;not null"`
}

// RecordInput is a client-reported engagement payload.
type RecordInput struct {
	SessionID   string
	PageURL     string
	TimeOnPage  int
	ScrollDepth int
	Clicks      int
}

// Record persists an engagement report. Reports under the minimum dwell
// time are dropped silently; scroll depth is clamped to [0,100] and click
// counts floored at zero.
func Record(db *gorm.DB, logger *slog.Logger, input *RecordInput) (*Behavior, error) {
	if input.SessionID == "" || input.PageURL == "" {
		return nil, fmt.Errorf("behavior report missing session or page URL")
	}
	if input.TimeOnPage < MinTimeOnPage {
		logger.Debug("Dropping behavior report below minimum dwell time",
			slog.Int("time_on_page", input.TimeOnPage))
		return nil, nil
	}

	row := &Behavior{
		SessionID:   input.SessionID,
		PageURL:     input.PageURL,
		TimeOnPage:  input.TimeOnPage,
		ScrollDepth: clamp(input.ScrollDepth, 0, 100),
		Clicks:      max(input.Clicks, 0),
		CreatedAt:   time.Now().UTC(),
	}

	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store behavior report: %w", err)
	}
	return row, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
