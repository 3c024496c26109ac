// Package analytics holds the report queries over recorded visits.
package analytics

import (
	"gorm.io/gorm"

	"visitorstats/internal/timeframe"
)

// MetricCountResult is one row of a grouped breakdown.
type MetricCountResult struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// QueryParams scopes a report query to a time range.
type QueryParams struct {
	TimeFrame timeframe.Range
	Limit     int
}

// scopeRange applies the inclusive time bounds to a visits query.
// A nil side of the range is unbounded.
func scopeRange(query *gorm.DB, rng timeframe.Range) *gorm.DB {
	if rng.From != nil {
		query = query.Where("created_at >= ?", rng.From.UTC())
	}
	if rng.To != nil {
		query = query.Where("created_at <= ?", rng.To.UTC())
	}
	return query
}

// rangeCondition renders the bounds as raw SQL for handwritten queries.
func rangeCondition(rng timeframe.Range) (string, []interface{}) {
	cond := "1=1"
	var args []interface{}
	if rng.From != nil {
		cond += " AND created_at >= ?"
		args = append(args, rng.From.UTC())
	}
	if rng.To != nil {
		cond += " AND created_at <= ?"
		args = append(args, rng.To.UTC())
	}
	return cond, args
}
