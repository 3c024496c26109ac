package analytics

import (
	"fmt"

	"gorm.io/gorm"

	"visitorstats/internal/timeframe"
	"visitorstats/internal/visits"
)

// VisitStatsResult holds the overview counters for a time range.
type VisitStatsResult struct {
	TotalVisits    int64 `json:"total_visits"`
	UniqueVisitors int64 `json:"unique_visitors"`
	UniqueIPs      int64 `json:"unique_ips"`
}

// GetVisitStats counts total visits, unique visitors (distinct sessions),
// and distinct IP hashes in the range.
func GetVisitStats(db *gorm.DB, rng timeframe.Range) (VisitStatsResult, error) {
	var result VisitStatsResult

	err := scopeRange(db.Model(&visits.Visit{}), rng).Count(&result.TotalVisits).Error
	if err != nil {
		return result, fmt.Errorf("error counting total visits: %w", err)
	}

	err = scopeRange(db.Model(&visits.Visit{}), rng).
		Distinct("session_id").
		Count(&result.UniqueVisitors).Error
	if err != nil {
		return result, fmt.Errorf("error counting unique visitors: %w", err)
	}

	err = scopeRange(db.Model(&visits.Visit{}), rng).
		Distinct("ip_hash").
		Count(&result.UniqueIPs).Error
	if err != nil {
		return result, fmt.Errorf("error counting unique IPs: %w", err)
	}

	return result, nil
}

// GetBounceRate computes the share of sessions with exactly one page view
// in the range, as a percentage in [0,100].
func GetBounceRate(db *gorm.DB, rng timeframe.Range) (float64, error) {
	cond, args := rangeCondition(rng)

	var result struct {
		BounceRate float64
	}

	query := fmt.Sprintf(`
    WITH session_views AS (
        SELECT session_id, COUNT(*) as view_count
        FROM visits
        WHERE %s
        GROUP BY session_id
    )
    SELECT COALESCE(
        CAST(SUM(CASE WHEN view_count = 1 THEN 1 ELSE 0 END) AS FLOAT) * 100.0 /
        NULLIF(CAST(COUNT(*) AS FLOAT), 0), 0) as bounce_rate
    FROM session_views`, cond)

	err := db.Raw(query, args...).Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("error calculating bounce rate: %w", err)
	}

	return result.BounceRate, nil
}
