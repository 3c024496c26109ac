package analytics

import (
	"fmt"

	"gorm.io/gorm"

	"visitorstats/internal/timeframe"
	"visitorstats/internal/visits"
)

// PageStatsResult is one row of the top-pages report.
type PageStatsResult struct {
	PageURL        string `json:"page_url"`
	PageViews      int64  `json:"page_views"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

// GetTopPages fetches the most visited page URLs in the range with their
// view and distinct-session counts.
func GetTopPages(db *gorm.DB, params QueryParams) ([]PageStatsResult, error) {
	cond, args := rangeCondition(params.TimeFrame)

	query := fmt.Sprintf(`
    SELECT page_url, COUNT(*) as page_views, COUNT(DISTINCT session_id) as unique_visitors
    FROM visits
    WHERE %s AND page_url != ''
    GROUP BY page_url
    ORDER BY page_views DESC, page_url ASC`, cond)

	if params.Limit > 0 {
		query += "\n    LIMIT ?"
		args = append(args, params.Limit)
	}

	var results []PageStatsResult
	if err := db.Raw(query, args...).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("error fetching top pages: %w", err)
	}
	if results == nil {
		results = []PageStatsResult{}
	}
	return results, nil
}

// GetReferrerStats fetches the top external referrers in the range.
// Direct visits (empty referrer) are excluded.
func GetReferrerStats(db *gorm.DB, params QueryParams) ([]MetricCountResult, error) {
	return groupedCount(db, params, "referrer", "referrer IS NOT NULL AND referrer != ''")
}

// GetBrowserStats fetches the visit counts per browser family.
func GetBrowserStats(db *gorm.DB, params QueryParams) ([]MetricCountResult, error) {
	return groupedCount(db, params, "browser", "browser IS NOT NULL AND browser != ''")
}

// GetDeviceStats fetches the visit counts per device type.
func GetDeviceStats(db *gorm.DB, params QueryParams) ([]MetricCountResult, error) {
	return groupedCount(db, params, "device_type", "device_type IS NOT NULL AND device_type != ''")
}

// GetGeoStats fetches the visit counts per country.
func GetGeoStats(db *gorm.DB, params QueryParams) ([]MetricCountResult, error) {
	return groupedCount(db, params, "country", "country IS NOT NULL AND country != ''")
}

// groupedCount runs one breakdown query: counts per distinct column value,
// ordered by count descending with the name as a stable tiebreaker.
func groupedCount(db *gorm.DB, params QueryParams, column, filter string) ([]MetricCountResult, error) {
	cond, args := rangeCondition(params.TimeFrame)

	query := fmt.Sprintf(`
    SELECT %s as name, COUNT(*) as count
    FROM visits
    WHERE %s AND %s
    GROUP BY %s
    ORDER BY count DESC, name ASC`, column, cond, filter, column)

	if params.Limit > 0 {
		query += "\n    LIMIT ?"
		args = append(args, params.Limit)
	}

	var results []MetricCountResult
	if err := db.Raw(query, args...).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("error fetching %s breakdown: %w", column, err)
	}
	if results == nil {
		results = []MetricCountResult{}
	}
	return results, nil
}

// Time bucket granularities for GetVisitsOverTime.
const (
	BucketHour  = "hour"
	BucketDay   = "day"
	BucketWeek  = "week"
	BucketMonth = "month"
)

// bucketFormat maps a granularity to its sqlite strftime pattern.
// Unknown values fall back to day buckets.
func bucketFormat(bucket string) string {
	switch bucket {
	case BucketHour:
		return "%Y-%m-%d %H:00"
	case BucketWeek:
		return "%Y-W%W"
	case BucketMonth:
		return "%Y-%m"
	default:
		return "%Y-%m-%d"
	}
}

// GetVisitsOverTime buckets visit counts over the range at the given
// granularity.
func GetVisitsOverTime(db *gorm.DB, rng timeframe.Range, bucket string) ([]timeframe.DateStat, error) {
	cond, args := rangeCondition(rng)

	query := fmt.Sprintf(`
    SELECT strftime('%s', created_at) as date, COUNT(*) as count, COUNT(DISTINCT session_id) as unique_visitors
    FROM visits
    WHERE %s
    GROUP BY date
    ORDER BY date ASC`, bucketFormat(bucket), cond)

	var results []timeframe.DateStat
	if err := db.Raw(query, args...).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("error fetching visits over time: %w", err)
	}
	if results == nil {
		results = []timeframe.DateStat{}
	}
	return results, nil
}

// GetRecentVisitors fetches the most recent visits in the range, newest first.
func GetRecentVisitors(db *gorm.DB, params QueryParams) ([]visits.Visit, error) {
	var rows []visits.Visit
	query := scopeRange(db.Model(&visits.Visit{}), params.TimeFrame).
		Order("created_at DESC, id DESC")
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error fetching recent visitors: %w", err)
	}
	return rows, nil
}

// GetAllVisits fetches every visit in the range, newest first. Used by the
// CSV export, which is intentionally unpaginated.
func GetAllVisits(db *gorm.DB, rng timeframe.Range) ([]visits.Visit, error) {
	var rows []visits.Visit
	err := scopeRange(db.Model(&visits.Visit{}), rng).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching visits for export: %w", err)
	}
	return rows, nil
}
