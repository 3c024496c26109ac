// Package reports assembles the dashboard payload and the CSV export from
// the analytics queries.
package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"visitorstats/internal/analytics"
	"visitorstats/internal/pkg/async"
	"visitorstats/internal/pkg/geo"
	"visitorstats/internal/timeframe"
	"visitorstats/internal/visits"
)

// Result set sizes for the dashboard payload.
const (
	TopPagesLimit       = 10
	TopReferrersLimit   = 10
	RecentVisitorsLimit = 20
)

// Overview holds the headline counters.
type Overview struct {
	TotalVisits    int64  `json:"total_visits"`
	UniqueVisitors int64  `json:"unique_visitors"`
	PageViews      int64  `json:"page_views"`
	BounceRate     string `json:"bounce_rate"`
}

// RecentVisitor is the per-visit view shown in the dashboard's activity list.
type RecentVisitor struct {
	Timestamp  time.Time `json:"timestamp"`
	PageURL    string    `json:"page_url"`
	Referrer   string    `json:"referrer"`
	Country    string    `json:"country"`
	City       string    `json:"city"`
	Browser    string    `json:"browser"`
	DeviceType string    `json:"device_type"`
	IsUnique   bool      `json:"is_unique"`
}

// DashboardData is the full dashboard payload for one time range.
type DashboardData struct {
	Overview       Overview                      `json:"overview"`
	VisitsOverTime []timeframe.DateStat          `json:"visits_over_time"`
	Browsers       []analytics.MetricCountResult `json:"browsers"`
	Devices        []analytics.MetricCountResult `json:"devices"`
	Countries      []analytics.MetricCountResult `json:"countries"`
	TopPages       []analytics.PageStatsResult   `json:"top_pages"`
	Referrers      []analytics.MetricCountResult `json:"referrers"`
	RecentVisitors []RecentVisitor               `json:"recent_visitors"`
}

// Task names used to key the pool results.
const (
	taskVisitStats   = "visit_stats"
	taskBounceRate   = "bounce_rate"
	taskOverTime     = "visits_over_time"
	taskBrowsers     = "browsers"
	taskDevices      = "devices"
	taskCountries    = "countries"
	taskTopPages     = "top_pages"
	taskReferrers    = "referrers"
	taskRecent       = "recent_visitors"
	dashboardWorkers = 4
)

// BuildDashboard runs every aggregate for the range in parallel and
// assembles the payload. A single failed aggregate fails the whole payload.
func BuildDashboard(ctx context.Context, db *gorm.DB, logger *slog.Logger, rng timeframe.Range) (*DashboardData, error) {
	pool := async.NewPool(dashboardWorkers)

	tasks := []async.Task{
		{Name: taskVisitStats, Execute: func() (interface{}, error) {
			return analytics.GetVisitStats(db, rng)
		}},
		{Name: taskBounceRate, Execute: func() (interface{}, error) {
			return analytics.GetBounceRate(db, rng)
		}},
		{Name: taskOverTime, Execute: func() (interface{}, error) {
			return analytics.GetVisitsOverTime(db, rng, analytics.BucketDay)
		}},
		{Name: taskBrowsers, Execute: func() (interface{}, error) {
			return analytics.GetBrowserStats(db, analytics.QueryParams{TimeFrame: rng})
		}},
		{Name: taskDevices, Execute: func() (interface{}, error) {
			return analytics.GetDeviceStats(db, analytics.QueryParams{TimeFrame: rng})
		}},
		{Name: taskCountries, Execute: func() (interface{}, error) {
			return analytics.GetGeoStats(db, analytics.QueryParams{TimeFrame: rng})
		}},
		{Name: taskTopPages, Execute: func() (interface{}, error) {
			return analytics.GetTopPages(db, analytics.QueryParams{TimeFrame: rng, Limit: TopPagesLimit})
		}},
		{Name: taskReferrers, Execute: func() (interface{}, error) {
			return analytics.GetReferrerStats(db, analytics.QueryParams{TimeFrame: rng, Limit: TopReferrersLimit})
		}},
		{Name: taskRecent, Execute: func() (interface{}, error) {
			return analytics.GetRecentVisitors(db, analytics.QueryParams{TimeFrame: rng, Limit: RecentVisitorsLimit})
		}},
	}

	results := pool.Execute(ctx, tasks)
	if err := async.FirstError(results); err != nil {
		logger.Error("Dashboard aggregate failed", slog.Any("error", err))
		return nil, fmt.Errorf("failed to assemble dashboard: %w", err)
	}
	if len(results) != len(tasks) {
		return nil, fmt.Errorf("dashboard assembly incomplete: %d of %d aggregates finished", len(results), len(tasks))
	}

	stats := results[taskVisitStats].Data.(analytics.VisitStatsResult)
	bounceRate := results[taskBounceRate].Data.(float64)

	data := &DashboardData{
		Overview: Overview{
			TotalVisits:    stats.TotalVisits,
			UniqueVisitors: stats.UniqueVisitors,
			PageViews:      stats.TotalVisits,
			BounceRate:     fmt.Sprintf("%.1f%%", bounceRate),
		},
		VisitsOverTime: results[taskOverTime].Data.([]timeframe.DateStat),
		Browsers:       results[taskBrowsers].Data.([]analytics.MetricCountResult),
		Devices:        results[taskDevices].Data.([]analytics.MetricCountResult),
		Countries:      convertCountryStats(results[taskCountries].Data.([]analytics.MetricCountResult)),
		TopPages:       results[taskTopPages].Data.([]analytics.PageStatsResult),
		Referrers:      results[taskReferrers].Data.([]analytics.MetricCountResult),
		RecentVisitors: convertRecentVisitors(results[taskRecent].Data.([]visits.Visit)),
	}

	return data, nil
}

// convertCountryStats maps ISO codes left over from code-reporting providers
// to common country names. Full names and the sentinel labels pass through.
func convertCountryStats(items []analytics.MetricCountResult) []analytics.MetricCountResult {
	result := make([]analytics.MetricCountResult, len(items))
	for i, item := range items {
		name := item.Name
		if len(name) <= 3 && name != geo.LocalCountry {
			name = geo.CountryName(name)
		}
		result[i] = analytics.MetricCountResult{Name: name, Count: item.Count}
	}
	return result
}

func convertRecentVisitors(rows []visits.Visit) []RecentVisitor {
	result := make([]RecentVisitor, len(rows))
	for i, v := range rows {
		result[i] = RecentVisitor{
			Timestamp:  v.CreatedAt,
			PageURL:    v.PageURL,
			Referrer:   v.Referrer,
			Country:    v.Country,
			City:       v.City,
			Browser:    v.Browser,
			DeviceType: v.DeviceType,
			IsUnique:   v.IsUniqueVisitor,
		}
	}
	return result
}
