package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitorstats/internal/analytics"
	"visitorstats/internal/behavior"
	"visitorstats/internal/testsupport"
	"visitorstats/internal/timeframe"
	"visitorstats/internal/visits"
)

var baseTime = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func rangeAround(from, to time.Time) timeframe.Range {
	return timeframe.Range{From: &from, To: &to}
}

func dayRange(day time.Time) timeframe.Range {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24*time.Hour - time.Second)
	return rangeAround(from, to)
}

func TestGetVisitStats(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	// Two sessions, one of them with two page views.
	testsupport.CreateTestVisit(t, db, "session-1", "/home", baseTime)
	testsupport.CreateTestVisit(t, db, "session-1", "/pricing", baseTime.Add(5*time.Minute))
	testsupport.CreateTestVisit(t, db, "session-2", "/home", baseTime.Add(10*time.Minute))

	stats, err := analytics.GetVisitStats(db, dayRange(baseTime))
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalVisits)
	assert.Equal(t, int64(2), stats.UniqueVisitors)
	assert.Equal(t, int64(2), stats.UniqueIPs)
}

func TestGetVisitStatsRangeScoping(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	testsupport.CreateTestVisit(t, db, "session-1", "/home", baseTime)
	testsupport.CreateTestVisit(t, db, "session-2", "/home", baseTime.AddDate(0, 0, -10))

	stats, err := analytics.GetVisitStats(db, dayRange(baseTime))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalVisits)

	stats, err = analytics.GetVisitStats(db, timeframe.Range{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalVisits)
}

func TestGetBounceRate(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	t.Run("no visits yields zero", func(t *testing.T) {
		rate, err := analytics.GetBounceRate(db, timeframe.Range{})
		require.NoError(t, err)
		assert.Equal(t, 0.0, rate)
	})

	t.Run("single-view sessions count as bounces", func(t *testing.T) {
		testsupport.CreateTestVisit(t, db, "session-1", "/home", baseTime)
		testsupport.CreateTestVisit(t, db, "session-1", "/pricing", baseTime.Add(time.Minute))
		testsupport.CreateTestVisit(t, db, "session-2", "/home", baseTime)

		rate, err := analytics.GetBounceRate(db, timeframe.Range{})
		require.NoError(t, err)
		assert.InDelta(t, 50.0, rate, 0.001)
	})
}

func TestBreakdowns(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	testsupport.CreateTestVisit(t, db, "s1", "/home", baseTime)
	testsupport.CreateTestVisit(t, db, "s2", "/home", baseTime, func(v *visits.Visit) {
		v.Browser = "Firefox"
		v.DeviceType = "Mobile"
		v.Country = "Spain"
		v.Referrer = "https://duckduckgo.com/"
	})
	testsupport.CreateTestVisit(t, db, "s3", "/pricing", baseTime, func(v *visits.Visit) {
		v.Referrer = "https://duckduckgo.com/"
	})
	testsupport.CreateTestVisit(t, db, "s4", "/about", baseTime, func(v *visits.Visit) {
		v.Referrer = "https://news.ycombinator.com/"
	})

	params := analytics.QueryParams{TimeFrame: dayRange(baseTime)}

	t.Run("top pages", func(t *testing.T) {
		pages, err := analytics.GetTopPages(db, params)
		require.NoError(t, err)
		require.Len(t, pages, 3)
		assert.Equal(t, "/home", pages[0].PageURL)
		assert.Equal(t, int64(2), pages[0].PageViews)
		assert.Equal(t, int64(2), pages[0].UniqueVisitors)
		// Equal counts fall back to URL order.
		assert.Equal(t, "/about", pages[1].PageURL)
		assert.Equal(t, "/pricing", pages[2].PageURL)
	})

	t.Run("top pages limit", func(t *testing.T) {
		pages, err := analytics.GetTopPages(db, analytics.QueryParams{TimeFrame: dayRange(baseTime), Limit: 1})
		require.NoError(t, err)
		require.Len(t, pages, 1)
		assert.Equal(t, "/home", pages[0].PageURL)
	})

	t.Run("referrers exclude direct visits", func(t *testing.T) {
		refs, err := analytics.GetReferrerStats(db, params)
		require.NoError(t, err)
		require.Len(t, refs, 2)
		assert.Equal(t, "https://duckduckgo.com/", refs[0].Name)
		assert.Equal(t, int64(2), refs[0].Count)
	})

	t.Run("browsers", func(t *testing.T) {
		browsers, err := analytics.GetBrowserStats(db, params)
		require.NoError(t, err)
		require.Len(t, browsers, 2)
		assert.Equal(t, "Chrome", browsers[0].Name)
		assert.Equal(t, int64(3), browsers[0].Count)
		assert.Equal(t, "Firefox", browsers[1].Name)
	})

	t.Run("devices", func(t *testing.T) {
		devices, err := analytics.GetDeviceStats(db, params)
		require.NoError(t, err)
		require.Len(t, devices, 2)
		assert.Equal(t, "Desktop", devices[0].Name)
	})

	t.Run("countries", func(t *testing.T) {
		countries, err := analytics.GetGeoStats(db, params)
		require.NoError(t, err)
		require.Len(t, countries, 2)
		assert.Equal(t, "Germany", countries[0].Name)
		assert.Equal(t, "Spain", countries[1].Name)
	})

	t.Run("empty range yields empty slices", func(t *testing.T) {
		empty := dayRange(baseTime.AddDate(0, 0, 30))
		pages, err := analytics.GetTopPages(db, analytics.QueryParams{TimeFrame: empty})
		require.NoError(t, err)
		assert.Empty(t, pages)
		assert.NotNil(t, pages)

		browsers, err := analytics.GetBrowserStats(db, analytics.QueryParams{TimeFrame: empty})
		require.NoError(t, err)
		assert.Empty(t, browsers)
		assert.NotNil(t, browsers)
	})
}

func TestGetVisitsOverTime(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	testsupport.CreateTestVisit(t, db, "s1", "/home", baseTime)
	testsupport.CreateTestVisit(t, db, "s2", "/home", baseTime.Add(time.Hour))
	testsupport.CreateTestVisit(t, db, "s3", "/home", baseTime.AddDate(0, 0, 1))

	t.Run("day buckets", func(t *testing.T) {
		stats, err := analytics.GetVisitsOverTime(db, timeframe.Range{}, analytics.BucketDay)
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, "2024-03-15", stats[0].Date)
		assert.Equal(t, 2, stats[0].Count)
		assert.Equal(t, 2, stats[0].UniqueVisitors)
		assert.Equal(t, "2024-03-16", stats[1].Date)
		assert.Equal(t, 1, stats[1].Count)
	})

	t.Run("hour buckets", func(t *testing.T) {
		stats, err := analytics.GetVisitsOverTime(db, timeframe.Range{}, analytics.BucketHour)
		require.NoError(t, err)
		require.Len(t, stats, 3)
		assert.Equal(t, "2024-03-15 10:00", stats[0].Date)
	})

	t.Run("month buckets", func(t *testing.T) {
		stats, err := analytics.GetVisitsOverTime(db, timeframe.Range{}, analytics.BucketMonth)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, "2024-03", stats[0].Date)
		assert.Equal(t, 3, stats[0].Count)
	})
}

func TestGetRecentVisitors(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	testsupport.CreateTestVisit(t, db, "s1", "/oldest", baseTime)
	testsupport.CreateTestVisit(t, db, "s2", "/middle", baseTime.Add(time.Hour))
	testsupport.CreateTestVisit(t, db, "s3", "/newest", baseTime.Add(2*time.Hour))

	rows, err := analytics.GetRecentVisitors(db, analytics.QueryParams{TimeFrame: timeframe.Range{}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "/newest", rows[0].PageURL)
	assert.Equal(t, "/middle", rows[1].PageURL)
}

func TestCleanOldData(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	now := time.Now().UTC()

	testsupport.CreateTestVisit(t, db, "old", "/home", now.AddDate(0, 0, -40))
	testsupport.CreateTestVisit(t, db, "recent", "/home", now.AddDate(0, 0, -1))
	testsupport.CreateTestBehavior(t, db, "old", "/home", 30, now.AddDate(0, 0, -40))

	deleted, err := analytics.CleanOldData(db, logger, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var visitCount, behaviorCount int64
	require.NoError(t, db.Model(&visits.Visit{}).Count(&visitCount).Error)
	require.NoError(t, db.Model(&behavior.Behavior{}).Count(&behaviorCount).Error)
	assert.Equal(t, int64(1), visitCount)
	assert.Equal(t, int64(0), behaviorCount)
}

func TestResetAll(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()

	testsupport.CreateTestVisit(t, db, "s1", "/home", baseTime)
	testsupport.CreateTestBehavior(t, db, "s1", "/home", 30, baseTime)

	require.NoError(t, analytics.ResetAll(db, logger))

	var visitCount, behaviorCount int64
	require.NoError(t, db.Model(&visits.Visit{}).Count(&visitCount).Error)
	require.NoError(t, db.Model(&behavior.Behavior{}).Count(&behaviorCount).Error)
	assert.Equal(t, int64(0), visitCount)
	assert.Equal(t, int64(0), behaviorCount)
}
