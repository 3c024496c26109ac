package reports_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitorstats/internal/reports"
	"visitorstats/internal/testsupport"
	"visitorstats/internal/timeframe"
	"visitorstats/internal/visits"
)

var baseTime = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func fullDay(day time.Time) timeframe.Range {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24*time.Hour - time.Second)
	return timeframe.Range{From: &from, To: &to}
}

func TestBuildDashboard(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()

	testsupport.CreateTestVisit(t, db, "session-1", "/home", baseTime, func(v *visits.Visit) {
		v.IsUniqueVisitor = true
	})
	testsupport.CreateTestVisit(t, db, "session-1", "/pricing", baseTime.Add(5*time.Minute))
	testsupport.CreateTestVisit(t, db, "session-2", "/home", baseTime.Add(10*time.Minute), func(v *visits.Visit) {
		v.Browser = "Firefox"
		v.DeviceType = "Mobile"
		v.Country = "ES"
		v.Referrer = "https://duckduckgo.com/"
		v.IsUniqueVisitor = true
	})

	data, err := reports.BuildDashboard(context.Background(), db, logger, fullDay(baseTime))
	require.NoError(t, err)

	assert.Equal(t, int64(3), data.Overview.TotalVisits)
	assert.Equal(t, int64(2), data.Overview.UniqueVisitors)
	assert.Equal(t, int64(3), data.Overview.PageViews)
	// One of two sessions bounced.
	assert.Equal(t, "50.0%", data.Overview.BounceRate)

	require.Len(t, data.VisitsOverTime, 1)
	assert.Equal(t, "2024-03-15", data.VisitsOverTime[0].Date)
	assert.Equal(t, 3, data.VisitsOverTime[0].Count)

	require.Len(t, data.Browsers, 2)
	assert.Equal(t, "Chrome", data.Browsers[0].Name)
	require.Len(t, data.Devices, 2)
	assert.Equal(t, "Desktop", data.Devices[0].Name)

	// Leftover ISO codes come back as country names.
	require.Len(t, data.Countries, 2)
	assert.Equal(t, "Germany", data.Countries[0].Name)
	assert.Equal(t, "Spain", data.Countries[1].Name)

	require.Len(t, data.TopPages, 2)
	assert.Equal(t, "/home", data.TopPages[0].PageURL)
	assert.Equal(t, int64(2), data.TopPages[0].PageViews)
	assert.Equal(t, int64(2), data.TopPages[0].UniqueVisitors)
	require.Len(t, data.Referrers, 1)
	assert.Equal(t, "https://duckduckgo.com/", data.Referrers[0].Name)

	require.Len(t, data.RecentVisitors, 3)
	assert.Equal(t, "/home", data.RecentVisitors[0].PageURL)
	assert.True(t, data.RecentVisitors[0].IsUnique)
}

func TestBuildDashboardEmptyRange(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	data, err := reports.BuildDashboard(context.Background(), db, testsupport.GetLogger(), fullDay(baseTime))
	require.NoError(t, err)

	assert.Equal(t, int64(0), data.Overview.TotalVisits)
	assert.Equal(t, "0.0%", data.Overview.BounceRate)
	assert.Empty(t, data.VisitsOverTime)
	assert.Empty(t, data.Browsers)
	assert.Empty(t, data.RecentVisitors)
}

func TestCSVFilename(t *testing.T) {
	now := time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, "visitor-stats-2024-03-15.csv", reports.CSVFilename(now))
}

func TestWriteCSV(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	testsupport.CreateTestVisit(t, db, "session-1", "https://example.com/home", baseTime, func(v *visits.Visit) {
		v.City = "Berlin"
		v.IsUniqueVisitor = true
	})
	testsupport.CreateTestVisit(t, db, "session-2", "https://example.com/pricing", baseTime.Add(time.Hour), func(v *visits.Visit) {
		v.Referrer = "https://duckduckgo.com/"
	})

	var buf bytes.Buffer
	require.NoError(t, reports.WriteCSV(&buf, db, timeframe.Range{}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"Timestamp", "Page URL", "Referrer", "Country", "City", "Browser", "Device Type", "Unique Visitor"}, records[0])

	// Newest first.
	assert.Equal(t, "2024-03-15 11:00:00", records[1][0])
	assert.Equal(t, "https://example.com/pricing", records[1][1])
	assert.Equal(t, "https://duckduckgo.com/", records[1][2])
	assert.Equal(t, "No", records[1][7])

	assert.Equal(t, "2024-03-15 10:00:00", records[2][0])
	assert.Equal(t, "Berlin", records[2][4])
	assert.Equal(t, "Yes", records[2][7])
}

func TestWriteCSVEmpty(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	var buf bytes.Buffer
	require.NoError(t, reports.WriteCSV(&buf, db, timeframe.Range{}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}
