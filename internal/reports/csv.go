package reports

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"

	"visitorstats/internal/analytics"
	"visitorstats/internal/timeframe"
)

// csvTimestampLayout matches the format shown in the dashboard.
const csvTimestampLayout = "2006-01-02 15:04:05"

// CSVFilename returns the download filename for an export generated now.
func CSVFilename(now time.Time) string {
	return fmt.Sprintf("visitor-stats-%s.csv", now.Format("2006-01-02"))
}

// WriteCSV streams every visit in the range as CSV rows, newest first.
func WriteCSV(w io.Writer, db *gorm.DB, rng timeframe.Range) error {
	rows, err := analytics.GetAllVisits(db, rng)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	header := []string{"Timestamp", "Page URL", "Referrer", "Country", "City", "Browser", "Device Type", "Unique Visitor"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, v := range rows {
		unique := "No"
		if v.IsUniqueVisitor {
			unique = "Yes"
		}
		record := []string{
			v.CreatedAt.Format(csvTimestampLayout),
			v.PageURL,
			v.Referrer,
			v.Country,
			v.City,
			v.Browser,
			v.DeviceType,
			unique,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
