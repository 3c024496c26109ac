// Package timeframe resolves report time-range selectors into concrete
// date bounds.
package timeframe

import (
	"fmt"
	"time"
)

// Supported range labels.
const (
	RangeToday      = "today"
	RangeLast7Days  = "last_7_days"
	RangeLast30Days = "last_30_days"
	RangeLast90Days = "last_90_days"
	RangeAllTime    = "all_time"
	RangeCustom     = "custom"
)

// DateLayout is the format accepted for custom range bounds.
const DateLayout = "2006-01-02"

// Range holds inclusive report bounds. A nil side is unbounded.
type Range struct {
	From *time.Time
	To   *time.Time
}

// DateStat is one bucket of a visits-over-time series.
type DateStat struct {
	Date           string `json:"date"`
	Count          int    `json:"count"`
	UniqueVisitors int    `json:"unique_visitors"`
}

// Resolve computes the concrete bounds for a range label at the given
// reference time. Custom ranges take explicit start/end dates in
// DateLayout; a missing side stays unbounded, a malformed one is an error.
func Resolve(label, startDate, endDate string, now time.Time) (Range, error) {
	switch label {
	case RangeToday, "":
		return boundedDays(now, 0), nil
	case RangeLast7Days:
		return boundedDays(now, 7), nil
	case RangeLast30Days:
		return boundedDays(now, 30), nil
	case RangeLast90Days:
		return boundedDays(now, 90), nil
	case RangeAllTime:
		return Range{}, nil
	case RangeCustom:
		return resolveCustom(startDate, endDate, now)
	default:
		return Range{}, fmt.Errorf("unknown time range: %s", label)
	}
}

// boundedDays returns [midnight daysBack days ago, 23:59:59 today].
func boundedDays(now time.Time, daysBack int) Range {
	from := startOfDay(now.AddDate(0, 0, -daysBack))
	to := endOfDay(now)
	return Range{From: &from, To: &to}
}

func resolveCustom(startDate, endDate string, now time.Time) (Range, error) {
	var rng Range

	if startDate != "" {
		parsed, err := time.ParseInLocation(DateLayout, startDate, now.Location())
		if err != nil {
			return Range{}, fmt.Errorf("invalid start date %q: %w", startDate, err)
		}
		from := startOfDay(parsed)
		rng.From = &from
	}

	if endDate != "" {
		parsed, err := time.ParseInLocation(DateLayout, endDate, now.Location())
		if err != nil {
			return Range{}, fmt.Errorf("invalid end date %q: %w", endDate, err)
		}
		to := endOfDay(parsed)
		rng.To = &to
	}

	if rng.From != nil && rng.To != nil && rng.From.After(*rng.To) {
		return Range{}, fmt.Errorf("start date %s is after end date %s", startDate, endDate)
	}

	return rng, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
