package connector

import (
	"strings"
	"time"
)

// ParsePeriod resolves a named time period to a concrete date range relative
// to now. Unknown names default to the last 30 days.
func ParsePeriod(period string, now time.Time) Range {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch normalizePeriod(period) {
	case "last_month":
		firstOfThis := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		end := firstOfThis.AddDate(0, 0, -1)
		start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location())
		return Range{Start: start, End: end}
	case "last_week":
		return Range{Start: today.AddDate(0, 0, -7), End: today}
	case "last_30_days":
		return Range{Start: today.AddDate(0, 0, -30), End: today}
	case "last_90_days":
		return Range{Start: today.AddDate(0, 0, -90), End: today}
	case "year_to_date":
		return Range{Start: time.Date(today.Year(), 1, 1, 0, 0, 0, 0, today.Location()), End: today}
	case "q1":
		return quarter(today.Year(), 1, today.Location())
	case "q2":
		return quarter(today.Year(), 2, today.Location())
	case "q3":
		return quarter(today.Year(), 3, today.Location())
	case "q4":
		return quarter(today.Year(), 4, today.Location())
	default:
		return Range{Start: today.AddDate(0, 0, -30), End: today}
	}
}

// ComparisonRange resolves a comparison period. "previous_period" (and the
// phrasings models produce for it) means the range of the same length
// immediately before primary; named periods resolve like ParsePeriod.
func ComparisonRange(period string, primary Range, now time.Time) Range {
	switch normalizePeriod(period) {
	case "previous_period", "previous", "prior_period", "previous_week":
		length := primary.End.Sub(primary.Start)
		end := primary.Start.AddDate(0, 0, -1)
		return Range{Start: end.Add(-length), End: end}
	case "previous_month":
		// Align to the calendar month before the primary range.
		firstOfPrimary := time.Date(primary.Start.Year(), primary.Start.Month(), 1, 0, 0, 0, 0, primary.Start.Location())
		end := firstOfPrimary.AddDate(0, 0, -1)
		start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location())
		return Range{Start: start, End: end}
	default:
		return ParsePeriod(period, now)
	}
}

func quarter(year, q int, loc *time.Location) Range {
	startMonth := time.Month((q-1)*3 + 1)
	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 3, -1)
	return Range{Start: start, End: end}
}

func normalizePeriod(period string) string {
	p := strings.ToLower(strings.TrimSpace(period))
	return strings.ReplaceAll(p, " ", "_")
}
