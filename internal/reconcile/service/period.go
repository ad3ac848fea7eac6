package service

import "time"

// periodMonths returns the UTC month starts overlapped by [start, end).
// Billing periods may span a month boundary, so callers get a list.
func periodMonths(start, end time.Time) []time.Time {
	start = start.UTC()
	end = end.UTC()

	month := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	months := []time.Time{month}
	for {
		month = month.AddDate(0, 1, 0)
		if !month.Before(end) {
			return months
		}
		months = append(months, month)
	}
}
