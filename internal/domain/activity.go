package domain

import "time"

// ActivityDay counts sign-ins recorded on one calendar day (UTC).
type ActivityDay struct {
	Day   time.Time
	Count int64
}

// ActivitySeries returns days consecutive entries ending on the day of now,
// filled from counts and zero elsewhere.
func ActivitySeries(now time.Time, days int, counts []ActivityDay) []ActivityDay {
	byDay := make(map[string]int64, len(counts))
	for _, c := range counts {
		byDay[c.Day.UTC().Format(time.DateOnly)] += c.Count
	}

	today := now.UTC().Truncate(24 * time.Hour)
	series := make([]ActivityDay, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		series = append(series, ActivityDay{Day: day, Count: byDay[day.Format(time.DateOnly)]})
	}
	return series
}
