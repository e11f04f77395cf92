package domain

import "time"

// RangesOverlap reports whether the half-open intervals [aFrom, aUntil) and
// [bFrom, bUntil) intersect. Touching endpoints do not overlap, so a booking
// ending on a day and one starting the same day can coexist.
func RangesOverlap(aFrom, aUntil, bFrom, bUntil time.Time) bool {
	return aFrom.Before(bUntil) && bFrom.Before(aUntil)
}

// DaysBetween counts whole days from from to until at date-only granularity.
// A window inside a single calendar day still counts as one day when it has
// any duration; only from == until yields zero.
func DaysBetween(from, until time.Time) int {
	if !until.After(from) {
		return 0
	}
	f := truncateToDate(from)
	u := truncateToDate(until)
	days := int(u.Sub(f).Hours() / 24)
	if days == 0 {
		return 1
	}
	return days
}

func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
