package model

import "time"

// Period is a half-open time window [Start, Next).
type Period struct {
	Start time.Time
	Next  time.Time
}

// End returns the last instant of the period at millisecond precision
// (e.g. the last day of the month at 23:59:59.999).
func (p Period) End() time.Time {
	return p.Next.Add(-time.Millisecond)
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.Next)
}

// MonthPeriod returns the UTC calendar month containing t.
func MonthPeriod(t time.Time) Period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, Next: start.AddDate(0, 1, 0)}
}

// WeekPeriod returns the UTC ISO week (Monday start) containing t.
func WeekPeriod(t time.Time) Period {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7 // days since Monday
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	start := day.AddDate(0, 0, -offset)
	return Period{Start: start, Next: start.AddDate(0, 0, 7)}
}

// CurrentPeriod returns the period of type t containing asOf.
// Global and Regional have no period boundary.
func CurrentPeriod(t LeaderboardType, asOf time.Time) (Period, bool) {
	switch t {
	case Monthly:
		return MonthPeriod(asOf), true
	case Weekly:
		return WeekPeriod(asOf), true
	}
	return Period{}, false
}

// PreviousPeriod returns the last closed period of type t before asOf.
func PreviousPeriod(t LeaderboardType, asOf time.Time) (Period, bool) {
	cur, ok := CurrentPeriod(t, asOf)
	if !ok {
		return Period{}, false
	}
	return CurrentPeriod(t, cur.Start.Add(-time.Nanosecond))
}
