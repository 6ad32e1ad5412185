package scheduler

import (
	"fmt"
	"time"
)

// Due reports whether the window of task is open at t (UTC).
// Monthly resets run in the first hour of the 1st, weekly resets in the first
// hour of Monday, snapshots every hour.
func Due(task Task, t time.Time) bool {
	t = t.UTC()
	switch task {
	case TaskMonthlyReset:
		return t.Day() == 1 && t.Hour() == 0
	case TaskWeeklyReset:
		return t.Weekday() == time.Monday && t.Hour() == 0
	case TaskHourlySnapshot:
		return true
	}
	return false
}

// WindowKey identifies the window of task containing t; a task fires at most
// once per key.
func WindowKey(task Task, t time.Time) string {
	t = t.UTC()
	switch task {
	case TaskMonthlyReset:
		return t.Format("2006-01")
	case TaskWeeklyReset:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	}
	return t.Format("2006-01-02T15")
}
