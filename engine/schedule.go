package engine

import "time"

// =============================================================================
// RECURRENCE RULE - "every N months, optionally pinned to a day-of-month"
// =============================================================================

const (
	MinIntervalMonths = 1
	MaxIntervalMonths = 24
)

// Rule expresses the recurrence schedule. DayOfMonth 0 means "keep the
// current date's day"; 1-31 pins the day, capped at the target month's
// last day when the pinned day doesn't exist (day 31 in a 30-day month).
type Rule struct {
	IntervalMonths int
	DayOfMonth     int
}

// NextOccurrence advances current by the rule's interval in calendar
// months, then clamps the day. Pure function, no side effects.
//
// Month arithmetic is anchored: the target month is computed first and the
// day clamped to it, so Jan 31 + 1 month is Feb 28 (or 29), never Mar 3.
// An interval outside [MinIntervalMonths, MaxIntervalMonths] is a caller
// contract violation and fails with InvalidScheduleError; the calculator
// never silently clamps the interval.
func NextOccurrence(current time.Time, rule Rule) (time.Time, error) {
	if rule.IntervalMonths < MinIntervalMonths || rule.IntervalMonths > MaxIntervalMonths {
		return time.Time{}, &InvalidScheduleError{IntervalMonths: rule.IntervalMonths}
	}

	// Anchor at the first of the target month, then resolve the day.
	anchor := time.Date(current.Year(), current.Month(), 1,
		current.Hour(), current.Minute(), current.Second(), current.Nanosecond(), current.Location())
	target := anchor.AddDate(0, rule.IntervalMonths, 0)

	day := current.Day()
	if rule.DayOfMonth > 0 {
		day = rule.DayOfMonth
	}
	if last := daysInMonth(target.Year(), target.Month()); day > last {
		day = last
	}

	return time.Date(target.Year(), target.Month(), day,
		target.Hour(), target.Minute(), target.Second(), target.Nanosecond(), target.Location()), nil
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
