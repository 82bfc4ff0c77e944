package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/iMuhammadMustafa/Budgeteer-sub007/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// NEXT OCCURRENCE TESTS
// =============================================================================

func TestNextOccurrence_MonthlyAdvance(t *testing.T) {
	// GIVEN: A monthly rule and a mid-month date
	// WHEN: Computing the next occurrence
	// THEN: Same day, next month

	next, err := engine.NextOccurrence(date(2026, time.March, 15), engine.Rule{IntervalMonths: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := date(2026, time.April, 15); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextOccurrence_Jan31_ClampsToFeb28(t *testing.T) {
	// GIVEN: Jan 31 in a non-leap year, monthly rule
	// WHEN: Advancing one month
	// THEN: Feb 28, never Mar 3 (anchored month arithmetic)

	next, err := engine.NextOccurrence(date(2026, time.January, 31), engine.Rule{IntervalMonths: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := date(2026, time.February, 28); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextOccurrence_Jan31_LeapYear_ClampsToFeb29(t *testing.T) {
	// GIVEN: Jan 31 in a leap year
	// WHEN: Advancing one month
	// THEN: Feb 29

	next, err := engine.NextOccurrence(date(2028, time.January, 31), engine.Rule{IntervalMonths: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := date(2028, time.February, 29); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextOccurrence_QuarterlyInterval(t *testing.T) {
	// GIVEN: An interval of 3 months
	// WHEN: Advancing from Nov 30
	// THEN: Feb 28 of the next year (day clamped, year rolled over)

	next, err := engine.NextOccurrence(date(2026, time.November, 30), engine.Rule{IntervalMonths: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := date(2027, time.February, 28); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextOccurrence_PinnedDayOfMonth(t *testing.T) {
	// GIVEN: A rule pinned to day 1
	// WHEN: Advancing from a clamped date like Feb 28
	// THEN: The pinned day wins; the clamp does not drift the schedule

	next, err := engine.NextOccurrence(date(2026, time.February, 28), engine.Rule{IntervalMonths: 1, DayOfMonth: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := date(2026, time.March, 1); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextOccurrence_PinnedDay31_ShortMonth(t *testing.T) {
	// GIVEN: A rule pinned to day 31
	// WHEN: The target month has 30 days
	// THEN: Clamped to the last day of the target month

	next, err := engine.NextOccurrence(date(2026, time.March, 31), engine.Rule{IntervalMonths: 1, DayOfMonth: 31})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := date(2026, time.April, 30); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextOccurrence_InvalidInterval_Rejected(t *testing.T) {
	// GIVEN: Intervals outside [1, 24]
	// WHEN: Computing the next occurrence
	// THEN: InvalidScheduleError, never a silent clamp

	for _, interval := range []int{0, -1, 25, 100} {
		_, err := engine.NextOccurrence(date(2026, time.June, 1), engine.Rule{IntervalMonths: interval})
		if err == nil {
			t.Fatalf("interval %d: expected error, got none", interval)
		}
		if !errors.Is(err, engine.ErrInvalidSchedule) {
			t.Errorf("interval %d: expected ErrInvalidSchedule, got %v", interval, err)
		}
		var sched *engine.InvalidScheduleError
		if !errors.As(err, &sched) {
			t.Errorf("interval %d: expected *InvalidScheduleError, got %T", interval, err)
		}
	}
}

func TestNextOccurrence_RepeatedAdvance_NeverDriftsPastPinnedDay(t *testing.T) {
	// GIVEN: A rule pinned to day 31, starting Jan 31
	// WHEN: Advancing twelve times
	// THEN: Each occurrence is the last day of its month, and long months
	//       recover day 31 (no permanent drift from February's clamp)

	rule := engine.Rule{IntervalMonths: 1, DayOfMonth: 31}
	current := date(2026, time.January, 31)

	for i := 0; i < 12; i++ {
		next, err := engine.NextOccurrence(current, rule)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		last := time.Date(next.Year(), next.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
		if next.Day() != last {
			t.Errorf("step %d: expected last day %d of %v, got %d", i, last, next.Month(), next.Day())
		}
		current = next
	}
	if !current.Equal(date(2027, time.January, 31)) {
		t.Errorf("expected to land back on Jan 31 2027, got %v", current)
	}
}
