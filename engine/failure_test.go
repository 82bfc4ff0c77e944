package engine_test

import (
	"testing"
	"time"

	"github.com/iMuhammadMustafa/Budgeteer-sub007/engine"
)

func newTestTracker() *engine.Tracker {
	return &engine.Tracker{Now: func() time.Time { return date(2026, time.March, 1) }}
}

// =============================================================================
// SUCCESS PATH
// =============================================================================

func TestTracker_RecordSuccess_ResetsFailuresAndAdvancesSchedule(t *testing.T) {
	// GIVEN: A definition with 2 failed attempts, due March 1
	// WHEN: Recording a successful apply
	// THEN: Counter resets, next occurrence moves to April 1, applied-at stamped

	tr := newTestTracker()
	def := expenseDef("rec-1", 100, date(2026, time.March, 1))
	def.FailedAttempts = 2

	appliedAt := date(2026, time.March, 1)
	updated, err := tr.RecordSuccess(def, appliedAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.FailedAttempts != 0 {
		t.Errorf("expected counter reset, got %d", updated.FailedAttempts)
	}
	if updated.NextOccurrenceDate == nil || !updated.NextOccurrenceDate.Equal(date(2026, time.April, 1)) {
		t.Errorf("expected next occurrence April 1, got %v", updated.NextOccurrenceDate)
	}
	if updated.LastAutoAppliedAt == nil || !updated.LastAutoAppliedAt.Equal(appliedAt) {
		t.Errorf("expected applied-at %v, got %v", appliedAt, updated.LastAutoAppliedAt)
	}
}

func TestTracker_RecordSuccess_DateFlexible_NoAdvance(t *testing.T) {
	// GIVEN: A date-flexible definition (nil next occurrence)
	// WHEN: Recording a successful manual execution
	// THEN: The date stays nil; flexibles are never auto-scheduled

	tr := newTestTracker()
	def := expenseDef("rec-flex", 100, date(2026, time.March, 1))
	def.IsDateFlexible = true
	def.NextOccurrenceDate = nil

	updated, err := tr.RecordSuccess(def, date(2026, time.March, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.NextOccurrenceDate != nil {
		t.Errorf("expected nil next occurrence, got %v", updated.NextOccurrenceDate)
	}
}

func TestTracker_RecordSuccess_PastEndDate_DisablesAutoApply(t *testing.T) {
	// GIVEN: A definition ending March 31, due March 1
	// WHEN: Recording a success (advancing to April 1)
	// THEN: Auto-apply switches off; the series has run its course

	tr := newTestTracker()
	def := expenseDef("rec-end", 100, date(2026, time.March, 1))
	def.EndDate = timePtr(date(2026, time.March, 31))

	updated, err := tr.RecordSuccess(def, date(2026, time.March, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.AutoApplyEnabled {
		t.Error("expected auto-apply disabled past end date")
	}
	if updated.NextOccurrenceDate == nil || !updated.NextOccurrenceDate.Equal(date(2026, time.April, 1)) {
		t.Errorf("the advanced date is still recorded, got %v", updated.NextOccurrenceDate)
	}
}

// =============================================================================
// FAILURE PATH
// =============================================================================

func TestTracker_RecordFailure_CountsUpToThreshold(t *testing.T) {
	// GIVEN: A fresh definition with the default threshold of 3
	// WHEN: Recording failures one at a time
	// THEN: The counter only ever increases, and deactivation fires exactly
	//       at the threshold

	tr := newTestTracker()
	def := expenseDef("rec-1", 100, date(2026, time.March, 1))

	prev := 0
	for i := 1; i <= engine.DefaultMaxFailedAttempts; i++ {
		var deactivated bool
		def, deactivated = tr.RecordFailure(def)
		if def.FailedAttempts <= prev {
			t.Fatalf("attempt %d: counter must increase, got %d after %d", i, def.FailedAttempts, prev)
		}
		prev = def.FailedAttempts

		wantDeactivated := i == engine.DefaultMaxFailedAttempts
		if deactivated != wantDeactivated {
			t.Errorf("attempt %d: deactivated=%v, want %v", i, deactivated, wantDeactivated)
		}
	}
	if def.IsActive {
		t.Error("expected definition inactive after threshold")
	}
}

func TestTracker_RecordFailure_ZeroThreshold_FallsBackToDefault(t *testing.T) {
	// GIVEN: A definition with MaxFailedAttempts left at zero
	// WHEN: Recording failures
	// THEN: The default threshold applies instead of instant deactivation

	tr := newTestTracker()
	def := expenseDef("rec-1", 100, date(2026, time.March, 1))
	def.MaxFailedAttempts = 0

	def, deactivated := tr.RecordFailure(def)
	if deactivated {
		t.Error("first failure must not deactivate with the default threshold")
	}
	if !def.IsActive {
		t.Error("definition must stay active below the threshold")
	}
}

func TestTracker_Reactivate_ClearsFailureState(t *testing.T) {
	// GIVEN: A deactivated definition with a maxed counter
	// WHEN: Reactivating
	// THEN: Counter zero, active again

	tr := newTestTracker()
	def := expenseDef("rec-1", 100, date(2026, time.March, 1))
	def.FailedAttempts = 3
	def.IsActive = false

	updated := tr.Reactivate(def)
	if updated.FailedAttempts != 0 || !updated.IsActive {
		t.Errorf("expected clean active state, got attempts=%d active=%v", updated.FailedAttempts, updated.IsActive)
	}
}
