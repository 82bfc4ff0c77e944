/*
failure.go - Failed-attempt counting and deactivation

PURPOSE:
  Updates a definition's failure/schedule state after each attempt. Pure
  state transitions on RecurringDefinition; the caller persists the
  returned copy. Never touches ledger transactions.

POLICY:
  - Success resets the counter, stamps last-auto-applied-at, and advances
    the next occurrence (unless the date is flexible).
  - Skips and hard failures count identically: a definition that cannot
    proceed unattended, for whatever reason, needs the same backoff. Once
    failed-attempts reaches max-failed-attempts the definition is
    deactivated and stops being selected until a user re-enables it.

SEE ALSO:
  - orchestrator.go: Calls RecordSuccess / RecordFailure per item
  - schedule.go: Next-occurrence computation
*/
package engine

import "time"

type Tracker struct {
	Now func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{Now: time.Now}
}

// RecordSuccess resets the failure counter and advances the schedule.
// Date-flexible definitions keep a nil next occurrence; the date stays
// unset until the next manual execution supplies one. If the advanced
// date passes the definition's end date, auto-apply is switched off: the
// series has run its course.
func (t *Tracker) RecordSuccess(def RecurringDefinition, appliedAt time.Time) (RecurringDefinition, error) {
	def.FailedAttempts = 0
	def.LastAutoAppliedAt = &appliedAt

	if !def.IsDateFlexible && def.NextOccurrenceDate != nil {
		next, err := NextOccurrence(*def.NextOccurrenceDate, def.Rule)
		if err != nil {
			return def, err
		}
		def.NextOccurrenceDate = &next
		if def.EndDate != nil && next.After(*def.EndDate) {
			def.AutoApplyEnabled = false
		}
	}

	def.UpdatedAt = t.Now()
	return def, nil
}

// RecordFailure increments the failure counter and reports whether the
// definition crossed its threshold and was deactivated. Applies to both
// skips and hard failures.
func (t *Tracker) RecordFailure(def RecurringDefinition) (RecurringDefinition, bool) {
	def.FailedAttempts++
	def.UpdatedAt = t.Now()

	threshold := def.MaxFailedAttempts
	if threshold <= 0 {
		threshold = DefaultMaxFailedAttempts
	}

	deactivated := false
	if def.FailedAttempts >= threshold {
		def.IsActive = false
		deactivated = true
	}
	return def, deactivated
}

// Reactivate clears the failure state after a user re-enables a
// deactivated definition.
func (t *Tracker) Reactivate(def RecurringDefinition) RecurringDefinition {
	def.FailedAttempts = 0
	def.IsActive = true
	def.UpdatedAt = t.Now()
	return def
}
