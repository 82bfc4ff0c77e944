package engine

import (
	"context"
	"sort"
	"time"
)

// =============================================================================
// DUE SELECTOR - Which definitions should this run attempt?
// =============================================================================

// Selector picks the recurring definitions due for auto-apply. Read-only.
type Selector struct {
	Store Store
}

// SelectDue returns due definitions as of asOf, deterministically ordered
// by next occurrence ascending then id. The store already filters; the
// selector re-checks the selection predicate so a store bug cannot leak a
// deleted, disabled, or date-flexible definition into a batch.
func (s *Selector) SelectDue(ctx context.Context, tenantID TenantID, asOf time.Time) ([]RecurringDefinition, error) {
	defs, err := s.Store.FindDueRecurrings(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}

	due := make([]RecurringDefinition, 0, len(defs))
	for _, def := range defs {
		if !Due(def, asOf) {
			continue
		}
		due = append(due, def)
	}

	sort.Slice(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if !a.NextOccurrenceDate.Equal(*b.NextOccurrenceDate) {
			return a.NextOccurrenceDate.Before(*b.NextOccurrenceDate)
		}
		return a.ID < b.ID
	})
	return due, nil
}

// Due reports whether a single definition is eligible for unattended
// execution as of asOf. Date-flexible definitions are never due: with no
// trigger date they require manual execution.
func Due(def RecurringDefinition, asOf time.Time) bool {
	if def.IsDeleted || !def.IsActive || !def.AutoApplyEnabled {
		return false
	}
	if def.IsDateFlexible || def.NextOccurrenceDate == nil {
		return false
	}
	if def.NextOccurrenceDate.After(asOf) {
		return false
	}
	if def.EndDate != nil && def.NextOccurrenceDate.After(*def.EndDate) {
		return false
	}
	return true
}
