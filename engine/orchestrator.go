/*
orchestrator.go - The auto-apply batch loop

PURPOSE:
  Top-level entry point of the engine. Selects due definitions, attempts
  materialization for each, commits ledger + balance + definition updates
  atomically per item, and aggregates an ApplyResult.

PARTIAL-FAILURE SEMANTICS:
  A single item's failure never aborts the batch. Every per-item error is
  caught at the item boundary and converted into a result entry; only a
  failure of the initial due query propagates to the caller. The batch
  always completes and reports a mixed result.

SEQUENCING:
  Items are processed strictly sequentially, in the selector's order.
  Account balances are the one shared mutable resource across items (two
  definitions can target the same account), so balance deltas go through
  one serialized write path per run. Concurrent runs for the same tenant
  are the caller's problem; the api.StartupScheduler provides the
  single-shot guarantee.

IDEMPOTENCY:
  A successfully applied definition is rescheduled inside the same commit,
  so it cannot be reselected by a later run; the ledger idempotency key
  (definition id + occurrence date) backstops replays.

SEE ALSO:
  - selector.go, materializer.go, failure.go: The per-item pipeline
  - api/scheduler.go: The startup consumer
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Orchestrator struct {
	Store TxStore
	Runs  RunStore // optional run history; nil disables recording
	Log   zerolog.Logger
	Now   func() time.Time

	Selector     *Selector
	Materializer *Materializer
	Tracker      *Tracker
}

func NewOrchestrator(store TxStore) *Orchestrator {
	return &Orchestrator{
		Store:        store,
		Log:          zerolog.Nop(),
		Now:          time.Now,
		Selector:     &Selector{Store: store},
		Materializer: NewMaterializer(store),
		Tracker:      NewTracker(),
	}
}

// Run executes one auto-apply pass for a tenant as of now.
func (o *Orchestrator) Run(ctx context.Context, tenantID TenantID) (ApplyResult, error) {
	return o.RunAt(ctx, tenantID, o.Now())
}

// RunAt is Run with an explicit "now", for deterministic tests and
// backfills. The due set is captured once at the start; a definition
// rescheduled mid-run is never revisited.
func (o *Orchestrator) RunAt(ctx context.Context, tenantID TenantID, now time.Time) (ApplyResult, error) {
	result := ApplyResult{TenantID: tenantID, RanAt: now}
	started := o.Now()

	due, err := o.Selector.SelectDue(ctx, tenantID, now)
	if err != nil {
		o.recordRun(ctx, tenantID, started, result, err)
		return result, fmt.Errorf("select due recurrings: %w", err)
	}

	for _, def := range due {
		o.applyOne(ctx, def, now, &result)
	}

	o.recordRun(ctx, tenantID, started, result, nil)
	o.Log.Info().
		Str("tenant", string(tenantID)).
		Int("selected", len(due)).
		Int("applied", result.AppliedCount()).
		Int("failed", result.FailedCount()).
		Int("pending", result.PendingCount()).
		Msg("auto-apply run completed")
	return result, nil
}

// applyOne runs the per-item state machine: materialize, then commit on
// success, or record the skip/failure. Never returns an error; every
// outcome lands in the result.
func (o *Orchestrator) applyOne(ctx context.Context, def RecurringDefinition, now time.Time, result *ApplyResult) {
	mat, err := o.Materializer.Materialize(ctx, def, Override{}, ModeAuto)
	if err != nil {
		o.failItem(ctx, def, err, result)
		return
	}

	if mat.Skipped() {
		updated, deactivated := o.Tracker.RecordFailure(def)
		if perr := o.Store.UpdateRecurringDefinition(ctx, updated); perr != nil {
			o.Log.Error().Err(perr).Str("recurring", string(def.ID)).Msg("persist skip state")
		}
		result.Pending = append(result.Pending, PendingItem{
			RecurringID: def.ID,
			Skip:        mat.Skip,
			Deactivated: deactivated,
		})
		o.Log.Debug().Str("recurring", string(def.ID)).Str("skip", string(mat.Skip)).Bool("deactivated", deactivated).Msg("skipped")
		return
	}

	updated, err := o.Tracker.RecordSuccess(def, now)
	if err != nil {
		o.failItem(ctx, def, err, result)
		return
	}

	// Ledger insert, balance deltas, and the definition update commit or
	// roll back together; a persistence failure leaves no partial state
	// for this item.
	err = o.Store.WithTx(ctx, func(s Store) error {
		if err := s.InsertLedgerTransactions(ctx, mat.Transactions); err != nil {
			return err
		}
		for _, d := range mat.Deltas {
			if err := s.ApplyBalanceDelta(ctx, d.AccountID, d.Delta); err != nil {
				return err
			}
		}
		return s.UpdateRecurringDefinition(ctx, updated)
	})
	if err != nil {
		o.failItem(ctx, def, err, result)
		return
	}

	result.Applied = append(result.Applied, AppliedItem{
		RecurringID:  def.ID,
		Transactions: mat.Transactions,
		NextDue:      updated.NextOccurrenceDate,
	})
	o.Log.Debug().Str("recurring", string(def.ID)).Int("transactions", len(mat.Transactions)).Msg("applied")
}

func (o *Orchestrator) failItem(ctx context.Context, def RecurringDefinition, cause error, result *ApplyResult) {
	updated, deactivated := o.Tracker.RecordFailure(def)
	if perr := o.Store.UpdateRecurringDefinition(ctx, updated); perr != nil {
		o.Log.Error().Err(perr).Str("recurring", string(def.ID)).Msg("persist failure state")
	}
	result.Failed = append(result.Failed, FailedItem{
		RecurringID: def.ID,
		Reason:      cause.Error(),
		Deactivated: deactivated,
	})
	o.Log.Warn().Err(cause).Str("recurring", string(def.ID)).Bool("deactivated", deactivated).Msg("auto-apply item failed")
}

// ExecuteOne is the manual, user-initiated execution path. Overrides may
// supply the amount and/or date for flexible definitions. The funds check
// is relaxed: manual executions may drive a balance negative, and a
// credit-card payment caps at the available source balance. A manual skip
// (e.g. no credit-card debt) does not count toward failed-attempts.
func (o *Orchestrator) ExecuteOne(ctx context.Context, tenantID TenantID, id RecurringID, ov Override) (Materialization, error) {
	def, err := o.Store.GetRecurring(ctx, tenantID, id)
	if err != nil {
		return Materialization{}, err
	}

	mat, err := o.Materializer.Materialize(ctx, def, ov, ModeManual)
	if err != nil {
		return Materialization{}, err
	}
	if mat.Skipped() {
		return mat, nil
	}

	updated, err := o.Tracker.RecordSuccess(def, o.Now())
	if err != nil {
		return Materialization{}, err
	}

	err = o.Store.WithTx(ctx, func(s Store) error {
		if err := s.InsertLedgerTransactions(ctx, mat.Transactions); err != nil {
			return err
		}
		for _, d := range mat.Deltas {
			if err := s.ApplyBalanceDelta(ctx, d.AccountID, d.Delta); err != nil {
				return err
			}
		}
		return s.UpdateRecurringDefinition(ctx, updated)
	})
	if err != nil {
		return Materialization{}, err
	}
	return mat, nil
}

// Reactivate re-enables a deactivated definition and clears its failure
// counter.
func (o *Orchestrator) Reactivate(ctx context.Context, tenantID TenantID, id RecurringID) (RecurringDefinition, error) {
	def, err := o.Store.GetRecurring(ctx, tenantID, id)
	if err != nil {
		return RecurringDefinition{}, err
	}
	updated := o.Tracker.Reactivate(def)
	if err := o.Store.UpdateRecurringDefinition(ctx, updated); err != nil {
		return RecurringDefinition{}, err
	}
	return updated, nil
}

func (o *Orchestrator) recordRun(ctx context.Context, tenantID TenantID, started time.Time, result ApplyResult, cause error) {
	if o.Runs == nil {
		return
	}
	completed := o.Now()
	run := AutoApplyRun{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		StartedAt:    started,
		CompletedAt:  &completed,
		AppliedCount: result.AppliedCount(),
		FailedCount:  result.FailedCount(),
		PendingCount: result.PendingCount(),
	}
	if cause != nil {
		run.Error = cause.Error()
	}
	if err := o.Runs.SaveRun(ctx, run); err != nil {
		o.Log.Error().Err(err).Str("tenant", string(tenantID)).Msg("persist run record")
	}
}
