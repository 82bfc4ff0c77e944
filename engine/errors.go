/*
errors.go - Centralized error types and skip reasons for the engine

PURPOSE:
  All engine error types in one place. The engine distinguishes two
  non-success shapes:

  1. Errors - hard failures (bad configuration, storage faults). These
     count toward failed-attempts and are reported as failed items.
  2. SkipReason - a non-erroneous decision not to execute a due item this
     cycle (insufficient funds, no override for a flexible amount, no
     credit-card debt to pay). Skips are values, not errors, but still
     count toward failed-attempts so a permanently-unresolvable definition
     is eventually deactivated.

USAGE:
  Callers match sentinels with errors.Is and structured errors with
  errors.As:

    var tErr *engine.InvalidTransferError
    if errors.As(err, &tErr) { ... }

SEE ALSO:
  - materializer.go: Produces these errors and skips
  - failure.go: Counts both toward deactivation
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidSchedule is returned when a recurrence rule violates the
	// interval bounds. Caller contract violation, never silently clamped.
	ErrInvalidSchedule = errors.New("invalid recurrence schedule")

	// ErrInvalidTransfer is returned when a transfer-shaped definition is
	// missing a destination account or pays an account into itself.
	ErrInvalidTransfer = errors.New("invalid transfer")

	// ErrAmountRequired is returned when no effective amount can be
	// resolved (flexible amount, no override) on a manual execution.
	// During auto-apply the same condition is SkipAmountRequired instead.
	ErrAmountRequired = errors.New("amount required")

	// ErrFlexibleAmountSet is returned when a flexible-amount definition
	// carries a stored amount (invariant: flexible implies nil amount).
	ErrFlexibleAmountSet = errors.New("flexible-amount definition must not store an amount")

	// ErrFlexibleDateSet is returned when a flexible-date definition
	// carries a next-occurrence date.
	ErrFlexibleDateSet = errors.New("flexible-date definition must not store a next occurrence")

	// ErrInvalidFailureState is returned for a negative attempts counter
	// or a non-positive max-failed-attempts threshold.
	ErrInvalidFailureState = errors.New("invalid failure state")

	// ErrInvalidKind is returned when a standard definition's kind is
	// neither expense nor income.
	ErrInvalidKind = errors.New("standard definition must be expense or income")

	// ErrRecurringNotFound is returned when a referenced definition doesn't exist.
	ErrRecurringNotFound = errors.New("recurring definition not found")

	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateIdempotencyKey is returned when a ledger transaction with
	// the same idempotency key already exists. Expected behavior for replays.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidScheduleError reports an interval outside [MinIntervalMonths,
// MaxIntervalMonths].
type InvalidScheduleError struct {
	RecurringID    RecurringID
	IntervalMonths int
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule for %s: interval %d months outside [%d, %d]",
		e.RecurringID, e.IntervalMonths, MinIntervalMonths, MaxIntervalMonths)
}

func (e *InvalidScheduleError) Unwrap() error { return ErrInvalidSchedule }

// InvalidTransferError reports a missing or self-referential destination.
type InvalidTransferError struct {
	RecurringID   RecurringID
	SourceID      AccountID
	DestinationID *AccountID
}

func (e *InvalidTransferError) Error() string {
	if e.DestinationID == nil {
		return fmt.Sprintf("invalid transfer for %s: destination account required", e.RecurringID)
	}
	return fmt.Sprintf("invalid transfer for %s: source and destination are both %s",
		e.RecurringID, e.SourceID)
}

func (e *InvalidTransferError) Unwrap() error { return ErrInvalidTransfer }

// =============================================================================
// SKIP REASONS - Non-erroneous "not this cycle" outcomes
// =============================================================================

type SkipReason string

const (
	// SkipNone marks a materialization that produced transactions.
	SkipNone SkipReason = ""

	// SkipInsufficientFunds: effective outflow exceeds the source balance
	// during an unattended pass. Recoverable once funds arrive.
	SkipInsufficientFunds SkipReason = "insufficient_funds"

	// SkipAmountRequired: flexible amount with no override during an
	// unattended pass. Needs manual execution.
	SkipAmountRequired SkipReason = "amount_required"

	// SkipNoDebt: credit-card payment where the liability balance is zero
	// or in credit, so the payment amount resolves to 0.
	SkipNoDebt SkipReason = "no_debt"
)

func (s SkipReason) Skipped() bool { return s != SkipNone }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecurringNotFound) ||
		errors.Is(err, ErrAccountNotFound)
}

// IsClientError returns true if the error is due to invalid configuration
// or input rather than a storage fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSchedule) ||
		errors.Is(err, ErrInvalidTransfer) ||
		errors.Is(err, ErrAmountRequired) ||
		errors.Is(err, ErrFlexibleAmountSet) ||
		errors.Is(err, ErrFlexibleDateSet) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}
