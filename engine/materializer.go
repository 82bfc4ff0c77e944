/*
materializer.go - Definition -> ledger transaction conversion

PURPOSE:
  Converts a due RecurringDefinition (plus any manual override) into the
  concrete LedgerTransaction records and balance deltas it implies. The
  materializer performs no writes: persistence and balance mutation belong
  to the orchestrator, which keeps this component pure and testable. Its
  only I/O is reading account balances.

VARIANTS:
  The recurring type is a closed sum, dispatched once at the top of
  Materialize; each variant has its own materialization function so its
  invariants stay locally checkable:

  Standard          One transaction on the source account. Negative for
                    expenses, positive for income.
  Transfer          Two legs: source debited, destination credited, equal
                    magnitude, opposite sign, shared transfer group id.
  CreditCardPayment Pays off the debt portion of the liability account's
                    balance: amount = abs(min(balance, 0)). Zero or credit
                    balance is a skip, not an error. Produces the same
                    two-leg shape as Transfer.

FUNDS POLICY:
  Unattended (ModeAuto) passes skip with SkipInsufficientFunds when the
  outflow exceeds the source balance. Manual (ModeManual) executions are
  not blocked; a manual credit-card payment caps at the available source
  balance instead (partial payment).

SEE ALSO:
  - orchestrator.go: Persists the returned transactions and deltas
  - failure.go: Counts skips and failures toward deactivation
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Mode distinguishes unattended auto-apply from user-initiated execution.
type Mode int

const (
	ModeAuto Mode = iota
	ModeManual
)

// Override supplies the amount and/or date for a manual execution of a
// flexible definition. Amount is a positive magnitude.
type Override struct {
	Amount *Money
	Date   *time.Time
}

// Materialization is the pure output of one materialization: either the
// transactions plus the balance deltas they imply, or a skip reason.
type Materialization struct {
	Transactions []LedgerTransaction
	Deltas       []BalanceDelta
	Skip         SkipReason
}

func (m Materialization) Skipped() bool { return m.Skip.Skipped() }

type Materializer struct {
	Store Store
	Now   func() time.Time
	NewID func() string
}

func NewMaterializer(store Store) *Materializer {
	return &Materializer{Store: store, Now: time.Now, NewID: uuid.NewString}
}

// Materialize resolves the effective amount and date, dispatches on the
// recurring type, and returns the implied transactions and deltas. No
// writes occur here, so a failure leaves no partial state by construction.
func (mz *Materializer) Materialize(ctx context.Context, def RecurringDefinition, ov Override, mode Mode) (Materialization, error) {
	if err := def.Validate(); err != nil {
		return Materialization{}, err
	}

	date := mz.effectiveDate(def, ov, mode)

	switch def.Type {
	case RecurringStandard:
		return mz.materializeStandard(ctx, def, ov, mode, date)
	case RecurringTransfer:
		return mz.materializeTransfer(ctx, def, ov, mode, date)
	case RecurringCreditCardPayment:
		return mz.materializeCreditCardPayment(ctx, def, ov, mode, date)
	default:
		return Materialization{}, fmt.Errorf("unknown recurring type %q", def.Type)
	}
}

// effectiveDate: override, else the stored next occurrence, else now (a
// date-flexible definition executed manually has no stored date).
func (mz *Materializer) effectiveDate(def RecurringDefinition, ov Override, _ Mode) time.Time {
	if ov.Date != nil {
		return *ov.Date
	}
	if def.NextOccurrenceDate != nil {
		return *def.NextOccurrenceDate
	}
	return mz.Now()
}

// effectiveAmount: override, else the stored amount. A flexible amount
// with no override is a skip during auto-apply and a hard error on a
// manual execution. Returns the positive magnitude.
func (mz *Materializer) effectiveAmount(def RecurringDefinition, ov Override, mode Mode) (Money, SkipReason, error) {
	switch {
	case ov.Amount != nil:
		return ov.Amount.Abs(), SkipNone, nil
	case def.Amount != nil:
		return def.Amount.Abs(), SkipNone, nil
	case mode == ModeAuto:
		return Money{}, SkipAmountRequired, nil
	default:
		return Money{}, SkipNone, ErrAmountRequired
	}
}

// =============================================================================
// VARIANT: STANDARD
// =============================================================================

func (mz *Materializer) materializeStandard(ctx context.Context, def RecurringDefinition, ov Override, mode Mode, date time.Time) (Materialization, error) {
	magnitude, skip, err := mz.effectiveAmount(def, ov, mode)
	if err != nil {
		return Materialization{}, err
	}
	if skip.Skipped() {
		return Materialization{Skip: skip}, nil
	}

	signed := magnitude
	if def.Kind == KindExpense {
		signed = magnitude.Neg()
	}

	if mode == ModeAuto && signed.IsNegative() {
		balance, err := mz.Store.GetAccountBalance(ctx, def.SourceAccountID)
		if err != nil {
			return Materialization{}, err
		}
		if magnitude.GreaterThan(balance) {
			return Materialization{Skip: SkipInsufficientFunds}, nil
		}
	}

	tx := mz.newTransaction(def, date)
	tx.Amount = signed
	tx.Kind = def.Kind

	return Materialization{
		Transactions: []LedgerTransaction{tx},
		Deltas:       []BalanceDelta{{AccountID: def.SourceAccountID, Delta: signed}},
	}, nil
}

// =============================================================================
// VARIANT: TRANSFER
// =============================================================================

func (mz *Materializer) materializeTransfer(ctx context.Context, def RecurringDefinition, ov Override, mode Mode, date time.Time) (Materialization, error) {
	magnitude, skip, err := mz.effectiveAmount(def, ov, mode)
	if err != nil {
		return Materialization{}, err
	}
	if skip.Skipped() {
		return Materialization{Skip: skip}, nil
	}

	if mode == ModeAuto {
		balance, err := mz.Store.GetAccountBalance(ctx, def.SourceAccountID)
		if err != nil {
			return Materialization{}, err
		}
		if magnitude.GreaterThan(balance) {
			return Materialization{Skip: SkipInsufficientFunds}, nil
		}
	}

	return mz.twoLeg(def, date, magnitude), nil
}

// =============================================================================
// VARIANT: CREDIT CARD PAYMENT
// =============================================================================

func (mz *Materializer) materializeCreditCardPayment(ctx context.Context, def RecurringDefinition, ov Override, mode Mode, date time.Time) (Materialization, error) {
	liability, err := mz.Store.GetAccountBalance(ctx, *def.TransferAccountID)
	if err != nil {
		return Materialization{}, err
	}

	// Only the negative (debt) portion of the liability balance is paid.
	// A zero or credit balance resolves to a payment of 0, which is a
	// skip: there is nothing to pay this cycle.
	if !liability.IsNegative() {
		return Materialization{Skip: SkipNoDebt}, nil
	}
	payment := liability.Abs()

	// An override can reduce the payment below the full debt but never
	// above it.
	if ov.Amount != nil && ov.Amount.Abs().LessThan(payment) {
		payment = ov.Amount.Abs()
	}

	available, err := mz.Store.GetAccountBalance(ctx, def.SourceAccountID)
	if err != nil {
		return Materialization{}, err
	}
	if payment.GreaterThan(available) {
		if mode == ModeAuto {
			return Materialization{Skip: SkipInsufficientFunds}, nil
		}
		// Manual partial payment: cap at whatever the source has.
		if !available.IsPositive() {
			return Materialization{Skip: SkipInsufficientFunds}, nil
		}
		payment = available
	}

	return mz.twoLeg(def, date, payment), nil
}

// =============================================================================
// SHARED CONSTRUCTION
// =============================================================================

// twoLeg builds the paired legs of a transfer-shaped materialization:
// source debited, destination credited, equal magnitude, opposite sign,
// linked by one transfer group id. The two amounts always sum to zero.
func (mz *Materializer) twoLeg(def RecurringDefinition, date time.Time, magnitude Money) Materialization {
	group := TransferGroupID(mz.NewID())
	dest := *def.TransferAccountID

	out := mz.newTransaction(def, date)
	out.Amount = magnitude.Neg()
	out.Kind = KindTransfer
	out.CounterAccountID = &dest
	out.TransferGroupID = &group
	out.IdempotencyKey += ":out"

	in := mz.newTransaction(def, date)
	in.AccountID = dest
	in.Amount = magnitude
	in.Kind = KindTransfer
	src := def.SourceAccountID
	in.CounterAccountID = &src
	in.TransferGroupID = &group
	in.IdempotencyKey += ":in"

	return Materialization{
		Transactions: []LedgerTransaction{out, in},
		Deltas: []BalanceDelta{
			{AccountID: def.SourceAccountID, Delta: out.Amount},
			{AccountID: dest, Delta: in.Amount},
		},
	}
}

func (mz *Materializer) newTransaction(def RecurringDefinition, date time.Time) LedgerTransaction {
	recID := def.ID
	return LedgerTransaction{
		ID:             TransactionID(mz.NewID()),
		TenantID:       def.TenantID,
		Name:           def.Name,
		AccountID:      def.SourceAccountID,
		CategoryID:     def.CategoryID,
		Date:           date,
		RecurringID:    &recID,
		IdempotencyKey: fmt.Sprintf("%s:%s", def.ID, date.Format("2006-01-02")),
		CreatedAt:      mz.Now(),
	}
}
