/*
Package engine implements the recurring-transaction auto-apply engine.

PURPOSE:
  This package contains the core types and algorithms for executing
  recurring financial transactions unattended: deciding which definitions
  are due, materializing them into ledger transactions, applying balance
  deltas, advancing schedules, and tracking failures until a definition
  is deactivated.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A signed decimal amount with a currency code
  - RecurringDefinition: A template for a repeating transaction
  - LedgerTransaction: An immutable financial event produced by the engine
  - ApplyResult: The in-memory summary of one auto-apply run

DESIGN PRINCIPLES:
  1. Immutability: LedgerTransactions are never modified once created
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for ids prevents mixing tenant/account ids
  4. Explicit tenancy: Every operation takes a TenantID parameter; the
     engine never reads ambient session state

USAGE:
  def := engine.RecurringDefinition{
      ID:              "rec-rent",
      TenantID:        "tenant-1",
      Type:            engine.RecurringStandard,
      Kind:            engine.KindExpense,
      Amount:          ptr(engine.NewMoney(1200, "USD")),
      SourceAccountID: "acc-checking",
  }

SEE ALSO:
  - schedule.go: Next-occurrence date computation
  - materializer.go: Definition -> ledger transaction conversion
  - orchestrator.go: The auto-apply batch loop
*/
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Signed decimal amount with currency
// =============================================================================

// Money is a signed amount: negative = debit/outflow, positive = credit/inflow.
type Money struct {
	Value    decimal.Decimal
	Currency string
}

func NewMoney(value float64, currency string) Money {
	return Money{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewMoneyFromInt(value int, currency string) Money {
	return Money{Value: decimal.NewFromInt(int64(value)), Currency: currency}
}

func ZeroMoney(currency string) Money {
	return Money{Value: decimal.Zero, Currency: currency}
}

// MoneyFromString parses a decimal string such as "1200.50".
func MoneyFromString(value, currency string) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return Money{Value: d, Currency: currency}, nil
}

func (m Money) Add(b Money) Money          { return Money{Value: m.Value.Add(b.Value), Currency: m.Currency} }
func (m Money) Sub(b Money) Money          { return Money{Value: m.Value.Sub(b.Value), Currency: m.Currency} }
func (m Money) Neg() Money                 { return Money{Value: m.Value.Neg(), Currency: m.Currency} }
func (m Money) Abs() Money                 { return Money{Value: m.Value.Abs(), Currency: m.Currency} }
func (m Money) IsZero() bool               { return m.Value.IsZero() }
func (m Money) IsNegative() bool           { return m.Value.IsNegative() }
func (m Money) IsPositive() bool           { return m.Value.IsPositive() }
func (m Money) GreaterThan(b Money) bool   { return m.Value.GreaterThan(b.Value) }
func (m Money) LessThan(b Money) bool      { return m.Value.LessThan(b.Value) }
func (m Money) Equal(b Money) bool         { return m.Value.Equal(b.Value) }
func (m Money) String() string             { return m.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type AccountID string
type CategoryID string
type RecurringID string
type TransactionID string
type TransferGroupID string

// =============================================================================
// RECURRING DEFINITION - Template for a repeating transaction
// =============================================================================

// RecurringType is a closed variant tag. Each variant has its own
// materialization behavior; see materializer.go.
type RecurringType string

const (
	RecurringStandard          RecurringType = "standard"
	RecurringTransfer          RecurringType = "transfer"
	RecurringCreditCardPayment RecurringType = "credit_card_payment"
)

// TransactionKind classifies the produced ledger transaction.
type TransactionKind string

const (
	KindExpense  TransactionKind = "expense"
	KindIncome   TransactionKind = "income"
	KindTransfer TransactionKind = "transfer"
)

// DefaultMaxFailedAttempts applies when a definition doesn't set its own
// threshold. Credit-card payments typically want a higher value (e.g. 5)
// because a no-debt month is counted as a skip.
const DefaultMaxFailedAttempts = 3

type RecurringDefinition struct {
	ID       RecurringID
	TenantID TenantID

	Name string

	// Schedule. IntervalMonths caches Rule.IntervalMonths and must stay in
	// [1, 24]. NextOccurrenceDate is nil exactly when IsDateFlexible.
	Rule               Rule
	IntervalMonths     int
	NextOccurrenceDate *time.Time
	EndDate            *time.Time

	// Financial shape. Amount is nil exactly when IsAmountFlexible and
	// holds a positive magnitude otherwise; the sign is applied by Kind.
	Amount            *Money
	Currency          string
	SourceAccountID   AccountID
	CategoryID        *CategoryID
	TransferAccountID *AccountID

	Type RecurringType
	Kind TransactionKind

	IsAmountFlexible bool
	IsDateFlexible   bool
	AutoApplyEnabled bool

	// Failure state, owned by the Tracker.
	FailedAttempts    int
	MaxFailedAttempts int
	LastAutoAppliedAt *time.Time

	IsActive  bool
	IsDeleted bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate enforces the definition invariants. The engine validates before
// materializing so a malformed definition fails fast as a hard error.
func (d RecurringDefinition) Validate() error {
	if d.IntervalMonths < MinIntervalMonths || d.IntervalMonths > MaxIntervalMonths {
		return &InvalidScheduleError{RecurringID: d.ID, IntervalMonths: d.IntervalMonths}
	}
	if d.IsAmountFlexible && d.Amount != nil {
		return ErrFlexibleAmountSet
	}
	// Credit-card payments derive their amount from the liability balance,
	// so only the other variants must carry one (or be flexible).
	if d.Type != RecurringCreditCardPayment && !d.IsAmountFlexible && d.Amount == nil {
		return ErrAmountRequired
	}
	if d.IsDateFlexible && d.NextOccurrenceDate != nil {
		return ErrFlexibleDateSet
	}
	if d.FailedAttempts < 0 || d.MaxFailedAttempts <= 0 {
		return ErrInvalidFailureState
	}
	if d.Type == RecurringStandard && d.Kind != KindExpense && d.Kind != KindIncome {
		return ErrInvalidKind
	}
	if d.Type == RecurringTransfer || d.Type == RecurringCreditCardPayment {
		if d.TransferAccountID == nil {
			return &InvalidTransferError{RecurringID: d.ID, SourceID: d.SourceAccountID}
		}
		if *d.TransferAccountID == d.SourceAccountID {
			return &InvalidTransferError{RecurringID: d.ID, SourceID: d.SourceAccountID, DestinationID: d.TransferAccountID}
		}
	}
	return nil
}

// RequiresTransferAccount reports whether the variant needs a destination.
func (d RecurringDefinition) RequiresTransferAccount() bool {
	return d.Type == RecurringTransfer || d.Type == RecurringCreditCardPayment
}

// =============================================================================
// LEDGER TRANSACTION - Immutable financial event
// =============================================================================

type LedgerTransaction struct {
	ID       TransactionID
	TenantID TenantID

	Name     string
	Amount   Money // signed: negative = outflow, positive = inflow
	Kind     TransactionKind
	Date     time.Time

	AccountID        AccountID
	CounterAccountID *AccountID // the paired leg's account, for transfers
	CategoryID       *CategoryID

	// Traceability back to the originating definition, and the pairing id
	// shared by the two legs of a transfer.
	RecurringID     *RecurringID
	TransferGroupID *TransferGroupID

	IdempotencyKey string
	CreatedAt      time.Time
}

// BalanceDelta is the account mutation implied by one ledger transaction.
type BalanceDelta struct {
	AccountID AccountID
	Delta     Money
}

// =============================================================================
// ACCOUNT - Balance holder (read by the engine, owned by the store)
// =============================================================================

type AccountCategory string

const (
	AccountAsset     AccountCategory = "asset"
	AccountLiability AccountCategory = "liability"
)

type Account struct {
	ID       AccountID
	TenantID TenantID
	Name     string
	Category AccountCategory
	Balance  Money
	Currency string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// APPLY RESULT - In-memory summary of one orchestrator run
// =============================================================================

type AppliedItem struct {
	RecurringID  RecurringID
	Transactions []LedgerTransaction
	NextDue      *time.Time
}

type FailedItem struct {
	RecurringID RecurringID
	Reason      string
	Deactivated bool
}

type PendingItem struct {
	RecurringID RecurringID
	Skip        SkipReason
	Deactivated bool
}

// ApplyResult is transient; runs are summarized into AutoApplyRun records
// for persistence.
type ApplyResult struct {
	TenantID TenantID
	RanAt    time.Time

	Applied []AppliedItem
	Failed  []FailedItem
	Pending []PendingItem
}

func (r ApplyResult) AppliedCount() int { return len(r.Applied) }
func (r ApplyResult) FailedCount() int  { return len(r.Failed) }
func (r ApplyResult) PendingCount() int { return len(r.Pending) }
func (r ApplyResult) Total() int        { return len(r.Applied) + len(r.Failed) + len(r.Pending) }

// =============================================================================
// AUTO-APPLY RUN - Persisted record of one orchestrator run
// =============================================================================

type AutoApplyRun struct {
	ID       string
	TenantID TenantID

	StartedAt   time.Time
	CompletedAt *time.Time

	AppliedCount int
	FailedCount  int
	PendingCount int
	Error        string
}
