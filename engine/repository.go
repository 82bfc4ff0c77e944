/*
repository.go - Persistence contract consumed by the engine

PURPOSE:
  Defines the interface between the engine and whatever owns persistence.
  The engine never talks to a database directly; field-name translation
  (snake_case columns, backend-specific schemas) is entirely the store's
  concern. The engine operates only on the canonical RecurringDefinition /
  LedgerTransaction / Account shapes from types.go.

KEY INTERFACES:
  Store:    Reads plus the individual write operations
  TxStore:  Store plus WithTx for atomic multi-write commits
  RunStore: Auto-apply run history

PER-ITEM ATOMICITY:
  Applying one recurring definition means three writes: insert the ledger
  transaction(s), apply the balance delta(s), update the definition's
  schedule/failure state. The orchestrator performs all three inside
  WithTx so either all commit or none do. A store that cannot provide
  this should not implement TxStore.

IDEMPOTENCY:
  Ledger inserts carry an idempotency key (recurring id + occurrence
  date). Stores reject duplicates with ErrDuplicateIdempotencyKey so an
  overlapping or replayed run cannot double-apply a definition.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store
  - engine/store: In-memory store for tests and dev

SEE ALSO:
  - orchestrator.go: The only writer
  - selector.go, materializer.go: Read-only consumers
*/
package engine

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Reads and individual writes
// =============================================================================

type Store interface {
	// FindDueRecurrings returns definitions due for auto-apply as of asOf:
	// not deleted, active, auto-apply enabled, next occurrence non-null and
	// <= asOf. Ordered by next occurrence ascending, then id, so batch
	// outcomes are reproducible. Date-flexible definitions are never due.
	FindDueRecurrings(ctx context.Context, tenantID TenantID, asOf time.Time) ([]RecurringDefinition, error)

	// GetRecurring returns one definition. ErrRecurringNotFound if missing
	// or soft-deleted.
	GetRecurring(ctx context.Context, tenantID TenantID, id RecurringID) (RecurringDefinition, error)

	// ListRecurrings returns all non-deleted definitions for a tenant.
	ListRecurrings(ctx context.Context, tenantID TenantID) ([]RecurringDefinition, error)

	// SaveRecurring inserts a new definition.
	SaveRecurring(ctx context.Context, def RecurringDefinition) error

	// UpdateRecurringDefinition replaces the stored definition state
	// (schedule, failure counters, lifecycle flags).
	UpdateRecurringDefinition(ctx context.Context, def RecurringDefinition) error

	// GetAccount returns one account. ErrAccountNotFound if missing.
	GetAccount(ctx context.Context, accountID AccountID) (Account, error)

	// GetAccountBalance returns the account's current balance.
	GetAccountBalance(ctx context.Context, accountID AccountID) (Money, error)

	// ListAccounts returns all accounts for a tenant.
	ListAccounts(ctx context.Context, tenantID TenantID) ([]Account, error)

	// SaveAccount inserts or replaces an account record.
	SaveAccount(ctx context.Context, account Account) error

	// ApplyBalanceDelta adds delta to the account balance.
	ApplyBalanceDelta(ctx context.Context, accountID AccountID, delta Money) error

	// InsertLedgerTransactions appends transactions. Fails with
	// ErrDuplicateIdempotencyKey if any key already exists; on failure no
	// transaction from the batch is written.
	InsertLedgerTransactions(ctx context.Context, txs []LedgerTransaction) error

	// ListTransactions returns a tenant's ledger transactions with dates in
	// [from, to], chronologically.
	ListTransactions(ctx context.Context, tenantID TenantID, from, to time.Time) ([]LedgerTransaction, error)
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic multi-write commits
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn against a Store view bound to one transaction.
	// If fn returns an error the transaction is rolled back and no write
	// is visible; otherwise all writes commit together.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// RUN STORE - Auto-apply run history
// =============================================================================

type RunStore interface {
	SaveRun(ctx context.Context, run AutoApplyRun) error
	ListRuns(ctx context.Context, tenantID TenantID, limit int) ([]AutoApplyRun, error)
}
