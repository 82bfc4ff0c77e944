/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements engine.TxStore and engine.RunStore using SQLite. In production
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

FIELD NAMING:
  Columns are snake_case; translation to the engine's canonical structs
  happens here and only here. The engine never sees storage field names.

KEY TABLES:
  accounts:        Balance holders (asset/liability)
  recurrings:      Recurring definitions with schedule and failure state
  transactions:    Immutable ledger of financial events
  auto_apply_runs: One record per orchestrator run

IDEMPOTENCY:
  transactions.idempotency_key is UNIQUE. A replayed application fails
  with engine.ErrDuplicateIdempotencyKey, and because the insert runs
  inside the per-item WithTx no partial state survives the replay.

ATOMICITY:
  WithTx binds all writes issued through its Store view to one SQL
  transaction. The orchestrator relies on this for per-item all-or-nothing
  semantics (ledger insert + balance deltas + definition update).

WAL MODE:
  SQLite is opened with WAL for better concurrency: multiple readers
  don't block, single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/budgeteer.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - engine/repository.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/iMuhammadMustafa/Budgeteer-sub007/engine"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so every query helper
// works inside and outside WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements engine.TxStore and engine.RunStore using SQLite.
type Store struct {
	db *sql.DB

	// Serializes writers; SQLite allows one at a time and failing fast
	// inside the engine's per-item loop beats SQLITE_BUSY.
	writeMu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Accounts (balance holders)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		balance TEXT NOT NULL,
		currency TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_tenant
		ON accounts(tenant_id);

	-- Recurring definitions
	CREATE TABLE IF NOT EXISTS recurrings (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		interval_months INTEGER NOT NULL,
		day_of_month INTEGER NOT NULL DEFAULT 0,
		next_occurrence_date TEXT,
		end_date TEXT,
		amount TEXT,
		currency TEXT NOT NULL,
		source_account_id TEXT NOT NULL,
		category_id TEXT,
		transfer_account_id TEXT,
		recurring_type TEXT NOT NULL,
		kind TEXT NOT NULL,
		is_amount_flexible BOOLEAN NOT NULL DEFAULT FALSE,
		is_date_flexible BOOLEAN NOT NULL DEFAULT FALSE,
		auto_apply_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		failed_attempts INTEGER NOT NULL DEFAULT 0,
		max_failed_attempts INTEGER NOT NULL DEFAULT 3,
		last_auto_applied_at TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot path: the due query
	CREATE INDEX IF NOT EXISTS idx_recurrings_due
		ON recurrings(tenant_id, next_occurrence_date)
		WHERE is_deleted = FALSE AND is_active = TRUE AND auto_apply_enabled = TRUE;
	CREATE INDEX IF NOT EXISTS idx_recurrings_tenant
		ON recurrings(tenant_id);

	-- Ledger transactions (immutable)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		kind TEXT NOT NULL,
		date TEXT NOT NULL,
		account_id TEXT NOT NULL,
		counter_account_id TEXT,
		category_id TEXT,
		recurring_id TEXT,
		transfer_group_id TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_tenant_date
		ON transactions(tenant_id, date);
	CREATE INDEX IF NOT EXISTS idx_transactions_account
		ON transactions(account_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_recurring
		ON transactions(recurring_id) WHERE recurring_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_transfer_group
		ON transactions(transfer_group_id) WHERE transfer_group_id IS NOT NULL;

	-- Auto-apply run history
	CREATE TABLE IF NOT EXISTS auto_apply_runs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		applied_count INTEGER NOT NULL DEFAULT 0,
		failed_count INTEGER NOT NULL DEFAULT 0,
		pending_count INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_auto_apply_runs_tenant
		ON auto_apply_runs(tenant_id, started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECURRING DEFINITIONS (engine.Store interface)
// =============================================================================

const recurringColumns = `id, tenant_id, name, interval_months, day_of_month,
	next_occurrence_date, end_date, amount, currency, source_account_id,
	category_id, transfer_account_id, recurring_type, kind,
	is_amount_flexible, is_date_flexible, auto_apply_enabled,
	failed_attempts, max_failed_attempts, last_auto_applied_at,
	is_active, is_deleted, created_at, updated_at`

func (s *Store) FindDueRecurrings(ctx context.Context, tenantID engine.TenantID, asOf time.Time) ([]engine.RecurringDefinition, error) {
	return findDueRecurrings(ctx, s.db, tenantID, asOf)
}

func findDueRecurrings(ctx context.Context, q querier, tenantID engine.TenantID, asOf time.Time) ([]engine.RecurringDefinition, error) {
	query := `
		SELECT ` + recurringColumns + `
		FROM recurrings
		WHERE tenant_id = ?
		  AND is_deleted = FALSE AND is_active = TRUE AND auto_apply_enabled = TRUE
		  AND is_date_flexible = FALSE
		  AND next_occurrence_date IS NOT NULL AND next_occurrence_date <= ?
		ORDER BY next_occurrence_date ASC, id ASC
	`
	return queryRecurrings(ctx, q, query, tenantID, asOf.UTC().Format(time.RFC3339))
}

func (s *Store) GetRecurring(ctx context.Context, tenantID engine.TenantID, id engine.RecurringID) (engine.RecurringDefinition, error) {
	return getRecurring(ctx, s.db, tenantID, id)
}

func getRecurring(ctx context.Context, q querier, tenantID engine.TenantID, id engine.RecurringID) (engine.RecurringDefinition, error) {
	query := `
		SELECT ` + recurringColumns + `
		FROM recurrings
		WHERE id = ? AND tenant_id = ? AND is_deleted = FALSE
	`
	defs, err := queryRecurrings(ctx, q, query, id, tenantID)
	if err != nil {
		return engine.RecurringDefinition{}, err
	}
	if len(defs) == 0 {
		return engine.RecurringDefinition{}, engine.ErrRecurringNotFound
	}
	return defs[0], nil
}

func (s *Store) ListRecurrings(ctx context.Context, tenantID engine.TenantID) ([]engine.RecurringDefinition, error) {
	return listRecurrings(ctx, s.db, tenantID)
}

func listRecurrings(ctx context.Context, q querier, tenantID engine.TenantID) ([]engine.RecurringDefinition, error) {
	query := `
		SELECT ` + recurringColumns + `
		FROM recurrings
		WHERE tenant_id = ? AND is_deleted = FALSE
		ORDER BY id ASC
	`
	return queryRecurrings(ctx, q, query, tenantID)
}

func (s *Store) SaveRecurring(ctx context.Context, def engine.RecurringDefinition) error {
	return saveRecurring(ctx, s.db, def)
}

func saveRecurring(ctx context.Context, q querier, def engine.RecurringDefinition) error {
	query := `
		INSERT INTO recurrings
		(` + recurringColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query, recurringArgs(def)...)
	if err != nil {
		return fmt.Errorf("failed to save recurring %s: %w", def.ID, err)
	}
	return nil
}

func (s *Store) UpdateRecurringDefinition(ctx context.Context, def engine.RecurringDefinition) error {
	return updateRecurring(ctx, s.db, def)
}

func updateRecurring(ctx context.Context, q querier, def engine.RecurringDefinition) error {
	query := `
		UPDATE recurrings SET
			name = ?, interval_months = ?, day_of_month = ?,
			next_occurrence_date = ?, end_date = ?, amount = ?, currency = ?,
			source_account_id = ?, category_id = ?, transfer_account_id = ?,
			recurring_type = ?, kind = ?,
			is_amount_flexible = ?, is_date_flexible = ?, auto_apply_enabled = ?,
			failed_attempts = ?, max_failed_attempts = ?, last_auto_applied_at = ?,
			is_active = ?, is_deleted = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?
	`
	res, err := q.ExecContext(ctx, query,
		def.Name, def.IntervalMonths, def.Rule.DayOfMonth,
		nullTime(def.NextOccurrenceDate), nullTime(def.EndDate),
		nullMoney(def.Amount), def.Currency,
		def.SourceAccountID, nullCategory(def.CategoryID), nullAccount(def.TransferAccountID),
		def.Type, def.Kind,
		def.IsAmountFlexible, def.IsDateFlexible, def.AutoApplyEnabled,
		def.FailedAttempts, def.MaxFailedAttempts, nullTime(def.LastAutoAppliedAt),
		def.IsActive, def.IsDeleted, time.Now().UTC().Format(time.RFC3339),
		def.ID, def.TenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to update recurring %s: %w", def.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrRecurringNotFound
	}
	return nil
}

func recurringArgs(def engine.RecurringDefinition) []any {
	now := time.Now().UTC().Format(time.RFC3339)
	createdAt := now
	if !def.CreatedAt.IsZero() {
		createdAt = def.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []any{
		def.ID, def.TenantID, def.Name, def.IntervalMonths, def.Rule.DayOfMonth,
		nullTime(def.NextOccurrenceDate), nullTime(def.EndDate),
		nullMoney(def.Amount), def.Currency, def.SourceAccountID,
		nullCategory(def.CategoryID), nullAccount(def.TransferAccountID),
		def.Type, def.Kind,
		def.IsAmountFlexible, def.IsDateFlexible, def.AutoApplyEnabled,
		def.FailedAttempts, def.MaxFailedAttempts, nullTime(def.LastAutoAppliedAt),
		def.IsActive, def.IsDeleted, createdAt, now,
	}
}

func queryRecurrings(ctx context.Context, q querier, query string, args ...any) ([]engine.RecurringDefinition, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurrings: %w", err)
	}
	defer rows.Close()

	var defs []engine.RecurringDefinition
	for rows.Next() {
		def, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func scanRecurring(rows *sql.Rows) (engine.RecurringDefinition, error) {
	var (
		def               engine.RecurringDefinition
		nextOccurrence    sql.NullString
		endDate           sql.NullString
		amount            sql.NullString
		categoryID        sql.NullString
		transferAccountID sql.NullString
		lastAutoAppliedAt sql.NullString
		createdAt         string
		updatedAt         string
	)

	err := rows.Scan(
		&def.ID, &def.TenantID, &def.Name, &def.IntervalMonths, &def.Rule.DayOfMonth,
		&nextOccurrence, &endDate, &amount, &def.Currency, &def.SourceAccountID,
		&categoryID, &transferAccountID, &def.Type, &def.Kind,
		&def.IsAmountFlexible, &def.IsDateFlexible, &def.AutoApplyEnabled,
		&def.FailedAttempts, &def.MaxFailedAttempts, &lastAutoAppliedAt,
		&def.IsActive, &def.IsDeleted, &createdAt, &updatedAt,
	)
	if err != nil {
		return def, fmt.Errorf("failed to scan recurring: %w", err)
	}

	def.Rule.IntervalMonths = def.IntervalMonths
	def.NextOccurrenceDate = parseNullTime(nextOccurrence)
	def.EndDate = parseNullTime(endDate)
	def.LastAutoAppliedAt = parseNullTime(lastAutoAppliedAt)
	if amount.Valid {
		m := engine.Money{Value: mustDecimal(amount.String), Currency: def.Currency}
		def.Amount = &m
	}
	if categoryID.Valid {
		c := engine.CategoryID(categoryID.String)
		def.CategoryID = &c
	}
	if transferAccountID.Valid {
		a := engine.AccountID(transferAccountID.String)
		def.TransferAccountID = &a
	}
	def.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	def.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return def, nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) GetAccount(ctx context.Context, accountID engine.AccountID) (engine.Account, error) {
	return getAccount(ctx, s.db, accountID)
}

func getAccount(ctx context.Context, q querier, accountID engine.AccountID) (engine.Account, error) {
	query := `
		SELECT id, tenant_id, name, category, balance, currency, created_at, updated_at
		FROM accounts WHERE id = ?
	`
	var (
		account   engine.Account
		balance   string
		createdAt string
		updatedAt string
	)
	err := q.QueryRowContext(ctx, query, accountID).Scan(
		&account.ID, &account.TenantID, &account.Name, &account.Category,
		&balance, &account.Currency, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return engine.Account{}, engine.ErrAccountNotFound
	}
	if err != nil {
		return engine.Account{}, fmt.Errorf("failed to get account %s: %w", accountID, err)
	}
	account.Balance = engine.Money{Value: mustDecimal(balance), Currency: account.Currency}
	account.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	account.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return account, nil
}

func (s *Store) GetAccountBalance(ctx context.Context, accountID engine.AccountID) (engine.Money, error) {
	return getAccountBalance(ctx, s.db, accountID)
}

func getAccountBalance(ctx context.Context, q querier, accountID engine.AccountID) (engine.Money, error) {
	var balance, currency string
	err := q.QueryRowContext(ctx,
		"SELECT balance, currency FROM accounts WHERE id = ?", accountID,
	).Scan(&balance, &currency)
	if err == sql.ErrNoRows {
		return engine.Money{}, engine.ErrAccountNotFound
	}
	if err != nil {
		return engine.Money{}, fmt.Errorf("failed to get balance for %s: %w", accountID, err)
	}
	return engine.Money{Value: mustDecimal(balance), Currency: currency}, nil
}

func (s *Store) ListAccounts(ctx context.Context, tenantID engine.TenantID) ([]engine.Account, error) {
	return listAccounts(ctx, s.db, tenantID)
}

func listAccounts(ctx context.Context, q querier, tenantID engine.TenantID) ([]engine.Account, error) {
	query := `
		SELECT id, tenant_id, name, category, balance, currency, created_at, updated_at
		FROM accounts WHERE tenant_id = ? ORDER BY id ASC
	`
	rows, err := q.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []engine.Account
	for rows.Next() {
		var (
			account   engine.Account
			balance   string
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(
			&account.ID, &account.TenantID, &account.Name, &account.Category,
			&balance, &account.Currency, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		account.Balance = engine.Money{Value: mustDecimal(balance), Currency: account.Currency}
		account.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		account.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (s *Store) SaveAccount(ctx context.Context, account engine.Account) error {
	return saveAccount(ctx, s.db, account)
}

func saveAccount(ctx context.Context, q querier, account engine.Account) error {
	query := `
		INSERT INTO accounts (id, tenant_id, name, category, balance, currency, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			balance = excluded.balance,
			currency = excluded.currency,
			updated_at = excluded.updated_at
	`
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := q.ExecContext(ctx, query,
		account.ID, account.TenantID, account.Name, account.Category,
		account.Balance.Value.String(), account.Currency, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", account.ID, err)
	}
	return nil
}

func (s *Store) ApplyBalanceDelta(ctx context.Context, accountID engine.AccountID, delta engine.Money) error {
	return applyBalanceDelta(ctx, s.db, accountID, delta)
}

func applyBalanceDelta(ctx context.Context, q querier, accountID engine.AccountID, delta engine.Money) error {
	// Balances are stored as decimal strings, so the arithmetic happens
	// in Go rather than SQL.
	current, err := getAccountBalance(ctx, q, accountID)
	if err != nil {
		return err
	}
	next := current.Add(delta)

	res, err := q.ExecContext(ctx,
		"UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?",
		next.Value.String(), time.Now().UTC().Format(time.RFC3339), accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to apply balance delta to %s: %w", accountID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrAccountNotFound
	}
	return nil
}

// =============================================================================
// LEDGER TRANSACTIONS
// =============================================================================

func (s *Store) InsertLedgerTransactions(ctx context.Context, txs []engine.LedgerTransaction) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Outside WithTx, wrap the batch in its own transaction so the insert
	// stays all-or-nothing.
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := insertTransactions(ctx, sqlTx, txs); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func insertTransactions(ctx context.Context, q querier, txs []engine.LedgerTransaction) error {
	query := `
		INSERT INTO transactions
		(id, tenant_id, name, amount, currency, kind, date, account_id,
		 counter_account_id, category_id, recurring_id, transfer_group_id,
		 idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, tx := range txs {
		_, err := q.ExecContext(ctx, query,
			tx.ID, tx.TenantID, tx.Name,
			tx.Amount.Value.String(), tx.Amount.Currency, tx.Kind,
			tx.Date.UTC().Format(time.RFC3339), tx.AccountID,
			nullAccount(tx.CounterAccountID), nullCategory(tx.CategoryID),
			nullRecurring(tx.RecurringID), nullTransferGroup(tx.TransferGroupID),
			nullString(tx.IdempotencyKey),
			time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return engine.ErrDuplicateIdempotencyKey
			}
			return fmt.Errorf("failed to insert transaction %s: %w", tx.ID, err)
		}
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, tenantID engine.TenantID, from, to time.Time) ([]engine.LedgerTransaction, error) {
	return listTransactions(ctx, s.db, tenantID, from, to)
}

func listTransactions(ctx context.Context, q querier, tenantID engine.TenantID, from, to time.Time) ([]engine.LedgerTransaction, error) {
	query := `
		SELECT id, tenant_id, name, amount, currency, kind, date, account_id,
		       counter_account_id, category_id, recurring_id, transfer_group_id,
		       idempotency_key, created_at
		FROM transactions
		WHERE tenant_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, created_at ASC
	`
	rows, err := q.QueryContext(ctx, query, tenantID,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var result []engine.LedgerTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func scanTransaction(rows *sql.Rows) (engine.LedgerTransaction, error) {
	var (
		tx              engine.LedgerTransaction
		amount          string
		currency        string
		date            string
		counterAccount  sql.NullString
		categoryID      sql.NullString
		recurringID     sql.NullString
		transferGroupID sql.NullString
		idempotencyKey  sql.NullString
		createdAt       string
	)

	err := rows.Scan(
		&tx.ID, &tx.TenantID, &tx.Name, &amount, &currency, &tx.Kind, &date,
		&tx.AccountID, &counterAccount, &categoryID, &recurringID,
		&transferGroupID, &idempotencyKey, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Amount = engine.Money{Value: mustDecimal(amount), Currency: currency}
	tx.Date, _ = time.Parse(time.RFC3339, date)
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	tx.IdempotencyKey = idempotencyKey.String
	if counterAccount.Valid {
		a := engine.AccountID(counterAccount.String)
		tx.CounterAccountID = &a
	}
	if categoryID.Valid {
		c := engine.CategoryID(categoryID.String)
		tx.CategoryID = &c
	}
	if recurringID.Valid {
		r := engine.RecurringID(recurringID.String)
		tx.RecurringID = &r
	}
	if transferGroupID.Valid {
		g := engine.TransferGroupID(transferGroupID.String)
		tx.TransferGroupID = &g
	}
	return tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (engine.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. Every operation issued
// through the provided Store view commits or rolls back together.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every Store operation through one *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) FindDueRecurrings(ctx context.Context, tenantID engine.TenantID, asOf time.Time) ([]engine.RecurringDefinition, error) {
	return findDueRecurrings(ctx, ts.tx, tenantID, asOf)
}

func (ts *txStore) GetRecurring(ctx context.Context, tenantID engine.TenantID, id engine.RecurringID) (engine.RecurringDefinition, error) {
	return getRecurring(ctx, ts.tx, tenantID, id)
}

func (ts *txStore) ListRecurrings(ctx context.Context, tenantID engine.TenantID) ([]engine.RecurringDefinition, error) {
	return listRecurrings(ctx, ts.tx, tenantID)
}

func (ts *txStore) SaveRecurring(ctx context.Context, def engine.RecurringDefinition) error {
	return saveRecurring(ctx, ts.tx, def)
}

func (ts *txStore) UpdateRecurringDefinition(ctx context.Context, def engine.RecurringDefinition) error {
	return updateRecurring(ctx, ts.tx, def)
}

func (ts *txStore) GetAccount(ctx context.Context, accountID engine.AccountID) (engine.Account, error) {
	return getAccount(ctx, ts.tx, accountID)
}

func (ts *txStore) GetAccountBalance(ctx context.Context, accountID engine.AccountID) (engine.Money, error) {
	return getAccountBalance(ctx, ts.tx, accountID)
}

func (ts *txStore) ListAccounts(ctx context.Context, tenantID engine.TenantID) ([]engine.Account, error) {
	return listAccounts(ctx, ts.tx, tenantID)
}

func (ts *txStore) SaveAccount(ctx context.Context, account engine.Account) error {
	return saveAccount(ctx, ts.tx, account)
}

func (ts *txStore) ApplyBalanceDelta(ctx context.Context, accountID engine.AccountID, delta engine.Money) error {
	return applyBalanceDelta(ctx, ts.tx, accountID, delta)
}

func (ts *txStore) InsertLedgerTransactions(ctx context.Context, txs []engine.LedgerTransaction) error {
	return insertTransactions(ctx, ts.tx, txs)
}

func (ts *txStore) ListTransactions(ctx context.Context, tenantID engine.TenantID, from, to time.Time) ([]engine.LedgerTransaction, error) {
	return listTransactions(ctx, ts.tx, tenantID, from, to)
}

// =============================================================================
// RUN HISTORY (engine.RunStore interface)
// =============================================================================

func (s *Store) SaveRun(ctx context.Context, run engine.AutoApplyRun) error {
	query := `
		INSERT INTO auto_apply_runs
		(id, tenant_id, started_at, completed_at, applied_count, failed_count, pending_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.TenantID,
		run.StartedAt.UTC().Format(time.RFC3339), nullTime(run.CompletedAt),
		run.AppliedCount, run.FailedCount, run.PendingCount,
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, tenantID engine.TenantID, limit int) ([]engine.AutoApplyRun, error) {
	query := `
		SELECT id, tenant_id, started_at, completed_at, applied_count, failed_count, pending_count, error
		FROM auto_apply_runs
		WHERE tenant_id = ?
		ORDER BY started_at DESC
	`
	args := []any{tenantID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []engine.AutoApplyRun
	for rows.Next() {
		var (
			run         engine.AutoApplyRun
			startedAt   string
			completedAt sql.NullString
			runError    sql.NullString
		)
		if err := rows.Scan(
			&run.ID, &run.TenantID, &startedAt, &completedAt,
			&run.AppliedCount, &run.FailedCount, &run.PendingCount, &runError,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		run.CompletedAt = parseNullTime(completedAt)
		run.Error = runError.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func nullMoney(m *engine.Money) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: m.Value.String(), Valid: true}
}

func nullCategory(id *engine.CategoryID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullAccount(id *engine.AccountID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullRecurring(id *engine.RecurringID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullTransferGroup(id *engine.TransferGroupID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
