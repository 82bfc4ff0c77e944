// Package store provides engine.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iMuhammadMustafa/Budgeteer-sub007/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	accounts     map[engine.AccountID]engine.Account
	recurrings   map[engine.RecurringID]engine.RecurringDefinition
	transactions []engine.LedgerTransaction
	idempotency  map[string]bool
	runs         []engine.AutoApplyRun
}

func NewMemory() *Memory {
	return &Memory{
		accounts:    make(map[engine.AccountID]engine.Account),
		recurrings:  make(map[engine.RecurringID]engine.RecurringDefinition),
		idempotency: make(map[string]bool),
	}
}

// =============================================================================
// RECURRING DEFINITIONS
// =============================================================================

func (m *Memory) FindDueRecurrings(_ context.Context, tenantID engine.TenantID, asOf time.Time) ([]engine.RecurringDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []engine.RecurringDefinition
	for _, def := range m.recurrings {
		if def.TenantID != tenantID {
			continue
		}
		if engine.Due(def, asOf) {
			due = append(due, def)
		}
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

func (m *Memory) GetRecurring(_ context.Context, tenantID engine.TenantID, id engine.RecurringID) (engine.RecurringDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRecurringLocked(tenantID, id)
}

func (m *Memory) getRecurringLocked(tenantID engine.TenantID, id engine.RecurringID) (engine.RecurringDefinition, error) {
	def, ok := m.recurrings[id]
	if !ok || def.TenantID != tenantID || def.IsDeleted {
		return engine.RecurringDefinition{}, engine.ErrRecurringNotFound
	}
	return def, nil
}

func (m *Memory) ListRecurrings(_ context.Context, tenantID engine.TenantID) ([]engine.RecurringDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var defs []engine.RecurringDefinition
	for _, def := range m.recurrings {
		if def.TenantID == tenantID && !def.IsDeleted {
			defs = append(defs, def)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

func (m *Memory) SaveRecurring(_ context.Context, def engine.RecurringDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recurrings[def.ID] = def
	return nil
}

func (m *Memory) UpdateRecurringDefinition(_ context.Context, def engine.RecurringDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateRecurringLocked(def)
}

func (m *Memory) updateRecurringLocked(def engine.RecurringDefinition) error {
	if _, ok := m.recurrings[def.ID]; !ok {
		return engine.ErrRecurringNotFound
	}
	m.recurrings[def.ID] = def
	return nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) GetAccount(_ context.Context, accountID engine.AccountID) (engine.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[accountID]
	if !ok {
		return engine.Account{}, engine.ErrAccountNotFound
	}
	return account, nil
}

func (m *Memory) GetAccountBalance(_ context.Context, accountID engine.AccountID) (engine.Money, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balanceLocked(accountID)
}

func (m *Memory) balanceLocked(accountID engine.AccountID) (engine.Money, error) {
	account, ok := m.accounts[accountID]
	if !ok {
		return engine.Money{}, engine.ErrAccountNotFound
	}
	return account.Balance, nil
}

func (m *Memory) ListAccounts(_ context.Context, tenantID engine.TenantID) ([]engine.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var accounts []engine.Account
	for _, account := range m.accounts {
		if account.TenantID == tenantID {
			accounts = append(accounts, account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (m *Memory) SaveAccount(_ context.Context, account engine.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *Memory) ApplyBalanceDelta(_ context.Context, accountID engine.AccountID, delta engine.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyDeltaLocked(accountID, delta)
}

func (m *Memory) applyDeltaLocked(accountID engine.AccountID, delta engine.Money) error {
	account, ok := m.accounts[accountID]
	if !ok {
		return engine.ErrAccountNotFound
	}
	account.Balance = account.Balance.Add(delta)
	m.accounts[accountID] = account
	return nil
}

// =============================================================================
// LEDGER TRANSACTIONS
// =============================================================================

func (m *Memory) InsertLedgerTransactions(_ context.Context, txs []engine.LedgerTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertTransactionsLocked(txs)
}

func (m *Memory) insertTransactionsLocked(txs []engine.LedgerTransaction) error {
	// Check all idempotency keys first so the batch is all-or-nothing.
	for _, tx := range txs {
		if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
			return engine.ErrDuplicateIdempotencyKey
		}
	}
	for _, tx := range txs {
		m.transactions = append(m.transactions, tx)
		if tx.IdempotencyKey != "" {
			m.idempotency[tx.IdempotencyKey] = true
		}
	}
	return nil
}

func (m *Memory) ListTransactions(_ context.Context, tenantID engine.TenantID, from, to time.Time) ([]engine.LedgerTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.LedgerTransaction
	for _, tx := range m.transactions {
		if tx.TenantID != tenantID {
			continue
		}
		if tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		result = append(result, tx)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// =============================================================================
// RUN HISTORY
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, run engine.AutoApplyRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) ListRuns(_ context.Context, tenantID engine.TenantID, limit int) ([]engine.AutoApplyRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var runs []engine.AutoApplyRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].TenantID != tenantID {
			continue
		}
		runs = append(runs, m.runs[i])
		if limit > 0 && len(runs) >= limit {
			break
		}
	}
	return runs, nil
}

// =============================================================================
// TRANSACTIONS (WithTx) - Snapshot + rollback on error
// =============================================================================

// WithTx executes fn against a view of this store. On error the previous
// state is restored, so the commit is all-or-nothing.
func (m *Memory) WithTx(_ context.Context, fn func(engine.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	view := &txView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	accounts     map[engine.AccountID]engine.Account
	recurrings   map[engine.RecurringID]engine.RecurringDefinition
	transactions []engine.LedgerTransaction
	idempotency  map[string]bool
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		accounts:     make(map[engine.AccountID]engine.Account, len(m.accounts)),
		recurrings:   make(map[engine.RecurringID]engine.RecurringDefinition, len(m.recurrings)),
		transactions: append([]engine.LedgerTransaction{}, m.transactions...),
		idempotency:  make(map[string]bool, len(m.idempotency)),
	}
	for k, v := range m.accounts {
		s.accounts[k] = v
	}
	for k, v := range m.recurrings {
		s.recurrings[k] = v
	}
	for k, v := range m.idempotency {
		s.idempotency[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.accounts = s.accounts
	m.recurrings = s.recurrings
	m.transactions = s.transactions
	m.idempotency = s.idempotency
}

// txView exposes the parent's unlocked internals to the WithTx callback.
// The parent's mutex is held for the whole transaction.
type txView struct {
	parent *Memory
}

func (tv *txView) FindDueRecurrings(_ context.Context, tenantID engine.TenantID, asOf time.Time) ([]engine.RecurringDefinition, error) {
	var due []engine.RecurringDefinition
	for _, def := range tv.parent.recurrings {
		if def.TenantID == tenantID && engine.Due(def, asOf) {
			due = append(due, def)
		}
	}
	return due, nil
}

func (tv *txView) GetRecurring(_ context.Context, tenantID engine.TenantID, id engine.RecurringID) (engine.RecurringDefinition, error) {
	return tv.parent.getRecurringLocked(tenantID, id)
}

func (tv *txView) ListRecurrings(_ context.Context, tenantID engine.TenantID) ([]engine.RecurringDefinition, error) {
	var defs []engine.RecurringDefinition
	for _, def := range tv.parent.recurrings {
		if def.TenantID == tenantID && !def.IsDeleted {
			defs = append(defs, def)
		}
	}
	return defs, nil
}

func (tv *txView) SaveRecurring(_ context.Context, def engine.RecurringDefinition) error {
	tv.parent.recurrings[def.ID] = def
	return nil
}

func (tv *txView) UpdateRecurringDefinition(_ context.Context, def engine.RecurringDefinition) error {
	return tv.parent.updateRecurringLocked(def)
}

func (tv *txView) GetAccount(_ context.Context, accountID engine.AccountID) (engine.Account, error) {
	account, ok := tv.parent.accounts[accountID]
	if !ok {
		return engine.Account{}, engine.ErrAccountNotFound
	}
	return account, nil
}

func (tv *txView) GetAccountBalance(_ context.Context, accountID engine.AccountID) (engine.Money, error) {
	return tv.parent.balanceLocked(accountID)
}

func (tv *txView) ListAccounts(_ context.Context, tenantID engine.TenantID) ([]engine.Account, error) {
	var accounts []engine.Account
	for _, account := range tv.parent.accounts {
		if account.TenantID == tenantID {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

func (tv *txView) SaveAccount(_ context.Context, account engine.Account) error {
	tv.parent.accounts[account.ID] = account
	return nil
}

func (tv *txView) ApplyBalanceDelta(_ context.Context, accountID engine.AccountID, delta engine.Money) error {
	return tv.parent.applyDeltaLocked(accountID, delta)
}

func (tv *txView) InsertLedgerTransactions(_ context.Context, txs []engine.LedgerTransaction) error {
	return tv.parent.insertTransactionsLocked(txs)
}

func (tv *txView) ListTransactions(_ context.Context, tenantID engine.TenantID, from, to time.Time) ([]engine.LedgerTransaction, error) {
	var result []engine.LedgerTransaction
	for _, tx := range tv.parent.transactions {
		if tx.TenantID == tenantID && !tx.Date.Before(from) && !tx.Date.After(to) {
			result = append(result, tx)
		}
	}
	return result, nil
}
