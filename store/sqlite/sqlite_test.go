package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iMuhammadMustafa/Budgeteer-sub007/engine"
	"github.com/iMuhammadMustafa/Budgeteer-sub007/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const tenant engine.TenantID = "tenant-1"

func usd(v float64) engine.Money { return engine.NewMoney(v, "USD") }

func newTestSQLite(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedAccount(t *testing.T, s *sqlite.Store, id engine.AccountID, balance float64) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, s.SaveAccount(context.Background(), engine.Account{
		ID: id, TenantID: tenant, Name: string(id),
		Category: engine.AccountAsset, Balance: usd(balance), Currency: "USD",
		CreatedAt: now, UpdatedAt: now,
	}))
}

func sampleDef(id engine.RecurringID, due time.Time) engine.RecurringDefinition {
	amount := usd(100)
	now := time.Now().UTC()
	return engine.RecurringDefinition{
		ID: id, TenantID: tenant, Name: "Rent",
		Type: engine.RecurringStandard, Kind: engine.KindExpense,
		SourceAccountID: "acc-1", Amount: &amount, Currency: "USD",
		Rule: engine.Rule{IntervalMonths: 1, DayOfMonth: 1}, IntervalMonths: 1,
		NextOccurrenceDate: &due,
		AutoApplyEnabled:   true, IsActive: true,
		MaxFailedAttempts: engine.DefaultMaxFailedAttempts,
		CreatedAt:         now, UpdatedAt: now,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// RECURRING ROUND-TRIPS
// =============================================================================

func TestSQLite_Recurring_SaveAndGet(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	def := sampleDef("rec-1", day(2026, time.March, 1))
	require.NoError(t, s.SaveRecurring(ctx, def))

	got, err := s.GetRecurring(ctx, tenant, "rec-1")
	require.NoError(t, err)

	assert.Equal(t, def.Name, got.Name)
	assert.Equal(t, def.Type, got.Type)
	assert.Equal(t, def.Kind, got.Kind)
	assert.Equal(t, def.Rule, got.Rule)
	require.NotNil(t, got.Amount)
	assert.True(t, got.Amount.Equal(*def.Amount))
	require.NotNil(t, got.NextOccurrenceDate)
	assert.True(t, got.NextOccurrenceDate.Equal(*def.NextOccurrenceDate))
	assert.True(t, got.AutoApplyEnabled)
	assert.True(t, got.IsActive)
}

func TestSQLite_Recurring_NotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetRecurring(context.Background(), tenant, "nope")
	assert.True(t, errors.Is(err, engine.ErrRecurringNotFound))
}

func TestSQLite_Recurring_UpdateMissing_NotFound(t *testing.T) {
	s := newTestSQLite(t)

	err := s.UpdateRecurringDefinition(context.Background(), sampleDef("ghost", day(2026, time.March, 1)))
	assert.True(t, errors.Is(err, engine.ErrRecurringNotFound))
}

func TestSQLite_FindDueRecurrings_FiltersAndOrders(t *testing.T) {
	// GIVEN: A mix of due, future, disabled and flexible definitions
	// WHEN: Querying the due set as of March 15
	// THEN: Only the due ones, ordered by date then id

	s := newTestSQLite(t)
	ctx := context.Background()

	due1 := sampleDef("rec-b", day(2026, time.March, 1))
	due2 := sampleDef("rec-a", day(2026, time.March, 1))
	future := sampleDef("rec-future", day(2026, time.April, 1))
	disabled := sampleDef("rec-off", day(2026, time.March, 1))
	disabled.AutoApplyEnabled = false
	flexible := sampleDef("rec-flex", day(2026, time.March, 1))
	flexible.NextOccurrenceDate = nil
	flexible.IsDateFlexible = true
	flexible.Amount = nil
	flexible.IsAmountFlexible = true

	for _, def := range []engine.RecurringDefinition{due1, due2, future, disabled, flexible} {
		require.NoError(t, s.SaveRecurring(ctx, def))
	}

	got, err := s.FindDueRecurrings(ctx, tenant, day(2026, time.March, 15))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, engine.RecurringID("rec-a"), got[0].ID)
	assert.Equal(t, engine.RecurringID("rec-b"), got[1].ID)
}

// =============================================================================
// ACCOUNTS AND BALANCES
// =============================================================================

func TestSQLite_Account_SaveGetAndDelta(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	seedAccount(t, s, "acc-1", 250.75)

	balance, err := s.GetAccountBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(usd(250.75)))

	require.NoError(t, s.ApplyBalanceDelta(ctx, "acc-1", usd(-100.25)))

	balance, err = s.GetAccountBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(usd(150.50)), "decimal arithmetic must be exact, got %s", balance)
}

func TestSQLite_Account_NotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetAccount(context.Background(), "nope")
	assert.True(t, errors.Is(err, engine.ErrAccountNotFound))
}

// =============================================================================
// LEDGER AND IDEMPOTENCY
// =============================================================================

func TestSQLite_InsertTransactions_DuplicateKey_Rejected(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	seedAccount(t, s, "acc-1", 100)

	tx := engine.LedgerTransaction{
		ID: "tx-1", TenantID: tenant, Name: "t", AccountID: "acc-1",
		Amount: usd(-10), Kind: engine.KindExpense,
		Date: day(2026, time.March, 1), IdempotencyKey: "rec-1:2026-03-01",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InsertLedgerTransactions(ctx, []engine.LedgerTransaction{tx}))

	dup := tx
	dup.ID = "tx-2"
	err := s.InsertLedgerTransactions(ctx, []engine.LedgerTransaction{dup})
	assert.True(t, errors.Is(err, engine.ErrDuplicateIdempotencyKey), "got %v", err)
}

func TestSQLite_ListTransactions_DateRange(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	seedAccount(t, s, "acc-1", 100)

	for i, d := range []time.Time{day(2026, time.January, 5), day(2026, time.February, 5), day(2026, time.March, 5)} {
		tx := engine.LedgerTransaction{
			ID: engine.TransactionID(string(rune('a' + i))), TenantID: tenant,
			Name: "t", AccountID: "acc-1", Amount: usd(-1), Kind: engine.KindExpense,
			Date: d, IdempotencyKey: d.Format("2006-01-02"), CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, s.InsertLedgerTransactions(ctx, []engine.LedgerTransaction{tx}))
	}

	got, err := s.ListTransactions(ctx, tenant, day(2026, time.January, 10), day(2026, time.March, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Date.Equal(day(2026, time.February, 5)))
}

// =============================================================================
// TRANSACTIONAL COMMITS
// =============================================================================

func TestSQLite_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: An account at $100
	// WHEN: A transaction moves money then fails
	// THEN: The delta is not visible afterwards

	s := newTestSQLite(t)
	ctx := context.Background()
	seedAccount(t, s, "acc-1", 100)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(txs engine.Store) error {
		if err := txs.ApplyBalanceDelta(ctx, "acc-1", usd(-40)); err != nil {
			return err
		}
		return boom
	})
	require.True(t, errors.Is(err, boom))

	balance, err := s.GetAccountBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(usd(100)))
}

func TestSQLite_WithTx_CommitsTogether(t *testing.T) {
	// GIVEN: An account and a due definition
	// WHEN: Insert + delta + definition update run in one transaction
	// THEN: All three are visible afterwards

	s := newTestSQLite(t)
	ctx := context.Background()
	seedAccount(t, s, "acc-1", 100)
	def := sampleDef("rec-1", day(2026, time.March, 1))
	require.NoError(t, s.SaveRecurring(ctx, def))

	next := day(2026, time.April, 1)
	def.NextOccurrenceDate = &next

	err := s.WithTx(ctx, func(txs engine.Store) error {
		tx := engine.LedgerTransaction{
			ID: "tx-1", TenantID: tenant, Name: "Rent", AccountID: "acc-1",
			Amount: usd(-100), Kind: engine.KindExpense,
			Date: day(2026, time.March, 1), IdempotencyKey: "rec-1:2026-03-01",
			CreatedAt: time.Now().UTC(),
		}
		if err := txs.InsertLedgerTransactions(ctx, []engine.LedgerTransaction{tx}); err != nil {
			return err
		}
		if err := txs.ApplyBalanceDelta(ctx, "acc-1", usd(-100)); err != nil {
			return err
		}
		return txs.UpdateRecurringDefinition(ctx, def)
	})
	require.NoError(t, err)

	balance, err := s.GetAccountBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(usd(0)))

	stored, err := s.GetRecurring(ctx, tenant, "rec-1")
	require.NoError(t, err)
	assert.True(t, stored.NextOccurrenceDate.Equal(next))

	got, err := s.ListTransactions(ctx, tenant, day(2026, time.January, 1), day(2026, time.December, 31))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

// =============================================================================
// RUN HISTORY
// =============================================================================

func TestSQLite_RunHistory_NewestFirst(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		started := day(2026, time.March, 1).Add(time.Duration(i) * time.Hour)
		completed := started.Add(time.Second)
		require.NoError(t, s.SaveRun(ctx, engine.AutoApplyRun{
			ID: string(rune('a' + i)), TenantID: tenant,
			StartedAt: started, CompletedAt: &completed,
			AppliedCount: i,
		}))
	}

	runs, err := s.ListRuns(ctx, tenant, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].AppliedCount)
	assert.Equal(t, 1, runs[1].AppliedCount)
}
