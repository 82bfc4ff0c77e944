/*
PURPOSE: Demo dataset for local development.

Seeds one tenant with a realistic household: checking, savings and a
credit card, plus recurring definitions covering every variant the
engine supports (fixed expense, income, transfer, card autopay, and a
flexible-amount utility bill that auto-apply must leave pending).
*/
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/iMuhammadMustafa/Budgeteer-sub007/engine"
)

const DemoTenant engine.TenantID = "demo"

// SeedDemoData populates the store with the demo tenant. Dates are
// anchored to the current month so a fresh seed always has due items.
func SeedDemoData(ctx context.Context, store engine.Store) error {
	now := time.Now().UTC()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	checking := engine.AccountID("acc-checking")
	savings := engine.AccountID("acc-savings")
	card := engine.AccountID("acc-visa")

	accounts := []engine.Account{
		{ID: checking, TenantID: DemoTenant, Name: "Everyday Checking", Category: engine.AccountAsset, Balance: engine.NewMoney(4250, "USD"), Currency: "USD", CreatedAt: now, UpdatedAt: now},
		{ID: savings, TenantID: DemoTenant, Name: "Rainy Day Savings", Category: engine.AccountAsset, Balance: engine.NewMoney(12000, "USD"), Currency: "USD", CreatedAt: now, UpdatedAt: now},
		{ID: card, TenantID: DemoTenant, Name: "Visa Rewards", Category: engine.AccountLiability, Balance: engine.NewMoney(-385.22, "USD"), Currency: "USD", CreatedAt: now, UpdatedAt: now},
	}
	for _, a := range accounts {
		if err := store.SaveAccount(ctx, a); err != nil {
			return fmt.Errorf("seed account %s: %w", a.ID, err)
		}
	}

	rent := engine.NewMoney(1450, "USD")
	salary := engine.NewMoney(5200, "USD")
	transfer := engine.NewMoney(500, "USD")

	defs := []engine.RecurringDefinition{
		{
			ID: "rec-rent", TenantID: DemoTenant, Name: "Rent",
			Type: engine.RecurringStandard, Kind: engine.KindExpense,
			SourceAccountID: checking, Amount: &rent, Currency: "USD",
			Rule: engine.Rule{IntervalMonths: 1, DayOfMonth: 1}, IntervalMonths: 1,
			NextOccurrenceDate: &firstOfMonth,
			AutoApplyEnabled:   true, IsActive: true,
			MaxFailedAttempts: engine.DefaultMaxFailedAttempts,
			CreatedAt:         now, UpdatedAt: now,
		},
		{
			ID: "rec-salary", TenantID: DemoTenant, Name: "Salary",
			Type: engine.RecurringStandard, Kind: engine.KindIncome,
			SourceAccountID: checking, Amount: &salary, Currency: "USD",
			Rule: engine.Rule{IntervalMonths: 1, DayOfMonth: 1}, IntervalMonths: 1,
			NextOccurrenceDate: &firstOfMonth,
			AutoApplyEnabled:   true, IsActive: true,
			MaxFailedAttempts: engine.DefaultMaxFailedAttempts,
			CreatedAt:         now, UpdatedAt: now,
		},
		{
			ID: "rec-savings", TenantID: DemoTenant, Name: "Monthly Savings",
			Type: engine.RecurringTransfer, Kind: engine.KindTransfer,
			SourceAccountID: checking, TransferAccountID: &savings,
			Amount: &transfer, Currency: "USD",
			Rule: engine.Rule{IntervalMonths: 1, DayOfMonth: 2}, IntervalMonths: 1,
			NextOccurrenceDate: dayOf(firstOfMonth, 2),
			AutoApplyEnabled:   true, IsActive: true,
			MaxFailedAttempts: engine.DefaultMaxFailedAttempts,
			CreatedAt:         now, UpdatedAt: now,
		},
		{
			ID: "rec-card-autopay", TenantID: DemoTenant, Name: "Visa Autopay",
			Type: engine.RecurringCreditCardPayment, Kind: engine.KindTransfer,
			SourceAccountID: checking, TransferAccountID: &card,
			Currency: "USD",
			Rule:     engine.Rule{IntervalMonths: 1, DayOfMonth: 15}, IntervalMonths: 1,
			NextOccurrenceDate: dayOf(firstOfMonth, 15),
			AutoApplyEnabled:   true, IsActive: true,
			MaxFailedAttempts: engine.DefaultMaxFailedAttempts,
			CreatedAt:         now, UpdatedAt: now,
		},
		{
			// Flexible amount: auto-apply leaves this pending for the user.
			ID: "rec-utilities", TenantID: DemoTenant, Name: "Utilities",
			Type: engine.RecurringStandard, Kind: engine.KindExpense,
			SourceAccountID: checking, Currency: "USD",
			Rule: engine.Rule{IntervalMonths: 1, DayOfMonth: 20}, IntervalMonths: 1,
			NextOccurrenceDate: dayOf(firstOfMonth, 20),
			IsAmountFlexible:   true,
			AutoApplyEnabled:   true, IsActive: true,
			MaxFailedAttempts: engine.DefaultMaxFailedAttempts,
			CreatedAt:         now, UpdatedAt: now,
		},
	}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("seed recurring %s: %w", def.ID, err)
		}
		if err := store.SaveRecurring(ctx, def); err != nil {
			return fmt.Errorf("seed recurring %s: %w", def.ID, err)
		}
	}
	return nil
}

func dayOf(firstOfMonth time.Time, day int) *time.Time {
	d := firstOfMonth.AddDate(0, 0, day-1)
	return &d
}
