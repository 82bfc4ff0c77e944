package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/iMuhammadMustafa/Budgeteer-sub007/engine"
)

func TestValidate_Definitions(t *testing.T) {
	due := date(2026, time.March, 1)

	tests := []struct {
		name    string
		mutate  func(*engine.RecurringDefinition)
		wantErr error
	}{
		{"valid standard expense", func(d *engine.RecurringDefinition) {}, nil},
		{"interval too large", func(d *engine.RecurringDefinition) { d.IntervalMonths = 25 }, engine.ErrInvalidSchedule},
		{"interval zero", func(d *engine.RecurringDefinition) { d.IntervalMonths = 0 }, engine.ErrInvalidSchedule},
		{"flexible with amount set", func(d *engine.RecurringDefinition) { d.IsAmountFlexible = true }, engine.ErrFlexibleAmountSet},
		{"fixed without amount", func(d *engine.RecurringDefinition) { d.Amount = nil }, engine.ErrAmountRequired},
		{"flexible date with date set", func(d *engine.RecurringDefinition) { d.IsDateFlexible = true }, engine.ErrFlexibleDateSet},
		{"standard with transfer kind", func(d *engine.RecurringDefinition) { d.Kind = engine.KindTransfer }, engine.ErrInvalidKind},
		{"negative failure counter", func(d *engine.RecurringDefinition) { d.FailedAttempts = -1 }, engine.ErrInvalidFailureState},
		{
			"transfer without destination",
			func(d *engine.RecurringDefinition) {
				d.Type = engine.RecurringTransfer
				d.Kind = engine.KindTransfer
			},
			engine.ErrInvalidTransfer,
		},
		{
			"transfer to itself",
			func(d *engine.RecurringDefinition) {
				d.Type = engine.RecurringTransfer
				d.Kind = engine.KindTransfer
				d.TransferAccountID = accountIDPtr(d.SourceAccountID)
			},
			engine.ErrInvalidTransfer,
		},
		{
			"card payment without amount is valid",
			func(d *engine.RecurringDefinition) {
				d.Type = engine.RecurringCreditCardPayment
				d.Kind = engine.KindTransfer
				d.Amount = nil
				d.TransferAccountID = accountIDPtr("acc-card")
			},
			nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			def := expenseDef("rec-1", 100, due)
			tc.mutate(&def)

			err := def.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestMoney_Arithmetic(t *testing.T) {
	// GIVEN: Amounts that trip binary floating point (0.1 + 0.2)
	// WHEN: Adding and comparing
	// THEN: Exact decimal results

	a, err := engine.MoneyFromString("0.1", "USD")
	if err != nil {
		t.Fatal(err)
	}
	b, err := engine.MoneyFromString("0.2", "USD")
	if err != nil {
		t.Fatal(err)
	}

	sum := a.Add(b)
	want, _ := engine.MoneyFromString("0.3", "USD")
	if !sum.Equal(want) {
		t.Errorf("expected exactly 0.3, got %s", sum)
	}
	if sum.Neg().Add(sum).IsZero() != true {
		t.Error("x + (-x) must be zero")
	}
}

func TestMoneyFromString_Invalid(t *testing.T) {
	if _, err := engine.MoneyFromString("12,50", "USD"); err == nil {
		t.Error("expected parse error for comma decimal")
	}
}
