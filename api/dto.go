/*
PURPOSE: Request/response shapes for the HTTP API.

Conventions:
  - DTO suffix for resource representations, Request/Response for
    operation payloads.
  - Money travels as a decimal string plus a currency code so clients
    never see float rounding.
  - Dates are "YYYY-MM-DD"; timestamps are RFC 3339.
  - Validation is done in handlers, not in DTOs.

SEE ALSO: handlers.go for the conversion helpers.
*/
package api

import (
	"time"

	"github.com/iMuhammadMustafa/Budgeteer-sub007/engine"
)

const dateLayout = "2006-01-02"

// ===== ACCOUNTS =====

type AccountDTO struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

type CreateAccountRequest struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// ===== RECURRINGS =====

type RecurringDTO struct {
	ID                 string  `json:"id"`
	TenantID           string  `json:"tenantId"`
	Name               string  `json:"name"`
	Type               string  `json:"type"`
	Kind               string  `json:"kind"`
	SourceAccountID    string  `json:"sourceAccountId"`
	TransferAccountID  *string `json:"transferAccountId,omitempty"`
	CategoryID         *string `json:"categoryId,omitempty"`
	Amount             *string `json:"amount,omitempty"`
	Currency           string  `json:"currency"`
	IntervalMonths     int     `json:"intervalMonths"`
	DayOfMonth         int     `json:"dayOfMonth,omitempty"`
	NextOccurrenceDate *string `json:"nextOccurrenceDate,omitempty"`
	EndDate            *string `json:"endDate,omitempty"`
	IsAmountFlexible   bool    `json:"isAmountFlexible"`
	IsDateFlexible     bool    `json:"isDateFlexible"`
	AutoApplyEnabled   bool    `json:"autoApplyEnabled"`
	IsActive           bool    `json:"isActive"`
	FailedAttempts     int     `json:"failedAttempts"`
	MaxFailedAttempts  int     `json:"maxFailedAttempts"`
	LastAutoAppliedAt  *string `json:"lastAutoAppliedAt,omitempty"`
}

type CreateRecurringRequest struct {
	ID                 string  `json:"id,omitempty"`
	Name               string  `json:"name"`
	Type               string  `json:"type"`
	Kind               string  `json:"kind"`
	SourceAccountID    string  `json:"sourceAccountId"`
	TransferAccountID  *string `json:"transferAccountId,omitempty"`
	CategoryID         *string `json:"categoryId,omitempty"`
	Amount             *string `json:"amount,omitempty"`
	Currency           string  `json:"currency"`
	IntervalMonths     int     `json:"intervalMonths"`
	DayOfMonth         int     `json:"dayOfMonth,omitempty"`
	NextOccurrenceDate *string `json:"nextOccurrenceDate,omitempty"`
	EndDate            *string `json:"endDate,omitempty"`
	IsAmountFlexible   bool    `json:"isAmountFlexible"`
	IsDateFlexible     bool    `json:"isDateFlexible"`
	AutoApplyEnabled   bool    `json:"autoApplyEnabled"`
	MaxFailedAttempts  int     `json:"maxFailedAttempts,omitempty"`
}

// UpdateRecurringRequest is a partial update; nil fields keep the stored
// value. Amount and NextOccurrenceDate accept the empty string to clear
// the field (flip to flexible).
type UpdateRecurringRequest struct {
	Name               *string `json:"name,omitempty"`
	CategoryID         *string `json:"categoryId,omitempty"`
	Amount             *string `json:"amount,omitempty"`
	IntervalMonths     *int    `json:"intervalMonths,omitempty"`
	DayOfMonth         *int    `json:"dayOfMonth,omitempty"`
	NextOccurrenceDate *string `json:"nextOccurrenceDate,omitempty"`
	EndDate            *string `json:"endDate,omitempty"`
	AutoApplyEnabled   *bool   `json:"autoApplyEnabled,omitempty"`
	MaxFailedAttempts  *int    `json:"maxFailedAttempts,omitempty"`
}

// ExecuteRecurringRequest carries the optional per-execution overrides
// for a manual apply. A nil field means "use the stored value".
type ExecuteRecurringRequest struct {
	Amount *string `json:"amount,omitempty"`
	Date   *string `json:"date,omitempty"`
}

// ===== TRANSACTIONS =====

type TransactionDTO struct {
	ID               string  `json:"id"`
	TenantID         string  `json:"tenantId"`
	Name             string  `json:"name"`
	Kind             string  `json:"kind"`
	AccountID        string  `json:"accountId"`
	CounterAccountID *string `json:"counterAccountId,omitempty"`
	CategoryID       *string `json:"categoryId,omitempty"`
	Amount           string  `json:"amount"`
	Currency         string  `json:"currency"`
	Date             string  `json:"date"`
	RecurringID      *string `json:"recurringId,omitempty"`
	TransferGroupID  *string `json:"transferGroupId,omitempty"`
	CreatedAt        string  `json:"createdAt"`
}

// ===== AUTO-APPLY =====

type AppliedItemDTO struct {
	RecurringID  string           `json:"recurringId"`
	Transactions []TransactionDTO `json:"transactions"`
	NextDue      *string          `json:"nextDue,omitempty"`
}

type FailedItemDTO struct {
	RecurringID string `json:"recurringId"`
	Reason      string `json:"reason"`
	Deactivated bool   `json:"deactivated"`
}

type PendingItemDTO struct {
	RecurringID string `json:"recurringId"`
	Reason      string `json:"reason"`
	Deactivated bool   `json:"deactivated"`
}

type ApplyResultDTO struct {
	TenantID     string           `json:"tenantId"`
	RanAt        string           `json:"ranAt"`
	AppliedCount int              `json:"appliedCount"`
	FailedCount  int              `json:"failedCount"`
	PendingCount int              `json:"pendingCount"`
	Applied      []AppliedItemDTO `json:"applied"`
	Failed       []FailedItemDTO  `json:"failed"`
	Pending      []PendingItemDTO `json:"pending"`
}

type RunDTO struct {
	ID           string  `json:"id"`
	TenantID     string  `json:"tenantId"`
	StartedAt    string  `json:"startedAt"`
	CompletedAt  *string `json:"completedAt,omitempty"`
	AppliedCount int     `json:"appliedCount"`
	FailedCount  int     `json:"failedCount"`
	PendingCount int     `json:"pendingCount"`
	Error        string  `json:"error,omitempty"`
}

// ===== ERRORS =====

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ===== CONVERSIONS =====

func accountToDTO(a engine.Account) AccountDTO {
	return AccountDTO{
		ID:       string(a.ID),
		TenantID: string(a.TenantID),
		Name:     a.Name,
		Category: string(a.Category),
		Balance:  a.Balance.String(),
		Currency: a.Currency,
	}
}

func recurringToDTO(def engine.RecurringDefinition) RecurringDTO {
	dto := RecurringDTO{
		ID:                string(def.ID),
		TenantID:          string(def.TenantID),
		Name:              def.Name,
		Type:              string(def.Type),
		Kind:              string(def.Kind),
		SourceAccountID:   string(def.SourceAccountID),
		Currency:          def.Currency,
		IntervalMonths:    def.Rule.IntervalMonths,
		DayOfMonth:        def.Rule.DayOfMonth,
		IsAmountFlexible:  def.IsAmountFlexible,
		IsDateFlexible:    def.IsDateFlexible,
		AutoApplyEnabled:  def.AutoApplyEnabled,
		IsActive:          def.IsActive,
		FailedAttempts:    def.FailedAttempts,
		MaxFailedAttempts: def.MaxFailedAttempts,
	}
	if def.TransferAccountID != nil {
		s := string(*def.TransferAccountID)
		dto.TransferAccountID = &s
	}
	if def.CategoryID != nil {
		s := string(*def.CategoryID)
		dto.CategoryID = &s
	}
	if def.Amount != nil {
		s := def.Amount.String()
		dto.Amount = &s
	}
	if def.NextOccurrenceDate != nil {
		s := def.NextOccurrenceDate.Format(dateLayout)
		dto.NextOccurrenceDate = &s
	}
	if def.EndDate != nil {
		s := def.EndDate.Format(dateLayout)
		dto.EndDate = &s
	}
	if def.LastAutoAppliedAt != nil {
		s := def.LastAutoAppliedAt.Format(time.RFC3339)
		dto.LastAutoAppliedAt = &s
	}
	return dto
}

func transactionToDTO(tx engine.LedgerTransaction) TransactionDTO {
	dto := TransactionDTO{
		ID:        string(tx.ID),
		TenantID:  string(tx.TenantID),
		Name:      tx.Name,
		Kind:      string(tx.Kind),
		AccountID: string(tx.AccountID),
		Amount:    tx.Amount.String(),
		Currency:  tx.Amount.Currency,
		Date:      tx.Date.Format(dateLayout),
		CreatedAt: tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.CounterAccountID != nil {
		s := string(*tx.CounterAccountID)
		dto.CounterAccountID = &s
	}
	if tx.CategoryID != nil {
		s := string(*tx.CategoryID)
		dto.CategoryID = &s
	}
	if tx.RecurringID != nil {
		s := string(*tx.RecurringID)
		dto.RecurringID = &s
	}
	if tx.TransferGroupID != nil {
		s := string(*tx.TransferGroupID)
		dto.TransferGroupID = &s
	}
	return dto
}

func applyResultToDTO(res engine.ApplyResult) ApplyResultDTO {
	dto := ApplyResultDTO{
		TenantID:     string(res.TenantID),
		RanAt:        res.RanAt.Format(time.RFC3339),
		AppliedCount: res.AppliedCount(),
		FailedCount:  res.FailedCount(),
		PendingCount: res.PendingCount(),
		Applied:      []AppliedItemDTO{},
		Failed:       []FailedItemDTO{},
		Pending:      []PendingItemDTO{},
	}
	for _, it := range res.Applied {
		txs := make([]TransactionDTO, 0, len(it.Transactions))
		for _, tx := range it.Transactions {
			txs = append(txs, transactionToDTO(tx))
		}
		item := AppliedItemDTO{
			RecurringID:  string(it.RecurringID),
			Transactions: txs,
		}
		if it.NextDue != nil {
			s := it.NextDue.Format(dateLayout)
			item.NextDue = &s
		}
		dto.Applied = append(dto.Applied, item)
	}
	for _, it := range res.Failed {
		dto.Failed = append(dto.Failed, FailedItemDTO{
			RecurringID: string(it.RecurringID),
			Reason:      it.Reason,
			Deactivated: it.Deactivated,
		})
	}
	for _, it := range res.Pending {
		dto.Pending = append(dto.Pending, PendingItemDTO{
			RecurringID: string(it.RecurringID),
			Reason:      string(it.Skip),
			Deactivated: it.Deactivated,
		})
	}
	return dto
}

func runToDTO(run engine.AutoApplyRun) RunDTO {
	dto := RunDTO{
		ID:           run.ID,
		TenantID:     string(run.TenantID),
		StartedAt:    run.StartedAt.Format(time.RFC3339),
		AppliedCount: run.AppliedCount,
		FailedCount:  run.FailedCount,
		PendingCount: run.PendingCount,
		Error:        run.Error,
	}
	if run.CompletedAt != nil {
		s := run.CompletedAt.Format(time.RFC3339)
		dto.CompletedAt = &s
	}
	return dto
}
