/*
PURPOSE: HTTP handlers over the engine and its stores.

All routes are tenant-scoped: /api/tenants/{tenantID}/... The handler
resolves the tenant from the path and passes it down explicitly; no
ambient session state.

ERROR MAPPING:
  - validation / parse errors          -> 400
  - ErrRecurringNotFound, ErrAccount.. -> 404
  - ErrDuplicateIdempotencyKey         -> 409
  - everything else                    -> 500

SEE ALSO: server.go for the route table, dto.go for the wire shapes.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iMuhammadMustafa/Budgeteer-sub007/engine"
)

// Handler owns the HTTP surface. Store and Orchestrator are required;
// Runs is optional (run history endpoints 404 without it).
type Handler struct {
	Store        engine.TxStore
	Runs         engine.RunStore
	Orchestrator *engine.Orchestrator
	Log          zerolog.Logger
}

func NewHandler(store engine.TxStore, runs engine.RunStore, log zerolog.Logger) *Handler {
	orc := engine.NewOrchestrator(store)
	orc.Runs = runs
	orc.Log = log
	return &Handler{
		Store:        store,
		Runs:         runs,
		Orchestrator: orc,
		Log:          log,
	}
}

// ===== AUTO-APPLY =====

// RunAutoApply executes one auto-apply pass for the tenant and returns the
// per-item outcome. Safe to call repeatedly: idempotency keys keep a
// replayed pass from double-applying anything.
func (h *Handler) RunAutoApply(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "tenantID"))

	result, err := h.Orchestrator.Run(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "auto-apply run failed", err)
		return
	}

	writeJSON(w, http.StatusOK, applyResultToDTO(result))
}

// ListRuns returns the most recent auto-apply runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled", nil)
		return
	}
	tenantID := engine.TenantID(chi.URLParam(r, "tenantID"))

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
	}

	runs, err := h.Runs.ListRuns(r.Context(), tenantID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, runToDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ===== RECURRINGS =====

func (h *Handler) ListRecurrings(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "tenantID"))

	defs, err := h.Store.ListRecurrings(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list recurrings", err)
		return
	}

	dtos := make([]RecurringDTO, 0, len(defs))
	for _, def := range defs {
		dtos = append(dtos, recurringToDTO(def))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetRecurring(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "tenantID"))
	id := engine.RecurringID(chi.URLParam(r, "recurringID"))

	def, err := h.Store.GetRecurring(r.Context(), tenantID, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recurringToDTO(def))
}

func (h *Handler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "tenantID"))

	var req CreateRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	def, err := h.recurringFromRequest(tenantID, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid recurring definition", err)
		return
	}
	if err := def.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid recurring definition", err)
		return
	}

	if err := h.Store.SaveRecurring(r.Context(), def); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save recurring", err)
		return
	}

	h.Log.Info().
		Str("tenant", string(tenantID)).
		Str("recurring", string(def.ID)).
		Str("type", string(def.Type)).
		Msg("recurring created")

	writeJSON(w, http.StatusCreated, recurringToDTO(def))
}

// UpdateRecurring applies a partial update to a definition's mutable
// fields. The merged definition is re-validated before it is stored.
func (h *Handler) UpdateRecurring(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "tenantID"))
	id := engine.RecurringID(chi.URLParam(r, "recurringID"))

	var req UpdateRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	def, err := h.Store.GetRecurring(r.Context(), tenantID, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if err := applyRecurringPatch(&def, req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update", err)
		return
	}
	if err := def.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid recurring definition", err)
		return
	}
	def.UpdatedAt = time.Now().UTC()

	if err := h.Store.UpdateRecurringDefinition(r.Context(), def); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recurringToDTO(def))
}

// DeleteRecurring soft-deletes: the definition drops out of listing and
// selection but its ledger transactions keep their backlink.
func (h *Handler) DeleteRecurring(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "tenantID"))
	id := engine.RecurringID(chi.URLParam(r, "recurringID"))

	def, err := h.Store.GetRecurring(r.Context(), tenantID, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	def.IsDeleted = true
	def.UpdatedAt = time.Now().UTC()
	if err := h.Store.UpdateRecurringDefinition(r.Context(), def); err != nil {
		writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ExecuteRecurring applies one definition now, on the user's initiative.
// Unlike the auto path, a skip here is surfaced to the caller and does not
// count against the failure threshold.
func (h *Handler) ExecuteRecurring(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "tenantID"))
	id := engine.RecurringID(chi.URLParam(r, "recurringID"))

	var req ExecuteRecurringRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	ov, err := h.overrideFromRequest(r.Context(), tenantID, id, req)
	if err != nil {
		if engine.IsNotFound(err) {
			writeStoreError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid overrides", err)
		return
	}

	mat, err := h.Orchestrator.ExecuteOne(r.Context(), tenantID, id, ov)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if mat.Skipped() {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "execution skipped",
			Details: string(mat.Skip),
		})
		return
	}

	txs := make([]TransactionDTO, 0, len(mat.Transactions))
	for _, tx := range mat.Transactions {
		txs = append(txs, transactionToDTO(tx))
	}
	writeJSON(w, http.StatusOK, txs)
}

// ReactivateRecurring clears the failure counter and re-enables a
// definition deactivated by repeated failures.
func (h *Handler) ReactivateRecurring(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "tenantID"))
	id := engine.RecurringID(chi.URLParam(r, "recurringID"))

	def, err := h.Orchestrator.Reactivate(r.Context(), tenantID, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recurringToDTO(def))
}

// ===== ACCOUNTS =====

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "tenantID"))

	accounts, err := h.Store.ListAccounts(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		dtos = append(dtos, accountToDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := engine.AccountID(chi.URLParam(r, "accountID"))

	account, err := h.Store.GetAccount(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountToDTO(account))
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "tenantID"))

	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" || req.Currency == "" {
		writeError(w, http.StatusBadRequest, "name and currency are required", nil)
		return
	}

	category := engine.AccountCategory(req.Category)
	if category != engine.AccountAsset && category != engine.AccountLiability {
		writeError(w, http.StatusBadRequest, "category must be asset or liability", nil)
		return
	}

	balance := engine.ZeroMoney(req.Currency)
	if req.Balance != "" {
		var err error
		balance, err = engine.MoneyFromString(req.Balance, req.Currency)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid balance", err)
			return
		}
	}

	now := time.Now().UTC()
	account := engine.Account{
		ID:        engine.AccountID(req.ID),
		TenantID:  tenantID,
		Name:      req.Name,
		Category:  category,
		Balance:   balance,
		Currency:  req.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if account.ID == "" {
		account.ID = engine.AccountID(uuid.NewString())
	}

	if err := h.Store.SaveAccount(r.Context(), account); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save account", err)
		return
	}
	writeJSON(w, http.StatusCreated, accountToDTO(account))
}

// ===== TRANSACTIONS =====

// ListTransactions returns the tenant's ledger for a date range. Defaults
// to the trailing 90 days when from/to are omitted.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	tenantID := engine.TenantID(chi.URLParam(r, "tenantID"))

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -90)
	to := now

	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse(dateLayout, raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date", err)
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse(dateLayout, raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date", err)
			return
		}
	}

	txs, err := h.Store.ListTransactions(r.Context(), tenantID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, transactionToDTO(tx))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ===== REQUEST CONVERSION =====

func (h *Handler) recurringFromRequest(tenantID engine.TenantID, req CreateRecurringRequest) (engine.RecurringDefinition, error) {
	now := time.Now().UTC()

	def := engine.RecurringDefinition{
		ID:               engine.RecurringID(req.ID),
		TenantID:         tenantID,
		Name:             req.Name,
		Type:             engine.RecurringType(req.Type),
		Kind:             engine.TransactionKind(req.Kind),
		SourceAccountID:  engine.AccountID(req.SourceAccountID),
		Currency:         req.Currency,
		Rule:             engine.Rule{IntervalMonths: req.IntervalMonths, DayOfMonth: req.DayOfMonth},
		IntervalMonths:   req.IntervalMonths,
		IsAmountFlexible: req.IsAmountFlexible,
		IsDateFlexible:   req.IsDateFlexible,
		AutoApplyEnabled: req.AutoApplyEnabled,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if def.ID == "" {
		def.ID = engine.RecurringID(uuid.NewString())
	}
	def.MaxFailedAttempts = req.MaxFailedAttempts
	if def.MaxFailedAttempts == 0 {
		def.MaxFailedAttempts = engine.DefaultMaxFailedAttempts
	}
	if req.TransferAccountID != nil {
		id := engine.AccountID(*req.TransferAccountID)
		def.TransferAccountID = &id
	}
	if req.CategoryID != nil {
		id := engine.CategoryID(*req.CategoryID)
		def.CategoryID = &id
	}
	if req.Amount != nil {
		m, err := engine.MoneyFromString(*req.Amount, req.Currency)
		if err != nil {
			return engine.RecurringDefinition{}, err
		}
		if !m.IsPositive() {
			return engine.RecurringDefinition{}, fmt.Errorf("amount must be positive, got %s", m)
		}
		def.Amount = &m
	}
	if req.NextOccurrenceDate != nil {
		d, err := time.Parse(dateLayout, *req.NextOccurrenceDate)
		if err != nil {
			return engine.RecurringDefinition{}, fmt.Errorf("invalid nextOccurrenceDate: %w", err)
		}
		def.NextOccurrenceDate = &d
	}
	if req.EndDate != nil {
		d, err := time.Parse(dateLayout, *req.EndDate)
		if err != nil {
			return engine.RecurringDefinition{}, fmt.Errorf("invalid endDate: %w", err)
		}
		def.EndDate = &d
	}
	return def, nil
}

func applyRecurringPatch(def *engine.RecurringDefinition, req UpdateRecurringRequest) error {
	if req.Name != nil {
		def.Name = *req.Name
	}
	if req.CategoryID != nil {
		if *req.CategoryID == "" {
			def.CategoryID = nil
		} else {
			id := engine.CategoryID(*req.CategoryID)
			def.CategoryID = &id
		}
	}
	if req.Amount != nil {
		if *req.Amount == "" {
			def.Amount = nil
			def.IsAmountFlexible = true
		} else {
			m, err := engine.MoneyFromString(*req.Amount, def.Currency)
			if err != nil {
				return err
			}
			if !m.IsPositive() {
				return fmt.Errorf("amount must be positive, got %s", m)
			}
			def.Amount = &m
			def.IsAmountFlexible = false
		}
	}
	if req.IntervalMonths != nil {
		def.IntervalMonths = *req.IntervalMonths
		def.Rule.IntervalMonths = *req.IntervalMonths
	}
	if req.DayOfMonth != nil {
		def.Rule.DayOfMonth = *req.DayOfMonth
	}
	if req.NextOccurrenceDate != nil {
		if *req.NextOccurrenceDate == "" {
			def.NextOccurrenceDate = nil
			def.IsDateFlexible = true
		} else {
			d, err := time.Parse(dateLayout, *req.NextOccurrenceDate)
			if err != nil {
				return fmt.Errorf("invalid nextOccurrenceDate: %w", err)
			}
			def.NextOccurrenceDate = &d
			def.IsDateFlexible = false
		}
	}
	if req.EndDate != nil {
		if *req.EndDate == "" {
			def.EndDate = nil
		} else {
			d, err := time.Parse(dateLayout, *req.EndDate)
			if err != nil {
				return fmt.Errorf("invalid endDate: %w", err)
			}
			def.EndDate = &d
		}
	}
	if req.AutoApplyEnabled != nil {
		def.AutoApplyEnabled = *req.AutoApplyEnabled
	}
	if req.MaxFailedAttempts != nil {
		def.MaxFailedAttempts = *req.MaxFailedAttempts
	}
	return nil
}

// overrideFromRequest needs the definition's currency to parse the amount,
// hence the store read.
func (h *Handler) overrideFromRequest(ctx context.Context, tenantID engine.TenantID, id engine.RecurringID, req ExecuteRecurringRequest) (engine.Override, error) {
	var ov engine.Override
	if req.Date != nil {
		d, err := time.Parse(dateLayout, *req.Date)
		if err != nil {
			return ov, fmt.Errorf("invalid date: %w", err)
		}
		ov.Date = &d
	}
	if req.Amount != nil {
		def, err := h.Store.GetRecurring(ctx, tenantID, id)
		if err != nil {
			return ov, err
		}
		m, err := engine.MoneyFromString(*req.Amount, def.Currency)
		if err != nil {
			return ov, err
		}
		if !m.IsPositive() {
			return ov, fmt.Errorf("amount must be positive, got %s", m)
		}
		ov.Amount = &m
	}
	return ov, nil
}

// ===== RESPONSE HELPERS =====

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps engine errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, engine.ErrDuplicateIdempotencyKey):
		writeError(w, http.StatusConflict, "duplicate apply", err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, "invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
