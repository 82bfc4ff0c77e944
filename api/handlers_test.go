package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iMuhammadMustafa/Budgeteer-sub007/api"
	"github.com/iMuhammadMustafa/Budgeteer-sub007/engine"
	"github.com/iMuhammadMustafa/Budgeteer-sub007/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	h := api.NewHandler(m, m, zerolog.Nop())
	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, m
}

func seedDemo(t *testing.T, m *store.Memory) {
	t.Helper()
	require.NoError(t, api.SeedDemoData(context.Background(), m))
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// =============================================================================
// AUTO-APPLY ENDPOINT
// =============================================================================

func TestAPI_RunAutoApply_AppliesSeedData(t *testing.T) {
	// GIVEN: The seeded demo tenant; rent and salary are always due on the
	//        first of the current month
	// WHEN: POSTing an auto-apply run
	// THEN: 200 with applied items and no hard failures

	srv, m := newTestServer(t)
	seedDemo(t, m)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tenants/demo/autoapply/run", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[map[string]any](t, resp)
	assert.GreaterOrEqual(t, result["appliedCount"].(float64), 2.0)
	assert.Equal(t, 0.0, result["failedCount"].(float64))
}

func TestAPI_RunAutoApply_SecondRunIsIdempotent(t *testing.T) {
	// GIVEN: A tenant already applied this cycle
	// WHEN: Running again the same day
	// THEN: Nothing new applies; the advanced schedules are respected

	srv, m := newTestServer(t)
	seedDemo(t, m)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tenants/demo/autoapply/run", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[map[string]any](t, resp)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/tenants/demo/autoapply/run", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[map[string]any](t, resp)

	assert.Greater(t, first["appliedCount"].(float64), 0.0)
	assert.Equal(t, 0.0, second["appliedCount"].(float64))
}

func TestAPI_ListRuns_ReturnsHistory(t *testing.T) {
	srv, m := newTestServer(t)
	seedDemo(t, m)

	doJSON(t, http.MethodPost, srv.URL+"/api/tenants/demo/autoapply/run", nil).Body.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/tenants/demo/autoapply/runs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	runs := decode[[]map[string]any](t, resp)
	require.Len(t, runs, 1)
	assert.NotEmpty(t, runs[0]["id"])
}

// =============================================================================
// RECURRINGS CRUD
// =============================================================================

func TestAPI_CreateAndGetRecurring(t *testing.T) {
	srv, m := newTestServer(t)
	seedDemo(t, m)

	body := map[string]any{
		"name":               "Gym",
		"type":               "standard",
		"kind":               "expense",
		"sourceAccountId":    "acc-checking",
		"amount":             "45.00",
		"currency":           "USD",
		"intervalMonths":     1,
		"dayOfMonth":         5,
		"nextOccurrenceDate": "2026-10-05",
		"autoApplyEnabled":   true,
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tenants/demo/recurrings", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[map[string]any](t, resp)
	id := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "45", created["amount"])

	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/tenants/demo/recurrings/%s", srv.URL, id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]any](t, resp)
	assert.Equal(t, "Gym", got["name"])
	assert.Equal(t, float64(engine.DefaultMaxFailedAttempts), got["maxFailedAttempts"])
}

func TestAPI_CreateRecurring_InvalidInterval_400(t *testing.T) {
	srv, m := newTestServer(t)
	seedDemo(t, m)

	body := map[string]any{
		"name":            "Bad",
		"type":            "standard",
		"kind":            "expense",
		"sourceAccountId": "acc-checking",
		"amount":          "10",
		"currency":        "USD",
		"intervalMonths":  30,
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tenants/demo/recurrings", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_UpdateRecurring_PartialPatch(t *testing.T) {
	// GIVEN: The seeded rent definition
	// WHEN: Patching only the amount
	// THEN: The amount changes and the schedule fields are untouched

	srv, m := newTestServer(t)
	seedDemo(t, m)

	body := map[string]any{"amount": "1500.00"}
	resp := doJSON(t, http.MethodPatch, srv.URL+"/api/tenants/demo/recurrings/rec-rent", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[map[string]any](t, resp)
	assert.Equal(t, "1500", got["amount"])
	assert.Equal(t, "Rent", got["name"])
	assert.Equal(t, 1.0, got["intervalMonths"])
}

func TestAPI_UpdateRecurring_InvalidInterval_400(t *testing.T) {
	srv, m := newTestServer(t)
	seedDemo(t, m)

	body := map[string]any{"intervalMonths": 99}
	resp := doJSON(t, http.MethodPatch, srv.URL+"/api/tenants/demo/recurrings/rec-rent", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_DeleteRecurring_SoftDelete(t *testing.T) {
	srv, m := newTestServer(t)
	seedDemo(t, m)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/tenants/demo/recurrings/rec-rent", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/tenants/demo/recurrings/rec-rent", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_GetRecurring_UnknownTenant_404(t *testing.T) {
	srv, m := newTestServer(t)
	seedDemo(t, m)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/tenants/other/recurrings/rec-rent", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// MANUAL EXECUTION
// =============================================================================

func TestAPI_ExecuteFlexibleRecurring_WithOverride(t *testing.T) {
	// GIVEN: The seeded flexible utilities definition
	// WHEN: Executing with an amount override
	// THEN: 200 with the materialized transaction

	srv, m := newTestServer(t)
	seedDemo(t, m)

	body := map[string]any{"amount": "132.40"}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tenants/demo/recurrings/rec-utilities/execute", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	txs := decode[[]map[string]any](t, resp)
	require.Len(t, txs, 1)
	assert.Equal(t, "-132.4", txs[0]["amount"])
}

func TestAPI_ExecuteFlexibleRecurring_NoOverride_400(t *testing.T) {
	srv, m := newTestServer(t)
	seedDemo(t, m)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tenants/demo/recurrings/rec-utilities/execute", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ReactivateRecurring(t *testing.T) {
	srv, m := newTestServer(t)
	seedDemo(t, m)
	ctx := context.Background()

	def, err := m.GetRecurring(ctx, api.DemoTenant, "rec-rent")
	require.NoError(t, err)
	def.FailedAttempts = 3
	def.IsActive = false
	require.NoError(t, m.UpdateRecurringDefinition(ctx, def))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tenants/demo/recurrings/rec-rent/reactivate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[map[string]any](t, resp)
	assert.Equal(t, true, got["isActive"])
	assert.Equal(t, 0.0, got["failedAttempts"])
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestAPI_Accounts_CreateListGet(t *testing.T) {
	srv, _ := newTestServer(t)

	body := map[string]any{
		"name": "Brokerage", "category": "asset",
		"balance": "1000.00", "currency": "USD",
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tenants/demo/accounts", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]any](t, resp)
	id := created["id"].(string)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/tenants/demo/accounts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]map[string]any](t, resp)
	require.Len(t, list, 1)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/tenants/demo/accounts/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]any](t, resp)
	assert.Equal(t, "1000", got["balance"])
}

func TestAPI_CreateAccount_BadCategory_400(t *testing.T) {
	srv, _ := newTestServer(t)

	body := map[string]any{"name": "X", "category": "crypto", "currency": "USD"}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tenants/demo/accounts", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestAPI_ListTransactions_AfterRun(t *testing.T) {
	srv, m := newTestServer(t)
	seedDemo(t, m)

	doJSON(t, http.MethodPost, srv.URL+"/api/tenants/demo/autoapply/run", nil).Body.Close()

	now := time.Now().UTC()
	url := fmt.Sprintf("%s/api/tenants/demo/transactions?from=%s&to=%s",
		srv.URL,
		now.AddDate(0, -1, 0).Format("2006-01-02"),
		now.AddDate(0, 1, 0).Format("2006-01-02"))
	resp := doJSON(t, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	txs := decode[[]map[string]any](t, resp)
	assert.NotEmpty(t, txs)
}
