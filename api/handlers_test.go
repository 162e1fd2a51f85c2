package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/interest-engine/api"
	"github.com/warp/interest-engine/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := api.NewHandler(store.NewMemory(), zerolog.Nop())
	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) *http.Response {
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
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// seedProject creates an annual-simple-10% project with one invoice and
// one payment.
func seedProject(t *testing.T, base string) {
	t.Helper()
	resp := do(t, http.MethodPost, base+"/api/projects", map[string]any{
		"name":  "acme",
		"as_of": "2024-07-01",
		"rate_config": map[string]any{
			"rate_basis":  "annual",
			"compounding": "simple",
			"day_count":   "actual/365",
			"rate":        "0.10",
			"grace_days":  0,
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/api/projects/acme/invoices", map[string]any{
		"id": "inv-1", "issue_date": "2024-01-01", "description": "consulting", "amount": "1000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/api/projects/acme/payments", map[string]any{
		"id": "pay-1", "received_date": "2024-04-01", "amount": "400",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// =============================================================================
// PROJECT LIFECYCLE
// =============================================================================

func TestAPI_ProjectLifecycle(t *testing.T) {
	srv := newTestServer(t)
	seedProject(t, srv.URL)

	resp := do(t, http.MethodGet, srv.URL+"/api/projects", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var names []string
	decode(t, resp, &names)
	assert.Equal(t, []string{"acme"}, names)

	resp = do(t, http.MethodDelete, srv.URL+"/api/projects/acme", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/projects/acme/invoices", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CreateProject_ValidationErrors(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/projects", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing as_of")

	resp = do(t, http.MethodPost, srv.URL+"/api/projects", map[string]any{
		"name": "x", "as_of": "2024-07-01",
		"rate_config": map[string]any{
			"rate_basis": "weekly", "compounding": "simple", "day_count": "actual/365", "rate": "0.1",
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown rate basis")
}

func TestAPI_CreateInvoice_DuplicateID_Conflict(t *testing.T) {
	srv := newTestServer(t)
	seedProject(t, srv.URL)

	resp := do(t, http.MethodPost, srv.URL+"/api/projects/acme/invoices", map[string]any{
		"id": "inv-1", "issue_date": "2024-06-01", "amount": "50",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The original invoice survives untouched.
	resp = do(t, http.MethodGet, srv.URL+"/api/projects/acme/invoices/inv-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var inv struct {
		OriginalAmount string `json:"original_amount"`
	}
	decode(t, resp, &inv)
	assert.Equal(t, "1000", inv.OriginalAmount)
}

// =============================================================================
// ASSIGNMENT FLOW
// =============================================================================

func TestAPI_AssignmentFlow(t *testing.T) {
	srv := newTestServer(t)
	seedProject(t, srv.URL)

	resp := do(t, http.MethodPost, srv.URL+"/api/projects/acme/assignments", map[string]any{
		"payment_id": "pay-1", "invoice_id": "inv-1", "amount": "400", "date": "2024-04-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var a struct {
		ID string `json:"id"`
	}
	decode(t, resp, &a)
	require.NotEmpty(t, a.ID)

	resp = do(t, http.MethodGet, srv.URL+"/api/projects/acme/invoices/inv-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var inv struct {
		Status          string `json:"status"`
		Balance         string `json:"balance"`
		AccruedInterest string `json:"accrued_interest"`
		Periods         []struct {
			Principal string `json:"principal"`
			End       string `json:"end"`
		} `json:"interest_periods"`
	}
	decode(t, resp, &inv)
	assert.Equal(t, "partial", inv.Status)
	assert.Equal(t, "600", inv.Balance)
	assert.Equal(t, "39.89", inv.AccruedInterest)
	require.Len(t, inv.Periods, 2)
	assert.Equal(t, "1000", inv.Periods[0].Principal)
	assert.Empty(t, inv.Periods[1].End, "final period is open-ended")

	resp = do(t, http.MethodDelete, srv.URL+"/api/projects/acme/assignments/"+a.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/projects/acme/invoices/inv-1", nil)
	decode(t, resp, &inv)
	assert.Equal(t, "open", inv.Status)
}

func TestAPI_Assignment_InsufficientFunds_Returns400(t *testing.T) {
	srv := newTestServer(t)
	seedProject(t, srv.URL)

	resp := do(t, http.MethodPost, srv.URL+"/api/projects/acme/assignments", map[string]any{
		"payment_id": "pay-1", "invoice_id": "inv-1", "amount": "9999", "date": "2024-04-01",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var e struct {
		Error string `json:"error"`
	}
	decode(t, resp, &e)
	assert.Contains(t, e.Error, "exceeds unassigned")
}

func TestAPI_Assignment_UnknownInvoice_Returns404(t *testing.T) {
	srv := newTestServer(t)
	seedProject(t, srv.URL)

	resp := do(t, http.MethodPost, srv.URL+"/api/projects/acme/assignments", map[string]any{
		"payment_id": "pay-1", "invoice_id": "ghost", "amount": "10", "date": "2024-04-01",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Reassign_UpdatesAmount(t *testing.T) {
	srv := newTestServer(t)
	seedProject(t, srv.URL)

	resp := do(t, http.MethodPost, srv.URL+"/api/projects/acme/assignments", map[string]any{
		"payment_id": "pay-1", "invoice_id": "inv-1", "amount": "300", "date": "2024-04-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var a struct {
		ID string `json:"id"`
	}
	decode(t, resp, &a)

	resp = do(t, http.MethodPut, srv.URL+"/api/projects/acme/assignments/"+a.ID, map[string]any{
		"amount": "400",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated struct {
		Amount string `json:"amount"`
	}
	decode(t, resp, &updated)
	assert.Equal(t, "400", updated.Amount)
}

// =============================================================================
// FIFO
// =============================================================================

func TestAPI_ApplyFIFO(t *testing.T) {
	srv := newTestServer(t)
	seedProject(t, srv.URL)

	resp := do(t, http.MethodPost, srv.URL+"/api/projects/acme/invoices", map[string]any{
		"id": "inv-2", "issue_date": "2024-02-01", "amount": "200",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/projects/acme/payments/pay-1/apply-fifo", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created []struct {
		InvoiceID string `json:"invoice_id"`
		Amount    string `json:"amount"`
	}
	decode(t, resp, &created)
	require.Len(t, created, 1, "400 all fits the oldest invoice")
	assert.Equal(t, "inv-1", created[0].InvoiceID)
	assert.Equal(t, "400", created[0].Amount)
}

// =============================================================================
// REPORTING
// =============================================================================

func TestAPI_Summary(t *testing.T) {
	srv := newTestServer(t)
	seedProject(t, srv.URL)

	resp := do(t, http.MethodGet, srv.URL+"/api/projects/acme/summary?as_of=2024-07-01", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var s struct {
		AsOf           string `json:"as_of"`
		TotalPrincipal string `json:"total_principal"`
		TotalInterest  string `json:"total_interest"`
		Invoices       []struct {
			ID string `json:"id"`
		} `json:"invoices"`
	}
	decode(t, resp, &s)
	assert.Equal(t, "2024-07-01", s.AsOf)
	assert.Equal(t, "1000", s.TotalPrincipal)
	assert.Equal(t, "49.86", s.TotalInterest)
	require.Len(t, s.Invoices, 1)
}

func TestAPI_Amortization(t *testing.T) {
	srv := newTestServer(t)
	seedProject(t, srv.URL)

	resp := do(t, http.MethodPost, srv.URL+"/api/projects/acme/assignments", map[string]any{
		"payment_id": "pay-1", "invoice_id": "inv-1", "amount": "400", "date": "2024-04-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/projects/acme/invoices/inv-1/amortization", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rows []struct {
		Type    string `json:"type"`
		Balance string `json:"balance"`
	}
	decode(t, resp, &rows)
	require.Len(t, rows, 3)
	assert.Equal(t, "interest_accrual", rows[0].Type)
	assert.Equal(t, "payment", rows[1].Type)
	assert.Equal(t, "624.93", rows[1].Balance)
}

// =============================================================================
// SNAPSHOT AND PERSISTENCE
// =============================================================================

func TestAPI_SnapshotRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	seedProject(t, srv.URL)

	resp := do(t, http.MethodGet, srv.URL+"/api/projects/acme/snapshot", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap map[string]any
	decode(t, resp, &snap)

	resp = do(t, http.MethodPut, srv.URL+"/api/projects/clone/snapshot", snap)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/projects/clone/invoices/inv-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_PutSnapshot_InconsistentHistory_Rejected(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodPut, srv.URL+"/api/projects/bad/snapshot", map[string]any{
		"as_of": "2024-07-01",
		"rate_config": map[string]any{
			"rate_basis": "annual", "compounding": "simple", "day_count": "actual/365", "rate": "0.10",
		},
		"invoices": []map[string]any{
			{"id": "inv-1", "issue_date": "2024-01-01", "original_amount": "1000"},
		},
		"payments": []map[string]any{
			{"id": "pay-1", "received_date": "2024-04-01", "amount": "100"},
		},
		"assignments": []map[string]any{
			{"id": "a-1", "payment_id": "pay-1", "invoice_id": "inv-1", "assigned_amount": "500", "assignment_date": "2024-04-01"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_RateConfigSwap_Recomputes(t *testing.T) {
	srv := newTestServer(t)
	seedProject(t, srv.URL)

	resp := do(t, http.MethodPut, srv.URL+"/api/projects/acme/rate-config", map[string]any{
		"rate_basis": "annual", "compounding": "simple", "day_count": "actual/365", "rate": "0.20",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/projects/acme/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var s struct {
		TotalInterest string `json:"total_interest"`
	}
	decode(t, resp, &s)
	assert.Equal(t, "99.73", s.TotalInterest)
}
