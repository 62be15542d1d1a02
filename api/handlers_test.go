package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/api"
	"github.com/warp/ledger-engine/engine"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/ledger/store"
)

// =============================================================================
// FIXTURE
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	eng := engine.New(m)
	auditor := engine.NewDriftAuditor(eng, m)
	handler := api.NewHandler(m, eng, auditor)

	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv, m
}

func seedHolders(t *testing.T, m *store.Memory) {
	t.Helper()
	holders := []ledger.Holder{
		{ID: "cust-acme", Type: ledger.HolderCustomer, Name: "Acme Builders",
			OpeningBalance: ledger.MustDecimal("5000"), Balance: ledger.MustDecimal("5000")},
		{ID: "acct-main", Type: ledger.HolderAccount, Name: "Main Bank",
			AccountType:    ledger.AccountBank,
			OpeningBalance: ledger.MustDecimal("20000"), Balance: ledger.MustDecimal("20000")},
	}
	for _, h := range holders {
		require.NoError(t, m.SaveHolder(context.Background(), h))
	}
}

func doJSON(t *testing.T, method, url string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// =============================================================================
// HOLDER ENDPOINTS
// =============================================================================

func TestCreateAndGetHolder(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/holders", `{
		"id": "cust-1", "type": "customer", "name": "Acme Builders",
		"opening_balance": "5000"
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID      string `json:"id"`
		Balance string `json:"balance"`
	}
	decodeBody(t, resp, &created)
	assert.Equal(t, "cust-1", created.ID)
	assert.Equal(t, "5000", created.Balance)

	resp, err := http.Get(srv.URL + "/api/holders/cust-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateHolder_AccountRequiresAccountType(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/holders", `{
		"id": "acct-1", "type": "account", "name": "Main Bank"
	}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetHolder_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/holders/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// DOCUMENT FLOW
// =============================================================================

func TestDocumentLifecycle_BillThroughHTTP(t *testing.T) {
	// GIVEN: A seeded customer at 5000
	// WHEN: A bill is created, amount-edited, and deleted over HTTP
	// THEN: The balance endpoint tracks 4000 -> 4200 -> 5000

	srv, m := newTestServer(t)
	seedHolders(t, m)

	// Create
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/documents/bill", `{
		"id": "bill-1", "customer_name": "Acme Builders", "total_amount": "1000"
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Effects []struct {
			Amount string `json:"amount"`
		} `json:"effects"`
	}
	decodeBody(t, resp, &created)
	require.Len(t, created.Effects, 1)
	assert.Equal(t, "-1000", created.Effects[0].Amount)

	assertBalance(t, srv.URL, "cust-acme", "4000")

	// Update
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/documents/bill/bill-1", `{
		"id": "bill-1", "customer_name": "Acme Builders", "total_amount": "800"
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assertBalance(t, srv.URL, "cust-acme", "4200")

	// Delete
	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/documents/bill/bill-1", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	assertBalance(t, srv.URL, "cust-acme", "5000")

	// Document row is gone
	resp, err = http.Get(srv.URL + "/api/documents/bill/bill-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateDocument_DuplicateConflicts(t *testing.T) {
	srv, m := newTestServer(t)
	seedHolders(t, m)

	body := `{"id": "bill-1", "customer_name": "Acme Builders", "total_amount": "1000"}`

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/documents/bill", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/documents/bill", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateDocument_EngineRejectionCompensatesDocumentRow(t *testing.T) {
	// GIVEN: An invoice naming an unknown supplier (required field)
	// WHEN: The create is rejected by the engine
	// THEN: 400, and the document row does not linger

	srv, m := newTestServer(t)
	seedHolders(t, m)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/documents/invoice", `{
		"id": "inv-1", "supplier_outsourcer_name": "Ghost Corp", "total_amount": "2000"
	}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	payload, err := m.GetDocument(context.Background(), "invoice", "inv-1")
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestCreateDocument_UnknownType(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/documents/purchase_order", `{"id":"x"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateDocument_IDMismatchRejected(t *testing.T) {
	srv, m := newTestServer(t)
	seedHolders(t, m)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/documents/bill",
		`{"id": "bill-1", "customer_name": "Acme Builders", "total_amount": "1000"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/documents/bill/bill-1",
		`{"id": "bill-2", "customer_name": "Acme Builders", "total_amount": "800"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assertBalance(t, srv.URL, "cust-acme", "4000")
}

// =============================================================================
// AUDIT ENDPOINTS
// =============================================================================

func TestTriggerAuditAndListRuns(t *testing.T) {
	srv, m := newTestServer(t)
	seedHolders(t, m)

	// Inject drift out-of-band.
	ctx := context.Background()
	h, err := m.GetHolder(ctx, "cust-acme")
	require.NoError(t, err)
	require.NoError(t, m.UpdateBalance(ctx, h.ID, ledger.MustDecimal("1"), h.Version))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/audit/process", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run struct {
		DriftsFound int `json:"drifts_found"`
		Repaired    int `json:"repaired"`
	}
	decodeBody(t, resp, &run)
	assert.Equal(t, 1, run.DriftsFound)
	assert.Equal(t, 1, run.Repaired)

	assertBalance(t, srv.URL, "cust-acme", "5000")

	resp, err = http.Get(srv.URL + "/api/audit/runs")
	require.NoError(t, err)
	var runs []json.RawMessage
	decodeBody(t, resp, &runs)
	assert.Len(t, runs, 1)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestLoadScenario_TradingMonth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/scenarios/load", `{"scenario":"trading-month"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Acme: 5000 - 1500 (bill) - 1500 (check payment) = 2000
	assertBalance(t, srv.URL, "cust-acme", "2000")
	// Main Bank: 20000 - 1500 (check) - 870 (tax) = 17630
	assertBalance(t, srv.URL, "acct-main", "17630")

	resp, err := http.Get(srv.URL + "/api/scenarios/current")
	require.NoError(t, err)
	var current map[string]string
	decodeBody(t, resp, &current)
	assert.Equal(t, "trading-month", current["scenario"])
}

func TestLoadScenario_Unknown(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/scenarios/load", `{"scenario":"nope"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// HELPERS
// =============================================================================

func assertBalance(t *testing.T, baseURL string, holderID, want string) {
	t.Helper()

	resp, err := http.Get(baseURL + "/api/holders/" + holderID + "/balance")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var balance struct {
		Stored  string `json:"stored"`
		Derived string `json:"derived"`
		InSync  bool   `json:"in_sync"`
	}
	decodeBody(t, resp, &balance)
	assert.Equal(t, want, balance.Stored, "stored balance of %s", holderID)
	assert.Equal(t, want, balance.Derived, "derived balance of %s", holderID)
	assert.True(t, balance.InSync)
}
