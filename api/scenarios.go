/*
scenarios.go - Demo scenario loaders

PURPOSE:
  Seeds the store with recognizable demo data so the API can be exercised
  without hand-crafting holders and documents. Each scenario is loaded
  through the same document flow the HTTP handlers use, so the ledger it
  produces is indistinguishable from organically entered data.

SCENARIOS:
  basic-accounts   Four holders, no documents
  trading-month    A month of bills, invoices, and payments
  drift-repair     trading-month plus a deliberately corrupted balance

SEE ALSO:
  - handlers.go: LoadScenario/ListScenarios endpoints
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/ledger-engine/documents"
	"github.com/warp/ledger-engine/factory"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// SCENARIO REGISTRY
// =============================================================================

type scenarioDef struct {
	info ScenarioInfo
	load func(ctx context.Context, h *Handler) error
}

var scenarios = []scenarioDef{
	{
		info: ScenarioInfo{
			ID:          "basic-accounts",
			Name:        "Basic Accounts",
			Description: "Two customers, a supplier, an outsourcer, and three accounts. No documents.",
		},
		load: loadBasicAccounts,
	},
	{
		info: ScenarioInfo{
			ID:          "trading-month",
			Name:        "Trading Month",
			Description: "Basic accounts plus a month of bills, invoices, payments, and a tax payment.",
		},
		load: loadTradingMonth,
	},
	{
		info: ScenarioInfo{
			ID:          "drift-repair",
			Name:        "Drift and Repair",
			Description: "Trading month with one stored balance corrupted, for exercising the auditor.",
		},
		load: loadDriftRepair,
	},
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	infos := make([]ScenarioInfo, len(scenarios))
	for i, s := range scenarios {
		infos[i] = s.info
	}
	writeJSON(w, http.StatusOK, infos)
}

// GetCurrentScenario reports which scenario was loaded last, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"scenario": h.currentScenario})
}

// LoadScenario seeds the store with the named scenario's data.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scenario string `json:"scenario"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	for _, s := range scenarios {
		if s.info.ID != req.Scenario {
			continue
		}
		if err := s.load(r.Context(), h); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
			return
		}
		h.currentScenario = s.info.ID
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "loaded",
			"scenario": s.info.ID,
		})
		return
	}

	writeError(w, http.StatusNotFound, "Unknown scenario: "+req.Scenario, nil)
}

// =============================================================================
// LOADERS
// =============================================================================

func loadBasicAccounts(ctx context.Context, h *Handler) error {
	holders := []ledger.Holder{
		{ID: "cust-acme", Type: ledger.HolderCustomer, Name: "Acme Builders",
			OpeningBalance: ledger.MustDecimal("5000"), Balance: ledger.MustDecimal("5000")},
		{ID: "cust-north", Type: ledger.HolderCustomer, Name: "Northside Rentals",
			OpeningBalance: ledger.MustDecimal("1200"), Balance: ledger.MustDecimal("1200")},
		{ID: "supp-steelco", Type: ledger.HolderSupplier, Name: "SteelCo"},
		{ID: "outs-ironworks", Type: ledger.HolderOutsourcer, Name: "IronWorks"},
		{ID: "acct-main", Type: ledger.HolderAccount, Name: "Main Bank",
			AccountType:    ledger.AccountBank,
			OpeningBalance: ledger.MustDecimal("20000"), Balance: ledger.MustDecimal("20000")},
		{ID: "acct-visa", Type: ledger.HolderAccount, Name: "Company Visa",
			AccountType: ledger.AccountCreditCard},
		{ID: "acct-savings", Type: ledger.HolderAccount, Name: "Reserve Savings",
			AccountType:    ledger.AccountSavings,
			OpeningBalance: ledger.MustDecimal("50000"), Balance: ledger.MustDecimal("50000")},
	}

	for _, holder := range holders {
		if err := h.Store.SaveHolder(ctx, holder); err != nil {
			return fmt.Errorf("failed to seed holder %s: %w", holder.ID, err)
		}
	}
	return nil
}

func loadTradingMonth(ctx context.Context, h *Handler) error {
	if err := loadBasicAccounts(ctx, h); err != nil {
		return err
	}

	docs := []documents.Document{
		documents.Bill{ID: "bill-1001", CustomerName: "Acme Builders",
			Description: "Excavator rental, week 1", TotalAmount: ledger.MustDecimal("1500")},
		documents.Bill{ID: "bill-1002", CustomerName: "Northside Rentals",
			Description: "Scaffolding hire", TotalAmount: ledger.MustDecimal("640")},
		documents.Invoice{ID: "inv-2001", SupplierOutsourcerName: "SteelCo",
			Description: "Rebar delivery", TotalAmount: ledger.MustDecimal("2200")},
		documents.Invoice{ID: "inv-2002", SupplierOutsourcerName: "IronWorks",
			Description: "Welding subcontract", TotalAmount: ledger.MustDecimal("3100")},
		documents.PaymentCheck{ID: "pay-3001", CustomerName: "Acme Builders",
			AccountName: "Main Bank", CheckNumber: "000451", Amount: ledger.MustDecimal("1500")},
		documents.PaymentCreditCard{ID: "pay-3002", CustomerName: "Northside Rentals",
			Amount: ledger.MustDecimal("640")},
		documents.TaxPayment{ID: "tax-4001", AccountID: "acct-main",
			TaxKind: "vat", Amount: ledger.MustDecimal("870")},
	}

	for _, doc := range docs {
		payload, err := factory.Encode(doc)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", doc.DocumentID(), err)
		}
		if err := h.Store.SaveDocument(ctx, doc.Type(), doc.DocumentID(), payload); err != nil {
			return fmt.Errorf("failed to save %s: %w", doc.DocumentID(), err)
		}
		if err := h.Engine.ApplyCreate(ctx, doc); err != nil {
			return fmt.Errorf("failed to post %s: %w", doc.DocumentID(), err)
		}
	}
	return nil
}

func loadDriftRepair(ctx context.Context, h *Handler) error {
	if err := loadTradingMonth(ctx, h); err != nil {
		return err
	}

	// Corrupt one stored balance directly, bypassing the engine, so the
	// auditor has something to find.
	holder, err := h.Store.GetHolder(ctx, "cust-acme")
	if err != nil {
		return err
	}
	corrupted := holder.Balance.Add(ledger.MustDecimal("250"))
	return h.Store.UpdateBalance(ctx, holder.ID, corrupted, holder.Version)
}
