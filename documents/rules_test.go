package documents_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/documents"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// BILL RULES
// =============================================================================

func TestBillEffects_NegatesTotal(t *testing.T) {
	// GIVEN: A bill charging a customer 1500
	// WHEN: Effects are derived
	// THEN: One optional customer effect of -1500

	bill := documents.Bill{
		ID:           "bill-1",
		CustomerName: "Acme Builders",
		TotalAmount:  ledger.MustDecimal("1500"),
	}

	specs := documents.EffectsFor(bill)
	require.Len(t, specs, 1)

	spec := specs[0]
	assert.Equal(t, "customer_name", spec.Field)
	assert.Equal(t, "Acme Builders", spec.Name)
	assert.Equal(t, []ledger.HolderType{ledger.HolderCustomer}, spec.Types)
	assert.False(t, spec.Required)
	assert.True(t, spec.Amount.Equal(ledger.MustDecimal("-1500")))
}

func TestBillEffects_BlankCustomerEmitsNothing(t *testing.T) {
	// GIVEN: A bill with a whitespace-only customer name
	// WHEN: Effects are derived
	// THEN: No effects at all

	bill := documents.Bill{
		ID:           "bill-2",
		CustomerName: "   ",
		TotalAmount:  ledger.MustDecimal("900"),
	}

	assert.Empty(t, documents.EffectsFor(bill))
}

// =============================================================================
// INVOICE RULES
// =============================================================================

func TestInvoiceEffects_OutsourcerBeforeSupplier(t *testing.T) {
	// GIVEN: An invoice naming a supplier-or-outsourcer
	// WHEN: Effects are derived
	// THEN: One required effect of +total, resolving outsourcers first

	inv := documents.Invoice{
		ID:                     "inv-1",
		SupplierOutsourcerName: "IronWorks",
		TotalAmount:            ledger.MustDecimal("3100"),
	}

	specs := documents.EffectsFor(inv)
	require.Len(t, specs, 1)

	spec := specs[0]
	assert.Equal(t, []ledger.HolderType{ledger.HolderOutsourcer, ledger.HolderSupplier}, spec.Types)
	assert.True(t, spec.Required)
	assert.True(t, spec.Amount.Equal(ledger.MustDecimal("3100")))
}

// =============================================================================
// PAYMENT RULES
// =============================================================================

func TestPaymentCheckEffects_CustomerAndAccount(t *testing.T) {
	// GIVEN: A check payment naming both customer and account
	// WHEN: Effects are derived
	// THEN: Optional customer -amount, required account -amount

	pay := documents.PaymentCheck{
		ID:           "pay-1",
		CustomerName: "Acme Builders",
		AccountName:  "Main Bank",
		CheckNumber:  "000451",
		Amount:       ledger.MustDecimal("1500"),
	}

	specs := documents.EffectsFor(pay)
	require.Len(t, specs, 2)

	assert.Equal(t, "customer_name", specs[0].Field)
	assert.False(t, specs[0].Required)
	assert.True(t, specs[0].Amount.Equal(ledger.MustDecimal("-1500")))

	assert.Equal(t, "account_name", specs[1].Field)
	assert.True(t, specs[1].Required)
	assert.Equal(t, []ledger.HolderType{ledger.HolderAccount}, specs[1].Types)
	assert.True(t, specs[1].Amount.Equal(ledger.MustDecimal("-1500")))
}

func TestPaymentCashEffects_AccountOnly(t *testing.T) {
	// GIVEN: A cash payment with no customer
	// WHEN: Effects are derived
	// THEN: Only the account effect remains

	pay := documents.PaymentCash{
		ID:          "pay-2",
		AccountName: "Main Bank",
		Amount:      ledger.MustDecimal("200"),
	}

	specs := documents.EffectsFor(pay)
	require.Len(t, specs, 1)
	assert.Equal(t, "account_name", specs[0].Field)
}

func TestPaymentCreditCardEffects_NoAccountTouched(t *testing.T) {
	// GIVEN: A credit-card payment with customer and collector
	// WHEN: Effects are derived
	// THEN: Customer and collector-supplier effects, both optional, no account

	pay := documents.PaymentCreditCard{
		ID:            "pay-3",
		CustomerName:  "Acme Builders",
		CollectorName: "SteelCo",
		Amount:        ledger.MustDecimal("640"),
	}

	specs := documents.EffectsFor(pay)
	require.Len(t, specs, 2)

	for _, spec := range specs {
		assert.False(t, spec.Required)
		assert.True(t, spec.Amount.Equal(ledger.MustDecimal("-640")))
	}
	assert.Equal(t, []ledger.HolderType{ledger.HolderCustomer}, specs[0].Types)
	assert.Equal(t, []ledger.HolderType{ledger.HolderSupplier}, specs[1].Types)
}

// =============================================================================
// COLLECTION RULES
// =============================================================================

func TestCollectionEffects_PostNothing(t *testing.T) {
	// GIVEN: Collections of every kind
	// WHEN: Effects are derived
	// THEN: None are produced

	docs := []documents.Document{
		documents.CollectionCheck{ID: "col-1", CustomerName: "Acme Builders",
			CheckNumber: "000900", Amount: ledger.MustDecimal("500")},
		documents.CollectionCreditCard{ID: "col-2", CustomerName: "Acme Builders",
			Amount: ledger.MustDecimal("500")},
		documents.CollectionCash{ID: "col-3", CustomerName: "Acme Builders",
			Amount: ledger.MustDecimal("500")},
	}

	for _, doc := range docs {
		assert.Empty(t, documents.EffectsFor(doc), "collection %s", doc.DocumentID())
	}
}

// =============================================================================
// TAX PAYMENT RULES
// =============================================================================

func TestTaxPaymentEffects_ByIDWithAccountTypeRestriction(t *testing.T) {
	// GIVEN: A tax payment referencing an account by id
	// WHEN: Effects are derived
	// THEN: Required by-id effect of -amount restricted to bank/credit-card

	tax := documents.TaxPayment{
		ID:        "tax-1",
		AccountID: "acct-main",
		TaxKind:   "vat",
		Amount:    ledger.MustDecimal("870"),
	}

	specs := documents.EffectsFor(tax)
	require.Len(t, specs, 1)

	spec := specs[0]
	assert.True(t, spec.ByID)
	assert.True(t, spec.Required)
	assert.Equal(t, "acct-main", spec.Name)
	assert.True(t, spec.Amount.Equal(ledger.MustDecimal("-870")))
	assert.Equal(t, []ledger.AccountType{ledger.AccountBank, ledger.AccountCreditCard}, spec.AccountTypes)
}
