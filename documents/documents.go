/*
Package documents defines the financial document variants and the pure
effect rules mapping each of them to signed balance effects.

PURPOSE:
  Documents are owned by their services (bill entry, payment entry, ...).
  This package only models the fields the reconciliation engine needs:
  the document identity, the monetary amount, and the holder-reference
  fields, one struct per variant.

DOCUMENT LIFECYCLE:
  created -> (zero or more) updated -> deleted, or created -> deleted.
  Each transition is handed to the engine exactly once.

HOLDER REFERENCES:
  Documents reference holders by free-text name (except tax payments, which
  carry an account id). Resolution to a stable holder id happens at effect
  time; the ledger stores the id, so later renames never disturb past math.

SEE ALSO:
  - rules.go: The documentState -> effects mapping
  - codec.go: JSON payload round-tripping for the document store
*/
package documents

import (
	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

const (
	TypeBill                  ledger.DocumentType = "bill"
	TypeInvoice               ledger.DocumentType = "invoice"
	TypePaymentCheck          ledger.DocumentType = "payment_check"
	TypePaymentCreditCard     ledger.DocumentType = "payment_credit_card"
	TypePaymentCash           ledger.DocumentType = "payment_cash"
	TypeCollectionCheck       ledger.DocumentType = "collection_check"
	TypeCollectionCreditCard  ledger.DocumentType = "collection_credit_card"
	TypeCollectionCash        ledger.DocumentType = "collection_cash"
	TypeTaxPayment            ledger.DocumentType = "tax_payment"
)

// Types lists every document type the engine knows.
var Types = []ledger.DocumentType{
	TypeBill, TypeInvoice,
	TypePaymentCheck, TypePaymentCreditCard, TypePaymentCash,
	TypeCollectionCheck, TypeCollectionCreditCard, TypeCollectionCash,
	TypeTaxPayment,
}

// KnownType reports whether dt is one of the registered document types.
func KnownType(dt ledger.DocumentType) bool {
	for _, t := range Types {
		if t == dt {
			return true
		}
	}
	return false
}

// Document is the common shape the engine consumes.
type Document interface {
	DocumentID() ledger.DocumentID
	Type() ledger.DocumentType
}

// =============================================================================
// DOCUMENT VARIANTS
// =============================================================================

// Bill charges a customer: the customer's credit is consumed by the total.
type Bill struct {
	ID           ledger.DocumentID `json:"id"`
	CustomerName string            `json:"customer_name"`
	Description  string            `json:"description,omitempty"`
	TotalAmount  decimal.Decimal   `json:"total_amount"`
}

func (b Bill) DocumentID() ledger.DocumentID { return b.ID }
func (b Bill) Type() ledger.DocumentType     { return TypeBill }

// Invoice records an amount owed to a supplier or outsourced contractor.
// The name is resolved against the outsourcer directory first, then the
// supplier directory.
type Invoice struct {
	ID                     ledger.DocumentID `json:"id"`
	SupplierOutsourcerName string            `json:"supplier_outsourcer_name"`
	Description            string            `json:"description,omitempty"`
	TotalAmount            decimal.Decimal   `json:"total_amount"`
}

func (i Invoice) DocumentID() ledger.DocumentID { return i.ID }
func (i Invoice) Type() ledger.DocumentType     { return TypeInvoice }

// PaymentCheck is a payment by check: reduces the paying account and,
// when a customer is named, the customer's outstanding balance.
type PaymentCheck struct {
	ID           ledger.DocumentID `json:"id"`
	CustomerName string            `json:"customer_name,omitempty"`
	AccountName  string            `json:"account_name"`
	CheckNumber  string            `json:"check_number,omitempty"`
	Amount       decimal.Decimal   `json:"amount"`
}

func (p PaymentCheck) DocumentID() ledger.DocumentID { return p.ID }
func (p PaymentCheck) Type() ledger.DocumentType     { return TypePaymentCheck }

// PaymentCreditCard is a payment by credit card: reduces the named customer
// and the supplier matching the collector name, when either resolves.
type PaymentCreditCard struct {
	ID            ledger.DocumentID `json:"id"`
	CustomerName  string            `json:"customer_name,omitempty"`
	CollectorName string            `json:"collector_name,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
}

func (p PaymentCreditCard) DocumentID() ledger.DocumentID { return p.ID }
func (p PaymentCreditCard) Type() ledger.DocumentType     { return TypePaymentCreditCard }

// PaymentCash is a cash payment: same shape as a check payment without the
// check number.
type PaymentCash struct {
	ID           ledger.DocumentID `json:"id"`
	CustomerName string            `json:"customer_name,omitempty"`
	AccountName  string            `json:"account_name"`
	Amount       decimal.Decimal   `json:"amount"`
}

func (p PaymentCash) DocumentID() ledger.DocumentID { return p.ID }
func (p PaymentCash) Type() ledger.DocumentType     { return TypePaymentCash }

// CollectionCheck records money collected by check. Collections currently
// post no balance effects; see rules.go.
type CollectionCheck struct {
	ID           ledger.DocumentID `json:"id"`
	CustomerName string            `json:"customer_name,omitempty"`
	CheckNumber  string            `json:"check_number,omitempty"`
	Amount       decimal.Decimal   `json:"amount"`
}

func (c CollectionCheck) DocumentID() ledger.DocumentID { return c.ID }
func (c CollectionCheck) Type() ledger.DocumentType     { return TypeCollectionCheck }

// CollectionCreditCard records money collected by credit card.
type CollectionCreditCard struct {
	ID           ledger.DocumentID `json:"id"`
	CustomerName string            `json:"customer_name,omitempty"`
	Amount       decimal.Decimal   `json:"amount"`
}

func (c CollectionCreditCard) DocumentID() ledger.DocumentID { return c.ID }
func (c CollectionCreditCard) Type() ledger.DocumentType     { return TypeCollectionCreditCard }

// CollectionCash records money collected in cash.
type CollectionCash struct {
	ID           ledger.DocumentID `json:"id"`
	CustomerName string            `json:"customer_name,omitempty"`
	Amount       decimal.Decimal   `json:"amount"`
}

func (c CollectionCash) DocumentID() ledger.DocumentID { return c.ID }
func (c CollectionCash) Type() ledger.DocumentType     { return TypeCollectionCash }

// TaxPayment debits a bank or credit-card account directly by id.
type TaxPayment struct {
	ID        ledger.DocumentID `json:"id"`
	AccountID ledger.HolderID   `json:"account_id"`
	TaxKind   string            `json:"tax_kind,omitempty"`
	Amount    decimal.Decimal   `json:"amount"`
}

func (t TaxPayment) DocumentID() ledger.DocumentID { return t.ID }
func (t TaxPayment) Type() ledger.DocumentType     { return TypeTaxPayment }
