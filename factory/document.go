/*
Package factory converts JSON payloads to document structs and back.

PURPOSE:
  The HTTP surface and the document store both deal in raw JSON; the engine
  deals in typed documents. This package is the single place where a
  document type tag selects the concrete struct, so neither side needs a
  type switch of its own.

JSON SCHEMA (one example per family):
  bill:            {"id": "...", "customer_name": "...", "total_amount": "200"}
  invoice:         {"id": "...", "supplier_outsourcer_name": "...", "total_amount": "300"}
  payment_check:   {"id": "...", "customer_name": "...", "account_name": "...", "amount": "50"}
  tax_payment:     {"id": "...", "account_id": "...", "amount": "75"}

VALIDATION:
  Parse enforces only the structural minimum: a document id and a
  non-negative amount. Holder resolution and business rules stay with the
  engine.

SEE ALSO:
  - documents/documents.go: The concrete structs
  - api/handlers.go: Primary consumer
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/documents"
	"github.com/warp/ledger-engine/ledger"
)

var (
	// ErrUnknownDocumentType is returned for a type tag outside the nine
	// known document families.
	ErrUnknownDocumentType = errors.New("unknown document type")

	// ErrInvalidDocument is returned when a payload is missing its id or
	// carries a negative amount.
	ErrInvalidDocument = errors.New("invalid document")
)

// Parse decodes a payload into the concrete document struct for dt.
func Parse(dt ledger.DocumentType, payload []byte) (documents.Document, error) {
	var (
		doc documents.Document
		err error
	)

	switch dt {
	case documents.TypeBill:
		doc, err = decode[documents.Bill](payload)
	case documents.TypeInvoice:
		doc, err = decode[documents.Invoice](payload)
	case documents.TypePaymentCheck:
		doc, err = decode[documents.PaymentCheck](payload)
	case documents.TypePaymentCreditCard:
		doc, err = decode[documents.PaymentCreditCard](payload)
	case documents.TypePaymentCash:
		doc, err = decode[documents.PaymentCash](payload)
	case documents.TypeCollectionCheck:
		doc, err = decode[documents.CollectionCheck](payload)
	case documents.TypeCollectionCreditCard:
		doc, err = decode[documents.CollectionCreditCard](payload)
	case documents.TypeCollectionCash:
		doc, err = decode[documents.CollectionCash](payload)
	case documents.TypeTaxPayment:
		doc, err = decode[documents.TaxPayment](payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDocumentType, dt)
	}
	if err != nil {
		return nil, err
	}

	if err := validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Encode serializes a document for the document store.
func Encode(doc documents.Document) ([]byte, error) {
	return json.Marshal(doc)
}

func decode[T documents.Document](payload []byte) (documents.Document, error) {
	var d T
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return d, nil
}

func validate(doc documents.Document) error {
	if doc.DocumentID() == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDocument)
	}
	if amount(doc).IsNegative() {
		return fmt.Errorf("%w: negative amount", ErrInvalidDocument)
	}
	return nil
}

func amount(doc documents.Document) decimal.Decimal {
	switch d := doc.(type) {
	case documents.Bill:
		return d.TotalAmount
	case documents.Invoice:
		return d.TotalAmount
	case documents.PaymentCheck:
		return d.Amount
	case documents.PaymentCreditCard:
		return d.Amount
	case documents.PaymentCash:
		return d.Amount
	case documents.CollectionCheck:
		return d.Amount
	case documents.CollectionCreditCard:
		return d.Amount
	case documents.CollectionCash:
		return d.Amount
	case documents.TaxPayment:
		return d.Amount
	default:
		return decimal.Zero
	}
}
