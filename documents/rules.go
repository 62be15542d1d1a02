/*
rules.go - Pure effect rules, one rule set per document type

PURPOSE:
  Maps a document's field values to zero or more signed balance effects.
  Rules are pure functions of the document state: no lookups, no clocks,
  no side effects. Resolution of names to holders belongs to the engine.

RULE TABLE:
  Bill                      customer (optional)            -total
  Invoice                   outsourcer, then supplier      +total
  Payment check/cash        customer (optional)            -amount
                            account (required)             -amount
  Payment credit card       customer (optional)            -amount
                            collector supplier (optional)  -amount
  Collection check/cc/cash  none
  Tax payment               account by id (required,       -amount
                            bank/credit-card only)

EMPTY FIELDS:
  A rule emits nothing for an empty name field. An unresolvable OPTIONAL
  field also produces zero effects; an unresolvable REQUIRED field aborts
  the whole document operation.

COLLECTIONS:
  Collections post no effects. Payments and collections are structurally
  symmetric, so this asymmetry is preserved observed behavior pending
  product clarification, not a rule of nature.
*/
package documents

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// EFFECT SPEC - What a rule asks the engine to post
// =============================================================================

// EffectSpec is an unresolved effect: a holder reference plus a signed
// amount. The engine resolves the reference and posts a ledger.Effect.
type EffectSpec struct {
	// Field names the document field the reference came from, for error
	// messages ("customer_name", "account_id", ...).
	Field string

	// Name is the free-text holder reference. When ByID is set, Name holds
	// a holder id instead and no directory lookup happens.
	Name string
	ByID bool

	// Types is the resolution order. The first type yielding a match wins;
	// ambiguity within a type always fails.
	Types []ledger.HolderType

	// Required marks fields whose resolution failure aborts the operation.
	Required bool

	// Amount is the signed balance contribution.
	Amount decimal.Decimal

	// AccountTypes, when non-empty, restricts which account types the
	// resolved holder may have. Violation is a fatal business-rule error.
	AccountTypes []ledger.AccountType
}

// =============================================================================
// RULES
// =============================================================================

// EffectsFor returns the effect specs for a document. Pure: same document
// state, same specs.
func EffectsFor(doc Document) []EffectSpec {
	switch d := doc.(type) {
	case Bill:
		return billEffects(d)
	case Invoice:
		return invoiceEffects(d)
	case PaymentCheck:
		return accountPaymentEffects(d.CustomerName, d.AccountName, d.Amount)
	case PaymentCash:
		return accountPaymentEffects(d.CustomerName, d.AccountName, d.Amount)
	case PaymentCreditCard:
		return creditCardPaymentEffects(d)
	case CollectionCheck, CollectionCreditCard, CollectionCash:
		// Collections adjust no balances. See package comment.
		return nil
	case TaxPayment:
		return taxPaymentEffects(d)
	default:
		return nil
	}
}

// Billing consumes customer credit.
func billEffects(b Bill) []EffectSpec {
	if blank(b.CustomerName) {
		return nil
	}
	return []EffectSpec{{
		Field:  "customer_name",
		Name:   b.CustomerName,
		Types:  []ledger.HolderType{ledger.HolderCustomer},
		Amount: b.TotalAmount.Neg(),
	}}
}

// The amount owed to the supplier or outsourcer grows. Outsourcers are
// checked first; a name matching neither directory is a hard error.
func invoiceEffects(i Invoice) []EffectSpec {
	if blank(i.SupplierOutsourcerName) {
		return nil
	}
	return []EffectSpec{{
		Field:    "supplier_outsourcer_name",
		Name:     i.SupplierOutsourcerName,
		Types:    []ledger.HolderType{ledger.HolderOutsourcer, ledger.HolderSupplier},
		Required: true,
		Amount:   i.TotalAmount,
	}}
}

// Check and cash payments reduce the paying account and, when a customer is
// named, the customer's outstanding balance.
func accountPaymentEffects(customerName, accountName string, amount decimal.Decimal) []EffectSpec {
	var specs []EffectSpec
	if !blank(customerName) {
		specs = append(specs, EffectSpec{
			Field:  "customer_name",
			Name:   customerName,
			Types:  []ledger.HolderType{ledger.HolderCustomer},
			Amount: amount.Neg(),
		})
	}
	if !blank(accountName) {
		specs = append(specs, EffectSpec{
			Field:    "account_name",
			Name:     accountName,
			Types:    []ledger.HolderType{ledger.HolderAccount},
			Required: true,
			Amount:   amount.Neg(),
		})
	}
	return specs
}

// Credit-card payments touch no account; they reduce the named customer and
// the supplier matching the collector name.
func creditCardPaymentEffects(p PaymentCreditCard) []EffectSpec {
	var specs []EffectSpec
	if !blank(p.CustomerName) {
		specs = append(specs, EffectSpec{
			Field:  "customer_name",
			Name:   p.CustomerName,
			Types:  []ledger.HolderType{ledger.HolderCustomer},
			Amount: p.Amount.Neg(),
		})
	}
	if !blank(p.CollectorName) {
		specs = append(specs, EffectSpec{
			Field:  "collector_name",
			Name:   p.CollectorName,
			Types:  []ledger.HolderType{ledger.HolderSupplier},
			Amount: p.Amount.Neg(),
		})
	}
	return specs
}

// Tax payments reference the account by id and only bank or credit-card
// accounts are eligible. A violation blocks document creation entirely.
func taxPaymentEffects(t TaxPayment) []EffectSpec {
	if blank(string(t.AccountID)) {
		return nil
	}
	return []EffectSpec{{
		Field:        "account_id",
		Name:         string(t.AccountID),
		ByID:         true,
		Types:        []ledger.HolderType{ledger.HolderAccount},
		Required:     true,
		Amount:       t.Amount.Neg(),
		AccountTypes: []ledger.AccountType{ledger.AccountBank, ledger.AccountCreditCard},
	}}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
