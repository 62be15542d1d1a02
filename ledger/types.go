/*
Package ledger provides the core balance reconciliation engine types.

PURPOSE:
  This package contains the domain-agnostic types for maintaining derived
  holder balances. Every balance change is recorded as an immutable Effect;
  the stored balance on a holder is always reconstructable as

      balance == openingBalance + Σ(active effects for that holder)

KEY CONCEPTS IN THIS FILE (types.go):
  - Holder: Any entity carrying a balance (account, customer, supplier,
    outsourcer)
  - Effect: An immutable ledger entry attributing a signed amount from one
    financial document to one holder
  - Typed IDs: Strong typing for holder/document/effect identifiers

DESIGN PRINCIPLES:
  1. Immutability: Effects are never edited, only voided
  2. Precision: Uses decimal.Decimal, never binary floats, for money
  3. Reconstructibility: Balance is derivable from the effect history
  4. Reference-by-id: Effects store the resolved holder id, so later renames
     never change past balance math

SEE ALSO:
  - store.go: Persistence interfaces
  - ledger.go: Balance reconstruction and drift detection
  - errors.go: Centralized error types
*/
package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type HolderID string
type DocumentID string
type DocumentType string
type EffectID string

// =============================================================================
// HOLDER - Any entity carrying a running balance
// =============================================================================

// HolderType discriminates the four balance-carrying entities.
type HolderType string

const (
	HolderAccount    HolderType = "account"
	HolderCustomer   HolderType = "customer"
	HolderSupplier   HolderType = "supplier"
	HolderOutsourcer HolderType = "outsourcer"
)

// Valid reports whether t is one of the four known holder types.
func (t HolderType) Valid() bool {
	switch t {
	case HolderAccount, HolderCustomer, HolderSupplier, HolderOutsourcer:
		return true
	}
	return false
}

// AccountType further classifies Account holders. Only bank and credit-card
// accounts are eligible targets for tax payments.
type AccountType string

const (
	AccountBank       AccountType = "bank"
	AccountCreditCard AccountType = "credit_card"
	AccountSavings    AccountType = "savings"
	AccountCash       AccountType = "cash"
)

// Valid reports whether a is a known account type.
func (a AccountType) Valid() bool {
	switch a {
	case AccountBank, AccountCreditCard, AccountSavings, AccountCash:
		return true
	}
	return false
}

// TaxEligible reports whether an account type may be debited by a tax payment.
func (a AccountType) TaxEligible() bool {
	return a == AccountBank || a == AccountCreditCard
}

// Holder is a balance-carrying entity.
//
// INVARIANTS:
//   - ID is stable and immutable; Name is mutable and used only for lookup
//   - Balance and Version are written exclusively by the reconciliation
//     engine; Version increments on every applied effect
//   - Balance == OpeningBalance + Σ(active effects with this HolderID)
type Holder struct {
	ID             HolderID
	Type           HolderType
	Name           string
	AccountType    AccountType // only meaningful when Type == HolderAccount
	OpeningBalance decimal.Decimal
	Balance        decimal.Decimal
	Version        int64
	CreatedAt      time.Time
}

// =============================================================================
// EFFECT - Immutable ledger entry
// =============================================================================

// Effect is one signed balance contribution from one document to one holder.
//
// INVARIANTS:
//   - Immutable once posted; corrections void the effect and post a new one
//   - At most one ACTIVE (non-voided) effect exists per
//     (DocumentType, DocumentID, HolderID) key
//   - Voidable exactly once
type Effect struct {
	ID           EffectID
	DocumentType DocumentType
	DocumentID   DocumentID
	HolderID     HolderID
	Amount       decimal.Decimal // signed: negative reduces the balance
	PostedAt     time.Time
	Voided       bool
	VoidedAt     *time.Time
}

// Key identifies the document/holder pair an effect belongs to.
func (e Effect) Key() EffectKey {
	return EffectKey{DocumentType: e.DocumentType, DocumentID: e.DocumentID, HolderID: e.HolderID}
}

// EffectKey is the uniqueness key for active effects.
type EffectKey struct {
	DocumentType DocumentType
	DocumentID   DocumentID
	HolderID     HolderID
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

// ParseDecimal parses a decimal string, trimming surrounding whitespace.
func ParseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// MustDecimal parses a decimal literal, returning zero on malformed input.
// Intended for constants and test fixtures.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SumActive totals the amounts of the non-voided effects in the slice.
func SumActive(effects []Effect) decimal.Decimal {
	total := decimal.Zero
	for _, e := range effects {
		if !e.Voided {
			total = total.Add(e.Amount)
		}
	}
	return total
}
