/*
ledger.go - Balance reconstruction over the effect store

PURPOSE:
  The Ledger is the read-side companion to the reconciliation engine. The
  engine writes effects and balances; the Ledger recomputes what a holder's
  balance SHOULD be from its active effects and detects drift between the
  derived value and the stored one.

CENTRAL INVARIANT:
  For every holder:

      storedBalance == openingBalance + Σ(active effects)

  Recompute checks this equality; Repair restores it by writing the derived
  value back. Repair doubles as the self-healing operation if the two ever
  diverge (a store bug, a crashed process, manual database surgery).

CORRECTIONS:
  Nothing here edits effects. A wrong balance is fixed by recomputing from
  the effect history, never by adjusting individual entries.

SEE ALSO:
  - store.go: Persistence interfaces
  - engine package: The write path that keeps the invariant in the first place
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Ledger provides balance reconstruction and drift detection.
type Ledger struct {
	Effects Store
	Holders HolderStore
}

// NewLedger creates a ledger over the given stores.
func NewLedger(effects Store, holders HolderStore) *Ledger {
	return &Ledger{Effects: effects, Holders: holders}
}

// DerivedBalance computes a holder's balance from scratch:
// opening balance plus the sum of its active effects.
func (l *Ledger) DerivedBalance(ctx context.Context, id HolderID) (decimal.Decimal, error) {
	h, err := l.Holders.GetHolder(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}

	active, err := l.Effects.ActiveByHolder(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}

	return h.OpeningBalance.Add(SumActive(active)), nil
}

// DriftReport compares a holder's stored balance against the derived one.
type DriftReport struct {
	HolderID HolderID
	Stored   decimal.Decimal
	Derived  decimal.Decimal
	Drift    decimal.Decimal // Stored - Derived; zero when consistent
	Repaired bool
}

// CheckDrift computes the drift report for one holder without repairing.
func (l *Ledger) CheckDrift(ctx context.Context, id HolderID) (DriftReport, error) {
	h, err := l.Holders.GetHolder(ctx, id)
	if err != nil {
		return DriftReport{}, err
	}

	derived, err := l.DerivedBalance(ctx, id)
	if err != nil {
		return DriftReport{}, err
	}

	return DriftReport{
		HolderID: id,
		Stored:   h.Balance,
		Derived:  derived,
		Drift:    h.Balance.Sub(derived),
	}, nil
}

// Repair recomputes the holder's balance and, if the stored value has
// drifted, writes the derived value back. The write is conditioned on the
// version observed during the check, so a concurrent effect application
// surfaces as ErrConcurrencyConflict instead of being overwritten.
func (l *Ledger) Repair(ctx context.Context, id HolderID) (DriftReport, error) {
	h, err := l.Holders.GetHolder(ctx, id)
	if err != nil {
		return DriftReport{}, err
	}

	active, err := l.Effects.ActiveByHolder(ctx, id)
	if err != nil {
		return DriftReport{}, err
	}

	derived := h.OpeningBalance.Add(SumActive(active))
	report := DriftReport{
		HolderID: id,
		Stored:   h.Balance,
		Derived:  derived,
		Drift:    h.Balance.Sub(derived),
	}

	if report.Drift.IsZero() {
		return report, nil
	}

	if err := l.Holders.UpdateBalance(ctx, id, derived, h.Version); err != nil {
		return report, err
	}
	report.Repaired = true
	return report, nil
}

// History returns a holder's full effect history, voided entries included.
func (l *Ledger) History(ctx context.Context, id HolderID) ([]Effect, error) {
	return l.Effects.EffectsByHolder(ctx, id)
}
