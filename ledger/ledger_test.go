package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/ledger/store"
)

func seedHolder(t *testing.T, m *store.Memory, id ledger.HolderID, opening string) {
	t.Helper()
	require.NoError(t, m.SaveHolder(context.Background(), ledger.Holder{
		ID:             id,
		Type:           ledger.HolderCustomer,
		Name:           string(id),
		OpeningBalance: ledger.MustDecimal(opening),
		Balance:        ledger.MustDecimal(opening),
	}))
}

func post(t *testing.T, m *store.Memory, id ledger.EffectID, holder ledger.HolderID, amount string) {
	t.Helper()
	require.NoError(t, m.Append(context.Background(), ledger.Effect{
		ID:           id,
		DocumentType: "bill",
		DocumentID:   ledger.DocumentID("doc-" + id),
		HolderID:     holder,
		Amount:       ledger.MustDecimal(amount),
		PostedAt:     time.Now().UTC(),
	}))
}

// =============================================================================
// BALANCE RECONSTRUCTION
// =============================================================================

func TestDerivedBalance_OpeningPlusActiveEffects(t *testing.T) {
	// GIVEN: A holder opening at 1000 with effects -300 and +50
	// WHEN: The balance is derived from the ledger
	// THEN: 1000 - 300 + 50 = 750

	ctx := context.Background()
	m := store.NewMemory()
	seedHolder(t, m, "cust-1", "1000")
	post(t, m, "e1", "cust-1", "-300")
	post(t, m, "e2", "cust-1", "50")

	l := ledger.NewLedger(m, m)
	derived, err := l.DerivedBalance(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, derived.Equal(ledger.MustDecimal("750")), "got %s", derived)
}

func TestDerivedBalance_IgnoresVoidedEffects(t *testing.T) {
	// GIVEN: A holder with one active and one voided effect
	// WHEN: The balance is derived
	// THEN: Only the active effect counts

	ctx := context.Background()
	m := store.NewMemory()
	seedHolder(t, m, "cust-1", "0")
	post(t, m, "e1", "cust-1", "-300")
	post(t, m, "e2", "cust-1", "-200")

	_, err := m.Void(ctx, "e2", time.Now().UTC())
	require.NoError(t, err)

	l := ledger.NewLedger(m, m)
	derived, err := l.DerivedBalance(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, derived.Equal(ledger.MustDecimal("-300")), "got %s", derived)
}

// =============================================================================
// DRIFT DETECTION AND REPAIR
// =============================================================================

func TestCheckDrift_CleanHolderHasZeroDrift(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedHolder(t, m, "cust-1", "500")

	l := ledger.NewLedger(m, m)
	report, err := l.CheckDrift(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, report.Drift.IsZero())
	assert.False(t, report.Repaired)
}

func TestRepair_OverwritesStoredBalanceFromLedger(t *testing.T) {
	// GIVEN: A stored balance corrupted away from the ledger's truth
	// WHEN: Repair runs
	// THEN: The stored balance matches the derivation again

	ctx := context.Background()
	m := store.NewMemory()
	seedHolder(t, m, "cust-1", "1000")
	post(t, m, "e1", "cust-1", "-400")

	// Corrupt the stored balance directly.
	h, err := m.GetHolder(ctx, "cust-1")
	require.NoError(t, err)
	require.NoError(t, m.UpdateBalance(ctx, h.ID, ledger.MustDecimal("999"), h.Version))

	l := ledger.NewLedger(m, m)
	report, err := l.Repair(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, report.Repaired)
	assert.True(t, report.Derived.Equal(ledger.MustDecimal("600")))

	fixed, err := m.GetHolder(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, fixed.Balance.Equal(ledger.MustDecimal("600")), "got %s", fixed.Balance)
}

func TestRepair_NoopWhenInSync(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedHolder(t, m, "cust-1", "1000")

	l := ledger.NewLedger(m, m)
	report, err := l.Repair(ctx, "cust-1")
	require.NoError(t, err)
	assert.False(t, report.Repaired)
}

func TestCheckDrift_UnknownHolder(t *testing.T) {
	m := store.NewMemory()
	l := ledger.NewLedger(m, m)

	_, err := l.CheckDrift(context.Background(), "ghost")
	assert.ErrorIs(t, err, ledger.ErrHolderNotFound)
}

// =============================================================================
// VOID SEMANTICS
// =============================================================================

func TestVoid_ExactlyOnce(t *testing.T) {
	// GIVEN: A posted effect
	// WHEN: It is voided twice
	// THEN: The second void fails with ErrEffectAlreadyVoided

	ctx := context.Background()
	m := store.NewMemory()
	seedHolder(t, m, "cust-1", "0")
	post(t, m, "e1", "cust-1", "-300")

	voided, err := m.Void(ctx, "e1", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, voided.Amount.Equal(ledger.MustDecimal("-300")))

	_, err = m.Void(ctx, "e1", time.Now().UTC())
	assert.ErrorIs(t, err, ledger.ErrEffectAlreadyVoided)
}

func TestHistory_IncludesVoidedRows(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedHolder(t, m, "cust-1", "0")
	post(t, m, "e1", "cust-1", "-300")
	post(t, m, "e2", "cust-1", "-200")

	_, err := m.Void(ctx, "e1", time.Now().UTC())
	require.NoError(t, err)

	l := ledger.NewLedger(m, m)
	history, err := l.History(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Voided)
	assert.False(t, history[1].Voided)
}
