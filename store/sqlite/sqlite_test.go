package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppend_ActiveKeyUniqueAtDatabaseLevel(t *testing.T) {
	// GIVEN: An active effect for (bill, doc-1, cust-1)
	// WHEN: A second row for the same key is inserted
	// THEN: The partial unique index rejects it as ErrDuplicateEffect

	ctx := context.Background()
	s := newTestStore(t)

	e := ledger.Effect{
		ID: "e1", DocumentType: "bill", DocumentID: "doc-1",
		HolderID: "cust-1", Amount: ledger.MustDecimal("-100"),
		PostedAt: time.Now().UTC(),
	}
	require.NoError(t, s.Append(ctx, e))

	e.ID = "e2"
	err := s.Append(ctx, e)
	require.ErrorIs(t, err, ledger.ErrDuplicateEffect)

	// A void frees the key for re-posting.
	_, err = s.Void(ctx, "e1", time.Now().UTC())
	require.NoError(t, err)
	assert.NoError(t, s.Append(ctx, e))
}

func TestVoid_DistinguishesUnknownFromAlreadyVoided(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Void(ctx, "ghost", time.Now().UTC())
	assert.ErrorIs(t, err, ledger.ErrEffectNotFound)

	e := ledger.Effect{
		ID: "e1", DocumentType: "bill", DocumentID: "doc-1",
		HolderID: "cust-1", Amount: ledger.MustDecimal("-100"),
		PostedAt: time.Now().UTC(),
	}
	require.NoError(t, s.Append(ctx, e))

	voided, err := s.Void(ctx, "e1", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, voided.Voided)
	require.NotNil(t, voided.VoidedAt)
	assert.True(t, voided.Amount.Equal(ledger.MustDecimal("-100")))

	_, err = s.Void(ctx, "e1", time.Now().UTC())
	assert.ErrorIs(t, err, ledger.ErrEffectAlreadyVoided)
}

func TestUpdateBalance_VersionGuardInSQL(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveHolder(ctx, ledger.Holder{
		ID: "cust-1", Type: ledger.HolderCustomer, Name: "Acme Builders",
		OpeningBalance: ledger.MustDecimal("1000"),
	}))

	require.NoError(t, s.UpdateBalance(ctx, "cust-1", ledger.MustDecimal("900"), 0))

	err := s.UpdateBalance(ctx, "cust-1", ledger.MustDecimal("800"), 0)
	require.ErrorIs(t, err, ledger.ErrConcurrencyConflict)

	err = s.UpdateBalance(ctx, "ghost", ledger.MustDecimal("1"), 0)
	assert.ErrorIs(t, err, ledger.ErrHolderNotFound)

	h, err := s.GetHolder(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, h.Balance.Equal(ledger.MustDecimal("900")))
	assert.Equal(t, int64(1), h.Version)
}

func TestSaveHolder_ResaveKeepsBalanceAndVersion(t *testing.T) {
	// GIVEN: A holder whose balance the engine has moved
	// WHEN: The holder row is re-saved (rename)
	// THEN: Name updates; balance and version stay engine-owned

	ctx := context.Background()
	s := newTestStore(t)

	h := ledger.Holder{
		ID: "cust-1", Type: ledger.HolderCustomer, Name: "Acme Builders",
		OpeningBalance: ledger.MustDecimal("1000"),
	}
	require.NoError(t, s.SaveHolder(ctx, h))
	require.NoError(t, s.UpdateBalance(ctx, "cust-1", ledger.MustDecimal("700"), 0))

	h.Name = "Acme Builders Ltd"
	require.NoError(t, s.SaveHolder(ctx, h))

	got, err := s.GetHolder(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Builders Ltd", got.Name)
	assert.True(t, got.Balance.Equal(ledger.MustDecimal("700")))
	assert.Equal(t, int64(1), got.Version)
}

func TestResolve_SQLCaseInsensitiveMatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveHolder(ctx, ledger.Holder{
		ID: "supp-1", Type: ledger.HolderSupplier, Name: " SteelCo ",
	}))

	h, err := s.Resolve(ctx, "steelco", ledger.HolderSupplier)
	require.NoError(t, err)
	assert.Equal(t, ledger.HolderID("supp-1"), h.ID)

	_, err = s.Resolve(ctx, "steelco", ledger.HolderCustomer)
	assert.ErrorIs(t, err, ledger.ErrHolderNotFound)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveHolder(ctx, ledger.Holder{
		ID: "cust-1", Type: ledger.HolderCustomer, Name: "Acme Builders",
	}))

	wantErr := assert.AnError
	err := s.WithTx(ctx, func(tx ledger.StoreTx) error {
		if err := tx.Append(ctx, ledger.Effect{
			ID: "e1", DocumentType: "bill", DocumentID: "doc-1",
			HolderID: "cust-1", Amount: ledger.MustDecimal("-100"),
			PostedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	effects, err := s.EffectsByHolder(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, effects)
}

func TestDocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	payload := []byte(`{"id":"bill-1","customer_name":"Acme Builders","total_amount":"1000"}`)
	require.NoError(t, s.SaveDocument(ctx, "bill", "bill-1", payload))

	got, err := s.GetDocument(ctx, "bill", "bill-1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	all, err := s.ListDocuments(ctx, "bill")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteDocument(ctx, "bill", "bill-1"))
	got, err = s.GetDocument(ctx, "bill", "bill-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
