package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/documents"
	"github.com/warp/ledger-engine/engine"
	"github.com/warp/ledger-engine/ledger"
)

func TestAuditorRunOnce_CleanStoreFindsNothing(t *testing.T) {
	en, m := newTestEngine(t)
	auditor := engine.NewDriftAuditor(en, m)

	run, err := auditor.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, run.HoldersChecked)
	assert.Zero(t, run.DriftsFound)
	assert.Zero(t, run.Repaired)
	assert.Empty(t, run.Error)
}

func TestAuditorRunOnce_RepairsInjectedDrift(t *testing.T) {
	// GIVEN: One holder whose stored balance was corrupted out-of-band
	// WHEN: An audit pass runs
	// THEN: The drift is found, repaired, and the run is recorded

	en, m := newTestEngine(t)
	ctx := context.Background()

	bill := documents.Bill{ID: "bill-1", CustomerName: "Acme Builders",
		TotalAmount: ledger.MustDecimal("1000")}
	require.NoError(t, en.ApplyCreate(ctx, bill))

	h, err := m.GetHolder(ctx, "cust-acme")
	require.NoError(t, err)
	require.NoError(t, m.UpdateBalance(ctx, h.ID, h.Balance.Add(ledger.MustDecimal("250")), h.Version))

	auditor := engine.NewDriftAuditor(en, m)
	run, err := auditor.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, run.DriftsFound)
	assert.Equal(t, 1, run.Repaired)
	assert.Equal(t, "4000", balanceOf(t, m, "cust-acme"))

	runs, err := m.ListAuditRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestAuditorStartStop(t *testing.T) {
	// GIVEN: An auditor with a short interval
	// WHEN: Started and stopped
	// THEN: At least the immediate pass ran and Stop returns promptly

	en, m := newTestEngine(t)
	auditor := engine.NewDriftAuditor(en, m)
	auditor.CheckInterval = 50 * time.Millisecond

	auditor.Start()

	deadline := time.After(2 * time.Second)
	for {
		runs, err := m.ListAuditRuns(context.Background(), 1)
		require.NoError(t, err)
		if len(runs) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no audit run recorded before deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}

	auditor.Stop()
}

func TestAuditorDisabled_StartIsNoop(t *testing.T) {
	en, m := newTestEngine(t)
	auditor := engine.NewDriftAuditor(en, m)
	auditor.Enabled = false

	auditor.Start()
	auditor.Stop()

	runs, err := m.ListAuditRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
