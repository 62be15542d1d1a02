/*
auditor.go - Background drift auditor

PURPOSE:
  Periodically walks every holder, recomputes its balance from active
  effects, and repairs any divergence between the stored and derived values.
  The reconstruction equality is the engine's central invariant; the auditor
  turns it into a continuously checked, self-healing property.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Each pass records an AuditRun (holders checked, drifts found, repaired)
  - Repairs go through Engine.Recompute, so they hold the holder lock and
    are version-checked like any other balance write

USAGE:
  auditor := engine.NewDriftAuditor(eng, store)
  auditor.Start()
  // ... later
  auditor.Stop()

SEE ALSO:
  - ledger/ledger.go: DriftReport and Repair
*/
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/ledger-engine/ledger"
)

// DriftAuditor periodically verifies the reconstruction invariant.
type DriftAuditor struct {
	Engine        *Engine
	Runs          ledger.AuditStore
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewDriftAuditor creates an auditor with a one-hour default interval.
func NewDriftAuditor(eng *Engine, runs ledger.AuditStore) *DriftAuditor {
	return &DriftAuditor{
		Engine:        eng,
		Runs:          runs,
		CheckInterval: time.Hour,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the background audit loop.
func (da *DriftAuditor) Start() {
	da.mu.Lock()
	defer da.mu.Unlock()

	if !da.Enabled {
		log.Println("[Auditor] Disabled, not starting")
		return
	}

	da.ticker = time.NewTicker(da.CheckInterval)
	da.wg.Add(1)
	go da.run()

	log.Printf("[Auditor] Started with check interval: %v", da.CheckInterval)
}

// Stop stops the auditor and waits for an in-flight pass to finish.
func (da *DriftAuditor) Stop() {
	da.mu.Lock()
	defer da.mu.Unlock()

	if da.ticker != nil {
		da.ticker.Stop()
		close(da.stop)
		da.wg.Wait()
		log.Println("[Auditor] Stopped")
	}
}

func (da *DriftAuditor) run() {
	defer da.wg.Done()

	// Run immediately on start
	da.audit(context.Background())

	for {
		select {
		case <-da.ticker.C:
			da.audit(context.Background())
		case <-da.stop:
			return
		}
	}
}

// audit performs one pass over all holders. Exported via RunOnce for manual
// triggering from the API.
func (da *DriftAuditor) audit(ctx context.Context) {
	run, err := da.RunOnce(ctx)
	if err != nil {
		log.Printf("[Auditor] Pass failed: %v", err)
		return
	}
	if run.DriftsFound > 0 {
		log.Printf("[Auditor] Checked %d holders: %d drifted, %d repaired",
			run.HoldersChecked, run.DriftsFound, run.Repaired)
	}
}

// RunOnce audits every holder once and records the run.
func (da *DriftAuditor) RunOnce(ctx context.Context) (ledger.AuditRun, error) {
	run := ledger.AuditRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	holders, err := da.Engine.Store.ListHolders(ctx)
	if err != nil {
		run.Error = err.Error()
		run.CompletedAt = time.Now().UTC()
		da.record(ctx, run)
		return run, err
	}

	for _, h := range holders {
		report, err := da.Engine.Recompute(ctx, h.ID)
		if err != nil {
			log.Printf("[Auditor] Recompute failed for holder %s: %v", h.ID, err)
			run.Error = err.Error()
			continue
		}
		run.HoldersChecked++
		if !report.Drift.IsZero() {
			run.DriftsFound++
			log.Printf("[Auditor] Drift on holder %s: stored %s, derived %s",
				h.ID, report.Stored, report.Derived)
		}
		if report.Repaired {
			run.Repaired++
		}
	}

	run.CompletedAt = time.Now().UTC()
	da.record(ctx, run)
	return run, nil
}

func (da *DriftAuditor) record(ctx context.Context, run ledger.AuditRun) {
	if da.Runs == nil {
		return
	}
	if err := da.Runs.SaveAuditRun(ctx, run); err != nil {
		log.Printf("[Auditor] Failed to record run: %v", err)
	}
}
