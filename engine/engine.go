/*
Package engine orchestrates effect computation and atomic application.

PURPOSE:
  The reconciliation engine is the only writer of holder balances. For each
  document lifecycle transition it computes the effect delta via the pure
  rules in the documents package, resolves holder references through the
  directory, and applies the delta to the ledger and the holder balances in
  one store transaction.

PUBLIC CONTRACT (one operation per lifecycle transition):
  ApplyCreate(doc)          post every effect the rules emit
  ApplyUpdate(old, new)     void the document's active effects, post the new ones
  ApplyDelete(doc)          void every active effect for the document

UPDATE SEMANTICS:
  Updates never re-derive the reversal from the holder's current balance.
  The previously posted effect is voided and its exact stored amount is
  reversed, then the new effect is posted. This is algebraically equivalent
  to delete-then-create.

CONCURRENCY:
  Holder resolution happens BEFORE any lock is taken; locks never span a
  directory call. Effect application serializes per holder: unique holder
  ids are locked in sorted order (no deadlocks between multi-holder
  documents), and the balance write is additionally conditioned on the
  holder's version, with bounded retries on conflict, so out-of-process
  writers are detected rather than lost.

FAILURE MODEL:
  All effects of one operation commit or none do. Every failure surfaces to
  the calling document service as a typed error; the service must treat it
  as reason to roll back its own document write. No error is swallowed.

SEE ALSO:
  - documents/rules.go: The pure effect rules
  - ledger/store.go: The transactional store contract
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/documents"
	"github.com/warp/ledger-engine/events"
	"github.com/warp/ledger-engine/ledger"
)

// ErrDocumentMismatch is returned when ApplyUpdate is handed documents with
// different identities.
var ErrDocumentMismatch = errors.New("old and new document identities differ")

// defaultMaxRetries bounds version-conflict retries before giving up.
const defaultMaxRetries = 3

// Engine applies document effect deltas atomically.
type Engine struct {
	Store      ledger.TxStore
	Publisher  events.Publisher // optional; nil disables event emission
	MaxRetries int

	lockMu sync.Mutex
	locks  map[ledger.HolderID]*sync.Mutex

	now func() time.Time
}

// New creates an engine over the given store.
func New(store ledger.TxStore) *Engine {
	return &Engine{
		Store:      store,
		MaxRetries: defaultMaxRetries,
		locks:      make(map[ledger.HolderID]*sync.Mutex),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Ledger returns the reconstruction view over the engine's store.
func (en *Engine) Ledger() *ledger.Ledger {
	return ledger.NewLedger(en.Store, en.Store)
}

// =============================================================================
// PUBLIC CONTRACT
// =============================================================================

// ApplyCreate computes and posts the effects of a newly created document.
// Either every effect is persisted and every touched balance updated, or
// nothing is.
func (en *Engine) ApplyCreate(ctx context.Context, doc documents.Document) error {
	resolved, err := en.resolve(ctx, documents.EffectsFor(doc))
	if err != nil {
		return err
	}
	if len(resolved) == 0 {
		return nil
	}

	unlock := en.lockHolders(holderIDs(resolved))
	defer unlock()

	var posted []ledger.Effect
	err = en.withRetry(ctx, func(tx ledger.StoreTx) error {
		posted = posted[:0]
		for _, r := range resolved {
			e := en.newEffect(doc, r)
			if err := tx.Append(ctx, e); err != nil {
				return err
			}
			if err := applyDelta(ctx, tx, e.HolderID, e.Amount); err != nil {
				return err
			}
			posted = append(posted, e)
		}
		return nil
	})
	if err != nil {
		return classify(err)
	}

	en.publishPosted(ctx, posted)
	return nil
}

// ApplyUpdate voids the document's previously posted effects, reversing
// their exact stored amounts, then posts the effects of the new state.
func (en *Engine) ApplyUpdate(ctx context.Context, oldDoc, newDoc documents.Document) error {
	if oldDoc.Type() != newDoc.Type() || oldDoc.DocumentID() != newDoc.DocumentID() {
		return ErrDocumentMismatch
	}

	resolved, err := en.resolve(ctx, documents.EffectsFor(newDoc))
	if err != nil {
		return err
	}

	active, err := en.Store.ActiveByDocument(ctx, oldDoc.Type(), oldDoc.DocumentID())
	if err != nil {
		return classify(err)
	}
	if len(active) == 0 && len(resolved) == 0 {
		return nil
	}

	ids := holderIDs(resolved)
	for _, e := range active {
		ids = append(ids, e.HolderID)
	}
	unlock := en.lockHolders(ids)
	defer unlock()

	var (
		posted []ledger.Effect
		voided []ledger.Effect
	)
	err = en.withRetry(ctx, func(tx ledger.StoreTx) error {
		posted, voided = posted[:0], voided[:0]

		// Void first: the new effect may target the same (document, holder)
		// key, which must be free before the post.
		current, err := tx.ActiveByDocument(ctx, oldDoc.Type(), oldDoc.DocumentID())
		if err != nil {
			return err
		}
		now := en.now()
		for _, e := range current {
			ve, err := tx.Void(ctx, e.ID, now)
			if err != nil {
				return err
			}
			if err := applyDelta(ctx, tx, ve.HolderID, ve.Amount.Neg()); err != nil {
				return err
			}
			voided = append(voided, ve)
		}

		for _, r := range resolved {
			e := en.newEffect(newDoc, r)
			if err := tx.Append(ctx, e); err != nil {
				return err
			}
			if err := applyDelta(ctx, tx, e.HolderID, e.Amount); err != nil {
				return err
			}
			posted = append(posted, e)
		}
		return nil
	})
	if err != nil {
		return classify(err)
	}

	en.publishVoided(ctx, voided)
	en.publishPosted(ctx, posted)
	return nil
}

// ApplyDelete voids every active effect the document posted, across all
// holders, compensating each balance by the negation of the stored amount.
func (en *Engine) ApplyDelete(ctx context.Context, doc documents.Document) error {
	active, err := en.Store.ActiveByDocument(ctx, doc.Type(), doc.DocumentID())
	if err != nil {
		return classify(err)
	}
	if len(active) == 0 {
		return nil
	}

	ids := make([]ledger.HolderID, 0, len(active))
	for _, e := range active {
		ids = append(ids, e.HolderID)
	}
	unlock := en.lockHolders(ids)
	defer unlock()

	var voided []ledger.Effect
	err = en.withRetry(ctx, func(tx ledger.StoreTx) error {
		voided = voided[:0]
		current, err := tx.ActiveByDocument(ctx, doc.Type(), doc.DocumentID())
		if err != nil {
			return err
		}
		now := en.now()
		for _, e := range current {
			ve, err := tx.Void(ctx, e.ID, now)
			if err != nil {
				return err
			}
			if err := applyDelta(ctx, tx, ve.HolderID, ve.Amount.Neg()); err != nil {
				return err
			}
			voided = append(voided, ve)
		}
		return nil
	})
	if err != nil {
		return classify(err)
	}

	en.publishVoided(ctx, voided)
	return nil
}

// Recompute re-derives a holder's balance from its active effects and
// repairs the stored value if it has drifted. The holder lock is held for
// the duration so no effect application interleaves with the repair.
func (en *Engine) Recompute(ctx context.Context, id ledger.HolderID) (ledger.DriftReport, error) {
	unlock := en.lockHolders([]ledger.HolderID{id})
	defer unlock()

	return en.Ledger().Repair(ctx, id)
}

// =============================================================================
// RESOLUTION
// =============================================================================

// resolvedEffect pairs a spec with the holder it resolved to.
type resolvedEffect struct {
	spec   documents.EffectSpec
	holder ledger.Holder
}

// resolve maps specs to holders. Required misses and any ambiguity abort;
// optional misses are dropped. No locks are held here.
func (en *Engine) resolve(ctx context.Context, specs []documents.EffectSpec) ([]resolvedEffect, error) {
	resolved := make([]resolvedEffect, 0, len(specs))
	for _, spec := range specs {
		holder, found, err := en.resolveSpec(ctx, spec)
		if err != nil {
			return nil, err
		}
		if !found {
			if spec.Required {
				return nil, &ledger.HolderNotFoundError{Field: spec.Field, Name: spec.Name, Types: spec.Types}
			}
			continue
		}

		if len(spec.AccountTypes) > 0 && !eligibleAccount(holder, spec.AccountTypes) {
			return nil, &ledger.InvalidHolderTypeError{
				HolderID: holder.ID,
				Got:      holder.AccountType,
				Want:     spec.AccountTypes,
			}
		}

		resolved = append(resolved, resolvedEffect{spec: spec, holder: holder})
	}
	return resolved, nil
}

func (en *Engine) resolveSpec(ctx context.Context, spec documents.EffectSpec) (ledger.Holder, bool, error) {
	if spec.ByID {
		h, err := en.Store.GetHolder(ctx, ledger.HolderID(spec.Name))
		if errors.Is(err, ledger.ErrHolderNotFound) {
			return ledger.Holder{}, false, nil
		}
		if err != nil {
			return ledger.Holder{}, false, classify(err)
		}
		return h, true, nil
	}

	for _, ht := range spec.Types {
		h, err := en.Store.Resolve(ctx, spec.Name, ht)
		if errors.Is(err, ledger.ErrHolderNotFound) {
			continue
		}
		if err != nil {
			// Ambiguity fails loudly; it never falls through to the next type.
			return ledger.Holder{}, false, classify(err)
		}
		return h, true, nil
	}
	return ledger.Holder{}, false, nil
}

func eligibleAccount(h ledger.Holder, want []ledger.AccountType) bool {
	if h.Type != ledger.HolderAccount {
		return false
	}
	for _, at := range want {
		if h.AccountType == at {
			return true
		}
	}
	return false
}

// =============================================================================
// APPLICATION HELPERS
// =============================================================================

func (en *Engine) newEffect(doc documents.Document, r resolvedEffect) ledger.Effect {
	return ledger.Effect{
		ID:           ledger.EffectID(uuid.NewString()),
		DocumentType: doc.Type(),
		DocumentID:   doc.DocumentID(),
		HolderID:     r.holder.ID,
		Amount:       r.spec.Amount,
		PostedAt:     en.now(),
	}
}

// applyDelta reads the holder inside the transaction and writes the new
// balance conditioned on the version it just read.
func applyDelta(ctx context.Context, tx ledger.StoreTx, id ledger.HolderID, delta decimal.Decimal) error {
	h, err := tx.GetHolder(ctx, id)
	if err != nil {
		return err
	}
	return tx.UpdateBalance(ctx, id, h.Balance.Add(delta), h.Version)
}

// withRetry runs fn in a store transaction, retrying version conflicts with
// a short linear backoff up to MaxRetries.
func (en *Engine) withRetry(ctx context.Context, fn func(tx ledger.StoreTx) error) error {
	retries := en.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
			}
		}
		err = en.Store.WithTx(ctx, fn)
		if err == nil || !ledger.IsRetryable(err) {
			return err
		}
	}
	return err
}

func (en *Engine) lockHolders(ids []ledger.HolderID) func() {
	unique := make(map[ledger.HolderID]bool, len(ids))
	ordered := make([]ledger.HolderID, 0, len(ids))
	for _, id := range ids {
		if !unique[id] {
			unique[id] = true
			ordered = append(ordered, id)
		}
	}
	// Sorted acquisition avoids deadlocks between multi-holder documents.
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	for _, id := range ordered {
		en.holderLock(id).Lock()
	}
	return func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			en.holderLock(ordered[i]).Unlock()
		}
	}
}

func (en *Engine) holderLock(id ledger.HolderID) *sync.Mutex {
	en.lockMu.Lock()
	defer en.lockMu.Unlock()

	mu, ok := en.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		en.locks[id] = mu
	}
	return mu
}

func holderIDs(resolved []resolvedEffect) []ledger.HolderID {
	ids := make([]ledger.HolderID, len(resolved))
	for i, r := range resolved {
		ids[i] = r.holder.ID
	}
	return ids
}

// classify wraps unexpected store failures as persistence errors; typed
// engine errors pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if ledger.IsClientError(err) || ledger.IsRetryable(err) ||
		errors.Is(err, ledger.ErrEffectNotFound) || errors.Is(err, ledger.ErrEffectAlreadyVoided) ||
		errors.Is(err, ledger.ErrPersistence) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ledger.ErrPersistence, err)
}

// =============================================================================
// EVENTS
// =============================================================================

func (en *Engine) publishPosted(ctx context.Context, posted []ledger.Effect) {
	if en.Publisher == nil {
		return
	}
	for _, e := range posted {
		ev := events.EffectPosted{
			EffectID:     e.ID,
			DocumentType: e.DocumentType,
			DocumentID:   e.DocumentID,
			HolderID:     e.HolderID,
			Amount:       e.Amount,
			OccurredAt:   e.PostedAt,
		}
		if err := en.Publisher.Publish(ctx, ev); err != nil {
			log.Printf("[Engine] effect_posted publish failed: %v", err)
		}
	}
}

func (en *Engine) publishVoided(ctx context.Context, voided []ledger.Effect) {
	if en.Publisher == nil {
		return
	}
	for _, e := range voided {
		at := en.now()
		if e.VoidedAt != nil {
			at = *e.VoidedAt
		}
		ev := events.EffectVoided{
			EffectID:     e.ID,
			DocumentType: e.DocumentType,
			DocumentID:   e.DocumentID,
			HolderID:     e.HolderID,
			Amount:       e.Amount,
			OccurredAt:   at,
		}
		if err := en.Publisher.Publish(ctx, ev); err != nil {
			log.Printf("[Engine] effect_voided publish failed: %v", err)
		}
	}
}
