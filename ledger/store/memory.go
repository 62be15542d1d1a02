// Package store provides in-memory implementations of the ledger
// persistence interfaces, for tests and development.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	effects   map[ledger.EffectID]*ledger.Effect
	order     []ledger.EffectID // posting order, for stable history reads
	activeKey map[ledger.EffectKey]ledger.EffectID
	holders   map[ledger.HolderID]*ledger.Holder
	documents map[docKey][]byte
	auditRuns []ledger.AuditRun
}

type docKey struct {
	Type ledger.DocumentType
	ID   ledger.DocumentID
}

func NewMemory() *Memory {
	return &Memory{
		effects:   make(map[ledger.EffectID]*ledger.Effect),
		activeKey: make(map[ledger.EffectKey]ledger.EffectID),
		holders:   make(map[ledger.HolderID]*ledger.Holder),
		documents: make(map[docKey][]byte),
	}
}

// =============================================================================
// EFFECT STORE (ledger.Store interface)
// =============================================================================

func (m *Memory) Append(_ context.Context, e ledger.Effect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(e)
}

func (m *Memory) appendLocked(e ledger.Effect) error {
	if e.Voided {
		// Posted effects start active; voiding is a separate step.
		e.Voided = false
		e.VoidedAt = nil
	}
	if _, taken := m.activeKey[e.Key()]; taken {
		return ledger.ErrDuplicateEffect
	}
	cp := e
	m.effects[e.ID] = &cp
	m.order = append(m.order, e.ID)
	m.activeKey[e.Key()] = e.ID
	return nil
}

func (m *Memory) Void(_ context.Context, id ledger.EffectID, at time.Time) (ledger.Effect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voidLocked(id, at)
}

func (m *Memory) voidLocked(id ledger.EffectID, at time.Time) (ledger.Effect, error) {
	e, ok := m.effects[id]
	if !ok {
		return ledger.Effect{}, ledger.ErrEffectNotFound
	}
	if e.Voided {
		return ledger.Effect{}, ledger.ErrEffectAlreadyVoided
	}
	e.Voided = true
	t := at
	e.VoidedAt = &t
	delete(m.activeKey, e.Key())
	return *e, nil
}

func (m *Memory) ActiveByDocument(_ context.Context, dt ledger.DocumentType, docID ledger.DocumentID) ([]ledger.Effect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Effect
	for _, id := range m.order {
		e := m.effects[id]
		if !e.Voided && e.DocumentType == dt && e.DocumentID == docID {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (m *Memory) ActiveByDocumentHolder(_ context.Context, dt ledger.DocumentType, docID ledger.DocumentID, holderID ledger.HolderID) (*ledger.Effect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := ledger.EffectKey{DocumentType: dt, DocumentID: docID, HolderID: holderID}
	id, ok := m.activeKey[key]
	if !ok {
		return nil, nil
	}
	cp := *m.effects[id]
	return &cp, nil
}

func (m *Memory) ActiveByHolder(_ context.Context, holderID ledger.HolderID) ([]ledger.Effect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Effect
	for _, id := range m.order {
		e := m.effects[id]
		if !e.Voided && e.HolderID == holderID {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (m *Memory) EffectsByHolder(_ context.Context, holderID ledger.HolderID) ([]ledger.Effect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Effect
	for _, id := range m.order {
		e := m.effects[id]
		if e.HolderID == holderID {
			result = append(result, *e)
		}
	}
	return result, nil
}

// =============================================================================
// HOLDER STORE (ledger.HolderStore interface)
// =============================================================================

func (m *Memory) GetHolder(_ context.Context, id ledger.HolderID) (ledger.Holder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.holders[id]
	if !ok {
		return ledger.Holder{}, ledger.ErrHolderNotFound
	}
	return *h, nil
}

func (m *Memory) ListHolders(_ context.Context, types ...ledger.HolderType) ([]ledger.Holder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Holder
	for _, h := range m.holders {
		if len(types) == 0 || containsType(types, h.Type) {
			result = append(result, *h)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) SaveHolder(_ context.Context, h ledger.Holder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h.Balance.IsZero() && !h.OpeningBalance.IsZero() {
		h.Balance = h.OpeningBalance
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	cp := h
	m.holders[h.ID] = &cp
	return nil
}

func (m *Memory) UpdateBalance(_ context.Context, id ledger.HolderID, balance decimal.Decimal, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateBalanceLocked(id, balance, expectedVersion)
}

func (m *Memory) updateBalanceLocked(id ledger.HolderID, balance decimal.Decimal, expectedVersion int64) error {
	h, ok := m.holders[id]
	if !ok {
		return ledger.ErrHolderNotFound
	}
	if h.Version != expectedVersion {
		return &ledger.VersionConflictError{HolderID: id, Expected: expectedVersion, Actual: h.Version}
	}
	h.Balance = balance
	h.Version++
	return nil
}

// =============================================================================
// DIRECTORY (ledger.Directory interface)
// =============================================================================

// Resolve matches holders of one type by case-insensitive trimmed name.
// Two matches fail loudly: first-match resolution is a correctness bug.
func (m *Memory) Resolve(_ context.Context, name string, ht ledger.HolderType) (ledger.Holder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return ledger.Holder{}, ledger.ErrHolderNotFound
	}

	var matches []*ledger.Holder
	for _, h := range m.holders {
		if h.Type == ht && strings.ToLower(strings.TrimSpace(h.Name)) == needle {
			matches = append(matches, h)
		}
	}

	switch len(matches) {
	case 0:
		return ledger.Holder{}, ledger.ErrHolderNotFound
	case 1:
		return *matches[0], nil
	default:
		ids := make([]ledger.HolderID, len(matches))
		for i, h := range matches {
			ids[i] = h.ID
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return ledger.Holder{}, &ledger.AmbiguousHolderError{Name: name, Type: ht, Matches: ids}
	}
}

// =============================================================================
// DOCUMENT STORE (ledger.DocumentStore interface)
// =============================================================================

func (m *Memory) SaveDocument(_ context.Context, dt ledger.DocumentType, id ledger.DocumentID, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[docKey{Type: dt, ID: id}] = append([]byte(nil), payload...)
	return nil
}

func (m *Memory) GetDocument(_ context.Context, dt ledger.DocumentType, id ledger.DocumentID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	payload, ok := m.documents[docKey{Type: dt, ID: id}]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), payload...), nil
}

func (m *Memory) DeleteDocument(_ context.Context, dt ledger.DocumentType, id ledger.DocumentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, docKey{Type: dt, ID: id})
	return nil
}

func (m *Memory) ListDocuments(_ context.Context, dt ledger.DocumentType) (map[ledger.DocumentID][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[ledger.DocumentID][]byte)
	for k, payload := range m.documents {
		if k.Type == dt {
			result[k.ID] = append([]byte(nil), payload...)
		}
	}
	return result, nil
}

// =============================================================================
// AUDIT STORE (ledger.AuditStore interface)
// =============================================================================

func (m *Memory) SaveAuditRun(_ context.Context, run ledger.AuditRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditRuns = append(m.auditRuns, run)
	return nil
}

func (m *Memory) ListAuditRuns(_ context.Context, limit int) ([]ledger.AuditRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := append([]ledger.AuditRun(nil), m.auditRuns...)
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// =============================================================================
// TRANSACTIONS (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn against a transactional view. For the memory store this
// is simulated with a snapshot + rollback on error, taken under the write
// lock so concurrent transactions serialize.
func (m *Memory) WithTx(_ context.Context, fn func(tx ledger.StoreTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	effects   map[ledger.EffectID]*ledger.Effect
	order     []ledger.EffectID
	activeKey map[ledger.EffectKey]ledger.EffectID
	holders   map[ledger.HolderID]*ledger.Holder
}

func (m *Memory) snapshot() memorySnapshot {
	effects := make(map[ledger.EffectID]*ledger.Effect, len(m.effects))
	for id, e := range m.effects {
		cp := *e
		effects[id] = &cp
	}
	activeKey := make(map[ledger.EffectKey]ledger.EffectID, len(m.activeKey))
	for k, v := range m.activeKey {
		activeKey[k] = v
	}
	holders := make(map[ledger.HolderID]*ledger.Holder, len(m.holders))
	for id, h := range m.holders {
		cp := *h
		holders[id] = &cp
	}
	return memorySnapshot{
		effects:   effects,
		order:     append([]ledger.EffectID(nil), m.order...),
		activeKey: activeKey,
		holders:   holders,
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.effects = s.effects
	m.order = s.order
	m.activeKey = s.activeKey
	m.holders = s.holders
}

// txView operates on the parent's maps directly; WithTx holds the write lock
// and rolls back via snapshot on error.
type txView struct {
	parent *Memory
}

func (tv *txView) Append(_ context.Context, e ledger.Effect) error {
	return tv.parent.appendLocked(e)
}

func (tv *txView) Void(_ context.Context, id ledger.EffectID, at time.Time) (ledger.Effect, error) {
	return tv.parent.voidLocked(id, at)
}

func (tv *txView) ActiveByDocument(_ context.Context, dt ledger.DocumentType, docID ledger.DocumentID) ([]ledger.Effect, error) {
	var result []ledger.Effect
	for _, id := range tv.parent.order {
		e := tv.parent.effects[id]
		if !e.Voided && e.DocumentType == dt && e.DocumentID == docID {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (tv *txView) ActiveByDocumentHolder(_ context.Context, dt ledger.DocumentType, docID ledger.DocumentID, holderID ledger.HolderID) (*ledger.Effect, error) {
	key := ledger.EffectKey{DocumentType: dt, DocumentID: docID, HolderID: holderID}
	id, ok := tv.parent.activeKey[key]
	if !ok {
		return nil, nil
	}
	cp := *tv.parent.effects[id]
	return &cp, nil
}

func (tv *txView) ActiveByHolder(_ context.Context, holderID ledger.HolderID) ([]ledger.Effect, error) {
	var result []ledger.Effect
	for _, id := range tv.parent.order {
		e := tv.parent.effects[id]
		if !e.Voided && e.HolderID == holderID {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (tv *txView) EffectsByHolder(_ context.Context, holderID ledger.HolderID) ([]ledger.Effect, error) {
	var result []ledger.Effect
	for _, id := range tv.parent.order {
		e := tv.parent.effects[id]
		if e.HolderID == holderID {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (tv *txView) GetHolder(_ context.Context, id ledger.HolderID) (ledger.Holder, error) {
	h, ok := tv.parent.holders[id]
	if !ok {
		return ledger.Holder{}, ledger.ErrHolderNotFound
	}
	return *h, nil
}

func (tv *txView) ListHolders(_ context.Context, types ...ledger.HolderType) ([]ledger.Holder, error) {
	var result []ledger.Holder
	for _, h := range tv.parent.holders {
		if len(types) == 0 || containsType(types, h.Type) {
			result = append(result, *h)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (tv *txView) SaveHolder(_ context.Context, h ledger.Holder) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	cp := h
	tv.parent.holders[h.ID] = &cp
	return nil
}

func (tv *txView) UpdateBalance(_ context.Context, id ledger.HolderID, balance decimal.Decimal, expectedVersion int64) error {
	return tv.parent.updateBalanceLocked(id, balance, expectedVersion)
}

func containsType(types []ledger.HolderType, t ledger.HolderType) bool {
	for _, ht := range types {
		if ht == t {
			return true
		}
	}
	return false
}
