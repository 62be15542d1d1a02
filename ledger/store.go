/*
store.go - Persistence interfaces for effects and holders

PURPOSE:
  Defines the interface between the reconciliation engine and the database.
  Different implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  Store:         Effect persistence (append, void, point lookups)
  HolderStore:   Holder read + versioned balance write
  Directory:     Free-text name to holder resolution
  TxStore:       Transactional composition of the above
  DocumentStore: Raw document payloads (old-state retrieval for update/delete)

APPEND-PLUS-VOID CONTRACT:
  Effects are never updated in place. The only mutation permitted on a posted
  effect is voiding it, exactly once. Corrections void the previous effect and
  post a new one, so every document's net contribution stays exactly
  reversible no matter how many edits occurred.

BALANCE OWNERSHIP:
  UpdateBalance is the single write path for holder balances. It is
  conditional on the holder's version, so concurrent writers are detected
  rather than silently lost.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory, for tests and development
  - store/sqlite/sqlite.go: SQLite
  - store/postgres/postgres.go: PostgreSQL

SEE ALSO:
  - ledger.go: Higher-level reconstruction built on Store
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Effect persistence
// =============================================================================

// Store handles persistence of ledger effects.
//
// IMPORTANT: effects are append-only. Void marks an effect inactive; no
// Update or Delete exists.
type Store interface {
	// Append persists a new active effect. Returns ErrDuplicateEffect if an
	// active effect already exists for the same (type, document, holder) key.
	Append(ctx context.Context, e Effect) error

	// Void marks the effect inactive and returns it as stored, so callers can
	// reverse its exact amount. Returns ErrEffectNotFound or
	// ErrEffectAlreadyVoided.
	Void(ctx context.Context, id EffectID, at time.Time) (Effect, error)

	// ActiveByDocument returns all active effects posted by one document.
	ActiveByDocument(ctx context.Context, dt DocumentType, docID DocumentID) ([]Effect, error)

	// ActiveByDocumentHolder returns the single active effect for a
	// document/holder pair, or nil if none exists.
	ActiveByDocumentHolder(ctx context.Context, dt DocumentType, docID DocumentID, holderID HolderID) (*Effect, error)

	// ActiveByHolder returns all active effects for a holder, for balance
	// reconstruction and audit.
	ActiveByHolder(ctx context.Context, holderID HolderID) ([]Effect, error)

	// EffectsByHolder returns the full effect history for a holder,
	// voided entries included, ordered by posting time.
	EffectsByHolder(ctx context.Context, holderID HolderID) ([]Effect, error)
}

// =============================================================================
// HOLDER STORE - Balance and version
// =============================================================================

// HolderStore reads holders and writes their balances.
type HolderStore interface {
	// GetHolder returns a holder by id. Returns ErrHolderNotFound.
	GetHolder(ctx context.Context, id HolderID) (Holder, error)

	// ListHolders returns all holders, optionally filtered by type.
	ListHolders(ctx context.Context, types ...HolderType) ([]Holder, error)

	// SaveHolder inserts a holder. Balance starts at OpeningBalance,
	// version at 0.
	SaveHolder(ctx context.Context, h Holder) error

	// UpdateBalance writes a new balance conditioned on the holder's version
	// being expectedVersion, and increments the version. Returns
	// ErrConcurrencyConflict (wrapped in VersionConflictError) on mismatch.
	UpdateBalance(ctx context.Context, id HolderID, balance decimal.Decimal, expectedVersion int64) error
}

// Directory resolves a free-text name to a holder of one type.
// Matching is case-insensitive on the trimmed name. Two matches within the
// type is an AmbiguousHolderError, never a silent first pick.
type Directory interface {
	Resolve(ctx context.Context, name string, ht HolderType) (Holder, error)
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic effect + balance writes
// =============================================================================

// StoreTx is the view available inside a transaction: effect writes and
// holder balance writes commit or roll back as one unit.
type StoreTx interface {
	Store
	HolderStore
}

// TxStore composes the stores with a transaction boundary.
type TxStore interface {
	Store
	HolderStore
	Directory

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back and nothing fn wrote is visible.
	WithTx(ctx context.Context, fn func(tx StoreTx) error) error
}

// =============================================================================
// DOCUMENT STORE - Raw document payloads
// =============================================================================

// DocumentStore keeps the serialized document rows the HTTP surface owns.
// The engine never reads these; they exist so update/delete paths can load
// the prior state and compensate failed engine calls.
type DocumentStore interface {
	SaveDocument(ctx context.Context, dt DocumentType, id DocumentID, payload []byte) error
	GetDocument(ctx context.Context, dt DocumentType, id DocumentID) ([]byte, error)
	DeleteDocument(ctx context.Context, dt DocumentType, id DocumentID) error
	ListDocuments(ctx context.Context, dt DocumentType) (map[DocumentID][]byte, error)
}

// =============================================================================
// AUDIT STORE - Drift audit run records
// =============================================================================

// AuditRun records one pass of the drift auditor over all holders.
type AuditRun struct {
	ID             string
	StartedAt      time.Time
	CompletedAt    time.Time
	HoldersChecked int
	DriftsFound    int
	Repaired       int
	Error          string
}

// AuditStore persists drift audit runs.
type AuditStore interface {
	SaveAuditRun(ctx context.Context, run AuditRun) error
	ListAuditRuns(ctx context.Context, limit int) ([]AuditRun, error)
}
