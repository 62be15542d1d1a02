/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements the ledger persistence interfaces (Store, HolderStore,
  Directory, TxStore, DocumentStore, AuditStore) using SQLite. The same
  patterns apply to PostgreSQL (see store/postgres) - only minor SQL
  dialect differences.

APPEND-PLUS-VOID ENFORCEMENT:
  - No UPDATE touches an effect's amount, holder, or document columns
  - The only permitted mutation sets voided/voided_at, exactly once
  - A partial unique index holds the "one active effect per
    (document_type, document_id, holder_id)" invariant at the database
    level, not just in application code

KEY TABLES:
  holders:        Balance-carrying entities with version counters
  ledger_effects: Immutable signed balance contributions
  documents:      Raw document payloads owned by the HTTP surface
  audit_runs:     Drift auditor pass records

CONCURRENCY:
  Uses sync.RWMutex for in-process thread-safety; holder balance writes are
  additionally versioned, so out-of-process writers surface as conflicts.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers don't
  block and crash recovery improves.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - store/postgres/postgres.go: PostgreSQL twin
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Holders: the contended resource. balance and version are written only
	-- by the reconciliation engine.
	CREATE TABLE IF NOT EXISTS holders (
		id TEXT PRIMARY KEY,
		holder_type TEXT NOT NULL,
		name TEXT NOT NULL,
		account_type TEXT NOT NULL DEFAULT '',
		opening_balance TEXT NOT NULL DEFAULT '0',
		balance TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holders_type_name
		ON holders(holder_type, name);

	-- Ledger effects (append-plus-void)
	CREATE TABLE IF NOT EXISTS ledger_effects (
		id TEXT PRIMARY KEY,
		document_type TEXT NOT NULL,
		document_id TEXT NOT NULL,
		holder_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		posted_at TEXT NOT NULL,
		voided INTEGER NOT NULL DEFAULT 0,
		voided_at TEXT
	);

	-- CRITICAL: at most one ACTIVE effect per document/holder key.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_effects_active_key
		ON ledger_effects(document_type, document_id, holder_id)
		WHERE voided = 0;

	-- Update/delete path: active effects for one document (hot path)
	CREATE INDEX IF NOT EXISTS idx_effects_document
		ON ledger_effects(document_type, document_id) WHERE voided = 0;

	-- Reconstruction/audit: active effects for one holder (hot path)
	CREATE INDEX IF NOT EXISTS idx_effects_holder
		ON ledger_effects(holder_id, voided, posted_at);

	-- Document payloads (owned by the HTTP surface, not the engine)
	CREATE TABLE IF NOT EXISTS documents (
		doc_type TEXT NOT NULL,
		doc_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (doc_type, doc_id)
	);

	-- Drift auditor runs
	CREATE TABLE IF NOT EXISTS audit_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		holders_checked INTEGER NOT NULL DEFAULT 0,
		drifts_found INTEGER NOT NULL DEFAULT 0,
		repaired INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_audit_runs_started
		ON audit_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx abstracts *sql.DB and *sql.Tx so the same query helpers serve both.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// EFFECT STORE (ledger.Store interface)
// =============================================================================

// Append adds a new active effect to the ledger.
func (s *Store) Append(ctx context.Context, e ledger.Effect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEffect(ctx, s.db, e)
}

func appendEffect(ctx context.Context, db dbtx, e ledger.Effect) error {
	query := `
		INSERT INTO ledger_effects
		(id, document_type, document_id, holder_id, amount, posted_at, voided, voided_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, NULL)
	`

	_, err := db.ExecContext(ctx, query,
		string(e.ID),
		string(e.DocumentType),
		string(e.DocumentID),
		string(e.HolderID),
		e.Amount.String(),
		e.PostedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateEffect
		}
		return fmt.Errorf("failed to append effect: %w", err)
	}
	return nil
}

// Void marks an effect inactive and returns it as stored.
func (s *Store) Void(ctx context.Context, id ledger.EffectID, at time.Time) (ledger.Effect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return voidEffect(ctx, s.db, id, at)
}

func voidEffect(ctx context.Context, db dbtx, id ledger.EffectID, at time.Time) (ledger.Effect, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE ledger_effects SET voided = 1, voided_at = ? WHERE id = ? AND voided = 0`,
		at.UTC().Format(time.RFC3339Nano), string(id),
	)
	if err != nil {
		return ledger.Effect{}, fmt.Errorf("failed to void effect: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return ledger.Effect{}, err
	}
	if affected == 0 {
		// Either unknown or already voided; distinguish for the caller.
		var voided int
		err := db.QueryRowContext(ctx,
			`SELECT voided FROM ledger_effects WHERE id = ?`, string(id),
		).Scan(&voided)
		if err == sql.ErrNoRows {
			return ledger.Effect{}, ledger.ErrEffectNotFound
		}
		if err != nil {
			return ledger.Effect{}, err
		}
		return ledger.Effect{}, ledger.ErrEffectAlreadyVoided
	}

	return getEffect(ctx, db, id)
}

func getEffect(ctx context.Context, db dbtx, id ledger.EffectID) (ledger.Effect, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, document_type, document_id, holder_id, amount, posted_at, voided, voided_at
		FROM ledger_effects WHERE id = ?
	`, string(id))

	e, err := scanEffectRow(row)
	if err == sql.ErrNoRows {
		return ledger.Effect{}, ledger.ErrEffectNotFound
	}
	return e, err
}

// ActiveByDocument returns all active effects posted by one document.
func (s *Store) ActiveByDocument(ctx context.Context, dt ledger.DocumentType, docID ledger.DocumentID) ([]ledger.Effect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeByDocument(ctx, s.db, dt, docID)
}

func activeByDocument(ctx context.Context, db dbtx, dt ledger.DocumentType, docID ledger.DocumentID) ([]ledger.Effect, error) {
	return queryEffects(ctx, db, `
		SELECT id, document_type, document_id, holder_id, amount, posted_at, voided, voided_at
		FROM ledger_effects
		WHERE document_type = ? AND document_id = ? AND voided = 0
		ORDER BY posted_at ASC, id ASC
	`, string(dt), string(docID))
}

// ActiveByDocumentHolder returns the single active effect for a
// document/holder pair, or nil.
func (s *Store) ActiveByDocumentHolder(ctx context.Context, dt ledger.DocumentType, docID ledger.DocumentID, holderID ledger.HolderID) (*ledger.Effect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeByDocumentHolder(ctx, s.db, dt, docID, holderID)
}

func activeByDocumentHolder(ctx context.Context, db dbtx, dt ledger.DocumentType, docID ledger.DocumentID, holderID ledger.HolderID) (*ledger.Effect, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, document_type, document_id, holder_id, amount, posted_at, voided, voided_at
		FROM ledger_effects
		WHERE document_type = ? AND document_id = ? AND holder_id = ? AND voided = 0
	`, string(dt), string(docID), string(holderID))

	e, err := scanEffectRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ActiveByHolder returns all active effects for a holder.
func (s *Store) ActiveByHolder(ctx context.Context, holderID ledger.HolderID) ([]ledger.Effect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeByHolder(ctx, s.db, holderID)
}

func activeByHolder(ctx context.Context, db dbtx, holderID ledger.HolderID) ([]ledger.Effect, error) {
	return queryEffects(ctx, db, `
		SELECT id, document_type, document_id, holder_id, amount, posted_at, voided, voided_at
		FROM ledger_effects
		WHERE holder_id = ? AND voided = 0
		ORDER BY posted_at ASC, id ASC
	`, string(holderID))
}

// EffectsByHolder returns a holder's full history, voided entries included.
func (s *Store) EffectsByHolder(ctx context.Context, holderID ledger.HolderID) ([]ledger.Effect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return effectsByHolder(ctx, s.db, holderID)
}

func effectsByHolder(ctx context.Context, db dbtx, holderID ledger.HolderID) ([]ledger.Effect, error) {
	return queryEffects(ctx, db, `
		SELECT id, document_type, document_id, holder_id, amount, posted_at, voided, voided_at
		FROM ledger_effects
		WHERE holder_id = ?
		ORDER BY posted_at ASC, id ASC
	`, string(holderID))
}

func queryEffects(ctx context.Context, db dbtx, query string, args ...any) ([]ledger.Effect, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query effects: %w", err)
	}
	defer rows.Close()

	var effects []ledger.Effect
	for rows.Next() {
		e, err := scanEffectRow(rows)
		if err != nil {
			return nil, err
		}
		effects = append(effects, e)
	}
	return effects, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEffectRow(row rowScanner) (ledger.Effect, error) {
	var (
		e        ledger.Effect
		id       string
		dt       string
		docID    string
		holderID string
		amount   string
		postedAt string
		voided   int
		voidedAt sql.NullString
	)

	err := row.Scan(&id, &dt, &docID, &holderID, &amount, &postedAt, &voided, &voidedAt)
	if err != nil {
		return e, err
	}

	e.ID = ledger.EffectID(id)
	e.DocumentType = ledger.DocumentType(dt)
	e.DocumentID = ledger.DocumentID(docID)
	e.HolderID = ledger.HolderID(holderID)
	e.Amount = parseDecimal(amount)
	e.PostedAt, _ = time.Parse(time.RFC3339Nano, postedAt)
	e.Voided = voided != 0
	if voidedAt.Valid && voidedAt.String != "" {
		t, _ := time.Parse(time.RFC3339Nano, voidedAt.String)
		e.VoidedAt = &t
	}
	return e, nil
}

// =============================================================================
// HOLDER STORE (ledger.HolderStore interface)
// =============================================================================

// GetHolder returns a holder by id.
func (s *Store) GetHolder(ctx context.Context, id ledger.HolderID) (ledger.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getHolder(ctx, s.db, id)
}

func getHolder(ctx context.Context, db dbtx, id ledger.HolderID) (ledger.Holder, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, holder_type, name, account_type, opening_balance, balance, version, created_at
		FROM holders WHERE id = ?
	`, string(id))

	h, err := scanHolderRow(row)
	if err == sql.ErrNoRows {
		return ledger.Holder{}, ledger.ErrHolderNotFound
	}
	return h, err
}

// ListHolders returns all holders, optionally filtered by type.
func (s *Store) ListHolders(ctx context.Context, types ...ledger.HolderType) ([]ledger.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listHolders(ctx, s.db, types...)
}

func listHolders(ctx context.Context, db dbtx, types ...ledger.HolderType) ([]ledger.Holder, error) {
	query := `
		SELECT id, holder_type, name, account_type, opening_balance, balance, version, created_at
		FROM holders
	`
	var args []any
	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query += " WHERE holder_type IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holders: %w", err)
	}
	defer rows.Close()

	var holders []ledger.Holder
	for rows.Next() {
		h, err := scanHolderRow(rows)
		if err != nil {
			return nil, err
		}
		holders = append(holders, h)
	}
	return holders, rows.Err()
}

// SaveHolder inserts a holder. The balance starts at the opening balance.
// Re-saving an existing holder updates name and account type only; balance
// and version stay under engine ownership.
func (s *Store) SaveHolder(ctx context.Context, h ledger.Holder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveHolder(ctx, s.db, h)
}

func saveHolder(ctx context.Context, db dbtx, h ledger.Holder) error {
	if h.Balance.IsZero() && !h.OpeningBalance.IsZero() {
		h.Balance = h.OpeningBalance
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := db.ExecContext(ctx, `
		INSERT INTO holders
		(id, holder_type, name, account_type, opening_balance, balance, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			account_type = excluded.account_type,
			updated_at = excluded.updated_at
	`,
		string(h.ID), string(h.Type), h.Name, string(h.AccountType),
		h.OpeningBalance.String(), h.Balance.String(), h.Version, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save holder: %w", err)
	}
	return nil
}

// UpdateBalance writes a new balance conditioned on the version.
func (s *Store) UpdateBalance(ctx context.Context, id ledger.HolderID, balance decimal.Decimal, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateBalance(ctx, s.db, id, balance, expectedVersion)
}

func updateBalance(ctx context.Context, db dbtx, id ledger.HolderID, balance decimal.Decimal, expectedVersion int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE holders SET balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		balance.String(), time.Now().UTC().Format(time.RFC3339Nano),
		string(id), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var actual int64
		err := db.QueryRowContext(ctx,
			`SELECT version FROM holders WHERE id = ?`, string(id),
		).Scan(&actual)
		if err == sql.ErrNoRows {
			return ledger.ErrHolderNotFound
		}
		if err != nil {
			return err
		}
		return &ledger.VersionConflictError{HolderID: id, Expected: expectedVersion, Actual: actual}
	}
	return nil
}

func scanHolderRow(row rowScanner) (ledger.Holder, error) {
	var (
		h           ledger.Holder
		id          string
		holderType  string
		accountType string
		opening     string
		balance     string
		createdAt   string
	)

	err := row.Scan(&id, &holderType, &h.Name, &accountType, &opening, &balance, &h.Version, &createdAt)
	if err != nil {
		return h, err
	}

	h.ID = ledger.HolderID(id)
	h.Type = ledger.HolderType(holderType)
	h.AccountType = ledger.AccountType(accountType)
	h.OpeningBalance = parseDecimal(opening)
	h.Balance = parseDecimal(balance)
	h.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return h, nil
}

// =============================================================================
// DIRECTORY (ledger.Directory interface)
// =============================================================================

// Resolve matches holders of one type by case-insensitive trimmed name.
// Two matches fail as AmbiguousHolderError.
func (s *Store) Resolve(ctx context.Context, name string, ht ledger.HolderType) (ledger.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.TrimSpace(name)
	if needle == "" {
		return ledger.Holder{}, ledger.ErrHolderNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, holder_type, name, account_type, opening_balance, balance, version, created_at
		FROM holders
		WHERE holder_type = ? AND LOWER(TRIM(name)) = LOWER(?)
		ORDER BY id ASC
	`, string(ht), needle)
	if err != nil {
		return ledger.Holder{}, fmt.Errorf("failed to resolve holder: %w", err)
	}
	defer rows.Close()

	var matches []ledger.Holder
	for rows.Next() {
		h, err := scanHolderRow(rows)
		if err != nil {
			return ledger.Holder{}, err
		}
		matches = append(matches, h)
	}
	if err := rows.Err(); err != nil {
		return ledger.Holder{}, err
	}

	switch len(matches) {
	case 0:
		return ledger.Holder{}, ledger.ErrHolderNotFound
	case 1:
		return matches[0], nil
	default:
		ids := make([]ledger.HolderID, len(matches))
		for i, h := range matches {
			ids[i] = h.ID
		}
		return ledger.Holder{}, &ledger.AmbiguousHolderError{Name: name, Type: ht, Matches: ids}
	}
}

// =============================================================================
// TRANSACTIONS (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx ledger.StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore runs every operation against the open *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Append(ctx context.Context, e ledger.Effect) error {
	return appendEffect(ctx, ts.tx, e)
}

func (ts *txStore) Void(ctx context.Context, id ledger.EffectID, at time.Time) (ledger.Effect, error) {
	return voidEffect(ctx, ts.tx, id, at)
}

func (ts *txStore) ActiveByDocument(ctx context.Context, dt ledger.DocumentType, docID ledger.DocumentID) ([]ledger.Effect, error) {
	return activeByDocument(ctx, ts.tx, dt, docID)
}

func (ts *txStore) ActiveByDocumentHolder(ctx context.Context, dt ledger.DocumentType, docID ledger.DocumentID, holderID ledger.HolderID) (*ledger.Effect, error) {
	return activeByDocumentHolder(ctx, ts.tx, dt, docID, holderID)
}

func (ts *txStore) ActiveByHolder(ctx context.Context, holderID ledger.HolderID) ([]ledger.Effect, error) {
	return activeByHolder(ctx, ts.tx, holderID)
}

func (ts *txStore) EffectsByHolder(ctx context.Context, holderID ledger.HolderID) ([]ledger.Effect, error) {
	return effectsByHolder(ctx, ts.tx, holderID)
}

func (ts *txStore) GetHolder(ctx context.Context, id ledger.HolderID) (ledger.Holder, error) {
	return getHolder(ctx, ts.tx, id)
}

func (ts *txStore) ListHolders(ctx context.Context, types ...ledger.HolderType) ([]ledger.Holder, error) {
	return listHolders(ctx, ts.tx, types...)
}

func (ts *txStore) SaveHolder(ctx context.Context, h ledger.Holder) error {
	return saveHolder(ctx, ts.tx, h)
}

func (ts *txStore) UpdateBalance(ctx context.Context, id ledger.HolderID, balance decimal.Decimal, expectedVersion int64) error {
	return updateBalance(ctx, ts.tx, id, balance, expectedVersion)
}

// =============================================================================
// DOCUMENT STORE (ledger.DocumentStore interface)
// =============================================================================

// SaveDocument upserts a raw document payload.
func (s *Store) SaveDocument(ctx context.Context, dt ledger.DocumentType, id ledger.DocumentID, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (doc_type, doc_id, payload_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(doc_type, doc_id) DO UPDATE SET
			payload_json = excluded.payload_json,
			updated_at = excluded.updated_at
	`, string(dt), string(id), string(payload), now, now)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// GetDocument returns a payload, or nil if the document doesn't exist.
func (s *Store) GetDocument(ctx context.Context, dt ledger.DocumentType, id ledger.DocumentID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM documents WHERE doc_type = ? AND doc_id = ?`,
		string(dt), string(id),
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

// DeleteDocument removes a document row.
func (s *Store) DeleteDocument(ctx context.Context, dt ledger.DocumentType, id ledger.DocumentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE doc_type = ? AND doc_id = ?`,
		string(dt), string(id),
	)
	return err
}

// ListDocuments returns all payloads of one type.
func (s *Store) ListDocuments(ctx context.Context, dt ledger.DocumentType) (map[ledger.DocumentID][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, payload_json FROM documents WHERE doc_type = ?`, string(dt))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[ledger.DocumentID][]byte)
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		result[ledger.DocumentID(id)] = []byte(payload)
	}
	return result, rows.Err()
}

// =============================================================================
// AUDIT STORE (ledger.AuditStore interface)
// =============================================================================

// SaveAuditRun records a drift auditor pass.
func (s *Store) SaveAuditRun(ctx context.Context, run ledger.AuditRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_runs
		(id, started_at, completed_at, holders_checked, drifts_found, repaired, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.CompletedAt.UTC().Format(time.RFC3339Nano),
		run.HoldersChecked, run.DriftsFound, run.Repaired, run.Error,
	)
	return err
}

// ListAuditRuns returns the most recent runs, newest first.
func (s *Store) ListAuditRuns(ctx context.Context, limit int) ([]ledger.AuditRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, completed_at, holders_checked, drifts_found, repaired, error
		FROM audit_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ledger.AuditRun
	for rows.Next() {
		var (
			run       ledger.AuditRun
			started   string
			completed string
		)
		if err := rows.Scan(&run.ID, &started, &completed,
			&run.HoldersChecked, &run.DriftsFound, &run.Repaired, &run.Error); err != nil {
			return nil, err
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		run.CompletedAt, _ = time.Parse(time.RFC3339Nano, completed)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
