/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers should wrap these errors with additional context.

ERROR CATEGORIES:
  1. Resolution errors - Holder lookup failures (not found, ambiguous, wrong type)
  2. Ledger errors - Effect posting/voiding violations
  3. Concurrency errors - Optimistic version conflicts (retryable)
  4. Store errors - Database-level failures

PROPAGATION POLICY:
  Nothing in the engine is fire-and-forget. Every error surfaces to the
  calling document service as a typed result; a failed effect application
  must abort the document mutation that triggered it. Balance updates are
  never logged-and-ignored.

SEE ALSO:
  - ledger.go: Uses these errors
  - store.go: Uses these errors
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrHolderNotFound is returned when a name or id on a required document
	// field resolves to no holder. Fatal: the document operation must abort.
	ErrHolderNotFound = errors.New("holder not found")

	// ErrAmbiguousHolder is returned when two holders share a case-insensitive
	// trimmed name. Resolution fails loudly instead of picking one.
	ErrAmbiguousHolder = errors.New("ambiguous holder name")

	// ErrInvalidHolderType is returned on a business-rule type violation,
	// e.g. a tax payment against a non-bank, non-credit-card account.
	ErrInvalidHolderType = errors.New("holder type not eligible")

	// ErrConcurrencyConflict is returned when a holder's version changed
	// between read and write. Retryable with bounded backoff.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")

	// ErrDuplicateEffect is returned when an active effect already exists for
	// the (document type, document id, holder id) key.
	ErrDuplicateEffect = errors.New("active effect already exists for document/holder")

	// ErrEffectNotFound is returned when voiding an unknown effect id.
	ErrEffectNotFound = errors.New("effect not found")

	// ErrEffectAlreadyVoided is returned when voiding an effect twice.
	ErrEffectAlreadyVoided = errors.New("effect already voided")

	// ErrPersistence is returned when the store cannot complete a write.
	// Fatal: the caller must roll back its document mutation too.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// HolderNotFoundError reports which document field failed to resolve.
type HolderNotFoundError struct {
	Field string
	Name  string
	Types []HolderType
}

func (e *HolderNotFoundError) Error() string {
	return fmt.Sprintf("no %v holder matches %q (field %s)", e.Types, e.Name, e.Field)
}

func (e *HolderNotFoundError) Unwrap() error { return ErrHolderNotFound }

// AmbiguousHolderError reports a name shared by multiple holders.
type AmbiguousHolderError struct {
	Name    string
	Type    HolderType
	Matches []HolderID
}

func (e *AmbiguousHolderError) Error() string {
	return fmt.Sprintf("%d %s holders match %q: %v", len(e.Matches), e.Type, e.Name, e.Matches)
}

func (e *AmbiguousHolderError) Unwrap() error { return ErrAmbiguousHolder }

// InvalidHolderTypeError reports a business-rule type violation.
type InvalidHolderTypeError struct {
	HolderID HolderID
	Got      AccountType
	Want     []AccountType
}

func (e *InvalidHolderTypeError) Error() string {
	return fmt.Sprintf("account %s has type %q, want one of %v", e.HolderID, e.Got, e.Want)
}

func (e *InvalidHolderTypeError) Unwrap() error { return ErrInvalidHolderType }

// VersionConflictError reports the version mismatch behind a concurrency
// conflict, for diagnostics and retry decisions.
type VersionConflictError struct {
	HolderID HolderID
	Expected int64
	Actual   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("holder %s version changed: expected %d, found %d", e.HolderID, e.Expected, e.Actual)
}

func (e *VersionConflictError) Unwrap() error { return ErrConcurrencyConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsClientError returns true if the error is due to the submitted document,
// not the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrHolderNotFound) ||
		errors.Is(err, ErrAmbiguousHolder) ||
		errors.Is(err, ErrInvalidHolderType) ||
		errors.Is(err, ErrDuplicateEffect)
}

// IsNotFound returns true if the error indicates a missing holder or effect.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrHolderNotFound) || errors.Is(err, ErrEffectNotFound)
}
