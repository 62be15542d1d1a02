/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with clients. DTOs are separate from
  domain types so the wire format can evolve without touching the ledger
  packages, and so decimals serialize as strings rather than floats.

CONVENTIONS:
  - Monetary amounts are decimal strings ("1500.00"), never floats
  - Timestamps are RFC3339
  - snake_case field names

SEE ALSO:
  - handlers.go: Handlers that produce/consume these
*/
package api

import (
	"time"

	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// HOLDER DTOs
// =============================================================================

// HolderDTO is the wire representation of a balance holder.
type HolderDTO struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Name           string `json:"name"`
	AccountType    string `json:"account_type,omitempty"`
	OpeningBalance string `json:"opening_balance"`
	Balance        string `json:"balance"`
	Version        int64  `json:"version"`
	CreatedAt      string `json:"created_at,omitempty"`
}

func toHolderDTO(h ledger.Holder) HolderDTO {
	dto := HolderDTO{
		ID:             string(h.ID),
		Type:           string(h.Type),
		Name:           h.Name,
		AccountType:    string(h.AccountType),
		OpeningBalance: h.OpeningBalance.String(),
		Balance:        h.Balance.String(),
		Version:        h.Version,
	}
	if !h.CreatedAt.IsZero() {
		dto.CreatedAt = h.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// CreateHolderRequest creates a new holder.
type CreateHolderRequest struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Name           string `json:"name"`
	AccountType    string `json:"account_type,omitempty"`
	OpeningBalance string `json:"opening_balance,omitempty"`
}

// BalanceDTO reports the stored balance next to its reconstruction.
type BalanceDTO struct {
	HolderID string `json:"holder_id"`
	Stored   string `json:"stored"`
	Derived  string `json:"derived"`
	Drift    string `json:"drift"`
	InSync   bool   `json:"in_sync"`
}

// DriftReportDTO is the result of an on-demand recompute.
type DriftReportDTO struct {
	HolderID string `json:"holder_id"`
	Stored   string `json:"stored"`
	Derived  string `json:"derived"`
	Drift    string `json:"drift"`
	Repaired bool   `json:"repaired"`
}

func toDriftReportDTO(r ledger.DriftReport) DriftReportDTO {
	return DriftReportDTO{
		HolderID: string(r.HolderID),
		Stored:   r.Stored.String(),
		Derived:  r.Derived.String(),
		Drift:    r.Drift.String(),
		Repaired: r.Repaired,
	}
}

// =============================================================================
// EFFECT DTOs
// =============================================================================

// EffectDTO is one ledger entry in a holder's history.
type EffectDTO struct {
	ID           string  `json:"id"`
	DocumentType string  `json:"document_type"`
	DocumentID   string  `json:"document_id"`
	HolderID     string  `json:"holder_id"`
	Amount       string  `json:"amount"`
	PostedAt     string  `json:"posted_at"`
	Voided       bool    `json:"voided"`
	VoidedAt     *string `json:"voided_at,omitempty"`
}

func toEffectDTO(e ledger.Effect) EffectDTO {
	dto := EffectDTO{
		ID:           string(e.ID),
		DocumentType: string(e.DocumentType),
		DocumentID:   string(e.DocumentID),
		HolderID:     string(e.HolderID),
		Amount:       e.Amount.String(),
		PostedAt:     e.PostedAt.Format(time.RFC3339),
		Voided:       e.Voided,
	}
	if e.VoidedAt != nil {
		s := e.VoidedAt.Format(time.RFC3339)
		dto.VoidedAt = &s
	}
	return dto
}

func toEffectDTOs(effects []ledger.Effect) []EffectDTO {
	dtos := make([]EffectDTO, len(effects))
	for i, e := range effects {
		dtos[i] = toEffectDTO(e)
	}
	return dtos
}

// =============================================================================
// AUDIT DTOs
// =============================================================================

// AuditRunDTO summarizes one drift audit pass.
type AuditRunDTO struct {
	ID             string `json:"id"`
	StartedAt      string `json:"started_at"`
	CompletedAt    string `json:"completed_at"`
	HoldersChecked int    `json:"holders_checked"`
	DriftsFound    int    `json:"drifts_found"`
	Repaired       int    `json:"repaired"`
	Error          string `json:"error,omitempty"`
}

func toAuditRunDTO(run ledger.AuditRun) AuditRunDTO {
	return AuditRunDTO{
		ID:             run.ID,
		StartedAt:      run.StartedAt.Format(time.RFC3339),
		CompletedAt:    run.CompletedAt.Format(time.RFC3339),
		HoldersChecked: run.HoldersChecked,
		DriftsFound:    run.DriftsFound,
		Repaired:       run.Repaired,
		Error:          run.Error,
	}
}

// =============================================================================
// DOCUMENT DTOs
// =============================================================================

// DocumentResponse wraps a stored document with the effects it produced.
type DocumentResponse struct {
	Type     string      `json:"type"`
	Document any         `json:"document"`
	Effects  []EffectDTO `json:"effects"`
}

// =============================================================================
// SCENARIO DTOs
// =============================================================================

// ScenarioInfo describes one loadable demo scenario.
type ScenarioInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
