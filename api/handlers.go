/*
handlers.go - HTTP API handlers for the balance reconciliation engine

PURPOSE:
  Exposes holders, documents, and the audit surface via REST. Handles HTTP
  request/response, JSON serialization, and delegates to the engine; no
  balance math lives here.

ENDPOINTS:
  Holders:
    GET    /api/holders                    List holders (optional ?type=)
    POST   /api/holders                    Create holder
    GET    /api/holders/{id}               Get holder
    GET    /api/holders/{id}/balance       Stored vs derived balance
    GET    /api/holders/{id}/effects       Full ledger history
    POST   /api/holders/{id}/recompute     Repair stored balance from ledger

  Documents:
    GET    /api/documents/{type}           List documents of a type
    POST   /api/documents/{type}           Create document and post effects
    GET    /api/documents/{type}/{id}      Get document with active effects
    PUT    /api/documents/{type}/{id}      Update (void prior, post new)
    DELETE /api/documents/{type}/{id}      Delete (void all effects)

  Audit:
    GET    /api/audit/runs                 Recent drift audit runs
    POST   /api/audit/process              Run a drift audit now

  Scenarios:
    GET    /api/scenarios                  List demo scenarios
    POST   /api/scenarios/load             Load a demo scenario

DOCUMENT WRITE FLOW:
  The document row is saved before the engine call so a crash between the
  two leaves a document without effects rather than effects without a
  document; the auditor cannot repair the latter. If the engine rejects
  the document the row is compensated (deleted or restored).

ERROR HANDLING:
  Domain errors map to HTTP status via writeDomainError:
  - 400: Unresolvable/ambiguous holders, bad payloads
  - 404: Unknown holder, document, or effect
  - 409: Duplicate active effect, version conflicts
  - 500: Storage failures

SEE ALSO:
  - dto.go: Wire shapes
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/warp/ledger-engine/documents"
	"github.com/warp/ledger-engine/engine"
	"github.com/warp/ledger-engine/factory"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Backend is everything the HTTP surface needs from storage.
type Backend interface {
	ledger.TxStore
	ledger.DocumentStore
	ledger.AuditStore
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   Backend
	Engine  *engine.Engine
	Auditor *engine.DriftAuditor

	currentScenario string
}

// NewHandler creates a handler wired to the given store and engine.
func NewHandler(store Backend, eng *engine.Engine, auditor *engine.DriftAuditor) *Handler {
	return &Handler{
		Store:   store,
		Engine:  eng,
		Auditor: auditor,
	}
}

// =============================================================================
// HOLDER HANDLERS
// =============================================================================

// ListHolders returns all holders, optionally filtered by type.
func (h *Handler) ListHolders(w http.ResponseWriter, r *http.Request) {
	var types []ledger.HolderType
	if t := r.URL.Query().Get("type"); t != "" {
		ht := ledger.HolderType(t)
		if !ht.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown holder type: "+t, nil)
			return
		}
		types = append(types, ht)
	}

	holders, err := h.Store.ListHolders(r.Context(), types...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holders", err)
		return
	}

	dtos := make([]HolderDTO, len(holders))
	for i, holder := range holders {
		dtos[i] = toHolderDTO(holder)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHolder creates a new holder.
func (h *Handler) CreateHolder(w http.ResponseWriter, r *http.Request) {
	var req CreateHolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	ht := ledger.HolderType(req.Type)
	if !ht.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown holder type: "+req.Type, nil)
		return
	}

	holder := ledger.Holder{
		ID:   ledger.HolderID(req.ID),
		Type: ht,
		Name: req.Name,
	}

	if ht == ledger.HolderAccount {
		at := ledger.AccountType(req.AccountType)
		if !at.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown account type: "+req.AccountType, nil)
			return
		}
		holder.AccountType = at
	}

	if req.OpeningBalance != "" {
		opening, err := ledger.ParseDecimal(req.OpeningBalance)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid opening_balance", err)
			return
		}
		holder.OpeningBalance = opening
		holder.Balance = opening
	}

	if err := h.Store.SaveHolder(r.Context(), holder); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create holder", err)
		return
	}

	writeJSON(w, http.StatusCreated, toHolderDTO(holder))
}

// GetHolder returns a single holder.
func (h *Handler) GetHolder(w http.ResponseWriter, r *http.Request) {
	id := ledger.HolderID(chi.URLParam(r, "id"))

	holder, err := h.Store.GetHolder(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get holder", err)
		return
	}
	writeJSON(w, http.StatusOK, toHolderDTO(holder))
}

// GetBalance returns the stored balance next to its ledger reconstruction.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := ledger.HolderID(chi.URLParam(r, "id"))

	report, err := h.Engine.Ledger().CheckDrift(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to check balance", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		HolderID: string(report.HolderID),
		Stored:   report.Stored.String(),
		Derived:  report.Derived.String(),
		Drift:    report.Drift.String(),
		InSync:   report.Drift.IsZero(),
	})
}

// GetEffects returns the holder's full ledger history, voided rows included.
func (h *Handler) GetEffects(w http.ResponseWriter, r *http.Request) {
	id := ledger.HolderID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetHolder(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to get holder", err)
		return
	}

	effects, err := h.Store.EffectsByHolder(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get effects", err)
		return
	}
	writeJSON(w, http.StatusOK, toEffectDTOs(effects))
}

// Recompute repairs the holder's stored balance from the ledger.
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	id := ledger.HolderID(chi.URLParam(r, "id"))

	report, err := h.Engine.Recompute(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to recompute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toDriftReportDTO(report))
}

// =============================================================================
// DOCUMENT HANDLERS
// =============================================================================

// ListDocuments returns all stored documents of one type.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	dt := ledger.DocumentType(chi.URLParam(r, "type"))
	if !documents.KnownType(dt) {
		writeError(w, http.StatusNotFound, "Unknown document type: "+string(dt), nil)
		return
	}

	payloads, err := h.Store.ListDocuments(r.Context(), dt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list documents", err)
		return
	}

	docs := make([]json.RawMessage, 0, len(payloads))
	for _, payload := range payloads {
		docs = append(docs, json.RawMessage(payload))
	}
	writeJSON(w, http.StatusOK, docs)
}

// CreateDocument stores a document and posts its ledger effects atomically.
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	dt := ledger.DocumentType(chi.URLParam(r, "type"))

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	doc, err := factory.Parse(dt, payload)
	if err != nil {
		writeEngineError(w, "Invalid document", err)
		return
	}

	ctx := r.Context()

	existing, err := h.Store.GetDocument(ctx, dt, doc.DocumentID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check document", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Document already exists", nil)
		return
	}

	if err := h.Store.SaveDocument(ctx, dt, doc.DocumentID(), payload); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save document", err)
		return
	}

	if err := h.Engine.ApplyCreate(ctx, doc); err != nil {
		// Compensate: the rejected document must not linger without effects.
		h.Store.DeleteDocument(ctx, dt, doc.DocumentID())
		writeEngineError(w, "Failed to post document effects", err)
		return
	}

	h.writeDocumentResponse(w, r, http.StatusCreated, dt, doc.DocumentID(), payload)
}

// GetDocument returns a stored document with its active effects.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	dt := ledger.DocumentType(chi.URLParam(r, "type"))
	id := ledger.DocumentID(chi.URLParam(r, "id"))

	payload, err := h.Store.GetDocument(r.Context(), dt, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get document", err)
		return
	}
	if payload == nil {
		writeError(w, http.StatusNotFound, "Document not found", nil)
		return
	}

	h.writeDocumentResponse(w, r, http.StatusOK, dt, id, payload)
}

// UpdateDocument replaces a document: prior effects are voided at their
// stored amounts, then the new state's effects are posted.
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	dt := ledger.DocumentType(chi.URLParam(r, "type"))
	id := ledger.DocumentID(chi.URLParam(r, "id"))

	ctx := r.Context()

	oldPayload, err := h.Store.GetDocument(ctx, dt, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get document", err)
		return
	}
	if oldPayload == nil {
		writeError(w, http.StatusNotFound, "Document not found", nil)
		return
	}

	newPayload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	oldDoc, err := factory.Parse(dt, oldPayload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Stored document is corrupt", err)
		return
	}
	newDoc, err := factory.Parse(dt, newPayload)
	if err != nil {
		writeEngineError(w, "Invalid document", err)
		return
	}
	if newDoc.DocumentID() != id {
		writeError(w, http.StatusBadRequest, "Document id does not match URL", nil)
		return
	}

	if err := h.Store.SaveDocument(ctx, dt, id, newPayload); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save document", err)
		return
	}

	if err := h.Engine.ApplyUpdate(ctx, oldDoc, newDoc); err != nil {
		// Compensate: restore the prior payload, whose effects still stand.
		h.Store.SaveDocument(ctx, dt, id, oldPayload)
		writeEngineError(w, "Failed to post document effects", err)
		return
	}

	h.writeDocumentResponse(w, r, http.StatusOK, dt, id, newPayload)
}

// DeleteDocument removes a document and voids all its active effects.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	dt := ledger.DocumentType(chi.URLParam(r, "type"))
	id := ledger.DocumentID(chi.URLParam(r, "id"))

	ctx := r.Context()

	payload, err := h.Store.GetDocument(ctx, dt, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get document", err)
		return
	}
	if payload == nil {
		writeError(w, http.StatusNotFound, "Document not found", nil)
		return
	}

	doc, err := factory.Parse(dt, payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Stored document is corrupt", err)
		return
	}

	if err := h.Engine.ApplyDelete(ctx, doc); err != nil {
		writeEngineError(w, "Failed to void document effects", err)
		return
	}

	if err := h.Store.DeleteDocument(ctx, dt, id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete document", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeDocumentResponse(w http.ResponseWriter, r *http.Request, status int, dt ledger.DocumentType, id ledger.DocumentID, payload []byte) {
	effects, err := h.Store.ActiveByDocument(r.Context(), dt, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load document effects", err)
		return
	}

	writeJSON(w, status, DocumentResponse{
		Type:     string(dt),
		Document: json.RawMessage(payload),
		Effects:  toEffectDTOs(effects),
	})
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// ListAuditRuns returns recent drift audit runs, newest first.
func (h *Handler) ListAuditRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.Store.ListAuditRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit runs", err)
		return
	}

	dtos := make([]AuditRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toAuditRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// TriggerAudit runs a drift audit pass over every holder immediately.
func (h *Handler) TriggerAudit(w http.ResponseWriter, r *http.Request) {
	if h.Auditor == nil {
		writeError(w, http.StatusServiceUnavailable, "Auditor is not configured", nil)
		return
	}

	run, err := h.Auditor.RunOnce(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Audit run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditRunDTO(run))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps ledger errors for holder-addressed endpoints, where
// the holder id came from the URL: a miss is a 404.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err) || errors.Is(err, ledger.ErrEffectNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// writeEngineError maps effect-application failures for document endpoints.
// Holder references live in the payload here, so resolution failures are the
// client's 400, not a 404.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, ledger.ErrDuplicateEffect),
		errors.Is(err, ledger.ErrEffectAlreadyVoided),
		errors.Is(err, ledger.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsClientError(err),
		errors.Is(err, engine.ErrDocumentMismatch),
		errors.Is(err, factory.ErrUnknownDocumentType),
		errors.Is(err, factory.ErrInvalidDocument):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, ledger.ErrEffectNotFound):
		writeError(w, http.StatusNotFound, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
