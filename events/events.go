// Package events defines the notifications emitted after effects commit.
//
// Events are published AFTER the store transaction commits; they are
// best-effort notifications for downstream consumers (dashboards, exports),
// never part of the balance invariant. A publish failure is logged by the
// engine and does not fail the document operation.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// Publisher delivers events to an external broker.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// EffectPosted is emitted when a new active effect is committed.
type EffectPosted struct {
	EffectID     ledger.EffectID     `json:"effect_id"`
	DocumentType ledger.DocumentType `json:"document_type"`
	DocumentID   ledger.DocumentID   `json:"document_id"`
	HolderID     ledger.HolderID     `json:"holder_id"`
	Amount       decimal.Decimal     `json:"amount"`
	OccurredAt   time.Time           `json:"occurred_at"`
}

// EffectVoided is emitted when a previously posted effect is voided.
type EffectVoided struct {
	EffectID     ledger.EffectID     `json:"effect_id"`
	DocumentType ledger.DocumentType `json:"document_type"`
	DocumentID   ledger.DocumentID   `json:"document_id"`
	HolderID     ledger.HolderID     `json:"holder_id"`
	Amount       decimal.Decimal     `json:"amount"`
	OccurredAt   time.Time           `json:"occurred_at"`
}
