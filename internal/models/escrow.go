package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Escrow statuses.
const (
	EscrowStatusHeld     = "HELD"
	EscrowStatusReleased = "RELEASED"
	EscrowStatusRefunded = "REFUNDED"
)

// Escrow tracks funds held against one accepted negotiation until the
// delivery is verified (released) or the engagement is unwound
// (refunded).
type Escrow struct {
	ID            uuid.UUID       `json:"id"`
	NegotiationID uuid.UUID       `json:"negotiation_id"`
	FromAgentID   uuid.UUID       `json:"from_agent_id"`
	ToAgentID     uuid.UUID       `json:"to_agent_id"`
	AmountCents   int64           `json:"amount_cents"`
	Status        string          `json:"status"`
	Purpose       string          `json:"purpose"`
	Memo          string          `json:"memo,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	HoldTxID      uuid.UUID       `json:"hold_tx_id"`
	// SettlementTxID is the journal entry that closed the escrow,
	// written by release and refund alike.
	SettlementTxID *uuid.UUID `json:"settlement_tx_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
