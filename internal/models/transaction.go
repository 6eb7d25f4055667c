package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction types in the double-entry journal.
const (
	TxTypeDeposit       = "DEPOSIT"
	TxTypeEscrowHold    = "ESCROW_HOLD"
	TxTypeEscrowRelease = "ESCROW_RELEASE"
	TxTypeEscrowRefund  = "ESCROW_REFUND"
)

// Transaction is one journal entry. Debit/credit ids are actor
// references, not agent foreign keys: deposits debit the treasury actor
// and escrow moves pass through the escrow actor.
type Transaction struct {
	ID            uuid.UUID  `json:"id"`
	TxType        string     `json:"tx_type"`
	NegotiationID *uuid.UUID `json:"negotiation_id,omitempty"`
	DebitAgentID  uuid.UUID  `json:"debit_agent_id"`
	CreditAgentID uuid.UUID  `json:"credit_agent_id"`
	AmountCents   int64      `json:"amount_cents"`
	CreatedAt     time.Time  `json:"created_at"`
}
