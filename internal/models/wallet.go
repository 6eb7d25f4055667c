package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds an agent's funds. Reserved covers open escrow holds;
// spendable headroom is always balance minus reserved, never cached.
type Wallet struct {
	AgentID           uuid.UUID `json:"agent_id"`
	BalanceCents      int64     `json:"balance_cents"`
	ReservedCents     int64     `json:"reserved_cents"`
	SpendCeilingCents *int64    `json:"spend_ceiling_cents,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AvailableCents is balance minus reserved.
func (w Wallet) AvailableCents() int64 {
	return w.BalanceCents - w.ReservedCents
}
