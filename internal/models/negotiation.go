package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Negotiation lifecycle statuses. ACCEPTED and DECLINED are terminal.
const (
	NegotiationStatusPending   = "PENDING"
	NegotiationStatusAccepted  = "ACCEPTED"
	NegotiationStatusDeclined  = "DECLINED"
	NegotiationStatusCountered = "COUNTERED"
)

// Response statuses a responder may submit. REJECTED moves the
// negotiation to DECLINED.
const (
	ResponseStatusAccepted  = "ACCEPTED"
	ResponseStatusRejected  = "REJECTED"
	ResponseStatusCountered = "COUNTERED"
)

// Negotiation is one hire attempt between two agents. The counter_*
// fields hold the latest response only; each response overwrites the
// previous one. Rows are never deleted.
type Negotiation struct {
	ID                  uuid.UUID       `json:"id"`
	RequesterAgentID    uuid.UUID       `json:"requester_agent_id"`
	ResponderAgentID    uuid.UUID       `json:"responder_agent_id"`
	Status              string          `json:"status"`
	RequestedService    string          `json:"requested_service"`
	ProposedBudgetCents int64           `json:"proposed_budget_cents"`
	Requirements        json.RawMessage `json:"requirements,omitempty"`
	Notes               string          `json:"notes,omitempty"`
	InitiatorUserID     *uuid.UUID      `json:"initiator_user_id,omitempty"`

	CounterStatus            *string         `json:"counter_status,omitempty"`
	CounterPriceCents        *int64          `json:"counter_price_cents,omitempty"`
	CounterEstimatedDelivery *string         `json:"counter_estimated_delivery,omitempty"`
	CounterTerms             json.RawMessage `json:"counter_terms,omitempty"`
	CounterNotes             *string         `json:"counter_notes,omitempty"`

	ServiceAgreementID *uuid.UUID `json:"service_agreement_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
