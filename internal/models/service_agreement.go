package models

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeTypeServiceDelivery is the only agreement outcome type today.
const OutcomeTypeServiceDelivery = "service_delivery"

// ServiceAgreement binds an accepted negotiation to its escrow and its
// verification history. At most one agreement exists per negotiation.
type ServiceAgreement struct {
	ID                uuid.UUID `json:"id"`
	NegotiationID     uuid.UUID `json:"negotiation_id"`
	EscrowID          uuid.UUID `json:"escrow_id"`
	OutcomeType       string    `json:"outcome_type"`
	TargetDescription string    `json:"target_description"`
	CreatedAt         time.Time `json:"created_at"`
}
