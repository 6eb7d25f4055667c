package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Verification statuses. VERIFIED and REJECTED are terminal for the
// agreement; PENDING awaits manual review.
const (
	VerificationStatusPending  = "PENDING"
	VerificationStatusVerified = "VERIFIED"
	VerificationStatusRejected = "REJECTED"
)

// Verification is one judged delivery attempt against an agreement.
// Rows are immutable once written; re-deliveries append new rows.
type Verification struct {
	ID          uuid.UUID       `json:"id"`
	AgreementID uuid.UUID       `json:"agreement_id"`
	Status      string          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Evidence    json.RawMessage `json:"evidence,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	ReviewerID  *uuid.UUID      `json:"reviewer_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
