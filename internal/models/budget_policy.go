package models

import (
	"time"

	"github.com/google/uuid"
)

// Budget policy approval modes.
const (
	ApprovalModeAuto   = "AUTO"
	ApprovalModeManual = "MANUAL"
)

// BudgetPolicy caps unattended spend for one agent. One row per agent;
// no row means spend is unconstrained by budget (wallet capacity still
// applies).
type BudgetPolicy struct {
	AgentID        uuid.UUID `json:"agent_id"`
	ApprovalMode   string    `json:"approval_mode"`
	RemainingCents int64     `json:"remaining_cents"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
