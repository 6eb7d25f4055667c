package models

import (
	"time"

	"github.com/google/uuid"
)

// Agent status enums.
const (
	AgentStatusActive    = "ACTIVE"
	AgentStatusSuspended = "SUSPENDED"
)

// Agent is an autonomous economic actor able to request or perform paid
// work. WebhookURL, when set, receives lifecycle event notifications.
type Agent struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	DisplayName string    `json:"display_name"`
	WebhookURL  string    `json:"webhook_url,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
