package models

import (
	"github.com/google/uuid"
)

// APIKey authenticates one agent on the /v1 surface. Keys are minted once
// at agent registration and stored only as a SHA-256 hash.
type APIKey struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	AgentID   uuid.UUID `json:"agent_id"`
	KeyHash   string    `json:"-"`
	KeyPrefix string    `json:"key_prefix"`
	IsActive  bool      `json:"is_active"`
}
