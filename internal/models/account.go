package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is an operator identity: a human or org that owns agents and
// funds their wallets. Agents themselves authenticate with API keys.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
