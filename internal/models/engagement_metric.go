package models

import (
	"time"

	"github.com/google/uuid"
)

// InitiatorTypeAgent marks metrics accumulated from agent-initiated work.
const InitiatorTypeAgent = "AGENT"

// EngagementMetric accumulates verified spend and interaction counts
// between a pair of agents. Upserted on verified deliveries, never
// deleted.
type EngagementMetric struct {
	AgentID           uuid.UUID `json:"agent_id"`
	CounterAgentID    uuid.UUID `json:"counter_agent_id"`
	InitiatorType     string    `json:"initiator_type"`
	InteractionCount  int64     `json:"interaction_count"`
	TotalSpendCents   int64     `json:"total_spend_cents"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
}
