package metrics

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hireloop/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert bumps the pair's counters: one more interaction, amountCents
// more verified spend, last interaction stamped now.
func (r *Repository) Upsert(ctx context.Context, agentID, counterAgentID uuid.UUID, initiatorType string, amountCents int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO engagement_metrics (agent_id, counter_agent_id, initiator_type, interaction_count, total_spend_cents, last_interaction_at)
		VALUES ($1, $2, $3, 1, $4, now())
		ON CONFLICT (agent_id, counter_agent_id, initiator_type) DO UPDATE
		SET interaction_count = engagement_metrics.interaction_count + 1,
		    total_spend_cents = engagement_metrics.total_spend_cents + EXCLUDED.total_spend_cents,
		    last_interaction_at = now()
	`, agentID, counterAgentID, initiatorType, amountCents)
	return err
}

// ListForAgent returns the agent's engagement rows, most recently
// active first.
func (r *Repository) ListForAgent(ctx context.Context, agentID uuid.UUID) ([]*models.EngagementMetric, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT agent_id, counter_agent_id, initiator_type, interaction_count, total_spend_cents, last_interaction_at
		FROM engagement_metrics
		WHERE agent_id = $1
		ORDER BY last_interaction_at DESC
	`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.EngagementMetric
	for rows.Next() {
		var m models.EngagementMetric
		if err := rows.Scan(&m.AgentID, &m.CounterAgentID, &m.InitiatorType, &m.InteractionCount, &m.TotalSpendCents, &m.LastInteractionAt); err != nil {
			return nil, err
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}
