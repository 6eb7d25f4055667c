package budget

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hireloop/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert writes the agent's single policy slot, overwriting any previous
// mode and remaining balance.
func (r *Repository) Upsert(ctx context.Context, agentID uuid.UUID, approvalMode string, remainingCents int64) (*models.BudgetPolicy, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO budget_policies (agent_id, approval_mode, remaining_cents)
		VALUES ($1, $2, $3)
		ON CONFLICT (agent_id) DO UPDATE
		SET approval_mode = EXCLUDED.approval_mode,
		    remaining_cents = EXCLUDED.remaining_cents,
		    updated_at = now()
		RETURNING agent_id, approval_mode, remaining_cents, created_at, updated_at
	`, agentID, approvalMode, remainingCents)
	return scanPolicy(row)
}

// Get returns the agent's policy, or nil when the agent has none.
func (r *Repository) Get(ctx context.Context, agentID uuid.UUID) (*models.BudgetPolicy, error) {
	p, err := scanPolicy(r.pool.QueryRow(ctx, `
		SELECT agent_id, approval_mode, remaining_cents, created_at, updated_at
		FROM budget_policies WHERE agent_id = $1
	`, agentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// GetForUpdateTx locks the agent's policy row inside the caller's
// transaction so concurrent acceptances serialize. Returns nil when the
// agent has no policy.
func (r *Repository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, agentID uuid.UUID) (*models.BudgetPolicy, error) {
	p, err := scanPolicy(tx.QueryRow(ctx, `
		SELECT agent_id, approval_mode, remaining_cents, created_at, updated_at
		FROM budget_policies WHERE agent_id = $1
		FOR UPDATE
	`, agentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// DecrementTx subtracts amountCents from remaining with a floor at zero.
// The predicate, not application arithmetic, is what prevents
// overspending under concurrency.
func (r *Repository) DecrementTx(ctx context.Context, tx pgx.Tx, agentID uuid.UUID, amountCents int64) error {
	result, err := tx.Exec(ctx, `
		UPDATE budget_policies
		SET remaining_cents = remaining_cents - $1, updated_at = now()
		WHERE agent_id = $2 AND remaining_cents >= $1
	`, amountCents, agentID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrBudgetExceeded
	}
	return nil
}

func scanPolicy(row pgx.Row) (*models.BudgetPolicy, error) {
	var p models.BudgetPolicy
	err := row.Scan(&p.AgentID, &p.ApprovalMode, &p.RemainingCents, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
