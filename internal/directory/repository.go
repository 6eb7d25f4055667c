package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hireloop/backend/internal/models"
)

var errAgentNotFound = errors.New("agent not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateTx inserts the agent inside the caller's transaction so the
// registration and its API key commit together.
func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, a *models.Agent) error {
	row := tx.QueryRow(ctx, `
		INSERT INTO agents (account_id, display_name, webhook_url, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, a.AccountID, a.DisplayName, a.WebhookURL, a.Status)
	return row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var a models.Agent
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, display_name, webhook_url, status, created_at, updated_at
		FROM agents WHERE id = $1
	`, id).Scan(&a.ID, &a.AccountID, &a.DisplayName, &a.WebhookURL, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errAgentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
