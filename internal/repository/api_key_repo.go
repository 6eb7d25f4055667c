package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hireloop/backend/internal/models"
)

type APIKeyRepo struct {
	pool *pgxpool.Pool
}

func NewAPIKeyRepo(pool *pgxpool.Pool) *APIKeyRepo {
	return &APIKeyRepo{pool: pool}
}

// APIKeyIdentity is returned by FindByKeyHash: the key joined with the
// account and agent it authenticates.
type APIKeyIdentity struct {
	APIKey  models.APIKey
	Account models.Account
	Agent   models.Agent
}

// CreateTx inserts the key inside the caller's transaction. Keys are
// minted only during agent registration.
func (r *APIKeyRepo) CreateTx(ctx context.Context, tx pgx.Tx, k *models.APIKey) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO api_keys (id, account_id, agent_id, key_hash, key_prefix, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, k.ID, k.AccountID, k.AgentID, k.KeyHash, k.KeyPrefix, k.IsActive)
	return err
}

// FindByKeyHash resolves an active key hash to its account and agent,
// or pgx.ErrNoRows when the hash is unknown or the key is inactive.
func (r *APIKeyRepo) FindByKeyHash(ctx context.Context, keyHash string) (*APIKeyIdentity, error) {
	var out APIKeyIdentity
	err := r.pool.QueryRow(ctx, `
		SELECT k.id, k.account_id, k.agent_id, k.key_hash, k.key_prefix, k.is_active,
		       ac.id, ac.email, ac.name, ac.password_hash, ac.created_at, ac.updated_at,
		       ag.id, ag.account_id, ag.display_name, ag.webhook_url, ag.status, ag.created_at, ag.updated_at
		FROM api_keys k
		INNER JOIN accounts ac ON ac.id = k.account_id
		INNER JOIN agents ag ON ag.id = k.agent_id
		WHERE k.key_hash = $1 AND k.is_active = TRUE
	`, keyHash).Scan(
		&out.APIKey.ID, &out.APIKey.AccountID, &out.APIKey.AgentID, &out.APIKey.KeyHash, &out.APIKey.KeyPrefix, &out.APIKey.IsActive,
		&out.Account.ID, &out.Account.Email, &out.Account.Name, &out.Account.PasswordHash, &out.Account.CreatedAt, &out.Account.UpdatedAt,
		&out.Agent.ID, &out.Agent.AccountID, &out.Agent.DisplayName, &out.Agent.WebhookURL, &out.Agent.Status, &out.Agent.CreatedAt, &out.Agent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
