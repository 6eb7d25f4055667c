package verification

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

// Insert persists one delivery verdict. Verification rows are immutable;
// re-deliveries append rather than update.
func (r *Repository) Insert(ctx context.Context, v *models.Verification) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO verifications (agreement_id, status, result, evidence, notes, reviewer_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, v.AgreementID, v.Status, v.Result, v.Evidence, v.Notes, v.ReviewerID)
	return row.Scan(&v.ID, &v.CreatedAt)
}

// LatestByAgreement returns the most recent verification for the
// agreement, or nil when none has been recorded yet.
func (r *Repository) LatestByAgreement(ctx context.Context, agreementID uuid.UUID) (*models.Verification, error) {
	var v models.Verification
	row := r.pool.QueryRow(ctx, `
		SELECT id, agreement_id, status, result, evidence, notes, reviewer_id, created_at
		FROM verifications
		WHERE agreement_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, agreementID)
	err := row.Scan(&v.ID, &v.AgreementID, &v.Status, &v.Result, &v.Evidence, &v.Notes, &v.ReviewerID, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
