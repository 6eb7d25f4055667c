package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hireloop/backend/internal/models"
)

const negotiationColumns = `id, requester_agent_id, responder_agent_id, status, requested_service,
	proposed_budget_cents, requirements, notes, initiator_user_id,
	counter_status, counter_price_cents, counter_estimated_delivery, counter_terms, counter_notes,
	service_agreement_id, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) Create(ctx context.Context, requesterAgentID, responderAgentID uuid.UUID, requestedService string, proposedBudgetCents int64, requirements json.RawMessage, notes string, initiatorUserID *uuid.UUID) (*models.Negotiation, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO negotiations (requester_agent_id, responder_agent_id, status, requested_service, proposed_budget_cents, requirements, notes, initiator_user_id)
		VALUES ($1, $2, 'PENDING', $3, $4, $5, $6, $7)
		RETURNING `+negotiationColumns+`
	`, requesterAgentID, responderAgentID, requestedService, proposedBudgetCents, requirements, notes, initiatorUserID)
	return scanNegotiation(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Negotiation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+negotiationColumns+` FROM negotiations WHERE id = $1`, id)
	n, err := scanNegotiation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return n, err
}

// GetByIDForUpdateTx locks the negotiation row for the duration of the
// transaction so concurrent responds serialize on it.
func (r *Repository) GetByIDForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Negotiation, error) {
	row := tx.QueryRow(ctx, `SELECT `+negotiationColumns+` FROM negotiations WHERE id = $1 FOR UPDATE`, id)
	n, err := scanNegotiation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return n, err
}

func (r *Repository) ListForAgent(ctx context.Context, agentID uuid.UUID, limit int) ([]*models.Negotiation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+negotiationColumns+` FROM negotiations
		WHERE requester_agent_id = $1 OR responder_agent_id = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Negotiation
	for rows.Next() {
		n, err := scanNegotiation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// RecordResponse moves a PENDING or COUNTERED negotiation to newStatus
// and overwrites the counter_* fields with the latest response. Returns
// ErrInvalidState when the status changed since the caller last read it.
func (r *Repository) RecordResponse(ctx context.Context, id uuid.UUID, newStatus string, resp Response) (*models.Negotiation, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE negotiations
		SET status = $2, counter_status = $3, counter_price_cents = $4, counter_estimated_delivery = $5,
			counter_terms = $6, counter_notes = $7, updated_at = now()
		WHERE id = $1 AND status IN ('PENDING', 'COUNTERED')
		RETURNING `+negotiationColumns+`
	`, id, newStatus, resp.Status, resp.PriceCents, resp.EstimatedDelivery, resp.Terms, resp.Notes)
	n, err := scanNegotiation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidState
	}
	return n, err
}

// AcceptTx finalizes the acceptance inside the caller's transaction.
// The status predicate makes the transition a compare-and-set even
// though the row is already locked; zero rows means a concurrent
// respond won and the whole transaction must roll back.
func (r *Repository) AcceptTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, resp Response, agreementID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE negotiations
		SET status = 'ACCEPTED', counter_status = $2, counter_price_cents = $3, counter_estimated_delivery = $4,
			counter_terms = $5, counter_notes = $6, service_agreement_id = $7, updated_at = now()
		WHERE id = $1 AND status IN ('PENDING', 'COUNTERED')
	`, id, resp.Status, resp.PriceCents, resp.EstimatedDelivery, resp.Terms, resp.Notes, agreementID)
	if err != nil {
		return fmt.Errorf("accept negotiation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// CancelPending declines a negotiation that is still PENDING. Any other
// status fails ErrInvalidState.
func (r *Repository) CancelPending(ctx context.Context, id uuid.UUID) (*models.Negotiation, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE negotiations SET status = 'DECLINED', updated_at = now()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+negotiationColumns+`
	`, id)
	n, err := scanNegotiation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidState
	}
	return n, err
}

func (r *Repository) InsertAgreementTx(ctx context.Context, tx pgx.Tx, negotiationID, escrowID uuid.UUID, outcomeType, targetDescription string) (*models.ServiceAgreement, error) {
	agr := models.ServiceAgreement{
		NegotiationID:     negotiationID,
		EscrowID:          escrowID,
		OutcomeType:       outcomeType,
		TargetDescription: targetDescription,
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO service_agreements (negotiation_id, escrow_id, outcome_type, target_description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, negotiationID, escrowID, outcomeType, targetDescription)
	if err := row.Scan(&agr.ID, &agr.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert service agreement: %w", err)
	}
	return &agr, nil
}

// GetAgreementByNegotiation returns nil without error when the
// negotiation has no agreement yet.
func (r *Repository) GetAgreementByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.ServiceAgreement, error) {
	var agr models.ServiceAgreement
	row := r.pool.QueryRow(ctx, `
		SELECT id, negotiation_id, escrow_id, outcome_type, target_description, created_at
		FROM service_agreements WHERE negotiation_id = $1
	`, negotiationID)
	err := row.Scan(&agr.ID, &agr.NegotiationID, &agr.EscrowID, &agr.OutcomeType, &agr.TargetDescription, &agr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agr, nil
}

func scanNegotiation(row pgx.Row) (*models.Negotiation, error) {
	var n models.Negotiation
	err := row.Scan(&n.ID, &n.RequesterAgentID, &n.ResponderAgentID, &n.Status, &n.RequestedService,
		&n.ProposedBudgetCents, &n.Requirements, &n.Notes, &n.InitiatorUserID,
		&n.CounterStatus, &n.CounterPriceCents, &n.CounterEstimatedDelivery, &n.CounterTerms, &n.CounterNotes,
		&n.ServiceAgreementID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
