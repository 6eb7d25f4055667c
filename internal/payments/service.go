package payments

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hireloop/backend/internal/models"
)

// Service is the payment initiation capability: it owns escrow holds,
// releases and refunds, and the journal behind them. Hold composes into
// a caller's transaction; Release and Refund each run in their own.
type Service interface {
	Hold(ctx context.Context, tx pgx.Tx, negotiationID, fromAgentID, toAgentID uuid.UUID, amountCents int64, purpose, memo string, metadata json.RawMessage) (*models.Escrow, error)
	Release(ctx context.Context, escrowID uuid.UUID) error
	Refund(ctx context.Context, escrowID uuid.UUID) error
	GetEscrow(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
	GetEscrowByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.Escrow, error)
	GetEscrowForTransaction(ctx context.Context, txID uuid.UUID) (*models.Escrow, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListTransactionsForAgent(ctx context.Context, agentID uuid.UUID, limit int) ([]*models.Transaction, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) Hold(ctx context.Context, tx pgx.Tx, negotiationID, fromAgentID, toAgentID uuid.UUID, amountCents int64, purpose, memo string, metadata json.RawMessage) (*models.Escrow, error) {
	return s.repo.Hold(ctx, tx, negotiationID, fromAgentID, toAgentID, amountCents, purpose, memo, metadata)
}

func (s *service) Release(ctx context.Context, escrowID uuid.UUID) error {
	return s.repo.Release(ctx, escrowID)
}

func (s *service) Refund(ctx context.Context, escrowID uuid.UUID) error {
	return s.repo.Refund(ctx, escrowID)
}

func (s *service) GetEscrow(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	return s.repo.GetEscrow(ctx, id)
}

func (s *service) GetEscrowByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.Escrow, error) {
	return s.repo.GetEscrowByNegotiation(ctx, negotiationID)
}

func (s *service) GetEscrowForTransaction(ctx context.Context, txID uuid.UUID) (*models.Escrow, error) {
	return s.repo.GetEscrowForTransaction(ctx, txID)
}

func (s *service) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

func (s *service) ListTransactionsForAgent(ctx context.Context, agentID uuid.UUID, limit int) ([]*models.Transaction, error) {
	return s.repo.ListTransactionsForAgent(ctx, agentID, limit)
}

// ErrEscrowNotFound is returned when the escrow id is unknown.
var ErrEscrowNotFound = errEscrowNotFound

// ErrEscrowNotHeld is returned when releasing or refunding an escrow
// that already settled.
var ErrEscrowNotHeld = errEscrowNotHeld

// ErrTransactionNotFound is returned when the journal entry is unknown.
var ErrTransactionNotFound = errTransactionNotFound
