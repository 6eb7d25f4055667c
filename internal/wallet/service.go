package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hireloop/backend/internal/models"
)

// ErrInsufficientFunds is returned when a wallet's available balance
// (balance minus reserved) cannot cover a requested amount.
var ErrInsufficientFunds = errors.New("insufficient wallet funds")

// ErrSpendCeilingExceeded is returned when an amount exceeds the
// wallet's per-transaction cap.
var ErrSpendCeilingExceeded = errors.New("amount exceeds wallet spend ceiling")

// ErrInvalidAmount is returned for zero or negative amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

type Service interface {
	Ensure(ctx context.Context, agentID uuid.UUID) error
	Get(ctx context.Context, agentID uuid.UUID) (*models.Wallet, error)
	// GetTx reads the wallet inside the caller's transaction so accept
	// flows see live balances.
	GetTx(ctx context.Context, tx pgx.Tx, agentID uuid.UUID) (*models.Wallet, error)
	EnsureTx(ctx context.Context, tx pgx.Tx, agentID uuid.UUID) error
	Deposit(ctx context.Context, agentID uuid.UUID, amountCents int64) (*models.Transaction, error)
	SetCeiling(ctx context.Context, agentID uuid.UUID, ceilingCents *int64) error
	// CanCover is the advisory pre-check used at proposal time: it
	// reports ErrInsufficientFunds when available < amountCents. It
	// reserves nothing.
	CanCover(ctx context.Context, agentID uuid.UUID, amountCents int64) error
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) Ensure(ctx context.Context, agentID uuid.UUID) error {
	return s.repo.Ensure(ctx, agentID)
}

// Get returns the agent's wallet, creating it on first reference.
func (s *service) Get(ctx context.Context, agentID uuid.UUID) (*models.Wallet, error) {
	if err := s.repo.Ensure(ctx, agentID); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, agentID)
}

func (s *service) GetTx(ctx context.Context, tx pgx.Tx, agentID uuid.UUID) (*models.Wallet, error) {
	return s.repo.GetTx(ctx, tx, agentID)
}

func (s *service) EnsureTx(ctx context.Context, tx pgx.Tx, agentID uuid.UUID) error {
	return s.repo.EnsureTx(ctx, tx, agentID)
}

func (s *service) Deposit(ctx context.Context, agentID uuid.UUID, amountCents int64) (*models.Transaction, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.repo.Deposit(ctx, agentID, amountCents)
}

func (s *service) SetCeiling(ctx context.Context, agentID uuid.UUID, ceilingCents *int64) error {
	if ceilingCents != nil && *ceilingCents <= 0 {
		return ErrInvalidAmount
	}
	return s.repo.SetCeiling(ctx, agentID, ceilingCents)
}

func (s *service) CanCover(ctx context.Context, agentID uuid.UUID, amountCents int64) error {
	if amountCents <= 0 {
		return ErrInvalidAmount
	}
	w, err := s.Get(ctx, agentID)
	if err != nil {
		return err
	}
	if w.AvailableCents() < amountCents {
		return ErrInsufficientFunds
	}
	return nil
}
