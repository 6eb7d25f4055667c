package budget

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hireloop/backend/internal/models"
)

// ErrBudgetExceeded is returned when a spend would drive the policy's
// remaining balance below zero.
var ErrBudgetExceeded = errors.New("budget policy remaining is insufficient")

// ErrManualApprovalRequired is returned when a MANUAL-mode policy
// forbids unattended spend.
var ErrManualApprovalRequired = errors.New("budget policy requires manual approval")

// ErrNotFound is returned when an agent has no budget policy.
var ErrNotFound = errors.New("budget policy not found")

// ErrInvalidPolicy is returned for a malformed mode or negative balance.
var ErrInvalidPolicy = errors.New("invalid budget policy")

type Service interface {
	Upsert(ctx context.Context, agentID uuid.UUID, approvalMode string, remainingCents int64) (*models.BudgetPolicy, error)
	Get(ctx context.Context, agentID uuid.UUID) (*models.BudgetPolicy, error)
	// CanCover is the advisory pre-check at proposal time: an absent
	// policy never constrains; remaining < amountCents is
	// ErrBudgetExceeded. Nothing is consumed.
	CanCover(ctx context.Context, agentID uuid.UUID, amountCents int64) error
	// AuthorizeSpendTx consumes amountCents from the policy inside the
	// caller's transaction. The row is locked first so concurrent
	// acceptances against the same policy serialize; the decrement
	// itself still carries the floor predicate.
	AuthorizeSpendTx(ctx context.Context, tx pgx.Tx, agentID uuid.UUID, amountCents int64) error
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) Upsert(ctx context.Context, agentID uuid.UUID, approvalMode string, remainingCents int64) (*models.BudgetPolicy, error) {
	if approvalMode != models.ApprovalModeAuto && approvalMode != models.ApprovalModeManual {
		return nil, ErrInvalidPolicy
	}
	if remainingCents < 0 {
		return nil, ErrInvalidPolicy
	}
	return s.repo.Upsert(ctx, agentID, approvalMode, remainingCents)
}

func (s *service) Get(ctx context.Context, agentID uuid.UUID) (*models.BudgetPolicy, error) {
	p, err := s.repo.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *service) CanCover(ctx context.Context, agentID uuid.UUID, amountCents int64) error {
	p, err := s.repo.Get(ctx, agentID)
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}
	if p.RemainingCents < amountCents {
		return ErrBudgetExceeded
	}
	return nil
}

func (s *service) AuthorizeSpendTx(ctx context.Context, tx pgx.Tx, agentID uuid.UUID, amountCents int64) error {
	p, err := s.repo.GetForUpdateTx(ctx, tx, agentID)
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}
	if p.ApprovalMode == models.ApprovalModeManual {
		return ErrManualApprovalRequired
	}
	return s.repo.DecrementTx(ctx, tx, agentID, amountCents)
}
