package verification

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hireloop/backend/internal/models"
)

// EscrowReleaser is the slice of the payment capability the verifier
// needs: releasing held funds after a verified delivery.
type EscrowReleaser interface {
	Release(ctx context.Context, escrowID uuid.UUID) error
}

// Outcome is the result of judging one delivery.
type Outcome struct {
	Verification *models.Verification `json:"verification"`
	Released     bool                 `json:"escrow_released"`
	// Warning is set when a step after the recorded verdict failed.
	// The verdict stands regardless.
	Warning string `json:"warning,omitempty"`
}

type Service interface {
	// Verify classifies the delivery, persists the verdict, and on
	// VERIFIED triggers the escrow release. The verdict commits before
	// the release runs; a release failure is logged and reported as a
	// warning, never rolled back.
	Verify(ctx context.Context, agreement *models.ServiceAgreement, result, evidence json.RawMessage, notes string, reviewerID *uuid.UUID) (*Outcome, error)
	LatestForAgreement(ctx context.Context, agreementID uuid.UUID) (*models.Verification, error)
}

type service struct {
	repo     *Repository
	payments EscrowReleaser
	log      *slog.Logger
}

func NewService(repo *Repository, payments EscrowReleaser, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{repo: repo, payments: payments, log: log}
}

var _ Service = (*service)(nil)

func (s *service) Verify(ctx context.Context, agreement *models.ServiceAgreement, result, evidence json.RawMessage, notes string, reviewerID *uuid.UUID) (*Outcome, error) {
	v := &models.Verification{
		AgreementID: agreement.ID,
		Status:      Classify(result, evidence),
		Result:      result,
		Evidence:    evidence,
		Notes:       notes,
		ReviewerID:  reviewerID,
	}
	if err := s.repo.Insert(ctx, v); err != nil {
		return nil, err
	}

	out := &Outcome{Verification: v}
	if v.Status != models.VerificationStatusVerified {
		return out, nil
	}

	if err := s.payments.Release(ctx, agreement.EscrowID); err != nil {
		s.log.Warn("escrow release failed after verified delivery",
			"agreement_id", agreement.ID, "escrow_id", agreement.EscrowID, "error", err)
		out.Warning = "verification recorded but escrow release failed"
		return out, nil
	}
	out.Released = true
	return out, nil
}

func (s *service) LatestForAgreement(ctx context.Context, agreementID uuid.UUID) (*models.Verification, error) {
	return s.repo.LatestByAgreement(ctx, agreementID)
}
