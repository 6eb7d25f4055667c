package metrics

import (
	"context"

	"github.com/google/uuid"

	"github.com/hireloop/backend/internal/models"
)

type Service interface {
	// RecordVerifiedSpend accumulates one verified delivery between the
	// requester and responder. Zero or negative amounts are skipped;
	// repeat-delivery protection is the caller's InvalidState guard,
	// not this recorder.
	RecordVerifiedSpend(ctx context.Context, requesterAgentID, responderAgentID uuid.UUID, amountCents int64) error
	ListForAgent(ctx context.Context, agentID uuid.UUID) ([]*models.EngagementMetric, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) RecordVerifiedSpend(ctx context.Context, requesterAgentID, responderAgentID uuid.UUID, amountCents int64) error {
	if amountCents <= 0 {
		return nil
	}
	return s.repo.Upsert(ctx, requesterAgentID, responderAgentID, models.InitiatorTypeAgent, amountCents)
}

func (s *service) ListForAgent(ctx context.Context, agentID uuid.UUID) ([]*models.EngagementMetric, error) {
	return s.repo.ListForAgent(ctx, agentID)
}
