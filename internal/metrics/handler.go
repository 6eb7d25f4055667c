package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hireloop/backend/internal/middleware"
	"github.com/hireloop/backend/internal/models"
)

// AgentLookup resolves agents so the engagements endpoint can verify
// ownership.
type AgentLookup interface {
	GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error)
}

// Handler serves GET /api/v1/agents/{agentID}/engagements for reporting
// layers. Read-only; the recorder is only driven by verified deliveries.
type Handler struct {
	svc    Service
	agents AgentLookup
	log    *slog.Logger
}

func NewHandler(svc Service, agents AgentLookup, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, agents: agents, log: log}
}

func (h *Handler) ListEngagements(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromCtx(r.Context())
	if accountID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	agentID, err := uuid.Parse(r.PathValue("agentID"))
	if err != nil {
		http.Error(w, `{"error":"invalid agent id"}`, http.StatusBadRequest)
		return
	}
	agent, err := h.agents.GetAgent(r.Context(), agentID)
	if err != nil {
		http.Error(w, `{"error":"agent not found"}`, http.StatusNotFound)
		return
	}
	if agent.AccountID != accountID {
		http.Error(w, `{"error":"agent not owned by account"}`, http.StatusForbidden)
		return
	}

	list, err := h.svc.ListForAgent(r.Context(), agentID)
	if err != nil {
		h.log.Error("list engagements", "agent_id", agentID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.EngagementMetric{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}
