package budget

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hireloop/backend/internal/middleware"
	"github.com/hireloop/backend/internal/models"
)

// AgentLookup resolves agents so policy endpoints can verify ownership.
type AgentLookup interface {
	GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error)
}

// Handler serves the operator budget-policy endpoints.
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

type upsertPolicyRequest struct {
	ApprovalMode   string `json:"approval_mode"`
	RemainingCents int64  `json:"remaining_cents"`
}

// Upsert handles PUT /api/v1/agents/{agentID}/budget-policy.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	agentID, ok := h.ownedAgent(w, r)
	if !ok {
		return
	}
	var req upsertPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	p, err := h.svc.Upsert(r.Context(), agentID, req.ApprovalMode, req.RemainingCents)
	if err != nil {
		if errors.Is(err, ErrInvalidPolicy) {
			http.Error(w, `{"error":"approval_mode must be AUTO or MANUAL and remaining_cents must be >= 0"}`, http.StatusBadRequest)
			return
		}
		h.log.Error("upsert budget policy", "agent_id", agentID, "error", err)
		http.Error(w, `{"error":"upsert failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Get handles GET /api/v1/agents/{agentID}/budget-policy.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	agentID, ok := h.ownedAgent(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Get(r.Context(), agentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error":"no budget policy for agent"}`, http.StatusNotFound)
			return
		}
		h.log.Error("get budget policy", "agent_id", agentID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) ownedAgent(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	accountID := middleware.AccountIDFromCtx(r.Context())
	if accountID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return uuid.Nil, false
	}
	agentID, err := uuid.Parse(r.PathValue("agentID"))
	if err != nil {
		http.Error(w, `{"error":"invalid agent id"}`, http.StatusBadRequest)
		return uuid.Nil, false
	}
	agent, err := h.agents.GetAgent(r.Context(), agentID)
	if err != nil {
		http.Error(w, `{"error":"agent not found"}`, http.StatusNotFound)
		return uuid.Nil, false
	}
	if agent.AccountID != accountID {
		http.Error(w, `{"error":"agent not owned by account"}`, http.StatusForbidden)
		return uuid.Nil, false
	}
	return agentID, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
