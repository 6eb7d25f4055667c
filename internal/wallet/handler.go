package wallet

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

// AgentLookup resolves agents so wallet endpoints can verify ownership.
type AgentLookup interface {
	GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error)
}

// Handler serves the operator wallet endpoints under /api/v1/wallets.
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

type walletResponse struct {
	AgentID           string `json:"agent_id"`
	BalanceCents      int64  `json:"balance_cents"`
	ReservedCents     int64  `json:"reserved_cents"`
	AvailableCents    int64  `json:"available_cents"`
	SpendCeilingCents *int64 `json:"spend_ceiling_cents,omitempty"`
}

// Get handles GET /api/v1/wallets/{agentID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	agentID, ok := h.ownedAgent(w, r)
	if !ok {
		return
	}
	wal, err := h.svc.Get(r.Context(), agentID)
	if err != nil {
		h.log.Error("get wallet", "agent_id", agentID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toWalletResponse(wal))
}

type depositRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

// Deposit handles POST /api/v1/wallets/{agentID}/deposit.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	agentID, ok := h.ownedAgent(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	txn, err := h.svc.Deposit(r.Context(), agentID, req.AmountCents)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			http.Error(w, `{"error":"amount_cents must be positive"}`, http.StatusBadRequest)
			return
		}
		h.log.Error("deposit", "agent_id", agentID, "error", err)
		http.Error(w, `{"error":"deposit failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

type ceilingRequest struct {
	SpendCeilingCents *int64 `json:"spend_ceiling_cents"`
}

// SetCeiling handles PUT /api/v1/wallets/{agentID}/ceiling. A null
// spend_ceiling_cents clears the cap.
func (h *Handler) SetCeiling(w http.ResponseWriter, r *http.Request) {
	agentID, ok := h.ownedAgent(w, r)
	if !ok {
		return
	}
	var req ceilingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.svc.SetCeiling(r.Context(), agentID, req.SpendCeilingCents); err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			http.Error(w, `{"error":"spend_ceiling_cents must be positive or null"}`, http.StatusBadRequest)
			return
		}
		h.log.Error("set ceiling", "agent_id", agentID, "error", err)
		http.Error(w, `{"error":"set ceiling failed"}`, http.StatusInternalServerError)
		return
	}
	wal, err := h.svc.Get(r.Context(), agentID)
	if err != nil {
		h.log.Error("get wallet after ceiling", "agent_id", agentID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toWalletResponse(wal))
}

// ownedAgent parses the path agent id and verifies it belongs to the
// authenticated account. It writes the error response itself.
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

func toWalletResponse(w *models.Wallet) walletResponse {
	return walletResponse{
		AgentID:           w.AgentID.String(),
		BalanceCents:      w.BalanceCents,
		ReservedCents:     w.ReservedCents,
		AvailableCents:    w.AvailableCents(),
		SpendCeilingCents: w.SpendCeilingCents,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
