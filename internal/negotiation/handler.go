package negotiation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/hireloop/backend/internal/budget"
	"github.com/hireloop/backend/internal/directory"
	"github.com/hireloop/backend/internal/middleware"
	"github.com/hireloop/backend/internal/payments"
	"github.com/hireloop/backend/internal/wallet"
)

// Handler serves the /v1 agent-facing negotiation and transaction
// endpoints. Requests arrive through APIKeyAuth, so the calling agent
// is always taken from the context, never from the body.
type Handler struct {
	Negotiations Service
	Log          *slog.Logger
}

// --- POST /v1/negotiations ---

type initiateRequest struct {
	RequesterAgentID    string          `json:"requester_agent_id"`
	ResponderAgentID    string          `json:"responder_agent_id"`
	RequestedService    string          `json:"requested_service"`
	ProposedBudgetCents int64           `json:"proposed_budget_cents"`
	Requirements        json.RawMessage `json:"requirements,omitempty"`
	Notes               string          `json:"notes,omitempty"`
	InitiatorUserID     string          `json:"initiator_user_id,omitempty"`
}

func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	agent := middleware.AgentFromCtx(r.Context())
	if agent == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	requesterID, err := uuid.Parse(req.RequesterAgentID)
	if err != nil {
		http.Error(w, `{"error":"invalid requester_agent_id","code":"INVALID_ARGUMENT"}`, http.StatusBadRequest)
		return
	}
	responderID, err := uuid.Parse(req.ResponderAgentID)
	if err != nil {
		http.Error(w, `{"error":"invalid responder_agent_id","code":"INVALID_ARGUMENT"}`, http.StatusBadRequest)
		return
	}

	view, err := h.Negotiations.Initiate(r.Context(), InitiateParams{
		RequesterAgentID:    requesterID,
		ResponderAgentID:    responderID,
		RequestedService:    req.RequestedService,
		ProposedBudgetCents: req.ProposedBudgetCents,
		Requirements:        req.Requirements,
		Notes:               req.Notes,
		InitiatorUserID:     parseOptionalUUID(req.InitiatorUserID),
	})
	if err != nil {
		h.writeTaxonomyError(w, "initiate negotiation", err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// --- POST /v1/negotiations/{id}/respond ---

type respondRequest struct {
	Status            string          `json:"status"`
	PriceCents        *int64          `json:"price_cents,omitempty"`
	EstimatedDelivery *string         `json:"estimated_delivery,omitempty"`
	Terms             json.RawMessage `json:"terms,omitempty"`
	Notes             *string         `json:"notes,omitempty"`
}

func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	agent := middleware.AgentFromCtx(r.Context())
	if agent == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	negotiationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid negotiation id"}`, http.StatusBadRequest)
		return
	}

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	view, err := h.Negotiations.Respond(r.Context(), negotiationID, agent.ID, Response{
		Status:            req.Status,
		PriceCents:        req.PriceCents,
		EstimatedDelivery: req.EstimatedDelivery,
		Terms:             req.Terms,
		Notes:             req.Notes,
	})
	if err != nil {
		h.writeTaxonomyError(w, "respond to negotiation", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// --- POST /v1/negotiations/{id}/deliver ---

type deliverRequest struct {
	Result            json.RawMessage `json:"result,omitempty"`
	Evidence          json.RawMessage `json:"evidence,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	DeliveredByUserID string          `json:"delivered_by_user_id,omitempty"`
}

func (h *Handler) Deliver(w http.ResponseWriter, r *http.Request) {
	agent := middleware.AgentFromCtx(r.Context())
	if agent == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	negotiationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid negotiation id"}`, http.StatusBadRequest)
		return
	}

	var req deliverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	outcome, err := h.Negotiations.Deliver(r.Context(), negotiationID, agent.ID, Delivery{
		Result:            req.Result,
		Evidence:          req.Evidence,
		Notes:             req.Notes,
		DeliveredByUserID: parseOptionalUUID(req.DeliveredByUserID),
	})
	if err != nil {
		h.writeTaxonomyError(w, "deliver service", err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// --- POST /v1/negotiations/{id}/cancel ---

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	agent := middleware.AgentFromCtx(r.Context())
	if agent == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	negotiationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid negotiation id"}`, http.StatusBadRequest)
		return
	}

	n, err := h.Negotiations.Cancel(r.Context(), negotiationID, agent.ID)
	if err != nil {
		h.writeTaxonomyError(w, "cancel negotiation", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": n.ID.String(), "status": n.Status})
}

// --- GET /v1/negotiations/{id} ---

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	agent := middleware.AgentFromCtx(r.Context())
	if agent == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	negotiationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid negotiation id"}`, http.StatusBadRequest)
		return
	}

	view, err := h.Negotiations.GetNegotiation(r.Context(), negotiationID)
	if err != nil {
		h.writeTaxonomyError(w, "get negotiation", err)
		return
	}
	if view.Negotiation.RequesterAgentID != agent.ID && view.Negotiation.ResponderAgentID != agent.ID {
		writeError(w, http.StatusForbidden, "RESPONDER_MISMATCH", "agent is not a party to this negotiation")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// --- GET /v1/negotiations?agent_id=&limit= ---

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	agent := middleware.AgentFromCtx(r.Context())
	if agent == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	agentID, ok := h.listSubject(w, r, agent.ID)
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	views, err := h.Negotiations.ListForAgent(r.Context(), agentID, limit)
	if err != nil {
		h.writeTaxonomyError(w, "list negotiations", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// --- GET /v1/transactions/{id} ---

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	agent := middleware.AgentFromCtx(r.Context())
	if agent == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	txID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid transaction id"}`, http.StatusBadRequest)
		return
	}

	st, err := h.Negotiations.GetTransactionStatus(r.Context(), txID)
	if err != nil {
		h.writeTaxonomyError(w, "get transaction status", err)
		return
	}
	if !transactionInvolvesAgent(st, agent.ID) {
		writeError(w, http.StatusForbidden, "RESPONDER_MISMATCH", "agent is not a party to this transaction")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// --- GET /v1/transactions?agent_id=&limit= ---

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	agent := middleware.AgentFromCtx(r.Context())
	if agent == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	agentID, ok := h.listSubject(w, r, agent.ID)
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	statuses, err := h.Negotiations.ListTransactionsForAgent(r.Context(), agentID, limit)
	if err != nil {
		h.writeTaxonomyError(w, "list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// listSubject resolves the agent_id query parameter, defaulting to the
// caller. Listing on behalf of another agent is forbidden.
func (h *Handler) listSubject(w http.ResponseWriter, r *http.Request, callerID uuid.UUID) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("agent_id")
	if raw == "" {
		return callerID, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, `{"error":"invalid agent_id","code":"INVALID_ARGUMENT"}`, http.StatusBadRequest)
		return uuid.Nil, false
	}
	if id != callerID {
		writeError(w, http.StatusForbidden, "RESPONDER_MISMATCH", "agent_id does not match authenticated agent")
		return uuid.Nil, false
	}
	return id, true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		http.Error(w, `{"error":"invalid limit","code":"INVALID_ARGUMENT"}`, http.StatusBadRequest)
		return 0, false
	}
	return limit, true
}

func transactionInvolvesAgent(st *TransactionStatus, agentID uuid.UUID) bool {
	if st.Transaction.DebitAgentID == agentID || st.Transaction.CreditAgentID == agentID {
		return true
	}
	if st.Escrow != nil && (st.Escrow.FromAgentID == agentID || st.Escrow.ToAgentID == agentID) {
		return true
	}
	return false
}

func parseOptionalUUID(raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

// writeTaxonomyError maps coordinator failures onto the stable HTTP
// status and code pairs callers key off. Unmatched errors become 500s.
func (h *Handler) writeTaxonomyError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "negotiation not found")
	case errors.Is(err, directory.ErrAgentNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "agent not found")
	case errors.Is(err, payments.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "transaction not found")
	case errors.Is(err, ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	case errors.Is(err, ErrResponderMismatch):
		writeError(w, http.StatusForbidden, "RESPONDER_MISMATCH", err.Error())
	case errors.Is(err, ErrInvalidState):
		writeError(w, http.StatusConflict, "INVALID_STATE", err.Error())
	case errors.Is(err, wallet.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", err.Error())
	case errors.Is(err, wallet.ErrSpendCeilingExceeded):
		writeError(w, http.StatusForbidden, "SPEND_CEILING_EXCEEDED", err.Error())
	case errors.Is(err, budget.ErrManualApprovalRequired):
		writeError(w, http.StatusForbidden, "MANUAL_APPROVAL_REQUIRED", err.Error())
	case errors.Is(err, budget.ErrBudgetExceeded):
		writeError(w, http.StatusForbidden, "BUDGET_EXCEEDED", err.Error())
	case errors.Is(err, ErrPriceExceedsBudget):
		writeError(w, http.StatusUnprocessableEntity, "PRICE_EXCEEDS_BUDGET", err.Error())
	default:
		h.Log.Error(op+" failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
