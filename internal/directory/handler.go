package directory

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hireloop/backend/internal/middleware"
	"github.com/hireloop/backend/internal/models"
)

// Handler serves the operator agent endpoints. There is deliberately no
// browse or search surface; agents are addressed by id only.
type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

type registerAgentRequest struct {
	DisplayName string `json:"display_name"`
	WebhookURL  string `json:"webhook_url"`
}

type registerAgentResponse struct {
	Agent *models.Agent `json:"agent"`
	// APIKey is shown exactly once at registration.
	APIKey string `json:"api_key"`
}

// Register handles POST /api/v1/agents.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromCtx(r.Context())
	if accountID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	agent, rawKey, err := h.svc.RegisterAgent(r.Context(), accountID, req.DisplayName, req.WebhookURL)
	if err != nil {
		if errors.Is(err, ErrInvalidAgent) {
			http.Error(w, `{"error":"display_name is required"}`, http.StatusBadRequest)
			return
		}
		h.log.Error("register agent", "error", err)
		http.Error(w, `{"error":"register agent failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, registerAgentResponse{Agent: agent, APIKey: rawKey})
}

// Get handles GET /api/v1/agents/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromCtx(r.Context())
	if accountID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid agent id"}`, http.StatusBadRequest)
		return
	}
	agent, err := h.svc.GetAgent(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			http.Error(w, `{"error":"agent not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("get agent", "agent_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if agent.AccountID != accountID {
		http.Error(w, `{"error":"agent not owned by account"}`, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
