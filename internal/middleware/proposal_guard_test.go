package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hireloop/backend/internal/models"
)

// injectAgent wraps a handler to pre-set the agent in context,
// simulating what APIKeyAuth would do upstream.
func injectAgent(ag *models.Agent, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithAgent(r.Context(), ag)))
	})
}

func int64P(n int64) *int64 { return &n }

// guard200 proves the middleware let the request through.
var guard200 = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func swapWalletAvailable(t *testing.T, available int64) {
	t.Helper()
	original := walletAvailableFn
	walletAvailableFn = func(_ context.Context, _ *pgxpool.Pool, _ uuid.UUID) (int64, error) {
		return available, nil
	}
	t.Cleanup(func() { walletAvailableFn = original })
}

func swapBudgetRemaining(t *testing.T, remaining *int64) {
	t.Helper()
	original := budgetRemainingFn
	budgetRemainingFn = func(_ context.Context, _ *pgxpool.Pool, _ uuid.UUID) (*int64, error) {
		return remaining, nil
	}
	t.Cleanup(func() { budgetRemainingFn = original })
}

func proposalBody(requesterID uuid.UUID, budgetCents int64) string {
	return fmt.Sprintf(`{"requester_agent_id":%q,"responder_agent_id":%q,"requested_service":"translation","proposed_budget_cents":%d}`,
		requesterID, uuid.New(), budgetCents)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestProposalGuard_WithinLimits(t *testing.T) {
	swapWalletAvailable(t, 10_000)
	swapBudgetRemaining(t, nil) // no policy configured

	agent := &models.Agent{ID: uuid.New()}
	body := proposalBody(agent.ID, 5_000)

	// The downstream handler must see the same body the client sent.
	var seenBody string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seenBody = string(b)
		w.WriteHeader(http.StatusOK)
	})
	handler := injectAgent(agent, ProposalGuard(nil)(inner))

	req := httptest.NewRequest(http.MethodPost, "/v1/negotiations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if seenBody != body {
		t.Errorf("handler body = %q, want original %q", seenBody, body)
	}
}

func TestProposalGuard_NoAgentInContext(t *testing.T) {
	handler := ProposalGuard(nil)(guard200)

	req := httptest.NewRequest(http.MethodPost, "/v1/negotiations", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProposalGuard_InvalidJSON(t *testing.T) {
	agent := &models.Agent{ID: uuid.New()}
	handler := injectAgent(agent, ProposalGuard(nil)(guard200))

	req := httptest.NewRequest(http.MethodPost, "/v1/negotiations", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestProposalGuard_NonPositiveBudget(t *testing.T) {
	agent := &models.Agent{ID: uuid.New()}
	handler := injectAgent(agent, ProposalGuard(nil)(guard200))

	req := httptest.NewRequest(http.MethodPost, "/v1/negotiations", strings.NewReader(proposalBody(agent.ID, 0)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "INVALID_ARGUMENT") {
		t.Errorf("expected INVALID_ARGUMENT code, got %s", rec.Body.String())
	}
}

func TestProposalGuard_RequesterMismatch(t *testing.T) {
	agent := &models.Agent{ID: uuid.New()}
	handler := injectAgent(agent, ProposalGuard(nil)(guard200))

	// Body names a different requester than the authenticated agent.
	req := httptest.NewRequest(http.MethodPost, "/v1/negotiations", strings.NewReader(proposalBody(uuid.New(), 5_000)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProposalGuard_InsufficientFunds(t *testing.T) {
	swapWalletAvailable(t, 1_000)
	swapBudgetRemaining(t, nil)

	agent := &models.Agent{ID: uuid.New()}
	handler := injectAgent(agent, ProposalGuard(nil)(guard200))

	req := httptest.NewRequest(http.MethodPost, "/v1/negotiations", strings.NewReader(proposalBody(agent.ID, 5_000)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "INSUFFICIENT_FUNDS") {
		t.Errorf("expected INSUFFICIENT_FUNDS code, got %s", rec.Body.String())
	}
}

func TestProposalGuard_BudgetExceeded(t *testing.T) {
	swapWalletAvailable(t, 10_000)
	swapBudgetRemaining(t, int64P(1_000))

	agent := &models.Agent{ID: uuid.New()}
	handler := injectAgent(agent, ProposalGuard(nil)(guard200))

	req := httptest.NewRequest(http.MethodPost, "/v1/negotiations", strings.NewReader(proposalBody(agent.ID, 5_000)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "BUDGET_EXCEEDED") {
		t.Errorf("expected BUDGET_EXCEEDED code, got %s", rec.Body.String())
	}
}

func TestProposalGuard_PolicyCoversBudget(t *testing.T) {
	swapWalletAvailable(t, 10_000)
	swapBudgetRemaining(t, int64P(8_000))

	agent := &models.Agent{ID: uuid.New()}
	handler := injectAgent(agent, ProposalGuard(nil)(guard200))

	req := httptest.NewRequest(http.MethodPost, "/v1/negotiations", strings.NewReader(proposalBody(agent.ID, 5_000)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
