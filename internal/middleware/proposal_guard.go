package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// proposalPeek is the slice of the initiate body the guard inspects.
type proposalPeek struct {
	RequesterAgentID    string `json:"requester_agent_id"`
	ProposedBudgetCents int64  `json:"proposed_budget_cents"`
}

// ProposalGuard vets new negotiation proposals before they reach the
// coordinator: the stated requester must be the authenticated agent, and
// the requester's wallet and budget policy must be able to cover the
// proposed budget in principle. The checks are advisory; nothing is
// reserved. Reads the body to peek at the proposal, then replaces r.Body
// so downstream handlers can re-read it.
func ProposalGuard(pool *pgxpool.Pool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			agent := AgentFromCtx(r.Context())
			if agent == nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			bodyBytes, err := io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
				return
			}
			// Restore body for the handler.
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			var peek proposalPeek
			if err := json.Unmarshal(bodyBytes, &peek); err != nil {
				http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
				return
			}
			if peek.ProposedBudgetCents <= 0 {
				http.Error(w, `{"error":"proposed_budget_cents must be > 0","code":"INVALID_ARGUMENT"}`, http.StatusBadRequest)
				return
			}
			requesterID, err := uuid.Parse(peek.RequesterAgentID)
			if err != nil {
				http.Error(w, `{"error":"invalid requester_agent_id","code":"INVALID_ARGUMENT"}`, http.StatusBadRequest)
				return
			}
			if requesterID != agent.ID {
				http.Error(w, `{"error":"requester_agent_id does not match authenticated agent","code":"RESPONDER_MISMATCH"}`, http.StatusForbidden)
				return
			}

			available, err := walletAvailableFn(r.Context(), pool, agent.ID)
			if err != nil {
				http.Error(w, `{"error":"failed to check wallet"}`, http.StatusInternalServerError)
				return
			}
			if available < peek.ProposedBudgetCents {
				http.Error(w, `{"error":"insufficient wallet funds for proposed budget","code":"INSUFFICIENT_FUNDS"}`, http.StatusPaymentRequired)
				return
			}

			remaining, err := budgetRemainingFn(r.Context(), pool, agent.ID)
			if err != nil {
				http.Error(w, `{"error":"failed to check budget policy"}`, http.StatusInternalServerError)
				return
			}
			if remaining != nil && *remaining < peek.ProposedBudgetCents {
				http.Error(w, `{"error":"proposed budget exceeds policy remaining","code":"BUDGET_EXCEEDED"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// walletAvailableFn computes the requester's available balance.
// Tests can replace this to avoid hitting a real database.
var walletAvailableFn = defaultWalletAvailable

// defaultWalletAvailable reads balance minus reserved; an agent with no
// wallet yet has nothing available.
func defaultWalletAvailable(ctx context.Context, pool *pgxpool.Pool, agentID uuid.UUID) (int64, error) {
	var available int64
	err := pool.QueryRow(ctx, `
		SELECT COALESCE(
			(SELECT balance_cents - reserved_cents FROM wallets WHERE agent_id = $1), 0)
	`, agentID).Scan(&available)
	return available, err
}

// budgetRemainingFn reads the policy's remaining balance, nil when the
// agent has no policy. Tests can replace this as well.
var budgetRemainingFn = defaultBudgetRemaining

func defaultBudgetRemaining(ctx context.Context, pool *pgxpool.Pool, agentID uuid.UUID) (*int64, error) {
	var remaining int64
	err := pool.QueryRow(ctx, `
		SELECT remaining_cents FROM budget_policies WHERE agent_id = $1
	`, agentID).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &remaining, nil
}
