package main

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hireloop/backend/internal/middleware"
	"github.com/hireloop/backend/internal/negotiation"
	"github.com/hireloop/backend/internal/repository"
)

// RegisterV1Routes adds the /v1 agent-to-agent endpoints to the mux.
// Middleware chain: APIKeyAuth -> (ProposalGuard on POST /v1/negotiations only) -> handler.
func RegisterV1Routes(
	mux *http.ServeMux,
	pool *pgxpool.Pool,
	apiKeyRepo *repository.APIKeyRepo,
	negotiationSvc negotiation.Service,
	logger *slog.Logger,
) {
	nh := &negotiation.Handler{
		Negotiations: negotiationSvc,
		Log:          logger,
	}

	auth := middleware.APIKeyAuth(apiKeyRepo)
	guard := middleware.ProposalGuard(pool)

	// POST /v1/negotiations runs auth, then the advisory wallet/policy pre-checks.
	// The acceptance transaction stays authoritative; the guard only fails fast.
	mux.Handle("POST /v1/negotiations", auth(guard(http.HandlerFunc(nh.Initiate))))

	mux.Handle("GET /v1/negotiations", auth(http.HandlerFunc(nh.List)))
	mux.Handle("GET /v1/negotiations/{id}", auth(http.HandlerFunc(nh.Get)))
	mux.Handle("POST /v1/negotiations/{id}/respond", auth(http.HandlerFunc(nh.Respond)))
	mux.Handle("POST /v1/negotiations/{id}/deliver", auth(http.HandlerFunc(nh.Deliver)))
	mux.Handle("POST /v1/negotiations/{id}/cancel", auth(http.HandlerFunc(nh.Cancel)))

	mux.Handle("GET /v1/transactions", auth(http.HandlerFunc(nh.ListTransactions)))
	mux.Handle("GET /v1/transactions/{id}", auth(http.HandlerFunc(nh.GetTransaction)))
}
