package router

import (
	"net/http"

	"github.com/hireloop/backend/internal/auth"
	"github.com/hireloop/backend/internal/budget"
	"github.com/hireloop/backend/internal/directory"
	"github.com/hireloop/backend/internal/metrics"
	"github.com/hireloop/backend/internal/wallet"
)

// New returns an http.Handler serving the operator API under /api/v1.
// Everything except auth/register and auth/login sits behind jwtAuth.
func New(
	authHandler *auth.Handler,
	directoryHandler *directory.Handler,
	walletHandler *wallet.Handler,
	budgetHandler *budget.Handler,
	metricsHandler *metrics.Handler,
	jwtAuth func(http.Handler) http.Handler,
) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	mux.HandleFunc("POST "+base+"/auth/register", authHandler.Register)
	mux.HandleFunc("POST "+base+"/auth/login", authHandler.Login)

	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, jwtAuth(h))
	}

	protected("POST "+base+"/agents", directoryHandler.Register)
	protected("GET "+base+"/agents/{id}", directoryHandler.Get)

	protected("GET "+base+"/wallets/{agentID}", walletHandler.Get)
	protected("POST "+base+"/wallets/{agentID}/deposit", walletHandler.Deposit)
	protected("PUT "+base+"/wallets/{agentID}/ceiling", walletHandler.SetCeiling)

	protected("PUT "+base+"/agents/{agentID}/budget-policy", budgetHandler.Upsert)
	protected("GET "+base+"/agents/{agentID}/budget-policy", budgetHandler.Get)

	protected("GET "+base+"/agents/{agentID}/engagements", metricsHandler.ListEngagements)

	return mux
}
