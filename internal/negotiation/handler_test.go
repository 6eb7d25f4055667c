package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/hireloop/backend/internal/budget"
	"github.com/hireloop/backend/internal/directory"
	"github.com/hireloop/backend/internal/middleware"
	"github.com/hireloop/backend/internal/models"
	"github.com/hireloop/backend/internal/payments"
	"github.com/hireloop/backend/internal/verification"
	"github.com/hireloop/backend/internal/wallet"
)

// ---------------------------------------------------------------------------
// fake Service
// ---------------------------------------------------------------------------

// fakeNegotiationService returns canned values and records what the
// handler passed in. A non-nil err wins over every canned value.
type fakeNegotiationService struct {
	view        *View
	outcome     *verification.Outcome
	negotiation *models.Negotiation
	views       []*View
	status      *TransactionStatus
	statuses    []*TransactionStatus
	err         error

	gotInitiate      *InitiateParams
	gotNegotiationID uuid.UUID
	gotAgentID       uuid.UUID
	gotRespond       *Response
	gotDelivery      *Delivery
	gotLimit         int
	gotTxID          uuid.UUID
}

func (f *fakeNegotiationService) Initiate(_ context.Context, p InitiateParams) (*View, error) {
	f.gotInitiate = &p
	if f.err != nil {
		return nil, f.err
	}
	return f.view, nil
}

func (f *fakeNegotiationService) Respond(_ context.Context, negotiationID, responderAgentID uuid.UUID, resp Response) (*View, error) {
	f.gotNegotiationID = negotiationID
	f.gotAgentID = responderAgentID
	f.gotRespond = &resp
	if f.err != nil {
		return nil, f.err
	}
	return f.view, nil
}

func (f *fakeNegotiationService) Deliver(_ context.Context, negotiationID, responderAgentID uuid.UUID, d Delivery) (*verification.Outcome, error) {
	f.gotNegotiationID = negotiationID
	f.gotAgentID = responderAgentID
	f.gotDelivery = &d
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

func (f *fakeNegotiationService) Cancel(_ context.Context, negotiationID, callerAgentID uuid.UUID) (*models.Negotiation, error) {
	f.gotNegotiationID = negotiationID
	f.gotAgentID = callerAgentID
	if f.err != nil {
		return nil, f.err
	}
	return f.negotiation, nil
}

func (f *fakeNegotiationService) GetNegotiation(_ context.Context, id uuid.UUID) (*View, error) {
	f.gotNegotiationID = id
	if f.err != nil {
		return nil, f.err
	}
	return f.view, nil
}

func (f *fakeNegotiationService) ListForAgent(_ context.Context, agentID uuid.UUID, limit int) ([]*View, error) {
	f.gotAgentID = agentID
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.views, nil
}

func (f *fakeNegotiationService) GetTransactionStatus(_ context.Context, txID uuid.UUID) (*TransactionStatus, error) {
	f.gotTxID = txID
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

func (f *fakeNegotiationService) ListTransactionsForAgent(_ context.Context, agentID uuid.UUID, limit int) ([]*TransactionStatus, error) {
	f.gotAgentID = agentID
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.statuses, nil
}

var _ Service = (*fakeNegotiationService)(nil)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// newNegotiationMux mounts the handler on the same patterns the API
// registers, with the given agent pre-injected where one is provided.
func newNegotiationMux(h *Handler, agent *models.Agent) *http.ServeMux {
	wrap := func(fn http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if agent != nil {
				r = r.WithContext(middleware.WithAgent(r.Context(), agent))
			}
			fn(w, r)
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/negotiations", wrap(h.Initiate))
	mux.HandleFunc("GET /v1/negotiations", wrap(h.List))
	mux.HandleFunc("GET /v1/negotiations/{id}", wrap(h.Get))
	mux.HandleFunc("POST /v1/negotiations/{id}/respond", wrap(h.Respond))
	mux.HandleFunc("POST /v1/negotiations/{id}/deliver", wrap(h.Deliver))
	mux.HandleFunc("POST /v1/negotiations/{id}/cancel", wrap(h.Cancel))
	mux.HandleFunc("GET /v1/transactions", wrap(h.ListTransactions))
	mux.HandleFunc("GET /v1/transactions/{id}", wrap(h.GetTransaction))
	return mux
}

func newTestHandler(svc Service) *Handler {
	return &Handler{
		Negotiations: svc,
		Log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func sampleNegotiation(requesterID, responderID uuid.UUID) *models.Negotiation {
	return &models.Negotiation{
		ID:                  uuid.New(),
		RequesterAgentID:    requesterID,
		ResponderAgentID:    responderID,
		Status:              models.NegotiationStatusPending,
		RequestedService:    "translation",
		ProposedBudgetCents: 5_000,
	}
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// ---------------------------------------------------------------------------
// 1. Initiate
// ---------------------------------------------------------------------------

func TestInitiate_Created(t *testing.T) {
	agent := &models.Agent{ID: uuid.New()}
	responder := uuid.New()
	n := sampleNegotiation(agent.ID, responder)
	fake := &fakeNegotiationService{view: &View{Negotiation: n}}
	mux := newNegotiationMux(newTestHandler(fake), agent)

	body := fmt.Sprintf(`{
		"requester_agent_id": %q,
		"responder_agent_id": %q,
		"requested_service": "translation",
		"proposed_budget_cents": 5000,
		"requirements": {"source_lang":"en"},
		"notes": "need it fast"
	}`, agent.ID, responder)
	rec := do(mux, http.MethodPost, "/v1/negotiations", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if fake.gotInitiate == nil {
		t.Fatal("service was not called")
	}
	if fake.gotInitiate.RequesterAgentID != agent.ID || fake.gotInitiate.ResponderAgentID != responder {
		t.Errorf("params carry wrong agent ids: %+v", fake.gotInitiate)
	}
	if fake.gotInitiate.ProposedBudgetCents != 5_000 || fake.gotInitiate.RequestedService != "translation" {
		t.Errorf("params carry wrong service terms: %+v", fake.gotInitiate)
	}
	if !strings.Contains(rec.Body.String(), n.ID.String()) {
		t.Errorf("response missing negotiation id: %s", rec.Body.String())
	}
}

func TestInitiate_Unauthorized(t *testing.T) {
	fake := &fakeNegotiationService{}
	mux := newNegotiationMux(newTestHandler(fake), nil)

	rec := do(mux, http.MethodPost, "/v1/negotiations", `{}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if fake.gotInitiate != nil {
		t.Error("service should not be called without an agent")
	}
}

func TestInitiate_BadAgentIDs(t *testing.T) {
	agent := &models.Agent{ID: uuid.New()}
	fake := &fakeNegotiationService{}
	mux := newNegotiationMux(newTestHandler(fake), agent)

	body := fmt.Sprintf(`{"requester_agent_id":"not-a-uuid","responder_agent_id":%q}`, uuid.New())
	rec := do(mux, http.MethodPost, "/v1/negotiations", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "INVALID_ARGUMENT") {
		t.Errorf("expected INVALID_ARGUMENT code, got %s", rec.Body.String())
	}
}

// ---------------------------------------------------------------------------
// 2. Error taxonomy
// ---------------------------------------------------------------------------

func TestTaxonomyMapping(t *testing.T) {
	agent := &models.Agent{ID: uuid.New()}
	body := fmt.Sprintf(`{"requester_agent_id":%q,"responder_agent_id":%q,"requested_service":"x","proposed_budget_cents":100}`,
		agent.ID, uuid.New())

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"negotiation not found", ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"agent not found", directory.ErrAgentNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"transaction not found", payments.ErrTransactionNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"invalid argument", ErrInvalidArgument, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"wrapped invalid argument", fmt.Errorf("%w: budget must be positive", ErrInvalidArgument), http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"responder mismatch", ErrResponderMismatch, http.StatusForbidden, "RESPONDER_MISMATCH"},
		{"invalid state", ErrInvalidState, http.StatusConflict, "INVALID_STATE"},
		{"insufficient funds", wallet.ErrInsufficientFunds, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS"},
		{"spend ceiling", wallet.ErrSpendCeilingExceeded, http.StatusForbidden, "SPEND_CEILING_EXCEEDED"},
		{"manual approval", budget.ErrManualApprovalRequired, http.StatusForbidden, "MANUAL_APPROVAL_REQUIRED"},
		{"budget exceeded", budget.ErrBudgetExceeded, http.StatusForbidden, "BUDGET_EXCEEDED"},
		{"price exceeds budget", ErrPriceExceedsBudget, http.StatusUnprocessableEntity, "PRICE_EXCEEDS_BUDGET"},
		{"unknown error", errors.New("pool exhausted"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeNegotiationService{err: tc.err}
			mux := newNegotiationMux(newTestHandler(fake), agent)

			rec := do(mux, http.MethodPost, "/v1/negotiations", body)
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if tc.wantCode != "" && !strings.Contains(rec.Body.String(), tc.wantCode) {
				t.Errorf("expected code %s, got %s", tc.wantCode, rec.Body.String())
			}
		})
	}
}

// ---------------------------------------------------------------------------
// 3. Respond and Deliver
// ---------------------------------------------------------------------------

func TestRespond_CallerComesFromContext(t *testing.T) {
	agent := &models.Agent{ID: uuid.New()}
	n := sampleNegotiation(uuid.New(), agent.ID)
	fake := &fakeNegotiationService{view: &View{Negotiation: n}}
	mux := newNegotiationMux(newTestHandler(fake), agent)

	body := `{"status":"COUNTERED","price_cents":4500,"estimated_delivery":"2h","notes":"can do"}`
	rec := do(mux, http.MethodPost, "/v1/negotiations/"+n.ID.String()+"/respond", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if fake.gotNegotiationID != n.ID {
		t.Errorf("negotiation id = %s, want %s", fake.gotNegotiationID, n.ID)
	}
	if fake.gotAgentID != agent.ID {
		t.Errorf("responder id = %s, want authenticated agent %s", fake.gotAgentID, agent.ID)
	}
	if fake.gotRespond.Status != "COUNTERED" || fake.gotRespond.PriceCents == nil || *fake.gotRespond.PriceCents != 4_500 {
		t.Errorf("response not forwarded: %+v", fake.gotRespond)
	}
}

func TestRespond_BadNegotiationID(t *testing.T) {
	agent := &models.Agent{ID: uuid.New()}
	mux := newNegotiationMux(newTestHandler(&fakeNegotiationService{}), agent)

	rec := do(mux, http.MethodPost, "/v1/negotiations/not-a-uuid/respond", `{"status":"REJECTED"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDeliver_ReturnsOutcome(t *testing.T) {
	agent := &models.Agent{ID: uuid.New()}
	n := sampleNegotiation(uuid.New(), agent.ID)
	fake := &fakeNegotiationService{outcome: &verification.Outcome{
		Verification: &models.Verification{ID: uuid.New(), Status: models.VerificationStatusVerified},
		Released:     true,
	}}
	mux := newNegotiationMux(newTestHandler(fake), agent)

	body := `{"result":{"status":"success"},"evidence":{"log":"done"}}`
	rec := do(mux, http.MethodPost, "/v1/negotiations/"+n.ID.String()+"/deliver", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Released bool `json:"escrow_released"`
		Verification struct {
			Status string `json:"status"`
		} `json:"verification"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !out.Released || out.Verification.Status != models.VerificationStatusVerified {
		t.Errorf("unexpected outcome body: %s", rec.Body.String())
	}
	if fake.gotDelivery == nil || string(fake.gotDelivery.Result) != `{"status":"success"}` {
		t.Errorf("delivery not forwarded: %+v", fake.gotDelivery)
	}
}

func TestCancel_ReturnsIDAndStatus(t *testing.T) {
	agent := &models.Agent{ID: uuid.New()}
	n := sampleNegotiation(agent.ID, uuid.New())
	n.Status = models.NegotiationStatusDeclined
	fake := &fakeNegotiationService{negotiation: n}
	mux := newNegotiationMux(newTestHandler(fake), agent)

	rec := do(mux, http.MethodPost, "/v1/negotiations/"+n.ID.String()+"/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["id"] != n.ID.String() || out["status"] != models.NegotiationStatusDeclined {
		t.Errorf("unexpected cancel body: %v", out)
	}
}

// ---------------------------------------------------------------------------
// 4. Reads are party-scoped
// ---------------------------------------------------------------------------

func TestGet_PartyOnly(t *testing.T) {
	requester := uuid.New()
	responder := uuid.New()
	n := sampleNegotiation(requester, responder)
	fake := &fakeNegotiationService{view: &View{Negotiation: n}}

	// A third agent cannot read the negotiation.
	outsider := &models.Agent{ID: uuid.New()}
	rec := do(newNegotiationMux(newTestHandler(fake), outsider), http.MethodGet, "/v1/negotiations/"+n.ID.String(), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("outsider: expected 403, got %d", rec.Code)
	}

	// Either party can.
	for _, id := range []uuid.UUID{requester, responder} {
		rec := do(newNegotiationMux(newTestHandler(fake), &models.Agent{ID: id}), http.MethodGet, "/v1/negotiations/"+n.ID.String(), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("party %s: expected 200, got %d", id, rec.Code)
		}
	}
}

func TestList_SubjectDefaultsToCaller(t *testing.T) {
	agent := &models.Agent{ID: uuid.New()}
	fake := &fakeNegotiationService{views: []*View{}}
	mux := newNegotiationMux(newTestHandler(fake), agent)

	rec := do(mux, http.MethodGet, "/v1/negotiations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if fake.gotAgentID != agent.ID {
		t.Errorf("list subject = %s, want caller %s", fake.gotAgentID, agent.ID)
	}

	// Explicitly naming the caller is fine; naming anyone else is not.
	rec = do(mux, http.MethodGet, "/v1/negotiations?agent_id="+agent.ID.String()+"&limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("own agent_id: expected 200, got %d", rec.Code)
	}
	if fake.gotLimit != 10 {
		t.Errorf("limit = %d, want 10", fake.gotLimit)
	}

	rec = do(mux, http.MethodGet, "/v1/negotiations?agent_id="+uuid.NewString(), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign agent_id: expected 403, got %d", rec.Code)
	}

	rec = do(mux, http.MethodGet, "/v1/negotiations?limit=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", rec.Code)
	}
}

func TestGetTransaction_PartyCheck(t *testing.T) {
	debitor := uuid.New()
	creditor := uuid.New()
	st := &TransactionStatus{
		Transaction: &models.Transaction{
			ID:            uuid.New(),
			DebitAgentID:  debitor,
			CreditAgentID: creditor,
		},
	}
	fake := &fakeNegotiationService{status: st}
	target := "/v1/transactions/" + st.Transaction.ID.String()

	rec := do(newNegotiationMux(newTestHandler(fake), &models.Agent{ID: debitor}), http.MethodGet, target, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("debitor: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(newNegotiationMux(newTestHandler(fake), &models.Agent{ID: uuid.New()}), http.MethodGet, target, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("outsider: expected 403, got %d", rec.Code)
	}
}
