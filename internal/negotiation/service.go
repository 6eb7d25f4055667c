package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hireloop/backend/internal/budget"
	"github.com/hireloop/backend/internal/metrics"
	"github.com/hireloop/backend/internal/models"
	"github.com/hireloop/backend/internal/notify"
	"github.com/hireloop/backend/internal/payments"
	"github.com/hireloop/backend/internal/verification"
	"github.com/hireloop/backend/internal/wallet"
)

// ErrNotFound is returned when the negotiation id is unknown.
var ErrNotFound = errors.New("negotiation not found")

// ErrInvalidArgument is returned for malformed or self-referential input.
var ErrInvalidArgument = errors.New("invalid negotiation input")

// ErrResponderMismatch is returned when the calling agent is not the
// negotiation party permitted to perform the operation.
var ErrResponderMismatch = errors.New("agent is not the negotiation party permitted for this operation")

// ErrInvalidState is returned when the negotiation's current status
// does not permit the attempted transition.
var ErrInvalidState = errors.New("negotiation is not in a state that permits this operation")

// ErrPriceExceedsBudget is returned when an accepted price exceeds the
// originally proposed budget ceiling.
var ErrPriceExceedsBudget = errors.New("accepted price exceeds the proposed budget")

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

type InitiateParams struct {
	RequesterAgentID    uuid.UUID
	ResponderAgentID    uuid.UUID
	RequestedService    string
	ProposedBudgetCents int64
	Requirements        json.RawMessage
	Notes               string
	InitiatorUserID     *uuid.UUID
}

// Response is one responder reply to an open negotiation. PriceCents is
// required for ACCEPTED and optional otherwise.
type Response struct {
	Status            string
	PriceCents        *int64
	EstimatedDelivery *string
	Terms             json.RawMessage
	Notes             *string
}

type Delivery struct {
	Result            json.RawMessage
	Evidence          json.RawMessage
	Notes             string
	DeliveredByUserID *uuid.UUID
}

// View is the read-side presentation of one negotiation. Transaction is
// the escrow's hold journal entry and Verification the newest verdict;
// relations that do not exist yet stay nil.
type View struct {
	Negotiation  *models.Negotiation      `json:"negotiation"`
	Agreement    *models.ServiceAgreement `json:"agreement,omitempty"`
	Escrow       *models.Escrow           `json:"escrow,omitempty"`
	Transaction  *models.Transaction      `json:"transaction,omitempty"`
	Verification *models.Verification     `json:"verification,omitempty"`
}

// TransactionStatus pairs a journal entry with the escrow and
// negotiation it settles, when either exists.
type TransactionStatus struct {
	Transaction *models.Transaction `json:"transaction"`
	Escrow      *models.Escrow      `json:"escrow,omitempty"`
	Negotiation *models.Negotiation `json:"negotiation,omitempty"`
}

// AgentLookup is the slice of the directory the coordinator needs.
type AgentLookup interface {
	GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error)
}

// SchemaValidator checks requirements and result payloads against
// per-service-type JSON schemas.
type SchemaValidator interface {
	ValidateRequirements(serviceType string, doc json.RawMessage) error
	ValidateResult(serviceType string, doc json.RawMessage) error
}

// WebhookEnqueuer enqueues webhook delivery jobs, transactionally when
// the caller holds an open transaction. Backed by river.Client in main.
type WebhookEnqueuer interface {
	Enqueue(ctx context.Context, args notify.WebhookJobArgs) error
	EnqueueTx(ctx context.Context, tx pgx.Tx, args notify.WebhookJobArgs) error
}

type Service interface {
	Initiate(ctx context.Context, p InitiateParams) (*View, error)
	Respond(ctx context.Context, negotiationID, responderAgentID uuid.UUID, resp Response) (*View, error)
	Deliver(ctx context.Context, negotiationID, responderAgentID uuid.UUID, d Delivery) (*verification.Outcome, error)
	// Cancel declines a negotiation that is still PENDING. Only the
	// requester may cancel; the responder declines through Respond.
	Cancel(ctx context.Context, negotiationID, callerAgentID uuid.UUID) (*models.Negotiation, error)
	GetNegotiation(ctx context.Context, id uuid.UUID) (*View, error)
	ListForAgent(ctx context.Context, agentID uuid.UUID, limit int) ([]*View, error)
	GetTransactionStatus(ctx context.Context, txID uuid.UUID) (*TransactionStatus, error)
	ListTransactionsForAgent(ctx context.Context, agentID uuid.UUID, limit int) ([]*TransactionStatus, error)
}

type service struct {
	repo     *Repository
	agents   AgentLookup
	wallets  wallet.Service
	budgets  budget.Service
	payments payments.Service
	verifier verification.Service
	metrics  metrics.Service
	schemas  SchemaValidator // nil when no schema directory is configured
	webhooks WebhookEnqueuer // nil disables notifications
	log      *slog.Logger
}

func NewService(repo *Repository, agents AgentLookup, wallets wallet.Service, budgets budget.Service, pay payments.Service, verifier verification.Service, metrics metrics.Service, schemas SchemaValidator, webhooks WebhookEnqueuer, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{
		repo:     repo,
		agents:   agents,
		wallets:  wallets,
		budgets:  budgets,
		payments: pay,
		verifier: verifier,
		metrics:  metrics,
		schemas:  schemas,
		webhooks: webhooks,
		log:      log,
	}
}

var _ Service = (*service)(nil)

func (s *service) Initiate(ctx context.Context, p InitiateParams) (*View, error) {
	if p.RequesterAgentID == uuid.Nil || p.ResponderAgentID == uuid.Nil {
		return nil, fmt.Errorf("%w: requester and responder agent ids are required", ErrInvalidArgument)
	}
	if p.RequesterAgentID == p.ResponderAgentID {
		return nil, fmt.Errorf("%w: an agent cannot hire itself", ErrInvalidArgument)
	}
	if strings.TrimSpace(p.RequestedService) == "" {
		return nil, fmt.Errorf("%w: requested_service is required", ErrInvalidArgument)
	}
	if p.ProposedBudgetCents <= 0 {
		return nil, fmt.Errorf("%w: proposed budget must be positive", ErrInvalidArgument)
	}
	if _, err := s.agents.GetAgent(ctx, p.RequesterAgentID); err != nil {
		return nil, fmt.Errorf("requester agent: %w", err)
	}
	if _, err := s.agents.GetAgent(ctx, p.ResponderAgentID); err != nil {
		return nil, fmt.Errorf("responder agent: %w", err)
	}
	if s.schemas != nil && len(p.Requirements) > 0 {
		if err := s.schemas.ValidateRequirements(p.RequestedService, p.Requirements); err != nil {
			return nil, fmt.Errorf("%w: requirements: %v", ErrInvalidArgument, err)
		}
	}

	n, err := s.repo.Create(ctx, p.RequesterAgentID, p.ResponderAgentID, p.RequestedService, p.ProposedBudgetCents, p.Requirements, p.Notes, p.InitiatorUserID)
	if err != nil {
		return nil, fmt.Errorf("create negotiation: %w", err)
	}

	s.notify(ctx, n.ResponderAgentID, notify.EventNegotiationProposed, map[string]any{
		"negotiation_id":        n.ID,
		"requester_agent_id":    n.RequesterAgentID,
		"requested_service":     n.RequestedService,
		"proposed_budget_cents": n.ProposedBudgetCents,
	})
	return &View{Negotiation: n}, nil
}

func (s *service) Respond(ctx context.Context, negotiationID, responderAgentID uuid.UUID, resp Response) (*View, error) {
	n, err := s.repo.GetByID(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	if n.ResponderAgentID != responderAgentID {
		return nil, ErrResponderMismatch
	}
	if n.Status != models.NegotiationStatusPending && n.Status != models.NegotiationStatusCountered {
		return nil, ErrInvalidState
	}

	switch resp.Status {
	case models.ResponseStatusRejected:
		return s.recordResponse(ctx, n, models.NegotiationStatusDeclined, resp)
	case models.ResponseStatusCountered:
		if resp.PriceCents != nil && *resp.PriceCents <= 0 {
			return nil, fmt.Errorf("%w: counter price must be positive", ErrInvalidArgument)
		}
		return s.recordResponse(ctx, n, models.NegotiationStatusCountered, resp)
	case models.ResponseStatusAccepted:
		return s.accept(ctx, n, resp)
	default:
		return nil, fmt.Errorf("%w: status must be ACCEPTED, REJECTED, or COUNTERED", ErrInvalidArgument)
	}
}

// recordResponse handles the two branches that move no money.
func (s *service) recordResponse(ctx context.Context, n *models.Negotiation, newStatus string, resp Response) (*View, error) {
	updated, err := s.repo.RecordResponse(ctx, n.ID, newStatus, resp)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, updated.RequesterAgentID, notify.EventNegotiationResponded, map[string]any{
		"negotiation_id": updated.ID,
		"status":         updated.Status,
	})
	return s.buildView(ctx, updated)
}

// accept runs the whole acceptance as one transaction: row lock,
// solvency and policy checks, escrow hold, agreement insert, status
// compare-and-set. A failure at any step rolls every effect back.
func (s *service) accept(ctx context.Context, n *models.Negotiation, resp Response) (*View, error) {
	if resp.PriceCents == nil {
		return nil, fmt.Errorf("%w: price_cents is required to accept", ErrInvalidArgument)
	}
	price := *resp.PriceCents
	if price <= 0 {
		return nil, fmt.Errorf("%w: price_cents must be positive", ErrInvalidArgument)
	}
	if price > n.ProposedBudgetCents {
		return nil, ErrPriceExceedsBudget
	}

	// Resolved before the transaction so the in-tx webhook enqueue
	// needs no extra reads.
	requester, err := s.agents.GetAgent(ctx, n.RequesterAgentID)
	if err != nil {
		return nil, fmt.Errorf("requester agent: %w", err)
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin accept: %w", err)
	}
	defer tx.Rollback(ctx)

	locked, err := s.repo.GetByIDForUpdateTx(ctx, tx, n.ID)
	if err != nil {
		return nil, err
	}
	if locked.Status != models.NegotiationStatusPending && locked.Status != models.NegotiationStatusCountered {
		return nil, ErrInvalidState
	}

	if err := s.wallets.EnsureTx(ctx, tx, locked.RequesterAgentID); err != nil {
		return nil, fmt.Errorf("ensure requester wallet: %w", err)
	}
	w, err := s.wallets.GetTx(ctx, tx, locked.RequesterAgentID)
	if err != nil {
		return nil, fmt.Errorf("read requester wallet: %w", err)
	}
	if w.AvailableCents() < price {
		return nil, wallet.ErrInsufficientFunds
	}
	if w.SpendCeilingCents != nil && price > *w.SpendCeilingCents {
		return nil, wallet.ErrSpendCeilingExceeded
	}

	// The decrement joins the transaction, so a failed accept rolls the
	// budget back atomically. Absent policy authorizes everything.
	if err := s.budgets.AuthorizeSpendTx(ctx, tx, locked.RequesterAgentID, price); err != nil {
		return nil, err
	}

	if err := s.wallets.EnsureTx(ctx, tx, locked.ResponderAgentID); err != nil {
		return nil, fmt.Errorf("ensure responder wallet: %w", err)
	}

	// Commitment point. The conditional reserve inside Hold is the
	// authoritative solvency check; the read above only fails fast.
	esc, err := s.payments.Hold(ctx, tx, locked.ID, locked.RequesterAgentID, locked.ResponderAgentID, price,
		locked.RequestedService, derefString(resp.Notes), resp.Terms)
	if err != nil {
		return nil, err
	}

	agr, err := s.repo.InsertAgreementTx(ctx, tx, locked.ID, esc.ID, models.OutcomeTypeServiceDelivery, locked.RequestedService)
	if err != nil {
		return nil, err
	}

	if err := s.repo.AcceptTx(ctx, tx, locked.ID, resp, agr.ID); err != nil {
		return nil, err
	}

	if s.webhooks != nil && requester.WebhookURL != "" {
		payload, _ := json.Marshal(map[string]any{
			"negotiation_id": locked.ID,
			"status":         models.NegotiationStatusAccepted,
			"price_cents":    price,
		})
		err := s.webhooks.EnqueueTx(ctx, tx, notify.WebhookJobArgs{
			AgentID:    requester.ID,
			WebhookURL: requester.WebhookURL,
			Event:      notify.EventNegotiationResponded,
			Payload:    payload,
		})
		if err != nil {
			return nil, fmt.Errorf("enqueue acceptance webhook: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit accept: %w", err)
	}

	final, err := s.repo.GetByID(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, final)
}

func (s *service) Deliver(ctx context.Context, negotiationID, responderAgentID uuid.UUID, d Delivery) (*verification.Outcome, error) {
	n, err := s.repo.GetByID(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	if n.ResponderAgentID != responderAgentID {
		return nil, ErrResponderMismatch
	}
	if n.Status != models.NegotiationStatusAccepted {
		return nil, ErrInvalidState
	}
	agr, err := s.repo.GetAgreementByNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	if agr == nil {
		return nil, ErrInvalidState
	}
	latest, err := s.verifier.LatestForAgreement(ctx, agr.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.Status != models.VerificationStatusPending {
		return nil, ErrInvalidState
	}

	// Result shape problems only flag the delivery; the verdict rule
	// decides what the payload means.
	if s.schemas != nil && len(d.Result) > 0 {
		if err := s.schemas.ValidateResult(n.RequestedService, d.Result); err != nil {
			s.log.Warn("delivery result does not match schema", "negotiation_id", n.ID, "error", err)
		}
	}

	outcome, err := s.verifier.Verify(ctx, agr, d.Result, d.Evidence, d.Notes, d.DeliveredByUserID)
	if err != nil {
		return nil, err
	}

	if outcome.Verification.Status == models.VerificationStatusVerified {
		if err := s.recordEngagement(ctx, n, agr); err != nil {
			s.log.Warn("record engagement metrics failed", "negotiation_id", n.ID, "error", err)
			if outcome.Warning == "" {
				outcome.Warning = "verification recorded but engagement metrics update failed"
			}
		}
	}

	s.notify(ctx, n.RequesterAgentID, deliveryEvent(outcome.Verification.Status), map[string]any{
		"negotiation_id":  n.ID,
		"verification_id": outcome.Verification.ID,
		"status":          outcome.Verification.Status,
	})
	return outcome, nil
}

func (s *service) recordEngagement(ctx context.Context, n *models.Negotiation, agr *models.ServiceAgreement) error {
	esc, err := s.payments.GetEscrow(ctx, agr.EscrowID)
	if err != nil {
		return fmt.Errorf("load escrow: %w", err)
	}
	return s.metrics.RecordVerifiedSpend(ctx, n.RequesterAgentID, n.ResponderAgentID, esc.AmountCents)
}

func deliveryEvent(status string) string {
	switch status {
	case models.VerificationStatusVerified:
		return notify.EventDeliveryVerified
	case models.VerificationStatusRejected:
		return notify.EventDeliveryRejected
	default:
		return notify.EventDeliveryPending
	}
}

func (s *service) Cancel(ctx context.Context, negotiationID, callerAgentID uuid.UUID) (*models.Negotiation, error) {
	n, err := s.repo.GetByID(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	if n.RequesterAgentID != callerAgentID {
		return nil, ErrResponderMismatch
	}
	return s.repo.CancelPending(ctx, negotiationID)
}

func (s *service) GetNegotiation(ctx context.Context, id uuid.UUID) (*View, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, n)
}

func (s *service) ListForAgent(ctx context.Context, agentID uuid.UUID, limit int) ([]*View, error) {
	if agentID == uuid.Nil {
		return nil, fmt.Errorf("%w: agent_id is required", ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	list, err := s.repo.ListForAgent(ctx, agentID, limit)
	if err != nil {
		return nil, err
	}
	views := make([]*View, 0, len(list))
	for _, n := range list {
		v, err := s.buildView(ctx, n)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *service) GetTransactionStatus(ctx context.Context, txID uuid.UUID) (*TransactionStatus, error) {
	t, err := s.payments.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	return s.buildTransactionStatus(ctx, t)
}

func (s *service) ListTransactionsForAgent(ctx context.Context, agentID uuid.UUID, limit int) ([]*TransactionStatus, error) {
	if agentID == uuid.Nil {
		return nil, fmt.Errorf("%w: agent_id is required", ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	list, err := s.payments.ListTransactionsForAgent(ctx, agentID, limit)
	if err != nil {
		return nil, err
	}
	statuses := make([]*TransactionStatus, 0, len(list))
	for _, t := range list {
		st, err := s.buildTransactionStatus(ctx, t)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// buildView assembles the read-side presentation. Relations that do
// not exist yet surface as nil fields, never as errors.
func (s *service) buildView(ctx context.Context, n *models.Negotiation) (*View, error) {
	view := &View{Negotiation: n}
	agr, err := s.repo.GetAgreementByNegotiation(ctx, n.ID)
	if err != nil {
		return nil, fmt.Errorf("load agreement: %w", err)
	}
	if agr == nil {
		return view, nil
	}
	view.Agreement = agr

	esc, err := s.payments.GetEscrowByNegotiation(ctx, n.ID)
	if err != nil {
		return nil, fmt.Errorf("load escrow: %w", err)
	}
	if esc != nil {
		view.Escrow = esc
		holdTx, err := s.payments.GetTransaction(ctx, esc.HoldTxID)
		if err != nil && !errors.Is(err, payments.ErrTransactionNotFound) {
			return nil, fmt.Errorf("load hold transaction: %w", err)
		}
		view.Transaction = holdTx
	}

	v, err := s.verifier.LatestForAgreement(ctx, agr.ID)
	if err != nil {
		return nil, fmt.Errorf("load verification: %w", err)
	}
	view.Verification = v
	return view, nil
}

func (s *service) buildTransactionStatus(ctx context.Context, t *models.Transaction) (*TransactionStatus, error) {
	st := &TransactionStatus{Transaction: t}
	esc, err := s.payments.GetEscrowForTransaction(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("load escrow for transaction: %w", err)
	}
	st.Escrow = esc

	negID := t.NegotiationID
	if negID == nil && esc != nil {
		negID = &esc.NegotiationID
	}
	if negID != nil {
		n, err := s.repo.GetByID(ctx, *negID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		st.Negotiation = n
	}
	return st, nil
}

// notify resolves the recipient and enqueues a webhook event for it.
// Failures are logged and dropped; notifications never gate state.
func (s *service) notify(ctx context.Context, agentID uuid.UUID, event string, payload map[string]any) {
	if s.webhooks == nil {
		return
	}
	agent, err := s.agents.GetAgent(ctx, agentID)
	if err != nil {
		s.log.Warn("resolve webhook recipient failed", "agent_id", agentID, "event", event, "error", err)
		return
	}
	if agent.WebhookURL == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("marshal webhook payload failed", "event", event, "error", err)
		return
	}
	err = s.webhooks.Enqueue(ctx, notify.WebhookJobArgs{
		AgentID:    agent.ID,
		WebhookURL: agent.WebhookURL,
		Event:      event,
		Payload:    body,
	})
	if err != nil {
		s.log.Warn("enqueue webhook failed", "agent_id", agent.ID, "event", event, "error", err)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
