package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// Lifecycle events delivered to agent webhooks.
const (
	EventNegotiationProposed  = "negotiation.proposed"
	EventNegotiationResponded = "negotiation.responded"
	EventDeliveryVerified     = "negotiation.delivery_verified"
	EventDeliveryRejected     = "negotiation.delivery_rejected"
	EventDeliveryPending      = "negotiation.delivery_pending"
)

type WebhookJobArgs struct {
	AgentID    uuid.UUID       `json:"agent_id"`
	WebhookURL string          `json:"webhook_url"`
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload"`
}

func (WebhookJobArgs) Kind() string { return "agent_webhook" }

// envelope is the body POSTed to the agent's webhook.
type envelope struct {
	Event   string          `json:"event"`
	AgentID uuid.UUID       `json:"agent_id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type WebhookWorker struct {
	river.WorkerDefaults[WebhookJobArgs]
	httpClient *http.Client
	log        *slog.Logger
}

func NewWebhookWorker(log *slog.Logger) *WebhookWorker {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookWorker{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Work POSTs the event to the agent's webhook. Any network error or
// non-2xx status is returned so River retries with backoff; delivery
// failures never touch negotiation state.
func (w *WebhookWorker) Work(ctx context.Context, job *river.Job[WebhookJobArgs]) error {
	args := job.Args

	body, err := json.Marshal(envelope{Event: args.Event, AgentID: args.AgentID, Payload: args.Payload})
	if err != nil {
		return fmt.Errorf("marshal webhook envelope: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, args.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error calling agent webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("agent webhook returned status %d", resp.StatusCode)
	}

	w.log.Debug("webhook delivered", "agent_id", args.AgentID, "event", args.Event)
	return nil
}
