package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/efreitasn/custodex/internal/domain"
	"github.com/efreitasn/custodex/internal/store"
)

// Subscription names accepted by POST /webhooks.
const (
	WebhookOrderCreated   = "order.created"
	WebhookOrderCancelled = "order.cancelled"
	WebhookTradeExecuted  = "trade.executed"
	WebhookDeposit        = "deposit"
	WebhookWithdraw       = "withdraw"
)

// webhookEvents lists the subscription names in the order error messages
// show them.
var webhookEvents = []string{
	WebhookOrderCreated,
	WebhookOrderCancelled,
	WebhookTradeExecuted,
	WebhookDeposit,
	WebhookWithdraw,
}

const maxWebhookURL = 2048

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	Account string
	URL     string
	Events  []string
}

// WebhookService keeps per-account subscriptions to custody, order and
// trade events and delivers matching events to them.
type WebhookService struct {
	store  *store.WebhookStore
	client *http.Client
	logger *zap.Logger
}

// NewWebhookService creates a WebhookService whose deliveries give up
// after timeout.
func NewWebhookService(webhookStore *store.WebhookStore, timeout time.Duration, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		store:  webhookStore,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Upsert subscribes an account's URL to each named event. A pair that is
// already subscribed keeps its id and takes the new URL. The returned flag
// reports whether any subscription is new.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]domain.Webhook, bool, error) {
	account, err := parseAccount("account", req.Account)
	if err != nil {
		return nil, false, err
	}
	if err := validateWebhookURL(req.URL); err != nil {
		return nil, false, err
	}
	events, err := subscribedEvents(req.Events)
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	created := false
	webhooks := make([]domain.Webhook, 0, len(events))
	for _, event := range events {
		wh := &domain.Webhook{
			WebhookID: uuid.New().String(),
			Account:   account,
			Event:     event,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if s.store.Upsert(wh) {
			created = true
			webhooks = append(webhooks, *wh)
			continue
		}
		if existing, ok := s.store.GetByAccountEvent(account, event); ok {
			webhooks = append(webhooks, existing)
		}
	}
	return webhooks, created, nil
}

func validateWebhookURL(raw string) error {
	switch {
	case raw == "":
		return &domain.ValidationError{Message: "url is required"}
	case len(raw) > maxWebhookURL:
		return &domain.ValidationError{Message: fmt.Sprintf("url must be at most %d characters", maxWebhookURL)}
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || !u.IsAbs() {
		return &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if u.Scheme != "https" {
		return &domain.ValidationError{Message: "url must use https scheme"}
	}
	return nil
}

// subscribedEvents checks every name and drops repeats, keeping the first
// occurrence.
func subscribedEvents(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, &domain.ValidationError{Message: "events must be a non-empty array"}
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !slices.Contains(webhookEvents, name) {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("unknown event %q, want one of: %s", name, strings.Join(webhookEvents, ", ")),
			}
		}
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// List returns all of an account's webhook subscriptions.
func (s *WebhookService) List(account string) ([]domain.Webhook, error) {
	addr, err := parseAccount("account", account)
	if err != nil {
		return nil, err
	}
	return s.store.ListByAccount(addr), nil
}

// Delete removes a webhook subscription by ID.
func (s *WebhookService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

// webhookPayload is the JSON body of every delivery. Data is the same
// notification recorded in the event log.
type webhookPayload struct {
	Event     string       `json:"event"`
	Timestamp string       `json:"timestamp"`
	Data      domain.Event `json:"data"`
}

// audience names the subscription an event is delivered under and the
// accounts it concerns. Token transfers and approvals have none.
func audience(ev domain.Event) (string, []domain.Address) {
	switch e := ev.(type) {
	case domain.DepositEvent:
		return WebhookDeposit, []domain.Address{e.User}
	case domain.WithdrawEvent:
		return WebhookWithdraw, []domain.Address{e.User}
	case domain.OrderEvent:
		return WebhookOrderCreated, []domain.Address{e.User}
	case domain.CancelEvent:
		return WebhookOrderCancelled, []domain.Address{e.User}
	case domain.TradeEvent:
		return WebhookTradeExecuted, []domain.Address{e.Maker, e.Filler}
	}
	return "", nil
}

// Dispatch starts a delivery to every subscriber the event concerns and
// returns without waiting for any of them.
func (s *WebhookService) Dispatch(ev domain.Event, at time.Time) {
	event, accounts := audience(ev)
	if event == "" {
		return
	}
	payload := webhookPayload{
		Event:     event,
		Timestamp: at.UTC().Truncate(time.Second).Format(time.RFC3339),
		Data:      ev,
	}
	for _, account := range accounts {
		if wh, ok := s.store.GetByAccountEvent(account, event); ok {
			go s.deliver(wh, payload)
		}
	}
}

// deliver POSTs one payload. Failures are logged and not retried.
func (s *WebhookService) deliver(wh domain.Webhook, payload webhookPayload) {
	log := s.logger.With(zap.String("webhook_id", wh.WebhookID), zap.String("event", payload.Event))

	body, err := json.Marshal(payload)
	if err != nil {
		log.Error("encoding webhook payload", zap.Error(err))
		return
	}
	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		log.Warn("building webhook request", zap.Error(err))
		return
	}

	deliveryID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", deliveryID)
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", payload.Event)

	resp, err := s.client.Do(req)
	if err != nil {
		log.Warn("webhook delivery failed", zap.String("delivery_id", deliveryID), zap.Error(err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		log.Warn("webhook rejected", zap.String("delivery_id", deliveryID), zap.Int("status", resp.StatusCode))
	}
}
