package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/custodex/internal/domain"
	"github.com/efreitasn/custodex/internal/service"
)

// WebhookHandler serves subscriptions to custody, order and trade events.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

type upsertWebhookRequest struct {
	Account string   `json:"account"`
	URL     string   `json:"url"`
	Events  []string `json:"events"`
}

type webhookResponse struct {
	WebhookID string `json:"webhook_id"`
	Account   string `json:"account"`
	Event     string `json:"event"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type webhookListResponse struct {
	Webhooks []webhookResponse `json:"webhooks"`
}

// Upsert handles POST /webhooks. It answers 201 when any subscription is
// new and 200 when all of them only moved to the new URL.
func (h *WebhookHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertWebhookRequest
	if !readJSON(w, r, &req) {
		return
	}

	hooks, created, err := h.webhookSvc.Upsert(service.UpsertWebhookRequest(req))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeWebhooks(w, status, hooks)
}

// List handles GET /webhooks?account=.
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.webhookSvc.List(r.URL.Query().Get("account"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeWebhooks(w, http.StatusOK, hooks)
}

// Delete handles DELETE /webhooks/{webhook_id}.
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.webhookSvc.Delete(chi.URLParam(r, "webhook_id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeWebhooks(w http.ResponseWriter, status int, hooks []domain.Webhook) {
	resp := webhookListResponse{Webhooks: make([]webhookResponse, len(hooks))}
	for i, wh := range hooks {
		resp.Webhooks[i] = webhookResponse{
			WebhookID: wh.WebhookID,
			Account:   wh.Account.String(),
			Event:     wh.Event,
			URL:       wh.URL,
			CreatedAt: formatTime(wh.CreatedAt),
			UpdatedAt: formatTime(wh.UpdatedAt),
		}
	}
	WriteJSON(w, status, resp)
}
