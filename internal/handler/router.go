package handler

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/efreitasn/custodex/internal/eventlog"
	"github.com/efreitasn/custodex/internal/service"
)

// Services groups the dependencies served over HTTP.
type Services struct {
	Tokens   *service.TokenService
	Exchange *service.ExchangeService
	Markets  *service.MarketService
	Webhooks *service.WebhookService
	Events   *eventlog.Log
}

// NewRouter creates a chi router with all routes registered, request
// logging, request ids and Content-Type validation middleware.
func NewRouter(svc Services, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestID)
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	tokenH := NewTokenHandler(svc.Tokens)
	exchangeH := NewExchangeHandler(svc.Exchange)
	marketH := NewMarketHandler(svc.Markets)
	eventH := NewEventHandler(svc.Events, logger)
	webhookH := NewWebhookHandler(svc.Webhooks)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Token routes.
	r.Post("/tokens", tokenH.Deploy)
	r.Get("/tokens", tokenH.List)
	r.Get("/tokens/{token}", tokenH.Get)
	r.Get("/tokens/{token}/balances/{account}", tokenH.BalanceOf)
	r.Get("/tokens/{token}/allowances/{owner}/{spender}", tokenH.Allowance)
	r.Post("/tokens/{token}/transfer", tokenH.Transfer)
	r.Post("/tokens/{token}/approve", tokenH.Approve)
	r.Post("/tokens/{token}/transfer-from", tokenH.TransferFrom)

	// Exchange routes.
	r.Get("/exchange", exchangeH.Info)
	r.Post("/exchange/deposits", exchangeH.Deposit)
	r.Post("/exchange/withdrawals", exchangeH.Withdraw)
	r.Get("/exchange/balances/{token}/{account}", exchangeH.Balance)

	// Order routes.
	r.Post("/orders", exchangeH.MakeOrder)
	r.Get("/orders", exchangeH.OrderFeed)
	r.Get("/orders/{order_id}", exchangeH.GetOrder)
	r.Delete("/orders/{order_id}", exchangeH.CancelOrder)
	r.Post("/orders/{order_id}/fill", exchangeH.FillOrder)
	r.Get("/accounts/{account}/orders", exchangeH.ListOrders)

	// Market routes.
	r.Get("/markets/{base}/{quote}/book", marketH.GetBook)
	r.Get("/markets/{base}/{quote}/trades", marketH.GetTrades)
	r.Get("/markets/{base}/{quote}/price", marketH.GetPrice)

	// Event routes.
	r.Get("/events", eventH.List)
	r.Get("/events/stream", eventH.Stream)

	// Webhook routes.
	r.Post("/webhooks", webhookH.Upsert)
	r.Get("/webhooks", webhookH.List)
	r.Delete("/webhooks/{webhook_id}", webhookH.Delete)

	return r
}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// requestID reuses the caller's X-Request-Id or assigns a new one, and
// echoes it on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// RequestIDFrom returns the id assigned to the request, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestLogging returns middleware that logs each request's method, path,
// status code, duration and request id.
func requestLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", RequestIDFrom(r.Context())),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
