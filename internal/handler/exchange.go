package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/custodex/internal/domain"
	"github.com/efreitasn/custodex/internal/service"
)

// ExchangeHandler handles HTTP requests for custody and order endpoints.
type ExchangeHandler struct {
	exchangeSvc *service.ExchangeService
}

// NewExchangeHandler creates a new ExchangeHandler.
func NewExchangeHandler(exchangeSvc *service.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{exchangeSvc: exchangeSvc}
}

type marketResponse struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// exchangeResponse is the JSON response for GET /exchange.
type exchangeResponse struct {
	Address     string           `json:"address"`
	FeeAccount  string           `json:"fee_account"`
	FeePercent  int64            `json:"fee_percent"`
	NextOrderID uint64           `json:"next_order_id"`
	Markets     []marketResponse `json:"markets"`
}

// custodyRequest is the JSON request body for deposits and withdrawals.
type custodyRequest struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// custodyResponse reports a deposit or withdrawal and the resulting
// exchange balance.
type custodyResponse struct {
	Token     string `json:"token"`
	User      string `json:"user"`
	Amount    string `json:"amount"`
	Balance   string `json:"balance"`
	Timestamp string `json:"timestamp"`
}

// makeOrderRequest is the JSON request body for POST /orders.
type makeOrderRequest struct {
	TokenGet   string `json:"token_get"`
	AmountGet  string `json:"amount_get"`
	TokenGive  string `json:"token_give"`
	AmountGive string `json:"amount_give"`
}

// orderResponse is the JSON representation of an order.
type orderResponse struct {
	OrderID    uint64  `json:"order_id"`
	Maker      string  `json:"maker"`
	TokenGet   string  `json:"token_get"`
	AmountGet  string  `json:"amount_get"`
	TokenGive  string  `json:"token_give"`
	AmountGive string  `json:"amount_give"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	ClosedAt   *string `json:"closed_at"`
	Filler     *string `json:"filler,omitempty"`
	Fee        *string `json:"fee,omitempty"`
}

// orderListResponse is the JSON response for GET /accounts/{account}/orders.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

// tradeResponse is the JSON response for POST /orders/{order_id}/fill.
type tradeResponse struct {
	OrderID    uint64 `json:"order_id"`
	Maker      string `json:"maker"`
	Filler     string `json:"filler"`
	TokenGet   string `json:"token_get"`
	AmountGet  string `json:"amount_get"`
	TokenGive  string `json:"token_give"`
	AmountGive string `json:"amount_give"`
	Fee        string `json:"fee"`
	ExecutedAt string `json:"executed_at"`
}

// Info handles GET /exchange.
func (h *ExchangeHandler) Info(w http.ResponseWriter, r *http.Request) {
	info := h.exchangeSvc.Info()

	markets := make([]marketResponse, len(info.Markets))
	for i, m := range info.Markets {
		markets[i] = marketResponse{Base: m.Base.String(), Quote: m.Quote.String()}
	}
	WriteJSON(w, http.StatusOK, exchangeResponse{
		Address:     info.Address.String(),
		FeeAccount:  info.FeeAccount.String(),
		FeePercent:  info.FeePercent,
		NextOrderID: info.NextOrderID,
		Markets:     markets,
	})
}

// Deposit handles POST /exchange/deposits.
func (h *ExchangeHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req custodyRequest
	if !readJSON(w, r, &req) {
		return
	}

	ev, err := h.exchangeSvc.Deposit(service.CustodyRequest{
		User:   callerFrom(r),
		Token:  req.Token,
		Amount: req.Amount,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, buildCustodyResponse(ev.Token, ev.User, ev.Amount, ev.Balance, ev.Timestamp))
}

// Withdraw handles POST /exchange/withdrawals.
func (h *ExchangeHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req custodyRequest
	if !readJSON(w, r, &req) {
		return
	}

	ev, err := h.exchangeSvc.Withdraw(service.CustodyRequest{
		User:   callerFrom(r),
		Token:  req.Token,
		Amount: req.Amount,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, buildCustodyResponse(ev.Token, ev.User, ev.Amount, ev.Balance, ev.Timestamp))
}

// Balance handles GET /exchange/balances/{token}/{account}.
func (h *ExchangeHandler) Balance(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	account := chi.URLParam(r, "account")

	balance, err := h.exchangeSvc.Balance(token, account)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, balanceResponse{
		Token:   canonical(token),
		Account: canonical(account),
		Balance: units(balance),
	})
}

// MakeOrder handles POST /orders.
func (h *ExchangeHandler) MakeOrder(w http.ResponseWriter, r *http.Request) {
	var req makeOrderRequest
	if !readJSON(w, r, &req) {
		return
	}

	order, err := h.exchangeSvc.MakeOrder(service.MakeOrderRequest{
		Maker:      callerFrom(r),
		TokenGet:   req.TokenGet,
		AmountGet:  req.AmountGet,
		TokenGive:  req.TokenGive,
		AmountGive: req.AmountGive,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// orderFeedResponse is the JSON response for GET /orders.
type orderFeedResponse struct {
	Orders []orderResponse `json:"orders"`
	NextID uint64          `json:"next_id"`
}

// OrderFeed handles GET /orders. It pages through every order by id; pass
// the returned next_id as from to continue.
func (h *ExchangeHandler) OrderFeed(w http.ResponseWriter, r *http.Request) {
	var from uint64
	if f := r.URL.Query().Get("from"); f != "" {
		var err error
		from, err = strconv.ParseUint(f, 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "from must be a non-negative integer")
			return
		}
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return
		}
	}

	orders, err := h.exchangeSvc.OrderFeed(from, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := orderFeedResponse{
		Orders: make([]orderResponse, len(orders)),
		NextID: from,
	}
	for i, o := range orders {
		resp.Orders[i] = buildOrderResponse(o)
	}
	if n := len(orders); n > 0 {
		resp.NextID = orders[n-1].ID + 1
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetOrder handles GET /orders/{order_id}.
func (h *ExchangeHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := service.ParseOrderID(chi.URLParam(r, "order_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	order, err := h.exchangeSvc.GetOrder(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// CancelOrder handles DELETE /orders/{order_id}.
func (h *ExchangeHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := service.ParseOrderID(chi.URLParam(r, "order_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	order, err := h.exchangeSvc.CancelOrder(callerFrom(r), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// FillOrder handles POST /orders/{order_id}/fill. The request has no body
// fields, but the Content-Type check still applies.
func (h *ExchangeHandler) FillOrder(w http.ResponseWriter, r *http.Request) {
	id, err := service.ParseOrderID(chi.URLParam(r, "order_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	trade, err := h.exchangeSvc.FillOrder(callerFrom(r), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tradeResponse{
		OrderID:    trade.OrderID,
		Maker:      trade.Maker.String(),
		Filler:     trade.Filler.String(),
		TokenGet:   trade.TokenGet.String(),
		AmountGet:  units(trade.AmountGet),
		TokenGive:  trade.TokenGive.String(),
		AmountGive: units(trade.AmountGive),
		Fee:        units(trade.Fee),
		ExecutedAt: formatTime(trade.ExecutedAt),
	})
}

// ListOrders handles GET /accounts/{account}/orders.
func (h *ExchangeHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	var statusFilter *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.OrderStatus(s)
		statusFilter = &status
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		var err error
		page, err = strconv.Atoi(p)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be a valid integer")
			return
		}
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return
		}
	}

	orders, total, err := h.exchangeSvc.ListOrders(account, statusFilter, page, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := orderListResponse{
		Orders: make([]orderResponse, len(orders)),
		Total:  total,
		Page:   page,
		Limit:  limit,
	}
	for i, o := range orders {
		resp.Orders[i] = buildOrderResponse(o)
	}
	WriteJSON(w, http.StatusOK, resp)
}

func buildCustodyResponse(token, user domain.Address, amount, balance decimal.Decimal, at time.Time) custodyResponse {
	return custodyResponse{
		Token:     token.String(),
		User:      user.String(),
		Amount:    units(amount),
		Balance:   units(balance),
		Timestamp: formatTime(at),
	}
}

// buildOrderResponse converts a domain order to its JSON form. The closing
// record is only present once the order has left the open state.
func buildOrderResponse(o domain.Order) orderResponse {
	resp := orderResponse{
		OrderID:    o.ID,
		Maker:      o.Maker.String(),
		TokenGet:   o.TokenGet.String(),
		AmountGet:  units(o.AmountGet),
		TokenGive:  o.TokenGive.String(),
		AmountGive: units(o.AmountGive),
		Status:     string(o.Status),
		CreatedAt:  formatTime(o.Timestamp),
	}
	resp.ClosedAt = formatOptionalTime(o.ClosedAt)
	filled := o.Status == domain.OrderStatusFilled
	if filled {
		filler := o.Filler.String()
		resp.Filler = &filler
	}
	resp.Fee = optionalUnits(o.Fee, filled)
	return resp
}
