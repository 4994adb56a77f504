package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/custodex/internal/engine"
	"github.com/efreitasn/custodex/internal/service"
)

// MarketHandler handles HTTP requests for market views.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// bookLevelResponse is a single price level in the book response. Price is
// quote per base; totals are whole tokens.
type bookLevelResponse struct {
	Price      string `json:"price"`
	TotalBase  string `json:"total_base"`
	TotalQuote string `json:"total_quote"`
	OrderCount int    `json:"order_count"`
}

// bookResponse is the JSON response for GET /markets/{base}/{quote}/book.
type bookResponse struct {
	Base       string              `json:"base"`
	Quote      string              `json:"quote"`
	Bids       []bookLevelResponse `json:"bids"`
	Asks       []bookLevelResponse `json:"asks"`
	Spread     *string             `json:"spread"`
	SnapshotAt string              `json:"snapshot_at"`
}

type marketTradeResponse struct {
	OrderID    uint64 `json:"order_id"`
	Side       string `json:"side"`
	Price      string `json:"price"`
	Base       string `json:"base_amount"`
	Quote      string `json:"quote_amount"`
	Maker      string `json:"maker"`
	Filler     string `json:"filler"`
	Fee        string `json:"fee"`
	ExecutedAt string `json:"executed_at"`
}

// tradeListResponse is the JSON response for GET /markets/{base}/{quote}/trades.
type tradeListResponse struct {
	Base   string                `json:"base"`
	Quote  string                `json:"quote"`
	Trades []marketTradeResponse `json:"trades"`
}

// priceResponse is the JSON response for GET /markets/{base}/{quote}/price.
type priceResponse struct {
	Base          string  `json:"base"`
	Quote         string  `json:"quote"`
	LastPrice     *string `json:"last_price"`
	ChangePercent *string `json:"change_percent"`
	Window        string  `json:"window"`
	TradesInWin   int     `json:"trades_in_window"`
	LastTradeAt   *string `json:"last_trade_at"`
}

// GetBook handles GET /markets/{base}/{quote}/book.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	// Parse depth query param (default 10, max 50).
	depth := 10
	if d := r.URL.Query().Get("depth"); d != "" {
		var err error
		depth, err = strconv.Atoi(d)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "depth must be a valid integer")
			return
		}
	}

	book, err := h.marketSvc.GetBook(chi.URLParam(r, "base"), chi.URLParam(r, "quote"), depth)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := bookResponse{
		Base:       book.Market.Base.String(),
		Quote:      book.Market.Quote.String(),
		Bids:       buildLevelResponses(book.Bids),
		Asks:       buildLevelResponses(book.Asks),
		SnapshotAt: formatTime(book.SnapshotAt),
	}
	if book.Spread != nil {
		s := book.Spread.String()
		resp.Spread = &s
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetTrades handles GET /markets/{base}/{quote}/trades.
func (h *MarketHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	base := chi.URLParam(r, "base")
	quote := chi.URLParam(r, "quote")

	trades, err := h.marketSvc.GetTrades(base, quote)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := tradeListResponse{
		Base:   canonical(base),
		Quote:  canonical(quote),
		Trades: make([]marketTradeResponse, len(trades)),
	}
	for i, t := range trades {
		resp.Trades[i] = marketTradeResponse{
			OrderID:    t.OrderID,
			Side:       t.Side,
			Price:      t.Price.String(),
			Base:       units(t.Base),
			Quote:      units(t.Quote),
			Maker:      t.Maker.String(),
			Filler:     t.Filler.String(),
			Fee:        units(t.Fee),
			ExecutedAt: formatTime(t.ExecutedAt),
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetPrice handles GET /markets/{base}/{quote}/price.
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	price, err := h.marketSvc.GetPrice(chi.URLParam(r, "base"), chi.URLParam(r, "quote"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := priceResponse{
		Base:        price.Market.Base.String(),
		Quote:       price.Market.Quote.String(),
		Window:      price.Window,
		TradesInWin: price.TradesInWindow,
	}
	if price.LastPrice != nil {
		s := price.LastPrice.String()
		resp.LastPrice = &s
	}
	if price.ChangePercent != nil {
		s := price.ChangePercent.StringFixed(2)
		resp.ChangePercent = &s
	}
	resp.LastTradeAt = formatOptionalTime(price.LastTradeAt)

	WriteJSON(w, http.StatusOK, resp)
}

func buildLevelResponses(levels []engine.PriceLevel) []bookLevelResponse {
	result := make([]bookLevelResponse, len(levels))
	for i, l := range levels {
		result[i] = bookLevelResponse{
			Price:      l.Price.String(),
			TotalBase:  units(l.TotalBase),
			TotalQuote: units(l.TotalQuote),
			OrderCount: l.OrderCount,
		}
	}
	return result
}
