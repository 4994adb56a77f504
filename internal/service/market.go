package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/custodex/internal/domain"
	"github.com/efreitasn/custodex/internal/engine"
)

// priceWindow is the look-back for the price change statistic.
const priceWindow = 24 * time.Hour

var hundred = decimal.NewFromInt(100)

// BookResponse represents the response for GET /markets/{base}/{quote}/book.
type BookResponse struct {
	Market     domain.Market
	Bids       []engine.PriceLevel
	Asks       []engine.PriceLevel
	Spread     *decimal.Decimal // nil if either side empty
	SnapshotAt time.Time
}

// MarketTrade is a fill seen from one oriented market. Side is the
// filler's side: "buy" when they received Base.
type MarketTrade struct {
	OrderID    uint64
	Side       string
	Price      decimal.Decimal
	Base       decimal.Decimal
	Quote      decimal.Decimal
	Maker      domain.Address
	Filler     domain.Address
	Fee        decimal.Decimal
	ExecutedAt time.Time
}

// PriceResponse represents the response for GET /markets/{base}/{quote}/price.
type PriceResponse struct {
	Market         domain.Market
	LastPrice      *decimal.Decimal // nil when no trades ever
	ChangePercent  *decimal.Decimal // nil when no trades ever
	Window         string
	TradesInWindow int
	LastTradeAt    *time.Time // nil when no trades ever
}

// MarketService serves read-only views of order books and trade history.
type MarketService struct {
	ex    *engine.Exchange
	clock func() time.Time
}

// NewMarketService creates a new MarketService. A nil clock uses time.Now.
func NewMarketService(ex *engine.Exchange, clock func() time.Time) *MarketService {
	if clock == nil {
		clock = time.Now
	}
	return &MarketService{ex: ex, clock: clock}
}

func parseMarket(base, quote string) (domain.Market, error) {
	b, err := parseAccount("base", base)
	if err != nil {
		return domain.Market{}, err
	}
	q, err := parseAccount("quote", quote)
	if err != nil {
		return domain.Market{}, err
	}
	if b == q {
		return domain.Market{}, &domain.ValidationError{Message: "base and quote must differ"}
	}
	return domain.Market{Base: b, Quote: q}, nil
}

// GetBook returns the top depth price levels of both sides of a market.
func (s *MarketService) GetBook(base, quote string, depth int) (*BookResponse, error) {
	m, err := parseMarket(base, quote)
	if err != nil {
		return nil, err
	}
	if depth < 1 || depth > 50 {
		return nil, &domain.ValidationError{
			Message: "depth must be between 1 and 50",
		}
	}

	bids, asks := s.ex.Depth(m, depth)
	resp := &BookResponse{
		Market:     m,
		Bids:       bids,
		Asks:       asks,
		SnapshotAt: s.clock().UTC(),
	}

	// Spread = best ask - best bid, null if either side is empty.
	if len(resp.Bids) > 0 && len(resp.Asks) > 0 {
		spread := resp.Asks[0].Price.Sub(resp.Bids[0].Price)
		resp.Spread = &spread
	}
	return resp, nil
}

// tradeInMarket orients t in m. It returns false when the price is
// undefined because the trade moved no Base.
func tradeInMarket(m domain.Market, t domain.Trade) (MarketTrade, bool) {
	// The filled order carries the maker's view of the trade.
	o := domain.Order{
		TokenGet:   t.TokenGet,
		AmountGet:  t.AmountGet,
		TokenGive:  t.TokenGive,
		AmountGive: t.AmountGive,
	}
	price, ok := m.Price(o)
	if !ok {
		return MarketTrade{}, false
	}
	side := "sell"
	if t.TokenGive == m.Base {
		side = "buy"
	}
	return MarketTrade{
		OrderID:    t.OrderID,
		Side:       side,
		Price:      price,
		Base:       m.BaseAmount(o),
		Quote:      m.QuoteAmount(o),
		Maker:      t.Maker,
		Filler:     t.Filler,
		Fee:        t.Fee,
		ExecutedAt: t.ExecutedAt,
	}, true
}

// GetTrades returns every fill of the pair oriented to the market, oldest
// first.
func (s *MarketService) GetTrades(base, quote string) ([]MarketTrade, error) {
	m, err := parseMarket(base, quote)
	if err != nil {
		return nil, err
	}

	trades := s.ex.Trades(m.Base, m.Quote)
	out := make([]MarketTrade, 0, len(trades))
	for _, t := range trades {
		if mt, ok := tradeInMarket(m, t); ok {
			out = append(out, mt)
		}
	}
	return out, nil
}

// GetPrice returns the last traded price and its change over the last
// 24 hours. The reference price is the last trade before the window, or
// the oldest trade inside it when the market is younger than the window.
func (s *MarketService) GetPrice(base, quote string) (*PriceResponse, error) {
	trades, err := s.GetTrades(base, quote)
	if err != nil {
		return nil, err
	}
	m, _ := parseMarket(base, quote)

	resp := &PriceResponse{
		Market: m,
		Window: formatDuration(priceWindow),
	}
	if len(trades) == 0 {
		return resp, nil
	}

	last := trades[len(trades)-1]
	resp.LastPrice = &last.Price
	resp.LastTradeAt = &last.ExecutedAt

	windowStart := s.clock().Add(-priceWindow)
	ref := trades[0].Price
	for i := len(trades) - 1; i >= 0; i-- {
		if trades[i].ExecutedAt.Before(windowStart) {
			ref = trades[i].Price
			break
		}
		resp.TradesInWindow++
		ref = trades[i].Price
	}

	if ref.IsPositive() {
		change := last.Price.Sub(ref).Div(ref).Mul(hundred).Round(2)
		resp.ChangePercent = &change
	}
	return resp, nil
}

// formatDuration converts a time.Duration to a human-readable string
// like "24h" for the window field.
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	hours := int(d.Hours())
	if d == time.Duration(hours)*time.Hour && hours > 0 {
		return fmt.Sprintf("%dh", hours)
	}
	minutes := int(d.Minutes())
	if d == time.Duration(minutes)*time.Minute && minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return d.String()
}
