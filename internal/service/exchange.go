package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/efreitasn/custodex/internal/domain"
	"github.com/efreitasn/custodex/internal/engine"
)

// ValidOrderStatuses lists all valid order status values for validation.
var ValidOrderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusOpen:      true,
	domain.OrderStatusCancelled: true,
	domain.OrderStatusFilled:    true,
}

// CustodyRequest represents the input for deposits and withdrawals.
type CustodyRequest struct {
	User   string
	Token  string
	Amount string
}

// MakeOrderRequest represents the input for order creation.
type MakeOrderRequest struct {
	Maker      string
	TokenGet   string
	AmountGet  string
	TokenGive  string
	AmountGive string
}

// ExchangeInfo describes the exchange's identity and fee schedule.
type ExchangeInfo struct {
	Address     domain.Address  `json:"address"`
	FeeAccount  domain.Address  `json:"fee_account"`
	FeePercent  int64           `json:"fee_percent"`
	NextOrderID uint64          `json:"next_order_id"`
	Markets     []domain.Market `json:"markets"`
}

// ExchangeService validates requests against the exchange and publishes
// the events every successful mutation returns.
type ExchangeService struct {
	ex        *engine.Exchange
	publisher *Publisher
	clock     func() time.Time
	logger    *zap.Logger
}

// NewExchangeService creates a new ExchangeService. A nil clock uses
// time.Now.
func NewExchangeService(ex *engine.Exchange, publisher *Publisher, clock func() time.Time, logger *zap.Logger) *ExchangeService {
	if clock == nil {
		clock = time.Now
	}
	return &ExchangeService{
		ex:        ex,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

func (s *ExchangeService) now() time.Time {
	return s.clock().UTC().Truncate(time.Second)
}

// ParseOrderID converts a path parameter to an order id.
func ParseOrderID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, &domain.ValidationError{Message: fmt.Sprintf("order_id must be a non-negative integer, got %q", s)}
	}
	return id, nil
}

// Info returns the exchange's identity, fee schedule and known markets.
func (s *ExchangeService) Info() ExchangeInfo {
	return ExchangeInfo{
		Address:     s.ex.Address(),
		FeeAccount:  s.ex.FeeAccount(),
		FeePercent:  s.ex.FeePercent(),
		NextOrderID: s.ex.OrderID(),
		Markets:     s.ex.Pairs(),
	}
}

func parseCustodyRequest(req CustodyRequest) (domain.Address, domain.Address, decimal.Decimal, error) {
	user, err := parseAccount("caller", req.User)
	if err != nil {
		return "", "", decimal.Zero, err
	}
	token, err := parseAccount("token", req.Token)
	if err != nil {
		return "", "", decimal.Zero, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return "", "", decimal.Zero, err
	}
	return user, token, amount, nil
}

// Deposit moves tokens from the caller's ledger balance into custody.
func (s *ExchangeService) Deposit(req CustodyRequest) (domain.DepositEvent, error) {
	user, token, amount, err := parseCustodyRequest(req)
	if err != nil {
		return domain.DepositEvent{}, err
	}

	ev, err := commit(s.publisher, s.now, func(at time.Time) (domain.DepositEvent, error) {
		return s.ex.DepositToken(user, token, amount, at)
	})
	if err != nil {
		return domain.DepositEvent{}, err
	}
	s.logger.Debug("deposit",
		zap.Stringer("user", user),
		zap.Stringer("token", token),
		zap.Stringer("amount", amount),
	)
	return ev, nil
}

// Withdraw moves tokens from custody back to the caller's ledger balance.
func (s *ExchangeService) Withdraw(req CustodyRequest) (domain.WithdrawEvent, error) {
	user, token, amount, err := parseCustodyRequest(req)
	if err != nil {
		return domain.WithdrawEvent{}, err
	}

	ev, err := commit(s.publisher, s.now, func(at time.Time) (domain.WithdrawEvent, error) {
		return s.ex.WithdrawToken(user, token, amount, at)
	})
	if err != nil {
		return domain.WithdrawEvent{}, err
	}
	s.logger.Debug("withdraw",
		zap.Stringer("user", user),
		zap.Stringer("token", token),
		zap.Stringer("amount", amount),
	)
	return ev, nil
}

// Balance returns account's custody balance of token.
func (s *ExchangeService) Balance(token, account string) (decimal.Decimal, error) {
	t, err := parseAccount("token", token)
	if err != nil {
		return decimal.Zero, err
	}
	a, err := parseAccount("account", account)
	if err != nil {
		return decimal.Zero, err
	}
	return s.ex.BalanceOf(t, a), nil
}

// MakeOrder validates the request and records an open order.
func (s *ExchangeService) MakeOrder(req MakeOrderRequest) (domain.Order, error) {
	maker, err := parseAccount("caller", req.Maker)
	if err != nil {
		return domain.Order{}, err
	}
	tokenGet, err := parseAccount("token_get", req.TokenGet)
	if err != nil {
		return domain.Order{}, err
	}
	amountGet, err := parseAmount("amount_get", req.AmountGet)
	if err != nil {
		return domain.Order{}, err
	}
	tokenGive, err := parseAccount("token_give", req.TokenGive)
	if err != nil {
		return domain.Order{}, err
	}
	amountGive, err := parseAmount("amount_give", req.AmountGive)
	if err != nil {
		return domain.Order{}, err
	}

	ev, err := commit(s.publisher, s.now, func(at time.Time) (domain.OrderEvent, error) {
		_, ev, err := s.ex.MakeOrder(maker, tokenGet, amountGet, tokenGive, amountGive, at)
		return ev, err
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.logger.Info("order created", zap.Uint64("order_id", ev.ID), zap.Stringer("maker", maker))

	return s.ex.Order(ev.ID)
}

// GetOrder retrieves an order by id.
func (s *ExchangeService) GetOrder(id uint64) (domain.Order, error) {
	return s.ex.Order(id)
}

// CancelOrder cancels one of the caller's open orders.
func (s *ExchangeService) CancelOrder(caller string, id uint64) (domain.Order, error) {
	c, err := parseAccount("caller", caller)
	if err != nil {
		return domain.Order{}, err
	}

	_, err = commit(s.publisher, s.now, func(at time.Time) (domain.CancelEvent, error) {
		return s.ex.CancelOrder(c, id, at)
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.logger.Info("order cancelled", zap.Uint64("order_id", id))

	return s.ex.Order(id)
}

// FillOrder settles an open order with the caller as filler.
func (s *ExchangeService) FillOrder(filler string, id uint64) (domain.Trade, error) {
	f, err := parseAccount("caller", filler)
	if err != nil {
		return domain.Trade{}, err
	}

	ev, err := commit(s.publisher, s.now, func(at time.Time) (domain.TradeEvent, error) {
		return s.ex.FillOrder(f, id, at)
	})
	if err != nil {
		return domain.Trade{}, err
	}
	s.logger.Info("order filled",
		zap.Uint64("order_id", id),
		zap.Stringer("filler", f),
		zap.Stringer("fee", ev.Fee),
	)

	return ev.Trade, nil
}

// OrderFeed returns up to limit orders of every maker starting at id from,
// oldest first.
func (s *ExchangeService) OrderFeed(from uint64, limit int) ([]domain.Order, error) {
	if limit < 1 || limit > 1000 {
		return nil, &domain.ValidationError{
			Message: "limit must be between 1 and 1000",
		}
	}
	return s.ex.OrdersFrom(from, limit), nil
}

// ListOrders returns a paginated list of an account's orders with
// optional status filtering.
func (s *ExchangeService) ListOrders(account string, status *domain.OrderStatus, page, limit int) ([]domain.Order, int, error) {
	maker, err := parseAccount("account", account)
	if err != nil {
		return nil, 0, err
	}

	if status != nil {
		if !ValidOrderStatuses[*status] {
			return nil, 0, &domain.ValidationError{
				Message: fmt.Sprintf("Invalid status filter: '%s'. Must be one of: open, cancelled, filled", *status),
			}
		}
	}

	if page < 1 {
		return nil, 0, &domain.ValidationError{
			Message: "page must be >= 1",
		}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{
			Message: "limit must be between 1 and 100",
		}
	}

	orders, total := s.ex.Orders(maker, status, page, limit)
	return orders, total, nil
}
