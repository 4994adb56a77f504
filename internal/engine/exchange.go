package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/custodex/internal/domain"
	"github.com/efreitasn/custodex/internal/ledger"
	"github.com/efreitasn/custodex/internal/store"
)

// AssetLedger is the part of a token ledger the exchange may touch. It
// pulls deposits with TransferFrom under an allowance the user granted and
// pays out withdrawals with Transfer from its own balance.
type AssetLedger interface {
	Allowance(owner, spender domain.Address) decimal.Decimal
	TransferFrom(spender, owner, to domain.Address, amount decimal.Decimal) (domain.TransferEvent, error)
	Transfer(from, to domain.Address, amount decimal.Decimal) (domain.TransferEvent, error)
}

// Config fixes the exchange's identity and fee schedule for its lifetime.
type Config struct {
	// Address is the exchange's own account on every token ledger. A
	// fresh one is derived when empty.
	Address    domain.Address
	FeeAccount domain.Address
	FeePercent int64
}

// Option configures an Exchange.
type Option func(*Exchange)

// WithMetrics sets the metrics the exchange reports to.
func WithMetrics(m *Metrics) Option {
	return func(e *Exchange) { e.metrics = m }
}

// WithBooks sets the order book read model the exchange keeps current.
func WithBooks(b *BookManager) Option {
	return func(e *Exchange) { e.books = b }
}

// Exchange is the custody ledger and matching engine. Every mutating
// operation runs under one write lock, checks all of its preconditions
// before the first mutation, and either commits fully or returns an error
// with no state change.
type Exchange struct {
	mu      sync.RWMutex
	cfg     Config
	tokens  *ledger.Registry
	custody *store.CustodyStore
	orders  *store.OrderStore
	trades  *store.TradeStore
	pairs   *domain.PairRegistry
	books   *BookManager
	metrics *Metrics
}

// NewExchange creates an exchange over the given stores. It fails if the
// fee account is null or the fee percent is outside [0, 100].
func NewExchange(
	cfg Config,
	tokens *ledger.Registry,
	custody *store.CustodyStore,
	orders *store.OrderStore,
	trades *store.TradeStore,
	opts ...Option,
) (*Exchange, error) {
	if cfg.FeeAccount.IsNull() {
		return nil, &domain.ValidationError{Message: "fee account must not be the null address"}
	}
	if cfg.FeePercent < 0 || cfg.FeePercent > 100 {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("fee percent must be in [0, 100], got %d", cfg.FeePercent)}
	}
	if cfg.Address.IsNull() {
		cfg.Address = domain.NewAddress()
	}
	if cfg.FeeAccount == cfg.Address {
		return nil, &domain.ValidationError{Message: "fee account must not be the exchange's own address"}
	}

	e := &Exchange{
		cfg:     cfg,
		tokens:  tokens,
		custody: custody,
		orders:  orders,
		trades:  trades,
		pairs:   domain.NewPairRegistry(),
		books:   NewBookManager(),
		metrics: NopMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Exchange) asset(token domain.Address) (AssetLedger, error) {
	if token.IsNull() {
		return nil, domain.ErrInvalidToken
	}
	t, err := e.tokens.Get(token)
	if errors.Is(err, domain.ErrTokenNotFound) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// own reports whether addr is the exchange's own account. The exchange
// never acts as a custody user: its ledger balance backs every custody
// balance.
func (e *Exchange) own(addr domain.Address) bool {
	return addr == e.cfg.Address
}

func (e *Exchange) reject(op string, err error) error {
	e.metrics.Rejections.With("op", op, "category", string(domain.CategoryOf(err))).Add(1)
	return err
}

// DepositToken pulls amount of token from user's ledger balance into
// custody, using the allowance user granted the exchange.
func (e *Exchange) DepositToken(user, token domain.Address, amount decimal.Decimal, now time.Time) (domain.DepositEvent, error) {
	const op = "deposit"
	if e.own(user) {
		return domain.DepositEvent{}, e.reject(op, domain.ErrUnauthorized)
	}
	if !domain.ValidAmount(amount) {
		return domain.DepositEvent{}, e.reject(op, domain.ErrInvalidAmount)
	}
	asset, err := e.asset(token)
	if err != nil {
		return domain.DepositEvent{}, e.reject(op, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if asset.Allowance(user, e.cfg.Address).LessThan(amount) {
		return domain.DepositEvent{}, e.reject(op, domain.ErrInsufficientAllowance)
	}
	if _, err := asset.TransferFrom(e.cfg.Address, user, e.cfg.Address, amount); err != nil {
		return domain.DepositEvent{}, e.reject(op, err)
	}
	if err := e.custody.Apply(store.Move{Token: token, Account: user, Delta: amount}); err != nil {
		return domain.DepositEvent{}, fmt.Errorf("crediting custody: %w", err)
	}

	e.metrics.Transfers.With("kind", op).Add(1)
	return domain.DepositEvent{
		Token:     token,
		User:      user,
		Amount:    amount,
		Balance:   e.custody.BalanceOf(token, user),
		Timestamp: now,
	}, nil
}

// WithdrawToken pays amount of token out of user's custody balance back to
// their ledger balance. The custody debit is undone if the payout fails.
func (e *Exchange) WithdrawToken(user, token domain.Address, amount decimal.Decimal, now time.Time) (domain.WithdrawEvent, error) {
	const op = "withdraw"
	if e.own(user) {
		return domain.WithdrawEvent{}, e.reject(op, domain.ErrUnauthorized)
	}
	if !domain.ValidAmount(amount) {
		return domain.WithdrawEvent{}, e.reject(op, domain.ErrInvalidAmount)
	}
	asset, err := e.asset(token)
	if err != nil {
		return domain.WithdrawEvent{}, e.reject(op, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.custody.BalanceOf(token, user).LessThan(amount) {
		return domain.WithdrawEvent{}, e.reject(op, domain.ErrInsufficientCustodyBalance)
	}
	if user.IsNull() {
		return domain.WithdrawEvent{}, e.reject(op, domain.ErrInvalidRecipient)
	}

	debit := store.Move{Token: token, Account: user, Delta: amount.Neg()}
	if err := e.custody.Apply(debit); err != nil {
		return domain.WithdrawEvent{}, e.reject(op, err)
	}
	if _, err := asset.Transfer(e.cfg.Address, user, amount); err != nil {
		if rerr := e.custody.Apply(store.Move{Token: token, Account: user, Delta: amount}); rerr != nil {
			return domain.WithdrawEvent{}, fmt.Errorf("reverting custody debit after %v: %w", err, rerr)
		}
		return domain.WithdrawEvent{}, e.reject(op, err)
	}

	e.metrics.Transfers.With("kind", op).Add(1)
	return domain.WithdrawEvent{
		Token:     token,
		User:      user,
		Amount:    amount,
		Balance:   e.custody.BalanceOf(token, user),
		Timestamp: now,
	}, nil
}

// MakeOrder records an open order offering amountGive of tokenGive for
// amountGet of tokenGet. The maker must hold amountGive in custody now,
// but the balance is not reserved.
func (e *Exchange) MakeOrder(
	maker domain.Address,
	tokenGet domain.Address, amountGet decimal.Decimal,
	tokenGive domain.Address, amountGive decimal.Decimal,
	now time.Time,
) (uint64, domain.OrderEvent, error) {
	const op = "make"
	if e.own(maker) {
		return 0, domain.OrderEvent{}, e.reject(op, domain.ErrUnauthorized)
	}
	if tokenGet.IsNull() || tokenGive.IsNull() {
		return 0, domain.OrderEvent{}, e.reject(op, domain.ErrInvalidToken)
	}
	if !domain.ValidAmount(amountGet) || !domain.ValidAmount(amountGive) {
		return 0, domain.OrderEvent{}, e.reject(op, domain.ErrInvalidAmount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.custody.BalanceOf(tokenGive, maker).LessThan(amountGive) {
		return 0, domain.OrderEvent{}, e.reject(op, domain.ErrInsufficientCustodyBalance)
	}

	o := e.orders.Create(domain.Order{
		Maker:      maker,
		TokenGet:   tokenGet,
		AmountGet:  amountGet,
		TokenGive:  tokenGive,
		AmountGive: amountGive,
		Timestamp:  now,
	})
	e.books.Add(o)
	e.pairs.Register(tokenGet, tokenGive)

	e.metrics.OrdersMade.Add(1)
	e.metrics.OpenOrders.Add(1)
	return o.ID, domain.NewOrderEvent(o), nil
}

// CancelOrder closes an open order on behalf of its maker.
func (e *Exchange) CancelOrder(caller domain.Address, id uint64, now time.Time) (domain.CancelEvent, error) {
	const op = "cancel"

	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.orders.Get(id)
	if err != nil {
		return domain.CancelEvent{}, e.reject(op, err)
	}
	if caller != o.Maker {
		return domain.CancelEvent{}, e.reject(op, domain.ErrUnauthorized)
	}
	if err := o.TerminalError(); err != nil {
		return domain.CancelEvent{}, e.reject(op, err)
	}

	o, err = e.orders.Close(id, domain.OrderStatusCancelled, now, "", decimal.Zero)
	if err != nil {
		return domain.CancelEvent{}, e.reject(op, err)
	}
	e.books.Remove(o)

	e.metrics.OrdersCancelled.Add(1)
	e.metrics.OpenOrders.Add(-1)
	return domain.NewCancelEvent(o, now), nil
}

// FillOrder settles an open order against filler's custody balances. The
// filler pays amountGet plus the fee in tokenGet and receives amountGive
// of tokenGive; the maker must still hold amountGive.
func (e *Exchange) FillOrder(filler domain.Address, id uint64, now time.Time) (domain.TradeEvent, error) {
	const op = "fill"

	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.orders.Get(id)
	if err != nil {
		return domain.TradeEvent{}, e.reject(op, err)
	}
	if err := o.TerminalError(); err != nil {
		return domain.TradeEvent{}, e.reject(op, err)
	}
	if filler == o.Maker || e.own(filler) {
		return domain.TradeEvent{}, e.reject(op, domain.ErrUnauthorized)
	}

	fee := Fee(o.AmountGet, e.cfg.FeePercent)
	cost := o.AmountGet.Add(fee)
	if e.custody.BalanceOf(o.TokenGet, filler).LessThan(cost) {
		return domain.TradeEvent{}, e.reject(op, domain.ErrInsufficientCustodyBalance)
	}
	if e.custody.BalanceOf(o.TokenGive, o.Maker).LessThan(o.AmountGive) {
		return domain.TradeEvent{}, e.reject(op, domain.ErrInsufficientCustodyBalance)
	}

	err = e.custody.Apply(
		store.Move{Token: o.TokenGet, Account: filler, Delta: cost.Neg()},
		store.Move{Token: o.TokenGet, Account: o.Maker, Delta: o.AmountGet},
		store.Move{Token: o.TokenGet, Account: e.cfg.FeeAccount, Delta: fee},
		store.Move{Token: o.TokenGive, Account: o.Maker, Delta: o.AmountGive.Neg()},
		store.Move{Token: o.TokenGive, Account: filler, Delta: o.AmountGive},
	)
	if err != nil {
		return domain.TradeEvent{}, e.reject(op, err)
	}

	o, err = e.orders.Close(id, domain.OrderStatusFilled, now, filler, fee)
	if err != nil {
		return domain.TradeEvent{}, fmt.Errorf("closing settled order %d: %w", id, err)
	}
	e.books.Remove(o)

	trade := domain.Trade{
		OrderID:    o.ID,
		Maker:      o.Maker,
		TokenGet:   o.TokenGet,
		AmountGet:  o.AmountGet,
		TokenGive:  o.TokenGive,
		AmountGive: o.AmountGive,
		Filler:     filler,
		Fee:        fee,
		ExecutedAt: now,
	}
	e.trades.Append(trade)

	e.metrics.OrdersFilled.Add(1)
	e.metrics.OpenOrders.Add(-1)
	feeTokens, _ := fee.Shift(-domain.Decimals).Float64()
	e.metrics.FeeCollected.Observe(feeTokens)
	return domain.TradeEvent{Trade: trade}, nil
}

// BalanceOf returns user's custody balance of token.
func (e *Exchange) BalanceOf(token, user domain.Address) decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.custody.BalanceOf(token, user)
}

// Order returns the order with the given id.
func (e *Exchange) Order(id uint64) (domain.Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.orders.Get(id)
}

// OrderCancelled reports whether order id exists and was cancelled.
func (e *Exchange) OrderCancelled(id uint64) bool {
	o, err := e.Order(id)
	return err == nil && o.Status == domain.OrderStatusCancelled
}

// OrderFilled reports whether order id exists and was filled.
func (e *Exchange) OrderFilled(id uint64) bool {
	o, err := e.Order(id)
	return err == nil && o.Status == domain.OrderStatusFilled
}

// OrderID returns the id the next order will receive.
func (e *Exchange) OrderID() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.orders.NextID()
}

// Orders lists a maker's orders newest first, optionally filtered by status.
func (e *Exchange) Orders(maker domain.Address, status *domain.OrderStatus, page, limit int) ([]domain.Order, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.orders.ListByMaker(maker, status, page, limit)
}

// OrdersFrom returns up to limit orders of every maker with id >= from, in
// id order. A limit <= 0 means no limit.
func (e *Exchange) OrdersFrom(from uint64, limit int) []domain.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []domain.Order
	e.orders.Ascend(from, func(o domain.Order) bool {
		out = append(out, o)
		return limit <= 0 || len(out) < limit
	})
	return out
}

// Trades returns the fills between tokens a and b, oldest first.
func (e *Exchange) Trades(a, b domain.Address) []domain.Trade {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trades.GetByPair(a, b)
}

// Book returns the open-order book of market m. The book keeps changing
// after the call; use Depth for a consistent snapshot.
func (e *Exchange) Book(m domain.Market) *OrderBook {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.books.GetOrCreate(m)
}

// Depth returns the top depth price levels of both sides of market m,
// taken from one committed state.
func (e *Exchange) Depth(m domain.Market, depth int) (bids, asks []PriceLevel) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	book := e.books.GetOrCreate(m)
	return book.TopBids(depth), book.TopAsks(depth)
}

// Pairs returns every token pair that has seen an order.
func (e *Exchange) Pairs() []domain.Market {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pairs.List()
}

func (e *Exchange) Address() domain.Address    { return e.cfg.Address }
func (e *Exchange) FeeAccount() domain.Address { return e.cfg.FeeAccount }
func (e *Exchange) FeePercent() int64          { return e.cfg.FeePercent }
